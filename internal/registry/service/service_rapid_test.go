package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"pgregory.net/rapid"

	"github.com/formledger/formledger/internal/registry"
	"github.com/formledger/formledger/internal/registry/storage/sqlite"
)

// TestRegistrySequencingProperties drives a random mix of mutations and
// checks the structural invariants that hold regardless of order: form ids
// are dense starting at 1, per-form response sequences are dense, the
// notification log is gap free, and deactivation never reverses.
func TestRegistrySequencingProperties(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		dir := t.TempDir()
		store, err := sqlite.Open(filepath.Join(dir, "registry.db"))
		if err != nil {
			rt.Fatalf("sqlite.Open() error = %v", err)
		}
		defer store.Close()

		svc := New(store)
		defer svc.Close()

		ctx := context.Background()
		if err := svc.Bootstrap(ctx, testAdmin); err != nil {
			rt.Fatalf("Bootstrap() error = %v", err)
		}

		var (
			formIDs       []uint64
			inactive      = map[uint64]bool{}
			responseCount = map[uint64]uint64{}
		)

		steps := rapid.IntRange(1, 40).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			switch rapid.IntRange(0, 2).Draw(rt, "op") {
			case 0:
				form, err := svc.CreateForm(ctx, testAdmin, "sha256:doc")
				if err != nil {
					rt.Fatalf("CreateForm() error = %v", err)
				}
				if want := uint64(len(formIDs) + 1); form.ID != want {
					rt.Fatalf("form.ID = %d, want %d", form.ID, want)
				}
				formIDs = append(formIDs, form.ID)
			case 1:
				if len(formIDs) == 0 {
					continue
				}
				id := formIDs[rapid.IntRange(0, len(formIDs)-1).Draw(rt, "form")]
				form, err := svc.DeactivateForm(ctx, testAdmin, id)
				if err != nil {
					rt.Fatalf("DeactivateForm() error = %v", err)
				}
				if form.Active {
					rt.Fatalf("form %d active after deactivation", id)
				}
				inactive[id] = true
			case 2:
				if len(formIDs) == 0 {
					continue
				}
				id := formIDs[rapid.IntRange(0, len(formIDs)-1).Draw(rt, "form")]
				response, err := svc.SubmitResponse(ctx, testParticipant, id, "sha256:answer")
				if inactive[id] {
					if !errors.Is(err, registry.ErrFormInactive) {
						rt.Fatalf("SubmitResponse(inactive) error = %v, want %v", err, registry.ErrFormInactive)
					}
					continue
				}
				if err != nil {
					rt.Fatalf("SubmitResponse() error = %v", err)
				}
				responseCount[id]++
				if response.Seq != responseCount[id] {
					rt.Fatalf("response.Seq = %d, want %d", response.Seq, responseCount[id])
				}
			}
		}

		count, err := svc.FormCount(ctx)
		if err != nil {
			rt.Fatalf("FormCount() error = %v", err)
		}
		if count != uint64(len(formIDs)) {
			rt.Fatalf("FormCount() = %d, want %d", count, len(formIDs))
		}

		notes, err := svc.Notifications(ctx, 0, 500)
		if err != nil {
			rt.Fatalf("Notifications() error = %v", err)
		}
		for i, note := range notes {
			if note.Seq != uint64(i+1) {
				rt.Fatalf("notes[%d].Seq = %d, want %d", i, note.Seq, i+1)
			}
			if !note.Kind.IsValid() {
				rt.Fatalf("notes[%d].Kind = %q is not valid", i, note.Kind)
			}
		}
	})
}
