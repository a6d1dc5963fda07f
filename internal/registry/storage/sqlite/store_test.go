package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/formledger/formledger/internal/registry"
	"github.com/formledger/formledger/internal/registry/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "registry.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return store
}

func appendTestForm(t *testing.T, store *Store, creator, ref string) registry.Form {
	t.Helper()
	form, _, err := store.AppendForm(context.Background(), registry.Form{
		Creator:    registry.Identity(creator),
		ContentRef: registry.Reference(ref),
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("AppendForm() error = %v", err)
	}
	return form
}

func TestAppendFormAllocatesDenseIDs(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)

	for want := uint64(1); want <= 5; want++ {
		form := appendTestForm(t, store, "admin@example.test", "sha256:abc")
		if form.ID != want {
			t.Fatalf("form.ID = %d, want %d", form.ID, want)
		}
		if !form.Active {
			t.Fatalf("form.Active = false, want true")
		}
	}

	count, err := store.CountForms(context.Background())
	if err != nil {
		t.Fatalf("CountForms() error = %v", err)
	}
	if count != 5 {
		t.Fatalf("CountForms() = %d, want 5", count)
	}
}

func TestAppendFormEmitsNotification(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)

	form, note, err := store.AppendForm(context.Background(), registry.Form{
		Creator:    "admin@example.test",
		ContentRef: "sha256:def",
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("AppendForm() error = %v", err)
	}
	if note.Seq != 1 {
		t.Errorf("note.Seq = %d, want 1", note.Seq)
	}
	if note.Kind != registry.KindFormCreated {
		t.Errorf("note.Kind = %q, want %q", note.Kind, registry.KindFormCreated)
	}
	if note.FormID != form.ID {
		t.Errorf("note.FormID = %d, want %d", note.FormID, form.ID)
	}
	if note.ContentRef != form.ContentRef {
		t.Errorf("note.ContentRef = %q, want %q", note.ContentRef, form.ContentRef)
	}
}

func TestGetFormNotFound(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)

	if _, err := store.GetForm(context.Background(), 42); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("GetForm() error = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestListFormsPagination(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)

	for i := 0; i < 4; i++ {
		appendTestForm(t, store, "admin@example.test", "sha256:abc")
	}

	forms, err := store.ListForms(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("ListForms() error = %v", err)
	}
	if len(forms) != 2 {
		t.Fatalf("len(forms) = %d, want 2", len(forms))
	}
	if forms[0].ID != 2 || forms[1].ID != 3 {
		t.Fatalf("form ids = %d, %d, want 2, 3", forms[0].ID, forms[1].ID)
	}
}

func TestDeactivateFormIsOneWay(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)
	ctx := context.Background()

	form := appendTestForm(t, store, "admin@example.test", "sha256:abc")

	deactivated, changed, note, err := store.DeactivateForm(ctx, form.ID, "admin@example.test")
	if err != nil {
		t.Fatalf("DeactivateForm() error = %v", err)
	}
	if !changed {
		t.Fatalf("changed = false, want true")
	}
	if deactivated.Active {
		t.Errorf("deactivated.Active = true, want false")
	}
	if deactivated.DeactivatedAt == nil {
		t.Errorf("deactivated.DeactivatedAt = nil, want timestamp")
	}
	if note.Kind != registry.KindFormDeactivated {
		t.Errorf("note.Kind = %q, want %q", note.Kind, registry.KindFormDeactivated)
	}

	// Second deactivation is a no-op and must not emit anything.
	_, changed, _, err = store.DeactivateForm(ctx, form.ID, "admin@example.test")
	if err != nil {
		t.Fatalf("DeactivateForm() repeat error = %v", err)
	}
	if changed {
		t.Fatalf("repeat changed = true, want false")
	}

	notes, err := store.ListNotifications(ctx, 0, 10)
	if err != nil {
		t.Fatalf("ListNotifications() error = %v", err)
	}
	if len(notes) != 2 {
		t.Fatalf("len(notes) = %d, want 2 (created + deactivated)", len(notes))
	}
}

func TestDeactivateFormNotFound(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)

	_, _, _, err := store.DeactivateForm(context.Background(), 7, "admin@example.test")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("DeactivateForm() error = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestAppendResponseSequencesPerForm(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)
	ctx := context.Background()

	first := appendTestForm(t, store, "admin@example.test", "sha256:abc")
	second := appendTestForm(t, store, "admin@example.test", "sha256:def")

	for want := uint64(1); want <= 3; want++ {
		response, _, err := store.AppendResponse(ctx, registry.Response{
			FormID:     first.ID,
			Respondent: "participant@example.test",
			ContentRef: "sha256:answer",
		})
		if err != nil {
			t.Fatalf("AppendResponse() error = %v", err)
		}
		if response.Seq != want {
			t.Fatalf("response.Seq = %d, want %d", response.Seq, want)
		}
	}

	// The second form keeps its own counter.
	response, _, err := store.AppendResponse(ctx, registry.Response{
		FormID:     second.ID,
		Respondent: "participant@example.test",
		ContentRef: "sha256:answer",
	})
	if err != nil {
		t.Fatalf("AppendResponse() error = %v", err)
	}
	if response.Seq != 1 {
		t.Fatalf("response.Seq = %d, want 1", response.Seq)
	}

	count, err := store.CountResponses(ctx, first.ID)
	if err != nil {
		t.Fatalf("CountResponses() error = %v", err)
	}
	if count != 3 {
		t.Fatalf("CountResponses() = %d, want 3", count)
	}
}

func TestAppendResponseRejectsInactiveForm(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)
	ctx := context.Background()

	form := appendTestForm(t, store, "admin@example.test", "sha256:abc")
	if _, _, _, err := store.DeactivateForm(ctx, form.ID, "admin@example.test"); err != nil {
		t.Fatalf("DeactivateForm() error = %v", err)
	}

	_, _, err := store.AppendResponse(ctx, registry.Response{
		FormID:     form.ID,
		Respondent: "participant@example.test",
		ContentRef: "sha256:answer",
	})
	if !errors.Is(err, storage.ErrFormInactive) {
		t.Fatalf("AppendResponse() error = %v, want %v", err, storage.ErrFormInactive)
	}
}

func TestAppendResponseUnknownForm(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)

	_, _, err := store.AppendResponse(context.Background(), registry.Response{
		FormID:     99,
		Respondent: "participant@example.test",
		ContentRef: "sha256:answer",
	})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("AppendResponse() error = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestListResponsesOrderAndPagination(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)
	ctx := context.Background()

	form := appendTestForm(t, store, "admin@example.test", "sha256:abc")
	for i := 0; i < 4; i++ {
		if _, _, err := store.AppendResponse(ctx, registry.Response{
			FormID:     form.ID,
			Respondent: "participant@example.test",
			ContentRef: "sha256:answer",
		}); err != nil {
			t.Fatalf("AppendResponse() error = %v", err)
		}
	}

	responses, err := store.ListResponses(ctx, form.ID, 1, 2)
	if err != nil {
		t.Fatalf("ListResponses() error = %v", err)
	}
	if len(responses) != 2 {
		t.Fatalf("len(responses) = %d, want 2", len(responses))
	}
	if responses[0].Seq != 2 || responses[1].Seq != 3 {
		t.Fatalf("response seqs = %d, %d, want 2, 3", responses[0].Seq, responses[1].Seq)
	}
}

func TestInsertAdministratorIdempotent(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)
	ctx := context.Background()

	admin := registry.Administrator{
		Identity: "admin@example.test",
		AddedBy:  "root@example.test",
		AddedAt:  time.Now().UTC(),
	}

	added, note, err := store.InsertAdministrator(ctx, admin)
	if err != nil {
		t.Fatalf("InsertAdministrator() error = %v", err)
	}
	if !added {
		t.Fatalf("added = false, want true")
	}
	if note.Kind != registry.KindAdministratorAdded {
		t.Errorf("note.Kind = %q, want %q", note.Kind, registry.KindAdministratorAdded)
	}

	added, _, err = store.InsertAdministrator(ctx, admin)
	if err != nil {
		t.Fatalf("InsertAdministrator() repeat error = %v", err)
	}
	if added {
		t.Fatalf("repeat added = true, want false")
	}

	ok, err := store.IsAdministrator(ctx, admin.Identity)
	if err != nil {
		t.Fatalf("IsAdministrator() error = %v", err)
	}
	if !ok {
		t.Fatalf("IsAdministrator() = false, want true")
	}

	count, err := store.CountAdministrators(ctx)
	if err != nil {
		t.Fatalf("CountAdministrators() error = %v", err)
	}
	if count != 1 {
		t.Fatalf("CountAdministrators() = %d, want 1", count)
	}

	notes, err := store.ListNotifications(ctx, 0, 10)
	if err != nil {
		t.Fatalf("ListNotifications() error = %v", err)
	}
	if len(notes) != 1 {
		t.Fatalf("len(notes) = %d, want 1", len(notes))
	}
}

func TestNotificationSequenceSpansMutations(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)
	ctx := context.Background()

	form := appendTestForm(t, store, "admin@example.test", "sha256:abc")
	if _, _, err := store.AppendResponse(ctx, registry.Response{
		FormID:     form.ID,
		Respondent: "participant@example.test",
		ContentRef: "sha256:answer",
	}); err != nil {
		t.Fatalf("AppendResponse() error = %v", err)
	}
	if _, _, _, err := store.DeactivateForm(ctx, form.ID, "admin@example.test"); err != nil {
		t.Fatalf("DeactivateForm() error = %v", err)
	}

	notes, err := store.ListNotifications(ctx, 0, 10)
	if err != nil {
		t.Fatalf("ListNotifications() error = %v", err)
	}
	wantKinds := []registry.Kind{
		registry.KindFormCreated,
		registry.KindResponseSubmitted,
		registry.KindFormDeactivated,
	}
	if len(notes) != len(wantKinds) {
		t.Fatalf("len(notes) = %d, want %d", len(notes), len(wantKinds))
	}
	for i, note := range notes {
		if note.Seq != uint64(i+1) {
			t.Errorf("notes[%d].Seq = %d, want %d", i, note.Seq, i+1)
		}
		if note.Kind != wantKinds[i] {
			t.Errorf("notes[%d].Kind = %q, want %q", i, note.Kind, wantKinds[i])
		}
	}

	latest, err := store.LatestNotificationSeq(ctx)
	if err != nil {
		t.Fatalf("LatestNotificationSeq() error = %v", err)
	}
	if latest != 3 {
		t.Fatalf("LatestNotificationSeq() = %d, want 3", latest)
	}
}

func TestLatestNotificationSeqEmpty(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)

	latest, err := store.LatestNotificationSeq(context.Background())
	if err != nil {
		t.Fatalf("LatestNotificationSeq() error = %v", err)
	}
	if latest != 0 {
		t.Fatalf("LatestNotificationSeq() = %d, want 0", latest)
	}
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "registry.db")
	ctx := context.Background()

	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	form, _, err := store.AppendForm(ctx, registry.Form{
		Creator:    "admin@example.test",
		ContentRef: "sha256:abc",
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("AppendForm() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("Open() reopen error = %v", err)
	}
	defer reopened.Close()

	got, err := reopened.GetForm(ctx, form.ID)
	if err != nil {
		t.Fatalf("GetForm() error = %v", err)
	}
	if got.ContentRef != form.ContentRef {
		t.Errorf("got.ContentRef = %q, want %q", got.ContentRef, form.ContentRef)
	}

	// The allocator resumes where it left off.
	next := appendTestForm(t, reopened, "admin@example.test", "sha256:def")
	if next.ID != form.ID+1 {
		t.Fatalf("next.ID = %d, want %d", next.ID, form.ID+1)
	}
}
