package registry

import (
	"testing"
	"time"
)

func TestKindIsValid(t *testing.T) {
	t.Parallel()

	for _, kind := range []Kind{KindFormCreated, KindFormDeactivated, KindResponseSubmitted, KindAdministratorAdded} {
		if !kind.IsValid() {
			t.Fatalf("kind %q should be valid", kind)
		}
	}
	if Kind("").IsValid() {
		t.Fatal("empty kind should be invalid")
	}
	if Kind("form.reactivated").IsValid() {
		t.Fatal("unknown kind should be invalid")
	}
}

func TestFormCreatedNotificationCarriesArguments(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 12, 12, 0, 0, 0, time.UTC)
	form := Form{ID: 7, Creator: "operator-a", ContentRef: "ref-7", Active: true, CreatedAt: now}

	note := FormCreatedNotification(form)
	if note.Kind != KindFormCreated {
		t.Fatalf("kind = %q, want %q", note.Kind, KindFormCreated)
	}
	if note.FormID != 7 || note.Actor != "operator-a" || note.ContentRef != "ref-7" {
		t.Fatalf("unexpected payload: %+v", note)
	}
	if !note.Timestamp.Equal(now) {
		t.Fatalf("timestamp = %v, want %v", note.Timestamp, now)
	}
}

func TestFormDeactivatedNotificationUsesDeactivationTime(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, time.March, 12, 12, 0, 0, 0, time.UTC)
	deactivated := created.Add(2 * time.Hour)
	form := Form{ID: 2, Creator: "operator-a", ContentRef: "ref-2", CreatedAt: created, DeactivatedAt: &deactivated}

	note := FormDeactivatedNotification(form, "operator-b")
	if note.Kind != KindFormDeactivated {
		t.Fatalf("kind = %q, want %q", note.Kind, KindFormDeactivated)
	}
	if note.Actor != "operator-b" {
		t.Fatalf("actor = %q, want the deactivating caller", note.Actor)
	}
	if note.ContentRef != "" {
		t.Fatalf("content ref = %q, want empty", note.ContentRef)
	}
	if !note.Timestamp.Equal(deactivated) {
		t.Fatalf("timestamp = %v, want %v", note.Timestamp, deactivated)
	}
}

func TestResponseSubmittedNotificationCarriesArguments(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 12, 13, 0, 0, 0, time.UTC)
	response := Response{FormID: 4, Seq: 9, Respondent: "participant-c", ContentRef: "resp-ref", SubmittedAt: now}

	note := ResponseSubmittedNotification(response)
	if note.Kind != KindResponseSubmitted {
		t.Fatalf("kind = %q, want %q", note.Kind, KindResponseSubmitted)
	}
	if note.FormID != 4 || note.Actor != "participant-c" || note.ContentRef != "resp-ref" {
		t.Fatalf("unexpected payload: %+v", note)
	}
}

func TestAdministratorAddedNotification(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 12, 14, 0, 0, 0, time.UTC)
	admin := Administrator{Identity: "operator-b", AddedBy: "operator-a", AddedAt: now}

	note := AdministratorAddedNotification(admin)
	if note.Kind != KindAdministratorAdded {
		t.Fatalf("kind = %q, want %q", note.Kind, KindAdministratorAdded)
	}
	if note.FormID != 0 {
		t.Fatalf("form id = %d, want 0", note.FormID)
	}
	if note.Actor != "operator-b" {
		t.Fatalf("actor = %q, want the granted identity", note.Actor)
	}
}
