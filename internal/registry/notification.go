package registry

import "time"

// Kind identifies the type of a registry notification.
type Kind string

const (
	// KindFormCreated records the creation of a form.
	KindFormCreated Kind = "form.created"
	// KindFormDeactivated records a form turning off response acceptance.
	KindFormDeactivated Kind = "form.deactivated"
	// KindResponseSubmitted records a response appended to a form.
	KindResponseSubmitted Kind = "response.submitted"
	// KindAdministratorAdded records a new member of the admin set.
	KindAdministratorAdded Kind = "admin.added"
)

// IsValid reports whether the notification kind is usable.
func (k Kind) IsValid() bool {
	switch k {
	case KindFormCreated, KindFormDeactivated, KindResponseSubmitted, KindAdministratorAdded:
		return true
	default:
		return false
	}
}

// Notification is an immutable record of one committed state transition,
// appended in the same transaction as the mutation it describes.
// Notifications carry identifiers and references, never full documents.
type Notification struct {
	// Seq is the global notification sequence number (starts at 1).
	// Assigned by storage on append.
	Seq uint64
	// Kind identifies the state transition.
	Kind Kind
	// FormID is the affected form (zero for admin-set notifications).
	FormID uint64
	// Actor is the identity that caused the transition: the form creator,
	// the respondent, or the granted administrator.
	Actor Identity
	// ContentRef is the reference recorded by the transition (empty for
	// deactivations and admin grants).
	ContentRef Reference
	// Timestamp is when the transition was committed.
	Timestamp time.Time
}

// FormCreatedNotification builds the notification for a created form.
func FormCreatedNotification(form Form) Notification {
	return Notification{
		Kind:       KindFormCreated,
		FormID:     form.ID,
		Actor:      form.Creator,
		ContentRef: form.ContentRef,
		Timestamp:  form.CreatedAt,
	}
}

// FormDeactivatedNotification builds the notification for a deactivated form.
func FormDeactivatedNotification(form Form, actor Identity) Notification {
	timestamp := form.CreatedAt
	if form.DeactivatedAt != nil {
		timestamp = *form.DeactivatedAt
	}
	return Notification{
		Kind:      KindFormDeactivated,
		FormID:    form.ID,
		Actor:     actor,
		Timestamp: timestamp,
	}
}

// ResponseSubmittedNotification builds the notification for a recorded response.
func ResponseSubmittedNotification(response Response) Notification {
	return Notification{
		Kind:       KindResponseSubmitted,
		FormID:     response.FormID,
		Actor:      response.Respondent,
		ContentRef: response.ContentRef,
		Timestamp:  response.SubmittedAt,
	}
}

// AdministratorAddedNotification builds the notification for a new administrator.
func AdministratorAddedNotification(admin Administrator) Notification {
	return Notification{
		Kind:      KindAdministratorAdded,
		Actor:     admin.Identity,
		Timestamp: admin.AddedAt,
	}
}
