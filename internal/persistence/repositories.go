package persistence

import (
	"context"
	"time"
)

// Role narrows a session listing to one side of the pairing.
type Role string

const (
	RoleAny      Role = ""
	RoleHost     Role = "host"
	RoleAttendee Role = "attendee"
)

// SessionFilter narrows session queries. UserID is required.
type SessionFilter struct {
	UserID   string
	Role     Role
	Statuses []string
	// From and To bound scheduled_start as [From, To).
	From *time.Time
	To   *time.Time
	// IncludeUnscheduled keeps rows with a null scheduled_start when a bound is set.
	IncludeUnscheduled bool
	PlanID             *string
	Limit              int
	// Descending orders by scheduled_start descending. Nulls always sort last.
	Descending bool
}

// SessionChanges lists the columns a transition writes. Nil fields are left untouched.
type SessionChanges struct {
	Status                *string
	ScheduledStart        *time.Time
	ScheduledEnd          *time.Time
	ConfirmedAt           *time.Time
	CompletedAt           *time.Time
	CancelledAt           *time.Time
	CancellationReason    *string
	ActualDurationMinutes *int
	SessionNotes          *string
	Outcomes              []Outcome
	UpdatedAt             time.Time
}

// SessionTransition is a compare-and-swap on status: the changes apply only
// when the row's current status is one of FromStatuses.
type SessionTransition struct {
	SessionID    string
	FromStatuses []string
	Changes      SessionChanges
}

// SessionRepository stores sessions.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) error
	GetSession(ctx context.Context, id string) (Session, error)
	ListSessions(ctx context.Context, filter SessionFilter) ([]Session, error)
	// TransitionSession returns ErrPreconditionFailed when no row matched the id and status.
	TransitionSession(ctx context.Context, transition SessionTransition) (Session, error)
	// DeleteSession returns ErrPreconditionFailed when no row matched the id and status.
	DeleteSession(ctx context.Context, id string, allowedStatuses []string) error
}

// ReminderRepository stores reminder rows.
type ReminderRepository interface {
	// CreateReminders inserts reminders, keeping any existing row for the same
	// (session, user, type) and returning the stored rows.
	CreateReminders(ctx context.Context, reminders []Reminder) ([]Reminder, error)
	ListRemindersForSession(ctx context.Context, sessionID string) ([]Reminder, error)
}

// GrantRepository stores collaboration grants.
type GrantRepository interface {
	PutGrant(ctx context.Context, grant CollaborationGrant) error
	// HasActiveGrant matches in either direction. A nil planID matches any plan.
	HasActiveGrant(ctx context.Context, userA, userB string, planID *string) (bool, error)
	ListGrantsForUser(ctx context.Context, userID string) ([]CollaborationGrant, error)
}
