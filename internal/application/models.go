package application

import (
	"time"

	"github.com/example/collab-sessions/internal/lifecycle"
	"github.com/example/collab-sessions/internal/reminder"
)

// Principal is the authenticated caller. The identity provider vouches for it;
// services only check what the principal may do.
type Principal struct {
	UserID string
}

// SessionType distinguishes single sessions from ones carrying a recurrence rule.
type SessionType string

const (
	SessionTypeOneTime   SessionType = "one_time"
	SessionTypeRecurring SessionType = "recurring"
)

// RecurrenceRule is recorded but never expanded into instances.
type RecurrenceRule string

const (
	RecurrenceWeekly   RecurrenceRule = "weekly"
	RecurrenceBiweekly RecurrenceRule = "biweekly"
)

// MeetingProvider names where the meeting link points.
type MeetingProvider string

const (
	MeetingProviderGoogleMeet MeetingProvider = "google_meet"
	MeetingProviderZoom       MeetingProvider = "zoom"
	MeetingProviderManual     MeetingProvider = "manual"
)

// TimeWindow is a half-open interval with End after Start.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// Outcome is an action item captured after the session.
type Outcome struct {
	ID        string
	Text      string
	Completed bool
}

// Session is a meeting negotiated between a host and an attendee.
type Session struct {
	ID                    string
	HostID                string
	AttendeeID            string
	PlanID                *string
	Title                 string
	Description           *string
	SessionType           SessionType
	ProposedTimes         []TimeWindow
	ScheduledStart        *time.Time
	ScheduledEnd          *time.Time
	DurationMinutes       int
	Timezone              string
	RecurrenceRule        *RecurrenceRule
	RecurrenceEndDate     *time.Time
	ParentSessionID       *string
	MeetingProvider       *MeetingProvider
	MeetingLink           *string
	MeetingID             *string
	Status                lifecycle.Status
	ConfirmedAt           *time.Time
	CompletedAt           *time.Time
	CancelledAt           *time.Time
	CancellationReason    *string
	ActualDurationMinutes *int
	SessionNotes          *string
	Outcomes              []Outcome
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// IsParticipant reports whether userID is the host or the attendee.
func (s Session) IsParticipant(userID string) bool {
	return userID != "" && (s.HostID == userID || s.AttendeeID == userID)
}

// Reminder is a recorded fire time for one participant.
type Reminder struct {
	ID           string
	SessionID    string
	UserID       string
	Type         reminder.Type
	ReminderTime time.Time
	EmailSent    bool
	EmailSentAt  *time.Time
	InAppSent    bool
	InAppSentAt  *time.Time
	CreatedAt    time.Time
}

// SessionInput captures the proposer supplied fields of a new session.
type SessionInput struct {
	AttendeeID        string
	PlanID            *string
	Title             string
	Description       *string
	SessionType       SessionType
	ProposedTimes     []TimeWindow
	DurationMinutes   int
	Timezone          string
	RecurrenceRule    *RecurrenceRule
	RecurrenceEndDate *time.Time
	ParentSessionID   *string
	MeetingProvider   *MeetingProvider
	MeetingLink       *string
	MeetingID         *string
}

// CreateSessionParams wraps the data required to propose a session. The
// principal becomes the host.
type CreateSessionParams struct {
	Principal Principal
	Input     SessionInput
}

// ConfirmSessionParams selects one proposed window.
type ConfirmSessionParams struct {
	Principal    Principal
	SessionID    string
	SelectedTime TimeWindow
}

// CancelSessionParams cancels a proposed or confirmed session.
type CancelSessionParams struct {
	Principal Principal
	SessionID string
	Reason    *string
}

// CompleteSessionParams closes a confirmed session with optional outcome data.
type CompleteSessionParams struct {
	Principal             Principal
	SessionID             string
	Notes                 *string
	Outcomes              []Outcome
	ActualDurationMinutes *int
}

// UpdateNotesParams overwrites outcome capture fields. Nil fields are left untouched.
type UpdateNotesParams struct {
	Principal             Principal
	SessionID             string
	Notes                 *string
	Outcomes              []Outcome
	ActualDurationMinutes *int
}

// SessionRole restricts listings to one side of the pairing.
type SessionRole string

const (
	RoleEither   SessionRole = ""
	RoleHost     SessionRole = "host"
	RoleAttendee SessionRole = "attendee"
)

// SessionFilter is the caller facing listing filter. From and To bound
// scheduled_start as [From, To).
type SessionFilter struct {
	Role     SessionRole
	Statuses []lifecycle.Status
	From     *time.Time
	To       *time.Time
	PlanID   *string
	Limit    int
}

// ListSessionsParams lists sessions the principal takes part in.
type ListSessionsParams struct {
	Principal Principal
	Filter    SessionFilter
}

// SessionQuery is the filter handed to the repository.
type SessionQuery struct {
	UserID             string
	Role               SessionRole
	Statuses           []lifecycle.Status
	From               *time.Time
	To                 *time.Time
	IncludeUnscheduled bool
	PlanID             *string
	Limit              int
	Descending         bool
}

// SessionChanges lists the fields a transition writes. Nil fields are left untouched.
type SessionChanges struct {
	Status                *lifecycle.Status
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

// SessionTransition applies Changes only while the stored status is one of From.
type SessionTransition struct {
	SessionID string
	From      []lifecycle.Status
	Changes   SessionChanges
}
