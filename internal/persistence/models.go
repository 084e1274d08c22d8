package persistence

import "time"

// TimeWindow is a candidate or scheduled meeting interval.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Outcome is one action item captured after a session.
type Outcome struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// Session is a row of the sessions table.
type Session struct {
	ID                    string
	HostID                string
	AttendeeID            string
	PlanID                *string
	Title                 string
	Description           *string
	SessionType           string
	ProposedTimes         []TimeWindow
	ScheduledStart        *time.Time
	ScheduledEnd          *time.Time
	DurationMinutes       int
	Timezone              string
	RecurrenceRule        *string
	RecurrenceEndDate     *time.Time
	ParentSessionID       *string
	MeetingProvider       *string
	MeetingLink           *string
	MeetingID             *string
	Status                string
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

// Reminder is a row of the session_reminders table.
type Reminder struct {
	ID           string
	SessionID    string
	UserID       string
	ReminderType string
	ReminderTime time.Time
	EmailSent    bool
	EmailSentAt  *time.Time
	InAppSent    bool
	InAppSentAt  *time.Time
	CreatedAt    time.Time
}

// CollaborationGrant records that two users may schedule sessions together,
// optionally scoped to a shared plan.
type CollaborationGrant struct {
	ID        string
	UserA     string
	UserB     string
	PlanID    *string
	Role      string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
