package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/collab-sessions/internal/application"
	"github.com/example/collab-sessions/internal/lifecycle"
	"github.com/example/collab-sessions/internal/persistence"
	"github.com/example/collab-sessions/internal/reminder"
)

var (
	sessionCounter  uint64
	reminderCounter uint64
	grantCounter    uint64
)

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- Session fixtures -----------------------------

// SessionFixture represents a deterministic session record that can be
// materialised for application or persistence tests.
type SessionFixture struct {
	ID                    string
	HostID                string
	AttendeeID            string
	PlanID                *string
	Title                 string
	SessionType           application.SessionType
	RecurrenceRule        *application.RecurrenceRule
	ProposedTimes         []application.TimeWindow
	ScheduledStart        *time.Time
	ScheduledEnd          *time.Time
	DurationMinutes       int
	Timezone              string
	Status                lifecycle.Status
	ConfirmedAt           *time.Time
	CompletedAt           *time.Time
	CancelledAt           *time.Time
	CancellationReason    *string
	ActualDurationMinutes *int
	SessionNotes          *string
	Outcomes              []application.Outcome
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// SessionOption configures the generated session fixture.
type SessionOption func(*SessionFixture)

// NewSessionFixture returns a proposed session with two candidate windows a
// week after ReferenceTime.
func NewSessionFixture(opts ...SessionOption) SessionFixture {
	idx := atomic.AddUint64(&sessionCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	firstStart := referenceTime.Add(7 * 24 * time.Hour)
	fixture := SessionFixture{
		ID:          fmt.Sprintf("session-%03d", idx),
		HostID:      "host-001",
		AttendeeID:  "attendee-001",
		Title:       fmt.Sprintf("Session %03d", idx),
		SessionType: application.SessionTypeOneTime,
		ProposedTimes: []application.TimeWindow{
			{Start: firstStart, End: firstStart.Add(30 * time.Minute)},
			{Start: firstStart.Add(24 * time.Hour), End: firstStart.Add(24*time.Hour + 30*time.Minute)},
		},
		DurationMinutes: 30,
		Timezone:        "UTC",
		Status:          lifecycle.StatusProposed,
		Outcomes:        []application.Outcome{},
		CreatedAt:       created,
		UpdatedAt:       created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSessionID overrides the generated session ID.
func WithSessionID(id string) SessionOption {
	return func(f *SessionFixture) {
		f.ID = id
	}
}

// WithParticipants sets the host and attendee.
func WithParticipants(hostID, attendeeID string) SessionOption {
	return func(f *SessionFixture) {
		f.HostID = hostID
		f.AttendeeID = attendeeID
	}
}

// WithSessionPlan scopes the session to a plan.
func WithSessionPlan(planID string) SessionOption {
	return func(f *SessionFixture) {
		f.PlanID = &planID
	}
}

// WithSessionTitle overrides the generated title.
func WithSessionTitle(title string) SessionOption {
	return func(f *SessionFixture) {
		f.Title = title
	}
}

// WithProposedTimes replaces the candidate windows.
func WithProposedTimes(windows ...application.TimeWindow) SessionOption {
	return func(f *SessionFixture) {
		f.ProposedTimes = windows
	}
}

// WithRecurrence marks the session recurring with the given rule.
func WithRecurrence(rule application.RecurrenceRule) SessionOption {
	return func(f *SessionFixture) {
		f.SessionType = application.SessionTypeRecurring
		f.RecurrenceRule = &rule
	}
}

// WithSessionStatus sets the status without touching lifecycle timestamps.
func WithSessionStatus(status lifecycle.Status) SessionOption {
	return func(f *SessionFixture) {
		f.Status = status
	}
}

// WithConfirmedAt confirms the session for the window starting at start.
func WithConfirmedAt(start time.Time, confirmedAt time.Time) SessionOption {
	return func(f *SessionFixture) {
		end := start.Add(time.Duration(f.DurationMinutes) * time.Minute)
		f.Status = lifecycle.StatusConfirmed
		f.ScheduledStart = &start
		f.ScheduledEnd = &end
		f.ConfirmedAt = &confirmedAt
	}
}

// WithCompletedAt marks the session completed. Apply after WithConfirmedAt.
func WithCompletedAt(completedAt time.Time) SessionOption {
	return func(f *SessionFixture) {
		f.Status = lifecycle.StatusCompleted
		f.CompletedAt = &completedAt
	}
}

// WithCancelledAt marks the session cancelled.
func WithCancelledAt(cancelledAt time.Time, reason string) SessionOption {
	return func(f *SessionFixture) {
		f.Status = lifecycle.StatusCancelled
		f.CancelledAt = &cancelledAt
		if reason != "" {
			f.CancellationReason = &reason
		}
	}
}

// WithSessionTimestamps sets both created and updated timestamps on the fixture.
func WithSessionTimestamps(created, updated time.Time) SessionOption {
	return func(f *SessionFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Application returns the fixture as an application.Session value.
func (f SessionFixture) Application() application.Session {
	windows := make([]application.TimeWindow, len(f.ProposedTimes))
	copy(windows, f.ProposedTimes)
	outcomes := make([]application.Outcome, len(f.Outcomes))
	copy(outcomes, f.Outcomes)
	return application.Session{
		ID:                    f.ID,
		HostID:                f.HostID,
		AttendeeID:            f.AttendeeID,
		PlanID:                f.PlanID,
		Title:                 f.Title,
		SessionType:           f.SessionType,
		ProposedTimes:         windows,
		ScheduledStart:        f.ScheduledStart,
		ScheduledEnd:          f.ScheduledEnd,
		DurationMinutes:       f.DurationMinutes,
		Timezone:              f.Timezone,
		RecurrenceRule:        f.RecurrenceRule,
		Status:                f.Status,
		ConfirmedAt:           f.ConfirmedAt,
		CompletedAt:           f.CompletedAt,
		CancelledAt:           f.CancelledAt,
		CancellationReason:    f.CancellationReason,
		ActualDurationMinutes: f.ActualDurationMinutes,
		SessionNotes:          f.SessionNotes,
		Outcomes:              outcomes,
		CreatedAt:             f.CreatedAt,
		UpdatedAt:             f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.Session value.
func (f SessionFixture) Persistence() persistence.Session {
	windows := make([]persistence.TimeWindow, 0, len(f.ProposedTimes))
	for _, w := range f.ProposedTimes {
		windows = append(windows, persistence.TimeWindow{Start: w.Start, End: w.End})
	}
	outcomes := make([]persistence.Outcome, 0, len(f.Outcomes))
	for _, o := range f.Outcomes {
		outcomes = append(outcomes, persistence.Outcome{ID: o.ID, Text: o.Text, Completed: o.Completed})
	}
	var rule *string
	if f.RecurrenceRule != nil {
		value := string(*f.RecurrenceRule)
		rule = &value
	}
	return persistence.Session{
		ID:                    f.ID,
		HostID:                f.HostID,
		AttendeeID:            f.AttendeeID,
		PlanID:                f.PlanID,
		Title:                 f.Title,
		SessionType:           string(f.SessionType),
		ProposedTimes:         windows,
		ScheduledStart:        f.ScheduledStart,
		ScheduledEnd:          f.ScheduledEnd,
		DurationMinutes:       f.DurationMinutes,
		Timezone:              f.Timezone,
		RecurrenceRule:        rule,
		Status:                string(f.Status),
		ConfirmedAt:           f.ConfirmedAt,
		CompletedAt:           f.CompletedAt,
		CancelledAt:           f.CancelledAt,
		CancellationReason:    f.CancellationReason,
		ActualDurationMinutes: f.ActualDurationMinutes,
		SessionNotes:          f.SessionNotes,
		Outcomes:              outcomes,
		CreatedAt:             f.CreatedAt,
		UpdatedAt:             f.UpdatedAt,
	}
}

// ----------------------------- Reminder fixtures -----------------------------

// ReminderFixture represents a deterministic reminder row.
type ReminderFixture struct {
	ID           string
	SessionID    string
	UserID       string
	Type         reminder.Type
	ReminderTime time.Time
	CreatedAt    time.Time
}

// ReminderOption configures the generated reminder fixture.
type ReminderOption func(*ReminderFixture)

// NewReminderFixture returns a day-before reminder for the attendee.
func NewReminderFixture(sessionID string, opts ...ReminderOption) ReminderFixture {
	idx := atomic.AddUint64(&reminderCounter, 1)
	fixture := ReminderFixture{
		ID:           fmt.Sprintf("reminder-%03d", idx),
		SessionID:    sessionID,
		UserID:       "attendee-001",
		Type:         reminder.TypeDayBefore,
		ReminderTime: referenceTime.Add(6 * 24 * time.Hour),
		CreatedAt:    referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithReminderID overrides the generated reminder ID.
func WithReminderID(id string) ReminderOption {
	return func(f *ReminderFixture) {
		f.ID = id
	}
}

// WithReminderUser sets the recipient.
func WithReminderUser(userID string) ReminderOption {
	return func(f *ReminderFixture) {
		f.UserID = userID
	}
}

// WithReminderType sets the type and fire time.
func WithReminderType(kind reminder.Type, at time.Time) ReminderOption {
	return func(f *ReminderFixture) {
		f.Type = kind
		f.ReminderTime = at
	}
}

// Application returns the fixture as an application.Reminder value.
func (f ReminderFixture) Application() application.Reminder {
	return application.Reminder{
		ID:           f.ID,
		SessionID:    f.SessionID,
		UserID:       f.UserID,
		Type:         f.Type,
		ReminderTime: f.ReminderTime,
		CreatedAt:    f.CreatedAt,
	}
}

// Persistence returns the fixture as a persistence.Reminder value.
func (f ReminderFixture) Persistence() persistence.Reminder {
	return persistence.Reminder{
		ID:           f.ID,
		SessionID:    f.SessionID,
		UserID:       f.UserID,
		ReminderType: string(f.Type),
		ReminderTime: f.ReminderTime,
		CreatedAt:    f.CreatedAt,
	}
}

// ----------------------------- Grant fixtures -----------------------------

// GrantFixture represents a deterministic collaboration grant.
type GrantFixture struct {
	ID        string
	UserA     string
	UserB     string
	PlanID    *string
	Role      string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GrantOption configures the generated grant fixture.
type GrantOption func(*GrantFixture)

// NewGrantFixture returns an active grant between userA and userB covering every plan.
func NewGrantFixture(userA, userB string, opts ...GrantOption) GrantFixture {
	idx := atomic.AddUint64(&grantCounter, 1)
	fixture := GrantFixture{
		ID:        fmt.Sprintf("grant-%03d", idx),
		UserA:     userA,
		UserB:     userB,
		Role:      "coach",
		Active:    true,
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithGrantPlan scopes the grant to a plan.
func WithGrantPlan(planID string) GrantOption {
	return func(f *GrantFixture) {
		f.PlanID = &planID
	}
}

// WithGrantActive sets the active flag.
func WithGrantActive(active bool) GrantOption {
	return func(f *GrantFixture) {
		f.Active = active
	}
}

// WithGrantRole overrides the role label.
func WithGrantRole(role string) GrantOption {
	return func(f *GrantFixture) {
		f.Role = role
	}
}

// Persistence returns the fixture as a persistence.CollaborationGrant value.
func (f GrantFixture) Persistence() persistence.CollaborationGrant {
	return persistence.CollaborationGrant{
		ID:        f.ID,
		UserA:     f.UserA,
		UserB:     f.UserB,
		PlanID:    f.PlanID,
		Role:      f.Role,
		Active:    f.Active,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}
