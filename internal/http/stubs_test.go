package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/example/collab-sessions/internal/application"
	"github.com/example/collab-sessions/internal/lifecycle"
)

var stubNow = time.Date(2025, time.February, 20, 9, 0, 0, 0, time.UTC)

// stubSessionService records the last call and answers with canned values.
type stubSessionService struct {
	mu sync.Mutex

	session   application.Session
	sessions  []application.Session
	reminders []application.Reminder
	err       error

	calls     []string
	principal application.Principal
	sessionID string
	create    application.CreateSessionParams
	confirm   application.ConfirmSessionParams
	cancel    application.CancelSessionParams
	complete  application.CompleteSessionParams
	notes     application.UpdateNotesParams
	list      application.ListSessionsParams
	limit     int
}

func (s *stubSessionService) record(call string, principal application.Principal, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
	s.principal = principal
	s.sessionID = sessionID
}

func (s *stubSessionService) lastCall() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return ""
	}
	return s.calls[len(s.calls)-1]
}

func (s *stubSessionService) CreateSession(ctx context.Context, params application.CreateSessionParams) (application.Session, error) {
	s.record("CreateSession", params.Principal, "")
	s.create = params
	return s.session, s.err
}

func (s *stubSessionService) GetSession(ctx context.Context, principal application.Principal, sessionID string) (application.Session, error) {
	s.record("GetSession", principal, sessionID)
	return s.session, s.err
}

func (s *stubSessionService) ListSessions(ctx context.Context, params application.ListSessionsParams) ([]application.Session, error) {
	s.record("ListSessions", params.Principal, "")
	s.list = params
	return s.sessions, s.err
}

func (s *stubSessionService) UpcomingSessions(ctx context.Context, principal application.Principal, limit int) ([]application.Session, error) {
	s.record("UpcomingSessions", principal, "")
	s.limit = limit
	return s.sessions, s.err
}

func (s *stubSessionService) PastSessions(ctx context.Context, principal application.Principal, limit int) ([]application.Session, error) {
	s.record("PastSessions", principal, "")
	s.limit = limit
	return s.sessions, s.err
}

func (s *stubSessionService) ConfirmSession(ctx context.Context, params application.ConfirmSessionParams) (application.Session, error) {
	s.record("ConfirmSession", params.Principal, params.SessionID)
	s.confirm = params
	return s.session, s.err
}

func (s *stubSessionService) CancelSession(ctx context.Context, params application.CancelSessionParams) (application.Session, error) {
	s.record("CancelSession", params.Principal, params.SessionID)
	s.cancel = params
	return s.session, s.err
}

func (s *stubSessionService) CompleteSession(ctx context.Context, params application.CompleteSessionParams) (application.Session, error) {
	s.record("CompleteSession", params.Principal, params.SessionID)
	s.complete = params
	return s.session, s.err
}

func (s *stubSessionService) MarkNoShow(ctx context.Context, principal application.Principal, sessionID string) (application.Session, error) {
	s.record("MarkNoShow", principal, sessionID)
	return s.session, s.err
}

func (s *stubSessionService) UpdateNotes(ctx context.Context, params application.UpdateNotesParams) (application.Session, error) {
	s.record("UpdateNotes", params.Principal, params.SessionID)
	s.notes = params
	return s.session, s.err
}

func (s *stubSessionService) DeleteSession(ctx context.Context, principal application.Principal, sessionID string) error {
	s.record("DeleteSession", principal, sessionID)
	return s.err
}

func (s *stubSessionService) ListReminders(ctx context.Context, principal application.Principal, sessionID string) ([]application.Reminder, error) {
	s.record("ListReminders", principal, sessionID)
	return s.reminders, s.err
}

func (s *stubSessionService) RetryReminders(ctx context.Context, principal application.Principal, sessionID string) ([]application.Reminder, error) {
	s.record("RetryReminders", principal, sessionID)
	return s.reminders, s.err
}

func sampleSession(status lifecycle.Status) application.Session {
	start := stubNow.Add(7 * 24 * time.Hour)
	return application.Session{
		ID:              "session-1",
		HostID:          "host-1",
		AttendeeID:      "attendee-1",
		Title:           "Weekly sync",
		SessionType:     application.SessionTypeOneTime,
		ProposedTimes:   []application.TimeWindow{{Start: start, End: start.Add(30 * time.Minute)}},
		DurationMinutes: 30,
		Timezone:        "UTC",
		Status:          status,
		CreatedAt:       stubNow,
		UpdatedAt:       stubNow,
	}
}

// asPrincipal attaches an authenticated caller the way RequireIdentity would.
func asPrincipal(r *http.Request, userID string) *http.Request {
	return r.WithContext(ContextWithPrincipal(r.Context(), application.Principal{UserID: userID}))
}
