package application

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/example/collab-sessions/internal/lifecycle"
	"github.com/example/collab-sessions/internal/persistence"
)

type stubSessionRepository struct {
	mu       sync.Mutex
	sessions map[string]Session
	queries  []SessionQuery

	createErr error
	getErr    error
	listErr   error
	// beforeTransition runs inside TransitionSession before the status check,
	// simulating a concurrent writer.
	beforeTransition func(map[string]Session)
}

func newStubSessionRepository(sessions ...Session) *stubSessionRepository {
	repo := &stubSessionRepository{sessions: make(map[string]Session)}
	for _, s := range sessions {
		repo.sessions[s.ID] = s
	}
	return repo
}

func (r *stubSessionRepository) CreateSession(_ context.Context, session Session) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return Session{}, r.createErr
	}
	if _, ok := r.sessions[session.ID]; ok {
		return Session{}, persistence.ErrDuplicate
	}
	r.sessions[session.ID] = session
	return session, nil
}

func (r *stubSessionRepository) GetSession(_ context.Context, id string) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return Session{}, r.getErr
	}
	s, ok := r.sessions[id]
	if !ok {
		return Session{}, persistence.ErrNotFound
	}
	return s, nil
}

func (r *stubSessionRepository) ListSessions(_ context.Context, query SessionQuery) ([]Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, query)
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []Session
	for _, s := range r.sessions {
		if s.IsParticipant(query.UserID) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *stubSessionRepository) TransitionSession(_ context.Context, transition SessionTransition) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.beforeTransition != nil {
		r.beforeTransition(r.sessions)
	}
	s, ok := r.sessions[transition.SessionID]
	if !ok || !slices.Contains(transition.From, s.Status) {
		return Session{}, persistence.ErrPreconditionFailed
	}
	c := transition.Changes
	if c.Status != nil {
		s.Status = *c.Status
	}
	if c.ScheduledStart != nil {
		s.ScheduledStart = c.ScheduledStart
	}
	if c.ScheduledEnd != nil {
		s.ScheduledEnd = c.ScheduledEnd
	}
	if c.ConfirmedAt != nil {
		s.ConfirmedAt = c.ConfirmedAt
	}
	if c.CompletedAt != nil {
		s.CompletedAt = c.CompletedAt
	}
	if c.CancelledAt != nil {
		s.CancelledAt = c.CancelledAt
	}
	if c.CancellationReason != nil {
		s.CancellationReason = c.CancellationReason
	}
	if c.ActualDurationMinutes != nil {
		s.ActualDurationMinutes = c.ActualDurationMinutes
	}
	if c.SessionNotes != nil {
		s.SessionNotes = c.SessionNotes
	}
	if c.Outcomes != nil {
		s.Outcomes = c.Outcomes
	}
	s.UpdatedAt = c.UpdatedAt
	r.sessions[s.ID] = s
	return s, nil
}

func (r *stubSessionRepository) DeleteSession(_ context.Context, id string, allowed []lifecycle.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || !slices.Contains(allowed, s.Status) {
		return persistence.ErrPreconditionFailed
	}
	delete(r.sessions, id)
	return nil
}

func (r *stubSessionRepository) get(id string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

type grantKey struct{ a, b, plan string }

type stubGrantDirectory struct {
	grants map[grantKey]bool
	err    error
	calls  int
}

func newStubGrantDirectory() *stubGrantDirectory {
	return &stubGrantDirectory{grants: make(map[grantKey]bool)}
}

func (d *stubGrantDirectory) allow(a, b, plan string) *stubGrantDirectory {
	d.grants[grantKey{a, b, plan}] = true
	return d
}

func (d *stubGrantDirectory) HasActiveGrant(_ context.Context, a, b string, planID *string) (bool, error) {
	d.calls++
	if d.err != nil {
		return false, d.err
	}
	for key := range d.grants {
		pair := (key.a == a && key.b == b) || (key.a == b && key.b == a)
		if !pair {
			continue
		}
		if planID == nil || key.plan == "" || key.plan == *planID {
			return true, nil
		}
	}
	return false, nil
}

type reminderKey struct{ session, user, kind string }

type stubReminderRepository struct {
	mu    sync.Mutex
	rows  map[reminderKey]Reminder
	order []reminderKey
	err   error
}

func newStubReminderRepository() *stubReminderRepository {
	return &stubReminderRepository{rows: make(map[reminderKey]Reminder)}
}

func (r *stubReminderRepository) CreateReminders(_ context.Context, reminders []Reminder) ([]Reminder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	out := make([]Reminder, 0, len(reminders))
	for _, rem := range reminders {
		key := reminderKey{rem.SessionID, rem.UserID, string(rem.Type)}
		existing, ok := r.rows[key]
		if !ok {
			existing = rem
			r.rows[key] = rem
			r.order = append(r.order, key)
		}
		out = append(out, existing)
	}
	return out, nil
}

func (r *stubReminderRepository) ListRemindersForSession(_ context.Context, sessionID string) ([]Reminder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Reminder
	for _, key := range r.order {
		if key.session == sessionID {
			out = append(out, r.rows[key])
		}
	}
	return out, nil
}

func (r *stubReminderRepository) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

type stubReminderIndex struct {
	published  []Reminder
	retracted  []string
	err        error
	retractErr error
}

func (i *stubReminderIndex) Publish(_ context.Context, reminders []Reminder) error {
	if i.err != nil {
		return i.err
	}
	i.published = append(i.published, reminders...)
	return nil
}

func (i *stubReminderIndex) Retract(_ context.Context, sessionID string) error {
	if i.retractErr != nil {
		return i.retractErr
	}
	i.retracted = append(i.retracted, sessionID)
	return nil
}

var errStoreDown = errors.New("store unavailable")

func sequentialIDs(prefix string) func() string {
	var (
		mu sync.Mutex
		n  int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return prefix + "-" + strconv.Itoa(n)
	}
}

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
