// Package memory provides a map-backed implementation of the persistence
// repositories with the same conditional-update semantics as the SQLite store.
package memory

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/example/collab-sessions/internal/persistence"
)

type reminderKey struct {
	sessionID string
	userID    string
	kind      string
}

// Store holds sessions, reminders and grants in memory.
type Store struct {
	mu        sync.RWMutex
	sessions  map[string]persistence.Session
	reminders map[reminderKey]persistence.Reminder
	grants    map[string]persistence.CollaborationGrant
}

// New returns an empty store.
func New() *Store {
	return &Store{
		sessions:  make(map[string]persistence.Session),
		reminders: make(map[reminderKey]persistence.Reminder),
		grants:    make(map[string]persistence.CollaborationGrant),
	}
}

// --- SessionRepository implementation ---

func (s *Store) CreateSession(ctx context.Context, session persistence.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if session.ID == "" || session.HostID == session.AttendeeID {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; ok {
		return persistence.ErrDuplicate
	}
	s.sessions[session.ID] = cloneSession(session)
	return nil
}

func (s *Store) GetSession(ctx context.Context, id string) (persistence.Session, error) {
	if err := ctx.Err(); err != nil {
		return persistence.Session{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return persistence.Session{}, persistence.ErrNotFound
	}
	return cloneSession(session), nil
}

func (s *Store) ListSessions(ctx context.Context, filter persistence.SessionFilter) ([]persistence.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []persistence.Session
	for _, session := range s.sessions {
		if matches(session, filter) {
			out = append(out, cloneSession(session))
		}
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.ScheduledStart == nil && b.ScheduledStart != nil:
			return false
		case a.ScheduledStart != nil && b.ScheduledStart == nil:
			return true
		case a.ScheduledStart != nil && !a.ScheduledStart.Equal(*b.ScheduledStart):
			if filter.Descending {
				return a.ScheduledStart.After(*b.ScheduledStart)
			}
			return a.ScheduledStart.Before(*b.ScheduledStart)
		case !a.CreatedAt.Equal(b.CreatedAt):
			return a.CreatedAt.After(b.CreatedAt)
		default:
			return a.ID < b.ID
		}
	})

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Store) TransitionSession(ctx context.Context, transition persistence.SessionTransition) (persistence.Session, error) {
	if err := ctx.Err(); err != nil {
		return persistence.Session{}, err
	}
	if len(transition.FromStatuses) == 0 || transition.Changes.UpdatedAt.IsZero() {
		return persistence.Session{}, errors.New("memory: transition requires source statuses and updated_at")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[transition.SessionID]
	if !ok || !slices.Contains(transition.FromStatuses, session.Status) {
		return persistence.Session{}, persistence.ErrPreconditionFailed
	}

	applyChanges(&session, transition.Changes)
	if session.ScheduledStart != nil && session.ScheduledEnd != nil && !session.ScheduledStart.Before(*session.ScheduledEnd) {
		return persistence.Session{}, persistence.ErrConstraintViolation
	}
	s.sessions[session.ID] = session
	return cloneSession(session), nil
}

func (s *Store) DeleteSession(ctx context.Context, id string, allowedStatuses []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok || !slices.Contains(allowedStatuses, session.Status) {
		return persistence.ErrPreconditionFailed
	}
	delete(s.sessions, id)
	for key := range s.reminders {
		if key.sessionID == id {
			delete(s.reminders, key)
		}
	}
	return nil
}

// --- ReminderRepository implementation ---

func (s *Store) CreateReminders(ctx context.Context, reminders []persistence.Reminder) ([]persistence.Reminder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range reminders {
		if r.ID == "" {
			return nil, persistence.ErrConstraintViolation
		}
		if _, ok := s.sessions[r.SessionID]; !ok {
			return nil, persistence.ErrForeignKeyViolation
		}
	}

	out := make([]persistence.Reminder, 0, len(reminders))
	for _, r := range reminders {
		key := reminderKey{sessionID: r.SessionID, userID: r.UserID, kind: r.ReminderType}
		existing, ok := s.reminders[key]
		if !ok {
			existing = cloneReminder(r)
			existing.ReminderTime = existing.ReminderTime.UTC()
			s.reminders[key] = existing
		}
		out = append(out, cloneReminder(existing))
	}
	return out, nil
}

func (s *Store) ListRemindersForSession(ctx context.Context, sessionID string) ([]persistence.Reminder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []persistence.Reminder
	for key, r := range s.reminders {
		if key.sessionID == sessionID {
			out = append(out, cloneReminder(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ReminderTime.Equal(out[j].ReminderTime) {
			return out[i].ReminderTime.Before(out[j].ReminderTime)
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

// --- GrantRepository implementation ---

func (s *Store) PutGrant(ctx context.Context, grant persistence.CollaborationGrant) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if grant.ID == "" || grant.UserA == "" || grant.UserB == "" || grant.UserA == grant.UserB {
		return persistence.ErrConstraintViolation
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, existing := range s.grants {
		if samePair(existing, grant.UserA, grant.UserB) && equalPtr(existing.PlanID, grant.PlanID) {
			existing.Role = grant.Role
			existing.Active = grant.Active
			existing.UpdatedAt = grant.UpdatedAt
			s.grants[id] = existing
			return nil
		}
	}
	s.grants[grant.ID] = cloneGrant(grant)
	return nil
}

func (s *Store) HasActiveGrant(ctx context.Context, userA, userB string, planID *string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, g := range s.grants {
		if !g.Active || !samePair(g, userA, userB) {
			continue
		}
		if planID == nil || g.PlanID == nil || *g.PlanID == *planID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ListGrantsForUser(ctx context.Context, userID string) ([]persistence.CollaborationGrant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []persistence.CollaborationGrant
	for _, g := range s.grants {
		if g.UserA == userID || g.UserB == userID {
			out = append(out, cloneGrant(g))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func matches(session persistence.Session, filter persistence.SessionFilter) bool {
	switch filter.Role {
	case persistence.RoleHost:
		if session.HostID != filter.UserID {
			return false
		}
	case persistence.RoleAttendee:
		if session.AttendeeID != filter.UserID {
			return false
		}
	default:
		if session.HostID != filter.UserID && session.AttendeeID != filter.UserID {
			return false
		}
	}
	if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, session.Status) {
		return false
	}
	if filter.PlanID != nil && (session.PlanID == nil || *session.PlanID != *filter.PlanID) {
		return false
	}
	if filter.From != nil || filter.To != nil {
		start := session.ScheduledStart
		if start == nil {
			return filter.IncludeUnscheduled
		}
		if filter.From != nil && start.Before(*filter.From) {
			return false
		}
		if filter.To != nil && !start.Before(*filter.To) {
			return false
		}
	}
	return true
}

func applyChanges(session *persistence.Session, c persistence.SessionChanges) {
	if c.Status != nil {
		session.Status = *c.Status
	}
	if c.ScheduledStart != nil {
		session.ScheduledStart = utcPtr(c.ScheduledStart)
	}
	if c.ScheduledEnd != nil {
		session.ScheduledEnd = utcPtr(c.ScheduledEnd)
	}
	if c.ConfirmedAt != nil {
		session.ConfirmedAt = utcPtr(c.ConfirmedAt)
	}
	if c.CompletedAt != nil {
		session.CompletedAt = utcPtr(c.CompletedAt)
	}
	if c.CancelledAt != nil {
		session.CancelledAt = utcPtr(c.CancelledAt)
	}
	if c.CancellationReason != nil {
		session.CancellationReason = clonePtr(c.CancellationReason)
	}
	if c.ActualDurationMinutes != nil {
		session.ActualDurationMinutes = clonePtr(c.ActualDurationMinutes)
	}
	if c.SessionNotes != nil {
		session.SessionNotes = clonePtr(c.SessionNotes)
	}
	if c.Outcomes != nil {
		session.Outcomes = slices.Clone(c.Outcomes)
	}
	session.UpdatedAt = c.UpdatedAt.UTC()
}

func samePair(g persistence.CollaborationGrant, a, b string) bool {
	return (g.UserA == a && g.UserB == b) || (g.UserA == b && g.UserB == a)
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func cloneSession(s persistence.Session) persistence.Session {
	c := s
	c.PlanID = clonePtr(s.PlanID)
	c.Description = clonePtr(s.Description)
	c.ProposedTimes = slices.Clone(s.ProposedTimes)
	if c.ProposedTimes == nil {
		c.ProposedTimes = []persistence.TimeWindow{}
	}
	c.ScheduledStart = utcPtr(s.ScheduledStart)
	c.ScheduledEnd = utcPtr(s.ScheduledEnd)
	c.RecurrenceRule = clonePtr(s.RecurrenceRule)
	c.RecurrenceEndDate = utcPtr(s.RecurrenceEndDate)
	c.ParentSessionID = clonePtr(s.ParentSessionID)
	c.MeetingProvider = clonePtr(s.MeetingProvider)
	c.MeetingLink = clonePtr(s.MeetingLink)
	c.MeetingID = clonePtr(s.MeetingID)
	c.ConfirmedAt = utcPtr(s.ConfirmedAt)
	c.CompletedAt = utcPtr(s.CompletedAt)
	c.CancelledAt = utcPtr(s.CancelledAt)
	c.CancellationReason = clonePtr(s.CancellationReason)
	c.ActualDurationMinutes = clonePtr(s.ActualDurationMinutes)
	c.SessionNotes = clonePtr(s.SessionNotes)
	c.Outcomes = slices.Clone(s.Outcomes)
	if c.Outcomes == nil {
		c.Outcomes = []persistence.Outcome{}
	}
	c.CreatedAt = s.CreatedAt.UTC()
	c.UpdatedAt = s.UpdatedAt.UTC()
	return c
}

func cloneReminder(r persistence.Reminder) persistence.Reminder {
	c := r
	c.EmailSentAt = utcPtr(r.EmailSentAt)
	c.InAppSentAt = utcPtr(r.InAppSentAt)
	return c
}

func cloneGrant(g persistence.CollaborationGrant) persistence.CollaborationGrant {
	c := g
	c.PlanID = clonePtr(g.PlanID)
	return c
}
