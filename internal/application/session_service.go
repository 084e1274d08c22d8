package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/example/collab-sessions/internal/lifecycle"
	"github.com/example/collab-sessions/internal/persistence"
)

// SessionRepository captures the persistence interactions needed by the service.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, id string) (Session, error)
	ListSessions(ctx context.Context, query SessionQuery) ([]Session, error)
	// TransitionSession returns persistence.ErrPreconditionFailed when the row
	// is missing or its status is not in transition.From.
	TransitionSession(ctx context.Context, transition SessionTransition) (Session, error)
	// DeleteSession returns persistence.ErrPreconditionFailed when the row is
	// missing or its status is not in allowed.
	DeleteSession(ctx context.Context, id string, allowed []lifecycle.Status) error
}

// SessionPolicy holds deployment choices of the lifecycle.
type SessionPolicy struct {
	// AllowHostConfirm lets the host confirm as well as the attendee.
	AllowHostConfirm bool
	// DefaultListLimit caps upcoming and past listings when the caller gives no limit.
	DefaultListLimit int
}

const defaultListLimit = 10

// SessionService runs the session lifecycle.
type SessionService struct {
	sessions    SessionRepository
	authorizer  *CollaborationAuthorizer
	reminders   *ReminderService
	policy      SessionPolicy
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewSessionService wires dependencies for session operations. reminders may
// be nil, in which case confirmation records no reminders.
func NewSessionService(sessions SessionRepository, authorizer *CollaborationAuthorizer, reminders *ReminderService, policy SessionPolicy, idGenerator func() string, now func() time.Time, logger *slog.Logger) *SessionService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if policy.DefaultListLimit <= 0 {
		policy.DefaultListLimit = defaultListLimit
	}
	return &SessionService{
		sessions:    sessions,
		authorizer:  authorizer,
		reminders:   reminders,
		policy:      policy,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *SessionService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "SessionService", operation, attrs...)
}

// CreateSession proposes a session hosted by the principal.
func (s *SessionService) CreateSession(ctx context.Context, params CreateSessionParams) (_ Session, err error) {
	if s == nil {
		return Session{}, fmt.Errorf("SessionService is nil")
	}
	ctx, span := startSpan(ctx, "SessionService.CreateSession")
	defer func() { endSpan(span, err) }()

	hostID := strings.TrimSpace(params.Principal.UserID)
	input := params.Input
	logger := s.loggerWith(ctx, "CreateSession",
		"host_id", hostID,
		"attendee_id", input.AttendeeID,
	)
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "session proposal rejected", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	if hostID == "" {
		return Session{}, unauthorized("principal is required")
	}

	normalized, vErr := normalizeSessionInput(hostID, input)
	if vErr.HasErrors() {
		return Session{}, vErr
	}

	allowed, err := s.authorizer.Check(ctx, hostID, normalized.AttendeeID, normalized.PlanID)
	if err != nil {
		return Session{}, err
	}
	if !allowed {
		return Session{}, unauthorized("host and attendee must be collaborators")
	}

	createdAt := s.now().UTC()
	session := Session{
		ID:                s.idGenerator(),
		HostID:            hostID,
		AttendeeID:        normalized.AttendeeID,
		PlanID:            normalized.PlanID,
		Title:             normalized.Title,
		Description:       normalized.Description,
		SessionType:       normalized.SessionType,
		ProposedTimes:     normalized.ProposedTimes,
		DurationMinutes:   normalized.DurationMinutes,
		Timezone:          normalized.Timezone,
		RecurrenceRule:    normalized.RecurrenceRule,
		RecurrenceEndDate: normalized.RecurrenceEndDate,
		ParentSessionID:   normalized.ParentSessionID,
		MeetingProvider:   normalized.MeetingProvider,
		MeetingLink:       normalized.MeetingLink,
		MeetingID:         normalized.MeetingID,
		Status:            lifecycle.StatusProposed,
		Outcomes:          []Outcome{},
		CreatedAt:         createdAt,
		UpdatedAt:         createdAt,
	}
	span.SetAttributes(attribute.String("session.id", session.ID))

	if s.sessions == nil {
		return session, nil
	}
	persisted, err := s.sessions.CreateSession(ctx, session)
	if err != nil {
		return Session{}, mapSessionRepoError("create session", err)
	}

	logger.With("session_id", persisted.ID).InfoContext(ctx, "session proposed",
		"proposed_windows", len(persisted.ProposedTimes),
	)
	return persisted, nil
}

// GetSession returns the session when the principal takes part in it.
func (s *SessionService) GetSession(ctx context.Context, principal Principal, sessionID string) (Session, error) {
	if s == nil {
		return Session{}, fmt.Errorf("SessionService is nil")
	}
	return s.loadForParticipant(ctx, principal, sessionID)
}

// ConfirmSession selects one of the proposed windows and records reminders for
// both participants. Reminder failures are logged and never fail the confirmation.
func (s *SessionService) ConfirmSession(ctx context.Context, params ConfirmSessionParams) (Session, error) {
	selected := params.SelectedTime
	confirmed, err := s.transition(ctx, params.Principal, params.SessionID, lifecycle.ActionConfirm,
		func(current Session) (SessionChanges, error) {
			if current.AttendeeID != params.Principal.UserID && !s.policy.AllowHostConfirm {
				return SessionChanges{}, unauthorized("only the attendee may confirm")
			}
			vErr := &ValidationError{}
			vErr.merge(validateWindow("selected_time", selected))
			if vErr.HasErrors() {
				return SessionChanges{}, vErr
			}
			if !containsWindow(current.ProposedTimes, selected) {
				vErr.add("selected_time", "must match one of the proposed times")
				return SessionChanges{}, vErr
			}

			now := s.now().UTC()
			start, end := selected.Start.UTC(), selected.End.UTC()
			return SessionChanges{
				ScheduledStart: &start,
				ScheduledEnd:   &end,
				ConfirmedAt:    &now,
				UpdatedAt:      now,
			}, nil
		})
	if err != nil {
		return Session{}, err
	}

	s.scheduleReminders(ctx, confirmed)
	return confirmed, nil
}

// CancelSession cancels a proposed or confirmed session.
func (s *SessionService) CancelSession(ctx context.Context, params CancelSessionParams) (Session, error) {
	return s.transition(ctx, params.Principal, params.SessionID, lifecycle.ActionCancel,
		func(Session) (SessionChanges, error) {
			now := s.now().UTC()
			return SessionChanges{
				CancelledAt:        &now,
				CancellationReason: trimmedPtr(params.Reason),
				UpdatedAt:          now,
			}, nil
		})
}

// CompleteSession closes a confirmed session and stores its outcome fields.
func (s *SessionService) CompleteSession(ctx context.Context, params CompleteSessionParams) (Session, error) {
	return s.transition(ctx, params.Principal, params.SessionID, lifecycle.ActionComplete,
		func(Session) (SessionChanges, error) {
			outcomes, vErr := s.normalizeOutcomeFields(params.Outcomes, params.ActualDurationMinutes)
			if vErr.HasErrors() {
				return SessionChanges{}, vErr
			}
			now := s.now().UTC()
			return SessionChanges{
				CompletedAt:           &now,
				SessionNotes:          params.Notes,
				Outcomes:              outcomes,
				ActualDurationMinutes: params.ActualDurationMinutes,
				UpdatedAt:             now,
			}, nil
		})
}

// MarkNoShow records that the session did not take place.
func (s *SessionService) MarkNoShow(ctx context.Context, principal Principal, sessionID string) (Session, error) {
	return s.transition(ctx, principal, sessionID, lifecycle.ActionMarkNoShow,
		func(Session) (SessionChanges, error) {
			now := s.now().UTC()
			return SessionChanges{
				CompletedAt: &now,
				UpdatedAt:   now,
			}, nil
		})
}

// UpdateNotes overwrites outcome capture fields of a confirmed or completed session.
func (s *SessionService) UpdateNotes(ctx context.Context, params UpdateNotesParams) (Session, error) {
	return s.transition(ctx, params.Principal, params.SessionID, lifecycle.ActionUpdateNotes,
		func(Session) (SessionChanges, error) {
			if params.Notes == nil && params.Outcomes == nil && params.ActualDurationMinutes == nil {
				vErr := &ValidationError{}
				vErr.add("notes", "at least one of notes, outcomes or actual_duration_minutes is required")
				return SessionChanges{}, vErr
			}
			outcomes, vErr := s.normalizeOutcomeFields(params.Outcomes, params.ActualDurationMinutes)
			if vErr.HasErrors() {
				return SessionChanges{}, vErr
			}
			return SessionChanges{
				SessionNotes:          params.Notes,
				Outcomes:              outcomes,
				ActualDurationMinutes: params.ActualDurationMinutes,
				UpdatedAt:             s.now().UTC(),
			}, nil
		})
}

// DeleteSession removes a proposed or cancelled session.
func (s *SessionService) DeleteSession(ctx context.Context, principal Principal, sessionID string) (err error) {
	if s == nil {
		return fmt.Errorf("SessionService is nil")
	}
	ctx, span := startSpan(ctx, "SessionService.DeleteSession", attribute.String("session.id", sessionID))
	defer func() { endSpan(span, err) }()

	logger := s.loggerWith(ctx, "DeleteSession", "session_id", sessionID, "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "session delete rejected", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	current, err := s.loadForParticipant(ctx, principal, sessionID)
	if err != nil {
		return err
	}
	if !lifecycle.Allowed(current.Status, lifecycle.ActionDelete) {
		return &StateError{SessionID: sessionID, Current: current.Status, Action: lifecycle.ActionDelete}
	}

	err = s.sessions.DeleteSession(ctx, sessionID, lifecycle.SourceStates(lifecycle.ActionDelete))
	if err != nil {
		return s.resolvePrecondition(ctx, sessionID, lifecycle.ActionDelete, err)
	}
	logger.InfoContext(ctx, "session deleted", "status", current.Status)
	return nil
}

// ListReminders returns the reminder rows of a session the principal takes part in.
func (s *SessionService) ListReminders(ctx context.Context, principal Principal, sessionID string) ([]Reminder, error) {
	if _, err := s.loadForParticipant(ctx, principal, sessionID); err != nil {
		return nil, err
	}
	if s.reminders == nil {
		return nil, nil
	}
	return s.reminders.ListReminders(ctx, sessionID)
}

// RetryReminders records any missing reminders for both participants of a
// confirmed session. Unlike confirmation, failures are returned.
func (s *SessionService) RetryReminders(ctx context.Context, principal Principal, sessionID string) ([]Reminder, error) {
	current, err := s.loadForParticipant(ctx, principal, sessionID)
	if err != nil {
		return nil, err
	}
	if current.Status != lifecycle.StatusConfirmed || current.ScheduledStart == nil {
		return nil, &StateError{SessionID: sessionID, Current: current.Status, Action: "create_reminders"}
	}
	if s.reminders == nil {
		return nil, nil
	}

	var out []Reminder
	for _, userID := range []string{current.HostID, current.AttendeeID} {
		rows, err := s.reminders.CreateReminders(ctx, current.ID, userID, *current.ScheduledStart)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

// transition loads the session, checks the principal and the source status,
// then issues one conditional update. build computes the changes and may
// reject the request.
func (s *SessionService) transition(ctx context.Context, principal Principal, sessionID string, action lifecycle.Action, build func(Session) (SessionChanges, error)) (_ Session, err error) {
	if s == nil {
		return Session{}, fmt.Errorf("SessionService is nil")
	}
	ctx, span := startSpan(ctx, "SessionService.Transition",
		attribute.String("session.id", sessionID),
		attribute.String("session.action", string(action)),
	)
	defer func() { endSpan(span, err) }()

	logger := s.loggerWith(ctx, string(action), "session_id", sessionID, "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "session transition rejected", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	current, err := s.loadForParticipant(ctx, principal, sessionID)
	if err != nil {
		return Session{}, err
	}
	if !lifecycle.Allowed(current.Status, action) {
		return Session{}, &StateError{SessionID: sessionID, Current: current.Status, Action: action}
	}

	changes, err := build(current)
	if err != nil {
		return Session{}, err
	}
	if target, ok := lifecycle.Target(action); ok {
		changes.Status = &target
	}

	updated, err := s.sessions.TransitionSession(ctx, SessionTransition{
		SessionID: sessionID,
		From:      lifecycle.SourceStates(action),
		Changes:   changes,
	})
	if err != nil {
		return Session{}, s.resolvePrecondition(ctx, sessionID, action, err)
	}

	logger.InfoContext(ctx, "session transitioned", "from", current.Status, "to", updated.Status)
	if current.ScheduledStart != nil && lifecycle.IsTerminal(updated.Status) {
		// Reminders only exist for scheduled sessions.
		_ = s.reminders.RetractReminders(ctx, updated.ID)
	}
	return updated, nil
}

// resolvePrecondition turns a zero-row conditional write into ErrNotFound or a
// StateError by reading the row again.
func (s *SessionService) resolvePrecondition(ctx context.Context, sessionID string, action lifecycle.Action, err error) error {
	if !errors.Is(err, persistence.ErrPreconditionFailed) {
		return mapSessionRepoError(string(action), err)
	}
	latest, getErr := s.sessions.GetSession(ctx, sessionID)
	if getErr != nil {
		return mapSessionRepoError("get session", getErr)
	}
	return &StateError{SessionID: sessionID, Current: latest.Status, Action: action}
}

func (s *SessionService) loadForParticipant(ctx context.Context, principal Principal, sessionID string) (Session, error) {
	if strings.TrimSpace(principal.UserID) == "" {
		return Session{}, unauthorized("principal is required")
	}
	if strings.TrimSpace(sessionID) == "" {
		return Session{}, ErrNotFound
	}
	if s.sessions == nil {
		return Session{}, ErrNotFound
	}
	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return Session{}, mapSessionRepoError("get session", err)
	}
	if !session.IsParticipant(principal.UserID) {
		return Session{}, unauthorized("principal is not a participant of the session")
	}
	return session, nil
}

func (s *SessionService) scheduleReminders(ctx context.Context, session Session) {
	if s.reminders == nil || session.ScheduledStart == nil {
		return
	}
	logger := s.loggerWith(ctx, "ConfirmSession", "session_id", session.ID)
	for _, userID := range []string{session.HostID, session.AttendeeID} {
		if _, err := s.reminders.CreateReminders(ctx, session.ID, userID, *session.ScheduledStart); err != nil {
			logger.ErrorContext(ctx, "reminder creation failed; confirmation kept",
				"user_id", userID,
				"error", err,
				"error_kind", ErrorKind(err),
			)
		}
	}
}

func (s *SessionService) normalizeOutcomeFields(outcomes []Outcome, actualDuration *int) ([]Outcome, *ValidationError) {
	vErr := &ValidationError{}
	if actualDuration != nil && *actualDuration < 0 {
		vErr.add("actual_duration_minutes", "must not be negative")
	}
	if outcomes == nil {
		return nil, vErr
	}
	out := make([]Outcome, 0, len(outcomes))
	for i, outcome := range outcomes {
		text := strings.TrimSpace(outcome.Text)
		if text == "" {
			vErr.add(fmt.Sprintf("outcomes[%d].text", i), "is required")
			continue
		}
		id := strings.TrimSpace(outcome.ID)
		if id == "" {
			id = s.idGenerator()
		}
		out = append(out, Outcome{ID: id, Text: text, Completed: outcome.Completed})
	}
	return out, vErr
}

func normalizeSessionInput(hostID string, input SessionInput) (SessionInput, *ValidationError) {
	vErr := &ValidationError{}

	input.AttendeeID = strings.TrimSpace(input.AttendeeID)
	switch {
	case input.AttendeeID == "":
		vErr.add("attendee_id", "is required")
	case input.AttendeeID == hostID:
		vErr.add("attendee_id", "must differ from the host")
	}

	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		vErr.add("title", "is required")
	}
	input.Description = trimmedPtr(input.Description)
	input.PlanID = trimmedPtr(input.PlanID)
	input.ParentSessionID = trimmedPtr(input.ParentSessionID)
	input.MeetingLink = trimmedPtr(input.MeetingLink)
	input.MeetingID = trimmedPtr(input.MeetingID)

	if input.SessionType == "" {
		input.SessionType = SessionTypeOneTime
	}
	switch input.SessionType {
	case SessionTypeOneTime:
		if input.RecurrenceRule != nil {
			vErr.add("recurrence_rule", "is only allowed for recurring sessions")
		}
	case SessionTypeRecurring:
		if input.RecurrenceRule == nil {
			vErr.add("recurrence_rule", "is required for recurring sessions")
		}
	default:
		vErr.add("session_type", "must be one_time or recurring")
	}
	if input.RecurrenceRule != nil {
		switch *input.RecurrenceRule {
		case RecurrenceWeekly, RecurrenceBiweekly:
		default:
			vErr.add("recurrence_rule", "must be weekly or biweekly")
		}
	}
	if input.RecurrenceEndDate != nil && input.RecurrenceRule == nil {
		vErr.add("recurrence_end_date", "requires a recurrence rule")
	}

	if len(input.ProposedTimes) == 0 {
		vErr.add("proposed_times", "at least one time window is required")
	}
	windows := make([]TimeWindow, 0, len(input.ProposedTimes))
	for i, window := range input.ProposedTimes {
		vErr.merge(validateWindow(fmt.Sprintf("proposed_times[%d]", i), window))
		windows = append(windows, TimeWindow{Start: window.Start.UTC(), End: window.End.UTC()})
	}
	input.ProposedTimes = windows

	if input.DurationMinutes <= 0 {
		vErr.add("duration_minutes", "must be greater than zero")
	}
	input.Timezone = strings.TrimSpace(input.Timezone)
	if input.Timezone == "" {
		input.Timezone = "UTC"
	}

	if input.MeetingProvider != nil {
		switch *input.MeetingProvider {
		case MeetingProviderGoogleMeet, MeetingProviderZoom, MeetingProviderManual:
		default:
			vErr.add("meeting_provider", "must be google_meet, zoom or manual")
		}
	}
	return input, vErr
}

func validateWindow(field string, window TimeWindow) *ValidationError {
	vErr := &ValidationError{}
	switch {
	case window.Start.IsZero() || window.End.IsZero():
		vErr.add(field, "start and end are required")
	case !window.End.After(window.Start):
		vErr.add(field, "end must be after start")
	}
	return vErr
}

func containsWindow(windows []TimeWindow, target TimeWindow) bool {
	for _, w := range windows {
		if w.Start.Equal(target.Start) && w.End.Equal(target.End) {
			return true
		}
	}
	return false
}

func mapSessionRepoError(op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		vErr     *ValidationError
		stateErr *StateError
	)
	switch {
	case errors.As(err, &vErr), errors.As(err, &stateErr):
		return err
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return &DependencyError{Op: op, Err: err}
	case errors.Is(err, persistence.ErrConstraintViolation):
		v := &ValidationError{}
		v.add("session", "violates a stored constraint")
		return v
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		v := &ValidationError{}
		v.add("parent_session_id", "references a missing session")
		return v
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return &DependencyError{Op: op, Err: err}
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
