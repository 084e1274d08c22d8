package application

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/example/collab-sessions/internal/reminder"
)

// ReminderRepository persists reminder rows.
type ReminderRepository interface {
	// CreateReminders keeps any existing row for the same session, user and type
	// and returns the stored rows.
	CreateReminders(ctx context.Context, reminders []Reminder) ([]Reminder, error)
	ListRemindersForSession(ctx context.Context, sessionID string) ([]Reminder, error)
}

// ReminderIndex publishes reminders to the delivery side. Optional.
type ReminderIndex interface {
	Publish(ctx context.Context, reminders []Reminder) error
	// Retract withdraws every published reminder of the session.
	Retract(ctx context.Context, sessionID string) error
}

// ReminderService computes and records reminder fire times.
type ReminderService struct {
	reminders   ReminderRepository
	index       ReminderIndex
	offsets     []reminder.Offset
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewReminderService wires the reminder store. index may be nil. Empty offsets
// fall back to the day-before and hour-before defaults.
func NewReminderService(reminders ReminderRepository, index ReminderIndex, offsets []reminder.Offset, idGenerator func() string, now func() time.Time, logger *slog.Logger) *ReminderService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if len(offsets) == 0 {
		offsets = reminder.DefaultOffsets()
	}
	return &ReminderService{
		reminders:   reminders,
		index:       index,
		offsets:     offsets,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

// CreateReminders records one reminder per configured offset for userID.
// Re-running for the same session and user returns the rows already stored.
func (s *ReminderService) CreateReminders(ctx context.Context, sessionID, userID string, scheduledStart time.Time) (_ []Reminder, err error) {
	ctx, span := startSpan(ctx, "ReminderService.CreateReminders",
		attribute.String("session.id", sessionID),
		attribute.String("user.id", userID),
	)
	defer func() { endSpan(span, err) }()

	logger := serviceLogger(ctx, s.logger, "ReminderService", "CreateReminders",
		"session_id", sessionID,
		"user_id", userID,
	)

	vErr := &ValidationError{}
	if strings.TrimSpace(sessionID) == "" {
		vErr.add("session_id", "is required")
	}
	if strings.TrimSpace(userID) == "" {
		vErr.add("user_id", "is required")
	}
	if scheduledStart.IsZero() {
		vErr.add("scheduled_start", "is required")
	}
	if vErr.HasErrors() {
		return nil, vErr
	}

	schedules, err := reminder.Plan(scheduledStart, s.offsets)
	if err != nil {
		return nil, err
	}

	createdAt := s.now().UTC()
	rows := make([]Reminder, 0, len(schedules))
	for _, schedule := range schedules {
		rows = append(rows, Reminder{
			ID:           s.idGenerator(),
			SessionID:    sessionID,
			UserID:       userID,
			Type:         schedule.Type,
			ReminderTime: schedule.At,
			CreatedAt:    createdAt,
		})
	}

	if s.reminders == nil {
		return rows, nil
	}
	stored, err := s.reminders.CreateReminders(ctx, rows)
	if err != nil {
		err = mapReminderRepoError(err)
		logger.ErrorContext(ctx, "failed to store reminders", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}

	if s.index != nil {
		if pubErr := s.index.Publish(ctx, stored); pubErr != nil {
			logger.WarnContext(ctx, "failed to publish reminders to index", "error", pubErr)
		}
	}

	logger.InfoContext(ctx, "reminders recorded", "count", len(stored))
	return stored, nil
}

// RetractReminders withdraws a session's reminders from the index once the
// session can no longer take place. Stored rows are kept as history. Failures
// are logged and returned; callers treat them as best-effort.
func (s *ReminderService) RetractReminders(ctx context.Context, sessionID string) (err error) {
	if s == nil || s.index == nil {
		return nil
	}
	ctx, span := startSpan(ctx, "ReminderService.RetractReminders", attribute.String("session.id", sessionID))
	defer func() { endSpan(span, err) }()

	logger := serviceLogger(ctx, s.logger, "ReminderService", "RetractReminders", "session_id", sessionID)
	if err = s.index.Retract(ctx, sessionID); err != nil {
		logger.WarnContext(ctx, "failed to retract reminders from index", "error", err)
		return err
	}
	logger.InfoContext(ctx, "reminders retracted from index")
	return nil
}

// ListReminders returns the stored reminders of a session.
func (s *ReminderService) ListReminders(ctx context.Context, sessionID string) ([]Reminder, error) {
	if s.reminders == nil {
		return nil, nil
	}
	rows, err := s.reminders.ListRemindersForSession(ctx, sessionID)
	if err != nil {
		return nil, mapReminderRepoError(err)
	}
	return rows, nil
}

func mapReminderRepoError(err error) error {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &DependencyError{Op: "store reminders", Err: err}
}
