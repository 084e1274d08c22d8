package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/collab-sessions/internal/persistence"
)

const sessionColumns = `id, host_id, attendee_id, plan_id, title, description, session_type,
	proposed_times, scheduled_start, scheduled_end, duration_minutes, timezone,
	recurrence_rule, recurrence_end_date, parent_session_id,
	meeting_provider, meeting_link, meeting_id,
	status, confirmed_at, completed_at, cancelled_at, cancellation_reason,
	actual_duration_minutes, session_notes, outcomes, created_at, updated_at`

// SessionRepository implements persistence.SessionRepository using SQLite.
type SessionRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
	retry  *RetryHelper
}

// NewSessionRepository creates a SQLite session repository.
func NewSessionRepository(pool *ConnectionPool) *SessionRepository {
	return &SessionRepository{
		pool:   pool,
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
	}
}

// CreateSession inserts a new session row.
func (r *SessionRepository) CreateSession(ctx context.Context, session persistence.Session) error {
	if strings.TrimSpace(session.ID) == "" {
		return persistence.ErrConstraintViolation
	}

	proposed, err := encodeJSON(utcWindows(session.ProposedTimes))
	if err != nil {
		return fmt.Errorf("encode proposed times: %w", err)
	}
	outcomes, err := encodeJSON(nonNilOutcomes(session.Outcomes))
	if err != nil {
		return fmt.Errorf("encode outcomes: %w", err)
	}

	query := `INSERT INTO sessions (` + sessionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	return r.retry.WithRetry(ctx, func() error {
		_, err := r.pool.DB().ExecContext(ctx, query,
			session.ID,
			session.HostID,
			session.AttendeeID,
			nullString(session.PlanID),
			session.Title,
			nullString(session.Description),
			session.SessionType,
			proposed,
			nullTime(session.ScheduledStart),
			nullTime(session.ScheduledEnd),
			session.DurationMinutes,
			session.Timezone,
			nullString(session.RecurrenceRule),
			nullTime(session.RecurrenceEndDate),
			nullString(session.ParentSessionID),
			nullString(session.MeetingProvider),
			nullString(session.MeetingLink),
			nullString(session.MeetingID),
			session.Status,
			nullTime(session.ConfirmedAt),
			nullTime(session.CompletedAt),
			nullTime(session.CancelledAt),
			nullString(session.CancellationReason),
			nullInt(session.ActualDurationMinutes),
			nullString(session.SessionNotes),
			outcomes,
			formatTime(session.CreatedAt),
			formatTime(session.UpdatedAt),
		)
		return r.mapper.MapError(err)
	})
}

// GetSession loads a session by id.
func (r *SessionRepository) GetSession(ctx context.Context, id string) (persistence.Session, error) {
	row := r.pool.DB().QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	session, err := scanSession(row)
	if err != nil {
		return persistence.Session{}, r.mapper.MapError(err)
	}
	return session, nil
}

// ListSessions returns the sessions matching filter, ordered by scheduled start
// with unscheduled rows last.
func (r *SessionRepository) ListSessions(ctx context.Context, filter persistence.SessionFilter) ([]persistence.Session, error) {
	query, args := buildListQuery(filter)
	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var sessions []persistence.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return sessions, nil
}

// TransitionSession applies the changes only while the row is in one of the
// allowed source states. The update and the read-back share a transaction.
func (r *SessionRepository) TransitionSession(ctx context.Context, transition persistence.SessionTransition) (persistence.Session, error) {
	if len(transition.FromStatuses) == 0 {
		return persistence.Session{}, errors.New("sqlite: transition requires at least one source status")
	}
	assignments, args, err := changeAssignments(transition.Changes)
	if err != nil {
		return persistence.Session{}, err
	}

	query := fmt.Sprintf(`UPDATE sessions SET %s WHERE id = ? AND status IN (%s)`,
		strings.Join(assignments, ", "), placeholders(len(transition.FromStatuses)))
	args = append(args, transition.SessionID)
	for _, status := range transition.FromStatuses {
		args = append(args, status)
	}

	var updated persistence.Session
	err = r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			result, err := tx.ExecContext(ctx, query, args...)
			if err != nil {
				return r.mapper.MapError(err)
			}
			affected, err := result.RowsAffected()
			if err != nil {
				return r.mapper.MapError(err)
			}
			if affected == 0 {
				return persistence.ErrPreconditionFailed
			}
			row := tx.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, transition.SessionID)
			updated, err = scanSession(row)
			return r.mapper.MapError(err)
		})
	})
	if err != nil {
		return persistence.Session{}, err
	}
	return updated, nil
}

// DeleteSession removes the row only while it is in one of allowedStatuses.
func (r *SessionRepository) DeleteSession(ctx context.Context, id string, allowedStatuses []string) error {
	if len(allowedStatuses) == 0 {
		return errors.New("sqlite: delete requires at least one allowed status")
	}
	args := make([]any, 0, len(allowedStatuses)+1)
	args = append(args, id)
	for _, status := range allowedStatuses {
		args = append(args, status)
	}
	query := fmt.Sprintf(`DELETE FROM sessions WHERE id = ? AND status IN (%s)`, placeholders(len(allowedStatuses)))

	return r.retry.WithRetry(ctx, func() error {
		result, err := r.pool.DB().ExecContext(ctx, query, args...)
		if err != nil {
			return r.mapper.MapError(err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return r.mapper.MapError(err)
		}
		if affected == 0 {
			return persistence.ErrPreconditionFailed
		}
		return nil
	})
}

func changeAssignments(changes persistence.SessionChanges) ([]string, []any, error) {
	var (
		assignments []string
		args        []any
	)
	set := func(column string, value any) {
		assignments = append(assignments, column+" = ?")
		args = append(args, value)
	}

	if changes.Status != nil {
		set("status", *changes.Status)
	}
	if changes.ScheduledStart != nil {
		set("scheduled_start", formatTime(*changes.ScheduledStart))
	}
	if changes.ScheduledEnd != nil {
		set("scheduled_end", formatTime(*changes.ScheduledEnd))
	}
	if changes.ConfirmedAt != nil {
		set("confirmed_at", formatTime(*changes.ConfirmedAt))
	}
	if changes.CompletedAt != nil {
		set("completed_at", formatTime(*changes.CompletedAt))
	}
	if changes.CancelledAt != nil {
		set("cancelled_at", formatTime(*changes.CancelledAt))
	}
	if changes.CancellationReason != nil {
		set("cancellation_reason", *changes.CancellationReason)
	}
	if changes.ActualDurationMinutes != nil {
		set("actual_duration_minutes", *changes.ActualDurationMinutes)
	}
	if changes.SessionNotes != nil {
		set("session_notes", *changes.SessionNotes)
	}
	if changes.Outcomes != nil {
		encoded, err := encodeJSON(changes.Outcomes)
		if err != nil {
			return nil, nil, fmt.Errorf("encode outcomes: %w", err)
		}
		set("outcomes", encoded)
	}
	if changes.UpdatedAt.IsZero() {
		return nil, nil, errors.New("sqlite: transition requires updated_at")
	}
	set("updated_at", formatTime(changes.UpdatedAt))
	return assignments, args, nil
}

func buildListQuery(filter persistence.SessionFilter) (string, []any) {
	var (
		conditions []string
		args       []any
	)

	switch filter.Role {
	case persistence.RoleHost:
		conditions = append(conditions, "host_id = ?")
		args = append(args, filter.UserID)
	case persistence.RoleAttendee:
		conditions = append(conditions, "attendee_id = ?")
		args = append(args, filter.UserID)
	default:
		conditions = append(conditions, "(host_id = ? OR attendee_id = ?)")
		args = append(args, filter.UserID, filter.UserID)
	}

	if len(filter.Statuses) > 0 {
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", placeholders(len(filter.Statuses))))
		for _, status := range filter.Statuses {
			args = append(args, status)
		}
	}

	if filter.From != nil || filter.To != nil {
		var bounds []string
		if filter.From != nil {
			bounds = append(bounds, "scheduled_start >= ?")
			args = append(args, formatTime(*filter.From))
		}
		if filter.To != nil {
			bounds = append(bounds, "scheduled_start < ?")
			args = append(args, formatTime(*filter.To))
		}
		clause := strings.Join(bounds, " AND ")
		if filter.IncludeUnscheduled {
			clause = "(scheduled_start IS NULL OR (" + clause + "))"
		}
		conditions = append(conditions, clause)
	}

	if filter.PlanID != nil {
		conditions = append(conditions, "plan_id = ?")
		args = append(args, *filter.PlanID)
	}

	direction := "ASC"
	if filter.Descending {
		direction = "DESC"
	}
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE ` + strings.Join(conditions, " AND ") +
		` ORDER BY scheduled_start IS NULL, scheduled_start ` + direction + `, created_at DESC, id ASC`
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	return query, args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (persistence.Session, error) {
	var (
		s                                          persistence.Session
		planID, description, recurrenceRule        sql.NullString
		parentID, provider, link, meetingID        sql.NullString
		reason, notes                              sql.NullString
		scheduledStart, scheduledEnd, recurrenceTo sql.NullString
		confirmedAt, completedAt, cancelledAt      sql.NullString
		actualDuration                             sql.NullInt64
		proposed, outcomes, createdAt, updatedAt   string
	)
	err := row.Scan(
		&s.ID, &s.HostID, &s.AttendeeID, &planID, &s.Title, &description, &s.SessionType,
		&proposed, &scheduledStart, &scheduledEnd, &s.DurationMinutes, &s.Timezone,
		&recurrenceRule, &recurrenceTo, &parentID,
		&provider, &link, &meetingID,
		&s.Status, &confirmedAt, &completedAt, &cancelledAt, &reason,
		&actualDuration, &notes, &outcomes, &createdAt, &updatedAt,
	)
	if err != nil {
		return persistence.Session{}, err
	}

	s.PlanID = stringPtr(planID)
	s.Description = stringPtr(description)
	s.RecurrenceRule = stringPtr(recurrenceRule)
	s.ParentSessionID = stringPtr(parentID)
	s.MeetingProvider = stringPtr(provider)
	s.MeetingLink = stringPtr(link)
	s.MeetingID = stringPtr(meetingID)
	s.CancellationReason = stringPtr(reason)
	s.SessionNotes = stringPtr(notes)
	s.ActualDurationMinutes = intPtr(actualDuration)

	if err := json.Unmarshal([]byte(proposed), &s.ProposedTimes); err != nil {
		return persistence.Session{}, fmt.Errorf("decode proposed times: %w", err)
	}
	if err := json.Unmarshal([]byte(outcomes), &s.Outcomes); err != nil {
		return persistence.Session{}, fmt.Errorf("decode outcomes: %w", err)
	}

	times := []struct {
		src sql.NullString
		dst **time.Time
	}{
		{scheduledStart, &s.ScheduledStart},
		{scheduledEnd, &s.ScheduledEnd},
		{recurrenceTo, &s.RecurrenceEndDate},
		{confirmedAt, &s.ConfirmedAt},
		{completedAt, &s.CompletedAt},
		{cancelledAt, &s.CancelledAt},
	}
	for _, t := range times {
		parsed, err := parseNullTime(t.src)
		if err != nil {
			return persistence.Session{}, err
		}
		*t.dst = parsed
	}

	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Session{}, err
	}
	if s.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Session{}, err
	}
	return s, nil
}

func utcWindows(windows []persistence.TimeWindow) []persistence.TimeWindow {
	out := make([]persistence.TimeWindow, len(windows))
	for i, w := range windows {
		out[i] = persistence.TimeWindow{Start: w.Start.UTC(), End: w.End.UTC()}
	}
	return out
}

func nonNilOutcomes(outcomes []persistence.Outcome) []persistence.Outcome {
	if outcomes == nil {
		return []persistence.Outcome{}
	}
	return outcomes
}
