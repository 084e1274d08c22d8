package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/example/collab-sessions/internal/persistence"
)

const reminderColumns = `id, session_id, user_id, reminder_type, reminder_time,
	email_sent, email_sent_at, in_app_sent, in_app_sent_at, created_at`

// ReminderRepository implements persistence.ReminderRepository using SQLite.
type ReminderRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
	retry  *RetryHelper
}

func NewReminderRepository(pool *ConnectionPool) *ReminderRepository {
	return &ReminderRepository{
		pool:   pool,
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
	}
}

// CreateReminders inserts each reminder unless a row for the same session,
// user and type already exists, then returns the stored rows in input order.
func (r *ReminderRepository) CreateReminders(ctx context.Context, reminders []persistence.Reminder) ([]persistence.Reminder, error) {
	for _, reminder := range reminders {
		if strings.TrimSpace(reminder.ID) == "" {
			return nil, persistence.ErrConstraintViolation
		}
	}

	const insert = `INSERT INTO session_reminders (` + reminderColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_id, user_id, reminder_type) DO NOTHING`
	const lookup = `SELECT ` + reminderColumns + ` FROM session_reminders
		WHERE session_id = ? AND user_id = ? AND reminder_type = ?`

	var stored []persistence.Reminder
	err := r.retry.WithRetry(ctx, func() error {
		stored = stored[:0]
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			for _, reminder := range reminders {
				_, err := tx.ExecContext(ctx, insert,
					reminder.ID,
					reminder.SessionID,
					reminder.UserID,
					reminder.ReminderType,
					formatTime(reminder.ReminderTime),
					boolInt(reminder.EmailSent),
					nullTime(reminder.EmailSentAt),
					boolInt(reminder.InAppSent),
					nullTime(reminder.InAppSentAt),
					formatTime(reminder.CreatedAt),
				)
				if err != nil {
					return r.mapper.MapError(err)
				}
				row := tx.QueryRowContext(ctx, lookup, reminder.SessionID, reminder.UserID, reminder.ReminderType)
				existing, err := scanReminder(row)
				if err != nil {
					return r.mapper.MapError(err)
				}
				stored = append(stored, existing)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// ListRemindersForSession returns the session's reminders ordered by fire time.
func (r *ReminderRepository) ListRemindersForSession(ctx context.Context, sessionID string) ([]persistence.Reminder, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `SELECT `+reminderColumns+` FROM session_reminders
		WHERE session_id = ? ORDER BY reminder_time ASC, user_id ASC`, sessionID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var reminders []persistence.Reminder
	for rows.Next() {
		reminder, err := scanReminder(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		reminders = append(reminders, reminder)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return reminders, nil
}

func scanReminder(row rowScanner) (persistence.Reminder, error) {
	var (
		reminder                 persistence.Reminder
		fireAt, createdAt        string
		emailSent, inAppSent     int
		emailSentAt, inAppSentAt sql.NullString
	)
	if err := row.Scan(
		&reminder.ID, &reminder.SessionID, &reminder.UserID, &reminder.ReminderType, &fireAt,
		&emailSent, &emailSentAt, &inAppSent, &inAppSentAt, &createdAt,
	); err != nil {
		return persistence.Reminder{}, err
	}

	var err error
	if reminder.ReminderTime, err = parseTime(fireAt); err != nil {
		return persistence.Reminder{}, err
	}
	if reminder.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Reminder{}, err
	}
	if reminder.EmailSentAt, err = parseNullTime(emailSentAt); err != nil {
		return persistence.Reminder{}, err
	}
	if reminder.InAppSentAt, err = parseNullTime(inAppSentAt); err != nil {
		return persistence.Reminder{}, err
	}
	reminder.EmailSent = emailSent != 0
	reminder.InAppSent = inAppSent != 0
	return reminder, nil
}
