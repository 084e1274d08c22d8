// Package redis publishes recorded reminders into a Redis sorted set so an
// external delivery worker can find the ones that are due.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/collab-sessions/internal/persistence"
)

// DefaultKeyPrefix namespaces every key written by the index.
const DefaultKeyPrefix = "sessions:"

// Config contains configuration options for the reminder index.
type Config struct {
	// Client is the Redis client instance.
	Client *redis.Client

	// KeyPrefix is the prefix for all Redis keys.
	// Default: "sessions:"
	KeyPrefix string
}

// ReminderIndex maintains <prefix>due, scored by fire time in unix seconds,
// one <prefix>reminder:<id> hash per reminder, and a <prefix>session:<id>
// set naming the reminders published for each session.
type ReminderIndex struct {
	client    *redis.Client
	keyPrefix string
}

// New creates a reminder index over an existing client.
func New(config Config) (*ReminderIndex, error) {
	if config.Client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = DefaultKeyPrefix
	}
	return &ReminderIndex{client: config.Client, keyPrefix: config.KeyPrefix}, nil
}

// DueKey is the sorted set holding reminder ids.
func (i *ReminderIndex) DueKey() string {
	return i.keyPrefix + "due"
}

// ReminderKey is the hash holding one reminder's payload.
func (i *ReminderIndex) ReminderKey(id string) string {
	return i.keyPrefix + "reminder:" + id
}

// SessionKey is the set of reminder ids published for a session.
func (i *ReminderIndex) SessionKey(sessionID string) string {
	return i.keyPrefix + "session:" + sessionID
}

// Publish writes the reminders in one pipeline. Re-publishing a reminder
// overwrites its score and payload.
func (i *ReminderIndex) Publish(ctx context.Context, reminders []persistence.Reminder) error {
	if len(reminders) == 0 {
		return nil
	}

	pipe := i.client.TxPipeline()
	members := make([]redis.Z, 0, len(reminders))
	for _, r := range reminders {
		if r.ID == "" {
			return fmt.Errorf("reminder id is required")
		}
		members = append(members, redis.Z{Score: float64(r.ReminderTime.Unix()), Member: r.ID})
		pipe.HSet(ctx, i.ReminderKey(r.ID),
			"session_id", r.SessionID,
			"user_id", r.UserID,
			"reminder_type", r.ReminderType,
			"reminder_time", r.ReminderTime.UTC().Format(time.RFC3339),
		)
		pipe.SAdd(ctx, i.SessionKey(r.SessionID), r.ID)
	}
	pipe.ZAdd(ctx, i.DueKey(), members...)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish reminders: %w", err)
	}
	return nil
}

// Retract removes every reminder published for the session from the due set
// together with its payload.
func (i *ReminderIndex) Retract(ctx context.Context, sessionID string) error {
	ids, err := i.client.SMembers(ctx, i.SessionKey(sessionID)).Result()
	if err != nil {
		return fmt.Errorf("list session reminders: %w", err)
	}

	pipe := i.client.TxPipeline()
	if len(ids) > 0 {
		members := make([]any, 0, len(ids))
		for _, id := range ids {
			members = append(members, id)
			pipe.Del(ctx, i.ReminderKey(id))
		}
		pipe.ZRem(ctx, i.DueKey(), members...)
	}
	pipe.Del(ctx, i.SessionKey(sessionID))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("retract reminders: %w", err)
	}
	return nil
}

// Due returns the payloads of reminders whose fire time is at or before now,
// earliest first. It only reads; the delivery worker removes what it sends.
func (i *ReminderIndex) Due(ctx context.Context, now time.Time, limit int64) ([]DueReminder, error) {
	ids, err := i.client.ZRangeByScore(ctx, i.DueKey(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%d", now.Unix()),
		Count: limit,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("list due reminders: %w", err)
	}

	out := make([]DueReminder, 0, len(ids))
	for _, id := range ids {
		var payload DueReminder
		if err := i.client.HGetAll(ctx, i.ReminderKey(id)).Scan(&payload); err != nil {
			return nil, fmt.Errorf("load reminder %s: %w", id, err)
		}
		payload.ID = id
		out = append(out, payload)
	}
	return out, nil
}

// DueReminder is the payload a delivery worker reads.
type DueReminder struct {
	ID           string `redis:"-" json:"id"`
	SessionID    string `redis:"session_id" json:"session_id"`
	UserID       string `redis:"user_id" json:"user_id"`
	ReminderType string `redis:"reminder_type" json:"reminder_type"`
	ReminderTime string `redis:"reminder_time" json:"reminder_time"`
}

// String renders the payload as JSON for logs.
func (d DueReminder) String() string {
	raw, _ := json.Marshal(d)
	return string(raw)
}

// Close closes the underlying client.
func (i *ReminderIndex) Close() error {
	return i.client.Close()
}
