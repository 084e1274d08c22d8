package sqlite

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config controls how the SQLite database is opened.
type Config struct {
	Path         string
	BusyTimeout  time.Duration
	JournalMode  string
	MaxOpenConns int
}

// DefaultConfig returns production settings for the database at path.
func DefaultConfig(path string) Config {
	return Config{
		Path:         path,
		BusyTimeout:  5 * time.Second,
		JournalMode:  "WAL",
		MaxOpenConns: 4,
	}
}

// Validate reports unusable settings.
func (c Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Path) == "" {
		problems = append(problems, "path is required")
	}
	if c.Path == ":memory:" {
		problems = append(problems, "in-memory databases are not shared across connections; use a file path")
	}
	if c.BusyTimeout < 0 {
		problems = append(problems, "busy timeout must not be negative")
	}
	if c.MaxOpenConns < 0 {
		problems = append(problems, "max open connections must not be negative")
	}
	switch strings.ToUpper(c.JournalMode) {
	case "", "WAL", "DELETE", "TRUNCATE", "MEMORY":
	default:
		problems = append(problems, fmt.Sprintf("unsupported journal mode %q", c.JournalMode))
	}
	if len(problems) > 0 {
		return errors.New("sqlite config: " + strings.Join(problems, "; "))
	}
	return nil
}

// DSN renders the connection string with per-connection pragmas.
func (c Config) DSN() string {
	params := url.Values{}
	params.Add("_pragma", "foreign_keys(1)")
	params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", c.BusyTimeout.Milliseconds()))
	if c.JournalMode != "" {
		params.Add("_pragma", fmt.Sprintf("journal_mode(%s)", strings.ToUpper(c.JournalMode)))
	}
	params.Add("_txlock", "immediate")
	return "file:" + c.Path + "?" + params.Encode()
}
