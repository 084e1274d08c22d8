// Package grantfile loads collaboration grants from YAML documents such as
//
//	grants:
//	  - user_a: coach-1
//	    user_b: member-7
//	    plan_id: plan-2024   # optional, omitted means every plan
//	    role: coach          # optional
//	    active: false        # optional, defaults to true
package grantfile

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/example/collab-sessions/internal/persistence"
)

// Entry is one grant as written in the file.
type Entry struct {
	UserA  string  `yaml:"user_a"`
	UserB  string  `yaml:"user_b"`
	PlanID *string `yaml:"plan_id"`
	Role   string  `yaml:"role"`
	Active *bool   `yaml:"active"`
}

type document struct {
	Grants []Entry `yaml:"grants"`
}

// Parse decodes and validates a grant document. Unknown keys are rejected.
func Parse(data []byte) ([]Entry, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("grantfile: document is empty")
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	var doc document
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("grantfile: decode: %w", err)
	}

	var problems []string
	for i := range doc.Grants {
		entry := &doc.Grants[i]
		entry.UserA = strings.TrimSpace(entry.UserA)
		entry.UserB = strings.TrimSpace(entry.UserB)
		entry.Role = strings.TrimSpace(entry.Role)
		if entry.PlanID != nil {
			if plan := strings.TrimSpace(*entry.PlanID); plan != "" {
				entry.PlanID = &plan
			} else {
				entry.PlanID = nil
			}
		}
		switch {
		case entry.UserA == "" || entry.UserB == "":
			problems = append(problems, fmt.Sprintf("grants[%d]: user_a and user_b are required", i))
		case entry.UserA == entry.UserB:
			problems = append(problems, fmt.Sprintf("grants[%d]: user_a and user_b must differ", i))
		}
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("grantfile: %s", strings.Join(problems, "; "))
	}
	return doc.Grants, nil
}

// Load reads and parses the file at path.
func Load(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("grantfile: read %s: %w", path, err)
	}
	entries, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return entries, nil
}

// Import upserts every entry and returns how many were written. It stops at
// the first store error.
func Import(ctx context.Context, repo persistence.GrantRepository, entries []Entry, idGenerator func() string, now func() time.Time) (int, error) {
	if now == nil {
		now = time.Now
	}
	for i, entry := range entries {
		active := true
		if entry.Active != nil {
			active = *entry.Active
		}
		ts := now().UTC()
		grant := persistence.CollaborationGrant{
			ID:        idGenerator(),
			UserA:     entry.UserA,
			UserB:     entry.UserB,
			PlanID:    entry.PlanID,
			Role:      entry.Role,
			Active:    active,
			CreatedAt: ts,
			UpdatedAt: ts,
		}
		if err := repo.PutGrant(ctx, grant); err != nil {
			return i, fmt.Errorf("grantfile: import grants[%d] (%s, %s): %w", i, entry.UserA, entry.UserB, err)
		}
	}
	return len(entries), nil
}
