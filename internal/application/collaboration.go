package application

import (
	"context"
	"log/slog"
	"strings"
)

// GrantDirectory answers whether two users share a collaboration grant.
type GrantDirectory interface {
	// HasActiveGrant is symmetric in the two user ids. A nil planID matches any shared plan.
	HasActiveGrant(ctx context.Context, userA, userB string, planID *string) (bool, error)
}

// CollaborationAuthorizer gates session proposals on an existing collaboration.
type CollaborationAuthorizer struct {
	grants GrantDirectory
	logger *slog.Logger
}

// NewCollaborationAuthorizer wires the grant directory. A nil directory denies every pair.
func NewCollaborationAuthorizer(grants GrantDirectory, logger *slog.Logger) *CollaborationAuthorizer {
	return &CollaborationAuthorizer{grants: grants, logger: defaultLogger(logger)}
}

// Check reports whether host and attendee may schedule together, exposing
// directory failures so callers can tell "denied" from "unavailable".
func (a *CollaborationAuthorizer) Check(ctx context.Context, hostID, attendeeID string, planID *string) (bool, error) {
	hostID = strings.TrimSpace(hostID)
	attendeeID = strings.TrimSpace(attendeeID)
	if a == nil || a.grants == nil || hostID == "" || attendeeID == "" || hostID == attendeeID {
		return false, nil
	}
	if planID != nil && strings.TrimSpace(*planID) == "" {
		planID = nil
	}

	ok, err := a.grants.HasActiveGrant(ctx, hostID, attendeeID, planID)
	if err != nil {
		return false, &DependencyError{Op: "check collaboration grant", Err: err}
	}
	return ok, nil
}

// CanScheduleWith is Check with directory failures treated as a denial.
func (a *CollaborationAuthorizer) CanScheduleWith(ctx context.Context, hostID, attendeeID string, planID *string) bool {
	ok, err := a.Check(ctx, hostID, attendeeID, planID)
	if err != nil {
		serviceLogger(ctx, a.logger, "CollaborationAuthorizer", "CanScheduleWith",
			"host_id", hostID,
			"attendee_id", attendeeID,
		).WarnContext(ctx, "grant lookup failed; denying", "error", err, "error_kind", ErrorKind(err))
		return false
	}
	return ok
}
