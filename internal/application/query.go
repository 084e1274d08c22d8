package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/example/collab-sessions/internal/lifecycle"
)

// ListSessions returns the principal's sessions ordered by scheduled start,
// unscheduled sessions last and newest first among them.
func (s *SessionService) ListSessions(ctx context.Context, params ListSessionsParams) ([]Session, error) {
	if s == nil {
		return nil, fmt.Errorf("SessionService is nil")
	}
	filter := params.Filter
	if vErr := validateFilter(filter); vErr.HasErrors() {
		return nil, vErr
	}
	return s.list(ctx, params.Principal, "ListSessions", SessionQuery{
		Role:     filter.Role,
		Statuses: filter.Statuses,
		From:     filter.From,
		To:       filter.To,
		PlanID:   trimmedPtr(filter.PlanID),
		Limit:    filter.Limit,
	})
}

// UpcomingSessions returns proposed and confirmed sessions that start now or
// later, plus those not yet scheduled.
func (s *SessionService) UpcomingSessions(ctx context.Context, principal Principal, limit int) ([]Session, error) {
	if s == nil {
		return nil, fmt.Errorf("SessionService is nil")
	}
	now := s.now().UTC()
	return s.list(ctx, principal, "UpcomingSessions", SessionQuery{
		Statuses:           lifecycle.Open(),
		From:               &now,
		IncludeUnscheduled: true,
		Limit:              s.limitOrDefault(limit),
	})
}

// PastSessions returns completed, no-show and cancelled sessions, most recent first.
func (s *SessionService) PastSessions(ctx context.Context, principal Principal, limit int) ([]Session, error) {
	if s == nil {
		return nil, fmt.Errorf("SessionService is nil")
	}
	return s.list(ctx, principal, "PastSessions", SessionQuery{
		Statuses:   lifecycle.Closed(),
		Limit:      s.limitOrDefault(limit),
		Descending: true,
	})
}

func (s *SessionService) list(ctx context.Context, principal Principal, operation string, query SessionQuery) (_ []Session, err error) {
	ctx, span := startSpan(ctx, "SessionService."+operation)
	defer func() { endSpan(span, err) }()

	userID := strings.TrimSpace(principal.UserID)
	if userID == "" {
		return nil, unauthorized("principal is required")
	}
	if s.sessions == nil {
		return []Session{}, nil
	}
	query.UserID = userID

	sessions, err := s.sessions.ListSessions(ctx, query)
	if err != nil {
		err = mapSessionRepoError("list sessions", err)
		s.loggerWith(ctx, operation, "principal_id", userID).
			ErrorContext(ctx, "failed to list sessions", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}
	if sessions == nil {
		sessions = []Session{}
	}
	return sessions, nil
}

func (s *SessionService) limitOrDefault(limit int) int {
	if limit > 0 {
		return limit
	}
	return s.policy.DefaultListLimit
}

func validateFilter(filter SessionFilter) *ValidationError {
	vErr := &ValidationError{}
	switch filter.Role {
	case RoleEither, RoleHost, RoleAttendee:
	default:
		vErr.add("role", "must be host or attendee")
	}
	for _, status := range filter.Statuses {
		if !lifecycle.Valid(status) {
			vErr.add("status", fmt.Sprintf("unknown status %q", status))
			break
		}
	}
	if filter.From != nil && filter.To != nil && !filter.To.After(*filter.From) {
		vErr.add("to", "must be after from")
	}
	if filter.Limit < 0 {
		vErr.add("limit", "must not be negative")
	}
	return vErr
}
