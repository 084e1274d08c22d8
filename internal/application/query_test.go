package application

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/example/collab-sessions/internal/lifecycle"
)

func TestSessionService_UpcomingSessionsQuery(t *testing.T) {
	t.Parallel()

	h := newServiceHarness(t, SessionPolicy{})
	if _, err := h.service.UpcomingSessions(context.Background(), hostPrincipal, 0); err != nil {
		t.Fatalf("UpcomingSessions returned error: %v", err)
	}

	q := h.sessions.queries[0]
	if q.UserID != hostPrincipal.UserID || q.Role != RoleEither {
		t.Fatalf("unexpected query scope %+v", q)
	}
	if !slices.Equal(q.Statuses, []lifecycle.Status{lifecycle.StatusProposed, lifecycle.StatusConfirmed}) {
		t.Fatalf("unexpected statuses %v", q.Statuses)
	}
	if q.From == nil || !q.From.Equal(serviceNow) || !q.IncludeUnscheduled || q.Descending {
		t.Fatalf("unexpected bounds %+v", q)
	}
	if q.Limit != defaultListLimit {
		t.Fatalf("expected default limit %d, got %d", defaultListLimit, q.Limit)
	}
}

func TestSessionService_PastSessionsQuery(t *testing.T) {
	t.Parallel()

	h := newServiceHarness(t, SessionPolicy{DefaultListLimit: 25})
	if _, err := h.service.PastSessions(context.Background(), attendeePrincipal, 5); err != nil {
		t.Fatalf("PastSessions returned error: %v", err)
	}

	q := h.sessions.queries[0]
	want := []lifecycle.Status{lifecycle.StatusCompleted, lifecycle.StatusNoShow, lifecycle.StatusCancelled}
	if len(q.Statuses) != len(want) {
		t.Fatalf("unexpected statuses %v", q.Statuses)
	}
	for _, status := range want {
		if !slices.Contains(q.Statuses, status) {
			t.Fatalf("missing %s in %v", status, q.Statuses)
		}
	}
	if !q.Descending || q.From != nil || q.Limit != 5 {
		t.Fatalf("unexpected query %+v", q)
	}
}

func TestSessionService_ListSessionsValidation(t *testing.T) {
	t.Parallel()

	from := serviceNow
	to := serviceNow.Add(-time.Hour)
	tests := []struct {
		name   string
		filter SessionFilter
		field  string
	}{
		{"role", SessionFilter{Role: "observer"}, "role"},
		{"status", SessionFilter{Statuses: []lifecycle.Status{"archived"}}, "status"},
		{"range", SessionFilter{From: &from, To: &to}, "to"},
		{"limit", SessionFilter{Limit: -1}, "limit"},
	}
	for _, tt := range tests {
		h := newServiceHarness(t, SessionPolicy{})
		_, err := h.service.ListSessions(context.Background(), ListSessionsParams{Principal: hostPrincipal, Filter: tt.filter})
		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.FieldErrors[tt.field] == "" {
			t.Fatalf("%s: expected %s validation error, got %v", tt.name, tt.field, err)
		}
		if len(h.sessions.queries) != 0 {
			t.Fatalf("%s: store must not be queried", tt.name)
		}
	}
}

func TestSessionService_ListSessionsErrors(t *testing.T) {
	t.Parallel()

	h := newServiceHarness(t, SessionPolicy{})
	if _, err := h.service.ListSessions(context.Background(), ListSessionsParams{}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	h.sessions.listErr = errStoreDown
	if _, err := h.service.ListSessions(context.Background(), ListSessionsParams{Principal: hostPrincipal}); !errors.Is(err, ErrDependency) {
		t.Fatalf("expected ErrDependency, got %v", err)
	}

	h.sessions.listErr = nil
	got, err := h.service.UpcomingSessions(context.Background(), outsider, 0)
	if err != nil || got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil result, got %v err=%v", got, err)
	}
}
