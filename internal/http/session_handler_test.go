package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/collab-sessions/internal/application"
	"github.com/example/collab-sessions/internal/lifecycle"
	"github.com/example/collab-sessions/internal/reminder"
)

func serve(svc *stubSessionService, method, path, body string) *httptest.ResponseRecorder {
	router := NewRouter(RouterConfig{Sessions: NewSessionHandler(svc, nil)})
	req := asPrincipal(httptest.NewRequest(method, path, strings.NewReader(body)), "host-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v (body %s)", err, rec.Body.String())
	}
	return out
}

func TestSessionHandler_CreateMapsRequest(t *testing.T) {
	t.Parallel()

	svc := &stubSessionService{session: sampleSession(lifecycle.StatusProposed)}
	body := `{
		"attendee_id": "attendee-1",
		"plan_id": "plan-7",
		"title": "Weekly sync",
		"session_type": "recurring",
		"recurrence_rule": "weekly",
		"recurrence_end_date": "2025-06-01T00:00:00Z",
		"proposed_times": [{"start": "2025-03-01T19:00:00+09:00", "end": "2025-03-01T19:30:00+09:00"}],
		"duration_minutes": 30,
		"meeting_provider": "zoom"
	}`

	rec := serve(svc, http.MethodPost, "/sessions", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	input := svc.create.Input
	if input.AttendeeID != "attendee-1" || input.Title != "Weekly sync" || input.DurationMinutes != 30 {
		t.Fatalf("unexpected input %+v", input)
	}
	if input.PlanID == nil || *input.PlanID != "plan-7" {
		t.Fatalf("plan id not forwarded: %v", input.PlanID)
	}
	if input.SessionType != application.SessionTypeRecurring || input.RecurrenceRule == nil || *input.RecurrenceRule != application.RecurrenceWeekly {
		t.Fatalf("recurrence not forwarded: %+v", input)
	}
	if input.MeetingProvider == nil || *input.MeetingProvider != application.MeetingProviderZoom {
		t.Fatalf("meeting provider not forwarded: %v", input.MeetingProvider)
	}
	if len(input.ProposedTimes) != 1 {
		t.Fatalf("expected one proposed window, got %d", len(input.ProposedTimes))
	}
	wantStart := time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC)
	if !input.ProposedTimes[0].Start.Equal(wantStart) {
		t.Fatalf("start = %s, want %s", input.ProposedTimes[0].Start, wantStart)
	}

	resp := decodeJSON[sessionResponse](t, rec)
	if resp.Session.ID != "session-1" || resp.Session.Status != "proposed" {
		t.Fatalf("unexpected response %+v", resp.Session)
	}
	if len(resp.Session.ProposedTimes) != 1 || !strings.HasSuffix(resp.Session.ProposedTimes[0].Start, "Z") {
		t.Fatalf("proposed times must render in UTC: %+v", resp.Session.ProposedTimes)
	}
}

func TestSessionHandler_CreateRejectsMalformedInput(t *testing.T) {
	t.Parallel()

	t.Run("invalid json", func(t *testing.T) {
		t.Parallel()
		svc := &stubSessionService{}
		rec := serve(svc, http.MethodPost, "/sessions", `{"title":`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
		if svc.lastCall() != "" {
			t.Fatal("service must not be called")
		}
	})

	t.Run("unparseable timestamp", func(t *testing.T) {
		t.Parallel()
		svc := &stubSessionService{}
		rec := serve(svc, http.MethodPost, "/sessions", `{"proposed_times":[{"start":"tomorrow","end":"2025-03-01T10:30:00Z"}]}`)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d, want 422", rec.Code)
		}
		resp := decodeJSON[errorResponse](t, rec)
		if resp.Errors["proposed_times[0]"] != "RFC 3339 形式の日時を指定してください。" {
			t.Fatalf("unexpected errors %v", resp.Errors)
		}
		if svc.lastCall() != "" {
			t.Fatal("service must not be called")
		}
	})
}

func TestSessionHandler_RequiresPrincipal(t *testing.T) {
	t.Parallel()

	svc := &stubSessionService{}
	router := NewRouter(RouterConfig{Sessions: NewSessionHandler(svc, nil)})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions/session-1", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if svc.lastCall() != "" {
		t.Fatal("service must not be called")
	}
}

func TestSessionHandler_NilServiceFailsClosed(t *testing.T) {
	t.Parallel()

	var handler *SessionHandler
	rec := httptest.NewRecorder()
	handler.Get(rec, httptest.NewRequest(http.MethodGet, "/sessions/session-1", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestSessionHandler_ConfirmForwardsSelectedWindow(t *testing.T) {
	t.Parallel()

	svc := &stubSessionService{session: sampleSession(lifecycle.StatusConfirmed)}
	rec := serve(svc, http.MethodPost, "/sessions/session-1/confirm",
		`{"selected_time":{"start":"2025-03-01T10:00:00Z","end":"2025-03-01T10:30:00Z"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	want := application.TimeWindow{
		Start: time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC),
		End:   time.Date(2025, time.March, 1, 10, 30, 0, 0, time.UTC),
	}
	got := svc.confirm.SelectedTime
	if !got.Start.Equal(want.Start) || !got.End.Equal(want.End) {
		t.Fatalf("selected = %+v, want %+v", got, want)
	}
	if svc.confirm.SessionID != "session-1" {
		t.Fatalf("session id = %q", svc.confirm.SessionID)
	}
}

func TestSessionHandler_CancelAcceptsOptionalReason(t *testing.T) {
	t.Parallel()

	svc := &stubSessionService{session: sampleSession(lifecycle.StatusCancelled)}
	if rec := serve(svc, http.MethodPost, "/sessions/session-1/cancel", ""); rec.Code != http.StatusOK {
		t.Fatalf("empty body status = %d", rec.Code)
	}
	if svc.cancel.Reason != nil {
		t.Fatalf("reason should be nil, got %q", *svc.cancel.Reason)
	}

	if rec := serve(svc, http.MethodPost, "/sessions/session-1/cancel", `{"reason":"conflict"}`); rec.Code != http.StatusOK {
		t.Fatalf("reason body status = %d", rec.Code)
	}
	if svc.cancel.Reason == nil || *svc.cancel.Reason != "conflict" {
		t.Fatalf("reason not forwarded: %v", svc.cancel.Reason)
	}
}

func TestSessionHandler_OutcomeFields(t *testing.T) {
	t.Parallel()

	svc := &stubSessionService{session: sampleSession(lifecycle.StatusCompleted)}
	rec := serve(svc, http.MethodPost, "/sessions/session-1/complete",
		`{"session_notes":"went well","actual_duration_minutes":45,"outcomes":[{"text":"send notes","completed":false}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if svc.complete.Notes == nil || *svc.complete.Notes != "went well" {
		t.Fatalf("notes not forwarded: %v", svc.complete.Notes)
	}
	if svc.complete.ActualDurationMinutes == nil || *svc.complete.ActualDurationMinutes != 45 {
		t.Fatalf("duration not forwarded: %v", svc.complete.ActualDurationMinutes)
	}
	if len(svc.complete.Outcomes) != 1 || svc.complete.Outcomes[0].Text != "send notes" {
		t.Fatalf("outcomes not forwarded: %+v", svc.complete.Outcomes)
	}

	rec = serve(svc, http.MethodPut, "/sessions/session-1/notes", `{"session_notes":"follow-up"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("notes status = %d", rec.Code)
	}
	if svc.notes.Outcomes != nil {
		t.Fatalf("absent outcomes must stay nil, got %+v", svc.notes.Outcomes)
	}

	serve(svc, http.MethodPut, "/sessions/session-1/notes", `{"outcomes":[]}`)
	if svc.notes.Outcomes == nil || len(svc.notes.Outcomes) != 0 {
		t.Fatalf("explicit empty outcomes must be forwarded, got %#v", svc.notes.Outcomes)
	}
}

func TestSessionHandler_ListParsesFilter(t *testing.T) {
	t.Parallel()

	svc := &stubSessionService{sessions: []application.Session{sampleSession(lifecycle.StatusConfirmed)}}
	rec := serve(svc, http.MethodGet,
		"/sessions?role=host&status=proposed,+confirmed&from=2025-03-01T00:00:00Z&to=2025-04-01T00:00:00Z&plan_id=plan-7&limit=5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	filter := svc.list.Filter
	if filter.Role != application.RoleHost || filter.Limit != 5 {
		t.Fatalf("unexpected filter %+v", filter)
	}
	if len(filter.Statuses) != 2 || filter.Statuses[0] != lifecycle.StatusProposed || filter.Statuses[1] != lifecycle.StatusConfirmed {
		t.Fatalf("statuses = %v", filter.Statuses)
	}
	if filter.From == nil || filter.To == nil || !filter.To.After(*filter.From) {
		t.Fatalf("range not parsed: %v %v", filter.From, filter.To)
	}
	if filter.PlanID == nil || *filter.PlanID != "plan-7" {
		t.Fatalf("plan id = %v", filter.PlanID)
	}

	resp := decodeJSON[listSessionsResponse](t, rec)
	if len(resp.Sessions) != 1 {
		t.Fatalf("expected one session, got %d", len(resp.Sessions))
	}
}

func TestSessionHandler_ListRejectsBadQuery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path  string
		field string
	}{
		{"/sessions?limit=ten", "limit"},
		{"/sessions?from=yesterday", "from"},
		{"/sessions/upcoming?limit=x", "limit"},
		{"/sessions/past?limit=1.5", "limit"},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			t.Parallel()
			svc := &stubSessionService{}
			rec := serve(svc, http.MethodGet, tc.path, "")
			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d, want 422", rec.Code)
			}
			resp := decodeJSON[errorResponse](t, rec)
			if _, ok := resp.Errors[tc.field]; !ok {
				t.Fatalf("expected error for %s, got %v", tc.field, resp.Errors)
			}
		})
	}
}

func TestSessionHandler_UpcomingForwardsLimit(t *testing.T) {
	t.Parallel()

	svc := &stubSessionService{}
	rec := serve(svc, http.MethodGet, "/sessions/upcoming?limit=3", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if svc.limit != 3 {
		t.Fatalf("limit = %d, want 3", svc.limit)
	}
	resp := decodeJSON[listSessionsResponse](t, rec)
	if resp.Sessions == nil {
		t.Fatal("empty listings must render as an array")
	}
}

func TestSessionHandler_RendersReminders(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, time.February, 28, 10, 0, 0, 0, time.UTC)
	svc := &stubSessionService{reminders: []application.Reminder{{
		ID:           "reminder-1",
		SessionID:    "session-1",
		UserID:       "host-1",
		Type:         reminder.TypeDayBefore,
		ReminderTime: at,
	}}}

	rec := serve(svc, http.MethodPost, "/sessions/session-1/reminders", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decodeJSON[listRemindersResponse](t, rec)
	if len(resp.Reminders) != 1 {
		t.Fatalf("expected one reminder, got %d", len(resp.Reminders))
	}
	got := resp.Reminders[0]
	if got.ReminderType != "24_hours" || got.ReminderTime != "2025-02-28T10:00:00Z" {
		t.Fatalf("unexpected reminder %+v", got)
	}
}

func TestSessionHandler_MapsServiceErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", &application.ValidationError{FieldErrors: map[string]string{"selected_time": "must match one of the proposed times"}}, http.StatusUnprocessableEntity, "VALIDATION_FAILED"},
		{"unauthorized", &application.AuthorizationError{Reason: "not a participant"}, http.StatusForbidden, "AUTH_FORBIDDEN"},
		{"not found", application.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"state", &application.StateError{SessionID: "session-1", Current: lifecycle.StatusCancelled, Action: lifecycle.ActionConfirm}, http.StatusConflict, "INVALID_STATE"},
		{"dependency", &application.DependencyError{Op: "transition session", Err: errors.New("disk I/O error")}, http.StatusServiceUnavailable, "DEPENDENCY_UNAVAILABLE"},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc := &stubSessionService{err: tc.err}
			rec := serve(svc, http.MethodPost, "/sessions/session-1/confirm",
				`{"selected_time":{"start":"2025-03-01T10:00:00Z","end":"2025-03-01T10:30:00Z"}}`)
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			resp := decodeJSON[errorResponse](t, rec)
			if resp.ErrorCode != tc.wantCode {
				t.Fatalf("error code = %q, want %q", resp.ErrorCode, tc.wantCode)
			}
			if resp.Message == "" {
				t.Fatal("message must be set")
			}
			switch tc.name {
			case "state":
				if resp.Status != "cancelled" {
					t.Fatalf("current_status = %q, want cancelled", resp.Status)
				}
			case "validation":
				if resp.Errors["selected_time"] != "提案された候補日時のいずれかを指定してください。" {
					t.Fatalf("unexpected errors %v", resp.Errors)
				}
			case "dependency":
				if strings.Contains(rec.Body.String(), "disk I/O") {
					t.Fatal("dependency details must not leak to clients")
				}
			}
		})
	}
}

func TestTranslateValidationMessage(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"is required":              "必須項目です。",
		"unknown status \"frozen\"": "不明なステータスです: \"frozen\"",
		"something new":            "something new",
	}
	for in, want := range tests {
		if got := translateValidationMessage(in); got != want {
			t.Fatalf("translate(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatTime_RoundTripsThroughParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   time.Time
		want string
	}{
		{time.Date(2025, time.June, 3, 5, 17, 41, 500_000_000, time.UTC), "2025-06-03T05:17:41.5Z"},
		{time.Date(2025, time.June, 3, 5, 17, 41, 0, time.UTC), "2025-06-03T05:17:41Z"},
		{time.Date(2025, time.June, 3, 14, 17, 41, 123_456_789, time.FixedZone("JST", 9*60*60)), "2025-06-03T05:17:41.123456789Z"},
	}
	for _, tc := range tests {
		got := formatTime(tc.in)
		if got != tc.want {
			t.Fatalf("formatTime(%v) = %q, want %q", tc.in, got, tc.want)
		}
		errs := fieldErrors{}
		if back := errs.parseTime("start", got); !back.Equal(tc.in) || len(errs) != 0 {
			t.Fatalf("parseTime(%q) = %v (%v), want %v", got, back, errs, tc.in)
		}
	}
}
