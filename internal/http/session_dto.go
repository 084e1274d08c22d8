package http

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/example/collab-sessions/internal/application"
	"github.com/example/collab-sessions/internal/lifecycle"
)

const (
	msgInvalidTimestamp = "must be an RFC 3339 timestamp"
	msgInvalidInteger   = "must be an integer"
)

type timeWindowDTO struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type createSessionRequest struct {
	AttendeeID        string          `json:"attendee_id"`
	PlanID            *string         `json:"plan_id"`
	Title             string          `json:"title"`
	Description       *string         `json:"description"`
	SessionType       string          `json:"session_type"`
	ProposedTimes     []timeWindowDTO `json:"proposed_times"`
	DurationMinutes   int             `json:"duration_minutes"`
	Timezone          string          `json:"timezone"`
	RecurrenceRule    *string         `json:"recurrence_rule"`
	RecurrenceEndDate *string         `json:"recurrence_end_date"`
	ParentSessionID   *string         `json:"parent_session_id"`
	MeetingProvider   *string         `json:"meeting_provider"`
	MeetingLink       *string         `json:"meeting_link"`
	MeetingID         *string         `json:"meeting_id"`
}

func (r createSessionRequest) toInput() (application.SessionInput, *application.ValidationError) {
	errs := fieldErrors{}
	input := application.SessionInput{
		AttendeeID:      r.AttendeeID,
		PlanID:          r.PlanID,
		Title:           r.Title,
		Description:     r.Description,
		SessionType:     application.SessionType(strings.TrimSpace(r.SessionType)),
		DurationMinutes: r.DurationMinutes,
		Timezone:        r.Timezone,
		ParentSessionID: r.ParentSessionID,
		MeetingLink:     r.MeetingLink,
		MeetingID:       r.MeetingID,
	}

	for i, window := range r.ProposedTimes {
		input.ProposedTimes = append(input.ProposedTimes, errs.parseWindow(fmt.Sprintf("proposed_times[%d]", i), window))
	}
	if r.RecurrenceRule != nil {
		rule := application.RecurrenceRule(strings.TrimSpace(*r.RecurrenceRule))
		input.RecurrenceRule = &rule
	}
	if r.RecurrenceEndDate != nil {
		if ts := errs.parseTime("recurrence_end_date", *r.RecurrenceEndDate); !ts.IsZero() {
			input.RecurrenceEndDate = &ts
		}
	}
	if r.MeetingProvider != nil {
		provider := application.MeetingProvider(strings.TrimSpace(*r.MeetingProvider))
		input.MeetingProvider = &provider
	}
	return input, errs.validation()
}

type confirmSessionRequest struct {
	SelectedTime timeWindowDTO `json:"selected_time"`
}

func (r confirmSessionRequest) toWindow() (application.TimeWindow, *application.ValidationError) {
	errs := fieldErrors{}
	window := errs.parseWindow("selected_time", r.SelectedTime)
	return window, errs.validation()
}

type cancelSessionRequest struct {
	Reason *string `json:"reason"`
}

type outcomeDTO struct {
	ID        string `json:"id,omitempty"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

type outcomeRequest struct {
	Notes                 *string      `json:"session_notes"`
	Outcomes              []outcomeDTO `json:"outcomes"`
	ActualDurationMinutes *int         `json:"actual_duration_minutes"`
}

// outcomes keeps nil distinct from an empty list so absent means untouched.
func (r outcomeRequest) outcomes() []application.Outcome {
	if r.Outcomes == nil {
		return nil
	}
	out := make([]application.Outcome, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		out = append(out, application.Outcome{ID: strings.TrimSpace(o.ID), Text: o.Text, Completed: o.Completed})
	}
	return out
}

func parseSessionFilter(values url.Values) (application.SessionFilter, *application.ValidationError) {
	errs := fieldErrors{}
	filter := application.SessionFilter{
		Role: application.SessionRole(strings.TrimSpace(values.Get("role"))),
	}
	for _, status := range parseCSV(values.Get("status")) {
		filter.Statuses = append(filter.Statuses, lifecycle.Status(status))
	}
	if raw := values.Get("from"); raw != "" {
		if ts := errs.parseTime("from", raw); !ts.IsZero() {
			filter.From = &ts
		}
	}
	if raw := values.Get("to"); raw != "" {
		if ts := errs.parseTime("to", raw); !ts.IsZero() {
			filter.To = &ts
		}
	}
	if plan := strings.TrimSpace(values.Get("plan_id")); plan != "" {
		filter.PlanID = &plan
	}
	filter.Limit = errs.parseInt("limit", values.Get("limit"))
	return filter, errs.validation()
}

func parseLimit(values url.Values) (int, *application.ValidationError) {
	errs := fieldErrors{}
	limit := errs.parseInt("limit", values.Get("limit"))
	return limit, errs.validation()
}

func parseCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// fieldErrors collects request decoding problems in the same shape the
// services report validation failures.
type fieldErrors map[string]string

func (f fieldErrors) parseTime(field, value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		if _, exists := f[field]; !exists {
			f[field] = msgInvalidTimestamp
		}
		return time.Time{}
	}
	return ts
}

func (f fieldErrors) parseWindow(field string, dto timeWindowDTO) application.TimeWindow {
	return application.TimeWindow{Start: f.parseTime(field, dto.Start), End: f.parseTime(field, dto.End)}
}

func (f fieldErrors) parseInt(field, value string) int {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		f[field] = msgInvalidInteger
		return 0
	}
	return n
}

func (f fieldErrors) validation() *application.ValidationError {
	if len(f) == 0 {
		return nil
	}
	return &application.ValidationError{FieldErrors: f}
}

type sessionResponse struct {
	Session sessionDTO `json:"session"`
}

type listSessionsResponse struct {
	Sessions []sessionDTO `json:"sessions"`
}

type listRemindersResponse struct {
	Reminders []reminderDTO `json:"reminders"`
}

type sessionDTO struct {
	ID                    string          `json:"id"`
	HostID                string          `json:"host_id"`
	AttendeeID            string          `json:"attendee_id"`
	PlanID                *string         `json:"plan_id,omitempty"`
	Title                 string          `json:"title"`
	Description           *string         `json:"description,omitempty"`
	SessionType           string          `json:"session_type"`
	ProposedTimes         []timeWindowDTO `json:"proposed_times"`
	ScheduledStart        *string         `json:"scheduled_start,omitempty"`
	ScheduledEnd          *string         `json:"scheduled_end,omitempty"`
	DurationMinutes       int             `json:"duration_minutes"`
	Timezone              string          `json:"timezone"`
	RecurrenceRule        *string         `json:"recurrence_rule,omitempty"`
	RecurrenceEndDate     *string         `json:"recurrence_end_date,omitempty"`
	ParentSessionID       *string         `json:"parent_session_id,omitempty"`
	MeetingProvider       *string         `json:"meeting_provider,omitempty"`
	MeetingLink           *string         `json:"meeting_link,omitempty"`
	MeetingID             *string         `json:"meeting_id,omitempty"`
	Status                string          `json:"status"`
	ConfirmedAt           *string         `json:"confirmed_at,omitempty"`
	CompletedAt           *string         `json:"completed_at,omitempty"`
	CancelledAt           *string         `json:"cancelled_at,omitempty"`
	CancellationReason    *string         `json:"cancellation_reason,omitempty"`
	ActualDurationMinutes *int            `json:"actual_duration_minutes,omitempty"`
	SessionNotes          *string         `json:"session_notes,omitempty"`
	Outcomes              []outcomeDTO    `json:"outcomes"`
	CreatedAt             string          `json:"created_at"`
	UpdatedAt             string          `json:"updated_at"`
}

type reminderDTO struct {
	ID           string  `json:"id"`
	SessionID    string  `json:"session_id"`
	UserID       string  `json:"user_id"`
	ReminderType string  `json:"reminder_type"`
	ReminderTime string  `json:"reminder_time"`
	EmailSent    bool    `json:"email_sent"`
	EmailSentAt  *string `json:"email_sent_at,omitempty"`
	InAppSent    bool    `json:"in_app_sent"`
	InAppSentAt  *string `json:"in_app_sent_at,omitempty"`
}

func toSessionDTOs(sessions []application.Session) []sessionDTO {
	out := make([]sessionDTO, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, toSessionDTO(session))
	}
	return out
}

func toSessionDTO(s application.Session) sessionDTO {
	dto := sessionDTO{
		ID:                    s.ID,
		HostID:                s.HostID,
		AttendeeID:            s.AttendeeID,
		PlanID:                s.PlanID,
		Title:                 s.Title,
		Description:           s.Description,
		SessionType:           string(s.SessionType),
		ProposedTimes:         make([]timeWindowDTO, 0, len(s.ProposedTimes)),
		ScheduledStart:        formatTimePtr(s.ScheduledStart),
		ScheduledEnd:          formatTimePtr(s.ScheduledEnd),
		DurationMinutes:       s.DurationMinutes,
		Timezone:              s.Timezone,
		RecurrenceEndDate:     formatTimePtr(s.RecurrenceEndDate),
		ParentSessionID:       s.ParentSessionID,
		MeetingLink:           s.MeetingLink,
		MeetingID:             s.MeetingID,
		Status:                string(s.Status),
		ConfirmedAt:           formatTimePtr(s.ConfirmedAt),
		CompletedAt:           formatTimePtr(s.CompletedAt),
		CancelledAt:           formatTimePtr(s.CancelledAt),
		CancellationReason:    s.CancellationReason,
		ActualDurationMinutes: s.ActualDurationMinutes,
		SessionNotes:          s.SessionNotes,
		Outcomes:              make([]outcomeDTO, 0, len(s.Outcomes)),
		CreatedAt:             formatTime(s.CreatedAt),
		UpdatedAt:             formatTime(s.UpdatedAt),
	}
	for _, w := range s.ProposedTimes {
		dto.ProposedTimes = append(dto.ProposedTimes, timeWindowDTO{Start: formatTime(w.Start), End: formatTime(w.End)})
	}
	for _, o := range s.Outcomes {
		dto.Outcomes = append(dto.Outcomes, outcomeDTO{ID: o.ID, Text: o.Text, Completed: o.Completed})
	}
	if s.RecurrenceRule != nil {
		rule := string(*s.RecurrenceRule)
		dto.RecurrenceRule = &rule
	}
	if s.MeetingProvider != nil {
		provider := string(*s.MeetingProvider)
		dto.MeetingProvider = &provider
	}
	return dto
}

func toReminderDTOs(reminders []application.Reminder) []reminderDTO {
	out := make([]reminderDTO, 0, len(reminders))
	for _, r := range reminders {
		out = append(out, reminderDTO{
			ID:           r.ID,
			SessionID:    r.SessionID,
			UserID:       r.UserID,
			ReminderType: string(r.Type),
			ReminderTime: formatTime(r.ReminderTime),
			EmailSent:    r.EmailSent,
			EmailSentAt:  formatTimePtr(r.EmailSentAt),
			InAppSent:    r.InAppSent,
			InAppSentAt:  formatTimePtr(r.InAppSentAt),
		})
	}
	return out
}

// formatTime keeps sub-second digits so a window read back from the API can be
// sent to confirm unchanged.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}
