package main

import (
	"context"

	"github.com/example/collab-sessions/internal/application"
	"github.com/example/collab-sessions/internal/lifecycle"
	"github.com/example/collab-sessions/internal/persistence"
	"github.com/example/collab-sessions/internal/reminder"
)

type sessionRepositoryAdapter struct {
	repo persistence.SessionRepository
}

func newSessionRepositoryAdapter(repo persistence.SessionRepository) *sessionRepositoryAdapter {
	return &sessionRepositoryAdapter{repo: repo}
}

func (a *sessionRepositoryAdapter) CreateSession(ctx context.Context, session application.Session) (application.Session, error) {
	if err := a.repo.CreateSession(ctx, toPersistenceSession(session)); err != nil {
		return application.Session{}, err
	}
	stored, err := a.repo.GetSession(ctx, session.ID)
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) GetSession(ctx context.Context, id string) (application.Session, error) {
	stored, err := a.repo.GetSession(ctx, id)
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) ListSessions(ctx context.Context, query application.SessionQuery) ([]application.Session, error) {
	models, err := a.repo.ListSessions(ctx, persistence.SessionFilter{
		UserID:             query.UserID,
		Role:               persistence.Role(query.Role),
		Statuses:           statusStrings(query.Statuses),
		From:               query.From,
		To:                 query.To,
		IncludeUnscheduled: query.IncludeUnscheduled,
		PlanID:             query.PlanID,
		Limit:              query.Limit,
		Descending:         query.Descending,
	})
	if err != nil {
		return nil, err
	}
	sessions := make([]application.Session, 0, len(models))
	for _, model := range models {
		sessions = append(sessions, toApplicationSession(model))
	}
	return sessions, nil
}

func (a *sessionRepositoryAdapter) TransitionSession(ctx context.Context, transition application.SessionTransition) (application.Session, error) {
	changes := transition.Changes
	var status *string
	if changes.Status != nil {
		s := string(*changes.Status)
		status = &s
	}
	stored, err := a.repo.TransitionSession(ctx, persistence.SessionTransition{
		SessionID:    transition.SessionID,
		FromStatuses: statusStrings(transition.From),
		Changes: persistence.SessionChanges{
			Status:                status,
			ScheduledStart:        changes.ScheduledStart,
			ScheduledEnd:          changes.ScheduledEnd,
			ConfirmedAt:           changes.ConfirmedAt,
			CompletedAt:           changes.CompletedAt,
			CancelledAt:           changes.CancelledAt,
			CancellationReason:    changes.CancellationReason,
			ActualDurationMinutes: changes.ActualDurationMinutes,
			SessionNotes:          changes.SessionNotes,
			Outcomes:              toPersistenceOutcomes(changes.Outcomes),
			UpdatedAt:             changes.UpdatedAt,
		},
	})
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) DeleteSession(ctx context.Context, id string, allowed []lifecycle.Status) error {
	return a.repo.DeleteSession(ctx, id, statusStrings(allowed))
}

type reminderRepositoryAdapter struct {
	repo persistence.ReminderRepository
}

func newReminderRepositoryAdapter(repo persistence.ReminderRepository) *reminderRepositoryAdapter {
	return &reminderRepositoryAdapter{repo: repo}
}

func (a *reminderRepositoryAdapter) CreateReminders(ctx context.Context, reminders []application.Reminder) ([]application.Reminder, error) {
	stored, err := a.repo.CreateReminders(ctx, toPersistenceReminders(reminders))
	if err != nil {
		return nil, err
	}
	return toApplicationReminders(stored), nil
}

func (a *reminderRepositoryAdapter) ListRemindersForSession(ctx context.Context, sessionID string) ([]application.Reminder, error) {
	stored, err := a.repo.ListRemindersForSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return toApplicationReminders(stored), nil
}

type reminderPublisher interface {
	Publish(ctx context.Context, reminders []persistence.Reminder) error
	Retract(ctx context.Context, sessionID string) error
}

type reminderIndexAdapter struct {
	index reminderPublisher
}

func newReminderIndexAdapter(index reminderPublisher) *reminderIndexAdapter {
	return &reminderIndexAdapter{index: index}
}

func (a *reminderIndexAdapter) Publish(ctx context.Context, reminders []application.Reminder) error {
	return a.index.Publish(ctx, toPersistenceReminders(reminders))
}

func (a *reminderIndexAdapter) Retract(ctx context.Context, sessionID string) error {
	return a.index.Retract(ctx, sessionID)
}

func toPersistenceSession(s application.Session) persistence.Session {
	model := persistence.Session{
		ID:                    s.ID,
		HostID:                s.HostID,
		AttendeeID:            s.AttendeeID,
		PlanID:                s.PlanID,
		Title:                 s.Title,
		Description:           s.Description,
		SessionType:           string(s.SessionType),
		ProposedTimes:         make([]persistence.TimeWindow, 0, len(s.ProposedTimes)),
		ScheduledStart:        s.ScheduledStart,
		ScheduledEnd:          s.ScheduledEnd,
		DurationMinutes:       s.DurationMinutes,
		Timezone:              s.Timezone,
		RecurrenceEndDate:     s.RecurrenceEndDate,
		ParentSessionID:       s.ParentSessionID,
		MeetingLink:           s.MeetingLink,
		MeetingID:             s.MeetingID,
		Status:                string(s.Status),
		ConfirmedAt:           s.ConfirmedAt,
		CompletedAt:           s.CompletedAt,
		CancelledAt:           s.CancelledAt,
		CancellationReason:    s.CancellationReason,
		ActualDurationMinutes: s.ActualDurationMinutes,
		SessionNotes:          s.SessionNotes,
		Outcomes:              toPersistenceOutcomes(s.Outcomes),
		CreatedAt:             s.CreatedAt,
		UpdatedAt:             s.UpdatedAt,
	}
	for _, w := range s.ProposedTimes {
		model.ProposedTimes = append(model.ProposedTimes, persistence.TimeWindow{Start: w.Start, End: w.End})
	}
	if s.RecurrenceRule != nil {
		rule := string(*s.RecurrenceRule)
		model.RecurrenceRule = &rule
	}
	if s.MeetingProvider != nil {
		provider := string(*s.MeetingProvider)
		model.MeetingProvider = &provider
	}
	return model
}

func toApplicationSession(model persistence.Session) application.Session {
	s := application.Session{
		ID:                    model.ID,
		HostID:                model.HostID,
		AttendeeID:            model.AttendeeID,
		PlanID:                model.PlanID,
		Title:                 model.Title,
		Description:           model.Description,
		SessionType:           application.SessionType(model.SessionType),
		ProposedTimes:         make([]application.TimeWindow, 0, len(model.ProposedTimes)),
		ScheduledStart:        model.ScheduledStart,
		ScheduledEnd:          model.ScheduledEnd,
		DurationMinutes:       model.DurationMinutes,
		Timezone:              model.Timezone,
		RecurrenceEndDate:     model.RecurrenceEndDate,
		ParentSessionID:       model.ParentSessionID,
		MeetingLink:           model.MeetingLink,
		MeetingID:             model.MeetingID,
		Status:                lifecycle.Status(model.Status),
		ConfirmedAt:           model.ConfirmedAt,
		CompletedAt:           model.CompletedAt,
		CancelledAt:           model.CancelledAt,
		CancellationReason:    model.CancellationReason,
		ActualDurationMinutes: model.ActualDurationMinutes,
		SessionNotes:          model.SessionNotes,
		Outcomes:              make([]application.Outcome, 0, len(model.Outcomes)),
		CreatedAt:             model.CreatedAt,
		UpdatedAt:             model.UpdatedAt,
	}
	for _, w := range model.ProposedTimes {
		s.ProposedTimes = append(s.ProposedTimes, application.TimeWindow{Start: w.Start, End: w.End})
	}
	for _, o := range model.Outcomes {
		s.Outcomes = append(s.Outcomes, application.Outcome{ID: o.ID, Text: o.Text, Completed: o.Completed})
	}
	if model.RecurrenceRule != nil {
		rule := application.RecurrenceRule(*model.RecurrenceRule)
		s.RecurrenceRule = &rule
	}
	if model.MeetingProvider != nil {
		provider := application.MeetingProvider(*model.MeetingProvider)
		s.MeetingProvider = &provider
	}
	return s
}

// toPersistenceOutcomes keeps nil distinct from empty; nil leaves stored outcomes untouched.
func toPersistenceOutcomes(outcomes []application.Outcome) []persistence.Outcome {
	if outcomes == nil {
		return nil
	}
	out := make([]persistence.Outcome, 0, len(outcomes))
	for _, o := range outcomes {
		out = append(out, persistence.Outcome{ID: o.ID, Text: o.Text, Completed: o.Completed})
	}
	return out
}

func toPersistenceReminders(reminders []application.Reminder) []persistence.Reminder {
	out := make([]persistence.Reminder, 0, len(reminders))
	for _, r := range reminders {
		out = append(out, persistence.Reminder{
			ID:           r.ID,
			SessionID:    r.SessionID,
			UserID:       r.UserID,
			ReminderType: string(r.Type),
			ReminderTime: r.ReminderTime,
			EmailSent:    r.EmailSent,
			EmailSentAt:  r.EmailSentAt,
			InAppSent:    r.InAppSent,
			InAppSentAt:  r.InAppSentAt,
			CreatedAt:    r.CreatedAt,
		})
	}
	return out
}

func toApplicationReminders(models []persistence.Reminder) []application.Reminder {
	out := make([]application.Reminder, 0, len(models))
	for _, m := range models {
		out = append(out, application.Reminder{
			ID:           m.ID,
			SessionID:    m.SessionID,
			UserID:       m.UserID,
			Type:         reminder.Type(m.ReminderType),
			ReminderTime: m.ReminderTime,
			EmailSent:    m.EmailSent,
			EmailSentAt:  m.EmailSentAt,
			InAppSent:    m.InAppSent,
			InAppSentAt:  m.InAppSentAt,
			CreatedAt:    m.CreatedAt,
		})
	}
	return out
}

func statusStrings(statuses []lifecycle.Status) []string {
	if len(statuses) == 0 {
		return nil
	}
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}
