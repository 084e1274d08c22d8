package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/collab-sessions/internal/application"
	"github.com/example/collab-sessions/internal/reminder"
)

// ServiceFactory builds application services that share one deterministic
// clock and id sequence, so session ids, outcome ids and reminder ids come
// from the same IDGenerator.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Policy      application.SessionPolicy
	Offsets     []reminder.Offset
	Logger      *slog.Logger
}

type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory starts the clock at ReferenceTime and numbers ids id-1, id-2, ...
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

func WithClock(clock *Clock) ServiceFactoryOption {
	return func(f *ServiceFactory) { f.Clock = clock }
}

func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(f *ServiceFactory) { f.IDGenerator = generator }
}

// WithPolicy sets who may confirm and the default list limit.
func WithPolicy(policy application.SessionPolicy) ServiceFactoryOption {
	return func(f *ServiceFactory) { f.Policy = policy }
}

// WithOffsets replaces the default 24 hour and 1 hour reminder offsets.
func WithOffsets(offsets ...reminder.Offset) ServiceFactoryOption {
	return func(f *ServiceFactory) { f.Offsets = offsets }
}

// ReminderServiceDeps lists the stores a reminder service reads and writes.
// Both may be nil.
type ReminderServiceDeps struct {
	Reminders application.ReminderRepository
	Index     application.ReminderIndex
}

func (f *ServiceFactory) NewReminderService(deps ReminderServiceDeps) *application.ReminderService {
	return application.NewReminderService(
		deps.Reminders,
		deps.Index,
		f.Offsets,
		f.IDGenerator.NextFunc(),
		f.Clock.NowFunc(),
		f.Logger,
	)
}

// SessionServiceDeps lists the collaborators of a session service. When
// Reminders is nil a reminder service is built from ReminderStore and Index.
type SessionServiceDeps struct {
	Sessions      application.SessionRepository
	Grants        application.GrantDirectory
	Reminders     *application.ReminderService
	ReminderStore application.ReminderRepository
	Index         application.ReminderIndex
}

func (f *ServiceFactory) NewSessionService(deps SessionServiceDeps) *application.SessionService {
	reminders := deps.Reminders
	if reminders == nil {
		reminders = f.NewReminderService(ReminderServiceDeps{Reminders: deps.ReminderStore, Index: deps.Index})
	}
	return application.NewSessionService(
		deps.Sessions,
		application.NewCollaborationAuthorizer(deps.Grants, f.Logger),
		reminders,
		f.Policy,
		f.IDGenerator.NextFunc(),
		f.Clock.NowFunc(),
		f.Logger,
	)
}
