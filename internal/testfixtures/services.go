package testfixtures

import (
	"log/slog"
	"time"

	"github.com/manuel-Igtm/meeting-tool/internal/application"
	"github.com/manuel-Igtm/meeting-tool/internal/claim"
	"github.com/manuel-Igtm/meeting-tool/internal/persistence"
	"github.com/manuel-Igtm/meeting-tool/internal/persistence/memory"
	"github.com/manuel-Igtm/meeting-tool/internal/scheduler"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Policy      scheduler.Policy
	Logger      *slog.Logger
	CacheTTL    time.Duration
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults: the reference
// clock, "id" identifiers, the stock policy in EAT and a discarding logger.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	policy := scheduler.DefaultPolicy()
	policy.Location = EAT
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
		Policy:      policy,
		Logger:      slog.New(slog.DiscardHandler),
		CacheTTL:    time.Minute,
	}
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

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// WithPolicy overrides the engine policy.
func WithPolicy(policy scheduler.Policy) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Policy = policy
	}
}

// Services bundles everything a handler or scenario test needs.
type Services struct {
	Store        persistence.Store
	Engine       *scheduler.Engine
	Claims       *claim.Memory
	Scheduling   *application.SchedulingService
	Meetings     *application.MeetingService
	Availability *application.AvailabilityService
	Participants *application.ParticipantService
}

// NewServices wires the application services over store. A nil store
// selects a fresh in-memory store.
func (f *ServiceFactory) NewServices(store persistence.Store) *Services {
	if store == nil {
		store = memory.New()
	}
	claims := claim.NewMemory()
	engine := scheduler.NewEngine(application.NewStoreSource(store), f.Policy, scheduler.WithClaimer(claims))
	now := f.Clock.NowFunc()
	ids := f.IDGenerator.NextFunc()

	scheduling := application.NewSchedulingService(engine, f.CacheTTL, now, f.Logger)
	return &Services{
		Store:        store,
		Engine:       engine,
		Claims:       claims,
		Scheduling:   scheduling,
		Meetings:     application.NewMeetingService(store, engine, scheduling, ids, now, f.Logger),
		Availability: application.NewAvailabilityService(store, engine.Location(), scheduling, ids, now, f.Logger),
		Participants: application.NewParticipantService(store, ids, now, f.Logger),
	}
}
