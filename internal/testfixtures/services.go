package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/room-scheduler/internal/application"
	"github.com/example/room-scheduler/internal/lock"
	"github.com/example/room-scheduler/internal/recurrence"
	"github.com/example/room-scheduler/internal/scheduler"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
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

// ReservationServiceDeps captures dependencies for constructing a reservation
// service. A nil Locker gets an in-process keyed mutex and a nil Location UTC.
type ReservationServiceDeps struct {
	Store          application.ReservationStore
	Rooms          application.RoomCatalog
	MeetingTypes   application.MeetingTypeCatalog
	Locker         application.Locker
	Events         application.EventPublisher
	Metrics        application.Recorder
	Policy         *scheduler.Policy
	MaxOccurrences int
	Location       *time.Location
	IDGenerator    func() string
	Now            func() time.Time
	Logger         *slog.Logger
}

// NewReservationService builds a reservation service using the supplied
// dependencies combined with the factory defaults.
func (f *ServiceFactory) NewReservationService(deps ReservationServiceDeps) *application.ReservationService {
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	locker := deps.Locker
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	location := deps.Location
	if location == nil {
		location = time.UTC
	}
	policy := scheduler.DefaultPolicy()
	if deps.Policy != nil {
		policy = *deps.Policy
	}
	maxOccurrences := deps.MaxOccurrences
	if maxOccurrences <= 0 {
		maxOccurrences = recurrence.DefaultMaxOccurrences
	}
	return application.NewReservationService(application.ReservationServiceConfig{
		Store:        deps.Store,
		Rooms:        deps.Rooms,
		MeetingTypes: deps.MeetingTypes,
		Locker:       locker,
		Events:       deps.Events,
		Metrics:      deps.Metrics,
		Planner:      scheduler.NewPlanner(policy),
		Recurrence:   recurrence.NewEngine(maxOccurrences),
		Location:     location,
		IDGenerator:  idGen,
		Now:          now,
		Logger:       deps.Logger,
	})
}
