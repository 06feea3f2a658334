package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"forno/backend/internal/domain"
	"forno/backend/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Clock returns the current instant.
type Clock func() time.Time

type Option func(*Service)

func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLocation sets the zone used to turn instants into calendar days.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

type Service struct {
	records store.RecordStore
	locks   *store.CollectionLocks
	logger  *zap.Logger
	clock   Clock
	loc     *time.Location
}

func New(records store.RecordStore, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		records: records,
		locks:   store.NewCollectionLocks(),
		logger:  logger.Named("service"),
		clock:   time.Now,
		loc:     time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the service clock's current instant in the configured zone.
func (s *Service) Now() time.Time {
	return s.clock().In(s.loc)
}

func (s *Service) today() domain.Day {
	return domain.DayOf(s.clock(), s.loc)
}

func actorName(actor string) string {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return "system"
	}
	return actor
}
