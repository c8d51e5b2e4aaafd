// Package service implements the public operations of the engine: the
// façade every mutating call goes through (acquire lock → load → validate
// → build events → fold → append → persist → release), per spec §4.6.
package service

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/BumpyClock/tasque/internal/config"
	"github.com/BumpyClock/tasque/internal/domain"
	"github.com/BumpyClock/tasque/internal/eventlog"
	"github.com/BumpyClock/tasque/internal/ids"
	"github.com/BumpyClock/tasque/internal/lock"
	"github.com/BumpyClock/tasque/internal/metrics"
	"github.com/BumpyClock/tasque/internal/paths"
	"github.com/BumpyClock/tasque/internal/projector"
	"github.com/BumpyClock/tasque/internal/snapshot"
	"github.com/BumpyClock/tasque/internal/tasqerr"
)

// Clock supplies the current instant. Tests inject a deterministic clock
// (spec §9 Design Notes); the projector itself never calls a global clock.
type Clock func() time.Time

// Service is the engine's façade. It holds only path/identity/injection
// state — all durable state lives on disk under Layout.Dir.
type Service struct {
	Layout  paths.Layout
	Actor   string
	Clock   Clock
	EventID ids.EventIDGen

	lockTimeout time.Duration
	log         zerolog.Logger
	metrics     *metrics.Metrics
}

// Option configures a Service at construction time.
type Option func(*Service)

// WithLockTimeout overrides the default lock acquisition deadline
// (spec §6.3 TSQ_LOCK_TIMEOUT_MS).
func WithLockTimeout(d time.Duration) Option { return func(s *Service) { s.lockTimeout = d } }

// WithLogger attaches a structured logger (spec's ambient logging stack).
func WithLogger(l zerolog.Logger) Option { return func(s *Service) { s.log = l } }

// WithMetrics attaches optional Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

// New constructs a Service rooted at repoRoot for actor, using clock and
// eventIDGen as the injectable time/id sources.
func New(repoRoot, actor string, clock Clock, eventIDGen ids.EventIDGen, opts ...Option) *Service {
	s := &Service{
		Layout:  paths.For(repoRoot),
		Actor:   actor,
		Clock:   clock,
		EventID: eventIDGen,
		log:     zerolog.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) lockManager() *lock.Manager {
	return lock.New(s.Layout, s.lockTimeout, s.log).WithMetrics(s.metrics)
}

// loaded bundles what every mutating op needs after acquiring the lock.
type loaded struct {
	state   projector.State
	events  []domain.Event
	cfg     config.Config
	warning string
}

func (s *Service) load() (loaded, error) {
	cfg, err := config.Load(s.Layout)
	if err != nil {
		return loaded{}, err
	}
	if cfg.SchemaVersion == 0 {
		cfg = config.Default()
	}
	l, err := snapshot.Load(s.Layout)
	if err != nil {
		return loaded{}, err
	}
	return loaded{state: l.State, events: l.Events, cfg: cfg, warning: l.Warning}, nil
}

// commit appends newEvents, recomputes and persists the state cache, and
// maybe writes a snapshot, per spec §4.6's skeleton. next must already be
// the result of folding newEvents onto ld.state.
func (s *Service) commit(ld loaded, next projector.State, newEvents []domain.Event) error {
	log := eventlog.New(s.Layout)
	if err := log.Append(newEvents); err != nil {
		return err
	}
	s.metrics.AddEventsAppended(len(newEvents))

	if err := snapshot.WriteStateCache(s.Layout, next); err != nil {
		return err
	}

	every := ld.cfg.SnapshotEveryOrDefault()
	newCount := len(ld.events) + len(newEvents)
	if every > 0 && newCount%every == 0 {
		if err := snapshot.Write(s.Layout, s.now(), newCount, next); err != nil {
			return err
		}
		s.metrics.IncSnapshotWritten()
	}
	return nil
}

func (s *Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now().UTC()
}

func (s *Service) newEventID() (string, error) {
	if s.EventID != nil {
		return s.EventID(s.now())
	}
	return "", tasqerr.New(tasqerr.CodeInternal, "no event id generator configured")
}

// mutate is the shared skeleton: acquire the lock, load projection,
// invoke build to get the candidate events from the loaded state, fold
// them, and on success append + persist. build may return zero events for
// a true no-op, in which case nothing is written and next is returned as
// the loaded state.
func (s *Service) mutate(build func(ld loaded) ([]domain.Event, error)) (projector.State, []domain.Event, error) {
	mgr := s.lockManager()
	h, err := mgr.Acquire()
	if err != nil {
		return projector.State{}, nil, err
	}
	defer mgr.Release(h)

	ld, err := s.load()
	if err != nil {
		return projector.State{}, nil, err
	}

	events, err := build(ld)
	if err != nil {
		return projector.State{}, nil, err
	}
	if len(events) == 0 {
		return ld.state, nil, nil
	}

	next, err := projector.Fold(ld.state, events)
	if err != nil {
		return projector.State{}, nil, err
	}
	if err := s.commit(ld, next, events); err != nil {
		return projector.State{}, nil, err
	}
	return next, events, nil
}

// Load performs a read-only full load (no lock), per spec §4.6 "Read
// operations skip the lock entirely and operate on a freshly loaded
// projection."
func (s *Service) Load() (projector.State, string, error) {
	ld, err := s.load()
	if err != nil {
		return projector.State{}, "", err
	}
	return ld.state, ld.warning, nil
}

// Get returns a single task by id, or TASK_NOT_FOUND.
func (s *Service) Get(id string) (*domain.Task, error) {
	state, _, err := s.Load()
	if err != nil {
		return nil, err
	}
	t, ok := state.Tasks[id]
	if !ok {
		return nil, tasqerr.New(tasqerr.CodeTaskNotFound, "task %s not found", id)
	}
	return t, nil
}
