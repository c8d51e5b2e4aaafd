// Package projector implements the pure fold of events into state (spec
// §4.5) plus the invariant-enforcing validators: cycle detection,
// duplicate-cycle detection, status transitions, and link symmetry.
package projector

import (
	"github.com/BumpyClock/tasque/internal/domain"
)

// State is the in-memory projection (spec §3.4). Every field is a map or
// slice that Apply treats as copy-on-write: mutating a task or edge list
// clones the touched collection first so a caller holding an older State
// value never observes the mutation (spec §9 Design Notes).
type State struct {
	Tasks         map[string]*domain.Task
	Deps          map[string][]domain.DepEdge
	Links         map[string]map[domain.RelType][]string
	ChildCounters map[string]int
	CreatedOrder  []string
	AppliedEvents int
}

// New returns an empty projection.
func New() State {
	return State{
		Tasks:         map[string]*domain.Task{},
		Deps:          map[string][]domain.DepEdge{},
		Links:         map[string]map[domain.RelType][]string{},
		ChildCounters: map[string]int{},
	}
}

// clone returns a shallow structural copy: top-level maps/slices are
// copied so inserts/removals on the copy never mutate the receiver, but
// *domain.Task values are only deep-cloned when actually touched (see
// cloneTask) to keep the common read path cheap.
func (s State) clone() State {
	tasks := make(map[string]*domain.Task, len(s.Tasks))
	for k, v := range s.Tasks {
		tasks[k] = v
	}
	deps := make(map[string][]domain.DepEdge, len(s.Deps))
	for k, v := range s.Deps {
		deps[k] = append([]domain.DepEdge(nil), v...)
	}
	links := make(map[string]map[domain.RelType][]string, len(s.Links))
	for k, v := range s.Links {
		inner := make(map[domain.RelType][]string, len(v))
		for rt, targets := range v {
			inner[rt] = append([]string(nil), targets...)
		}
		links[k] = inner
	}
	counters := make(map[string]int, len(s.ChildCounters))
	for k, v := range s.ChildCounters {
		counters[k] = v
	}
	return State{
		Tasks:         tasks,
		Deps:          deps,
		Links:         links,
		ChildCounters: counters,
		CreatedOrder:  append([]string(nil), s.CreatedOrder...),
		AppliedEvents: s.AppliedEvents,
	}
}

// cloneTask returns a private, mutable copy of the task in s and installs
// it back into s.Tasks, implementing copy-on-write at the single-task
// granularity every event actually touches.
func (s State) cloneTask(id string) *domain.Task {
	t := s.Tasks[id].Clone()
	s.Tasks[id] = t
	return t
}

// Exists reports whether id names a task in the projection.
func (s State) Exists(id string) bool {
	_, ok := s.Tasks[id]
	return ok
}

// linkSet returns (creating if absent) the target-list map for src.
func (s State) linkSet(src string) map[domain.RelType][]string {
	m, ok := s.Links[src]
	if !ok {
		m = map[domain.RelType][]string{}
		s.Links[src] = m
	}
	return m
}
