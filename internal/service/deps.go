package service

import (
	"github.com/BumpyClock/tasque/internal/domain"
	"github.com/BumpyClock/tasque/internal/tasqerr"
)

// AddDep emits dep.added after a self-edge check; the cycle check itself
// lives in the projector so it sees the exact state the event folds
// against (spec §4.6 "dep_add").
func (s *Service) AddDep(taskID, blocker string, depType domain.DepType) (*domain.Task, error) {
	if blocker == taskID {
		return nil, tasqerr.New(tasqerr.CodeRelationSelfEdge, "a task cannot depend on itself")
	}
	if depType == "" {
		depType = domain.DepBlocks
	}
	next, _, err := s.mutate(func(ld loaded) ([]domain.Event, error) {
		if !ld.state.Exists(taskID) {
			return nil, tasqerr.New(tasqerr.CodeTaskNotFound, "task %s not found", taskID)
		}
		if !ld.state.Exists(blocker) {
			return nil, tasqerr.New(tasqerr.CodeTaskNotFound, "blocker %s not found", blocker)
		}
		eventID, err := s.newEventID()
		if err != nil {
			return nil, err
		}
		return []domain.Event{domain.NewEvent(eventID, s.now(), s.Actor, domain.EventDepAdded, taskID, map[string]any{
			"blocker":  blocker,
			"dep_type": string(depType),
		})}, nil
	})
	if err != nil {
		return nil, err
	}
	return next.Tasks[taskID], nil
}

// RemoveDep emits dep.removed (spec §4.6 "dep_remove"). Removing an edge
// that doesn't exist is a no-op, matching the projector's idempotent
// filter-by-value semantics.
func (s *Service) RemoveDep(taskID, blocker string, depType domain.DepType) (*domain.Task, error) {
	if depType == "" {
		depType = domain.DepBlocks
	}
	next, _, err := s.mutate(func(ld loaded) ([]domain.Event, error) {
		if !ld.state.Exists(taskID) {
			return nil, tasqerr.New(tasqerr.CodeTaskNotFound, "task %s not found", taskID)
		}
		eventID, err := s.newEventID()
		if err != nil {
			return nil, err
		}
		return []domain.Event{domain.NewEvent(eventID, s.now(), s.Actor, domain.EventDepRemoved, taskID, map[string]any{
			"blocker":  blocker,
			"dep_type": string(depType),
		})}, nil
	})
	if err != nil {
		return nil, err
	}
	return next.Tasks[taskID], nil
}
