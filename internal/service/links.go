package service

import (
	"github.com/BumpyClock/tasque/internal/domain"
	"github.com/BumpyClock/tasque/internal/tasqerr"
)

// AddLink emits link.added after a self-edge check; mirroring the reverse
// edge for symmetric relation types is the projector's job (spec §4.6
// "link_add", spec §3.3 symmetry).
func (s *Service) AddLink(taskID string, relType domain.RelType, target string) (*domain.Task, error) {
	if target == taskID {
		return nil, tasqerr.New(tasqerr.CodeRelationSelfEdge, "a task cannot link to itself")
	}
	if !relType.Valid() {
		return nil, tasqerr.New(tasqerr.CodeValidation, "unknown rel_type %q", relType)
	}
	next, _, err := s.mutate(func(ld loaded) ([]domain.Event, error) {
		if !ld.state.Exists(taskID) {
			return nil, tasqerr.New(tasqerr.CodeTaskNotFound, "task %s not found", taskID)
		}
		if !ld.state.Exists(target) {
			return nil, tasqerr.New(tasqerr.CodeTaskNotFound, "target %s not found", target)
		}
		eventID, err := s.newEventID()
		if err != nil {
			return nil, err
		}
		return []domain.Event{domain.NewEvent(eventID, s.now(), s.Actor, domain.EventLinkAdded, taskID, map[string]any{
			"type":   string(relType),
			"target": target,
		})}, nil
	})
	if err != nil {
		return nil, err
	}
	return next.Tasks[taskID], nil
}

// RemoveLink emits link.removed (spec §4.6 "link_remove"); the mirrored
// reverse edge is removed by the projector for symmetric types.
func (s *Service) RemoveLink(taskID string, relType domain.RelType, target string) (*domain.Task, error) {
	next, _, err := s.mutate(func(ld loaded) ([]domain.Event, error) {
		if !ld.state.Exists(taskID) {
			return nil, tasqerr.New(tasqerr.CodeTaskNotFound, "task %s not found", taskID)
		}
		eventID, err := s.newEventID()
		if err != nil {
			return nil, err
		}
		return []domain.Event{domain.NewEvent(eventID, s.now(), s.Actor, domain.EventLinkRemoved, taskID, map[string]any{
			"type":   string(relType),
			"target": target,
		})}, nil
	})
	if err != nil {
		return nil, err
	}
	return next.Tasks[taskID], nil
}
