package service

import (
	"github.com/BumpyClock/tasque/internal/domain"
	"github.com/BumpyClock/tasque/internal/ids"
	"github.com/BumpyClock/tasque/internal/projector"
	"github.com/BumpyClock/tasque/internal/tasqerr"
)

// CreateInput describes a new task.
type CreateInput struct {
	Kind           domain.Kind
	Title          string
	Description    string
	Priority       *domain.Priority
	ParentID       string
	DiscoveredFrom string
}

const maxRootIDRetries = 10

// Create generates an id (root = random-unique up to 10 retries; child =
// parent.(counter+1)) and appends task.created (spec §4.6 "create").
func (s *Service) Create(in CreateInput) (*domain.Task, error) {
	if in.Title == "" {
		return nil, tasqerr.New(tasqerr.CodeValidation, "title is required")
	}

	next, events, err := s.mutate(func(ld loaded) ([]domain.Event, error) {
		taskID, err := s.allocateID(ld.state, in.ParentID)
		if err != nil {
			return nil, err
		}
		eventID, err := s.newEventID()
		if err != nil {
			return nil, err
		}
		payload := map[string]any{"title": in.Title}
		if in.Kind != "" {
			payload["kind"] = string(in.Kind)
		}
		if in.Description != "" {
			payload["description"] = in.Description
		}
		if in.ParentID != "" {
			payload["parent_id"] = in.ParentID
		}
		if in.Priority != nil {
			payload["priority"] = float64(*in.Priority)
		}
		if in.DiscoveredFrom != "" {
			payload["discovered_from"] = in.DiscoveredFrom
		}
		return []domain.Event{domain.NewEvent(eventID, s.now(), s.Actor, domain.EventTaskCreated, taskID, payload)}, nil
	})
	if err != nil {
		return nil, err
	}
	return next.Tasks[events[0].TaskID], nil
}

func (s *Service) allocateID(state projector.State, parentID string) (string, error) {
	if parentID != "" {
		if !state.Exists(parentID) {
			return "", tasqerr.New(tasqerr.CodeTaskNotFound, "parent %s not found", parentID)
		}
		n := state.ChildCounters[parentID] + 1
		return ids.ChildID(parentID, n), nil
	}
	for i := 0; i < maxRootIDRetries; i++ {
		id, err := ids.NewRootID()
		if err != nil {
			return "", err
		}
		if !state.Exists(id) {
			return id, nil
		}
	}
	return "", tasqerr.New(tasqerr.CodeIDCollision, "exhausted %d attempts to allocate a unique root id", maxRootIDRetries)
}
