package service

import (
	"github.com/BumpyClock/tasque/internal/domain"
	"github.com/BumpyClock/tasque/internal/tasqerr"
)

// UpdateInput patches an existing task. Pointer fields are optional; Clear*
// flags are mutually exclusive with their corresponding Set field, exactly
// as the projector guards enforce (spec §4.5 task.updated).
type UpdateInput struct {
	Title               *string
	Description         *string
	ClearDescription    bool
	ExternalRef         *string
	ClearExternalRef    bool
	DiscoveredFrom      *string
	ClearDiscoveredFrom bool
	Assignee            *string
	DuplicateOf         *string
	PlanningState       *domain.PlanningState
	Priority            *domain.Priority
	Status              *domain.Status
}

// Update emits task.updated (patch payload) and/or task.status_set,
// per spec §4.6 "update".
func (s *Service) Update(taskID string, in UpdateInput) (*domain.Task, error) {
	next, _, err := s.mutate(func(ld loaded) ([]domain.Event, error) {
		if !ld.state.Exists(taskID) {
			return nil, tasqerr.New(tasqerr.CodeTaskNotFound, "task %s not found", taskID)
		}
		var out []domain.Event

		payload := map[string]any{}
		if in.Title != nil {
			payload["title"] = *in.Title
		}
		if in.Description != nil {
			payload["description"] = *in.Description
		}
		if in.ClearDescription {
			payload["clear_description"] = true
		}
		if in.ExternalRef != nil {
			payload["external_ref"] = *in.ExternalRef
		}
		if in.ClearExternalRef {
			payload["clear_external_ref"] = true
		}
		if in.DiscoveredFrom != nil {
			payload["discovered_from"] = *in.DiscoveredFrom
		}
		if in.ClearDiscoveredFrom {
			payload["clear_discovered_from"] = true
		}
		if in.Assignee != nil {
			payload["assignee"] = *in.Assignee
		}
		if in.DuplicateOf != nil {
			payload["duplicate_of"] = *in.DuplicateOf
		}
		if in.PlanningState != nil {
			payload["planning_state"] = string(*in.PlanningState)
		}
		if in.Priority != nil {
			payload["priority"] = float64(*in.Priority)
		}
		if len(payload) > 0 {
			eventID, err := s.newEventID()
			if err != nil {
				return nil, err
			}
			out = append(out, domain.NewEvent(eventID, s.now(), s.Actor, domain.EventTaskUpdated, taskID, payload))
		}
		if in.Status != nil {
			eventID, err := s.newEventID()
			if err != nil {
				return nil, err
			}
			out = append(out, domain.NewEvent(eventID, s.now(), s.Actor, domain.EventTaskStatusSet, taskID, map[string]any{
				"status": string(*in.Status),
			}))
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return next.Tasks[taskID], nil
}
