package service

import (
	"github.com/BumpyClock/tasque/internal/domain"
	"github.com/BumpyClock/tasque/internal/tasqerr"
	"github.com/BumpyClock/tasque/internal/validation"
)

// AddLabel validates label against the grammar, then emits task.updated
// with the full sorted label set (spec §4.6 "label_add").
func (s *Service) AddLabel(taskID, label string) (*domain.Task, error) {
	next, _, err := s.mutate(func(ld loaded) ([]domain.Event, error) {
		t, ok := ld.state.Tasks[taskID]
		if !ok {
			return nil, tasqerr.New(tasqerr.CodeTaskNotFound, "task %s not found", taskID)
		}
		labels, err := validation.AddLabel(t.Labels, label)
		if err != nil {
			return nil, err
		}
		eventID, err := s.newEventID()
		if err != nil {
			return nil, err
		}
		return []domain.Event{domain.NewEvent(eventID, s.now(), s.Actor, domain.EventTaskUpdated, taskID, map[string]any{
			"labels": toAnySlice(labels),
		})}, nil
	})
	if err != nil {
		return nil, err
	}
	return next.Tasks[taskID], nil
}

// RemoveLabel fails with NOT_FOUND if label isn't set, otherwise emits
// task.updated with the label dropped (spec §4.6 "label_remove").
func (s *Service) RemoveLabel(taskID, label string) (*domain.Task, error) {
	next, _, err := s.mutate(func(ld loaded) ([]domain.Event, error) {
		t, ok := ld.state.Tasks[taskID]
		if !ok {
			return nil, tasqerr.New(tasqerr.CodeTaskNotFound, "task %s not found", taskID)
		}
		labels, err := validation.RemoveLabel(t.Labels, label)
		if err != nil {
			return nil, err
		}
		eventID, err := s.newEventID()
		if err != nil {
			return nil, err
		}
		return []domain.Event{domain.NewEvent(eventID, s.now(), s.Actor, domain.EventTaskUpdated, taskID, map[string]any{
			"labels": toAnySlice(labels),
		})}, nil
	})
	if err != nil {
		return nil, err
	}
	return next.Tasks[taskID], nil
}

func toAnySlice(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
