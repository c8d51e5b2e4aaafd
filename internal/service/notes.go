package service

import (
	"strings"

	"github.com/BumpyClock/tasque/internal/domain"
	"github.com/BumpyClock/tasque/internal/tasqerr"
)

// AddNote appends a timestamped annotation by emitting task.noted
// (spec §4.6 "note_add").
func (s *Service) AddNote(taskID, text string) (*domain.Task, error) {
	if strings.TrimSpace(text) == "" {
		return nil, tasqerr.New(tasqerr.CodeValidation, "note text cannot be empty")
	}
	next, _, err := s.mutate(func(ld loaded) ([]domain.Event, error) {
		if !ld.state.Exists(taskID) {
			return nil, tasqerr.New(tasqerr.CodeTaskNotFound, "task %s not found", taskID)
		}
		eventID, err := s.newEventID()
		if err != nil {
			return nil, err
		}
		return []domain.Event{domain.NewEvent(eventID, s.now(), s.Actor, domain.EventTaskNoted, taskID, map[string]any{
			"text": text,
		})}, nil
	})
	if err != nil {
		return nil, err
	}
	return next.Tasks[taskID], nil
}
