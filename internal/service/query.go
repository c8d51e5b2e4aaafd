package service

import "github.com/BumpyClock/tasque/internal/projector"

// Ready returns ready task ids (open/in_progress with every blocking
// predecessor terminal) in creation order, without taking the write lock
// (spec §4.5 Readiness, spec §4.6 read operations).
func (s *Service) Ready() ([]string, error) {
	state, _, err := s.Load()
	if err != nil {
		return nil, err
	}
	return projector.ReadyList(state), nil
}

// PlanningLane re-exports the projector's lane enum for callers that don't
// want to import internal/projector directly.
type PlanningLane = projector.PlanningLane

const (
	LanePlanning = projector.LanePlanning
	LaneCoding   = projector.LaneCoding
)

// InLane reports whether taskID belongs to the given planning lane,
// without taking the write lock (spec §4.5 planning lane filter).
func (s *Service) InLane(taskID string, lane PlanningLane) (bool, error) {
	state, _, err := s.Load()
	if err != nil {
		return false, err
	}
	return projector.InLane(state, taskID, lane), nil
}
