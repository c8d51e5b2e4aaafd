package service

import (
	"github.com/BumpyClock/tasque/internal/domain"
	"github.com/BumpyClock/tasque/internal/projector"
	"github.com/BumpyClock/tasque/internal/tasqerr"
	"github.com/BumpyClock/tasque/internal/validation"
)

// ClaimInput configures the claim operation.
type ClaimInput struct {
	Assignee            string // defaults to actor if empty
	RequireAttachedSpec bool
}

// Claim asserts the task is claimable, optionally requires a valid
// attached spec, and emits task.claimed (spec §4.6 "claim").
func (s *Service) Claim(taskID string, in ClaimInput) (*domain.Task, error) {
	next, _, err := s.mutate(func(ld loaded) ([]domain.Event, error) {
		t := ld.state.Tasks[taskID]
		if err := validation.ForClaim()(taskID, t); err != nil {
			return nil, err
		}
		if t.Assignee != "" && in.Assignee != "" && t.Assignee != in.Assignee {
			return nil, tasqerr.New(tasqerr.CodeClaimConflict, "task %s already assigned to %s", taskID, t.Assignee)
		}
		if in.RequireAttachedSpec {
			if err := checkAttachedSpec(s.Layout, t); err != nil {
				return nil, err
			}
		}
		eventID, err := s.newEventID()
		if err != nil {
			return nil, err
		}
		payload := map[string]any{}
		if in.Assignee != "" {
			payload["assignee"] = in.Assignee
		}
		return []domain.Event{domain.NewEvent(eventID, s.now(), s.Actor, domain.EventTaskClaimed, taskID, payload)}, nil
	})
	if err != nil {
		return nil, err
	}
	return next.Tasks[taskID], nil
}

// Close batch-emits task.status_set(closed) for each id (spec §4.6
// "close/reopen").
func (s *Service) Close(taskIDs ...string) (projector.State, error) {
	return s.batchStatus(domain.StatusClosed, taskIDs)
}

// Reopen batch-emits task.status_set(open) for each id, after
// validation.ForReopen confirms the task exists and is terminal
// (closed or canceled).
func (s *Service) Reopen(taskIDs ...string) (projector.State, error) {
	return s.batchStatus(domain.StatusOpen, taskIDs)
}

func (s *Service) batchStatus(target domain.Status, taskIDs []string) (projector.State, error) {
	next, _, err := s.mutate(func(ld loaded) ([]domain.Event, error) {
		var out []domain.Event
		for _, id := range taskIDs {
			t := ld.state.Tasks[id]
			if t == nil {
				return nil, tasqerr.New(tasqerr.CodeTaskNotFound, "task %s not found", id)
			}
			if target == domain.StatusOpen {
				if err := validation.ForReopen()(id, t); err != nil {
					return nil, err
				}
			}
			eventID, err := s.newEventID()
			if err != nil {
				return nil, err
			}
			out = append(out, domain.NewEvent(eventID, s.now(), s.Actor, domain.EventTaskStatusSet, id, map[string]any{
				"status": string(target),
			}))
		}
		return out, nil
	})
	if err != nil {
		return projector.State{}, err
	}
	return next, nil
}

// MergeResult is the outcome of Supersede/Duplicate/Merge.
type MergeResult struct {
	State   projector.State
	DryRun  bool
}

// Supersede closes source and points it at target by emitting a single
// task.superseded event, whose projection sets status closed, closed_at
// and superseded_by (spec §4.5). It emits no link.added, task.updated or
// task.status_set event, so no supersedes relation link is recorded.
func (s *Service) Supersede(sourceID, targetID string) (*domain.Task, error) {
	next, _, err := s.mutate(func(ld loaded) ([]domain.Event, error) {
		if !ld.state.Exists(sourceID) {
			return nil, tasqerr.New(tasqerr.CodeTaskNotFound, "task %s not found", sourceID)
		}
		if !ld.state.Exists(targetID) {
			return nil, tasqerr.New(tasqerr.CodeTaskNotFound, "task %s not found", targetID)
		}
		if sourceID == targetID {
			return nil, tasqerr.New(tasqerr.CodeValidation, "cannot supersede a task with itself")
		}
		eventID, err := s.newEventID()
		if err != nil {
			return nil, err
		}
		return []domain.Event{domain.NewEvent(eventID, s.now(), s.Actor, domain.EventTaskSuperseded, sourceID, map[string]any{
			"with": targetID,
		})}, nil
	})
	if err != nil {
		return nil, err
	}
	return next.Tasks[sourceID], nil
}

// Duplicate marks sourceID as a duplicate of canonicalID: emits
// link.added(duplicates), task.updated(duplicate_of), and
// task.status_set(closed), per spec §4.6. The service always emits the
// link alongside the duplicate_of field (spec §9 open question resolved:
// see DESIGN.md).
func (s *Service) Duplicate(sourceID, canonicalID string) (*domain.Task, error) {
	next, _, err := s.mutate(func(ld loaded) ([]domain.Event, error) {
		if !ld.state.Exists(sourceID) {
			return nil, tasqerr.New(tasqerr.CodeTaskNotFound, "task %s not found", sourceID)
		}
		if !ld.state.Exists(canonicalID) {
			return nil, tasqerr.New(tasqerr.CodeTaskNotFound, "task %s not found", canonicalID)
		}
		if sourceID == canonicalID {
			return nil, tasqerr.New(tasqerr.CodeValidation, "cannot duplicate a task with itself")
		}
		if projector.DuplicateCycle(ld.state, sourceID, canonicalID) {
			return nil, tasqerr.New(tasqerr.CodeDuplicateCycle, "marking %s a duplicate of %s would create a cycle", sourceID, canonicalID)
		}

		var out []domain.Event
		nextEvent := func(kind domain.EventKind, taskID string, payload map[string]any) error {
			eventID, err := s.newEventID()
			if err != nil {
				return err
			}
			out = append(out, domain.NewEvent(eventID, s.now(), s.Actor, kind, taskID, payload))
			return nil
		}
		if err := nextEvent(domain.EventLinkAdded, sourceID, map[string]any{
			"type": string(domain.RelDuplicates), "target": canonicalID,
		}); err != nil {
			return nil, err
		}
		if err := nextEvent(domain.EventTaskUpdated, sourceID, map[string]any{
			"duplicate_of": canonicalID,
		}); err != nil {
			return nil, err
		}
		if err := nextEvent(domain.EventTaskStatusSet, sourceID, map[string]any{
			"status": string(domain.StatusClosed),
		}); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return next.Tasks[sourceID], nil
}

// Merge is Duplicate with dry-run support: in dry-run mode it returns the
// projected state without persisting anything (spec §4.6 "Merge supports
// dry-run").
func (s *Service) Merge(sourceID, canonicalID string, dryRun bool) (MergeResult, error) {
	if !dryRun {
		t, err := s.Duplicate(sourceID, canonicalID)
		if err != nil {
			return MergeResult{}, err
		}
		state, _, err := s.Load()
		if err != nil {
			return MergeResult{}, err
		}
		_ = t
		return MergeResult{State: state}, nil
	}

	ld, err := s.load()
	if err != nil {
		return MergeResult{}, err
	}
	if !ld.state.Exists(sourceID) {
		return MergeResult{}, tasqerr.New(tasqerr.CodeTaskNotFound, "task %s not found", sourceID)
	}
	if !ld.state.Exists(canonicalID) {
		return MergeResult{}, tasqerr.New(tasqerr.CodeTaskNotFound, "task %s not found", canonicalID)
	}
	if sourceID == canonicalID {
		return MergeResult{}, tasqerr.New(tasqerr.CodeValidation, "cannot merge a task with itself")
	}
	if projector.DuplicateCycle(ld.state, sourceID, canonicalID) {
		return MergeResult{}, tasqerr.New(tasqerr.CodeDuplicateCycle, "merging %s into %s would create a cycle", sourceID, canonicalID)
	}

	events := []domain.Event{
		domain.NewEvent("dryrun-1", s.now(), s.Actor, domain.EventLinkAdded, sourceID, map[string]any{
			"type": string(domain.RelDuplicates), "target": canonicalID,
		}),
		domain.NewEvent("dryrun-2", s.now(), s.Actor, domain.EventTaskUpdated, sourceID, map[string]any{
			"duplicate_of": canonicalID,
		}),
		domain.NewEvent("dryrun-3", s.now(), s.Actor, domain.EventTaskStatusSet, sourceID, map[string]any{
			"status": string(domain.StatusClosed),
		}),
	}
	next, err := projector.Fold(ld.state, events)
	if err != nil {
		return MergeResult{}, err
	}
	return MergeResult{State: next, DryRun: true}, nil
}
