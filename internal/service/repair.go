package service

import (
	"github.com/BumpyClock/tasque/internal/domain"
	"github.com/BumpyClock/tasque/internal/lock"
	"github.com/BumpyClock/tasque/internal/repair"
)

// Doctor reports repository health without taking the write lock or
// mutating anything (spec §4.8 "Doctor").
func (s *Service) Doctor() (repair.Report, error) {
	ld, err := s.load()
	if err != nil {
		return repair.Report{}, err
	}
	report, err := repair.Doctor(s.Layout, ld.state, len(ld.events), ld.warning)
	if err != nil {
		return repair.Report{}, err
	}
	s.metrics.AddRepairOrphans(len(report.OrphanEdges))
	return report, nil
}

// RepairInput configures a repair run.
type RepairInput struct {
	Fix         bool
	ForceUnlock bool
}

// RepairResult reports what a repair pass found or did.
type RepairResult struct {
	Plan repair.Plan
}

// Repair scans for orphaned deps/links, stale temp files, a stray lock,
// and excess snapshots. In plan mode it only reports; in fix mode it
// removes orphan edges (via the locked mutate path), then unlinks stale
// temp files and excess snapshots (spec §4.8 "Repair").
func (s *Service) Repair(in RepairInput) (RepairResult, error) {
	if !in.Fix {
		ld, err := s.load()
		if err != nil {
			return RepairResult{}, err
		}
		plan, err := repair.BuildPlan(s.Layout, ld.state)
		if err != nil {
			return RepairResult{}, err
		}
		return RepairResult{Plan: plan}, nil
	}

	if in.ForceUnlock {
		if _, err := lock.ForceUnlock(s.Layout); err != nil {
			return RepairResult{}, err
		}
	}

	var plan repair.Plan
	_, _, err := s.mutate(func(ld loaded) ([]domain.Event, error) {
		p, err := repair.BuildPlan(s.Layout, ld.state)
		if err != nil {
			return nil, err
		}
		plan = p
		return orphanRemovalEvents(s, p)
	})
	if err != nil {
		return RepairResult{}, err
	}

	if err := repair.ApplyFilesystemFixes(plan, s.Layout); err != nil {
		return RepairResult{}, err
	}
	return RepairResult{Plan: plan}, nil
}

func orphanRemovalEvents(s *Service, plan repair.Plan) ([]domain.Event, error) {
	var out []domain.Event
	for _, o := range plan.OrphanEdges {
		eventID, err := s.newEventID()
		if err != nil {
			return nil, err
		}
		var kind domain.EventKind
		payload := map[string]any{}
		if o.Kind == "dep" {
			kind = domain.EventDepRemoved
			payload["blocker"] = o.Target
			payload["dep_type"] = o.Type
		} else {
			kind = domain.EventLinkRemoved
			payload["type"] = o.Type
			payload["target"] = o.Target
		}
		out = append(out, domain.NewEvent(eventID, s.now(), s.Actor, kind, o.TaskID, payload))
	}
	return out, nil
}
