package repair

import (
	"os"
	"sort"

	"github.com/BumpyClock/tasque/internal/paths"
	"github.com/BumpyClock/tasque/internal/projector"
	"github.com/BumpyClock/tasque/internal/snapshot"
)

// Plan is what a fix would do, computed without mutating anything (spec
// §4.8 "In plan mode, return the plan").
type Plan struct {
	OrphanEdges     []OrphanEdge
	StaleTempFiles  []string
	ExcessSnapshots []string
	LockPresent     bool
}

// BuildPlan computes the repair plan for the current state and disk
// layout, without taking any lock or writing anything.
func BuildPlan(l paths.Layout, state projector.State) (Plan, error) {
	temps, err := listStaleTempFiles(l)
	if err != nil {
		return Plan{}, err
	}
	excess, err := excessSnapshots(l)
	if err != nil {
		return Plan{}, err
	}
	_, lockErr := os.Stat(l.Lock)
	return Plan{
		OrphanEdges:     findOrphans(state),
		StaleTempFiles:  temps,
		ExcessSnapshots: excess,
		LockPresent:     lockErr == nil,
	}, nil
}

// ApplyFilesystemFixes unlinks stale temp files and excess snapshots
// named in plan (spec §4.8 "unlink stale temp files and excess
// snapshots"). Event-based fixes (orphan edge removal) are the caller's
// job, since they must go through the service's locked commit path.
func ApplyFilesystemFixes(plan Plan, l paths.Layout) error {
	for _, f := range plan.StaleTempFiles {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	for _, name := range plan.ExcessSnapshots {
		if err := os.Remove(l.Snapshots + string(os.PathSeparator) + name); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// excessSnapshots lists snapshot filenames beyond the retention window
// (spec §4.8 "snapshot files beyond the retention limit"), oldest first.
func excessSnapshots(l paths.Layout) ([]string, error) {
	entries, err := os.ReadDir(l.Snapshots)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	if len(names) <= snapshot.RetainCount {
		return nil, nil
	}
	return names[:len(names)-snapshot.RetainCount], nil
}
