// Package repair implements the read-only doctor report and the planning
// and filesystem half of the repair operation of spec §4.8. It takes no
// lock itself; the service runs orphan removal under the write lock.
package repair

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BumpyClock/tasque/internal/paths"
	"github.com/BumpyClock/tasque/internal/projector"
)

// OrphanEdge names a dep or link edge whose endpoint is missing from
// tasks, along with enough context to describe or remove it.
type OrphanEdge struct {
	TaskID string
	Kind   string // "dep" or "link"
	Target string
	Type   string // dep_type or rel_type, as a string
}

// Report is the doctor output: a read-only snapshot of repository health.
type Report struct {
	TaskCount   int
	EventCount  int
	HasSnapshot bool
	LoadWarning string
	OrphanEdges []OrphanEdge
}

// Doctor inspects state for problems without taking the write lock or
// mutating anything (spec §4.8 "Doctor").
func Doctor(l paths.Layout, state projector.State, eventCount int, loadWarning string) (Report, error) {
	_, hasSnapshot, err := snapshotPresence(l)
	if err != nil {
		return Report{}, err
	}
	return Report{
		TaskCount:   len(state.Tasks),
		EventCount:  eventCount,
		HasSnapshot: hasSnapshot,
		LoadWarning: loadWarning,
		OrphanEdges: findOrphans(state),
	}, nil
}

func snapshotPresence(l paths.Layout) (string, bool, error) {
	entries, err := os.ReadDir(l.Snapshots)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			return e.Name(), true, nil
		}
	}
	return "", false, nil
}

// findOrphans enumerates dep and link edges whose endpoint tasks no
// longer exist in state (spec §4.8 "enumerate orphan edges").
func findOrphans(state projector.State) []OrphanEdge {
	var out []OrphanEdge
	for taskID, edges := range state.Deps {
		for _, e := range edges {
			if !state.Exists(e.Blocker) {
				out = append(out, OrphanEdge{TaskID: taskID, Kind: "dep", Target: e.Blocker, Type: string(e.Type)})
			}
		}
	}
	for taskID, byType := range state.Links {
		for rt, targets := range byType {
			for _, target := range targets {
				if !state.Exists(target) {
					out = append(out, OrphanEdge{TaskID: taskID, Kind: "link", Target: target, Type: string(rt)})
				}
			}
		}
	}
	return out
}

// listStaleTempFiles walks .tasque/ for any entry whose name contains
// ".tmp" (spec §4.8 "stale temp files": any name in .tasque/ containing
// .tmp").
func listStaleTempFiles(l paths.Layout) ([]string, error) {
	var out []string
	err := filepath.Walk(l.Dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.Contains(info.Name(), ".tmp") {
			out = append(out, p)
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return out, nil
}
