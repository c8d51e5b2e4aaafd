// Package snapshot implements the periodic full-state checkpoint and the
// state-cache fast path (spec §4.3).
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BumpyClock/tasque/internal/paths"
	"github.com/BumpyClock/tasque/internal/projector"
	"github.com/BumpyClock/tasque/internal/tasqerr"
)

// RetainCount is SNAPSHOT_RETAIN_COUNT from spec §4.3.
const RetainCount = 5

// Record is the on-disk shape of a snapshot file.
type Record struct {
	TakenAt    time.Time       `json:"taken_at"`
	EventCount int             `json:"event_count"`
	State      projector.State `json:"state"`
}

// Filename builds the lexicographically-sortable snapshot filename for a
// given instant and event count (spec §6.1).
func Filename(takenAt time.Time, eventCount int) string {
	ts := takenAt.UTC().Format("2006-01-02T15-04-05.000Z")
	ts = strings.ReplaceAll(ts, ":", "-")
	return fmt.Sprintf("%s-%d.json", ts, eventCount)
}

// Write serializes a snapshot and writes it atomically, then prunes older
// snapshots beyond RetainCount.
func Write(l paths.Layout, takenAt time.Time, eventCount int, state projector.State) error {
	rec := Record{TakenAt: takenAt, EventCount: eventCount, State: state}
	data, err := json.Marshal(rec)
	if err != nil {
		return tasqerr.Wrap(tasqerr.CodeSnapshotWriteFailed, err, "encode snapshot")
	}
	target := filepath.Join(l.Snapshots, Filename(takenAt, eventCount))
	if err := paths.AtomicWrite(target, data); err != nil {
		return tasqerr.Wrap(tasqerr.CodeSnapshotWriteFailed, err, "write %s", target)
	}
	return prune(l)
}

// prune keeps only the newest RetainCount snapshot files.
func prune(l paths.Layout) error {
	names, err := listSorted(l)
	if err != nil {
		return err
	}
	if len(names) <= RetainCount {
		return nil
	}
	for _, name := range names[:len(names)-RetainCount] {
		_ = os.Remove(filepath.Join(l.Snapshots, name))
	}
	return nil
}

func listSorted(l paths.Layout) ([]string, error) {
	entries, err := os.ReadDir(l.Snapshots)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, tasqerr.Wrap(tasqerr.CodeSnapshotReadFailed, err, "list %s", l.Snapshots)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Latest scans snapshot candidates newest-first and returns the first
// structurally valid one, plus up to three malformed filenames for the
// load-warning aggregate (spec §4.3/§8.2).
func Latest(l paths.Layout) (*Record, []string, error) {
	names, err := listSorted(l)
	if err != nil {
		return nil, nil, err
	}
	var malformed []string
	for i := len(names) - 1; i >= 0; i-- {
		path := filepath.Join(l.Snapshots, names[i])
		data, err := os.ReadFile(path)
		if err != nil {
			malformed = append(malformed, names[i])
			continue
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			malformed = append(malformed, names[i])
			continue
		}
		if len(malformed) > 3 {
			malformed = malformed[:3]
		}
		return &rec, malformed, nil
	}
	if len(malformed) > 3 {
		malformed = malformed[:3]
	}
	return nil, malformed, nil
}
