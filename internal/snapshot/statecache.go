package snapshot

import (
	"encoding/json"
	"os"

	"github.com/BumpyClock/tasque/internal/paths"
	"github.com/BumpyClock/tasque/internal/projector"
	"github.com/BumpyClock/tasque/internal/tasqerr"
)

// WriteStateCache atomically rewrites state.json, the full-projection fast
// load path (spec §4.3 State cache). Legacy readers may call this file
// tasks.jsonl (spec §6.1); tasque only ever writes state.json.
func WriteStateCache(l paths.Layout, state projector.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return tasqerr.Wrap(tasqerr.CodeStateWriteFailed, err, "encode state cache")
	}
	if err := paths.AtomicWrite(l.State, data); err != nil {
		return tasqerr.Wrap(tasqerr.CodeStateWriteFailed, err, "write %s", l.State)
	}
	return nil
}

// legacyStatePath is the legacy name accepted on read (spec §6.1).
func legacyStatePath(l paths.Layout) string {
	dir := l.Dir
	return dir + string(os.PathSeparator) + "tasks.jsonl"
}

// ReadStateCache reads state.json (or the legacy tasks.jsonl name), or
// returns (nil, nil) if neither exists.
func ReadStateCache(l paths.Layout) (*projector.State, error) {
	data, err := os.ReadFile(l.State)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, tasqerr.Wrap(tasqerr.CodeStateReadFailed, err, "read %s", l.State)
		}
		data, err = os.ReadFile(legacyStatePath(l))
		if err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			return nil, tasqerr.Wrap(tasqerr.CodeStateReadFailed, err, "read legacy state cache")
		}
	}
	var s projector.State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, tasqerr.Wrap(tasqerr.CodeStateReadFailed, err, "decode state cache")
	}
	return &s, nil
}
