package snapshot

import (
	"fmt"
	"strings"

	"github.com/BumpyClock/tasque/internal/domain"
	"github.com/BumpyClock/tasque/internal/eventlog"
	"github.com/BumpyClock/tasque/internal/paths"
	"github.com/BumpyClock/tasque/internal/projector"
)

// Loaded is the result of the full load sequence (spec §4.3 Load
// sequence): the projected state, the raw event slice (its length is the
// log watermark the service's commit and doctor use), and an aggregated,
// possibly-empty warning string.
type Loaded struct {
	State   projector.State
	Events  []domain.Event
	Warning string
}

// Load runs the three-step sequence from spec §4.3:
//  1. read the log
//  2. if the state cache exists and is not ahead of the log, fold the
//     suffix onto it
//  3. else load the latest valid snapshot (or empty state) and fold from
//     its event_count (or 0)
func Load(l paths.Layout) (Loaded, error) {
	log := eventlog.New(l)
	events, logWarn, err := log.Read()
	if err != nil {
		return Loaded{}, err
	}

	var warnings []string
	if logWarn != "" {
		warnings = append(warnings, logWarn)
	}

	cache, err := ReadStateCache(l)
	if err != nil {
		return Loaded{}, err
	}
	if cache != nil && cache.AppliedEvents <= len(events) {
		s, err := projector.Fold(*cache, events[cache.AppliedEvents:])
		if err != nil {
			return Loaded{}, err
		}
		return Loaded{State: s, Events: events, Warning: join(warnings)}, nil
	}

	rec, malformed, err := Latest(l)
	if err != nil {
		return Loaded{}, err
	}
	if len(malformed) > 0 {
		warnings = append(warnings, fmt.Sprintf("skipped malformed snapshot file(s): %s", strings.Join(malformed, ", ")))
	}

	base := projector.New()
	from := 0
	if rec != nil {
		base = rec.State
		from = rec.EventCount
	}
	if from > len(events) {
		from = 0
		base = projector.New()
	}
	s, err := projector.Fold(base, events[from:])
	if err != nil {
		return Loaded{}, err
	}
	return Loaded{State: s, Events: events, Warning: join(warnings)}, nil
}

func join(parts []string) string {
	return strings.Join(parts, " | ")
}
