// Package eventlog implements the append-only JSONL event log (spec §4.2):
// strict per-kind payload validation on read, tolerant handling of a
// crash-truncated final line, and the atomic append contract.
package eventlog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/BumpyClock/tasque/internal/domain"
	"github.com/BumpyClock/tasque/internal/paths"
	"github.com/BumpyClock/tasque/internal/tasqerr"
)

// requiredPayloadKeys lists the required, non-empty-string payload keys per
// event kind (spec §4.2 table). Kinds absent from this map (task.updated,
// task.claimed) have no required keys.
var requiredPayloadKeys = map[domain.EventKind][]string{
	domain.EventTaskCreated:      {"title"},
	domain.EventTaskStatusSet:    {"status"},
	domain.EventTaskNoted:        {"text"},
	domain.EventTaskSpecAttached: {"spec_path", "spec_fingerprint"},
	domain.EventTaskSuperseded:   {"with"},
	domain.EventDepAdded:         {"blocker"},
	domain.EventDepRemoved:       {"blocker"},
	domain.EventLinkAdded:        {"type", "target"},
	domain.EventLinkRemoved:      {"type", "target"},
}

// Log is a handle to an on-disk event log file.
type Log struct {
	path string
}

// New returns a Log bound to the events.jsonl at the given layout.
func New(l paths.Layout) *Log {
	return &Log{path: l.Events}
}

// Append serializes each event as one JSON line and writes the whole
// batch as a single contiguous, fsynced block. Empty input is a no-op.
func (lg *Log) Append(events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, ev := range events {
		if err := enc.Encode(ev); err != nil {
			return tasqerr.Wrap(tasqerr.CodeEventAppendFailed, err, "serialize event %s", ev.ID)
		}
	}
	if err := paths.AtomicAppend(lg.path, buf.Bytes()); err != nil {
		return tasqerr.Wrap(tasqerr.CodeEventAppendFailed, err, "append to %s", lg.path)
	}
	return nil
}

// EnsureExists creates an empty log file if none exists yet (used by
// init).
func (lg *Log) EnsureExists() error {
	if _, err := os.Stat(lg.path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return tasqerr.Wrap(tasqerr.CodeIOError, err, "stat %s", lg.path)
	}
	f, err := os.OpenFile(lg.path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return tasqerr.Wrap(tasqerr.CodeIOError, err, "create %s", lg.path)
	}
	return f.Close()
}

// rawLine is the minimal shape used to detect the legacy event_id key and
// to validate required top-level fields before full decode.
type rawLine struct {
	ID      string          `json:"id"`
	EventID string          `json:"event_id"`
	TS      json.RawMessage `json:"ts"`
	Actor   *string         `json:"actor"`
	Type    *string         `json:"type"`
	TaskID  *string         `json:"task_id"`
	Payload json.RawMessage `json:"payload"`
}

// Read parses the entire log, returning the events and an optional
// non-fatal warning describing a tolerated trailing malformed line. Any
// other malformed or invalid line is a hard EVENTS_CORRUPT error naming
// the offending line number.
func (lg *Log) Read() ([]domain.Event, string, error) {
	f, err := os.Open(lg.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", nil
		}
		return nil, "", tasqerr.Wrap(tasqerr.CodeEventReadFailed, err, "open %s", lg.path)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, "", tasqerr.Wrap(tasqerr.CodeEventReadFailed, err, "read %s", lg.path)
	}

	events := make([]domain.Event, 0, len(lines))
	var warning string
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		ev, verr := parseLine(line)
		if verr == nil {
			events = append(events, ev)
			continue
		}
		// Only the final non-blank line may be tolerated as a crash marker.
		if isLastNonBlank(lines, i) {
			warning = fmt.Sprintf("malformed trailing line %d in %s: %v", i+1, lg.path, verr)
			break
		}
		return nil, "", tasqerr.New(tasqerr.CodeEventsCorrupt, "line %d: %v", i+1, verr)
	}
	return events, warning, nil
}

func isLastNonBlank(lines []string, i int) bool {
	for j := i + 1; j < len(lines); j++ {
		if strings.TrimSpace(lines[j]) != "" {
			return false
		}
	}
	return true
}

func parseLine(line string) (domain.Event, error) {
	var raw rawLine
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return domain.Event{}, fmt.Errorf("invalid json: %w", err)
	}
	id := raw.ID
	if id == "" {
		id = raw.EventID
	}
	if id == "" {
		return domain.Event{}, fmt.Errorf("missing id/event_id")
	}
	if len(raw.TS) == 0 {
		return domain.Event{}, fmt.Errorf("missing ts")
	}
	if raw.Actor == nil {
		return domain.Event{}, fmt.Errorf("missing actor")
	}
	if raw.Type == nil || *raw.Type == "" {
		return domain.Event{}, fmt.Errorf("missing type")
	}
	if raw.TaskID == nil {
		return domain.Event{}, fmt.Errorf("missing task_id")
	}
	if len(raw.Payload) == 0 {
		return domain.Event{}, fmt.Errorf("missing payload")
	}

	var ev domain.Event
	if err := json.Unmarshal([]byte(line), &ev); err != nil {
		return domain.Event{}, fmt.Errorf("decode event: %w", err)
	}
	ev.ID = id
	ev.EventID = id
	kind := domain.EventKind(*raw.Type)

	for _, key := range requiredPayloadKeys[kind] {
		v, ok := ev.Payload[key]
		if !ok {
			return domain.Event{}, fmt.Errorf("kind %s missing payload key %q", kind, key)
		}
		s, ok := v.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return domain.Event{}, fmt.Errorf("kind %s payload key %q must be a non-empty string", kind, key)
		}
	}
	return ev, nil
}

// Length returns the number of events currently in the log, used by load
// sequencing to compare against a cached watermark.
func (lg *Log) Length() (int, error) {
	events, _, err := lg.Read()
	if err != nil {
		return 0, err
	}
	return len(events), nil
}
