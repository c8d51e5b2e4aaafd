// Copyright (c) 2024 @neongreen (https://github.com/neongreen)
// Originally from: https://github.com/neongreen/mono/tree/main/beads-merge
//
// MIT License
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.
//
// ---
// Adapted from the three-way issue-record merge vendored into beads with
// permission from @neongreen (see https://github.com/neongreen/mono/issues/240)
// into a three-way merge over event-log lines keyed by event id.

// Package merge implements the three-way merge driver for events.jsonl
// (spec §4.7): union event records across ancestor/ours/theirs by id,
// flag any id whose bytes disagree as a conflict, and otherwise write the
// ULID-sorted union back atomically.
package merge

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/BumpyClock/tasque/internal/paths"
	"github.com/BumpyClock/tasque/internal/tasqerr"
)

// Conflict is a single event id on which ours and theirs (or either side
// and the ancestor) disagree.
type Conflict struct {
	ID     string
	Ours   string
	Theirs string
}

// Result is the outcome of a three-way merge attempt.
type Result struct {
	Conflicts []Conflict
	Merged    int // number of distinct event ids in the merged union
}

// record is one raw events.jsonl line, keyed by its "id" field.
type record struct {
	id    string
	raw   []byte
	canon string
}

// Merge3Way parses ancestorPath/oursPath/theirsPath, unions their records
// by event id, and either reports conflicts (ours left untouched) or
// atomically writes the sorted union to oursPath (spec §4.7 steps 1-4).
func Merge3Way(ancestorPath, oursPath, theirsPath string) (Result, error) {
	ancestor, err := readRecords(ancestorPath)
	if err != nil {
		return Result{}, err
	}
	ours, err := readRecords(oursPath)
	if err != nil {
		return Result{}, err
	}
	theirs, err := readRecords(theirsPath)
	if err != nil {
		return Result{}, err
	}

	union := map[string]record{}
	var conflicts []Conflict

	merge := func(src map[string]record) {
		for id, r := range src {
			existing, ok := union[id]
			if !ok {
				union[id] = r
				continue
			}
			if existing.canon != r.canon {
				conflicts = append(conflicts, Conflict{ID: id, Ours: existing.canon, Theirs: r.canon})
			}
		}
	}
	merge(ancestor)
	merge(ours)
	merge(theirs)

	if len(conflicts) > 0 {
		sort.Slice(conflicts, func(i, j int) bool { return conflicts[i].ID < conflicts[j].ID })
		return Result{Conflicts: dedupeConflicts(conflicts)}, nil
	}

	ids := make([]string, 0, len(union))
	for id := range union {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var buf bytes.Buffer
	for _, id := range ids {
		buf.Write(union[id].raw)
		buf.WriteByte('\n')
	}
	if err := paths.AtomicWrite(oursPath, buf.Bytes()); err != nil {
		return Result{}, tasqerr.Wrap(tasqerr.CodeMergeWriteFailed, err, "write merged events to %s", oursPath)
	}
	return Result{Merged: len(ids)}, nil
}

// dedupeConflicts collapses repeated ids (e.g. ancestor vs ours AND
// ancestor vs theirs both flagging id X) into one entry per id.
func dedupeConflicts(in []Conflict) []Conflict {
	seen := map[string]bool{}
	var out []Conflict
	for _, c := range in {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		out = append(out, c)
	}
	return out
}

func readRecords(path string) (map[string]record, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return map[string]record{}, nil
	}
	if err != nil {
		return nil, tasqerr.Wrap(tasqerr.CodeEventReadFailed, err, "open %s", path)
	}
	defer f.Close()

	out := map[string]record{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, tasqerr.New(tasqerr.CodeEventsCorrupt, "%s:%d: invalid JSON: %v", path, line, err)
		}
		id, _ := fields["id"].(string)
		if id == "" {
			return nil, tasqerr.New(tasqerr.CodeMergeMissingID, "%s:%d: event record has no id", path, line)
		}
		canon, err := canonicalJSON(fields)
		if err != nil {
			return nil, tasqerr.Wrap(tasqerr.CodeMergeSerializeFailed, err, "canonicalize %s:%d", path, line)
		}
		out[id] = record{id: id, raw: append([]byte(nil), raw...), canon: canon}
	}
	if err := scanner.Err(); err != nil {
		return nil, tasqerr.Wrap(tasqerr.CodeEventReadFailed, err, "scan %s", path)
	}
	return out, nil
}

// canonicalJSON produces a byte-stable representation for equality
// comparison: re-marshal with map keys sorted (encoding/json already
// sorts map[string]any keys), independent of the original field order.
func canonicalJSON(fields map[string]any) (string, error) {
	b, err := json.Marshal(fields)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// FormatConflicts renders conflicts the way the merge-driver binary
// writes them to stderr (spec §4.7 step 3).
func FormatConflicts(conflicts []Conflict) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tasque-merge-driver: %d conflicting event id(s):\n", len(conflicts))
	for _, c := range conflicts {
		fmt.Fprintf(&buf, "  %s\n", c.ID)
	}
	return buf.String()
}
