// Package domain holds the data model shared by the projector, the event
// log, and the service façade: tasks, dependency edges, relation links,
// and the event envelope that mutates them.
package domain

import "time"

// Kind is the task category.
type Kind string

const (
	KindTask    Kind = "task"
	KindFeature Kind = "feature"
	KindEpic    Kind = "epic"
)

func (k Kind) Valid() bool {
	switch k {
	case KindTask, KindFeature, KindEpic:
		return true
	}
	return false
}

// Status is the task lifecycle state.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusBlocked    Status = "blocked"
	StatusClosed     Status = "closed"
	StatusCanceled   Status = "canceled"
	StatusDeferred   Status = "deferred"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusBlocked, StatusClosed, StatusCanceled, StatusDeferred:
		return true
	}
	return false
}

// Terminal reports whether the status represents a finished task
// (used by readiness and duplicate/merge bookkeeping).
func (s Status) Terminal() bool {
	return s == StatusClosed || s == StatusCanceled
}

// PlanningState tracks whether a task has gone through planning.
type PlanningState string

const (
	PlanningNeedsPlanning PlanningState = "needs_planning"
	PlanningPlanned       PlanningState = "planned"
	// PlanningNone is accepted on read for legacy rows (§4.5 planning lane
	// filter explicitly includes it alongside needs_planning).
	PlanningNone PlanningState = "none"
)

// DepType distinguishes ordering-only edges from readiness-blocking ones.
type DepType string

const (
	DepBlocks      DepType = "blocks"
	DepStartsAfter DepType = "starts_after"
)

func (d DepType) Valid() bool {
	switch d {
	case DepBlocks, DepStartsAfter:
		return true
	}
	return false
}

// RelType is the kind of a relation link.
type RelType string

const (
	RelRelatesTo  RelType = "relates_to"
	RelRepliesTo  RelType = "replies_to"
	RelDuplicates RelType = "duplicates"
	RelSupersedes RelType = "supersedes"
)

func (r RelType) Valid() bool {
	switch r {
	case RelRelatesTo, RelRepliesTo, RelDuplicates, RelSupersedes:
		return true
	}
	return false
}

// Symmetric reports whether adding/removing this relation mirrors the
// reverse edge (spec §3.3).
func (r RelType) Symmetric() bool {
	return r == RelRelatesTo
}

// Priority is an integer 0 (highest) through 3 (lowest).
type Priority int

func (p Priority) Valid() bool { return p >= 0 && p <= 3 }

// Note is a single timestamped annotation on a task.
type Note struct {
	EventID string    `json:"event_id"`
	TS      time.Time `json:"ts"`
	Actor   string    `json:"actor"`
	Text    string    `json:"text"`
}

// Task is a single node in the graph.
type Task struct {
	ID          string `json:"id"`
	Kind        Kind   `json:"kind"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Notes       []Note `json:"notes,omitempty"`

	SpecPath        string     `json:"spec_path,omitempty"`
	SpecFingerprint string     `json:"spec_fingerprint,omitempty"`
	SpecAttachedAt  *time.Time `json:"spec_attached_at,omitempty"`
	SpecAttachedBy  string     `json:"spec_attached_by,omitempty"`

	Status          Status        `json:"status"`
	Priority        Priority      `json:"priority"`
	Assignee        string        `json:"assignee,omitempty"`
	ExternalRef     string        `json:"external_ref,omitempty"`
	DiscoveredFrom  string        `json:"discovered_from,omitempty"`
	ParentID        string        `json:"parent_id,omitempty"`
	SupersededBy    string        `json:"superseded_by,omitempty"`
	DuplicateOf     string        `json:"duplicate_of,omitempty"`
	PlanningState   PlanningState `json:"planning_state"`
	Labels          []string      `json:"labels,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
}

// Clone returns a deep copy safe for a working-copy mutation.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	if t.Notes != nil {
		c.Notes = append([]Note(nil), t.Notes...)
	}
	if t.Labels != nil {
		c.Labels = append([]string(nil), t.Labels...)
	}
	if t.SpecAttachedAt != nil {
		ts := *t.SpecAttachedAt
		c.SpecAttachedAt = &ts
	}
	if t.ClosedAt != nil {
		ts := *t.ClosedAt
		c.ClosedAt = &ts
	}
	return &c
}

// DepEdge is a directed child -> blocker dependency.
type DepEdge struct {
	Blocker string  `json:"blocker"`
	Type    DepType `json:"dep_type"`
}

// EventKind is the discriminant of domain.Event.
type EventKind string

const (
	EventTaskCreated      EventKind = "task.created"
	EventTaskUpdated      EventKind = "task.updated"
	EventTaskStatusSet    EventKind = "task.status_set"
	EventTaskClaimed      EventKind = "task.claimed"
	EventTaskNoted        EventKind = "task.noted"
	EventTaskSpecAttached EventKind = "task.spec_attached"
	EventTaskSuperseded   EventKind = "task.superseded"
	EventDepAdded         EventKind = "dep.added"
	EventDepRemoved       EventKind = "dep.removed"
	EventLinkAdded        EventKind = "link.added"
	EventLinkRemoved      EventKind = "link.removed"
)

// Event is the append-only record persisted to events.jsonl (spec §3.5).
type Event struct {
	ID      string         `json:"id"`
	EventID string         `json:"event_id"`
	TS      time.Time      `json:"ts"`
	Actor   string         `json:"actor"`
	Type    EventKind      `json:"type"`
	TaskID  string         `json:"task_id"`
	Payload map[string]any `json:"payload"`
}

// NewEvent builds an event with both id fields set, per the writer
// contract in spec §3.5/§6.1.
func NewEvent(id string, ts time.Time, actor string, kind EventKind, taskID string, payload map[string]any) Event {
	if payload == nil {
		payload = map[string]any{}
	}
	return Event{ID: id, EventID: id, TS: ts, Actor: actor, Type: kind, TaskID: taskID, Payload: payload}
}
