package projector

import (
	"strconv"
	"strings"

	"github.com/BumpyClock/tasque/internal/domain"
	"github.com/BumpyClock/tasque/internal/tasqerr"
)

// Apply folds a single event into state, returning the resulting state (a
// clone; the input State is never mutated) or a validator error. Fold
// applies a whole batch and stops at the first error, per the service
// façade's all-or-nothing commit (spec §4.6/§7).
func Apply(s State, ev domain.Event) (State, error) {
	next := s.clone()
	var err error
	switch ev.Type {
	case domain.EventTaskCreated:
		err = applyTaskCreated(next, ev)
	case domain.EventTaskUpdated:
		err = applyTaskUpdated(next, ev)
	case domain.EventTaskStatusSet:
		err = applyTaskStatusSet(next, ev)
	case domain.EventTaskClaimed:
		err = applyTaskClaimed(next, ev)
	case domain.EventTaskNoted:
		err = applyTaskNoted(next, ev)
	case domain.EventTaskSpecAttached:
		err = applyTaskSpecAttached(next, ev)
	case domain.EventTaskSuperseded:
		err = applyTaskSuperseded(next, ev)
	case domain.EventDepAdded:
		err = applyDepAdded(next, ev)
	case domain.EventDepRemoved:
		err = applyDepRemoved(next, ev)
	case domain.EventLinkAdded:
		err = applyLinkAdded(next, ev)
	case domain.EventLinkRemoved:
		err = applyLinkRemoved(next, ev)
	default:
		err = tasqerr.New(tasqerr.CodeInternal, "unknown event type %q", ev.Type)
	}
	if err != nil {
		return s, err
	}
	next.AppliedEvents++
	return next, nil
}

// Fold applies a batch of events in order, stopping at the first error.
func Fold(s State, events []domain.Event) (State, error) {
	for _, ev := range events {
		var err error
		s, err = Apply(s, ev)
		if err != nil {
			return s, err
		}
	}
	return s, nil
}

func str(payload map[string]any, key string) (string, bool) {
	v, ok := payload[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func applyTaskCreated(s State, ev domain.Event) error {
	if s.Exists(ev.TaskID) {
		return tasqerr.New(tasqerr.CodeTaskExists, "task %s already exists", ev.TaskID)
	}
	title, ok := str(ev.Payload, "title")
	if !ok || strings.TrimSpace(title) == "" {
		return tasqerr.New(tasqerr.CodeValidation, "task.created requires a non-empty title")
	}
	discoveredFrom, _ := str(ev.Payload, "discovered_from")
	if discoveredFrom != "" {
		if discoveredFrom == ev.TaskID {
			return tasqerr.New(tasqerr.CodeTaskNotFound, "discovered_from cannot equal self")
		}
		if !s.Exists(discoveredFrom) {
			return tasqerr.New(tasqerr.CodeTaskNotFound, "discovered_from %s does not exist", discoveredFrom)
		}
	}

	t := &domain.Task{
		ID:             ev.TaskID,
		Kind:           domain.KindTask,
		Title:          title,
		Status:         domain.StatusOpen,
		Priority:       1,
		PlanningState:  domain.PlanningNeedsPlanning,
		DiscoveredFrom: discoveredFrom,
		CreatedAt:      ev.TS,
		UpdatedAt:      ev.TS,
	}
	if kind, ok := str(ev.Payload, "kind"); ok && kind != "" {
		t.Kind = domain.Kind(kind)
	}
	if desc, ok := str(ev.Payload, "description"); ok {
		t.Description = desc
	}
	if parent, ok := str(ev.Payload, "parent_id"); ok && parent != "" {
		t.ParentID = parent
	}
	if prio, ok := ev.Payload["priority"]; ok {
		if f, ok := prio.(float64); ok {
			t.Priority = domain.Priority(int(f))
		}
	}

	s.Tasks[ev.TaskID] = t
	s.CreatedOrder = append(s.CreatedOrder, ev.TaskID)

	if t.ParentID != "" {
		if n := childSuffix(ev.TaskID); n > s.ChildCounters[t.ParentID] {
			s.ChildCounters[t.ParentID] = n
		}
	}
	return nil
}

// childSuffix parses the trailing ".N" numeric suffix of a child id; it
// returns 0 if id has no such suffix (a root id).
func childSuffix(id string) int {
	idx := strings.LastIndex(id, ".")
	if idx < 0 {
		return 0
	}
	n, err := strconv.Atoi(id[idx+1:])
	if err != nil {
		return 0
	}
	return n
}

func applyTaskUpdated(s State, ev domain.Event) error {
	if !s.Exists(ev.TaskID) {
		return tasqerr.New(tasqerr.CodeTaskNotFound, "task %s not found", ev.TaskID)
	}
	p := ev.Payload

	if _, hasDesc := p["description"]; hasDesc {
		if clear, _ := p["clear_description"].(bool); clear {
			return tasqerr.New(tasqerr.CodeValidation, "description and clear_description are mutually exclusive")
		}
	}
	if _, hasRef := p["external_ref"]; hasRef {
		if clear, _ := p["clear_external_ref"].(bool); clear {
			return tasqerr.New(tasqerr.CodeValidation, "external_ref and clear_external_ref are mutually exclusive")
		}
	}
	if _, hasDF := p["discovered_from"]; hasDF {
		if clear, _ := p["clear_discovered_from"].(bool); clear {
			return tasqerr.New(tasqerr.CodeValidation, "discovered_from and clear_discovered_from are mutually exclusive")
		}
	}
	if title, ok := str(p, "title"); ok && strings.TrimSpace(title) == "" {
		return tasqerr.New(tasqerr.CodeValidation, "title cannot be empty")
	}
	if dup, ok := str(p, "duplicate_of"); ok && dup == ev.TaskID {
		return tasqerr.New(tasqerr.CodeValidation, "duplicate_of cannot equal self")
	}
	if df, ok := str(p, "discovered_from"); ok {
		if df == ev.TaskID {
			return tasqerr.New(tasqerr.CodeTaskNotFound, "discovered_from cannot equal self")
		}
		if !s.Exists(df) {
			return tasqerr.New(tasqerr.CodeTaskNotFound, "discovered_from %s does not exist", df)
		}
	}

	t := s.cloneTask(ev.TaskID)
	touched := false

	if title, ok := str(p, "title"); ok {
		t.Title = title
		touched = true
	}
	if desc, ok := str(p, "description"); ok {
		t.Description = desc
		touched = true
	} else if clear, _ := p["clear_description"].(bool); clear {
		t.Description = ""
		touched = true
	}
	if ref, ok := str(p, "external_ref"); ok {
		t.ExternalRef = ref
		touched = true
	} else if clear, _ := p["clear_external_ref"].(bool); clear {
		t.ExternalRef = ""
		touched = true
	}
	if df, ok := str(p, "discovered_from"); ok {
		t.DiscoveredFrom = df
		touched = true
	} else if clear, _ := p["clear_discovered_from"].(bool); clear {
		t.DiscoveredFrom = ""
		touched = true
	}
	if assignee, ok := str(p, "assignee"); ok {
		t.Assignee = assignee
		touched = true
	}
	if dup, ok := str(p, "duplicate_of"); ok {
		t.DuplicateOf = dup
		touched = true
	}
	if planning, ok := str(p, "planning_state"); ok {
		t.PlanningState = domain.PlanningState(planning)
		touched = true
	}
	if prio, ok := p["priority"]; ok {
		if f, ok := prio.(float64); ok {
			t.Priority = domain.Priority(int(f))
			touched = true
		}
	}
	if labels, ok := p["labels"]; ok {
		if raw, ok := labels.([]any); ok {
			lbls := make([]string, 0, len(raw))
			for _, v := range raw {
				if s, ok := v.(string); ok {
					lbls = append(lbls, s)
				}
			}
			t.Labels = lbls
			touched = true
		}
	}

	if touched {
		t.UpdatedAt = ev.TS
	}
	return nil
}

func applyTaskStatusSet(s State, ev domain.Event) error {
	if !s.Exists(ev.TaskID) {
		return tasqerr.New(tasqerr.CodeTaskNotFound, "task %s not found", ev.TaskID)
	}
	statusStr, ok := str(ev.Payload, "status")
	if !ok || statusStr == "" {
		return tasqerr.New(tasqerr.CodeValidation, "task.status_set requires a status")
	}
	target := domain.Status(statusStr)
	if !target.Valid() {
		return tasqerr.New(tasqerr.CodeInvalidStatus, "unknown status %q", statusStr)
	}

	t := s.cloneTask(ev.TaskID)
	if t.Status.Terminal() && target == domain.StatusInProgress {
		return tasqerr.New(tasqerr.CodeInvalidTransition, "cannot move %s from %s to in_progress", ev.TaskID, t.Status)
	}

	t.Status = target
	t.UpdatedAt = ev.TS
	if target == domain.StatusClosed {
		closedAt := ev.TS
		t.ClosedAt = &closedAt
	} else {
		t.ClosedAt = nil
	}
	return nil
}

func applyTaskClaimed(s State, ev domain.Event) error {
	if !s.Exists(ev.TaskID) {
		return tasqerr.New(tasqerr.CodeTaskNotFound, "task %s not found", ev.TaskID)
	}
	t := s.cloneTask(ev.TaskID)
	if t.Status.Terminal() {
		return tasqerr.New(tasqerr.CodeInvalidTransition, "cannot claim %s in terminal status %s", ev.TaskID, t.Status)
	}

	assignee, ok := str(ev.Payload, "assignee")
	if !ok || assignee == "" {
		assignee = ev.Actor
	}
	t.Assignee = assignee
	if t.Status == domain.StatusOpen {
		t.Status = domain.StatusInProgress
	}
	t.UpdatedAt = ev.TS
	return nil
}

func applyTaskNoted(s State, ev domain.Event) error {
	if !s.Exists(ev.TaskID) {
		return tasqerr.New(tasqerr.CodeTaskNotFound, "task %s not found", ev.TaskID)
	}
	text, ok := str(ev.Payload, "text")
	if !ok || strings.TrimSpace(text) == "" {
		return tasqerr.New(tasqerr.CodeValidation, "task.noted requires non-empty text")
	}
	t := s.cloneTask(ev.TaskID)
	t.Notes = append(t.Notes, domain.Note{EventID: ev.ID, TS: ev.TS, Actor: ev.Actor, Text: text})
	t.UpdatedAt = ev.TS
	return nil
}

func applyTaskSpecAttached(s State, ev domain.Event) error {
	if !s.Exists(ev.TaskID) {
		return tasqerr.New(tasqerr.CodeTaskNotFound, "task %s not found", ev.TaskID)
	}
	specPath, ok1 := str(ev.Payload, "spec_path")
	fingerprint, ok2 := str(ev.Payload, "spec_fingerprint")
	if !ok1 || specPath == "" || !ok2 || fingerprint == "" {
		return tasqerr.New(tasqerr.CodeValidation, "task.spec_attached requires spec_path and spec_fingerprint")
	}
	t := s.cloneTask(ev.TaskID)
	t.SpecPath = specPath
	t.SpecFingerprint = fingerprint
	attachedAt := ev.TS
	t.SpecAttachedAt = &attachedAt
	attachedBy := ev.Actor
	if by, ok := str(ev.Payload, "spec_attached_by"); ok && by != "" {
		attachedBy = by
	}
	t.SpecAttachedBy = attachedBy
	t.UpdatedAt = ev.TS
	return nil
}

func applyTaskSuperseded(s State, ev domain.Event) error {
	if !s.Exists(ev.TaskID) {
		return tasqerr.New(tasqerr.CodeTaskNotFound, "task %s not found", ev.TaskID)
	}
	with, ok := str(ev.Payload, "with")
	if !ok || with == "" {
		return tasqerr.New(tasqerr.CodeValidation, "task.superseded requires with")
	}
	if with == ev.TaskID {
		return tasqerr.New(tasqerr.CodeValidation, "with cannot equal self")
	}
	if !s.Exists(with) {
		return tasqerr.New(tasqerr.CodeTaskNotFound, "with %s does not exist", with)
	}
	t := s.cloneTask(ev.TaskID)
	t.Status = domain.StatusClosed
	closedAt := ev.TS
	t.ClosedAt = &closedAt
	t.SupersededBy = with
	t.UpdatedAt = ev.TS
	return nil
}

func depType(payload map[string]any) domain.DepType {
	if v, ok := str(payload, "dep_type"); ok && v != "" {
		return domain.DepType(v)
	}
	return domain.DepBlocks
}

func applyDepAdded(s State, ev domain.Event) error {
	blocker, ok := str(ev.Payload, "blocker")
	if !ok || blocker == "" {
		return tasqerr.New(tasqerr.CodeValidation, "dep.added requires blocker")
	}
	if blocker == ev.TaskID {
		return tasqerr.New(tasqerr.CodeRelationSelfEdge, "a task cannot depend on itself")
	}
	if !s.Exists(ev.TaskID) {
		return tasqerr.New(tasqerr.CodeTaskNotFound, "task %s not found", ev.TaskID)
	}
	if !s.Exists(blocker) {
		return tasqerr.New(tasqerr.CodeTaskNotFound, "blocker %s not found", blocker)
	}
	dt := depType(ev.Payload)
	if !dt.Valid() {
		return tasqerr.New(tasqerr.CodeValidation, "unknown dep_type %q", dt)
	}

	for _, e := range s.Deps[ev.TaskID] {
		if e.Blocker == blocker && e.Type == dt {
			return nil // idempotent
		}
	}
	if dt == domain.DepBlocks {
		if hasCycle(s, ev.TaskID, blocker) {
			return tasqerr.New(tasqerr.CodeDependencyCycle, "adding blocker %s to %s would create a cycle", blocker, ev.TaskID)
		}
	}
	s.Deps[ev.TaskID] = append(s.Deps[ev.TaskID], domain.DepEdge{Blocker: blocker, Type: dt})
	return nil
}

func applyDepRemoved(s State, ev domain.Event) error {
	blocker, ok := str(ev.Payload, "blocker")
	if !ok || blocker == "" {
		return tasqerr.New(tasqerr.CodeValidation, "dep.removed requires blocker")
	}
	dt := depType(ev.Payload)
	edges := s.Deps[ev.TaskID]
	out := edges[:0:0]
	for _, e := range edges {
		if e.Blocker == blocker && e.Type == dt {
			continue
		}
		out = append(out, e)
	}
	s.Deps[ev.TaskID] = out
	return nil
}

func applyLinkAdded(s State, ev domain.Event) error {
	typeStr, ok1 := str(ev.Payload, "type")
	target, ok2 := str(ev.Payload, "target")
	if !ok1 || typeStr == "" || !ok2 || target == "" {
		return tasqerr.New(tasqerr.CodeValidation, "link.added requires type and target")
	}
	if target == ev.TaskID {
		return tasqerr.New(tasqerr.CodeRelationSelfEdge, "a task cannot link to itself")
	}
	if !s.Exists(ev.TaskID) {
		return tasqerr.New(tasqerr.CodeTaskNotFound, "task %s not found", ev.TaskID)
	}
	if !s.Exists(target) {
		return tasqerr.New(tasqerr.CodeTaskNotFound, "target %s not found", target)
	}
	rt := domain.RelType(typeStr)
	if !rt.Valid() {
		return tasqerr.New(tasqerr.CodeValidation, "unknown rel_type %q", rt)
	}

	upsertLink(s, ev.TaskID, rt, target)
	if rt.Symmetric() {
		upsertLink(s, target, rt, ev.TaskID)
	}
	return nil
}

func upsertLink(s State, src string, rt domain.RelType, target string) {
	m := s.linkSet(src)
	for _, t := range m[rt] {
		if t == target {
			return
		}
	}
	m[rt] = append(m[rt], target)
}

func applyLinkRemoved(s State, ev domain.Event) error {
	typeStr, ok1 := str(ev.Payload, "type")
	target, ok2 := str(ev.Payload, "target")
	if !ok1 || typeStr == "" || !ok2 || target == "" {
		return tasqerr.New(tasqerr.CodeValidation, "link.removed requires type and target")
	}
	rt := domain.RelType(typeStr)
	removeLink(s, ev.TaskID, rt, target)
	if rt.Symmetric() {
		removeLink(s, target, rt, ev.TaskID)
	}
	return nil
}

func removeLink(s State, src string, rt domain.RelType, target string) {
	m, ok := s.Links[src]
	if !ok {
		return
	}
	targets := m[rt]
	out := targets[:0:0]
	for _, t := range targets {
		if t != target {
			out = append(out, t)
		}
	}
	m[rt] = out
}
