package projector

import "github.com/BumpyClock/tasque/internal/domain"

// hasCycle reports whether adding the edge (child -> blocker) would create
// a blocks-only cycle: a forward traversal from blocker over outgoing
// blocks edges that reaches child (or equals it directly) is a cycle
// (spec §4.5 Cycle check). Iterative DFS with a visited set.
func hasCycle(s State, child, blocker string) bool {
	if blocker == child {
		return true
	}
	visited := map[string]bool{}
	stack := []string{blocker}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == child {
			return true
		}
		if visited[cur] {
			continue
		}
		visited[cur] = true
		for _, e := range s.Deps[cur] {
			if e.Type == domain.DepBlocks && !visited[e.Blocker] {
				stack = append(stack, e.Blocker)
			}
		}
	}
	return false
}

// DuplicateCycle follows the duplicate_of chain starting from canonical;
// if it ever reaches source, the proposed duplicate link would create a
// cycle (spec §4.5 Duplicate-cycle check).
func DuplicateCycle(s State, source, canonical string) bool {
	seen := map[string]bool{}
	cur := canonical
	for cur != "" {
		if cur == source {
			return true
		}
		if seen[cur] {
			return false // already-cyclic data, don't loop forever
		}
		seen[cur] = true
		t, ok := s.Tasks[cur]
		if !ok {
			return false
		}
		cur = t.DuplicateOf
	}
	return false
}

// Ready reports whether a task is actionable: open or in_progress, and
// every blocks predecessor is terminal (spec §4.5 Readiness).
func Ready(s State, id string) bool {
	t, ok := s.Tasks[id]
	if !ok {
		return false
	}
	if t.Status != domain.StatusOpen && t.Status != domain.StatusInProgress {
		return false
	}
	for _, e := range s.Deps[id] {
		if e.Type != domain.DepBlocks {
			continue
		}
		blocker, ok := s.Tasks[e.Blocker]
		if !ok || !blocker.Status.Terminal() {
			return false
		}
	}
	return true
}

// ReadyList returns ready task ids in creation order (spec §4.5).
func ReadyList(s State) []string {
	var out []string
	for _, id := range s.CreatedOrder {
		if Ready(s, id) {
			out = append(out, id)
		}
	}
	return out
}

// PlanningLane is one of the two planning-filter buckets (spec §4.5
// Planning lane filter).
type PlanningLane int

const (
	LanePlanning PlanningLane = iota
	LaneCoding
)

// InLane reports whether a task belongs to the given planning lane.
func InLane(s State, id string, lane PlanningLane) bool {
	t, ok := s.Tasks[id]
	if !ok {
		return false
	}
	switch lane {
	case LanePlanning:
		return t.PlanningState == domain.PlanningNeedsPlanning || t.PlanningState == domain.PlanningNone
	case LaneCoding:
		return t.PlanningState == domain.PlanningPlanned
	}
	return false
}
