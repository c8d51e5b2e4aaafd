package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BumpyClock/tasque/internal/domain"
	"github.com/BumpyClock/tasque/internal/ids"
)

func testService(t *testing.T) *Service {
	t.Helper()
	root := t.TempDir()
	tick := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return tick }
	n := 0
	eventIDGen := func(time.Time) (string, error) {
		n++
		return ids.ChildID("ev", n), nil
	}
	s := New(root, "tester", clock, eventIDGen)
	require.NoError(t, s.Init(""))
	return s
}

func TestCreateAndGet(t *testing.T) {
	s := testService(t)
	task, err := s.Create(CreateInput{Title: "Write spec"})
	require.NoError(t, err)
	require.Equal(t, "Write spec", task.Title)
	require.Equal(t, domain.StatusOpen, task.Status)

	got, err := s.Get(task.ID)
	require.NoError(t, err)
	require.Equal(t, task.ID, got.ID)
}

func TestCreateChildAllocatesCounterID(t *testing.T) {
	s := testService(t)
	parent, err := s.Create(CreateInput{Title: "Parent"})
	require.NoError(t, err)

	child, err := s.Create(CreateInput{Title: "Child", ParentID: parent.ID})
	require.NoError(t, err)
	require.Equal(t, parent.ID+".1", child.ID)
}

func TestCreateMissingTitleFails(t *testing.T) {
	s := testService(t)
	_, err := s.Create(CreateInput{})
	require.Error(t, err)
}

func TestUpdateTitleAndStatus(t *testing.T) {
	s := testService(t)
	task, err := s.Create(CreateInput{Title: "Original"})
	require.NoError(t, err)

	newTitle := "Renamed"
	closed := domain.StatusClosed
	updated, err := s.Update(task.ID, UpdateInput{Title: &newTitle, Status: &closed})
	require.NoError(t, err)
	require.Equal(t, "Renamed", updated.Title)
	require.Equal(t, domain.StatusClosed, updated.Status)
	require.NotNil(t, updated.ClosedAt)
}

func TestClaimConflictBetweenAssignees(t *testing.T) {
	s := testService(t)
	task, err := s.Create(CreateInput{Title: "Claimable"})
	require.NoError(t, err)

	_, err = s.Claim(task.ID, ClaimInput{Assignee: "alice"})
	require.NoError(t, err)

	_, err = s.Claim(task.ID, ClaimInput{Assignee: "bob"})
	require.Error(t, err)
}

func TestClaimRequiresAttachedSpecWhenAsked(t *testing.T) {
	s := testService(t)
	task, err := s.Create(CreateInput{Title: "Needs spec"})
	require.NoError(t, err)

	_, err = s.Claim(task.ID, ClaimInput{Assignee: "alice", RequireAttachedSpec: true})
	require.Error(t, err)

	_, err = s.AttachSpec(task.ID, SpecAttachInput{Bytes: []byte("# Overview\nstuff\n\n# Non-goals\nnone\n\n# Interfaces (CLI/API)\nnone\n\n# Data model / schema changes\nnone\n\n# Acceptance criteria\nnone\n\n# Test plan\nnone\n")})
	require.NoError(t, err)

	claimed, err := s.Claim(task.ID, ClaimInput{Assignee: "alice", RequireAttachedSpec: true})
	require.NoError(t, err)
	require.Equal(t, "alice", claimed.Assignee)
}

func TestCloseAndReopenBatch(t *testing.T) {
	s := testService(t)
	a, err := s.Create(CreateInput{Title: "A"})
	require.NoError(t, err)
	b, err := s.Create(CreateInput{Title: "B"})
	require.NoError(t, err)

	state, err := s.Close(a.ID, b.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusClosed, state.Tasks[a.ID].Status)
	require.Equal(t, domain.StatusClosed, state.Tasks[b.ID].Status)

	state, err = s.Reopen(a.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusOpen, state.Tasks[a.ID].Status)
}

func TestReopenRejectsNonTerminalTask(t *testing.T) {
	s := testService(t)
	a, err := s.Create(CreateInput{Title: "A"})
	require.NoError(t, err)

	_, err = s.Reopen(a.ID)
	require.Error(t, err)
}

func TestDuplicateClosesSourceAndLinks(t *testing.T) {
	s := testService(t)
	src, err := s.Create(CreateInput{Title: "Dup"})
	require.NoError(t, err)
	canonical, err := s.Create(CreateInput{Title: "Canonical"})
	require.NoError(t, err)

	updated, err := s.Duplicate(src.ID, canonical.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusClosed, updated.Status)
	require.Equal(t, canonical.ID, updated.DuplicateOf)
}

func TestDuplicateCycleRejected(t *testing.T) {
	s := testService(t)
	a, err := s.Create(CreateInput{Title: "A"})
	require.NoError(t, err)
	b, err := s.Create(CreateInput{Title: "B"})
	require.NoError(t, err)

	_, err = s.Duplicate(a.ID, b.ID)
	require.NoError(t, err)

	_, err = s.Duplicate(b.ID, a.ID)
	require.Error(t, err)
}

func TestMergeDryRunDoesNotPersist(t *testing.T) {
	s := testService(t)
	a, err := s.Create(CreateInput{Title: "A"})
	require.NoError(t, err)
	b, err := s.Create(CreateInput{Title: "B"})
	require.NoError(t, err)

	result, err := s.Merge(a.ID, b.ID, true)
	require.NoError(t, err)
	require.True(t, result.DryRun)
	require.Equal(t, domain.StatusClosed, result.State.Tasks[a.ID].Status)

	persisted, err := s.Get(a.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusOpen, persisted.Status)
}

func TestMergeRealPersists(t *testing.T) {
	s := testService(t)
	a, err := s.Create(CreateInput{Title: "A"})
	require.NoError(t, err)
	b, err := s.Create(CreateInput{Title: "B"})
	require.NoError(t, err)

	result, err := s.Merge(a.ID, b.ID, false)
	require.NoError(t, err)
	require.False(t, result.DryRun)

	persisted, err := s.Get(a.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusClosed, persisted.Status)
}

func TestAddAndRemoveDep(t *testing.T) {
	s := testService(t)
	a, err := s.Create(CreateInput{Title: "A"})
	require.NoError(t, err)
	b, err := s.Create(CreateInput{Title: "B"})
	require.NoError(t, err)

	_, err = s.AddDep(a.ID, b.ID, domain.DepBlocks)
	require.NoError(t, err)

	state, _, err := s.Load()
	require.NoError(t, err)
	require.Len(t, state.Deps[a.ID], 1)

	_, err = s.RemoveDep(a.ID, b.ID, domain.DepBlocks)
	require.NoError(t, err)

	state, _, err = s.Load()
	require.NoError(t, err)
	require.Empty(t, state.Deps[a.ID])
}

func TestAddDepSelfEdgeRejected(t *testing.T) {
	s := testService(t)
	a, err := s.Create(CreateInput{Title: "A"})
	require.NoError(t, err)

	_, err = s.AddDep(a.ID, a.ID, domain.DepBlocks)
	require.Error(t, err)
}

func TestAddAndRemoveLink(t *testing.T) {
	s := testService(t)
	a, err := s.Create(CreateInput{Title: "A"})
	require.NoError(t, err)
	b, err := s.Create(CreateInput{Title: "B"})
	require.NoError(t, err)

	_, err = s.AddLink(a.ID, domain.RelRelatesTo, b.ID)
	require.NoError(t, err)

	state, _, err := s.Load()
	require.NoError(t, err)
	require.Contains(t, state.Links[b.ID][domain.RelRelatesTo], a.ID) // symmetric

	_, err = s.RemoveLink(a.ID, domain.RelRelatesTo, b.ID)
	require.NoError(t, err)
}

func TestAddAndRemoveLabel(t *testing.T) {
	s := testService(t)
	a, err := s.Create(CreateInput{Title: "A"})
	require.NoError(t, err)

	updated, err := s.AddLabel(a.ID, "area:backend")
	require.NoError(t, err)
	require.Contains(t, updated.Labels, "area:backend")

	updated, err = s.RemoveLabel(a.ID, "area:backend")
	require.NoError(t, err)
	require.NotContains(t, updated.Labels, "area:backend")
}

func TestRemoveLabelNotPresentFails(t *testing.T) {
	s := testService(t)
	a, err := s.Create(CreateInput{Title: "A"})
	require.NoError(t, err)

	_, err = s.RemoveLabel(a.ID, "nope")
	require.Error(t, err)
}

func TestAddNote(t *testing.T) {
	s := testService(t)
	a, err := s.Create(CreateInput{Title: "A"})
	require.NoError(t, err)

	updated, err := s.AddNote(a.ID, "checked in with reviewer")
	require.NoError(t, err)
	require.Len(t, updated.Notes, 1)
	require.Equal(t, "checked in with reviewer", updated.Notes[0].Text)
}

func TestAddNoteEmptyTextFails(t *testing.T) {
	s := testService(t)
	a, err := s.Create(CreateInput{Title: "A"})
	require.NoError(t, err)

	_, err = s.AddNote(a.ID, "   ")
	require.Error(t, err)
}

func TestAttachSpecAndCheck(t *testing.T) {
	s := testService(t)
	a, err := s.Create(CreateInput{Title: "A"})
	require.NoError(t, err)

	spec := []byte("# Overview\nhello\n\n# Non-goals\nnone\n\n# Interfaces (CLI/API)\nnone\n\n# Data model / schema changes\nnone\n\n# Acceptance criteria\nnone\n\n# Test plan\nnone\n")
	_, err = s.AttachSpec(a.ID, SpecAttachInput{Bytes: spec})
	require.NoError(t, err)

	report, err := s.CheckSpec(a.ID)
	require.NoError(t, err)
	require.True(t, report.Attached)
	require.False(t, report.FingerprintDrift)
	require.Empty(t, report.MissingSections)
}

func TestAttachSpecConflictRequiresForce(t *testing.T) {
	s := testService(t)
	a, err := s.Create(CreateInput{Title: "A"})
	require.NoError(t, err)

	_, err = s.AttachSpec(a.ID, SpecAttachInput{Bytes: []byte("# Overview\nv1\n\n# Non-goals\nx\n\n# Interfaces (CLI/API)\nx\n\n# Data model / schema changes\nx\n\n# Acceptance criteria\nx\n\n# Test plan\nx\n")})
	require.NoError(t, err)

	_, err = s.AttachSpec(a.ID, SpecAttachInput{Bytes: []byte("different content entirely")})
	require.Error(t, err)

	_, err = s.AttachSpec(a.ID, SpecAttachInput{Bytes: []byte("different content entirely"), Force: true})
	require.NoError(t, err)
}

func TestDoctorReportsNoOrphanEdgesOnValidGraph(t *testing.T) {
	s := testService(t)
	a, err := s.Create(CreateInput{Title: "A"})
	require.NoError(t, err)
	b, err := s.Create(CreateInput{Title: "B"})
	require.NoError(t, err)
	_, err = s.AddDep(a.ID, b.ID, domain.DepBlocks)
	require.NoError(t, err)

	_, err = s.RemoveDep(b.ID, "nonexistent", domain.DepBlocks) // no-op, sanity
	require.NoError(t, err)

	report, err := s.Doctor()
	require.NoError(t, err)
	require.Equal(t, 2, report.TaskCount)
	require.Empty(t, report.OrphanEdges)
}

func TestReadyExcludesBlockedTask(t *testing.T) {
	s := testService(t)
	a, err := s.Create(CreateInput{Title: "A"})
	require.NoError(t, err)
	b, err := s.Create(CreateInput{Title: "B"})
	require.NoError(t, err)
	_, err = s.AddDep(a.ID, b.ID, domain.DepBlocks)
	require.NoError(t, err)

	ready, err := s.Ready()
	require.NoError(t, err)
	require.NotContains(t, ready, a.ID)
	require.Contains(t, ready, b.ID)

	_, err = s.Close(b.ID)
	require.NoError(t, err)
	ready, err = s.Ready()
	require.NoError(t, err)
	require.Contains(t, ready, a.ID)
}

func TestInLaneReflectsPlanningState(t *testing.T) {
	s := testService(t)
	a, err := s.Create(CreateInput{Title: "A"})
	require.NoError(t, err)

	planning, err := s.InLane(a.ID, LanePlanning)
	require.NoError(t, err)
	require.True(t, planning)

	planned := domain.PlanningPlanned
	_, err = s.Update(a.ID, UpdateInput{PlanningState: &planned})
	require.NoError(t, err)

	coding, err := s.InLane(a.ID, LaneCoding)
	require.NoError(t, err)
	require.True(t, coding)
}

func TestRepairPlanModeFindsNoOrphansOnCleanRepo(t *testing.T) {
	s := testService(t)
	_, err := s.Create(CreateInput{Title: "A"})
	require.NoError(t, err)

	result, err := s.Repair(RepairInput{Fix: false})
	require.NoError(t, err)
	require.Empty(t, result.Plan.OrphanEdges)
}
