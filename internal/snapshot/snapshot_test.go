package snapshot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BumpyClock/tasque/internal/domain"
	"github.com/BumpyClock/tasque/internal/paths"
	"github.com/BumpyClock/tasque/internal/projector"
)

func testLayout(t *testing.T) paths.Layout {
	t.Helper()
	l := paths.For(t.TempDir())
	require.NoError(t, l.EnsureDirs())
	return l
}

func stateWithTask(id string) projector.State {
	s := projector.New()
	s.Tasks[id] = &domain.Task{ID: id, Status: domain.StatusOpen}
	s.AppliedEvents = 1
	return s
}

func TestWriteAndReadLatestRoundTrip(t *testing.T) {
	l := testLayout(t)
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, Write(l, ts, 1, stateWithTask("tsq-1")))

	rec, malformed, err := Latest(l)
	require.NoError(t, err)
	require.Empty(t, malformed)
	require.NotNil(t, rec)
	require.Equal(t, 1, rec.EventCount)
	require.Contains(t, rec.State.Tasks, "tsq-1")
}

func TestLatestWithNoSnapshotsReturnsNil(t *testing.T) {
	l := testLayout(t)
	rec, malformed, err := Latest(l)
	require.NoError(t, err)
	require.Nil(t, rec)
	require.Empty(t, malformed)
}

func TestPruneKeepsOnlyRetainCount(t *testing.T) {
	l := testLayout(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < RetainCount+3; i++ {
		ts := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, Write(l, ts, i+1, stateWithTask("tsq-1")))
	}
	names, err := listSorted(l)
	require.NoError(t, err)
	require.Len(t, names, RetainCount)
}

func TestLatestSkipsMalformedSnapshot(t *testing.T) {
	l := testLayout(t)
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, Write(l, ts, 1, stateWithTask("tsq-1")))
	require.NoError(t, paths.AtomicWrite(l.Snapshots+"/2026-01-01T00-05-00.000Z-2.json", []byte("not json")))

	rec, malformed, err := Latest(l)
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, 1, rec.EventCount)
	require.Contains(t, malformed, "2026-01-01T00-05-00.000Z-2.json")
}

func TestStateCacheRoundTrip(t *testing.T) {
	l := testLayout(t)
	s := stateWithTask("tsq-1")
	require.NoError(t, WriteStateCache(l, s))

	got, err := ReadStateCache(l)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Contains(t, got.Tasks, "tsq-1")
	require.Equal(t, 1, got.AppliedEvents)
}

func TestReadStateCacheMissingReturnsNil(t *testing.T) {
	l := testLayout(t)
	got, err := ReadStateCache(l)
	require.NoError(t, err)
	require.Nil(t, got)
}
