package snapshot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BumpyClock/tasque/internal/domain"
	"github.com/BumpyClock/tasque/internal/eventlog"
)

func TestLoadEmptyRepoReturnsEmptyState(t *testing.T) {
	l := testLayout(t)
	loaded, err := Load(l)
	require.NoError(t, err)
	require.Empty(t, loaded.State.Tasks)
	require.Empty(t, loaded.Warning)
}

func TestLoadFoldsLogWhenNoCacheOrSnapshot(t *testing.T) {
	l := testLayout(t)
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	log := eventlog.New(l)
	require.NoError(t, log.Append([]domain.Event{
		domain.NewEvent("e1", ts, "tester", domain.EventTaskCreated, "tsq-1", map[string]any{"title": "hi"}),
	}))

	loaded, err := Load(l)
	require.NoError(t, err)
	require.Contains(t, loaded.State.Tasks, "tsq-1")
}

func TestLoadUsesStateCacheWhenCurrent(t *testing.T) {
	l := testLayout(t)
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	log := eventlog.New(l)
	require.NoError(t, log.Append([]domain.Event{
		domain.NewEvent("e1", ts, "tester", domain.EventTaskCreated, "tsq-1", map[string]any{"title": "hi"}),
	}))

	cache := stateWithTask("tsq-1")
	cache.AppliedEvents = 1
	require.NoError(t, WriteStateCache(l, cache))

	require.NoError(t, log.Append([]domain.Event{
		domain.NewEvent("e2", ts.Add(time.Minute), "tester", domain.EventTaskStatusSet, "tsq-1", map[string]any{"status": "closed"}),
	}))

	loaded, err := Load(l)
	require.NoError(t, err)
	require.Equal(t, domain.StatusClosed, loaded.State.Tasks["tsq-1"].Status)
	require.Equal(t, 2, loaded.State.AppliedEvents)
}

func TestLoadFallsBackToSnapshotWhenCacheAheadOfLog(t *testing.T) {
	l := testLayout(t)
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	ahead := stateWithTask("tsq-1")
	ahead.AppliedEvents = 99
	require.NoError(t, WriteStateCache(l, ahead))

	log := eventlog.New(l)
	require.NoError(t, log.Append([]domain.Event{
		domain.NewEvent("e1", ts, "tester", domain.EventTaskCreated, "tsq-2", map[string]any{"title": "real"}),
	}))

	loaded, err := Load(l)
	require.NoError(t, err)
	require.Contains(t, loaded.State.Tasks, "tsq-2")
}
