package config

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BumpyClock/tasque/internal/paths"
)

func testLayout(t *testing.T) paths.Layout {
	t.Helper()
	l := paths.For(t.TempDir())
	require.NoError(t, l.EnsureDirs())
	return l
}

func TestLoadMissingConfigReturnsZeroValue(t *testing.T) {
	l := testLayout(t)
	cfg, err := Load(l)
	require.NoError(t, err)
	require.Equal(t, Config{}, cfg)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	l := testLayout(t)
	want := Config{SchemaVersion: 1, SnapshotEvery: 50, SyncBranch: "tasque-sync"}
	require.NoError(t, Save(l, want))

	got, err := Load(l)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestSaveRejectsNonPositiveSnapshotEvery(t *testing.T) {
	l := testLayout(t)
	err := Save(l, Config{SchemaVersion: 1, SnapshotEvery: 0})
	require.Error(t, err)
}

func TestEnsureDefaultWritesDefaultsOnce(t *testing.T) {
	l := testLayout(t)
	require.NoError(t, EnsureDefault(l))

	cfg, err := Load(l)
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)

	// Calling again must not disturb an already-initialized config.
	require.NoError(t, Save(l, Config{SchemaVersion: 1, SnapshotEvery: 500}))
	require.NoError(t, EnsureDefault(l))
	cfg, err = Load(l)
	require.NoError(t, err)
	require.Equal(t, 500, cfg.SnapshotEvery)
}

func TestSnapshotEveryOrDefaultGuardsZero(t *testing.T) {
	require.Equal(t, 200, Config{}.SnapshotEveryOrDefault())
	require.Equal(t, 50, Config{SnapshotEvery: 50}.SnapshotEveryOrDefault())
}
