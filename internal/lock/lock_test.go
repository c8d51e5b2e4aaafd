package lock

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/BumpyClock/tasque/internal/paths"
)

func TestAcquireReleaseRoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := paths.For(dir)
	require.NoError(t, l.EnsureDirs())

	mgr := New(l, 500*time.Millisecond, zerolog.Nop())
	h, err := mgr.Acquire()
	require.NoError(t, err)
	require.NoError(t, mgr.Release(h))

	_, err = os.Stat(l.Lock)
	require.True(t, os.IsNotExist(err))
}

func TestAcquireTimesOutWhenHeld(t *testing.T) {
	dir := t.TempDir()
	l := paths.For(dir)
	require.NoError(t, l.EnsureDirs())

	mgr1 := New(l, time.Second, zerolog.Nop())
	h1, err := mgr1.Acquire()
	require.NoError(t, err)
	defer mgr1.Release(h1)

	mgr2 := New(l, 150*time.Millisecond, zerolog.Nop())
	_, err = mgr2.Acquire()
	require.Error(t, err)
}

func TestStaleLockReclaimed(t *testing.T) {
	dir := t.TempDir()
	l := paths.For(dir)
	require.NoError(t, l.EnsureDirs())

	// Simulate a lock left behind by a process that no longer exists,
	// created well past the staleAfter threshold.
	stalePayload := Payload{Host: hostnameForTest(t), PID: deadPID(), CreatedAt: time.Now().Add(-time.Hour)}
	writeRawLock(t, l.Lock, stalePayload)

	mgr := New(l, time.Second, zerolog.Nop())
	h, err := mgr.Acquire()
	require.NoError(t, err)
	require.NoError(t, mgr.Release(h))
}

func hostnameForTest(t *testing.T) string {
	h, err := os.Hostname()
	require.NoError(t, err)
	return h
}

// deadPID returns a pid astronomically unlikely to be alive.
func deadPID() int { return 1 << 30 }

func writeRawLock(t *testing.T, path string, p Payload) {
	data, err := json.Marshal(p)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}
