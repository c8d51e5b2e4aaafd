package eventlog

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BumpyClock/tasque/internal/domain"
	"github.com/BumpyClock/tasque/internal/paths"
)

func testLayout(t *testing.T) paths.Layout {
	t.Helper()
	return paths.For(t.TempDir())
}

func TestReadMissingLogIsEmpty(t *testing.T) {
	l := testLayout(t)
	events, warn, err := New(l).Read()
	require.NoError(t, err)
	require.Empty(t, warn)
	require.Empty(t, events)
}

func TestAppendAndReadRoundTrip(t *testing.T) {
	l := testLayout(t)
	log := New(l)
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	in := []domain.Event{
		domain.NewEvent("e1", ts, "tester", domain.EventTaskCreated, "T1", map[string]any{"title": "first"}),
		domain.NewEvent("e2", ts.Add(time.Minute), "tester", domain.EventTaskStatusSet, "T1", map[string]any{"status": "closed"}),
	}
	require.NoError(t, log.Append(in))

	out, warn, err := log.Read()
	require.NoError(t, err)
	require.Empty(t, warn)
	require.Len(t, out, 2)
	require.Equal(t, "e1", out[0].ID)
	require.Equal(t, "first", out[0].Payload["title"])
}

func TestAppendIsCumulative(t *testing.T) {
	l := testLayout(t)
	log := New(l)
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, log.Append([]domain.Event{
		domain.NewEvent("e1", ts, "tester", domain.EventTaskCreated, "T1", map[string]any{"title": "first"}),
	}))
	require.NoError(t, log.Append([]domain.Event{
		domain.NewEvent("e2", ts, "tester", domain.EventTaskCreated, "T2", map[string]any{"title": "second"}),
	}))

	n, err := log.Length()
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestReadToleratesTrailingMalformedLine(t *testing.T) {
	l := testLayout(t)
	log := New(l)
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, log.Append([]domain.Event{
		domain.NewEvent("e1", ts, "tester", domain.EventTaskCreated, "T1", map[string]any{"title": "first"}),
	}))
	require.NoError(t, os.WriteFile(l.Events,
		append(mustRead(t, l.Events), []byte(`{"id":"e2","ts":"2026`)...), 0o644))

	events, warn, err := log.Read()
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.NotEmpty(t, warn)
}

func TestReadFailsOnNonTrailingMalformedLine(t *testing.T) {
	l := testLayout(t)
	require.NoError(t, os.MkdirAll(l.Dir, 0o755))
	content := "not json\n" + `{"id":"e2","ts":"2026-01-01T00:00:00Z","actor":"a","type":"task.created","task_id":"T1","payload":{"title":"x"}}` + "\n"
	require.NoError(t, os.WriteFile(l.Events, []byte(content), 0o644))

	_, _, err := New(l).Read()
	require.Error(t, err)
}

func TestReadFailsOnMissingRequiredPayloadKey(t *testing.T) {
	l := testLayout(t)
	require.NoError(t, os.MkdirAll(l.Dir, 0o755))
	content := `{"id":"e1","ts":"2026-01-01T00:00:00Z","actor":"a","type":"task.created","task_id":"T1","payload":{}}` + "\n"
	require.NoError(t, os.WriteFile(l.Events, []byte(content), 0o644))

	_, _, err := New(l).Read()
	require.Error(t, err)
}

func TestEnsureExistsIsIdempotent(t *testing.T) {
	l := testLayout(t)
	require.NoError(t, os.MkdirAll(l.Dir, 0o755))
	log := New(l)
	require.NoError(t, log.EnsureExists())
	require.NoError(t, log.EnsureExists())
	_, err := os.Stat(l.Events)
	require.NoError(t, err)
}

func mustRead(t *testing.T, path string) []byte {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return append(b, '\n')
}
