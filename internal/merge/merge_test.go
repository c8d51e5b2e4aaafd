package merge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeLines(t *testing.T, path string, lines ...string) {
	t.Helper()
	var content string
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestMerge3WayUnionNoConflict(t *testing.T) {
	dir := t.TempDir()
	ancestor := filepath.Join(dir, "ancestor.jsonl")
	ours := filepath.Join(dir, "ours.jsonl")
	theirs := filepath.Join(dir, "theirs.jsonl")

	e1 := `{"id":"01AAAAAAAAAAAAAAAAAAAAAAAA","type":"task.created","task_id":"tsq-1","payload":{"title":"A"}}`
	e2 := `{"id":"01BBBBBBBBBBBBBBBBBBBBBBBB","type":"task.noted","task_id":"tsq-1","payload":{"text":"x"}}`
	e3 := `{"id":"01CCCCCCCCCCCCCCCCCCCCCCCC","type":"task.noted","task_id":"tsq-1","payload":{"text":"y"}}`

	writeLines(t, ancestor, e1)
	writeLines(t, ours, e1, e2)
	writeLines(t, theirs, e1, e3)

	res, err := Merge3Way(ancestor, ours, theirs)
	require.NoError(t, err)
	require.Empty(t, res.Conflicts)
	require.Equal(t, 3, res.Merged)

	merged, err := os.ReadFile(ours)
	require.NoError(t, err)
	require.Contains(t, string(merged), "01AAAAAAAAAAAAAAAAAAAAAAAA")
	require.Contains(t, string(merged), "01BBBBBBBBBBBBBBBBBBBBBBBB")
	require.Contains(t, string(merged), "01CCCCCCCCCCCCCCCCCCCCCCCC")
}

func TestMerge3WayConflictLeavesOursUntouched(t *testing.T) {
	dir := t.TempDir()
	ancestor := filepath.Join(dir, "ancestor.jsonl")
	ours := filepath.Join(dir, "ours.jsonl")
	theirs := filepath.Join(dir, "theirs.jsonl")

	e1Base := `{"id":"01AAAAAAAAAAAAAAAAAAAAAAAA","type":"task.created","task_id":"tsq-1","payload":{"title":"A"}}`
	e1Ours := `{"id":"01AAAAAAAAAAAAAAAAAAAAAAAA","type":"task.created","task_id":"tsq-1","payload":{"title":"B"}}`
	e1Theirs := `{"id":"01AAAAAAAAAAAAAAAAAAAAAAAA","type":"task.created","task_id":"tsq-1","payload":{"title":"C"}}`

	writeLines(t, ancestor, e1Base)
	writeLines(t, ours, e1Ours)
	writeLines(t, theirs, e1Theirs)

	before, err := os.ReadFile(ours)
	require.NoError(t, err)

	res, err := Merge3Way(ancestor, ours, theirs)
	require.NoError(t, err)
	require.Len(t, res.Conflicts, 1)
	require.Equal(t, "01AAAAAAAAAAAAAAAAAAAAAAAA", res.Conflicts[0].ID)

	after, err := os.ReadFile(ours)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestMerge3WayMissingAncestorIsEmptyBase(t *testing.T) {
	dir := t.TempDir()
	ours := filepath.Join(dir, "ours.jsonl")
	theirs := filepath.Join(dir, "theirs.jsonl")
	ancestor := filepath.Join(dir, "does-not-exist.jsonl")

	e1 := `{"id":"01AAAAAAAAAAAAAAAAAAAAAAAA","type":"task.created","task_id":"tsq-1","payload":{"title":"A"}}`
	writeLines(t, ours, e1)
	writeLines(t, theirs, e1)

	res, err := Merge3Way(ancestor, ours, theirs)
	require.NoError(t, err)
	require.Empty(t, res.Conflicts)
	require.Equal(t, 1, res.Merged)
}

func TestFormatConflicts(t *testing.T) {
	out := FormatConflicts([]Conflict{{ID: "01X"}})
	require.Contains(t, out, "01X")
	require.Contains(t, out, "1 conflicting")
}
