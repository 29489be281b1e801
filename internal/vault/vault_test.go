package vault

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureCreatesAllFoldersIdempotently(t *testing.T) {
	store := New(t.TempDir())

	require.NoError(t, store.Ensure())
	for _, state := range States() {
		info, err := os.Stat(store.Dir(state))
		require.NoError(t, err, "folder %s", state)
		assert.True(t, info.IsDir())
	}

	// Second call must succeed without touching existing content.
	marker := filepath.Join(store.Dir(Inbox), "existing.txt")
	require.NoError(t, os.WriteFile(marker, []byte("keep"), 0o644))
	require.NoError(t, store.Ensure())
	data, err := os.ReadFile(marker)
	require.NoError(t, err)
	assert.Equal(t, "keep", string(data))
}

func TestListFiltersAndSorts(t *testing.T) {
	store := New(t.TempDir())
	require.NoError(t, store.Ensure())
	dir := store.Dir(NeedsAction)

	for _, name := range []string{"b.md", "a.md", "notes.txt", ".hidden.md", Placeholder} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir.md"), 0o755))

	files := store.List(NeedsAction, "*.md")
	require.Len(t, files, 2)
	assert.Equal(t, "a.md", filepath.Base(files[0]))
	assert.Equal(t, "b.md", filepath.Base(files[1]))

	assert.Equal(t, 3, store.Count(NeedsAction, "*"))
}

func TestListMissingFolderIsEmpty(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Empty(t, store.List(Done, "*.md"))
	assert.Equal(t, 0, store.Count(Done, "*"))
}

func TestMoveToDoneAddsTimestampPrefix(t *testing.T) {
	store := New(t.TempDir())
	require.NoError(t, store.Ensure())

	src := filepath.Join(store.Dir(Approved), "task.md")
	require.NoError(t, os.WriteFile(src, []byte("body"), 0o644))

	dest, err := store.MoveToDone(src)
	require.NoError(t, err)

	base := filepath.Base(dest)
	assert.True(t, strings.HasSuffix(base, "_task.md"), "got %s", base)
	assert.Len(t, base, len("20060102_150405_task.md"))
	assert.NoFileExists(t, src)
	assert.FileExists(t, dest)
}

func TestMoveToMissingSourceFails(t *testing.T) {
	store := New(t.TempDir())
	require.NoError(t, store.Ensure())

	_, err := store.MoveToDone(filepath.Join(store.Dir(Approved), "ghost.md"))
	assert.Error(t, err)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(Inbox, NeedsAction))
	assert.True(t, CanTransition(PendingApproval, Approved))
	assert.True(t, CanTransition(PendingApproval, Rejected))
	assert.True(t, CanTransition(Approved, Done))
	assert.True(t, CanTransition(Rejected, Done))

	assert.False(t, CanTransition(PendingApproval, Done))
	assert.False(t, CanTransition(Done, Inbox))
	assert.False(t, CanTransition(Inbox, Approved))
}

func TestWriteFileAtomicReplacesContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.md")

	require.NoError(t, WriteFileAtomic(path, []byte("first")))
	require.NoError(t, WriteFileAtomic(path, []byte("second")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestParseFrontmatter(t *testing.T) {
	content := `---
type: email
priority: high
subject: "Invoice: overdue"
count: 3
empty:
---

Body line one.
Body line two.
`
	meta, body := ParseFrontmatter(content)
	assert.Equal(t, "email", meta["type"])
	assert.Equal(t, "high", meta["priority"])
	assert.Equal(t, "Invoice: overdue", meta["subject"])
	assert.Equal(t, "3", meta["count"])
	assert.Equal(t, "", meta["empty"])
	assert.Contains(t, body, "Body line one.")
}

func TestParseFrontmatterMalformed(t *testing.T) {
	// No opening fence.
	meta, body := ParseFrontmatter("just a body\n")
	assert.Empty(t, meta)
	assert.Equal(t, "just a body\n", body)

	// Unclosed fence.
	meta, body = ParseFrontmatter("---\ntype: email\nno closing fence\n")
	assert.Empty(t, meta)
	assert.Contains(t, body, "type: email")
}

func TestRenderFrontmatterRoundTrip(t *testing.T) {
	out := RenderFrontmatter([]Field{
		{Key: "type", Value: "approval_request"},
		{Key: "subject", Value: "Payment: urgent"},
		{Key: "note", Value: ""},
	}, "# Title\n")

	meta, body := ParseFrontmatter(out)
	assert.Equal(t, "approval_request", meta["type"])
	assert.Equal(t, "Payment: urgent", meta["subject"])
	assert.Equal(t, "", meta["note"])
	assert.Contains(t, body, "# Title")

	// Field order is preserved in the rendered header.
	assert.Less(t, strings.Index(out, "type:"), strings.Index(out, "subject:"))
}
