package logsink

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLines(t *testing.T, n int) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "big.log")

	var b strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func TestReadPageNewestFirst(t *testing.T) {
	path := writeLines(t, 10)

	lines, total, err := ReadPage(path, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, 10, total)
	assert.Equal(t, []string{"line 10", "line 9", "line 8"}, lines)
}

func TestReadPageSecondPage(t *testing.T) {
	path := writeLines(t, 10)

	lines, total, err := ReadPage(path, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 10, total)
	assert.Equal(t, []string{"line 7", "line 6", "line 5"}, lines)
}

func TestReadPagePastEndIsEmpty(t *testing.T) {
	path := writeLines(t, 5)

	lines, total, err := ReadPage(path, 5, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Empty(t, lines)
}

func TestReadPageMissingFileIsEmpty(t *testing.T) {
	lines, total, err := ReadPage(filepath.Join(t.TempDir(), "nope.log"), 1, 50)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Empty(t, lines)
}

func TestReadPageSkipsBlankLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "proc.log")
	require.NoError(t, os.WriteFile(path, []byte("a\n\nb\n\n\nc\n"), 0o644))

	lines, total, err := ReadPage(path, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, []string{"c", "b", "a"}, lines)
}

func TestReadPageClampsDefaults(t *testing.T) {
	path := writeLines(t, 3)

	lines, total, err := ReadPage(path, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, []string{"line 3"}, lines)
}
