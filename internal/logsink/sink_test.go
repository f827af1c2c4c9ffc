package logsink

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSinkAppendCreatesAndWritesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "proc.log")

	s := New(zap.NewNop(), "127.0.0.1", 8080)
	s.Stdout(path, "hello")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "STDOUT: hello")
}

func TestSinkTagFormats(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "proc.log")

	s := New(zap.NewNop(), "127.0.0.1", 8080)
	s.Stdout(path, "out-line")
	s.Stderr(path, "err-line")
	s.System(path, "banner")
	s.RunStdout(path, 3, "run-out")
	s.RunStderr(path, 3, "run-err")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 5)

	assert.Contains(t, lines[0], "STDOUT: out-line")
	assert.Contains(t, lines[1], "STDERR: err-line")
	assert.Contains(t, lines[2], "SYSTEM 127.0.0.1:8080: banner")
	assert.Contains(t, lines[3], "RUN#3 STDOUT: run-out")
	assert.Contains(t, lines[4], "RUN#3 STDERR: run-err")
}

func TestSinkClearTruncates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "proc.log")

	s := New(zap.NewNop(), "127.0.0.1", 8080)
	s.Stdout(path, "hello")
	require.NoError(t, s.Clear(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, raw)
}

func TestSinkAppendIsSerializedPerPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "proc.log")

	s := New(zap.NewNop(), "127.0.0.1", 8080)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			s.Stdout(path, "a")
		}
		close(done)
	}()
	for i := 0; i < 50; i++ {
		s.Stdout(path, "b")
	}
	<-done

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	assert.Len(t, lines, 100)
}
