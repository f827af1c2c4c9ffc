package pathguard

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAcquireThenReleaseAllowsReacquire(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exeio.lock")
	log := zap.NewNop()

	g, err := Acquire(log, path)
	require.NoError(t, err)

	g.Release()

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	g2, err := Acquire(log, path)
	require.NoError(t, err)
	g2.Release()
}

func TestAcquireStaleLockIsReclaimed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exeio.lock")
	log := zap.NewNop()

	// A PID that's extremely unlikely to be alive on any test host.
	require.NoError(t, os.WriteFile(path, []byte("999999"), 0o644))

	g, err := Acquire(log, path)
	require.NoError(t, err)
	g.Release()
}

func TestLogFileForID(t *testing.T) {
	assert.Equal(t, filepath.Join("/var/log", "echo1.log"), LogFileForID("/var/log", "echo1"))
}
