package supervisor

import (
	"bufio"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartChildEchoExitsCleanly(t *testing.T) {
	ch, err := startChild([]string{"echo", "hello"}, "")
	require.NoError(t, err)
	require.NotZero(t, ch.pid)

	sc := bufio.NewScanner(ch.stdout)
	require.True(t, sc.Scan())
	assert.Equal(t, "hello", sc.Text())

	err = ch.wait()
	assert.NoError(t, err)

	select {
	case <-ch.Done():
	case <-time.After(time.Second):
		t.Fatal("Done channel never closed")
	}
}

func TestChildWaitIsIdempotent(t *testing.T) {
	ch, err := startChild([]string{"true"}, "")
	require.NoError(t, err)

	err1 := ch.wait()
	err2 := ch.wait()
	assert.Equal(t, err1, err2)
}

func TestChildCloseKillsLongRunningProcess(t *testing.T) {
	ch, err := startChild([]string{"sleep", "30"}, "")
	require.NoError(t, err)

	start := time.Now()
	ch.close(50 * time.Millisecond)
	_ = ch.wait()

	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestExitCodeClassifiesKillSignal(t *testing.T) {
	ch, err := startChild([]string{"sleep", "30"}, "")
	require.NoError(t, err)

	require.NoError(t, syscall.Kill(ch.pid, syscall.SIGTERM))

	err = ch.wait()
	code, signaled := exitCode(err)
	assert.True(t, signaled)
	assert.Equal(t, 128+int(syscall.SIGTERM), code)
}

func TestExitCodeClassifiesVoluntaryExitMatchingSignalNumber(t *testing.T) {
	ch, err := startChild([]string{"sh", "-c", "exit 15"}, "")
	require.NoError(t, err)

	err = ch.wait()
	code, signaled := exitCode(err)
	assert.Equal(t, 15, code)
	assert.False(t, signaled)
}

func TestExitCodeNormalExit(t *testing.T) {
	ch, err := startChild([]string{"sh", "-c", "exit 0"}, "")
	require.NoError(t, err)

	err = ch.wait()
	code, signaled := exitCode(err)
	assert.Equal(t, 0, code)
	assert.False(t, signaled)
}
