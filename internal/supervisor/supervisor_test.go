package supervisor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/philopaterwaheed/exeio/internal/logsink"
)

// fakeStore is an in-memory ConfigStore stand-in, avoiding a dependency on
// the config package (which itself imports supervisor).
type fakeStore struct {
	defs map[string]ProcessDefinition
}

func newFakeStore() *fakeStore { return &fakeStore{defs: make(map[string]ProcessDefinition)} }

func (f *fakeStore) Load() []ProcessDefinition {
	out := make([]ProcessDefinition, 0, len(f.defs))
	for _, d := range f.defs {
		out = append(out, d)
	}
	return out
}

func (f *fakeStore) Upsert(def ProcessDefinition) error {
	f.defs[def.ID] = def
	return nil
}

func (f *fakeStore) Delete(id string) error {
	delete(f.defs, id)
	return nil
}

func newTestSupervisor(t *testing.T) *Supervisor {
	t.Helper()
	dir := t.TempDir()
	sink := logsink.New(zap.NewNop(), "127.0.0.1", 8080)
	return New(zap.NewNop(), sink, newFakeStore(), dir)
}

func TestSupervisorAddAndList(t *testing.T) {
	sup := newTestSupervisor(t)

	err := sup.Add(ProcessDefinition{ID: "echo1", Command: "echo", Args: []string{"hello"}}, false)
	require.NoError(t, err)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snaps := sup.List()
		if len(snaps) == 1 && snaps[0].RunCount == 1 {
			assert.Equal(t, "echo1", snaps[0].Definition.ID)
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("echo1 never reached run_count 1")
}

func TestSupervisorAddDuplicateIDFails(t *testing.T) {
	sup := newTestSupervisor(t)
	require.NoError(t, sup.Add(ProcessDefinition{ID: "a", Command: "sleep", Args: []string{"30"}}, false))

	err := sup.Add(ProcessDefinition{ID: "a", Command: "echo"}, false)
	assert.Error(t, err)

	_ = sup.Stop("a")
}

func TestSupervisorStopMarksManuallyStopped(t *testing.T) {
	sup := newTestSupervisor(t)
	require.NoError(t, sup.Add(ProcessDefinition{ID: "a", Command: "sleep", Args: []string{"30"}}, false))

	require.NoError(t, sup.Stop("a"))

	snap, ok := sup.reg.Snapshot("a")
	require.True(t, ok)
	assert.Equal(t, StatusManuallyStopped, snap.Status)
	assert.False(t, snap.IsRunning)
}

func TestSupervisorStopUnknownIDIsNotFound(t *testing.T) {
	sup := newTestSupervisor(t)
	err := sup.Stop("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSupervisorRemoveDeletesFromRegistryAndStore(t *testing.T) {
	sup := newTestSupervisor(t)
	require.NoError(t, sup.Add(ProcessDefinition{ID: "a", Command: "sleep", Args: []string{"30"}}, true))

	require.NoError(t, sup.Remove("a"))

	assert.False(t, sup.reg.Has("a"))
	assert.Empty(t, sup.store.Load())
}

func TestSupervisorInputFailsWithoutRunningProcess(t *testing.T) {
	sup := newTestSupervisor(t)
	require.NoError(t, sup.Add(ProcessDefinition{ID: "a", Command: "true"}, false))

	time.Sleep(100 * time.Millisecond) // let the short-lived process exit
	err := sup.Input("a", "hi")
	assert.Error(t, err)
}

// TestSupervisorAutoRestartSingleCrashUsesBaseDelayNotFlapPenalty is §4.8
// scenario S2: a single crash must schedule its respawn after the base
// delay for run_count 1 (2s), never the rapid-flap-penalized ~22s a process
// that is actually flapping would get. This exercises the real
// ObserveExit → restarter → monitor path, not just restartDelay in
// isolation (backoff_test.go already covers that).
func TestSupervisorAutoRestartSingleCrashUsesBaseDelayNotFlapPenalty(t *testing.T) {
	sup := newTestSupervisor(t)
	require.NoError(t, sup.Add(ProcessDefinition{
		ID: "crasher", Command: "sh", Args: []string{"-c", "exit 1"}, AutoRestart: true,
	}, false))

	start := time.Now()
	deadline := start.Add(8 * time.Second)
	for time.Now().Before(deadline) {
		snap, ok := sup.reg.Snapshot("crasher")
		if ok && snap.RunCount >= 2 {
			assert.Less(t, time.Since(start), 10*time.Second,
				"a lone crash must use the 2s base delay, not the 20s rapid-flap penalty")
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("crasher never reached run_count 2 within the expected base-delay window")
}

func TestSupervisorManualStopSuppressesAutoRestart(t *testing.T) {
	sup := newTestSupervisor(t)
	require.NoError(t, sup.Add(ProcessDefinition{
		ID: "crasher", Command: "sh", Args: []string{"-c", "exit 1"}, AutoRestart: true,
	}, false))

	require.NoError(t, sup.Stop("crasher"))

	snap, _ := sup.reg.Snapshot("crasher")
	runCountAtStop := snap.RunCount

	time.Sleep(200 * time.Millisecond)

	snap, _ = sup.reg.Snapshot("crasher")
	assert.Equal(t, StatusManuallyStopped, snap.Status)
	assert.Equal(t, runCountAtStop, snap.RunCount)
}
