package supervisor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/philopaterwaheed/exeio/internal/logsink"
)

// fixedSpawnFailureDelay is the flat retry delay after a failed-to-launch
// spawn attempt (§4.6).
const fixedSpawnFailureDelay = 5 * time.Second

// childGraceShutdown is how long close() waits after SIGTERM before
// escalating to SIGKILL.
const childGraceShutdown = 5 * time.Second

// spawner holds everything the spawn path (§4.6) and the monitor it launches
// (§4.7) need, bundled so both the HTTP facade and the restart dispatcher
// can invoke the exact same entrypoint.
type spawner struct {
	log       *zap.Logger
	sink      *logsink.Sink
	reg       *Registry
	restarter *restarter
}

func newSpawner(log *zap.Logger, sink *logsink.Sink, reg *Registry, r *restarter) *spawner {
	return &spawner{log: log.Named("spawn"), sink: sink, reg: reg, restarter: r}
}

// spawn implements §4.6 for a non-periodic definition already present in
// the registry: it increments run_count, launches the OS process and its
// three pumps, and on success installs the record as Running and (if
// auto_restart) starts the monitor task. On failure to even start the OS
// process it marks the record Failed and, if auto_restart, enqueues a
// fixed 5s restart per §4.6.
func (sp *spawner) spawn(ctx context.Context, def ProcessDefinition) {
	_, runCount, ok := sp.reg.BeginSpawn(def.ID)
	if !ok {
		return
	}

	argv := append([]string{def.Command}, def.Args...)
	ch, err := startChild(argv, def.WorkingDir)
	if err != nil {
		sp.log.Warn("spawn failed", zap.String("id", def.ID), zap.Error(err))
		sp.reg.CompleteSpawnFailed(def.ID)
		if def.LogFile != "" {
			sp.sink.System(def.LogFile, fmt.Sprintf("Failed to start process '%s': %v", def.ID, err))
		}
		if def.AutoRestart {
			sp.restarter.Enqueue(def.ID, fixedSpawnFailureDelay, fmt.Sprintf("Retrying '%s' after failed spawn", def.ID))
		}
		return
	}

	go pumpStdout(sp.log, sp.sink, def.LogFile, def.ID, ch.stdout)
	go pumpStderr(sp.log, sp.sink, def.LogFile, def.ID, ch.stderr)

	queue := newStdinQueue()
	go pumpStdin(sp.log, def.ID, queue, ch.stdin)

	var monitorCancel context.CancelFunc
	if def.AutoRestart {
		var monitorCtx context.Context
		monitorCtx, monitorCancel = context.WithCancel(ctx)
		go sp.monitor(monitorCtx, def.ID, ch)
	}

	if !sp.reg.CompleteSpawnRunning(def.ID, ch, queue, contextCancelOrNil(monitorCancel)) {
		// Record vanished (concurrent /remove) between BeginSpawn and here;
		// tear the freshly started child back down.
		if monitorCancel != nil {
			monitorCancel()
		}
		ch.close(childGraceShutdown)
		return
	}

	if def.LogFile != "" {
		sp.sink.System(def.LogFile, fmt.Sprintf("Starting process '%s' (Run #%d)", def.ID, runCount))
	}
}

// contextCancelOrNil adapts a possibly-nil context.CancelFunc to the
// plain func() the registry stores, without importing context there.
func contextCancelOrNil(cancel context.CancelFunc) func() {
	if cancel == nil {
		return nil
	}
	return func() { cancel() }
}
