package supervisor

import (
	"context"
	"fmt"
	"time"
)

// monitor is the auto-restart monitor task (§4.7): one per running
// non-periodic child with auto_restart. It blocks on the child's exit (the
// wait itself runs on a dedicated OS thread inside child.wait, per the §9
// design note), then classifies the exit under the registry lock and either
// leaves the record alone (manual stop), enqueues a restart (auto_restart),
// or marks it Stopped.
//
// Cancellation: if ctx is cancelled before the child exits (e.g. a manual
// stop is already tearing the child down), the monitor simply waits for the
// in-flight close/kill to finish reaping the child and then returns without
// enqueuing anything — PrepareStop/PrepareRestart/Remove already cancelled
// this monitor's context, which is how callers signal "don't act on this
// exit".
func (sp *spawner) monitor(ctx context.Context, id string, ch *child) {
	exitErr := ch.wait()

	select {
	case <-ctx.Done():
		return
	default:
	}

	outcome, runCount, lastExitAt, def, ok := sp.reg.ObserveExit(id)
	if !ok {
		return
	}

	switch outcome {
	case ExitManuallyStopped:
		return
	case ExitStopped:
		return
	case ExitRestart:
		delay := restartDelay(runCount, lastExitAt, time.Now())
		sp.restarter.Enqueue(id, delay, exitReason(id, exitErr))
	}
}

// exitReason renders the human-readable reason distinguishing a clean
// exit, a kill signal, and any other non-zero exit (§4.7 step 4).
func exitReason(id string, exitErr error) string {
	code, signaled := exitCode(exitErr)
	switch {
	case exitErr == nil:
		return fmt.Sprintf("Process '%s' exited normally (code 0), restarting", id)
	case signaled:
		return fmt.Sprintf("Process '%s' was killed (signal, code %d), restarting", id, code)
	default:
		return fmt.Sprintf("Process '%s' exited with code %d, restarting", id, code)
	}
}
