package supervisor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// runPeriodic is the periodic scheduler's loop for one definition (§4.10).
// It repeats: bump run_count and status, spawn the command with no stdin,
// attach RUN#n-tagged pumps, wait, record the outcome, wait out the period,
// repeat. Cancelling ctx interrupts either the in-flight wait or the sleep.
func (sp *spawner) runPeriodic(ctx context.Context, def ProcessDefinition) {
	period := time.Duration(def.PeriodSeconds) * time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		runCount, ok := sp.reg.BeginPeriodicRun(def.ID)
		if !ok {
			return
		}

		if def.LogFile != "" {
			sp.sink.System(def.LogFile, fmt.Sprintf("Starting periodic run #%d (every %ds)", runCount, def.PeriodSeconds))
		}

		sp.runPeriodicIteration(ctx, def, runCount)

		sp.reg.EndPeriodicRun(def.ID)

		select {
		case <-ctx.Done():
			return
		case <-time.After(period):
		}
	}
}

// runPeriodicIteration spawns and waits for exactly one periodic run,
// logging the completion line per §4.10 step 3.
func (sp *spawner) runPeriodicIteration(ctx context.Context, def ProcessDefinition, runCount int64) {
	argv := append([]string{def.Command}, def.Args...)
	ch, err := startChild(argv, def.WorkingDir)
	if err != nil {
		sp.log.Warn("periodic spawn failed", zap.String("id", def.ID), zap.Error(err))
		if def.LogFile != "" {
			sp.sink.System(def.LogFile, fmt.Sprintf("Run #%d failed to start: %v", runCount, err))
		}
		return
	}
	_ = ch.stdin.Close() // periodic runs have no stdin (§4.10 step 2)

	go pumpRunStdout(sp.log, sp.sink, def.LogFile, def.ID, runCount, ch.stdout)
	go pumpRunStderr(sp.log, sp.sink, def.LogFile, def.ID, runCount, ch.stderr)

	waitDone := make(chan error, 1)
	go func() { waitDone <- ch.wait() }()

	var exitErr error
	select {
	case exitErr = <-waitDone:
	case <-ctx.Done():
		ch.close(childGraceShutdown)
		exitErr = <-waitDone
	}

	if def.LogFile == "" {
		return
	}
	if exitErr == nil {
		sp.sink.System(def.LogFile, fmt.Sprintf("Run #%d completed with status: 0", runCount))
		return
	}
	code, _ := exitCode(exitErr)
	sp.sink.System(def.LogFile, fmt.Sprintf("Run #%d failed with status: %d", runCount, code))
}

// startPeriodic installs and launches the periodic task for def, the
// periodic-definition counterpart to spawn() for regular definitions.
func (sp *spawner) startPeriodic(ctx context.Context, def ProcessDefinition) {
	taskCtx, cancel := context.WithCancel(ctx)
	if !sp.reg.InstallPeriodic(def.ID, cancel) {
		cancel()
		return
	}
	go sp.runPeriodic(taskCtx, def)
}
