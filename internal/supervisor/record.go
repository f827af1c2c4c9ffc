package supervisor

import (
	"context"
	"time"
)

// supervisionRecord is the in-memory bundle for one live id (§3). All
// mutation happens under the Registry's single coarse mutex.
type supervisionRecord struct {
	definition ProcessDefinition

	child *child      // present only while a regular process is running
	stdin *stdinQueue // present only while child is running

	runCount   int64
	lastRunAt  time.Time
	lastExitAt time.Time
	status     Status

	periodicCancel context.CancelFunc // present only while periodic_task is live
	monitorCancel  context.CancelFunc // present only while monitor_task is live
}

func (r *supervisionRecord) snapshot() Snapshot {
	return Snapshot{
		Definition: r.definition,
		Status:     r.status,
		IsRunning:  r.child != nil || r.periodicCancel != nil,
		RunCount:   r.runCount,
		LastRunAt:  r.lastRunAt,
		LastExitAt: r.lastExitAt,
		HasStdin:   r.stdin != nil,
	}
}

// cancelTasks invokes whichever of periodicCancel/monitorCancel are set and
// clears them. It never blocks — cancellation is cooperative (§5).
func (r *supervisionRecord) cancelTasks() {
	if r.monitorCancel != nil {
		r.monitorCancel()
		r.monitorCancel = nil
	}
	if r.periodicCancel != nil {
		r.periodicCancel()
		r.periodicCancel = nil
	}
}
