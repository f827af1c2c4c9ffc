package supervisor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/philopaterwaheed/exeio/internal/logsink"
)

// restartRequest is one entry in the dispatcher's queue (§4.9).
type restartRequest struct {
	id     string
	delay  time.Duration
	reason string
}

// restarter is the single serializing queue through which every deferred
// respawn flows, preventing the monitor and the control-plane from racing
// to respawn the same id (§4.9, §9 design note). It is an unbounded FIFO
// guarded by a condition variable, the same shape as stdinQueue.
type restarter struct {
	log  *zap.Logger
	sink *logsink.Sink
	reg  *Registry

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []restartRequest
	closed bool
}

func newRestarter(log *zap.Logger, sink *logsink.Sink, reg *Registry) *restarter {
	d := &restarter{log: log, sink: sink, reg: reg}
	d.cond = sync.NewCond(&d.mu)
	return d
}

// Enqueue appends a restart request. Never blocks.
func (d *restarter) Enqueue(id string, delay time.Duration, reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.queue = append(d.queue, restartRequest{id: id, delay: delay, reason: reason})
	d.cond.Signal()
}

func (d *restarter) pop() (restartRequest, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for len(d.queue) == 0 && !d.closed {
		d.cond.Wait()
	}
	if len(d.queue) == 0 {
		return restartRequest{}, false
	}
	req := d.queue[0]
	d.queue = d.queue[1:]
	return req, true
}

// Close stops the dispatcher loop, waking it if blocked on an empty queue.
func (d *restarter) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.cond.Broadcast()
}

// run is the dispatcher's dedicated task loop (§4.9): for each request it
// sleeps delay, writes the reason as a SYSTEM log line, re-fetches the
// current definition (skipping the id if it was removed meanwhile), and
// invokes the spawn path.
func (d *restarter) run(ctx context.Context, spawn func(context.Context, ProcessDefinition)) {
	for {
		req, ok := d.pop()
		if !ok {
			return
		}

		select {
		case <-time.After(req.delay):
		case <-ctx.Done():
			return
		}

		def, present := d.reg.Definition(req.id)
		if !present {
			continue
		}

		if logPath := def.LogFile; logPath != "" {
			d.sink.System(logPath, req.reason)
		}
		spawn(ctx, def)
	}
}
