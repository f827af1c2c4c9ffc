package supervisor

import (
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned when an operation targets an unknown id.
var ErrNotFound = errors.New("process id not found")

// ErrDuplicateID is returned by Create when id already exists (§7).
var ErrDuplicateID = errors.New("process id already exists")

// Registry is the in-memory id → SupervisionRecord map behind a single
// coarse mutex (§4.4). Every method here does pointer-level work only —
// never blocking I/O or child waits — and returns plain data the caller
// can safely use after the lock is released.
type Registry struct {
	mu      sync.Mutex
	records map[string]*supervisionRecord
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{records: make(map[string]*supervisionRecord)}
}

// Create inserts a new, not-yet-running record for def. Fails with
// ErrDuplicateID if id is already present (invariant 1, §3).
func (reg *Registry) Create(def ProcessDefinition) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, exists := reg.records[def.ID]; exists {
		return ErrDuplicateID
	}
	reg.records[def.ID] = &supervisionRecord{
		definition: def,
		status:     StatusStopped,
	}
	return nil
}

// Has reports whether id currently has a record.
func (reg *Registry) Has(id string) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	_, ok := reg.records[id]
	return ok
}

// Snapshot returns a point-in-time copy of id's record.
func (reg *Registry) Snapshot(id string) (Snapshot, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.records[id]
	if !ok {
		return Snapshot{}, false
	}
	return r.snapshot(), true
}

// List returns a snapshot of every record, for the /list operation (§4.11).
func (reg *Registry) List() []Snapshot {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	out := make([]Snapshot, 0, len(reg.records))
	for _, r := range reg.records {
		out = append(out, r.snapshot())
	}
	return out
}

// BeginSpawn increments run_count and stamps last_run_at for the upcoming
// spawn attempt, returning the definition to spawn and the new run count.
// Called by the spawn path before doing any blocking work (§4.6, §9 open
// question: run_count increments on every spawn attempt).
func (reg *Registry) BeginSpawn(id string) (def ProcessDefinition, runCount int64, ok bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, exists := reg.records[id]
	if !exists {
		return ProcessDefinition{}, 0, false
	}
	r.runCount++
	r.lastRunAt = time.Now()
	return r.definition, r.runCount, true
}

// CompleteSpawnRunning installs ch/queue onto id's record after a successful
// regular spawn, marks it Running, and stores the monitor's cancel func (nil
// if the definition has no auto_restart). Returns false if the record was
// removed out from under the spawn (e.g. concurrent /remove).
func (reg *Registry) CompleteSpawnRunning(id string, ch *child, queue *stdinQueue, monitorCancel func()) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.records[id]
	if !ok {
		return false
	}
	r.child = ch
	r.stdin = queue
	r.status = StatusRunning
	if monitorCancel != nil {
		r.monitorCancel = monitorCancel
	}
	return true
}

// CompleteSpawnFailed marks id Failed after a spawn attempt that couldn't
// even launch the OS process (§4.6, §7).
func (reg *Registry) CompleteSpawnFailed(id string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.records[id]
	if !ok {
		return
	}
	r.child = nil
	r.stdin = nil
	r.status = StatusFailed
}

// ExitOutcome classifies how a regular child ended, for the auto-restart
// monitor (§4.7).
type ExitOutcome int

const (
	ExitManuallyStopped ExitOutcome = iota
	ExitRestart
	ExitStopped
)

// ObserveExit is invoked by the auto-restart monitor once its child has
// exited. It applies §4.7's three-way branch under the registry lock and
// returns enough information for the monitor to act outside the lock:
// whether a restart should be enqueued, the current (already-incremented)
// run count to feed the backoff formula, and the *prior* last_exit_at
// timestamp for rapid-flap detection (§4.8: the penalty fires when this
// exit follows the previous one within rapidFlapWindow, so the value handed
// to restartDelay must predate this exit, not equal it).
func (reg *Registry) ObserveExit(id string) (outcome ExitOutcome, runCount int64, lastExitAt time.Time, def ProcessDefinition, ok bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, exists := reg.records[id]
	if !exists {
		return 0, 0, time.Time{}, ProcessDefinition{}, false
	}

	prevExitAt := r.lastExitAt
	r.lastExitAt = time.Now()
	r.child = nil
	if r.stdin != nil {
		r.stdin.Close()
		r.stdin = nil
	}
	r.monitorCancel = nil

	switch {
	case r.status == StatusManuallyStopped:
		return ExitManuallyStopped, r.runCount, prevExitAt, r.definition, true
	case r.definition.AutoRestart:
		r.status = StatusFailed
		return ExitRestart, r.runCount, prevExitAt, r.definition, true
	default:
		r.status = StatusStopped
		return ExitStopped, r.runCount, prevExitAt, r.definition, true
	}
}

// InstallPeriodic records the periodic task's cancel func and marks the
// record WaitingForPeriod-in-progress (the loop itself flips Running/Waiting
// per iteration via BeginPeriodicRun/EndPeriodicRun).
func (reg *Registry) InstallPeriodic(id string, cancel func()) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.records[id]
	if !ok {
		return false
	}
	r.periodicCancel = cancel
	r.status = StatusWaitingForPeriod
	return true
}

// BeginPeriodicRun increments run_count, sets status Running, and stamps
// last_run_at at the start of one periodic iteration (§4.10 step 1).
func (reg *Registry) BeginPeriodicRun(id string) (runCount int64, ok bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, exists := reg.records[id]
	if !exists {
		return 0, false
	}
	r.runCount++
	r.lastRunAt = time.Now()
	r.status = StatusRunning
	return r.runCount, true
}

// EndPeriodicRun sets status WaitingForPeriod and records last_exit_at at
// the end of one periodic iteration (§4.10 step 3-4).
func (reg *Registry) EndPeriodicRun(id string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.records[id]
	if !ok {
		return
	}
	r.lastExitAt = time.Now()
	r.status = StatusWaitingForPeriod
}

// actionResult is what PrepareStop/PrepareRestart/PrepareShutdown/Remove
// hand back to the caller so
// the blocking kill-and-wait can happen outside the registry lock.
type actionResult struct {
	definition ProcessDefinition
	child      *child
	periodic   bool
}

// PrepareStop cancels id's monitor/periodic tasks and detaches its child
// under the lock, marking status ManuallyStopped, then hands the detached
// child back for the caller to kill+wait outside the lock (§4.11 stop/:id).
func (reg *Registry) PrepareStop(id string) (actionResult, bool) {
	return reg.prepareAction(id, StatusManuallyStopped)
}

// PrepareRestart is PrepareStop's counterpart for restart/:id: same
// detachment, but leaves status Stopped so the immediately-following spawn
// path observes a clean slate (§4.11 restart/:id).
func (reg *Registry) PrepareRestart(id string) (actionResult, bool) {
	return reg.prepareAction(id, StatusStopped)
}

// PrepareShutdown detaches id's child/tasks and marks it Stopped, without
// deleting the record, for the shutdown operation (§4.11 shutdown: "mark
// all Stopped", distinct from remove/:id which deletes the record outright).
func (reg *Registry) PrepareShutdown(id string) (actionResult, bool) {
	return reg.prepareAction(id, StatusStopped)
}

func (reg *Registry) prepareAction(id string, nextStatus Status) (actionResult, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.records[id]
	if !ok {
		return actionResult{}, false
	}

	wasPeriodic := r.periodicCancel != nil
	r.cancelTasks()

	ch := r.child
	r.child = nil
	if r.stdin != nil {
		r.stdin.Close()
		r.stdin = nil
	}
	r.status = nextStatus

	return actionResult{definition: r.definition, child: ch, periodic: wasPeriodic}, true
}

// Remove detaches and deletes id's record entirely, returning the same
// action result PrepareStop would, for /remove (§4.11).
func (reg *Registry) Remove(id string) (actionResult, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.records[id]
	if !ok {
		return actionResult{}, false
	}

	wasPeriodic := r.periodicCancel != nil
	r.cancelTasks()

	ch := r.child
	if r.stdin != nil {
		r.stdin.Close()
	}
	delete(reg.records, id)

	return actionResult{definition: r.definition, child: ch, periodic: wasPeriodic}, true
}

// IDs returns a snapshot of every currently registered id, for bulk
// operations (restart-all/stop-all/shutdown).
func (reg *Registry) IDs() []string {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	out := make([]string, 0, len(reg.records))
	for id := range reg.records {
		out = append(out, id)
	}
	return out
}

// InputQueue returns id's stdin queue, if one currently exists (§4.11 input/:id).
func (reg *Registry) InputQueue(id string) (*stdinQueue, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.records[id]
	if !ok || r.stdin == nil {
		return nil, false
	}
	return r.stdin, true
}

// Definition returns the current definition for id, for consumers (the
// restart dispatcher) that must re-fetch it after a delay.
func (reg *Registry) Definition(id string) (ProcessDefinition, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.records[id]
	if !ok {
		return ProcessDefinition{}, false
	}
	return r.definition, true
}
