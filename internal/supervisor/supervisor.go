package supervisor

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/philopaterwaheed/exeio/internal/logsink"
)

// ConfigStore is the persistence seam the facade depends on; satisfied by
// *config.Store without an import cycle (config imports this package for
// ProcessDefinition).
type ConfigStore interface {
	Load() []ProcessDefinition
	Upsert(ProcessDefinition) error
	Delete(id string) error
}

// Supervisor is the top-level facade backing every HTTP operation in §4.11:
// it owns the registry, the spawn/monitor/periodic machinery, the restart
// dispatcher, and (optionally) the config store used for save_for_next_run.
type Supervisor struct {
	log     *zap.Logger
	sink    *logsink.Sink
	reg     *Registry
	sp      *spawner
	rst     *restarter
	store   ConfigStore
	logsDir string

	ctx    context.Context
	cancel context.CancelFunc
}

// New constructs a Supervisor and starts its restart dispatcher. logsDir is
// used to assign each new definition's log_file per its id.
func New(log *zap.Logger, sink *logsink.Sink, store ConfigStore, logsDir string) *Supervisor {
	ctx, cancel := context.WithCancel(context.Background())

	reg := NewRegistry()
	rst := newRestarter(log, sink, reg)
	sp := newSpawner(log, sink, reg, rst)

	s := &Supervisor{
		log:     log.Named("supervisor"),
		sink:    sink,
		reg:     reg,
		sp:      sp,
		rst:     rst,
		store:   store,
		logsDir: logsDir,
		ctx:     ctx,
		cancel:  cancel,
	}

	go rst.run(ctx, sp.spawn)
	return s
}

// LoadPersisted restores every definition the config store has on disk,
// assigning each its log file and launching it (regular or periodic), on
// startup.
func (s *Supervisor) LoadPersisted() {
	var g errgroup.Group
	for _, def := range s.store.Load() {
		def.LogFile = filepath.Join(s.logsDir, def.ID+".log")
		if err := s.reg.Create(def); err != nil {
			s.log.Warn("skip duplicate persisted definition", zap.String("id", def.ID), zap.Error(err))
			continue
		}
		def := def
		g.Go(func() error { s.launch(def); return nil })
	}
	_ = g.Wait()
}

// Add implements the add operation (§4.11): validates, assigns log_file,
// optionally persists, and launches.
func (s *Supervisor) Add(def ProcessDefinition, saveForNextRun bool) error {
	if err := def.Validate(); err != nil {
		return err
	}
	def.LogFile = filepath.Join(s.logsDir, def.ID+".log")

	if err := s.reg.Create(def); err != nil {
		return err
	}

	if saveForNextRun {
		if err := s.store.Upsert(def); err != nil {
			s.log.Warn("persist new definition", zap.String("id", def.ID), zap.Error(err))
		}
	}

	s.launch(def)
	return nil
}

func (s *Supervisor) launch(def ProcessDefinition) {
	if def.Periodic {
		s.sp.startPeriodic(s.ctx, def)
		return
	}
	s.sp.spawn(s.ctx, def)
}

// Restart implements restart/:id: detach and kill the current child/tasks,
// then re-invoke the spawn path (§4.11).
func (s *Supervisor) Restart(id string) error {
	res, ok := s.reg.PrepareRestart(id)
	if !ok {
		return ErrNotFound
	}
	killAndWait(res.child)
	s.launch(res.definition)
	return nil
}

// Stop implements stop/:id: detach and kill, mark ManuallyStopped, log (§4.11).
func (s *Supervisor) Stop(id string) error {
	res, ok := s.reg.PrepareStop(id)
	if !ok {
		return ErrNotFound
	}
	killAndWait(res.child)
	if res.definition.LogFile != "" {
		s.sink.System(res.definition.LogFile, fmt.Sprintf("Process '%s' manually stopped", id))
	}
	return nil
}

// Remove implements remove/:id: like Stop, then deletes the record and its
// persisted entry (§4.11).
func (s *Supervisor) Remove(id string) error {
	res, ok := s.reg.Remove(id)
	if !ok {
		return ErrNotFound
	}
	killAndWait(res.child)
	if err := s.store.Delete(id); err != nil {
		s.log.Warn("delete persisted definition", zap.String("id", id), zap.Error(err))
	}
	if res.definition.LogFile != "" {
		s.sink.System(res.definition.LogFile, fmt.Sprintf("Process '%s' removed", id))
	}
	return nil
}

// RestartAll applies Restart to every currently registered id (§4.11). Each
// id's kill-and-respawn is independent, so they run concurrently through an
// errgroup rather than one at a time.
func (s *Supervisor) RestartAll() {
	var g errgroup.Group
	for _, id := range s.reg.IDs() {
		id := id
		g.Go(func() error { return s.Restart(id) })
	}
	_ = g.Wait()
}

// StopAll applies Stop to every currently registered id (§4.11), concurrently.
func (s *Supervisor) StopAll() {
	var g errgroup.Group
	for _, id := range s.reg.IDs() {
		id := id
		g.Go(func() error { return s.Stop(id) })
	}
	_ = g.Wait()
}

// Input implements input/:id: enqueues onto the record's stdin queue,
// failing if it has none (periodic or not currently running) (§4.11).
func (s *Supervisor) Input(id, text string) error {
	q, ok := s.reg.InputQueue(id)
	if !ok {
		return fmt.Errorf("process '%s' has no active stdin", id)
	}
	q.Push(text)
	return nil
}

// ClearLog implements clear-log/:id (§4.11).
func (s *Supervisor) ClearLog(id string) error {
	snap, ok := s.reg.Snapshot(id)
	if !ok {
		return ErrNotFound
	}
	return s.sink.Clear(snap.Definition.LogFile)
}

// List implements the list operation (§4.11).
func (s *Supervisor) List() []Snapshot {
	return s.reg.List()
}

// Logs implements logs/:id?page&page_size (§4.11), returning non-blank
// lines newest-first plus the total line count.
func (s *Supervisor) Logs(id string, page, pageSize int) (lines []string, total int, err error) {
	snap, ok := s.reg.Snapshot(id)
	if !ok {
		return nil, 0, ErrNotFound
	}
	return logsink.ReadPage(snap.Definition.LogFile, page, pageSize)
}

// Shutdown implements the shutdown operation's supervisor-side half:
// cancel every monitor/periodic task, kill every child, wait, and mark
// every record Stopped (§4.11) — it does not delete records, unlike
// Remove, since the process exits right after. The caller (the teardown
// closures in cmd/exeio) deletes the lock file and exits after this returns.
func (s *Supervisor) Shutdown() {
	s.rst.Close()
	s.cancel()

	var g errgroup.Group
	for _, id := range s.reg.IDs() {
		id := id
		g.Go(func() error {
			res, ok := s.reg.PrepareShutdown(id)
			if !ok {
				return nil
			}
			killAndWait(res.child)
			return nil
		})
	}
	_ = g.Wait()
}

// killAndWait is best-effort: a nil child means there was nothing to kill
// (periodic task or already-stopped record). close() already escalates to
// SIGKILL after a grace period, so wait() always returns promptly after it.
func killAndWait(ch *child) {
	if ch == nil {
		return
	}
	// Reap in the background so close() sees Done() as soon as the child
	// exits on SIGTERM, instead of always waiting out the grace period.
	go func() { _ = ch.wait() }()
	ch.close(childGraceShutdown)
	_ = ch.wait()
}
