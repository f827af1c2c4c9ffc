// Package supervisor implements the supervision engine: the per-process
// lifecycle state machine, auto-restart backoff, periodic scheduling,
// stdio-to-log fan-out, and the registry invariants tying them together
// (spec §3–§5).
package supervisor

import (
	"fmt"
	"strings"
	"time"
)

// ProcessDefinition is the persistent, externally supplied description of a
// supervised program (§3).
type ProcessDefinition struct {
	ID            string   `json:"id"`
	Command       string   `json:"command"`
	Args          []string `json:"args"`
	WorkingDir    string   `json:"working_dir,omitempty"`
	AutoRestart   bool     `json:"auto_restart"`
	Periodic      bool     `json:"periodic"`
	PeriodSeconds int64    `json:"period_seconds,omitempty"`
	LogFile       string   `json:"log_file"`
}

// Validate enforces the invariants in §3 that are independent of the
// registry (non-blank id/command, periodic requires a positive period),
// trimming id and command in place so the stored definition always carries
// the trimmed form (§3: "non-empty, trimmed"). Uniqueness against the rest
// of the registry is checked by the registry itself, not here.
func (d *ProcessDefinition) Validate() error {
	d.ID = strings.TrimSpace(d.ID)
	d.Command = strings.TrimSpace(d.Command)

	if d.ID == "" {
		return fmt.Errorf("id must not be blank")
	}
	if d.Command == "" {
		return fmt.Errorf("command must not be blank")
	}
	if d.Periodic && d.PeriodSeconds <= 0 {
		return fmt.Errorf("periodic processes require period_seconds > 0")
	}
	return nil
}

// Status is the lifecycle state of a SupervisionRecord (§3).
type Status int

const (
	StatusStopped Status = iota
	StatusRunning
	StatusWaitingForPeriod
	StatusFailed
	StatusManuallyStopped
)

// String renders the status the way the HTTP facade's /list response does (§4.11).
func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusWaitingForPeriod:
		return "waiting"
	case StatusFailed:
		return "failed"
	case StatusManuallyStopped:
		return "manually_stopped"
	case StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable point-in-time view of a SupervisionRecord, safe
// to hand to callers outside the registry lock.
type Snapshot struct {
	Definition  ProcessDefinition
	Status      Status
	IsRunning   bool
	RunCount    int64
	LastRunAt   time.Time
	LastExitAt  time.Time
	HasStdin    bool
}
