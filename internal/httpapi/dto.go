package httpapi

import "github.com/philopaterwaheed/exeio/internal/supervisor"

// addRequest is the body for POST /add (§4.11).
type addRequest struct {
	ID             string   `json:"id" validate:"required"`
	Command        string   `json:"command" validate:"required"`
	Args           []string `json:"args"`
	WorkingDir     string   `json:"working_dir"`
	AutoRestart    bool     `json:"auto_restart"`
	Periodic       bool     `json:"periodic"`
	PeriodSeconds  int64    `json:"period_seconds"`
	SaveForNextRun bool     `json:"save_for_next_run"`
}

func (r addRequest) toDefinition() supervisor.ProcessDefinition {
	return supervisor.ProcessDefinition{
		ID:            r.ID,
		Command:       r.Command,
		Args:          r.Args,
		WorkingDir:    r.WorkingDir,
		AutoRestart:   r.AutoRestart,
		Periodic:      r.Periodic,
		PeriodSeconds: r.PeriodSeconds,
	}
}

// inputRequest is the body for POST /input/:id.
type inputRequest struct {
	Input string `json:"input" validate:"required"`
}

// processView is one entry of the GET /list response (§4.11).
type processView struct {
	ID            string   `json:"id"`
	Command       string   `json:"command"`
	Args          []string `json:"args"`
	Status        string   `json:"status"`
	IsRunning     bool     `json:"is_running"`
	LogFile       string   `json:"log_file"`
	AutoRestart   bool     `json:"auto_restart"`
	Periodic      bool     `json:"periodic"`
	PeriodSeconds int64    `json:"period_seconds,omitempty"`
	RunCount      int64    `json:"run_count"`
	LastRun       int64    `json:"last_run,omitempty"` // unix millis; omitted if never run
}

func newProcessView(s supervisor.Snapshot) processView {
	var lastRun int64
	if !s.LastRunAt.IsZero() {
		lastRun = s.LastRunAt.UnixMilli()
	}
	return processView{
		ID:            s.Definition.ID,
		Command:       s.Definition.Command,
		Args:          s.Definition.Args,
		Status:        s.Status.String(),
		IsRunning:     s.IsRunning,
		LogFile:       s.Definition.LogFile,
		AutoRestart:   s.Definition.AutoRestart,
		Periodic:      s.Definition.Periodic,
		PeriodSeconds: s.Definition.PeriodSeconds,
		RunCount:      s.RunCount,
		LastRun:       lastRun,
	}
}

// logsResponse is the body for GET /logs/:id.
type logsResponse struct {
	Lines      []string `json:"lines"`
	TotalLines int      `json:"total_lines"`
	Page       int      `json:"page"`
	PageSize   int      `json:"page_size"`
}

// infoResponse is the body for GET /info (§4.11, public).
type infoResponse struct {
	Name      string   `json:"name"`
	Version   string   `json:"version"`
	BindURL   string   `json:"bind_url"`
	Endpoints []string `json:"endpoints"`
}
