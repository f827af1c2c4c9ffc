// Package logsink implements the append-only, per-path-serialized log
// writer every supervised process's output and SYSTEM lines are written
// through. Nothing writes the supervisor's own event log
// (pathguard.Paths.SelfLog) through it; that path is resolved but unused.
package logsink

import (
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sink maps an absolute log-file path to a dedicated mutex so concurrent
// writers for different processes never contend, while writers for the same
// path are strictly serialized.
type Sink struct {
	log       *zap.Logger
	systemTag string // "SYSTEM <host>:<port>", fixed for this supervisor's lifetime

	mu    sync.Mutex // guards locks map only
	locks map[string]*sync.Mutex
}

// New constructs an empty Sink. systemTag is the supervisor's own
// "SYSTEM <host>:<port>" tag, baked in once at startup per §6.
func New(log *zap.Logger, host string, port int) *Sink {
	return &Sink{
		log:       log.Named("logsink"),
		systemTag: fmt.Sprintf("%s %s:%d", TagSystem, host, port),
		locks:     make(map[string]*sync.Mutex),
	}
}

func (s *Sink) lockFor(path string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[path]
	if !ok {
		l = new(sync.Mutex)
		s.locks[path] = l
	}
	return l
}

// Append writes a single pre-formatted line (without trailing newline) to
// path, creating the file if it doesn't exist. Failures are logged and
// swallowed — a broken log file must never take down the supervisor.
func (s *Sink) Append(path, line string) {
	l := s.lockFor(path)
	l.Lock()
	defer l.Unlock()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		s.log.Error("open log file for append", zap.String("path", path), zap.Error(err))
		return
	}
	defer f.Close()

	if _, err := f.WriteString(line + "\n"); err != nil {
		s.log.Error("write log line", zap.String("path", path), zap.Error(err))
		return
	}
	if err := f.Sync(); err != nil {
		s.log.Warn("flush log file", zap.String("path", path), zap.Error(err))
	}
}

// Clear truncates path to empty under the same per-path mutex used by
// Append, so a clear can never interleave with an in-flight append.
func (s *Sink) Clear(path string) error {
	l := s.lockFor(path)
	l.Lock()
	defer l.Unlock()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		s.log.Error("truncate log file", zap.String("path", path), zap.Error(err))
		return err
	}
	return f.Close()
}

// Tag identifiers used in the line format below.
const (
	TagStdout = "STDOUT"
	TagStderr = "STDERR"
	TagSystem = "SYSTEM"
)

// line formats a log line per §6: "[YYYY-MM-DD HH:MM:SS] <TAG>: <payload>".
func line(tag, payload string) string {
	return fmt.Sprintf("[%s] %s: %s", time.Now().UTC().Format("2006-01-02 15:04:05"), tag, payload)
}

// Stdout appends a tagged stdout line.
func (s *Sink) Stdout(path, payload string) { s.Append(path, line(TagStdout, payload)) }

// Stderr appends a tagged stderr line.
func (s *Sink) Stderr(path, payload string) { s.Append(path, line(TagStderr, payload)) }

// System appends a line tagged with this supervisor's "SYSTEM <host>:<port>" tag.
func (s *Sink) System(path, payload string) { s.Append(path, line(s.systemTag, payload)) }

// RunStdout appends a periodic run's stdout line, tagged "RUN#<n> STDOUT".
func (s *Sink) RunStdout(path string, run int64, payload string) {
	s.Append(path, line(fmt.Sprintf("RUN#%d %s", run, TagStdout), payload))
}

// RunStderr appends a periodic run's stderr line, tagged "RUN#<n> STDERR".
func (s *Sink) RunStderr(path string, run int64, payload string) {
	s.Append(path, line(fmt.Sprintf("RUN#%d %s", run, TagStderr), payload))
}
