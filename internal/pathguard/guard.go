// Package pathguard resolves exeio's on-disk layout and enforces that at
// most one supervisor runs per host user.
package pathguard

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/google/renameio/v2"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
)

// Paths holds the resolved, existing directories and files exeio persists to.
type Paths struct {
	ConfigDir  string
	ConfigFile string // <ConfigDir>/processes.json
	LogsDir    string
	LockFile   string // <LogsDir's sibling>/exeio.lock
	SelfLog    string // <LogsDir>/exeio.log; resolved only, nothing writes to it
}

// Resolve locates exeio's config/logs/lock directories beneath the caller's
// home directory, falling back to the process's working directory (and then
// os.TempDir) when no home can be determined. All directories are created if
// missing.
func Resolve() (Paths, error) {
	home, err := homedir.Dir()
	if err != nil || home == "" {
		if cwd, cerr := os.Getwd(); cerr == nil {
			home = cwd
		} else {
			home = os.TempDir()
		}
	}

	configDir := filepath.Join(home, ".config", "exeio")
	shareDir := filepath.Join(home, ".local", "share", "exeio")
	logsDir := filepath.Join(shareDir, "logs")

	for _, d := range []string{configDir, logsDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return Paths{}, fmt.Errorf("create directory %s: %w", d, err)
		}
	}

	return Paths{
		ConfigDir:  configDir,
		ConfigFile: filepath.Join(configDir, "processes.json"),
		LogsDir:    logsDir,
		LockFile:   filepath.Join(shareDir, "exeio.lock"),
		SelfLog:    filepath.Join(logsDir, "exeio.log"),
	}, nil
}

// LogFileForID returns the supervisor-assigned log path for a process id.
func LogFileForID(logsDir, id string) string {
	return filepath.Join(logsDir, id+".log")
}

// Guard owns the single-instance lock for the supervisor's lifetime.
type Guard struct {
	log      *zap.Logger
	path     string
	fileLock *flock.Flock
}

// ErrAlreadyRunning is returned by Acquire when another live supervisor
// already holds the lock.
type ErrAlreadyRunning struct{ PID int }

func (e *ErrAlreadyRunning) Error() string {
	return fmt.Sprintf("another exeio supervisor is already running (pid %d)", e.PID)
}

// Acquire takes the single-instance lock at path, writing the current PID
// into it atomically. If a stale lock (owned by a dead PID) is found, it is
// removed and acquisition is retried once. If the lock is held by a live
// process, Acquire fails with *ErrAlreadyRunning.
func Acquire(log *zap.Logger, path string) (*Guard, error) {
	log = log.Named("guard")

	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}

	if !locked {
		// Someone else holds the flock; inspect the stored PID to decide
		// whether it's stale or genuinely alive.
		pid, perr := readPID(path)
		if perr == nil && pid > 0 && isAlive(pid) {
			return nil, &ErrAlreadyRunning{PID: pid}
		}

		log.Warn("removing stale lock file", zap.String("path", path), zap.Int("stale_pid", pid))
		_ = os.Remove(path)

		locked, err = fl.TryLock()
		if err != nil {
			return nil, fmt.Errorf("lock %s after stale cleanup: %w", path, err)
		}
		if !locked {
			pid, _ = readPID(path)
			return nil, &ErrAlreadyRunning{PID: pid}
		}
	}

	if err := writePID(path, os.Getpid()); err != nil {
		_ = fl.Unlock()
		return nil, fmt.Errorf("write lock pid: %w", err)
	}

	log.Info("acquired single-instance lock", zap.String("path", path), zap.Int("pid", os.Getpid()))
	return &Guard{log: log, path: path, fileLock: fl}, nil
}

// Release deletes the lock file and releases the underlying flock. It is
// idempotent and safe to call from a signal handler or panic recovery.
func (g *Guard) Release() {
	if g == nil {
		return
	}
	_ = os.Remove(g.path)
	_ = g.fileLock.Unlock()
	g.log.Info("released single-instance lock", zap.String("path", g.path))
}

func readPID(path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	s := strings.TrimSpace(string(raw))
	if s == "" {
		return 0, fmt.Errorf("empty lock file")
	}
	pid, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("malformed lock file: %w", err)
	}
	return pid, nil
}

func writePID(path string, pid int) error {
	return renameio.WriteFile(path, []byte(strconv.Itoa(pid)), 0o644)
}

// isAlive reports whether pid refers to a live OS process. It uses gopsutil
// so the check works identically on POSIX hosts (kill -0 semantics) and on
// hosts where that syscall isn't available.
func isAlive(pid int) bool {
	alive, err := process.PidExists(int32(pid))
	if err != nil {
		return false
	}
	return alive
}
