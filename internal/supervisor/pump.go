package supervisor

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/philopaterwaheed/exeio/internal/logsink"
)

const (
	pumpScannerInitial = 64 * 1024
	pumpScannerMax      = 1024 * 1024
)

// pumpStdout reads lines from r until EOF, writing each to the sink tagged
// STDOUT and echoing it to the supervisor's own stdout tagged with the
// process id, per §4.5. It never blocks the registry lock.
func pumpStdout(log *zap.Logger, sink *logsink.Sink, logPath, id string, r io.ReadCloser) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, pumpScannerInitial), pumpScannerMax)

	for sc.Scan() {
		line := sc.Text()
		sink.Stdout(logPath, line)
		fmt.Fprintf(os.Stdout, "[%s] %s\n", id, line)
	}
	if err := sc.Err(); err != nil {
		log.Warn("stdout pump scanner failure", zap.String("id", id), zap.Error(err))
	}
}

// pumpStderr is pumpStdout's symmetric counterpart for stderr, tagged
// STDERR and echoed to the supervisor's own stderr.
func pumpStderr(log *zap.Logger, sink *logsink.Sink, logPath, id string, r io.ReadCloser) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, pumpScannerInitial), pumpScannerMax)

	for sc.Scan() {
		line := sc.Text()
		sink.Stderr(logPath, line)
		fmt.Fprintf(os.Stderr, "[%s] %s\n", id, line)
	}
	if err := sc.Err(); err != nil {
		log.Warn("stderr pump scanner failure", zap.String("id", id), zap.Error(err))
	}
}

// pumpStdin drains queue into w, one newline-terminated write per dequeued
// string, until the queue is closed or the write fails (child exited).
// A momentarily empty queue never ends the pump — only Close does.
func pumpStdin(log *zap.Logger, id string, queue *stdinQueue, w io.WriteCloser) {
	defer w.Close()

	for {
		input, ok := queue.Pop()
		if !ok {
			return
		}
		if _, err := io.WriteString(w, input+"\n"); err != nil {
			log.Warn("stdin pump write failed, child likely exited", zap.String("id", id), zap.Error(err))
			return
		}
	}
}

// pumpRunStdout is the periodic-scheduler variant of pumpStdout: lines are
// tagged "RUN#<n> STDOUT" instead of plain STDOUT (§4.10).
func pumpRunStdout(log *zap.Logger, sink *logsink.Sink, logPath, id string, run int64, r io.ReadCloser) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, pumpScannerInitial), pumpScannerMax)

	for sc.Scan() {
		line := sc.Text()
		sink.RunStdout(logPath, run, line)
		fmt.Fprintf(os.Stdout, "[%s] Run#%d: %s\n", id, run, line)
	}
	if err := sc.Err(); err != nil {
		log.Warn("periodic stdout pump scanner failure", zap.String("id", id), zap.Error(err))
	}
}

// pumpRunStderr is pumpRunStdout's stderr counterpart.
func pumpRunStderr(log *zap.Logger, sink *logsink.Sink, logPath, id string, run int64, r io.ReadCloser) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, pumpScannerInitial), pumpScannerMax)

	for sc.Scan() {
		line := sc.Text()
		sink.RunStderr(logPath, run, line)
		fmt.Fprintf(os.Stderr, "[%s] Run#%d ERROR: %s\n", id, run, line)
	}
	if err := sc.Err(); err != nil {
		log.Warn("periodic stderr pump scanner failure", zap.String("id", id), zap.Error(err))
	}
}
