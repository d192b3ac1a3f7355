// Package tactile runs extraction tasks on the operator's machine. It is the
// RemoteExecutor used when the target host is reachable through a local
// shell (for example over an existing SSH ControlMaster or a mounted share).
package tactile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"sessionops/internal/extract"
	"sessionops/internal/logging"
)

// DefaultMaxOutputBytes caps each captured stream.
const DefaultMaxOutputBytes = 8 << 20

// ErrTimeout is returned when a task outlives its deadline.
var ErrTimeout = errors.New("task timed out")

// LocalExecutor implements extract.RemoteExecutor with os/exec.
type LocalExecutor struct {
	goos           string
	maxOutputBytes int64
	env            []string
}

// Option configures a LocalExecutor.
type Option func(*LocalExecutor)

// WithMaxOutputBytes overrides the per-stream capture limit.
func WithMaxOutputBytes(n int64) Option {
	return func(e *LocalExecutor) { e.maxOutputBytes = n }
}

// WithEnv appends KEY=VALUE pairs to the inherited environment.
func WithEnv(kv ...string) Option {
	return func(e *LocalExecutor) { e.env = append(e.env, kv...) }
}

// NewLocalExecutor returns an executor for the current platform.
func NewLocalExecutor(opts ...Option) *LocalExecutor {
	e := &LocalExecutor{goos: runtime.GOOS, maxOutputBytes: DefaultMaxOutputBytes}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var _ extract.RemoteExecutor = (*LocalExecutor)(nil)

// Execute runs the task's assembly as a binary, or its command through the
// platform shell. A non-zero exit is an error that still carries the output.
func (e *LocalExecutor) Execute(ctx context.Context, task extract.Task) (extract.Output, error) {
	timer := logging.StartTimer(logging.CategoryTactile, "LocalExecutor.Execute")
	defer timer.Stop()

	binary, args, err := e.argv(task)
	if err != nil {
		return extract.Output{}, err
	}

	execCtx := ctx
	if task.Timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, task.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(execCtx, binary, args...)
	cmd.Env = append(os.Environ(), e.env...)

	var stdoutBuf, stderrBuf bytes.Buffer
	stdout := &limitedWriter{w: &stdoutBuf, max: e.maxOutputBytes}
	stderr := &limitedWriter{w: &stderrBuf, max: e.maxOutputBytes}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	logging.Tactile("Executing on %s: %s %s", hostLabel(task.Host), binary, strings.Join(args, " "))
	started := time.Now()
	err = cmd.Run()
	out := extract.Output{Stdout: stdoutBuf.String(), Stderr: stderrBuf.String()}

	if stdout.truncated || stderr.truncated {
		logging.TactileWarn("Output truncated: %d bytes discarded", stdout.discarded+stderr.discarded)
	}

	if err != nil {
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			logging.TactileWarn("Task killed after %s: %s", task.Timeout, binary)
			return out, fmt.Errorf("%w after %s", ErrTimeout, task.Timeout)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			logging.TactileDebug("%s exited %d", binary, exitErr.ExitCode())
			return out, fmt.Errorf("exit status %d: %s", exitErr.ExitCode(), strings.TrimSpace(out.Stderr))
		}
		logging.TactileError("Task failed to start: %s - %v", binary, err)
		return out, err
	}

	logging.TactileDebug("Task finished in %s, stdout=%d bytes", time.Since(started), len(out.Stdout))
	return out, nil
}

func (e *LocalExecutor) argv(task extract.Task) (string, []string, error) {
	if task.Assembly != "" {
		return task.Assembly, strings.Fields(task.Args), nil
	}
	if strings.TrimSpace(task.Command) == "" {
		return "", nil, fmt.Errorf("task has neither command nor assembly")
	}
	if e.goos == "windows" {
		return "cmd", []string{"/c", task.Command}, nil
	}
	return "sh", []string{"-c", task.Command}, nil
}

func hostLabel(host string) string {
	if host == "" {
		return "localhost"
	}
	return host
}

// limitedWriter stops buffering after max bytes but reports full writes so
// the child never sees a short write.
type limitedWriter struct {
	w         io.Writer
	max       int64
	written   int64
	truncated bool
	discarded int64
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)

	if lw.written >= lw.max {
		lw.truncated = true
		lw.discarded += int64(n)
		return n, nil
	}

	remaining := lw.max - lw.written
	if int64(n) > remaining {
		lw.truncated = true
		lw.discarded += int64(n) - remaining
		written, err := lw.w.Write(p[:remaining])
		lw.written += int64(written)
		return n, err
	}

	written, err := lw.w.Write(p)
	lw.written += int64(written)
	return written, err
}
