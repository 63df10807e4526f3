package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/meshkit/gltf-mcp/internal/log"
)

// ErrFatalStderr indicates a zero-exit run whose stderr matched the
// fatal keyword heuristic.
var ErrFatalStderr = errors.New("engine reported errors on stderr")

// fatalKeywords trip failure classification even on a zero exit code.
// The wrapped engines report some errors only as stderr text.
var fatalKeywords = []string{"error", "failed", "exception"}

// ExecError carries the failed command and its captured stderr.
type ExecError struct {
	Command string
	Stderr  string
	Err     error
}

func (e *ExecError) Error() string {
	msg := e.Err.Error()
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

func (e *ExecError) Unwrap() error { return e.Err }

// FatalStderr classifies stderr text. A case-insensitive keyword match on
// any line is fatal; lines containing an allowlisted marker are skipped,
// so engines that narrate success on stderr do not trip the check.
func FatalStderr(stderr string, allow []string) bool {
	if strings.TrimSpace(stderr) == "" {
		return false
	}
line:
	for _, line := range strings.Split(stderr, "\n") {
		for _, marker := range allow {
			if strings.Contains(line, marker) {
				continue line
			}
		}
		lower := strings.ToLower(line)
		for _, kw := range fatalKeywords {
			if strings.Contains(lower, kw) {
				return true
			}
		}
	}
	return false
}

// Runner abstracts child-process invocation so tests can substitute a
// fake. The production implementation is NewProcessRunner.
type Runner interface {
	Run(ctx context.Context, bin string, args ...string) (stdout, stderr string, err error)
}

type processRunner struct{}

// NewProcessRunner returns the Runner backed by os/exec.
func NewProcessRunner() Runner {
	return processRunner{}
}

func (processRunner) Run(ctx context.Context, bin string, args ...string) (string, string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...) // #nosec G204 -- bin resolved by security.Engine, args built by this package
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// Executor runs single commands with a per-run timeout and a bound on
// concurrently running engine processes.
type Executor struct {
	runner  Runner
	sem     *semaphore.Weighted
	timeout time.Duration
	logger  log.Logger
}

// NewExecutor creates an Executor.
func NewExecutor(runner Runner, maxProcs int64, timeout time.Duration, logger log.Logger) (*Executor, error) {
	if runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if maxProcs < 1 {
		return nil, fmt.Errorf("maxProcs must be >= 1, got %d", maxProcs)
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive, got %v", timeout)
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Executor{
		runner:  runner,
		sem:     semaphore.NewWeighted(maxProcs),
		timeout: timeout,
		logger:  logger,
	}, nil
}

// Run executes one command and returns its stdout.
// Failure is a non-zero exit, a timeout, or fatal stderr on a zero exit.
func (e *Executor) Run(ctx context.Context, cmd Command) (string, error) {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("acquiring process slot: %w", err)
	}
	defer e.sem.Release(1)

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	e.logger.Debug("running engine command", "command", cmd.String())

	stdout, stderr, err := e.runner.Run(runCtx, cmd.Bin, cmd.Args...)
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %v: %w", e.timeout, err)
		}
		return "", &ExecError{Command: cmd.String(), Stderr: stderr, Err: err}
	}

	if FatalStderr(stderr, cmd.StderrAllow) {
		return "", &ExecError{Command: cmd.String(), Stderr: stderr, Err: ErrFatalStderr}
	}

	if stderr != "" {
		e.logger.Debug("engine stderr (advisory)", "command", cmd.Bin, "stderr", strings.TrimSpace(stderr))
	}
	e.logger.Debug("engine command finished", "command", cmd.Bin, "duration", time.Since(start))
	return stdout, nil
}
