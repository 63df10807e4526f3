package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/meshkit/gltf-mcp/internal/asset"
	"github.com/meshkit/gltf-mcp/internal/log"
)

// auditSeparator joins executed commands in the audit string. It is a
// record of what already ran, never re-executed.
const auditSeparator = " && "

// lockRetryDelay is the poll interval while waiting for another request
// writing the same output path.
const lockRetryDelay = 100 * time.Millisecond

// RunResult reports a completed plan.
type RunResult struct {
	// Commands holds the audit form of every executed command, in order.
	Commands []string
	// OutputPath is the final output file; empty for terminal plans.
	OutputPath string
	// Report is the last command's stdout (inspect/validate output).
	Report string
}

// Audit joins the executed commands into a single record string.
func (r RunResult) Audit() string {
	return strings.Join(r.Commands, auditSeparator)
}

// Orchestrator chains step execution: each step's output becomes the next
// step's input, intermediate files are registered as they are created and
// released in a guaranteed sweep regardless of which step failed.
type Orchestrator struct {
	bin    string
	exec   *Executor
	logger log.Logger
}

// NewOrchestrator creates an Orchestrator for the transform engine binary.
func NewOrchestrator(bin string, exec *Executor, logger log.Logger) (*Orchestrator, error) {
	if bin == "" {
		return nil, fmt.Errorf("engine binary is required")
	}
	if exec == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Orchestrator{bin: bin, exec: exec, logger: logger}, nil
}

// Execute runs a plan against a normalized request.
// Single-step plans run the full request through the command builder (the
// precedence table resolves contested flags); multi-step plans run each
// step on isolated options, chained through intermediate files.
// Once the last step completes, the final output sits at the request's
// resolved output path exactly.
func (o *Orchestrator) Execute(ctx context.Context, req asset.Request, steps []Step) (RunResult, error) {
	if len(steps) == 0 {
		return RunResult{}, fmt.Errorf("empty plan")
	}

	// Serialize writers of the same output path. Two concurrent requests
	// for different files proceed in parallel; same-output requests queue.
	if req.OutputPath != "" {
		lock := flock.New(req.OutputPath + ".lock")
		locked, err := lock.TryLockContext(ctx, lockRetryDelay)
		if err != nil {
			return RunResult{}, fmt.Errorf("locking output path: %w", err)
		}
		if !locked {
			return RunResult{}, fmt.Errorf("output path %s is locked by another request", req.OutputPath)
		}
		defer func() {
			if err := lock.Unlock(); err != nil {
				o.logger.Warn("releasing output lock", "path", lock.Path(), "error", err)
			}
			if err := os.Remove(lock.Path()); err != nil && !os.IsNotExist(err) {
				o.logger.Warn("removing lock file", "path", lock.Path(), "error", err)
			}
		}()
	}

	// Run token namespaces intermediate files so concurrent requests for
	// same-named inputs in one directory cannot collide.
	token := uuid.NewString()[:8]

	var intermediates []string
	defer func() {
		// Guaranteed sweep: everything registered and not yet removed goes,
		// whether the chain completed or aborted mid-way. Cleanup failure
		// is logged, never surfaced.
		for _, p := range intermediates {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				o.logger.Warn("removing intermediate file", "path", p, "error", err)
			}
		}
	}()

	result := RunResult{OutputPath: req.OutputPath}
	current := req.InputPath

	for i, step := range steps {
		last := i == len(steps)-1

		var opts asset.Request
		if len(steps) == 1 {
			opts = req
		} else {
			opts = StepOptions(req, step)
		}
		opts.InputPath = current
		if last {
			opts.OutputPath = req.OutputPath
		} else {
			opts.OutputPath = intermediatePath(req.InputPath, token, i+1, step)
		}

		cmd, err := BuildTransform(o.bin, opts)
		if err != nil {
			return RunResult{}, fmt.Errorf("step %d (%s): %w", i+1, step, err)
		}

		stdout, err := o.exec.Run(ctx, cmd)
		if err != nil {
			return RunResult{}, fmt.Errorf("step %d (%s): %w", i+1, step, err)
		}

		result.Commands = append(result.Commands, cmd.String())
		result.Report = stdout

		if !last {
			intermediates = append(intermediates, opts.OutputPath)
		}
		current = opts.OutputPath
	}

	return result, nil
}

// intermediatePath names a non-final step's output: input base name, run
// token, 1-based step index and step name, alongside the input, keeping
// the original input's extension. Format conversion happens only at the
// final step.
func intermediatePath(input, token string, index int, step Step) string {
	dir := filepath.Dir(input)
	ext := filepath.Ext(input)
	base := strings.TrimSuffix(filepath.Base(input), ext)
	return filepath.Join(dir, fmt.Sprintf("%s_%s_step%d_%s%s", base, token, index, step, ext))
}
