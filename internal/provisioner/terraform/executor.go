package terraform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	apperrors "github.com/cloudconsole/engine/pkg/errors"
	"github.com/cloudconsole/engine/pkg/logger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapio"
)

// DefaultTailLines is used when the runner is built without a tail size.
const DefaultTailLines = 20

// Step is one tool invocation. Fallback runs only when Args exits non-zero.
type Step struct {
	Args     []string
	Fallback []string
}

// Spec describes an ordered command sequence for one deployment.
type Spec struct {
	DeploymentID string
	Dir          string
	// Env overlays the process environment. Values are never logged.
	Env   map[string]string
	Steps []Step
	// Log receives stdout and stderr of every step in arrival order.
	Log io.Writer
}

// ProvisionFailure is a non-zero exit or spawn error of the provisioning tool.
type ProvisionFailure struct {
	Command  string
	ExitCode int
	Tail     string
	Err      error
}

func (f *ProvisionFailure) Error() string {
	if f.ExitCode < 0 {
		return fmt.Sprintf("%s failed: %v", f.Command, f.Err)
	}
	return fmt.Sprintf("%s exited with code %d", f.Command, f.ExitCode)
}

func (f *ProvisionFailure) Unwrap() error { return f.Err }

// Runner executes the provisioning tool as child processes.
type Runner struct {
	binary    string
	tailLines int
	waitDelay time.Duration
}

func NewRunner(binary string, tailLines int) *Runner {
	if tailLines <= 0 {
		tailLines = DefaultTailLines
	}
	return &Runner{binary: binary, tailLines: tailLines, waitDelay: 5 * time.Second}
}

// Binary returns the tool the runner invokes.
func (r *Runner) Binary() string { return r.binary }

// Task is a running command sequence with a single completion event.
type Task struct {
	done   chan struct{}
	err    error
	cancel context.CancelFunc
}

// Done is closed when the sequence finishes.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the sequence finishes and returns its result.
func (t *Task) Wait() error {
	<-t.done
	return t.err
}

// Err returns the result once Done is closed, nil before.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Cancel kills the running process. The sequence then fails.
func (t *Task) Cancel() { t.cancel() }

// Start runs spec in the background.
func (r *Runner) Start(ctx context.Context, spec Spec) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{done: make(chan struct{}), cancel: cancel}
	go func() {
		defer cancel()
		t.err = r.run(ctx, spec)
		close(t.done)
	}()
	return t
}

// Run executes spec and waits for it. Only exit code 0 on every step is success.
func (r *Runner) Run(ctx context.Context, spec Spec) error {
	return r.Start(ctx, spec).Wait()
}

func (r *Runner) run(ctx context.Context, spec Spec) error {
	log := logger.ForDeployment(spec.DeploymentID)
	for _, step := range spec.Steps {
		err := r.exec(ctx, spec, step.Args, nil)
		if err != nil && len(step.Fallback) > 0 {
			log.Debug("step failed, running fallback", zap.Strings("args", step.Args))
			err = r.exec(ctx, spec, step.Fallback, nil)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Output runs a single command and returns its stdout. Stderr goes to spec.Log.
func (r *Runner) Output(ctx context.Context, spec Spec, args ...string) ([]byte, error) {
	var out bytes.Buffer
	if err := r.exec(ctx, spec, args, &out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func (r *Runner) exec(ctx context.Context, spec Spec, args []string, stdout io.Writer) error {
	command := r.binary + " " + strings.Join(args, " ")
	log := logger.ForDeployment(spec.DeploymentID)

	logSink := spec.Log
	if logSink == nil {
		logSink = io.Discard
	}
	fmt.Fprintf(logSink, "==> %s\n", command)

	mirror := &zapio.Writer{Log: log, Level: zap.DebugLevel}
	defer mirror.Close()
	tail := newTailBuffer(r.tailLines)
	combined := io.MultiWriter(logSink, tail, mirror)

	cmd := exec.CommandContext(ctx, r.binary, args...)
	cmd.Dir = spec.Dir
	cmd.Env = buildEnv(spec.Env)
	cmd.Stderr = combined
	cmd.Stdout = combined
	if stdout != nil {
		cmd.Stdout = stdout
	}
	cmd.WaitDelay = r.waitDelay

	start := time.Now()
	log.Info("running provisioning command", zap.String("command", command), zap.String("dir", spec.Dir))
	err := cmd.Run()
	if err == nil {
		log.Info("provisioning command finished", zap.String("command", command), zap.Duration("duration", time.Since(start)))
		return nil
	}

	failure := &ProvisionFailure{Command: command, ExitCode: -1, Err: err}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		failure.ExitCode = ee.ExitCode()
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		failure.Err = fmt.Errorf("%w: %w", ctxErr, err)
		fmt.Fprintf(logSink, "==> %s interrupted: %v\n", command, ctxErr)
	}
	failure.Tail = tail.String()

	log.Warn("provisioning command failed",
		zap.String("command", command),
		zap.Int("exit_code", failure.ExitCode),
		zap.Duration("duration", time.Since(start)),
		zap.Error(err))

	return apperrors.Wrap(failure, apperrors.CodeProvision, failure.Error()).
		WithMeta("command", command).
		WithMeta("exit_code", failure.ExitCode).
		WithMeta("log_tail", failure.Tail)
}

func buildEnv(overlay map[string]string) []string {
	env := append(os.Environ(), "TF_IN_AUTOMATION=1", "TF_INPUT=0")
	keys := make([]string, 0, len(overlay))
	for k := range overlay {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+overlay[k])
	}
	return env
}
