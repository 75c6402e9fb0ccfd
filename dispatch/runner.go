package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// RunResult is what a render script left behind.
type RunResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner invokes an external render script.
type Runner interface {
	Run(ctx context.Context, script string, args ...string) (RunResult, error)
}

// ExecRunner runs scripts as child processes, through Interpreter when it is set.
// A non-zero exit is reported in the result, not as an error.
type ExecRunner struct {
	Interpreter string
	Timeout     time.Duration
}

func (r ExecRunner) Run(ctx context.Context, script string, args ...string) (RunResult, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	name, argv := script, args
	if r.Interpreter != "" {
		name = r.Interpreter
		argv = append([]string{script}, args...)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, argv...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// children of the script may keep the pipes open after it is killed
	cmd.WaitDelay = 5 * time.Second

	err := cmd.Run()
	res := RunResult{Stdout: stdout.String(), Stderr: stderr.String()}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return res, nil
	case ctx.Err() != nil:
		res.ExitCode = -1
		return res, fmt.Errorf("render script %s stopped: %w", script, ctx.Err())
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	default:
		res.ExitCode = -1
		return res, fmt.Errorf("failed to run render script %s: %w", script, err)
	}
}
