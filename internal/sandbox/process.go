package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// ProcessExecutor runs candidates as local python child processes in a
// throwaway scratch directory. The interpreter is invoked with -I so the
// candidate cannot import from the harness environment.
type ProcessExecutor struct {
	// Python is the interpreter binary. Empty means "python3".
	Python string
	// TempRoot overrides the parent directory for scratch dirs. Empty
	// means the system default.
	TempRoot string
}

func (e *ProcessExecutor) Execute(ctx context.Context, req *Request) (*Result, error) {
	scratch, err := os.MkdirTemp(e.TempRoot, "planbench-*")
	if err != nil {
		return nil, fmt.Errorf("creating scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	path, err := writeProgram(scratch, req)
	if err != nil {
		return nil, err
	}

	python := e.Python
	if python == "" {
		python = "python3"
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	cmd := exec.CommandContext(timeoutCtx, python, "-I", path)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if timeoutCtx.Err() == context.DeadlineExceeded {
		return &Result{
			Passed:   false,
			Log:      timeoutLog(int(req.Timeout.Seconds())),
			TimedOut: true,
			Duration: duration,
		}, nil
	}
	if runErr != nil {
		if _, ok := runErr.(*exec.ExitError); !ok {
			return nil, fmt.Errorf("running %s: %w", python, runErr)
		}
	}
	return &Result{
		Passed:   runErr == nil,
		Log:      stdout.String() + stderr.String(),
		Duration: duration,
	}, nil
}
