package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// ErrNoExecutors means the registry is empty: a configuration problem,
// distinct from a request naming an executor that does not exist.
var ErrNoExecutors = errors.New("no executors configured")

// UnknownExecutorError is a request naming an executor absent from a
// non-empty registry.
type UnknownExecutorError struct {
	Name string
}

func (e *UnknownExecutorError) Error() string {
	return fmt.Sprintf("unknown executor %q", e.Name)
}

// Result captures one shell command execution. Execution failures
// (non-zero exit, spawn failure) land in Err rather than being returned
// as an error from Run; the caller decides how to surface them.
type Result struct {
	Stdout     string
	Stderr     string
	ExitStatus int
	Err        error
}

// Engine resolves requests against a registry, renders the template and
// runs the result through the system shell. The Run call blocks until
// the subprocess exits; callers wanting parallelism schedule Run on a
// worker pool.
type Engine struct {
	registry *Registry
	shell    string
}

func NewEngine(registry *Registry) *Engine {
	return &Engine{
		registry: registry,
		shell:    "/bin/sh",
	}
}

// Run resolves and executes a single parsed request. The returned error
// covers resolution and render failures only; the subprocess outcome is
// reported through Result.
func (e *Engine) Run(ctx context.Context, req Request) (Result, error) {
	if e.registry.Len() == 0 {
		return Result{}, ErrNoExecutors
	}

	tmpl, ok := e.registry.Lookup(req.Name)
	if !ok {
		return Result{}, &UnknownExecutorError{Name: req.Name}
	}

	cmdLine, err := RenderTemplate(tmpl.Command, req.Payload)
	if err != nil {
		return Result{}, err
	}

	cmd := exec.CommandContext(ctx, e.shell, "-c", cmdLine)
	// Orphaned grandchildren can hold the output pipes open after the
	// shell is killed; WaitDelay bounds how long Run blocks on them.
	cmd.WaitDelay = 3 * time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	result := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if runErr != nil {
		result.Err = runErr
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			result.ExitStatus = exitErr.ExitCode()
		} else {
			// Spawn failure: the shell never ran
			result.ExitStatus = -1
		}
		return result, nil
	}

	result.ExitStatus = cmd.ProcessState.ExitCode()
	return result, nil
}
