// Package runner executes the external tools the pipeline depends on
// (Ghostscript, Tesseract, unpaper, poppler, JHOVE) with per-invocation
// timeouts and captured output.
//
// Every blocking stage goes through this package so that timeout and
// cancellation behavior is uniform and tests can substitute a fake Runner.
package runner

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"

	"ocrpdf/internal/logger"
)

// Runner executes one external command and returns its standard output.
// Standard error is captured and attached to the returned error on failure.
type Runner interface {
	Run(ctx context.Context, spec Command) ([]byte, error)
}

// Command describes a single external tool invocation.
type Command struct {
	Path    string        // Executable path or bare name resolved via PATH
	Args    []string
	Dir     string        // Working directory; empty means inherit
	Timeout time.Duration // Zero means rely on ctx alone
}

// execRunner runs commands with os/exec.
type execRunner struct{}

// New returns the production Runner.
func New() Runner {
	return execRunner{}
}

func (execRunner) Run(ctx context.Context, spec Command) ([]byte, error) {
	const op = "Run"
	log := logger.WithComponent("runner")

	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, spec.Path, spec.Args...)
	cmd.Dir = spec.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	log.Debug().
		Str("tool", spec.Path).
		Strs("args", spec.Args).
		Dur("duration", time.Since(start)).
		Msg("External tool finished")

	if err == nil {
		if stderr.Len() > 0 {
			log.Debug().Str("tool", spec.Path).Str("stderr", stderr.String()).Msg("Tool wrote to stderr")
		}
		return stdout.Bytes(), nil
	}

	// Distinguish deadline/cancellation from the tool's own failure. exec
	// reports the kill as "signal: killed", so the context error is the
	// authoritative signal.
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return nil, NewRunnerError(op, ErrTimeout, spec.Path, stderr.String())
		}
		return nil, NewRunnerError(op, ctxErr, spec.Path, stderr.String())
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil, NewRunnerError(op, ErrToolFailed, spec.Path, stderr.String())
	}
	// Startup failure: executable missing or not runnable.
	return nil, NewRunnerError(op, ErrToolNotFound, spec.Path, err.Error())
}

// LookPath reports whether the given tool can be resolved to an executable.
// Used by the CLI to fail fast with a missing-dependency exit code.
func LookPath(path string) error {
	if _, err := exec.LookPath(path); err != nil {
		return NewRunnerError("LookPath", ErrToolNotFound, path, err.Error())
	}
	return nil
}
