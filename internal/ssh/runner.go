package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Outcome is the terminal state of a finished process
type Outcome struct {
	Stdout   string // Captured standard output, decoded as UTF-8
	Stderr   string // Captured standard error, decoded as UTF-8
	ExitCode int    // Exit code reported by the process
	Err      error  // Non-nil only when the process could not be reaped
}

// Process is a handle to one running remote execution. It can be observed
// without blocking via Done and forcibly terminated via Kill.
type Process interface {
	// Done is closed once the process has exited and its outcome is available
	Done() <-chan struct{}

	// Outcome returns the terminal state; valid only after Done is closed
	Outcome() Outcome

	// Kill forcibly terminates the process
	Kill() error
}

// Runner spawns one process per target
type Runner interface {
	// Launch starts the command against host and returns a pollable handle
	Launch(ctx context.Context, host, command string) (Process, error)
}

// BinaryRunner implements Runner by invoking the validated ssh executable in
// non-interactive batch mode: `ssh -nqo BatchMode=yes <host> <command>`.
// Batch mode disallows interactive prompts, so a launched process can never
// block waiting for user input.
type BinaryRunner struct {
	binary Binary
}

// NewRunner creates a runner for the given validated executable
func NewRunner(binary Binary) *BinaryRunner {
	return &BinaryRunner{binary: binary}
}

// Args returns the argument vector used for one target, excluding the
// executable path itself.
func Args(host, command string) []string {
	return []string{"-nqo", "BatchMode=yes", host, command}
}

// Launch starts the command against host and returns a pollable handle
func (r *BinaryRunner) Launch(ctx context.Context, host, command string) (Process, error) {
	cmd := exec.CommandContext(ctx, r.binary.Path, Args(host, command)...)

	p := &proc{
		cmd:  cmd,
		done: make(chan struct{}),
	}
	cmd.Stdout = &p.stdout
	cmd.Stderr = &p.stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start '%s' for %s: %w", r.binary.Path, host, err)
	}

	// One waiter per process; the exit status is published to the control
	// goroutine through the done channel close.
	go func() {
		p.waitErr = cmd.Wait()
		close(p.done)
	}()

	return p, nil
}

// proc wraps a started exec.Cmd with non-blocking completion observation
type proc struct {
	cmd     *exec.Cmd
	stdout  bytes.Buffer
	stderr  bytes.Buffer
	done    chan struct{}
	waitErr error
}

// Done is closed once the process has exited
func (p *proc) Done() <-chan struct{} {
	return p.done
}

// Outcome returns the terminal state; valid only after Done is closed
func (p *proc) Outcome() Outcome {
	out := Outcome{
		Stdout: decodeOutput(p.stdout.Bytes()),
		Stderr: decodeOutput(p.stderr.Bytes()),
	}

	if p.waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(p.waitErr, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
		} else {
			out.Err = p.waitErr
		}
	}

	return out
}

// Kill forcibly terminates the process
func (p *proc) Kill() error {
	return p.cmd.Process.Kill()
}

// decodeOutput converts captured bytes to UTF-8 text. Malformed sequences are
// replaced with U+FFFD rather than aborting the batch; the substitution is
// deterministic for a given byte stream.
func decodeOutput(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}
