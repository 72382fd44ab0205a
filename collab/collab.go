// Package collab runs external collaborators: data preparation scripts,
// feature extractors, vocabulary trainers and model trainers. The pipeline
// only observes their exit status.
package collab

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// Invocation describes one collaborator run.
type Invocation struct {
	// Name is the collaborator's logical name (registry key), used in logs and errors.
	Name string

	// Program is the executable to run.
	Program string

	Args []string

	// Env holds extra KEY=VALUE entries appended to the process environment.
	Env []string

	// Dir is the working directory. Empty means the current one.
	Dir string

	// Stdin, when set, is a file fed to the collaborator's standard input.
	Stdin string

	// Stdout, when set, is a file that receives standard output (truncated first).
	Stdout string
}

// String renders the invocation like a shell command line.
func (inv Invocation) String() string {
	var b strings.Builder
	for _, e := range inv.Env {
		b.WriteString(e)
		b.WriteByte(' ')
	}
	b.WriteString(inv.Program)
	for _, a := range inv.Args {
		b.WriteByte(' ')
		b.WriteString(quote(a))
	}
	if inv.Stdin != "" {
		b.WriteString(" < ")
		b.WriteString(inv.Stdin)
	}
	if inv.Stdout != "" {
		b.WriteString(" > ")
		b.WriteString(inv.Stdout)
	}
	return b.String()
}

func quote(s string) string {
	if s == "" {
		return `""`
	}
	if strings.ContainsAny(s, " \t\"'$") {
		return fmt.Sprintf("%q", s)
	}
	return s
}

// Runner runs a collaborator and blocks until it exits.
type Runner interface {
	Run(ctx context.Context, inv Invocation) error
}

// ExitError reports a collaborator that could not start or exited non-zero.
// Code is -1 when the process never started.
type ExitError struct {
	Name string
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Code < 0 {
		return fmt.Sprintf("collaborator %s: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("collaborator %s: exit status %d", e.Name, e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExecRunner runs collaborators as child processes.
type ExecRunner struct {
	// Stdout and Stderr receive the collaborator's output when not redirected.
	// Nil means the parent's os.Stdout / os.Stderr.
	Stdout io.Writer
	Stderr io.Writer

	// Logger records each invocation. Nil uses slog.Default().
	Logger *slog.Logger
}

func (r *ExecRunner) Run(ctx context.Context, inv Invocation) error {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if inv.Program == "" {
		return &ExitError{Name: inv.Name, Code: -1, Err: errors.New("no program configured")}
	}
	logger.Debug("run collaborator", "name", inv.Name, "cmd", inv.String())

	cmd := exec.CommandContext(ctx, inv.Program, inv.Args...)
	cmd.Dir = inv.Dir
	if len(inv.Env) > 0 {
		cmd.Env = append(os.Environ(), inv.Env...)
	}
	cmd.Stdout = r.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = r.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	if inv.Stdin != "" {
		in, err := os.Open(inv.Stdin)
		if err != nil {
			return &ExitError{Name: inv.Name, Code: -1, Err: fmt.Errorf("open stdin: %w", err)}
		}
		defer in.Close()
		cmd.Stdin = in
	}
	if inv.Stdout != "" {
		out, err := os.Create(inv.Stdout)
		if err != nil {
			return &ExitError{Name: inv.Name, Code: -1, Err: fmt.Errorf("create stdout: %w", err)}
		}
		defer out.Close()
		cmd.Stdout = out
	}

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ExitError{Name: inv.Name, Code: exitErr.ExitCode(), Err: err}
		}
		return &ExitError{Name: inv.Name, Code: -1, Err: err}
	}
	return nil
}

var _ Runner = (*ExecRunner)(nil)
