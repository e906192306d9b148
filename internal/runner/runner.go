// Package runner executes the external tools pyt drives (python, pip,
// docker, linters) and turns non-zero exits into errors.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// Command describes one external program invocation.
type Command struct {
	Name  string
	Args  []string
	Dir   string
	Env   []string // KEY=VALUE entries layered over the current environment
	Paths []string // directories appended to PATH
}

// String returns the argv joined by spaces.
func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// CommandError reports a command that ran and exited non-zero.
type CommandError struct {
	Cmd    string
	Code   int
	Stderr string
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command(%q) failed with code(%d)", e.Cmd, e.Code)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// ExitCode returns the exit code carried by err, or -1 if err is not a CommandError.
func ExitCode(err error) int {
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return -1
}

// Runner runs external commands.
type Runner interface {
	// Run streams output and fails on a non-zero exit.
	Run(ctx context.Context, cmd Command) error
	// Output captures stdout, trimmed.
	Output(ctx context.Context, cmd Command) (string, error)
}

// ExecRunner implements Runner with os/exec.
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

// New returns an ExecRunner streaming to the process's stdout and stderr.
func New(logger *slog.Logger) *ExecRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecRunner{Stdout: os.Stdout, Stderr: os.Stderr, Logger: logger}
}

func (r *ExecRunner) Run(ctx context.Context, cmd Command) error {
	c := r.build(ctx, cmd)
	c.Stdout = r.Stdout
	c.Stderr = r.Stderr
	r.Logger.Debug("runner", "cmd", cmd.String(), "dir", cmd.Dir)
	return r.finish(cmd, c.Run(), "")
}

func (r *ExecRunner) Output(ctx context.Context, cmd Command) (string, error) {
	c := r.build(ctx, cmd)
	var stderr bytes.Buffer
	c.Stderr = &stderr
	r.Logger.Debug("runner", "cmd", cmd.String(), "dir", cmd.Dir, "capture", true)
	out, err := c.Output()
	if err := r.finish(cmd, err, strings.TrimSpace(stderr.String())); err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (r *ExecRunner) build(ctx context.Context, cmd Command) *exec.Cmd {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = MergeEnv(os.Environ(), cmd.Env, cmd.Paths)
	return c
}

func (r *ExecRunner) finish(cmd Command, err error, stderr string) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		ce := &CommandError{Cmd: cmd.String(), Code: exitErr.ExitCode(), Stderr: stderr}
		r.Logger.Error("command failed", "cmd", ce.Cmd, "code", ce.Code)
		return ce
	}
	r.Logger.Error("command did not run", "cmd", cmd.String(), "error", err)
	return fmt.Errorf("run %s: %w", cmd.Name, err)
}

// MergeEnv returns base overridden by extra (KEY=VALUE) with paths appended
// to PATH. Later entries win.
func MergeEnv(base, extra, paths []string) []string {
	keys := make([]string, 0, len(base)+len(extra))
	vals := make(map[string]string, len(base)+len(extra))
	set := func(kv string) {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return
		}
		if _, seen := vals[k]; !seen {
			keys = append(keys, k)
		}
		vals[k] = v
	}
	for _, kv := range base {
		set(kv)
	}
	for _, kv := range extra {
		set(kv)
	}
	if len(paths) > 0 {
		parts := append([]string{}, paths...)
		if cur := vals["PATH"]; cur != "" {
			parts = append([]string{cur}, paths...)
		}
		set("PATH=" + strings.Join(parts, string(os.PathListSeparator)))
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+vals[k])
	}
	return out
}
