// Package container starts and stops the project's database container
// through the docker CLI.
package container

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/joescharf/pyt/internal/runner"
)

// State of a named container.
type State string

const (
	Missing State = "missing"
	Stopped State = "stopped"
	Running State = "running"
)

// Spec describes the container to run.
type Spec struct {
	Name    string
	Image   string
	Ports   []string // host:container
	Env     []string // KEY=VALUE
	Volumes []string // host:container
}

// Validate checks the fields docker run needs.
func (s Spec) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.New("db.name is required")
	}
	if strings.TrimSpace(s.Image) == "" {
		return errors.New("db.image is required")
	}
	return nil
}

// RunArgs returns the docker run arguments for s.
func (s Spec) RunArgs() []string {
	args := []string{"run", "-d", "--name", s.Name}
	for _, p := range s.Ports {
		args = append(args, "-p", p)
	}
	for _, e := range s.Env {
		args = append(args, "-e", e)
	}
	for _, v := range s.Volumes {
		args = append(args, "-v", v)
	}
	return append(args, s.Image)
}

// Docker drives containers with the docker CLI.
type Docker struct {
	Runner runner.Runner
	Bin    string
}

// New returns a Docker using the docker binary on PATH.
func New(r runner.Runner) *Docker {
	return &Docker{Runner: r, Bin: "docker"}
}

// Status inspects the container. A container docker does not know is Missing.
func (d *Docker) Status(ctx context.Context, name string) (State, error) {
	out, err := d.Runner.Output(ctx, runner.Command{
		Name: d.Bin,
		Args: []string{"inspect", "-f", "{{.State.Running}}", name},
	})
	if err != nil {
		var ce *runner.CommandError
		if errors.As(err, &ce) && strings.Contains(strings.ToLower(ce.Stderr), "no such") {
			return Missing, nil
		}
		return "", fmt.Errorf("inspect container %s: %w", name, err)
	}
	switch strings.TrimSpace(out) {
	case "true":
		return Running, nil
	case "false":
		return Stopped, nil
	}
	return "", fmt.Errorf("inspect container %s: unexpected output %q", name, out)
}

// Start runs the container when missing and starts it when stopped.
// It returns the state before the call.
func (d *Docker) Start(ctx context.Context, spec Spec) (State, error) {
	if err := spec.Validate(); err != nil {
		return "", err
	}
	st, err := d.Status(ctx, spec.Name)
	if err != nil {
		return "", err
	}
	switch st {
	case Missing:
		err = d.Runner.Run(ctx, runner.Command{Name: d.Bin, Args: spec.RunArgs()})
	case Stopped:
		err = d.Runner.Run(ctx, runner.Command{Name: d.Bin, Args: []string{"start", spec.Name}})
	}
	if err != nil {
		return st, fmt.Errorf("start container %s: %w", spec.Name, err)
	}
	return st, nil
}

// Stop stops a running container. Missing or stopped containers are left alone.
func (d *Docker) Stop(ctx context.Context, name string) (State, error) {
	st, err := d.Status(ctx, name)
	if err != nil {
		return "", err
	}
	if st != Running {
		return st, nil
	}
	if err := d.Runner.Run(ctx, runner.Command{Name: d.Bin, Args: []string{"stop", name}}); err != nil {
		return st, fmt.Errorf("stop container %s: %w", name, err)
	}
	return st, nil
}

// Remove deletes the container, stopping it first if needed.
// It returns the state before the call.
func (d *Docker) Remove(ctx context.Context, name string) (State, error) {
	st, err := d.Status(ctx, name)
	if err != nil {
		return "", err
	}
	if st == Missing {
		return st, nil
	}
	if err := d.Runner.Run(ctx, runner.Command{Name: d.Bin, Args: []string{"rm", "-f", name}}); err != nil {
		return st, fmt.Errorf("remove container %s: %w", name, err)
	}
	return st, nil
}
