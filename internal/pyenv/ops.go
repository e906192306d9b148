package pyenv

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joescharf/pyt/internal/runner"
)

// CreateOptions controls how the virtualenv is built.
type CreateOptions struct {
	SysPython  string // interpreter used to build the virtualenv
	Virtualenv string // optional virtualenv script; empty uses "-m venv"
}

// Create builds the virtualenv with the system interpreter.
func (e *Env) Create(ctx context.Context, r runner.Runner, opts CreateOptions) error {
	if err := e.Ensure(); err != nil {
		return err
	}
	py := opts.SysPython
	if py == "" {
		py = "python3"
	}
	args := []string{"-m", "venv", e.root}
	if opts.Virtualenv != "" {
		args = []string{opts.Virtualenv, e.root}
	}
	return r.Run(ctx, runner.Command{Name: py, Args: args})
}

// InstallOptions controls a pip install.
type InstallOptions struct {
	// LocalOnly installs from FindLinks without consulting the package index.
	LocalOnly bool
	// FindLinks is the local sdists directory.
	FindLinks string
	// Paths are appended to PATH for build steps that need extra tools.
	Paths []string
}

// Install pip-installs a requirements file.
func (e *Env) Install(ctx context.Context, r runner.Runner, requirements string, opts InstallOptions) error {
	pip, err := e.Pip()
	if err != nil {
		return err
	}
	args := []string{"install", "-r", requirements}
	if opts.LocalOnly {
		if opts.FindLinks == "" {
			return fmt.Errorf("local-only install of %s needs a find-links directory", requirements)
		}
		args = append(args, "--no-index", "--find-links=file://"+filepath.ToSlash(opts.FindLinks))
	}
	return r.Run(ctx, runner.Command{Name: pip, Args: args, Paths: opts.Paths})
}

// Download fetches the packages of a requirements file into dir, refreshing
// the local sdists cache.
func (e *Env) Download(ctx context.Context, r runner.Runner, requirements, dir string) error {
	pip, err := e.Pip()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create sdists dir: %w", err)
	}
	return r.Run(ctx, runner.Command{Name: pip, Args: []string{"download", "-r", requirements, "-d", dir}})
}

// PythonDir returns the virtualenv site-packages directory.
func (e *Env) PythonDir(ctx context.Context, r runner.Runner) (string, error) {
	py, err := e.Python()
	if err != nil {
		return "", err
	}
	return r.Output(ctx, runner.Command{
		Name: py,
		Args: []string{"-c", "import sysconfig; print(sysconfig.get_paths()['purelib'])"},
	})
}

// AddSrcPth writes <project>.pth into site-packages so the project root and
// each of extra (relative to the project root) are importable.
func (e *Env) AddSrcPth(ctx context.Context, r runner.Runner, srcRoot string, extra []string) (string, error) {
	pythonDir, err := e.PythonDir(ctx, r)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(pythonDir, srcRoot)
	if err != nil {
		return "", fmt.Errorf("relative path to sources: %w", err)
	}
	rel = filepath.ToSlash(rel)

	var b strings.Builder
	b.WriteString(rel + "\n")
	for _, p := range extra {
		b.WriteString(rel + "/" + strings.Trim(filepath.ToSlash(p), "/") + "\n")
	}

	pth := filepath.Join(pythonDir, filepath.Base(srcRoot)+".pth")
	if err := os.WriteFile(pth, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("write pth file: %w", err)
	}
	return pth, nil
}

// Manage runs a Django management command through the given module.
func (e *Env) Manage(ctx context.Context, r runner.Runner, module string, args ...string) error {
	if module == "" {
		return fmt.Errorf("no manage module configured")
	}
	py, err := e.Python()
	if err != nil {
		return err
	}
	return r.Run(ctx, runner.Command{Name: py, Args: append([]string{"-m", module}, args...)})
}

// CollectStatic runs Django's collectstatic without prompting.
func (e *Env) CollectStatic(ctx context.Context, r runner.Runner, module string) error {
	return e.Manage(ctx, r, module, "collectstatic", "--noinput")
}
