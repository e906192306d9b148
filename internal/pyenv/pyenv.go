// Package pyenv manages the project's Python virtual environment: its
// directory layout, creation, pip installs against the local sdists cache
// and the .pth file that puts the project sources on sys.path.
package pyenv

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// ErrProgramNotFound is returned when a program is missing from the pyenv bin directory.
var ErrProgramNotFound = errors.New("pyenv program not found")

// Env is a virtualenv rooted at a fixed directory.
type Env struct {
	root string
}

// New returns the Env for dir. A relative dir is resolved under pyenvRoot.
func New(dir, pyenvRoot string) *Env {
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(pyenvRoot, dir)
	}
	return &Env{root: filepath.Clean(dir)}
}

// Path returns the virtualenv directory.
func (e *Env) Path() string { return e.root }

// Ensure creates the virtualenv directory if missing.
func (e *Env) Ensure() error {
	return os.MkdirAll(e.root, 0o755)
}

// Exists reports whether the virtualenv has been created (its python exists).
func (e *Env) Exists() bool {
	_, err := e.Python()
	return err == nil
}

// Var returns var/<sub> inside the virtualenv, creating it if needed.
func (e *Env) Var(sub string) (string, error) {
	p := filepath.Join(e.root, "var", sub)
	if err := os.MkdirAll(p, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", p, err)
	}
	return p, nil
}

func (e *Env) Tmp() (string, error)   { return e.Var("tmp") }
func (e *Env) Cache() (string, error) { return e.Var("cache") }
func (e *Env) Log() (string, error)   { return e.Var("log") }
func (e *Env) Run() (string, error)   { return e.Var("run") }

// Etc returns the etc directory inside the virtualenv, creating it if needed.
func (e *Env) Etc() (string, error) {
	p := filepath.Join(e.root, "etc")
	if err := os.MkdirAll(p, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", p, err)
	}
	return p, nil
}

// BinDir returns the directory holding the virtualenv executables.
func (e *Env) BinDir() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(e.root, "Scripts")
	}
	return filepath.Join(e.root, "bin")
}

// Prog returns the path of a program in the virtualenv bin directory.
func (e *Env) Prog(name string) (string, error) {
	p := filepath.Join(e.BinDir(), name)
	if runtime.GOOS == "windows" && filepath.Ext(p) == "" {
		p += ".exe"
	}
	if _, err := os.Stat(p); err != nil {
		return "", fmt.Errorf("%w: %s", ErrProgramNotFound, name)
	}
	return p, nil
}

func (e *Env) Python() (string, error)   { return e.Prog("python") }
func (e *Env) Pip() (string, error)      { return e.Prog("pip") }
func (e *Env) Pylint() (string, error)   { return e.Prog("pylint") }
func (e *Env) Pyflakes() (string, error) { return e.Prog("pyflakes") }

// Mkdtmp creates a new temporary directory under var/tmp.
func (e *Env) Mkdtmp() (string, error) {
	tmp, err := e.Tmp()
	if err != nil {
		return "", err
	}
	return os.MkdirTemp(tmp, "pyt-")
}
