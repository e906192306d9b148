package daemon

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
)

// PIDStore persists the PID of a single daemon.
type PIDStore interface {
	WritePID(pid int) error
	Read() (pid int, ok bool, err error)
	Clear() error
}

// PIDFile manages a PID file for daemon process tracking.
type PIDFile struct {
	Path string
}

// NewPIDFile creates a PIDFile manager for the given path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{Path: path}
}

// WritePID writes the given PID to the file, replacing any previous content.
// The parent directory must already exist.
func (p *PIDFile) WritePID(pid int) error {
	if err := os.WriteFile(p.Path, []byte(strconv.Itoa(pid)+"\n"), 0o644); err != nil {
		return fmt.Errorf("write PID file: %w", err)
	}
	return nil
}

// Read returns the recorded PID. ok is false when the file does not exist.
func (p *PIDFile) Read() (int, bool, error) {
	data, err := os.ReadFile(p.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read PID file: %w", err)
	}
	pid, err := parsePID(data)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %s: %v", ErrCorruptState, p.Path, err)
	}
	return pid, true, nil
}

// Clear deletes the PID file. A missing file is not an error.
func (p *PIDFile) Clear() error {
	if err := os.Remove(p.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove PID file: %w", err)
	}
	return nil
}

// parsePID accepts exactly one base-10 integer with at most one trailing newline.
func parsePID(data []byte) (int, error) {
	s := strings.TrimSuffix(string(data), "\n")
	if s == "" {
		return 0, errors.New("empty")
	}
	if strings.ContainsAny(s, " \t\r\n") {
		return 0, fmt.Errorf("unexpected content %q", s)
	}
	if s[0] < '0' || s[0] > '9' {
		return 0, fmt.Errorf("unexpected content %q", s)
	}
	pid, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if pid <= 0 {
		return 0, fmt.Errorf("PID must be positive, got %d", pid)
	}
	return pid, nil
}
