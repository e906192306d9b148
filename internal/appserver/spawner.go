// Package appserver launches the project's application server as a detached
// background process whose output goes to a log file.
package appserver

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Spawner starts the server command detached from the calling terminal.
type Spawner struct {
	Command    []string
	Dir        string
	Env        []string
	LogPath    string
	LogBackups int
}

// Spawn starts the command and returns its PID once the process exists.
// The previous log is rotated so each run starts with a fresh file.
func (s *Spawner) Spawn() (int, error) {
	if len(s.Command) == 0 {
		return 0, errors.New("server.command is not configured")
	}
	logFile, err := s.openLog()
	if err != nil {
		return 0, err
	}
	defer logFile.Close()

	cmd := exec.Command(s.Command[0], s.Command[1:]...)
	cmd.Dir = s.Dir
	cmd.Env = s.Env
	cmd.Stdin = nil
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	setDaemonAttrs(cmd)

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start %s: %w", s.Command[0], err)
	}
	pid := cmd.Process.Pid
	// Reap the child if it exits while we are still around.
	go func() { _ = cmd.Wait() }()
	return pid, nil
}

func (s *Spawner) openLog() (*os.File, error) {
	if s.LogPath == "" {
		return nil, errors.New("server log path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(s.LogPath), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	if err := s.rotate(); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(s.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open server log: %w", err)
	}
	return f, nil
}

func (s *Spawner) rotate() error {
	info, err := os.Stat(s.LogPath)
	if err != nil || info.Size() == 0 || s.LogBackups <= 0 {
		return nil
	}
	l := &lj.Logger{Filename: s.LogPath, MaxBackups: s.LogBackups}
	if err := l.Rotate(); err != nil {
		return fmt.Errorf("rotate server log: %w", err)
	}
	return l.Close()
}
