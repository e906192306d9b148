//go:build !windows

package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/pyt/internal/daemon"
	"github.com/joescharf/pyt/internal/models"
	"github.com/joescharf/pyt/internal/store"
)

// serverEnv configures a test project whose server is a real process.
func serverEnv(t *testing.T, argv ...string) *project {
	t.Helper()
	testEnv(t)
	viper.Set("server.command", argv)
	viper.Set("server.stop_timeout", 5*time.Second)
	p, err := loadProject()
	require.NoError(t, err)
	return p
}

// serverPID returns the PID recorded in the server PID file, or 0.
func serverPID(t *testing.T, p *project) int {
	t.Helper()
	path, err := serverPIDPath(p)
	require.NoError(t, err)
	pid, ok, err := daemon.NewPIDFile(path).Read()
	require.NoError(t, err)
	if !ok {
		return 0
	}
	return pid
}

// killOnCleanup kills the server's process group when the test ends.
func killOnCleanup(t *testing.T, pid int) {
	t.Helper()
	t.Cleanup(func() { _ = syscall.Kill(-pid, syscall.SIGKILL) })
}

func serverEvents(t *testing.T) []models.EventKind {
	t.Helper()
	s, err := getStore()
	require.NoError(t, err)
	events, err := s.ListEvents(t.Context(), store.EventFilter{Daemon: serverName})
	require.NoError(t, err)
	kinds := make([]models.EventKind, 0, len(events))
	for i := len(events) - 1; i >= 0; i-- {
		kinds = append(kinds, events[i].Kind)
	}
	return kinds
}

func TestServerPaths_Defaults(t *testing.T) {
	p := serverEnv(t, "sleep", "60")

	pidPath, err := serverPIDPath(p)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(p.Env.Path(), "var", "run", "server.pid"), pidPath)

	logPath, err := serverLogPath(p)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(p.Env.Path(), "var", "log", "server.log"), logPath)
}

func TestServerPaths_Configured(t *testing.T) {
	p := serverEnv(t, "sleep", "60")
	viper.Set("server.pid_file", "run/app.pid")
	abs := filepath.Join(t.TempDir(), "app.log")
	viper.Set("server.log_file", abs)

	pidPath, err := serverPIDPath(p)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(p.Root, "run", "app.pid"), pidPath)

	logPath, err := serverLogPath(p)
	require.NoError(t, err)
	assert.Equal(t, abs, logPath)
}

func TestServerSpawner_UsesVirtualenv(t *testing.T) {
	p := serverEnv(t, "gunicorn", "app.wsgi")
	progs := stubProgs(t, "gunicorn")

	sp, err := serverSpawner(p)
	require.NoError(t, err)
	assert.Equal(t, []string{progs["gunicorn"], "app.wsgi"}, sp.Command)
	assert.Equal(t, p.Root, sp.Dir)
	assert.Contains(t, sp.Env, "VIRTUAL_ENV="+p.Env.Path())

	var path string
	for _, kv := range sp.Env {
		if v, ok := strings.CutPrefix(kv, "PATH="); ok {
			path = v
		}
	}
	assert.True(t, strings.HasPrefix(path, p.Env.BinDir()+string(os.PathListSeparator)), path)
}

func TestServerStart_RequiresCommand(t *testing.T) {
	serverEnv(t)

	err := serverStartRun()
	assert.ErrorContains(t, err, "server.command is not configured")
}

func TestServer_StartStopRoundTrip(t *testing.T) {
	p := serverEnv(t, "sleep", "60")

	require.NoError(t, serverStartRun())
	pid := serverPID(t, p)
	require.Positive(t, pid)
	killOnCleanup(t, pid)
	assert.Contains(t, stdout(), "Server started")

	// A second start leaves the running server alone.
	require.NoError(t, serverStartRun())
	assert.Equal(t, pid, serverPID(t, p))
	assert.Contains(t, stdout(), "already running")

	require.NoError(t, serverStatusRun())
	assert.Contains(t, stdout(), "running (pid")

	require.NoError(t, serverStopRun())
	assert.Zero(t, serverPID(t, p))
	assert.Contains(t, stdout(), "Server stopped")

	// Stopping a stopped server is a no-op.
	require.NoError(t, serverStopRun())
	assert.Contains(t, stdout(), "not running")

	require.NoError(t, serverStatusRun())
	assert.Contains(t, stdout(), "server: stopped")

	assert.Equal(t, []models.EventKind{
		models.EventStarted, models.EventAlreadyRunning, models.EventStopped,
	}, serverEvents(t))
}

func TestServer_Restart(t *testing.T) {
	p := serverEnv(t, "sleep", "60")

	require.NoError(t, serverStartRun())
	first := serverPID(t, p)
	killOnCleanup(t, first)

	require.NoError(t, serverStopRun())
	require.NoError(t, serverStartRun())
	second := serverPID(t, p)
	killOnCleanup(t, second)

	assert.NotEqual(t, first, second)
}

func TestServer_StaleSelfHeals(t *testing.T) {
	p := serverEnv(t, "sleep", "60")
	path, err := serverPIDPath(p)
	require.NoError(t, err)
	require.NoError(t, daemon.NewPIDFile(path).WritePID(1<<22))

	require.NoError(t, serverStatusRun())
	assert.Contains(t, stdout(), "server: stopped")
	assert.NoFileExists(t, path)
	assert.Equal(t, []models.EventKind{models.EventStale}, serverEvents(t))
}

func TestServerStop_Timeout(t *testing.T) {
	p := serverEnv(t, "sh", "-c", `trap "" QUIT TERM; sleep 60`)
	viper.Set("server.stop_timeout", 300*time.Millisecond)

	require.NoError(t, serverStartRun())
	pid := serverPID(t, p)
	killOnCleanup(t, pid)
	// Give the shell time to install its trap.
	time.Sleep(200 * time.Millisecond)

	err := serverStopRun()
	assert.ErrorIs(t, err, daemon.ErrShutdownTimeout)
	assert.Contains(t, stderr(), "PID file kept")
	assert.Equal(t, pid, serverPID(t, p))
	assert.Contains(t, serverEvents(t), models.EventStopTimeout)
}

func TestServer_CorruptPIDFile(t *testing.T) {
	p := serverEnv(t, "sleep", "60")
	path, err := serverPIDPath(p)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("garbage\n"), 0o644))

	assert.ErrorIs(t, serverStatusRun(), daemon.ErrCorruptState)
	assert.ErrorIs(t, serverStartRun(), daemon.ErrCorruptState)
	assert.ErrorIs(t, serverStopRun(), daemon.ErrCorruptState)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "garbage\n", string(data))
}

func TestServerStart_DryRun(t *testing.T) {
	p := serverEnv(t, "sleep", "60")
	dryRun = true
	ui.DryRun = true

	require.NoError(t, serverStartRun())
	assert.Zero(t, serverPID(t, p))
	assert.Contains(t, stderr(), "Would start: sleep 60")
	assert.Empty(t, serverEvents(t))
}

func TestServerStop_BadSignal(t *testing.T) {
	serverEnv(t, "sleep", "60")
	viper.Set("server.grace_signal", "NOPE")

	err := serverStopRun()
	assert.ErrorContains(t, err, "server.grace_signal")
}

func TestServerStatus_Verbose(t *testing.T) {
	p := serverEnv(t, "sleep", "60")

	require.NoError(t, serverStartRun())
	killOnCleanup(t, serverPID(t, p))

	verbose = true
	require.NoError(t, serverStatusRun())
	out := stdout()
	assert.Contains(t, out, "sleep 60")
	assert.Contains(t, out, "memory")
	assert.Contains(t, out, "iB")
}
