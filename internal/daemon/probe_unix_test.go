//go:build !windows

package daemon

import (
	"os"
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOSProbe_Alive_CurrentProcess(t *testing.T) {
	alive, err := OSProbe{}.Alive(os.Getpid())
	require.NoError(t, err)
	assert.True(t, alive)
}

func TestOSProbe_Alive_ExitedProcess(t *testing.T) {
	cmd := exec.Command("true")
	require.NoError(t, cmd.Run())

	alive, err := OSProbe{}.Alive(cmd.Process.Pid)
	require.NoError(t, err)
	assert.False(t, alive)
}

func TestOSProbe_Alive_PermissionDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root may signal any process")
	}
	// PID 1 always exists and belongs to root.
	alive, err := OSProbe{}.Alive(1)
	assert.False(t, alive)
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestOSProbe_Signal_ExitedProcess(t *testing.T) {
	cmd := exec.Command("true")
	require.NoError(t, cmd.Run())

	err := OSProbe{}.Signal(cmd.Process.Pid, syscall.SIGTERM)
	assert.ErrorIs(t, err, os.ErrProcessDone)
}

func TestController_RealProcess_StartStop(t *testing.T) {
	path := t.TempDir() + "/sleep.pid"
	c := ForPIDFile(path, WithPollInterval(10*time.Millisecond))

	var cmd *exec.Cmd
	exited := make(chan struct{})
	st, err := c.Start(func() (int, error) {
		cmd = exec.Command("sleep", "30")
		if err := cmd.Start(); err != nil {
			return 0, err
		}
		// Reap so the probe does not see a zombie.
		go func() {
			_ = cmd.Wait()
			close(exited)
		}()
		return cmd.Process.Pid, nil
	})
	require.NoError(t, err)
	assert.Equal(t, Running, st.State)
	assert.Equal(t, cmd.Process.Pid, st.PID)

	require.NoError(t, c.Stop(syscall.SIGTERM, 5*time.Second))
	<-exited

	st, err = c.Status()
	require.NoError(t, err)
	assert.Equal(t, Stopped, st.State)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
