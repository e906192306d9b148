package container

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/pyt/internal/runner"
)

const inspect = "docker inspect -f {{.State.Running}} pgdb"

func newTestDocker(state string) (*Docker, *runner.Fake) {
	f := runner.NewFake()
	switch state {
	case "missing":
		f.Errors[inspect] = &runner.CommandError{Cmd: inspect, Code: 1, Stderr: "Error: No such object: pgdb"}
	default:
		f.Outputs[inspect] = state
	}
	return New(f), f
}

var spec = Spec{
	Name:    "pgdb",
	Image:   "postgres:16",
	Ports:   []string{"5432:5432"},
	Env:     []string{"POSTGRES_PASSWORD=dev"},
	Volumes: []string{"/srv/pg:/var/lib/postgresql/data"},
}

func TestStatus(t *testing.T) {
	for in, want := range map[string]State{"missing": Missing, "true": Running, "false": Stopped} {
		d, _ := newTestDocker(in)
		st, err := d.Status(context.Background(), "pgdb")
		require.NoError(t, err)
		assert.Equal(t, want, st)
	}
}

func TestStatus_DaemonError(t *testing.T) {
	f := runner.NewFake()
	f.Errors[inspect] = &runner.CommandError{Cmd: inspect, Code: 1, Stderr: "Cannot connect to the Docker daemon"}
	_, err := New(f).Status(context.Background(), "pgdb")
	assert.Error(t, err)
}

func TestStart_Missing(t *testing.T) {
	d, f := newTestDocker("missing")

	prev, err := d.Start(context.Background(), spec)
	require.NoError(t, err)
	assert.Equal(t, Missing, prev)
	assert.Equal(t, []string{
		inspect,
		"docker run -d --name pgdb -p 5432:5432 -e POSTGRES_PASSWORD=dev -v /srv/pg:/var/lib/postgresql/data postgres:16",
	}, f.Strings())
}

func TestStart_Stopped(t *testing.T) {
	d, f := newTestDocker("false")

	prev, err := d.Start(context.Background(), spec)
	require.NoError(t, err)
	assert.Equal(t, Stopped, prev)
	assert.Equal(t, []string{inspect, "docker start pgdb"}, f.Strings())
}

func TestStart_RunningIsNoop(t *testing.T) {
	d, f := newTestDocker("true")

	prev, err := d.Start(context.Background(), spec)
	require.NoError(t, err)
	assert.Equal(t, Running, prev)
	assert.Equal(t, []string{inspect}, f.Strings())
}

func TestStart_InvalidSpec(t *testing.T) {
	d, f := newTestDocker("missing")
	_, err := d.Start(context.Background(), Spec{Name: "pgdb"})
	assert.Error(t, err)
	assert.Empty(t, f.Commands)
}

func TestStop(t *testing.T) {
	d, f := newTestDocker("true")
	prev, err := d.Stop(context.Background(), "pgdb")
	require.NoError(t, err)
	assert.Equal(t, Running, prev)
	assert.Equal(t, []string{inspect, "docker stop pgdb"}, f.Strings())

	d, f = newTestDocker("missing")
	prev, err = d.Stop(context.Background(), "pgdb")
	require.NoError(t, err)
	assert.Equal(t, Missing, prev)
	assert.Equal(t, []string{inspect}, f.Strings())
}

func TestRemove(t *testing.T) {
	d, f := newTestDocker("false")
	prev, err := d.Remove(context.Background(), "pgdb")
	require.NoError(t, err)
	assert.Equal(t, Stopped, prev)
	assert.Equal(t, []string{inspect, "docker rm -f pgdb"}, f.Strings())

	d, f = newTestDocker("missing")
	prev, err = d.Remove(context.Background(), "pgdb")
	require.NoError(t, err)
	assert.Equal(t, Missing, prev)
	assert.Equal(t, []string{inspect}, f.Strings())
}
