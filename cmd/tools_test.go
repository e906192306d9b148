package cmd

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/pyt/internal/runner"
)

// stubProgs creates empty executables in the project virtualenv.
func stubProgs(t *testing.T, names ...string) map[string]string {
	t.Helper()
	p, err := loadProject()
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(p.Env.BinDir(), 0755))
	paths := make(map[string]string)
	for _, n := range names {
		file := n
		if runtime.GOOS == "windows" {
			file += ".exe"
		}
		paths[n] = filepath.Join(p.Env.BinDir(), file)
		require.NoError(t, os.WriteFile(paths[n], nil, 0755))
	}
	return paths
}

func TestLintRun_WritesReports(t *testing.T) {
	dir := testEnv(t)
	f := useFakeRunner(t)
	viper.Set("sources", []string{"app", "lib"})
	progs := stubProgs(t, "pylint", "pyflakes")

	require.NoError(t, lintRun(nil))
	assert.Equal(t, []string{
		progs["pyflakes"] + " app lib",
		progs["pylint"] + " app lib",
	}, f.Strings())
	assert.FileExists(t, filepath.Join(dir, "build", "pyflakes.log"))
	assert.FileExists(t, filepath.Join(dir, "build", "pylint.log"))
}

func TestLintRun_FindingsFail(t *testing.T) {
	testEnv(t)
	f := useFakeRunner(t)
	progs := stubProgs(t, "pylint", "pyflakes")
	lintMods = "app.views"
	t.Cleanup(func() { lintMods = "" })
	f.Errors[progs["pyflakes"]+" app.views"] = &runner.CommandError{Cmd: "pyflakes", Code: 1}

	err := lintRun(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pyflakes")
	assert.Len(t, f.Commands, 2, "pylint still runs after pyflakes findings")
	assert.Contains(t, stderr(), "pyflakes.log")
}

func TestLintRun_SelectTool(t *testing.T) {
	testEnv(t)
	f := useFakeRunner(t)
	viper.Set("sources", []string{"app"})
	progs := stubProgs(t, "pylint")
	lintStdout = true
	t.Cleanup(func() { lintStdout = false })

	require.NoError(t, lintRun([]string{"pylint"}))
	assert.Equal(t, []string{progs["pylint"] + " app"}, f.Strings())

	assert.Error(t, lintRun([]string{"flake8"}))
}

func TestCleanRun(t *testing.T) {
	dir := testEnv(t)
	viper.Set("sources", []string{"app"})
	pyc := filepath.Join(dir, "app", "pkg", "mod.pyc")
	keep := filepath.Join(dir, "app", "pkg", "mod.py")
	outside := filepath.Join(dir, "other.pyc")
	require.NoError(t, os.MkdirAll(filepath.Dir(pyc), 0755))
	for _, f := range []string{pyc, keep, outside} {
		require.NoError(t, os.WriteFile(f, nil, 0644))
	}

	require.NoError(t, cleanRun())
	assert.NoFileExists(t, pyc)
	assert.FileExists(t, keep)
	assert.FileExists(t, outside)
	assert.Contains(t, stdout(), "Deleted 1 .pyc")
}

func TestCleanRun_AllSkipsPyenv(t *testing.T) {
	dir := testEnv(t)
	venvPyc := filepath.Join(dir, "pyenv", "lib", "x.pyc")
	srcPyc := filepath.Join(dir, "x.pyc")
	build := filepath.Join(dir, "build")
	require.NoError(t, os.MkdirAll(filepath.Dir(venvPyc), 0755))
	require.NoError(t, os.MkdirAll(build, 0755))
	require.NoError(t, os.WriteFile(venvPyc, nil, 0644))
	require.NoError(t, os.WriteFile(srcPyc, nil, 0644))
	cleanAll = true
	t.Cleanup(func() { cleanAll = false })

	require.NoError(t, cleanRun())
	assert.NoFileExists(t, srcPyc)
	assert.FileExists(t, venvPyc)
	assert.NoDirExists(t, build)
}

func TestCleanRun_DryRun(t *testing.T) {
	dir := testEnv(t)
	dryRun = true
	ui.DryRun = true
	pyc := filepath.Join(dir, "x.pyc")
	require.NoError(t, os.WriteFile(pyc, nil, 0644))

	require.NoError(t, cleanRun())
	assert.FileExists(t, pyc)
	assert.Contains(t, stderr(), "Would delete 1 .pyc")
}

func TestManageRun(t *testing.T) {
	testEnv(t)
	f := useFakeRunner(t)
	viper.Set("manage", "mysite.manage")
	progs := stubProgs(t, "python")

	require.NoError(t, manageRun([]string{"check", "--deploy"}))
	require.NoError(t, collectStaticRun())
	assert.Equal(t, []string{
		progs["python"] + " -m mysite.manage check --deploy",
		progs["python"] + " -m mysite.manage collectstatic --noinput",
	}, f.Strings())
}

func TestManageRun_NoModule(t *testing.T) {
	testEnv(t)
	useFakeRunner(t)
	stubProgs(t, "python")

	err := manageRun(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "manage")
}

func TestEnvRun(t *testing.T) {
	dir := testEnv(t)

	require.NoError(t, envRun())
	out := stdout()
	assert.Contains(t, out, filepath.Join(dir, "build"))
	assert.Contains(t, out, "(not created)")
	assert.Contains(t, out, "server.pid")
}
