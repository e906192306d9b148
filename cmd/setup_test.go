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

const purelibCmd = " -c import sysconfig; print(sysconfig.get_paths()['purelib'])"

// stubPyenv makes the fake runner behave like venv creation: it drops empty
// python and pip executables into the virtualenv.
func stubPyenv(t *testing.T, f *runner.Fake) (bin, site string) {
	t.Helper()
	p, err := loadProject()
	require.NoError(t, err)
	bin = p.Env.BinDir()
	site = filepath.Join(p.Env.Path(), "lib", "site-packages")
	require.NoError(t, os.MkdirAll(site, 0755))

	exe := func(name string) string {
		if runtime.GOOS == "windows" {
			name += ".exe"
		}
		return filepath.Join(bin, name)
	}
	f.OnRun = func(c runner.Command) {
		if c.Name == viper.GetString("sys_python") {
			_ = os.MkdirAll(bin, 0755)
			for _, n := range []string{"python", "pip"} {
				_ = os.WriteFile(exe(n), nil, 0755)
			}
		}
	}
	f.Outputs[exe("python")+purelibCmd] = site
	return bin, site
}

func TestSetupRun(t *testing.T) {
	dir := testEnv(t)
	f := useFakeRunner(t)
	viper.Set("sources", []string{"src"})
	viper.Set("requirements", []string{"requirements.txt", "requirements-dev.txt"})
	bin, site := stubPyenv(t, f)
	pip := filepath.Join(bin, "pip")
	python := filepath.Join(bin, "python")
	if runtime.GOOS == "windows" {
		pip += ".exe"
		python += ".exe"
	}
	findLinks := "--find-links=file://" + filepath.ToSlash(filepath.Join(dir, ".sdists"))

	require.NoError(t, setupRun())

	assert.Equal(t, []string{
		"python3 -m venv " + filepath.Join(dir, "pyenv"),
		python + purelibCmd,
		pip + " install -r " + filepath.Join(dir, "requirements.txt") + " --no-index " + findLinks,
		pip + " install -r " + filepath.Join(dir, "requirements-dev.txt") + " --no-index " + findLinks,
	}, f.Strings())

	pth, err := os.ReadFile(filepath.Join(site, filepath.Base(dir)+".pth"))
	require.NoError(t, err)
	assert.Equal(t, "../../..\n../../../src\n", string(pth))
	assert.Contains(t, stdout(), "Virtualenv ready")
}

func TestSetupRun_ExistingEnvSkipsCreate(t *testing.T) {
	testEnv(t)
	f := useFakeRunner(t)
	viper.Set("requirements", []string{})
	bin, _ := stubPyenv(t, f)
	require.NoError(t, os.MkdirAll(bin, 0755))
	for _, n := range []string{"python", "pip"} {
		if runtime.GOOS == "windows" {
			n += ".exe"
		}
		require.NoError(t, os.WriteFile(filepath.Join(bin, n), nil, 0755))
	}

	require.NoError(t, setupRun())
	require.Len(t, f.Commands, 1, "only the site-packages lookup runs")
	assert.Contains(t, stdout(), "Virtualenv exists")
}

func TestSetupRun_HookFailureStops(t *testing.T) {
	testEnv(t)
	f := useFakeRunner(t)
	viper.Set("setup_hook", "make deps")
	shell := "sh -c make deps"
	if runtime.GOOS == "windows" {
		shell = "cmd /C make deps"
	}
	f.Errors[shell] = &runner.CommandError{Cmd: shell, Code: 2}

	err := setupRun()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setup_hook")
	assert.Len(t, f.Commands, 1)
}

func TestInstallRun_Online(t *testing.T) {
	dir := testEnv(t)
	f := useFakeRunner(t)
	viper.Set("local_only", false)
	bin, _ := stubPyenv(t, f)
	require.NoError(t, os.MkdirAll(bin, 0755))
	pip := filepath.Join(bin, "pip")
	if runtime.GOOS == "windows" {
		pip += ".exe"
	}
	require.NoError(t, os.WriteFile(pip, nil, 0755))

	require.NoError(t, installRun([]string{"extra.txt"}))
	assert.Equal(t, []string{pip + " install -r " + filepath.Join(dir, "extra.txt")}, f.Strings())
}

func TestInstallRun_NoPyenv(t *testing.T) {
	testEnv(t)
	useFakeRunner(t)

	err := installRun(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pip")
}

func TestSdistsRun(t *testing.T) {
	dir := testEnv(t)
	f := useFakeRunner(t)
	bin, _ := stubPyenv(t, f)
	require.NoError(t, os.MkdirAll(bin, 0755))
	pip := filepath.Join(bin, "pip")
	if runtime.GOOS == "windows" {
		pip += ".exe"
	}
	require.NoError(t, os.WriteFile(pip, nil, 0755))

	require.NoError(t, sdistsRun(nil))
	sdists := filepath.Join(dir, ".sdists")
	assert.Equal(t, []string{
		pip + " download -r " + filepath.Join(dir, "requirements.txt") + " -d " + sdists,
	}, f.Strings())
	assert.DirExists(t, sdists)
}
