package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/pyt/internal/appserver"
	"github.com/joescharf/pyt/internal/daemon"
	"github.com/joescharf/pyt/internal/output"
	"github.com/joescharf/pyt/internal/procinfo"
	"github.com/joescharf/pyt/internal/runner"
)

const serverName = "server"

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Manage the application server",
	Long: `Start and stop the application server configured by server.command.

The server runs detached with its output in the server log. Its PID is kept
in the server PID file; a PID file left behind by a dead server is removed
the next time any server command looks at it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serverStatusRun()
	},
}

var serverStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the server unless it is already running",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serverStartRun()
	},
}

var serverStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Ask the server to shut down and wait for it to exit",
	PreRun: func(cmd *cobra.Command, args []string) {
		_ = viper.BindPFlag("server.stop_timeout", cmd.Flags().Lookup("timeout"))
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return serverStopRun()
	},
}

var serverStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the server is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serverStatusRun()
	},
}

var serverRestartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Stop the server, then start it again",
	PreRun: func(cmd *cobra.Command, args []string) {
		_ = viper.BindPFlag("server.stop_timeout", cmd.Flags().Lookup("timeout"))
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := serverStopRun(); err != nil {
			return err
		}
		return serverStartRun()
	},
}

func init() {
	serverStopCmd.Flags().Duration("timeout", daemon.DefaultStopTimeout, "How long to wait for the server to exit")
	serverRestartCmd.Flags().Duration("timeout", daemon.DefaultStopTimeout, "How long to wait for the server to exit")

	serverCmd.AddCommand(serverStartCmd)
	serverCmd.AddCommand(serverStopCmd)
	serverCmd.AddCommand(serverStatusCmd)
	serverCmd.AddCommand(serverRestartCmd)
	rootCmd.AddCommand(serverCmd)
}

// serverPIDPath returns server.pid_file, defaulting to <pyenv>/var/run/server.pid.
func serverPIDPath(p *project) (string, error) {
	if path := viper.GetString("server.pid_file"); path != "" {
		return p.rel(path), nil
	}
	dir, err := p.Env.Run()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "server.pid"), nil
}

// serverLogPath returns server.log_file, defaulting to <pyenv>/var/log/server.log.
func serverLogPath(p *project) (string, error) {
	if path := viper.GetString("server.log_file"); path != "" {
		return p.rel(path), nil
	}
	dir, err := p.Env.Log()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "server.log"), nil
}

// serverController builds the controller for the server PID file. Every
// event is recorded in the history and then passed to hooks.
func serverController(p *project, hooks ...daemon.Observer) (*daemon.Controller, error) {
	pidPath, err := serverPIDPath(p)
	if err != nil {
		return nil, err
	}
	record := eventRecorder(serverName, strings.Join(viper.GetStringSlice("server.command"), " "))
	observe := func(e daemon.Event) {
		record(e)
		for _, h := range hooks {
			h(e)
		}
	}
	return daemon.ForPIDFile(pidPath,
		daemon.WithObserver(observe),
		daemon.WithLogger(logger.With("daemon", serverName)),
	), nil
}

// serverSpawner starts server.command from the project root inside the
// virtualenv, with its bin dir first on PATH. A bare argv[0] found in the
// virtualenv bin dir is used from there.
func serverSpawner(p *project) (*appserver.Spawner, error) {
	argv := viper.GetStringSlice("server.command")
	if len(argv) == 0 {
		return nil, errors.New("server.command is not configured")
	}
	argv = append([]string(nil), argv...)
	if !strings.ContainsRune(argv[0], filepath.Separator) {
		if prog, err := p.Env.Prog(argv[0]); err == nil {
			argv[0] = prog
		}
	}
	logPath, err := serverLogPath(p)
	if err != nil {
		return nil, err
	}
	return &appserver.Spawner{
		Command:    argv,
		Dir:        p.Root,
		Env:        prependPath(runner.MergeEnv(os.Environ(), []string{"VIRTUAL_ENV=" + p.Env.Path()}, nil), p.Env.BinDir()),
		LogPath:    logPath,
		LogBackups: viper.GetInt("server.log_backups"),
	}, nil
}

func serverStartRun() error {
	p, err := loadProject()
	if err != nil {
		return err
	}
	sp, err := serverSpawner(p)
	if err != nil {
		return err
	}
	already := false
	c, err := serverController(p, func(e daemon.Event) {
		if e.Kind == daemon.EventAlreadyRunning {
			already = true
		}
	})
	if err != nil {
		return err
	}

	if dryRun {
		st, err := c.Status()
		if err != nil {
			return err
		}
		if st.Running() {
			ui.Info("Server already running (pid %d)", st.PID)
			return nil
		}
		ui.DryRunMsg("Would start: %s", strings.Join(sp.Command, " "))
		return nil
	}

	st, err := c.Start(sp.Spawn)
	if err != nil {
		return err
	}
	if already {
		ui.Info("Server already running (pid %d)", st.PID)
		return nil
	}
	ui.Success("Server started (pid %d), log %s", st.PID, sp.LogPath)
	return nil
}

func serverStopRun() error {
	p, err := loadProject()
	if err != nil {
		return err
	}
	sig, err := appserver.ParseSignal(viper.GetString("server.grace_signal"))
	if err != nil {
		return fmt.Errorf("server.grace_signal: %w", err)
	}
	timeout := viper.GetDuration("server.stop_timeout")

	c, err := serverController(p)
	if err != nil {
		return err
	}
	st, err := c.Status()
	if err != nil {
		return err
	}
	if !st.Running() {
		ui.Info("Server is not running")
		return nil
	}
	if dryRun {
		ui.DryRunMsg("Would send %s to pid %d and wait %s", sig, st.PID, timeout)
		return nil
	}

	if err := c.Stop(sig, timeout); err != nil {
		if errors.Is(err, daemon.ErrShutdownTimeout) {
			ui.Warning("Server still running; PID file kept")
		}
		return err
	}
	ui.Success("Server stopped (pid %d)", st.PID)
	return nil
}

func serverStatusRun() error {
	p, err := loadProject()
	if err != nil {
		return err
	}
	c, err := serverController(p)
	if err != nil {
		return err
	}
	st, err := c.Status()
	if err != nil {
		return err
	}
	if !st.Running() {
		fmt.Fprintf(ui.Out, "server: %s\n", output.StateColor(st.State.String()))
		return nil
	}
	fmt.Fprintf(ui.Out, "server: %s (pid %d)\n", output.StateColor(st.State.String()), st.PID)
	if !verbose {
		return nil
	}

	info, err := procinfo.Describe(st.PID)
	if err != nil {
		logger.Debug("process details unavailable", "pid", st.PID, "error", err)
		return nil
	}
	table := ui.Table([]string{"Field", "Value"})
	rows := [][]string{
		{"command", info.Cmdline},
		{"uptime", info.Uptime(time.Now()).String()},
		{"memory", output.Bytes(info.RSS)},
		{"threads", fmt.Sprintf("%d", info.Threads)},
	}
	for _, r := range rows {
		_ = table.Append(r)
	}
	return table.Render()
}

// prependPath puts dir in front of PATH in env.
func prependPath(env []string, dir string) []string {
	out := make([]string, 0, len(env)+1)
	found := false
	for _, kv := range env {
		if v, ok := strings.CutPrefix(kv, "PATH="); ok {
			kv = "PATH=" + dir + string(os.PathListSeparator) + v
			found = true
		}
		out = append(out, kv)
	}
	if !found {
		out = append(out, "PATH="+dir)
	}
	return out
}
