package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/pyt/internal/daemon"
	"github.com/joescharf/pyt/internal/logging"
	"github.com/joescharf/pyt/internal/models"
	"github.com/joescharf/pyt/internal/output"
	"github.com/joescharf/pyt/internal/pyenv"
	"github.com/joescharf/pyt/internal/runner"
	"github.com/joescharf/pyt/internal/store"
)

// projectFileName is the per-project config file; its directory is the project root.
const projectFileName = "pyt.yaml"

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Store
	logger    = slog.New(slog.NewTextHandler(io.Discard, nil))
	logCloser io.Closer
	proj      *project

	verbose  bool
	dryRun   bool
	localDir string
)

// newRunner builds the runner for external commands, replaceable in tests.
var newRunner = func(stdout, stderr io.Writer) runner.Runner {
	if dryRun {
		return &dryRunner{}
	}
	return &runner.ExecRunner{Stdout: stdout, Stderr: stderr, Logger: logger}
}

var rootCmd = &cobra.Command{
	Use:   "pyt",
	Short: "Python project tool - virtualenv, lint, server and database",
	Long: `pyt manages the development environment of a Python/Django project.
It builds the project virtualenv from a local sdists cache, runs linters and
management commands, and starts and stops the application server and the
database container.`,
	SilenceUsage:       true,
	SilenceErrors:      true,
	DisableAutoGenTag:  true,
	PersistentPreRunE:  setupLogging,
	PersistentPostRunE: teardown,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ./pyt.yaml, then ~/.config/pyt/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&localDir, "localdir", "", "Keep build and pyenv dirs under <localdir>/<project>-dirs")
}

func initConfig() {
	viper.SetEnvPrefix("PYT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults()

	viper.SetConfigType("yaml")
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		_ = viper.ReadInConfig()
		return
	}

	// User-wide settings first, then the project file on top.
	if home, err := os.UserHomeDir(); err == nil {
		global := filepath.Join(home, ".config", "pyt", "config.yaml")
		if _, err := os.Stat(global); err == nil {
			viper.SetConfigFile(global)
			_ = viper.ReadInConfig()
		}
	}
	if cfgPath, err := configFilePath(); err == nil {
		if _, err := os.Stat(cfgPath); err == nil {
			viper.SetConfigFile(cfgPath)
			_ = viper.MergeInConfig()
		}
	}
}

// setDefaults registers every config key with its default.
func setDefaults() {
	viper.SetDefault("pyenv_dir", "pyenv")
	viper.SetDefault("sdists_dir", ".sdists")
	viper.SetDefault("sources", []string{})
	viper.SetDefault("manage", "")
	viper.SetDefault("sys_python", "python3")
	viper.SetDefault("virtualenv", "")
	viper.SetDefault("setup_hook", "")
	viper.SetDefault("requirements", []string{"requirements.txt"})
	viper.SetDefault("local_only", true)
	viper.SetDefault("db_path", "")

	viper.SetDefault("server.command", []string{})
	viper.SetDefault("server.pid_file", "")
	viper.SetDefault("server.log_file", "")
	viper.SetDefault("server.grace_signal", "QUIT")
	viper.SetDefault("server.stop_timeout", daemon.DefaultStopTimeout)
	viper.SetDefault("server.log_backups", 5)

	viper.SetDefault("db.name", "")
	viper.SetDefault("db.image", "")
	viper.SetDefault("db.ports", []string{})
	viper.SetDefault("db.env", []string{})
	viper.SetDefault("db.volumes", []string{})
	viper.SetDefault("dbschema_hook", "")

	viper.SetDefault("log.max_size_mb", logging.DefaultMaxSizeMB)
	viper.SetDefault("log.max_backups", logging.DefaultMaxBackups)
	viper.SetDefault("log.max_age_days", logging.DefaultMaxAgeDays)
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	// Project, store and logger are resolved lazily so config and version
	// run anywhere.
}

// skipProject marks commands that must not touch the project directories.
const skipProject = "pyt/skip-project"

// setupLogging opens the per-command tool log at <build>/<command>.log.
func setupLogging(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "help" || strings.HasPrefix(cmd.Name(), "__complete") {
		return nil
	}
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[skipProject] == "true" {
			return nil
		}
	}
	p, err := loadProject()
	if err != nil {
		return err
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	name := strings.ReplaceAll(strings.TrimPrefix(cmd.CommandPath(), cmd.Root().Name()+" "), " ", "-")
	l, closer, err := logging.New(logging.Config{
		Path:       filepath.Join(p.Dirs.OutDir, name+".log"),
		MaxSizeMB:  viper.GetInt("log.max_size_mb"),
		MaxBackups: viper.GetInt("log.max_backups"),
		MaxAgeDays: viper.GetInt("log.max_age_days"),
		Level:      level,
		Console:    ui.ErrOut,
	})
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	logger, logCloser = l, closer
	logger.Debug("command", "args", os.Args[1:], "root", p.Root, "pyenv", p.Env.Path())
	return nil
}

func teardown(_ *cobra.Command, _ []string) error {
	if dataStore != nil {
		_ = dataStore.Close()
		dataStore = nil
	}
	if logCloser != nil {
		_ = logCloser.Close()
		logCloser = nil
	}
	return nil
}

// project holds the resolved directories of the current project.
type project struct {
	Root   string
	Dirs   pyenv.Dirs
	Env    *pyenv.Env
	Shared bool
}

// loadProject resolves the project root and its build/pyenv directories.
func loadProject() (*project, error) {
	if proj != nil {
		return proj, nil
	}
	root, err := configDirFunc()
	if err != nil {
		return nil, err
	}
	root, err = filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	shared := false
	if localDir == "" {
		if shared, err = pyenv.SharedSrcRoot(root); err != nil {
			logger.Debug("shared mount check failed", "root", root, "error", err)
		}
	}
	home, _ := os.UserHomeDir()
	dirs := pyenv.Resolve(root, localDir, home, shared)

	proj = &project{
		Root:   root,
		Dirs:   dirs,
		Env:    pyenv.New(viper.GetString("pyenv_dir"), dirs.PyenvRoot),
		Shared: shared,
	}
	return proj, nil
}

// rel resolves a configured path against the project root.
func (p *project) rel(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.Root, path)
}

// sources returns the configured source directories.
func sources() []string {
	return viper.GetStringSlice("sources")
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	if dbPath == "" {
		p, err := loadProject()
		if err != nil {
			return nil, err
		}
		dbPath = filepath.Join(p.Env.Path(), "var", "pyt.db")
	}
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(context.Background()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// recordEvent stores a lifecycle event. History is best effort; failures
// only reach the tool log.
func recordEvent(name string, kind models.EventKind, pid int, detail string) {
	s, err := getStore()
	if err != nil {
		logger.Warn("event history unavailable", "error", err)
		return
	}
	e := &models.Event{Daemon: name, Kind: kind, PID: pid, Detail: detail}
	if err := s.RecordEvent(context.Background(), e); err != nil {
		logger.Warn("record event", "daemon", name, "kind", kind, "error", err)
	}
}

// eventRecorder adapts recordEvent to a daemon controller observer.
func eventRecorder(name, detail string) daemon.Observer {
	return func(e daemon.Event) {
		if dryRun {
			return
		}
		recordEvent(name, models.EventKind(e.Kind), e.PID, detail)
	}
}

// dryRunner prints commands instead of running them.
type dryRunner struct{}

func (d *dryRunner) Run(_ context.Context, c runner.Command) error {
	ui.DryRunMsg("Would run: %s", c.String())
	return nil
}

func (d *dryRunner) Output(ctx context.Context, c runner.Command) (string, error) {
	return "", d.Run(ctx, c)
}
