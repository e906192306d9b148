package cmd

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/pyt/internal/container"
	"github.com/joescharf/pyt/internal/models"
	"github.com/joescharf/pyt/internal/output"
	"github.com/joescharf/pyt/internal/runner"
)

const dbName = "db"

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the database container",
	Long: `Run the project database in a docker container described by the db.* keys.

'pyt db migrate' applies Django migrations through the manage module and then
runs dbschema_hook, if set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return dbStatusRun()
	},
}

var dbStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Create or start the database container",
	RunE: func(cmd *cobra.Command, args []string) error {
		return dbStartRun()
	},
}

var dbStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the database container",
	RunE: func(cmd *cobra.Command, args []string) error {
		return dbStopRun()
	},
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the database container state",
	RunE: func(cmd *cobra.Command, args []string) error {
		return dbStatusRun()
	},
}

var dbRmCmd = &cobra.Command{
	Use:   "rm",
	Short: "Remove the database container",
	RunE: func(cmd *cobra.Command, args []string) error {
		return dbRmRun()
	},
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply migrations and run dbschema_hook",
	RunE: func(cmd *cobra.Command, args []string) error {
		return dbMigrateRun()
	},
}

func init() {
	dbCmd.AddCommand(dbStartCmd)
	dbCmd.AddCommand(dbStopCmd)
	dbCmd.AddCommand(dbStatusCmd)
	dbCmd.AddCommand(dbRmCmd)
	dbCmd.AddCommand(dbMigrateCmd)
	rootCmd.AddCommand(dbCmd)
}

func dbSpec() container.Spec {
	return container.Spec{
		Name:    viper.GetString("db.name"),
		Image:   viper.GetString("db.image"),
		Ports:   viper.GetStringSlice("db.ports"),
		Env:     viper.GetStringSlice("db.env"),
		Volumes: viper.GetStringSlice("db.volumes"),
	}
}

// docker returns the container client. In dry-run mode it still queries
// docker for real so the report reflects the current state.
func docker() *container.Docker {
	if dryRun {
		return container.New(&runner.ExecRunner{Logger: logger})
	}
	return container.New(newRunner(ui.Out, ui.ErrOut))
}

func dbStartRun() error {
	spec := dbSpec()
	if err := spec.Validate(); err != nil {
		return err
	}
	d := docker()
	ctx := context.Background()

	st, err := d.Status(ctx, spec.Name)
	if err != nil {
		return err
	}
	switch {
	case st == container.Running:
		ui.Info("Database %s already running", spec.Name)
		return nil
	case dryRun && st == container.Missing:
		ui.DryRunMsg("Would run: %s %s", d.Bin, strings.Join(spec.RunArgs(), " "))
		return nil
	case dryRun:
		ui.DryRunMsg("Would run: %s start %s", d.Bin, spec.Name)
		return nil
	}

	if _, err := d.Start(ctx, spec); err != nil {
		return err
	}
	recordEvent(dbName, models.EventStarted, 0, spec.Image)
	if st == container.Missing {
		ui.Success("Database %s created from %s", spec.Name, spec.Image)
	} else {
		ui.Success("Database %s started", spec.Name)
	}
	return nil
}

func dbStopRun() error {
	name := viper.GetString("db.name")
	if name == "" {
		return errors.New("db.name is required")
	}
	d := docker()
	ctx := context.Background()

	st, err := d.Status(ctx, name)
	if err != nil {
		return err
	}
	if st != container.Running {
		ui.Info("Database %s is %s", name, st)
		return nil
	}
	if dryRun {
		ui.DryRunMsg("Would run: %s stop %s", d.Bin, name)
		return nil
	}
	if _, err := d.Stop(ctx, name); err != nil {
		return err
	}
	recordEvent(dbName, models.EventStopped, 0, "")
	ui.Success("Database %s stopped", name)
	return nil
}

func dbStatusRun() error {
	name := viper.GetString("db.name")
	if name == "" {
		return errors.New("db.name is required")
	}
	st, err := docker().Status(context.Background(), name)
	if err != nil {
		return err
	}
	fmt.Fprintf(ui.Out, "%s: %s\n", name, output.StateColor(string(st)))
	return nil
}

func dbRmRun() error {
	name := viper.GetString("db.name")
	if name == "" {
		return errors.New("db.name is required")
	}
	d := docker()
	if dryRun {
		ui.DryRunMsg("Would run: %s rm -f %s", d.Bin, name)
		return nil
	}
	prev, err := d.Remove(context.Background(), name)
	if err != nil {
		return err
	}
	if prev == container.Missing {
		ui.Info("Database %s does not exist", name)
		return nil
	}
	recordEvent(dbName, models.EventRemoved, 0, "")
	ui.Success("Database %s removed", name)
	return nil
}

func dbMigrateRun() error {
	p, err := loadProject()
	if err != nil {
		return err
	}
	r := newRunner(ui.Out, ui.ErrOut)
	ctx := context.Background()

	if err := p.Env.Manage(ctx, r, viper.GetString("manage"), "migrate", "--noinput"); err != nil {
		return err
	}
	if hook := viper.GetString("dbschema_hook"); hook != "" {
		if err := runHook(ctx, r, p, hook); err != nil {
			return fmt.Errorf("dbschema_hook: %w", err)
		}
	}
	ui.Success("Database migrated")
	return nil
}

// runHook runs a configured shell command from the project root with the
// virtualenv bin directory on PATH.
func runHook(ctx context.Context, r runner.Runner, p *project, hook string) error {
	shell, flag := "sh", "-c"
	if runtime.GOOS == "windows" {
		shell, flag = "cmd", "/C"
	}
	return r.Run(ctx, runner.Command{
		Name:  shell,
		Args:  []string{flag, hook},
		Dir:   p.Root,
		Env:   []string{"VIRTUAL_ENV=" + p.Env.Path()},
		Paths: []string{p.Env.BinDir()},
	})
}
