package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/pyt/internal/pyenv"
)

var setupRecreate bool

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create the project virtualenv and install requirements",
	Long: `Create the virtualenv, link the project sources into it, and install every
file listed in 'requirements'.

With local_only (the default) packages come from sdists_dir only; run
'pyt sdists' to refresh that cache.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return setupRun()
	},
}

var installCmd = &cobra.Command{
	Use:   "install [requirements...]",
	Short: "pip install requirement files into the virtualenv",
	RunE: func(cmd *cobra.Command, args []string) error {
		return installRun(args)
	},
}

var sdistsCmd = &cobra.Command{
	Use:   "sdists [requirements...]",
	Short: "Download requirement packages into the local sdists cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sdistsRun(args)
	},
}

func init() {
	setupCmd.Flags().BoolVar(&setupRecreate, "recreate", false, "Rebuild the virtualenv even if it exists")
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(sdistsCmd)
}

func setupRun() error {
	p, err := loadProject()
	if err != nil {
		return err
	}
	r := newRunner(ui.Out, ui.ErrOut)
	ctx := context.Background()

	if hook := viper.GetString("setup_hook"); hook != "" {
		ui.VerboseLog("Running setup_hook")
		if err := runHook(ctx, r, p, hook); err != nil {
			return fmt.Errorf("setup_hook: %w", err)
		}
	}

	if p.Env.Exists() && !setupRecreate {
		ui.Info("Virtualenv exists: %s", p.Env.Path())
	} else {
		ui.Info("Creating virtualenv: %s", p.Env.Path())
		if p.Shared {
			ui.VerboseLog("Sources are on a shared folder; pyenv lives on local disk")
		}
		err := p.Env.Create(ctx, r, pyenv.CreateOptions{
			SysPython:  viper.GetString("sys_python"),
			Virtualenv: viper.GetString("virtualenv"),
		})
		if err != nil {
			return fmt.Errorf("create virtualenv: %w", err)
		}
	}

	if dryRun {
		ui.DryRunMsg("Would write %s.pth into site-packages", p.Root)
	} else {
		pth, err := p.Env.AddSrcPth(ctx, r, p.Root, sources())
		if err != nil {
			return fmt.Errorf("link sources: %w", err)
		}
		ui.VerboseLog("Wrote %s", pth)
	}

	if err := installRequirements(ctx, p, viper.GetStringSlice("requirements")); err != nil {
		return err
	}
	ui.Success("Virtualenv ready: %s", p.Env.Path())
	return nil
}

func installRun(args []string) error {
	p, err := loadProject()
	if err != nil {
		return err
	}
	reqs := args
	if len(reqs) == 0 {
		reqs = viper.GetStringSlice("requirements")
	}
	if err := installRequirements(context.Background(), p, reqs); err != nil {
		return err
	}
	ui.Success("Installed %d requirement file(s)", len(reqs))
	return nil
}

func installRequirements(ctx context.Context, p *project, reqs []string) error {
	r := newRunner(ui.Out, ui.ErrOut)
	opts := pyenv.InstallOptions{
		LocalOnly: viper.GetBool("local_only"),
		FindLinks: p.rel(viper.GetString("sdists_dir")),
		Paths:     []string{p.Env.BinDir()},
	}
	for _, req := range reqs {
		ui.Info("Installing %s", req)
		if err := p.Env.Install(ctx, r, p.rel(req), opts); err != nil {
			return fmt.Errorf("install %s: %w", req, err)
		}
	}
	return nil
}

func sdistsRun(args []string) error {
	p, err := loadProject()
	if err != nil {
		return err
	}
	reqs := args
	if len(reqs) == 0 {
		reqs = viper.GetStringSlice("requirements")
	}
	dir := p.rel(viper.GetString("sdists_dir"))
	r := newRunner(ui.Out, ui.ErrOut)
	for _, req := range reqs {
		ui.Info("Downloading %s into %s", req, dir)
		if err := p.Env.Download(context.Background(), r, p.rel(req), dir); err != nil {
			return fmt.Errorf("download %s: %w", req, err)
		}
	}
	ui.Success("sdists cache refreshed: %s", dir)
	return nil
}
