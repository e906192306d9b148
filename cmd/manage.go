package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var manageCmd = &cobra.Command{
	Use:   "manage [-- args...]",
	Short: "Run a Django management command in the virtualenv",
	Long: `Run python -m <manage> with the given arguments, where <manage> is the
module configured in 'manage'. Use -- before arguments that start with a dash:

  pyt manage -- runserver --noreload`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return manageRun(args)
	},
}

var collectStaticCmd = &cobra.Command{
	Use:   "collectstatic",
	Short: "Collect static files without prompting",
	RunE: func(cmd *cobra.Command, args []string) error {
		return collectStaticRun()
	},
}

func init() {
	manageCmd.AddCommand(collectStaticCmd)
	rootCmd.AddCommand(manageCmd)
}

func manageRun(args []string) error {
	p, err := loadProject()
	if err != nil {
		return err
	}
	return p.Env.Manage(context.Background(), newRunner(ui.Out, ui.ErrOut), viper.GetString("manage"), args...)
}

func collectStaticRun() error {
	p, err := loadProject()
	if err != nil {
		return err
	}
	if err := p.Env.CollectStatic(context.Background(), newRunner(ui.Out, ui.ErrOut), viper.GetString("manage")); err != nil {
		return err
	}
	ui.Success("Static files collected")
	return nil
}
