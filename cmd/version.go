package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Set from main via Execute.
var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

var versionCmd = &cobra.Command{
	Use:         "version",
	Short:       "Print version information",
	Annotations: map[string]string{skipProject: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return versionRun()
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func versionRun() error {
	fmt.Fprintf(ui.Out, "pyt %s (commit %s, built %s, %s/%s)\n",
		buildVersion, buildCommit, buildDate, runtime.GOOS, runtime.GOARCH)
	return nil
}
