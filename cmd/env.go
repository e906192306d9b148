package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Show the resolved project directories",
	RunE: func(cmd *cobra.Command, args []string) error {
		return envRun()
	},
}

func init() {
	rootCmd.AddCommand(envCmd)
}

func envRun() error {
	p, err := loadProject()
	if err != nil {
		return err
	}
	pidPath, err := serverPIDPath(p)
	if err != nil {
		return err
	}
	logPath, err := serverLogPath(p)
	if err != nil {
		return err
	}
	dbPath := viper.GetString("db_path")
	if dbPath == "" {
		dbPath = filepath.Join(p.Env.Path(), "var", "pyt.db")
	}

	python := "(not created)"
	if py, err := p.Env.Python(); err == nil {
		python = py
	}

	table := ui.Table([]string{"Name", "Path"})
	rows := [][]string{
		{"project", p.Root},
		{"build", p.Dirs.OutDir},
		{"pyenv", p.Env.Path()},
		{"python", python},
		{"sdists", p.rel(viper.GetString("sdists_dir"))},
		{"server pid", pidPath},
		{"server log", logPath},
		{"history db", dbPath},
		{"shared folder", fmt.Sprintf("%t", p.Shared)},
	}
	for _, r := range rows {
		_ = table.Append(r)
	}
	return table.Render()
}
