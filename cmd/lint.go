package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joescharf/pyt/internal/lint"
	"github.com/joescharf/pyt/internal/runner"
)

var (
	lintMods   string
	lintStdout bool
)

var lintCmd = &cobra.Command{
	Use:       "lint [pylint|pyflakes]...",
	Short:     "Run pyflakes and pylint over the project sources",
	ValidArgs: []string{string(lint.Pylint), string(lint.Pyflakes)},
	Long: `Run linters from the project virtualenv. Without arguments pyflakes and then
pylint run over the configured sources; --mod lints the given comma separated
modules instead.

Reports go to <build>/<tool>.log unless --stdout is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return lintRun(args)
	},
}

func init() {
	lintCmd.Flags().StringVar(&lintMods, "mod", "", "Comma separated modules to lint instead of sources")
	lintCmd.Flags().BoolVar(&lintStdout, "stdout", false, "Print reports instead of writing log files")
	rootCmd.AddCommand(lintCmd)
}

func lintRun(args []string) error {
	p, err := loadProject()
	if err != nil {
		return err
	}

	tools := lint.Tools
	if len(args) > 0 {
		tools = nil
		for _, a := range args {
			t, err := lint.ParseTool(a)
			if err != nil {
				return err
			}
			tools = append(tools, t)
		}
	}
	targets := lint.Targets(sources(), lintMods)

	var failed []lint.Tool
	for _, tool := range tools {
		err := lintOne(p, tool, targets)
		if runner.ExitCode(err) > 0 {
			failed = append(failed, tool)
			continue
		}
		if err != nil {
			return err
		}
		ui.Success("%s: clean", tool)
	}
	if len(failed) > 0 {
		return fmt.Errorf("lint findings from %v", failed)
	}
	return nil
}

func lintOne(p *project, tool lint.Tool, targets []string) error {
	out, errOut := ui.Out, ui.ErrOut
	logPath := lint.LogPath(p.Dirs.OutDir, tool)
	if !lintStdout && !dryRun {
		if err := os.MkdirAll(p.Dirs.OutDir, 0755); err != nil {
			return err
		}
		f, err := os.Create(logPath)
		if err != nil {
			return fmt.Errorf("open %s report: %w", tool, err)
		}
		defer func() { _ = f.Close() }()
		out, errOut = f, f
	}

	l := &lint.Linter{Env: p.Env, Runner: newRunner(out, errOut), SrcRoot: p.Root}
	err := l.Run(context.Background(), tool, targets)
	var ce *runner.CommandError
	if errors.As(err, &ce) && !lintStdout {
		ui.Warning("%s found problems, see %s", tool, logPath)
	}
	return err
}
