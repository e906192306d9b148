package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var cleanAll bool

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete compiled Python files",
	Long: `Delete *.pyc files under the configured sources (or the project root when
none are configured). With --all the build directory is removed too.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cleanRun()
	},
}

func init() {
	cleanCmd.Flags().BoolVar(&cleanAll, "all", false, "Also remove the build directory")
	rootCmd.AddCommand(cleanCmd)
}

func cleanRun() error {
	p, err := loadProject()
	if err != nil {
		return err
	}

	roots := sources()
	if len(roots) == 0 {
		roots = []string{"."}
	}
	var removed int
	for _, src := range roots {
		n, err := removePyc(p.rel(src), p.Env.Path())
		removed += n
		if err != nil {
			return err
		}
	}
	if dryRun {
		ui.DryRunMsg("Would delete %d .pyc file(s)", removed)
	} else {
		ui.Success("Deleted %d .pyc file(s)", removed)
	}

	if cleanAll {
		if dryRun {
			ui.DryRunMsg("Would remove %s", p.Dirs.OutDir)
			return nil
		}
		// The tool log for this command lives in the build dir.
		if logCloser != nil {
			_ = logCloser.Close()
			logCloser = nil
		}
		if err := os.RemoveAll(p.Dirs.OutDir); err != nil {
			return fmt.Errorf("remove build dir: %w", err)
		}
		ui.Success("Removed %s", p.Dirs.OutDir)
	}
	return nil
}

// removePyc deletes *.pyc under root, skipping the virtualenv.
func removePyc(root, skip string) (int, error) {
	var n int
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			if path == skip {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".pyc" {
			return nil
		}
		n++
		if dryRun {
			ui.VerboseLog("would delete %s", path)
			return nil
		}
		ui.VerboseLog("delete %s", path)
		return os.Remove(path)
	})
	return n, err
}
