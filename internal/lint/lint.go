package lint

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/joescharf/pyt/internal/pyenv"
	"github.com/joescharf/pyt/internal/runner"
)

// Tool is a supported Python linter.
type Tool string

const (
	Pylint   Tool = "pylint"
	Pyflakes Tool = "pyflakes"
)

// Tools lists the linters in the order `pyt lint` runs them.
var Tools = []Tool{Pyflakes, Pylint}

// ParseTool validates a tool name.
func ParseTool(name string) (Tool, error) {
	switch Tool(strings.ToLower(strings.TrimSpace(name))) {
	case Pylint:
		return Pylint, nil
	case Pyflakes:
		return Pyflakes, nil
	}
	return "", fmt.Errorf("unknown lint tool %q (want pylint or pyflakes)", name)
}

// Targets returns the paths to lint. A non-empty mods (comma separated)
// replaces the configured sources.
func Targets(sources []string, mods string) []string {
	var out []string
	if strings.TrimSpace(mods) != "" {
		for m := range strings.SplitSeq(mods, ",") {
			if m = strings.TrimSpace(m); m != "" {
				out = append(out, m)
			}
		}
		return out
	}
	for _, s := range sources {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Linter runs a lint tool from the project virtualenv.
type Linter struct {
	Env     *pyenv.Env
	Runner  runner.Runner
	SrcRoot string
}

// Run lints targets with tool. Findings make the tool exit non-zero, which is
// returned as a *runner.CommandError.
func (l *Linter) Run(ctx context.Context, tool Tool, targets []string) error {
	if len(targets) == 0 {
		return fmt.Errorf("nothing to lint: configure sources or pass --mod")
	}
	var (
		prog string
		err  error
	)
	switch tool {
	case Pylint:
		prog, err = l.Env.Pylint()
	case Pyflakes:
		prog, err = l.Env.Pyflakes()
	default:
		return fmt.Errorf("unknown lint tool %q", tool)
	}
	if err != nil {
		return err
	}
	return l.Runner.Run(ctx, runner.Command{Name: prog, Args: targets, Dir: l.SrcRoot})
}

// LogPath returns where a tool's report goes when not printed to stdout.
func LogPath(outDir string, tool Tool) string {
	return filepath.Join(outDir, string(tool)+".log")
}
