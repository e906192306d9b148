package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/joescharf/pyt/internal/models"
	"github.com/joescharf/pyt/internal/output"
	"github.com/joescharf/pyt/internal/store"
)

var (
	historyDaemon string
	historyKind   string
	historyLimit  int
	historyPrune  int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded server and database lifecycle events",
	RunE: func(cmd *cobra.Command, args []string) error {
		return historyRun()
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyDaemon, "daemon", "", "Only events of this daemon (server, db)")
	historyCmd.Flags().StringVar(&historyKind, "kind", "", "Only events of this kind (started, stopped, stale, ...)")
	historyCmd.Flags().IntVar(&historyLimit, "limit", store.DefaultListLimit, "Maximum number of events")
	historyCmd.Flags().IntVar(&historyPrune, "prune", -1, "Delete all but the newest N events")
	rootCmd.AddCommand(historyCmd)
}

func historyRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	if historyPrune >= 0 {
		if dryRun {
			ui.DryRunMsg("Would keep the newest %d events", historyPrune)
			return nil
		}
		n, err := s.PruneEvents(ctx, historyPrune)
		if err != nil {
			return err
		}
		ui.Success("Pruned %d event(s)", n)
		return nil
	}

	events, err := s.ListEvents(ctx, store.EventFilter{
		Daemon: historyDaemon,
		Kind:   models.EventKind(historyKind),
		Limit:  historyLimit,
	})
	if err != nil {
		return err
	}
	if len(events) == 0 {
		ui.Info("No events recorded")
		return nil
	}

	table := ui.Table([]string{"Time", "Daemon", "Event", "PID", "Detail"})
	for _, e := range events {
		pid := ""
		if e.PID > 0 {
			pid = strconv.Itoa(e.PID)
		}
		_ = table.Append([]string{
			e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			e.Daemon,
			output.EventColor(string(e.Kind)),
			pid,
			e.Detail,
		})
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("render history: %w", err)
	}
	return nil
}
