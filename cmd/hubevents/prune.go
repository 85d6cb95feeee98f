package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/timjrobinson/hub-monorepo/internal/hubevents/eventlog"
)

var pruneTimeLimit time.Duration

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete log entries older than the configured time limit",
	RunE:  runPrune,
}

func init() {
	pruneCmd.Flags().DurationVar(&pruneTimeLimit, "time-limit", 0, "override events.prune-time-limit-default")
}

func runPrune(cmd *cobra.Command, _ []string) error {
	kv, _, settings, err := openStore()
	if err != nil {
		return err
	}
	defer kv.Close()

	limit := settings.PruneTimeLimitDefault
	if pruneTimeLimit > 0 {
		limit = pruneTimeLimit
	}

	deleted, err := eventlog.PruneEvents(rootCtx, kv, settings.EpochMS, time.Now().UnixMilli(), limit)
	if err != nil {
		return err
	}
	fmt.Printf("pruned %d event(s) older than %s\n", deleted, limit)
	return nil
}
