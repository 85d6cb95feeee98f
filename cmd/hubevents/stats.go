package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print overall log statistics",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, _ []string) error {
	kv, evLog, settings, err := openStore()
	if err != nil {
		return err
	}
	defer kv.Close()

	events, err := evLog.GetEvents(0)
	if err != nil {
		return err
	}

	byKind := make(map[string]int)
	var first, last uint64
	for i, e := range events {
		byKind[e.Kind.String()]++
		if i == 0 {
			first = uint64(e.ID)
		}
		last = uint64(e.ID)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		return enc.Encode(map[string]any{
			"total_events":             len(events),
			"by_kind":                  byKind,
			"first_id":                 first,
			"last_id":                  last,
			"prune_time_limit_default": settings.PruneTimeLimitDefault.String(),
		})
	}

	fmt.Printf("total events: %d\n", len(events))
	for kind, n := range byKind {
		fmt.Printf("  %-20s %d\n", kind, n)
	}
	if len(events) > 0 {
		fmt.Printf("range: %d..%d\n", first, last)
	}
	return nil
}
