package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/timjrobinson/hub-monorepo/internal/hubevents/eventlog"
)

var usageCmd = &cobra.Command{
	Use:   "usage <account> <store>",
	Short: "Show cached message count and earliest retained message for an account's store",
	Args:  cobra.ExactArgs(2),
	RunE:  runUsage,
}

func runUsage(cmd *cobra.Command, args []string) error {
	account, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid account %q: %w", args[0], err)
	}
	store, err := parseStoreKind(args[1])
	if err != nil {
		return err
	}

	kv, evLog, _, err := openStore()
	if err != nil {
		return err
	}
	defer kv.Close()

	cache, err := buildCache(evLog)
	if err != nil {
		return err
	}

	usage, err := cache.GetUsage(account, store, nil)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		return enc.Encode(map[string]any{
			"account":          account,
			"store":            store.String(),
			"used":             usage.Used,
			"earliest_ts_hash": usage.EarliestTsHash,
			"needs_refresh":    usage.NeedsRefresh,
		})
	}

	fmt.Printf("account=%d store=%s used=%d earliest_ts_hash=%x\n", account, store, usage.Used, usage.EarliestTsHash)
	return nil
}

func parseStoreKind(s string) (eventlog.StoreKind, error) {
	switch s {
	case "casts":
		return eventlog.StoreCasts, nil
	case "links":
		return eventlog.StoreLinks, nil
	case "reactions":
		return eventlog.StoreReactions, nil
	case "userdata":
		return eventlog.StoreUserData, nil
	case "verifications":
		return eventlog.StoreVerifications, nil
	case "usernameproofs":
		return eventlog.StoreUsernameProofs, nil
	default:
		return eventlog.StoreUnknown, fmt.Errorf("unknown store %q", s)
	}
}
