package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/cobra"

	"github.com/timjrobinson/hub-monorepo/internal/hubevents/eventid"
	"github.com/timjrobinson/hub-monorepo/internal/hubevents/eventlog"
)

var (
	tailFrom   string
	tailFollow bool
	tailPage   int
)

var tailCmd = &cobra.Command{
	Use:   "tail [--from ID] [--follow]",
	Short: "Print events from the log, optionally following new ones",
	RunE:  runTail,
}

func init() {
	tailCmd.Flags().StringVar(&tailFrom, "from", "0", "event id to start from")
	tailCmd.Flags().BoolVar(&tailFollow, "follow", false, "keep polling for new events")
	tailCmd.Flags().IntVar(&tailPage, "page-size", 200, "events fetched per log read")
}

func runTail(cmd *cobra.Command, _ []string) error {
	kv, log, _, err := openStore()
	if err != nil {
		return err
	}
	defer kv.Close()

	fromID, err := parseFromFlag(tailFrom)
	if err != nil {
		return err
	}

	if !tailFollow {
		page, err := log.GetEventsPage(fromID, tailPage)
		if err != nil {
			return err
		}
		printEvents(page.Events)
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = 0 // follow indefinitely

	for {
		select {
		case <-rootCtx.Done():
			return nil
		default:
		}

		page, err := log.GetEventsPage(fromID, tailPage)
		if err != nil {
			return err
		}
		if len(page.Events) == 0 {
			wait := bo.NextBackOff()
			select {
			case <-time.After(wait):
			case <-rootCtx.Done():
				return nil
			}
			continue
		}
		printEvents(page.Events)
		fromID = page.NextPageEvent
		bo.Reset()
	}
}

func parseFromFlag(s string) (eventid.ID, error) {
	if s == "" || s == "0" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid --from %q: %w", s, err)
	}
	return eventid.ID(v), nil
}

func printEvents(events []eventlog.Event) {
	for _, e := range events {
		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			_ = enc.Encode(map[string]any{
				"id":      uint64(e.ID),
				"kind":    e.Kind.String(),
				"account": e.Account,
				"store":   e.Store.String(),
			})
			continue
		}
		fmt.Printf("%s  %-20s account=%d store=%s\n", e.ID, e.Kind, e.Account, e.Store)
	}
}
