package main

import (
	"log"

	"github.com/timjrobinson/hub-monorepo/internal/hubevents/eventlog"
	"github.com/timjrobinson/hub-monorepo/internal/hubevents/storecache"
)

// buildCache rebuilds a storecache.Cache by replaying the full durable log
// through it. The CLI has no long-lived daemon process to keep a cache
// warm, so every usage invocation pays this cost — acceptable for an
// operator tool, not for the hub's own hot path (which keeps the cache
// resident and updates it incrementally via the commit coordinator).
func buildCache(evLog *eventlog.Log) (*storecache.Cache, error) {
	cache := storecache.New(nil)

	events, err := evLog.GetEvents(0)
	if err != nil {
		return nil, err
	}
	for _, e := range events {
		if err := cache.ProcessEvent(e); err != nil {
			log.Printf("hubevents: skipping unreadable event %s during replay: %v", e.ID, err)
		}
	}
	return cache, nil
}
