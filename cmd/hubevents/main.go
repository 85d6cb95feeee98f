// Command hubevents is a standalone operator CLI for the store event
// handler: tailing the event log, triggering a prune pass, and inspecting
// per-account usage — grounded on cmd/bd's command-tree conventions.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/timjrobinson/hub-monorepo/internal/hubevents/config"
	"github.com/timjrobinson/hub-monorepo/internal/hubevents/eventid"
	"github.com/timjrobinson/hub-monorepo/internal/hubevents/eventlog"
	"github.com/timjrobinson/hub-monorepo/internal/hubkv"
)

var (
	dataDir    string
	configFile string
	jsonOutput bool

	rootCtx    context.Context
	rootCancel context.CancelFunc
)

// bootstrap is the shape of hubevents.toml: the handful of settings needed
// before anything else can be loaded (which directory holds the pebble
// store, which YAML file holds the rest of the settings). TOML rather than
// YAML here, matching how the teacher's formula loader picks TOML for its
// own small, hand-authored bootstrap files.
type bootstrap struct {
	DataDir    string `toml:"data_dir"`
	ConfigFile string `toml:"config_file"`
}

func loadBootstrap(path string) bootstrap {
	b := bootstrap{DataDir: ".hubevents/data", ConfigFile: ".hubevents/config.yaml"}
	data, err := os.ReadFile(path)
	if err != nil {
		return b
	}
	if _, err := toml.Decode(string(data), &b); err != nil {
		fmt.Fprintf(os.Stderr, "hubevents: warning: malformed %s, using defaults: %v\n", path, err)
	}
	return b
}

var rootCmd = &cobra.Command{
	Use:           "hubevents",
	Short:         "Operate a Farcaster Hub store event handler",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCtx, rootCancel = context.WithCancel(context.Background())
	defer rootCancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		rootCancel()
	}()

	boot := loadBootstrap("hubevents.toml")
	dataDir = boot.DataDir
	configFile = boot.ConfigFile

	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", dataDir, "pebble data directory")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "emit machine-readable JSON output")

	rootCmd.AddCommand(tailCmd, pruneCmd, usageCmd, statsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "hubevents: %v\n", err)
		os.Exit(1)
	}
}

func openStore() (*hubkv.Store, *eventlog.Log, config.Settings, error) {
	settings, err := config.Load(configFile)
	if err != nil {
		return nil, nil, config.Settings{}, err
	}
	kv, err := hubkv.Open(dataDir)
	if err != nil {
		return nil, nil, config.Settings{}, err
	}
	return kv, eventlog.NewLog(kv), settings, nil
}

// parseID parses a decimal event ID from a CLI argument.
func parseID(s string) (eventid.ID, error) {
	var v uint64
	if _, err := fmt.Sscanf(s, "%d", &v); err != nil {
		return 0, fmt.Errorf("invalid event id %q: %w", s, err)
	}
	return eventid.ID(v), nil
}
