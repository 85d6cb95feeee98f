// Package config loads the runtime tunables of the event handler — commit
// admission policy, pruning defaults, and the Farcaster epoch — the way the
// rest of the hub loads settings: a viper instance with registered defaults,
// overridable from an optional YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config keys, following the dotted-namespace convention of the wider
// config package (decision.*, deploy.*, ...).
const (
	KeyLockMaxPending        = "events.lock-max-pending"
	KeyLockTimeout           = "events.lock-timeout"
	KeyPruneTimeLimitDefault = "events.prune-time-limit-default"
	KeyEpochMS               = "events.epoch-ms"
)

// FarcasterEpochMS is the default epoch (2021-01-01T00:00:00Z in Unix
// milliseconds), matching the Farcaster protocol's own time origin.
const FarcasterEpochMS int64 = 1609459200000

// Settings is the event handler's runtime configuration.
type Settings struct {
	// LockMaxPending bounds how many commit attempts may wait for the
	// commit slot before new attempts are rejected with ErrTooBusy.
	LockMaxPending int64 `json:"lock_max_pending" yaml:"lock-max-pending"`
	// LockTimeout bounds how long a single commit attempt waits for the
	// slot.
	LockTimeout time.Duration `json:"lock_timeout" yaml:"lock-timeout"`
	// PruneTimeLimitDefault is used when a caller invokes prune without an
	// explicit time limit.
	PruneTimeLimitDefault time.Duration `json:"prune_time_limit_default" yaml:"prune-time-limit-default"`
	// EpochMS is the zero point the event ID generator's timestamp field
	// counts milliseconds from.
	EpochMS int64 `json:"epoch_ms" yaml:"epoch-ms"`
}

// registerDefaults installs the built-in defaults onto v.
func registerDefaults(v *viper.Viper) {
	v.SetDefault(KeyLockMaxPending, 1000)
	v.SetDefault(KeyLockTimeout, "500ms")
	v.SetDefault(KeyPruneTimeLimitDefault, "72h")
	v.SetDefault(KeyEpochMS, FarcasterEpochMS)
}

// Default returns Settings built entirely from the built-in defaults, with
// no file on disk.
func Default() Settings {
	v := viper.New()
	registerDefaults(v)
	return settingsFromViper(v)
}

// Load reads path (a YAML file) over the built-in defaults. A missing file
// is not an error — Load falls back to Default() — since the event handler
// must start up with sane settings even in a workspace that has never
// configured it.
func Load(path string) (Settings, error) {
	v := viper.New()
	registerDefaults(v)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return settingsFromViper(v), nil
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return Settings{}, fmt.Errorf("hubevents/config: read %s: %w", path, err)
	}
	return settingsFromViper(v), nil
}

func settingsFromViper(v *viper.Viper) Settings {
	return Settings{
		LockMaxPending:        v.GetInt64(KeyLockMaxPending),
		LockTimeout:           v.GetDuration(KeyLockTimeout),
		PruneTimeLimitDefault: v.GetDuration(KeyPruneTimeLimitDefault),
		EpochMS:               v.GetInt64(KeyEpochMS),
	}
}
