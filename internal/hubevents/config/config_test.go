package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultSettings(t *testing.T) {
	s := Default()
	if s.LockMaxPending != 1000 {
		t.Errorf("LockMaxPending = %d, want 1000", s.LockMaxPending)
	}
	if s.LockTimeout != 500*time.Millisecond {
		t.Errorf("LockTimeout = %s, want 500ms", s.LockTimeout)
	}
	if s.PruneTimeLimitDefault != 72*time.Hour {
		t.Errorf("PruneTimeLimitDefault = %s, want 72h", s.PruneTimeLimitDefault)
	}
	if s.EpochMS != FarcasterEpochMS {
		t.Errorf("EpochMS = %d, want %d", s.EpochMS, FarcasterEpochMS)
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s != Default() {
		t.Errorf("Load of a missing file = %+v, want Default()", s)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	contents := "events:\n  lock-max-pending: 50\n  prune-time-limit-default: 24h\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.LockMaxPending != 50 {
		t.Errorf("LockMaxPending = %d, want 50", s.LockMaxPending)
	}
	if s.PruneTimeLimitDefault != 24*time.Hour {
		t.Errorf("PruneTimeLimitDefault = %s, want 24h", s.PruneTimeLimitDefault)
	}
	// Unset keys keep their registered default.
	if s.LockTimeout != 500*time.Millisecond {
		t.Errorf("LockTimeout = %s, want unchanged default 500ms", s.LockTimeout)
	}
}
