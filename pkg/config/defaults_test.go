package config

import (
	"testing"
	"time"

	"github.com/marmos91/objio/internal/bytesize"
)

func TestApplyDefaults_Logging(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default log format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default log output 'stdout', got %q", cfg.Logging.Output)
	}
}

func TestApplyDefaults_ShutdownTimeout(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown timeout 30s, got %v", cfg.ShutdownTimeout)
	}
}

func TestApplyDefaults_Layout(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Layout.ObjectSize != 4*bytesize.MiB {
		t.Errorf("Expected default object size 4MiB, got %v", cfg.Layout.ObjectSize)
	}
	if cfg.Layout.StripeUnit != cfg.Layout.ObjectSize {
		t.Errorf("Expected stripe unit to default to object size, got %v", cfg.Layout.StripeUnit)
	}
	if cfg.Layout.StripeCount != 1 {
		t.Errorf("Expected default stripe count 1, got %d", cfg.Layout.StripeCount)
	}
	if cfg.Layout.ObjectPrefix != DefaultObjectPrefix {
		t.Errorf("Expected default object prefix %q, got %q", DefaultObjectPrefix, cfg.Layout.ObjectPrefix)
	}
}

func TestApplyDefaults_StripeUnitFollowsObjectSize(t *testing.T) {
	cfg := &Config{Layout: LayoutConfig{ObjectSize: bytesize.MiB}}
	ApplyDefaults(cfg)

	if cfg.Layout.StripeUnit != bytesize.MiB {
		t.Errorf("Expected stripe unit 1MiB, got %v", cfg.Layout.StripeUnit)
	}
}

func TestApplyDefaults_StoreAndRuntime(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Store.Type != StoreTypeMemory {
		t.Errorf("Expected default store type %q, got %q", StoreTypeMemory, cfg.Store.Type)
	}
	if cfg.Cluster.MaxInFlight != 64 {
		t.Errorf("Expected default max in flight 64, got %d", cfg.Cluster.MaxInFlight)
	}
	if cfg.WorkQueue.Workers != 4 || cfg.WorkQueue.QueueSize != 1000 {
		t.Errorf("Expected default work queue 4/1000, got %d/%d", cfg.WorkQueue.Workers, cfg.WorkQueue.QueueSize)
	}
	if cfg.Watcher.RewatchDelay != 100*time.Millisecond {
		t.Errorf("Expected default rewatch delay 100ms, got %v", cfg.Watcher.RewatchDelay)
	}
	if cfg.Watcher.MaxRewatchDelay != 10*time.Second {
		t.Errorf("Expected default max rewatch delay 10s, got %v", cfg.Watcher.MaxRewatchDelay)
	}
	if cfg.Watcher.NotifyTimeout != 5*time.Second {
		t.Errorf("Expected default notify timeout 5s, got %v", cfg.Watcher.NotifyTimeout)
	}
}

func TestApplyDefaults_Metrics(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Metrics.Port != 0 {
		t.Errorf("Expected no metrics port while disabled, got %d", cfg.Metrics.Port)
	}

	cfg = &Config{Metrics: MetricsConfig{Enabled: true}}
	ApplyDefaults(cfg)
	if cfg.Metrics.Port != 9090 {
		t.Errorf("Expected default metrics port 9090, got %d", cfg.Metrics.Port)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{
			Level:  "debug",
			Format: "json",
			Output: "stderr",
		},
		ShutdownTimeout: 5 * time.Second,
		Layout: LayoutConfig{
			ObjectSize:   bytesize.MiB,
			StripeUnit:   64 * bytesize.KiB,
			StripeCount:  8,
			ObjectPrefix: "vm1",
		},
		Store:   StoreConfig{Type: "BADGER"},
		Watcher: WatcherConfig{NotifyTimeout: time.Second},
	}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected log level normalized to 'DEBUG', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected explicit format 'json' preserved, got %q", cfg.Logging.Format)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("Expected explicit shutdown timeout preserved, got %v", cfg.ShutdownTimeout)
	}
	if cfg.Layout.StripeUnit != 64*bytesize.KiB || cfg.Layout.StripeCount != 8 {
		t.Errorf("Expected explicit layout preserved, got %+v", cfg.Layout)
	}
	if cfg.Store.Type != StoreTypeBadger {
		t.Errorf("Expected store type normalized to %q, got %q", StoreTypeBadger, cfg.Store.Type)
	}
	if cfg.Watcher.NotifyTimeout != time.Second {
		t.Errorf("Expected explicit notify timeout preserved, got %v", cfg.Watcher.NotifyTimeout)
	}
}

func TestGetDefaultConfig_IsValid(t *testing.T) {
	if err := Validate(GetDefaultConfig()); err != nil {
		t.Fatalf("Expected default config to be valid, got: %v", err)
	}
}
