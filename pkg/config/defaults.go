package config

import (
	"strings"
	"time"

	"github.com/marmos91/objio/internal/bytesize"
	"github.com/marmos91/objio/pkg/transport/local"
	"github.com/marmos91/objio/pkg/watcher"
	"github.com/marmos91/objio/pkg/workqueue"
)

// DefaultObjectPrefix names backing objects when no prefix is configured.
const DefaultObjectPrefix = "objio_data"

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values are replaced with defaults; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyShutdownTimeoutDefaults(cfg)
	applyMetricsDefaults(&cfg.Metrics)
	applyLayoutDefaults(&cfg.Layout)
	applyStoreDefaults(&cfg.Store)
	applyClusterDefaults(&cfg.Cluster)
	applyWorkQueueDefaults(&cfg.WorkQueue)
	applyWatcherDefaults(&cfg.Watcher)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	applyProfilingDefaults(&cfg.Profiling)
}

func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

func applyShutdownTimeoutDefaults(cfg *Config) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// applyMetricsDefaults sets the port only when metrics are enabled.
func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// applyLayoutDefaults fills in a 4MiB, single-object-stripe layout.
func applyLayoutDefaults(cfg *LayoutConfig) {
	if cfg.ObjectSize == 0 {
		cfg.ObjectSize = 4 * bytesize.MiB
	}
	if cfg.StripeCount == 0 {
		cfg.StripeCount = 1
	}
	if cfg.StripeUnit == 0 {
		cfg.StripeUnit = cfg.ObjectSize
	}
	if cfg.ObjectPrefix == "" {
		cfg.ObjectPrefix = DefaultObjectPrefix
	}
}

func applyStoreDefaults(cfg *StoreConfig) {
	if cfg.Type == "" {
		cfg.Type = StoreTypeMemory
	}
	cfg.Type = strings.ToLower(cfg.Type)

	if cfg.S3.Region == "" {
		cfg.S3.Region = "us-east-1"
	}
	if cfg.S3.MaxRetries == 0 {
		cfg.S3.MaxRetries = 3
	}
}

func applyClusterDefaults(cfg *ClusterConfig) {
	if cfg.MaxInFlight == 0 {
		cfg.MaxInFlight = local.DefaultMaxInFlight
	}
}

func applyWorkQueueDefaults(cfg *WorkQueueConfig) {
	def := workqueue.DefaultConfig()
	if cfg.Workers == 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = def.QueueSize
	}
}

func applyWatcherDefaults(cfg *WatcherConfig) {
	def := watcher.DefaultConfig()
	if cfg.RewatchDelay == 0 {
		cfg.RewatchDelay = def.RewatchDelay
	}
	if cfg.MaxRewatchDelay == 0 {
		cfg.MaxRewatchDelay = def.MaxRewatchDelay
	}
	if cfg.NotifyTimeout == 0 {
		cfg.NotifyTimeout = def.NotifyTimeout
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
