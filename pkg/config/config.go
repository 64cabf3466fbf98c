package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/objio/internal/bytesize"
)

// Config represents the objio configuration.
//
// It covers the ambient concerns (logging, tracing, metrics) and the knobs
// of the data path: the striping layout of images, the object store behind
// the local cluster, the callback work queue and the watcher timings.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (OBJIO_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// ShutdownTimeout is the maximum time to wait for in-flight work on exit
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Metrics contains Prometheus metrics server configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Layout is the default striping layout for new images
	Layout LayoutConfig `mapstructure:"layout" yaml:"layout"`

	// Store selects and configures the object store backend
	Store StoreConfig `mapstructure:"store" yaml:"store"`

	// Cluster configures the in-process cluster
	Cluster ClusterConfig `mapstructure:"cluster" yaml:"cluster"`

	// WorkQueue configures the queue running watcher callbacks
	WorkQueue WorkQueueConfig `mapstructure:"work_queue" yaml:"work_queue"`

	// Watcher configures watch registration and notify timings
	Watcher WatcherConfig `mapstructure:"watcher" yaml:"watcher"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled
	// Default: false
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	// Default: "localhost:4317"
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use insecure (non-TLS) connection
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	// Default: 1.0
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	// Enabled controls whether continuous profiling is enabled
	// Default: false
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server endpoint (URL)
	// Default: "http://localhost:4040"
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes specifies which profile types to collect
	// Default: ["cpu", "alloc_objects", "alloc_space", "inuse_objects", "inuse_space", "goroutines"]
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
// When Enabled is false, metrics are not registered at all.
type MetricsConfig struct {
	// Enabled controls whether metrics collection and HTTP server are enabled
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the metrics endpoint
	// Default: 9090
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// LayoutConfig is the striping layout of an image.
type LayoutConfig struct {
	// ObjectSize is the size of each backing object
	// Default: 4MiB
	ObjectSize bytesize.ByteSize `mapstructure:"object_size" validate:"required" yaml:"object_size"`

	// StripeUnit is the number of consecutive bytes placed in one object
	// before moving to the next object of the set. Must divide ObjectSize.
	// Default: ObjectSize
	StripeUnit bytesize.ByteSize `mapstructure:"stripe_unit" yaml:"stripe_unit"`

	// StripeCount is the number of objects a stripe spans
	// Default: 1
	StripeCount uint64 `mapstructure:"stripe_count" validate:"required,min=1" yaml:"stripe_count"`

	// ObjectPrefix names the backing objects: <prefix>.<object number>
	// Default: "objio_data"
	ObjectPrefix string `mapstructure:"object_prefix" validate:"required" yaml:"object_prefix"`
}

// StoreConfig selects the object store backend.
type StoreConfig struct {
	// Type is the backend: memory, badger or s3
	// Default: memory
	Type string `mapstructure:"type" validate:"required,oneof=memory badger s3" yaml:"type"`

	// Badger configures the badger backend (Type == "badger")
	Badger BadgerStoreConfig `mapstructure:"badger" yaml:"badger,omitempty"`

	// S3 configures the S3 backend (Type == "s3")
	S3 S3StoreConfig `mapstructure:"s3" yaml:"s3,omitempty"`
}

// BadgerStoreConfig configures the badger object store.
type BadgerStoreConfig struct {
	// Path is the database directory
	Path string `mapstructure:"path" yaml:"path,omitempty"`

	// InMemory keeps the database in memory (Path is ignored)
	InMemory bool `mapstructure:"in_memory" yaml:"in_memory,omitempty"`

	// SyncWrites fsyncs every write
	SyncWrites bool `mapstructure:"sync_writes" yaml:"sync_writes,omitempty"`
}

// S3StoreConfig configures the S3 object store.
type S3StoreConfig struct {
	Bucket         string `mapstructure:"bucket" yaml:"bucket,omitempty"`
	Region         string `mapstructure:"region" yaml:"region,omitempty"`
	Endpoint       string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	KeyPrefix      string `mapstructure:"key_prefix" yaml:"key_prefix,omitempty"`
	MaxRetries     int    `mapstructure:"max_retries" validate:"omitempty,min=0" yaml:"max_retries,omitempty"`
	ForcePathStyle bool   `mapstructure:"force_path_style" yaml:"force_path_style,omitempty"`

	// Static credentials. Leave empty to use the default AWS credential chain.
	// Override: OBJIO_STORE_S3_ACCESS_KEY_ID / OBJIO_STORE_S3_SECRET_ACCESS_KEY
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key,omitempty"`
}

// ClusterConfig configures the in-process cluster.
type ClusterConfig struct {
	// MaxInFlight bounds concurrently executing object requests
	// Default: 64
	MaxInFlight int64 `mapstructure:"max_in_flight" validate:"omitempty,min=1" yaml:"max_in_flight"`
}

// WorkQueueConfig configures the callback work queue.
type WorkQueueConfig struct {
	// Workers is the number of worker goroutines
	// Default: 4
	Workers int `mapstructure:"workers" validate:"required,min=1" yaml:"workers"`

	// QueueSize bounds callbacks waiting for a worker
	// Default: 1000
	QueueSize int `mapstructure:"queue_size" validate:"required,min=1" yaml:"queue_size"`
}

// WatcherConfig configures watch registration and notifies.
type WatcherConfig struct {
	// RewatchDelay is the first retry delay after a failed rewatch
	// Default: 100ms
	RewatchDelay time.Duration `mapstructure:"rewatch_delay" validate:"gt=0" yaml:"rewatch_delay"`

	// MaxRewatchDelay caps the exponential rewatch backoff
	// Default: 10s
	MaxRewatchDelay time.Duration `mapstructure:"max_rewatch_delay" validate:"gtefield=RewatchDelay" yaml:"max_rewatch_delay"`

	// NotifyTimeout bounds how long a notify waits for acks
	// Default: 5s
	NotifyTimeout time.Duration `mapstructure:"notify_timeout" validate:"gt=0" yaml:"notify_timeout"`
}

// Load loads configuration from file, environment, and defaults.
//
// A missing file is not an error: defaults (plus environment overrides)
// are used instead.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration, requiring the file to exist and explaining
// how to create one when it does not.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  objio config init\n\n"+
				"Or specify a custom config file:\n"+
				"  objio <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s\n\n"+
			"Please create the configuration file:\n"+
			"  objio config init --config %s",
			configPath, configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// SaveConfig saves the configuration to path in YAML format.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// 0600: the file may carry S3 credentials.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// OBJIO_LOGGING_LEVEL=DEBUG overrides logging.level
	v.SetEnvPrefix("OBJIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v, reflect.TypeOf(Config{}), "")

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

// bindEnvKeys registers every config key with viper. AutomaticEnv only
// consults the environment for keys viper already knows about, so without
// this an override for a key missing from the file would be ignored.
func bindEnvKeys(v *viper.Viper, t reflect.Type, prefix string) {
	for i := range t.NumField() {
		f := t.Field(i)
		key := f.Tag.Get("mapstructure")
		if key == "" {
			continue
		}
		if prefix != "" {
			key = prefix + "." + key
		}
		if f.Type.Kind() == reflect.Struct {
			bindEnvKeys(v, f.Type, key)
			continue
		}
		_ = v.BindEnv(key)
	}
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error).
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// configDecodeHooks returns a combined decode hook for ByteSize and
// time.Duration fields.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// byteSizeDecodeHook converts strings and numbers to bytesize.ByteSize, so
// config files can say "4MiB", "64Ki" or a plain byte count.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.Parse(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook converts strings like "30s" to time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			// Raw integers are nanoseconds
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns $XDG_CONFIG_HOME/objio, ~/.config/objio, or "." as
// a last resort.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "objio")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "objio")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
