package config

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/marmos91/objio/internal/bytesize"
	"github.com/marmos91/objio/pkg/objectstore/memory"
)

// yamlSafePath converts a filesystem path to a YAML-safe representation.
// On Windows, backslashes in double-quoted YAML strings are interpreted as
// escape sequences (e.g. \U -> Unicode escape), causing parse errors.
func yamlSafePath(p string) string {
	return filepath.ToSlash(p)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
logging:
  level: "debug"

layout:
  object_size: 1MiB
  stripe_unit: 64Ki
  stripe_count: 4
  object_prefix: vm1

store:
  type: badger
  badger:
    path: "`+yamlSafePath(dir)+`/objects"

watcher:
  rewatch_delay: 250ms
  notify_timeout: 2s
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected log level 'DEBUG', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Layout.ObjectSize != bytesize.MiB {
		t.Errorf("Expected object size 1MiB, got %v", cfg.Layout.ObjectSize)
	}
	if cfg.Layout.StripeUnit != 64*bytesize.KiB {
		t.Errorf("Expected stripe unit 64KiB, got %v", cfg.Layout.StripeUnit)
	}
	if cfg.Layout.StripeCount != 4 {
		t.Errorf("Expected stripe count 4, got %d", cfg.Layout.StripeCount)
	}
	if cfg.Store.Type != StoreTypeBadger {
		t.Errorf("Expected store type badger, got %q", cfg.Store.Type)
	}
	if !strings.HasSuffix(cfg.Store.Badger.Path, "/objects") {
		t.Errorf("Expected badger path ending in /objects, got %q", cfg.Store.Badger.Path)
	}
	if cfg.Watcher.RewatchDelay != 250*time.Millisecond {
		t.Errorf("Expected rewatch delay 250ms, got %v", cfg.Watcher.RewatchDelay)
	}
	if cfg.Watcher.NotifyTimeout != 2*time.Second {
		t.Errorf("Expected notify timeout 2s, got %v", cfg.Watcher.NotifyTimeout)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.ShutdownTimeout)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err != nil {
		t.Fatalf("Expected no error when loading default config, got: %v", err)
	}
	if !reflect.DeepEqual(cfg, GetDefaultConfig()) {
		t.Errorf("Expected default config, got %+v", cfg)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: INFO
`)
	t.Setenv("OBJIO_LOGGING_LEVEL", "warn")
	t.Setenv("OBJIO_LAYOUT_OBJECT_SIZE", "8MiB")
	t.Setenv("OBJIO_WATCHER_NOTIFY_TIMEOUT", "750ms")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "WARN" {
		t.Errorf("Expected env override 'WARN', got %q", cfg.Logging.Level)
	}
	if cfg.Layout.ObjectSize != 8*bytesize.MiB {
		t.Errorf("Expected env override 8MiB, got %v", cfg.Layout.ObjectSize)
	}
	if cfg.Watcher.NotifyTimeout != 750*time.Millisecond {
		t.Errorf("Expected env override 750ms, got %v", cfg.Watcher.NotifyTimeout)
	}
}

func TestLoad_InvalidConfig(t *testing.T) {
	path := writeConfig(t, `
layout:
  object_size: 1000
  stripe_unit: 300
  stripe_count: 2
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Expected validation error for unaligned layout")
	}
	if !strings.Contains(err.Error(), "validation failed") {
		t.Errorf("Expected validation failure, got: %v", err)
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	path := writeConfig(t, "logging: [unterminated\n")

	if _, err := Load(path); err == nil {
		t.Fatal("Expected error for malformed YAML")
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Layout.StripeUnit = 512 * bytesize.KiB
	cfg.Layout.StripeCount = 8
	cfg.Store.Type = StoreTypeS3
	cfg.Store.S3.Bucket = "images"
	cfg.Watcher.NotifyTimeout = 3 * time.Second

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Saved config missing: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 && perm != 0666 {
		// 0666 only on platforms without unix permissions
		t.Errorf("Expected mode 0600, got %v", perm)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read saved config: %v", err)
	}
	if !strings.Contains(string(data), "stripe_unit: 512KiB") {
		t.Errorf("Expected human-readable stripe unit in saved config:\n%s", data)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load saved config: %v", err)
	}
	if !reflect.DeepEqual(cfg, loaded) {
		t.Errorf("Round trip mismatch:\nsaved:  %+v\nloaded: %+v", cfg, loaded)
	}
}

func TestMustLoad_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")

	_, err := MustLoad(path)
	if err == nil {
		t.Fatal("Expected error for missing config file")
	}
	if !strings.Contains(err.Error(), "objio config init") {
		t.Errorf("Expected init instructions, got: %v", err)
	}
}

func TestGetConfigDir_XDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	if got := GetConfigDir(); got != filepath.Join(dir, "objio") {
		t.Errorf("Expected %q, got %q", filepath.Join(dir, "objio"), got)
	}
	if DefaultConfigExists() {
		t.Error("Expected no default config in an empty directory")
	}
}

func TestDecodeHooks(t *testing.T) {
	byteHook := byteSizeDecodeHook().(func(reflect.Type, reflect.Type, any) (any, error))
	sizeType := reflect.TypeOf(bytesize.ByteSize(0))

	got, err := byteHook(reflect.TypeOf(""), sizeType, "4MiB")
	if err != nil || got != 4*bytesize.MiB {
		t.Errorf("Expected 4MiB, got %v (err %v)", got, err)
	}
	got, err = byteHook(reflect.TypeOf(0.0), sizeType, float64(4096))
	if err != nil || got != bytesize.ByteSize(4096) {
		t.Errorf("Expected 4096, got %v (err %v)", got, err)
	}
	if _, err := byteHook(reflect.TypeOf(""), sizeType, "lots"); err == nil {
		t.Error("Expected error for unparseable size")
	}

	durHook := durationDecodeHook().(func(reflect.Type, reflect.Type, any) (any, error))
	got, err = durHook(reflect.TypeOf(""), reflect.TypeOf(time.Duration(0)), "1m30s")
	if err != nil || got != 90*time.Second {
		t.Errorf("Expected 90s, got %v (err %v)", got, err)
	}

	// Other target types pass through untouched.
	got, err = durHook(reflect.TypeOf(""), reflect.TypeOf(""), "1m30s")
	if err != nil || got != "1m30s" {
		t.Errorf("Expected passthrough, got %v (err %v)", got, err)
	}
}

func TestCreateStore(t *testing.T) {
	ctx := context.Background()

	store, err := CreateStore(ctx, StoreConfig{Type: StoreTypeMemory})
	if err != nil {
		t.Fatalf("Failed to create memory store: %v", err)
	}
	if _, ok := store.(*memory.Store); !ok {
		t.Errorf("Expected *memory.Store, got %T", store)
	}
	_ = store.Close()

	store, err = CreateStore(ctx, StoreConfig{Type: StoreTypeBadger, Badger: BadgerStoreConfig{InMemory: true}})
	if err != nil {
		t.Fatalf("Failed to create badger store: %v", err)
	}
	if err := store.HealthCheck(ctx); err != nil {
		t.Errorf("Expected healthy badger store, got: %v", err)
	}
	_ = store.Close()

	if _, err := CreateStore(ctx, StoreConfig{Type: StoreTypeS3}); err == nil {
		t.Error("Expected error for s3 store without bucket")
	}
	if _, err := CreateStore(ctx, StoreConfig{Type: "tape"}); err == nil {
		t.Error("Expected error for unknown store type")
	}
}

func TestCreateCluster(t *testing.T) {
	cfg := GetDefaultConfig()

	cl, err := CreateCluster(context.Background(), cfg, prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("Failed to create cluster: %v", err)
	}
	defer func() { _ = cl.Close() }()

	c, err := cl.Connect()
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	if c.ClientID() == 0 {
		t.Error("Expected non-zero client id")
	}

	q := CreateWorkQueue("test", cfg.WorkQueue)
	defer q.Stop(time.Second)
	if !q.Queue(func() {}) {
		t.Error("Expected started queue to accept work")
	}
}
