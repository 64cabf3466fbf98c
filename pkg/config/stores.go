package config

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/marmos91/objio/internal/logger"
	"github.com/marmos91/objio/pkg/metrics"
	"github.com/marmos91/objio/pkg/objectstore"
	"github.com/marmos91/objio/pkg/objectstore/badger"
	"github.com/marmos91/objio/pkg/objectstore/memory"
	"github.com/marmos91/objio/pkg/objectstore/s3"
	"github.com/marmos91/objio/pkg/transport/local"
	"github.com/marmos91/objio/pkg/watcher"
	"github.com/marmos91/objio/pkg/workqueue"
)

// Object store backend types.
const (
	StoreTypeMemory = "memory"
	StoreTypeBadger = "badger"
	StoreTypeS3     = "s3"
)

// CreateStore creates an object store instance from configuration.
func CreateStore(ctx context.Context, cfg StoreConfig) (objectstore.Store, error) {
	logger.Debug("Creating object store", logger.KeyStoreType, cfg.Type)

	switch cfg.Type {
	case StoreTypeMemory, "":
		return memory.New(), nil
	case StoreTypeBadger:
		return createBadgerStore(cfg.Badger)
	case StoreTypeS3:
		return createS3Store(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown store type: %q", cfg.Type)
	}
}

func createBadgerStore(cfg BadgerStoreConfig) (objectstore.Store, error) {
	store, err := badger.Open(badger.Config{
		Path:       cfg.Path,
		InMemory:   cfg.InMemory,
		SyncWrites: cfg.SyncWrites,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}
	return store, nil
}

func createS3Store(ctx context.Context, cfg S3StoreConfig) (objectstore.Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 store requires bucket to be set")
	}

	store, err := s3.NewFromConfig(ctx, s3.Config{
		Bucket:          cfg.Bucket,
		Region:          cfg.Region,
		Endpoint:        cfg.Endpoint,
		KeyPrefix:       cfg.KeyPrefix,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		MaxRetries:      cfg.MaxRetries,
		ForcePathStyle:  cfg.ForcePathStyle,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 store: %w", err)
	}
	return store, nil
}

// CreateCluster opens the configured object store and starts an in-process
// cluster on it. Closing the cluster closes the store. When reg is non-nil
// the store is instrumented with Prometheus metrics.
func CreateCluster(ctx context.Context, cfg *Config, reg prometheus.Registerer) (*local.Cluster, error) {
	store, err := CreateStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if reg != nil {
		store = metrics.InstrumentStore(store, cfg.Store.Type, reg)
	}
	return local.NewCluster(store, local.Config{MaxInFlight: cfg.Cluster.MaxInFlight}), nil
}

// CreateWorkQueue creates and starts the callback work queue.
func CreateWorkQueue(name string, cfg WorkQueueConfig) *workqueue.Queue {
	q := workqueue.New(name, workqueue.Config{
		Workers:   cfg.Workers,
		QueueSize: cfg.QueueSize,
	})
	q.Start()
	return q
}

// WatcherConfig converts the watcher section to a watcher configuration.
func (c WatcherConfig) Watcher() watcher.Config {
	return watcher.Config{
		RewatchDelay:    c.RewatchDelay,
		MaxRewatchDelay: c.MaxRewatchDelay,
		NotifyTimeout:   c.NotifyTimeout,
	}
}
