package config

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/marmos91/objio/internal/cli/output"
	"github.com/marmos91/objio/pkg/config"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the effective configuration",
	Long: `Display the configuration after defaults and environment overrides.

Table output summarizes the main settings; json and yaml print everything.

Examples:
  objio config show
  objio config show -o yaml
  OBJIO_LAYOUT_STRIPE_COUNT=4 objio config show`,
	RunE: runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath(cmd))
	if err != nil {
		return err
	}

	printer, err := newPrinter(cmd)
	if err != nil {
		return err
	}
	if printer.Format() != output.FormatTable {
		return printer.Print(cfg)
	}
	return printer.Print(summary(cfg))
}

// summary lists the settings an operator usually checks.
func summary(cfg *config.Config) *output.KeyValues {
	kv := &output.KeyValues{}
	kv.Add("logging.level", cfg.Logging.Level).
		Add("logging.format", cfg.Logging.Format).
		Add("layout.object_size", cfg.Layout.ObjectSize.String()).
		Add("layout.stripe_unit", cfg.Layout.StripeUnit.String()).
		Add("layout.stripe_count", strconv.FormatUint(cfg.Layout.StripeCount, 10)).
		Add("layout.object_prefix", cfg.Layout.ObjectPrefix).
		Add("store.type", cfg.Store.Type)

	switch cfg.Store.Type {
	case config.StoreTypeBadger:
		kv.Add("store.badger.path", cfg.Store.Badger.Path)
	case config.StoreTypeS3:
		kv.Add("store.s3.bucket", cfg.Store.S3.Bucket).
			Add("store.s3.region", cfg.Store.S3.Region).
			Add("store.s3.endpoint", cfg.Store.S3.Endpoint)
	}

	kv.Add("work_queue.workers", strconv.Itoa(cfg.WorkQueue.Workers)).
		Add("watcher.rewatch_delay", cfg.Watcher.RewatchDelay.String()).
		Add("watcher.notify_timeout", cfg.Watcher.NotifyTimeout.String()).
		Add("metrics.enabled", strconv.FormatBool(cfg.Metrics.Enabled))
	if cfg.Metrics.Enabled {
		kv.Add("metrics.port", fmt.Sprintf("%d", cfg.Metrics.Port))
	}
	return kv
}
