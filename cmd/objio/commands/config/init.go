package config

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/objio/internal/cli/prompt"
	"github.com/marmos91/objio/pkg/config"
)

var (
	initForce       bool
	initInteractive bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file",
	Long: `Create an objio configuration file.

By default the file is created at $XDG_CONFIG_HOME/objio/config.yaml with
default settings. Use --config to choose another path and --interactive to
answer a few questions about the layout and the object store.

Examples:
  objio config init
  objio config init --interactive
  objio config init --config /etc/objio/config.yaml --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
	initCmd.Flags().BoolVarP(&initInteractive, "interactive", "i", false, "Prompt for settings")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := configPath(cmd)
	if path == "" {
		path = config.GetDefaultConfigPath()
	}

	if _, err := os.Stat(path); err == nil {
		ok, err := prompt.ConfirmWithForce(fmt.Sprintf("%s exists, overwrite", path), initForce)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	cfg := config.GetDefaultConfig()
	if initInteractive {
		if err := askConfig(cfg); err != nil {
			if prompt.IsAborted(err) {
				return nil
			}
			return err
		}
		config.ApplyDefaults(cfg)
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := config.SaveConfig(cfg, path); err != nil {
		return err
	}

	printer, err := newPrinter(cmd)
	if err != nil {
		return err
	}
	printer.Success(fmt.Sprintf("Configuration file created at: %s", path))
	printer.Printf("\nNext steps:\n")
	printer.Printf("  1. Review the layout and store sections\n")
	printer.Printf("  2. Run a benchmark with: objio bench --config %s\n", path)
	return nil
}

// askConfig fills cfg from interactive prompts.
func askConfig(cfg *config.Config) error {
	var err error

	if cfg.Layout.ObjectSize, err = prompt.InputByteSize("Object size", cfg.Layout.ObjectSize); err != nil {
		return err
	}
	if cfg.Layout.StripeCount, err = prompt.InputUint("Stripe count", cfg.Layout.StripeCount); err != nil {
		return err
	}
	if cfg.Layout.StripeCount > 1 {
		if cfg.Layout.StripeUnit, err = prompt.InputByteSize("Stripe unit", cfg.Layout.ObjectSize); err != nil {
			return err
		}
	} else {
		cfg.Layout.StripeUnit = cfg.Layout.ObjectSize
	}

	cfg.Store.Type, err = prompt.Select("Object store", []prompt.SelectOption{
		{Label: "memory", Value: config.StoreTypeMemory, Description: "Volatile, for testing"},
		{Label: "badger", Value: config.StoreTypeBadger, Description: "Embedded key-value store on local disk"},
		{Label: "s3", Value: config.StoreTypeS3, Description: "Amazon S3 or a compatible service"},
	})
	if err != nil {
		return err
	}

	switch cfg.Store.Type {
	case config.StoreTypeBadger:
		defaultPath := config.GetConfigDir() + "/data"
		if cfg.Store.Badger.Path, err = prompt.Input("Badger directory", defaultPath); err != nil {
			return err
		}
	case config.StoreTypeS3:
		if cfg.Store.S3.Bucket, err = prompt.Input("Bucket", ""); err != nil {
			return err
		}
		if cfg.Store.S3.Region, err = prompt.Input("Region", "us-east-1"); err != nil {
			return err
		}
		if cfg.Store.S3.Endpoint, err = prompt.Input("Endpoint (empty for AWS)", ""); err != nil {
			return err
		}
		cfg.Store.S3.ForcePathStyle = cfg.Store.S3.Endpoint != ""
	}

	if cfg.Metrics.Enabled, err = prompt.Confirm("Expose Prometheus metrics", false); err != nil {
		return err
	}
	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port, err = prompt.InputPort("Metrics port", 9090); err != nil {
			return err
		}
	}
	return nil
}
