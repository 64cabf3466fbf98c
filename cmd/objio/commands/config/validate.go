package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/objio/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load a configuration file, apply defaults and check every setting,
including that the striping layout is consistent.

Examples:
  objio config validate
  objio config validate --config /etc/objio/config.yaml`,
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := configPath(cmd)
	if _, err := config.MustLoad(path); err != nil {
		return err
	}
	if path == "" {
		path = config.GetDefaultConfigPath()
	}

	printer, err := newPrinter(cmd)
	if err != nil {
		return err
	}
	printer.Success(fmt.Sprintf("Configuration is valid: %s", path))
	return nil
}
