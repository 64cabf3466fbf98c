// Package config implements configuration management subcommands.
package config

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/marmos91/objio/internal/cli/output"
)

// Cmd is the config subcommand.
var Cmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long: `Manage objio configuration files.

Subcommands:
  init      Create a configuration file
  show      Display the effective configuration
  validate  Validate a configuration file`,
}

func init() {
	Cmd.AddCommand(initCmd)
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(validateCmd)
}

// configPath returns the --config flag inherited from the root command.
func configPath(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("config")
	return path
}

func newPrinter(cmd *cobra.Command) (*output.Printer, error) {
	name, _ := cmd.Flags().GetString("output")
	if name == "" {
		name = "table"
	}
	format, err := output.ParseFormat(name)
	if err != nil {
		return nil, err
	}
	noColor, _ := cmd.Flags().GetBool("no-color")
	return output.NewPrinter(cmd.OutOrStdout(), format, !noColor && isatty.IsTerminal(os.Stdout.Fd())), nil
}
