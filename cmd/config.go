package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/xsocket/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the effective configuration",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Load the configuration file with defaults and XSOCKET_* overrides applied,
and report whether it is valid.

Examples:
  xsocket config validate -c xsocket.yml`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "INVALID: %v\n", err)
			os.Exit(1)
		}
		iface := cfg.Capture.Interface
		if iface == "" {
			iface = "<unset>"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "VALID: capture on %s with %s engine, metrics enabled=%t\n",
			iface, cfg.Capture.Engine, cfg.Metrics.Enabled)
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(configFile)
		if err != nil {
			exitWithError("failed to load config", err)
		}
		if err := config.Dump(cmd.OutOrStdout(), cfg); err != nil {
			exitWithError("failed to print config", err)
		}
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)
}
