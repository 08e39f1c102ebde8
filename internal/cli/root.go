// Package cli wires configuration, logging and the gateway clients into the
// wanguard commands.
package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string

	rootCmd = &cobra.Command{
		Use:   "wanguard",
		Short: "Keep a router's WAN port on a public address",
		Long: `wanguard watches the address held by a router's WAN port, either through
the management controller's REST API or over SSH. When the port comes up
with a private (RFC 1918) address it flaps the port until a public address
is obtained.

Configuration files in the older layout, with "omada" and "er707" sections,
still load; "wanguard doctor" flags them for migration.

Run without a subcommand to start the monitor.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runMonitor,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level from the config file")
}

// Execute runs the root command. Cancelling ctx stops the monitor cleanly.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
