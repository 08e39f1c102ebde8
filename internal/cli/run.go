package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/tonyperkins/homelab/internal/logging"
	"github.com/tonyperkins/homelab/internal/monitor"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the WAN monitor (the default)",
	RunE:  runMonitor,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runMonitor(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}
	logger, closer, err := newLogger(cfg, os.Stdout)
	if err != nil {
		return err
	}
	defer closer.Close()

	client, err := newClient(cfg, logging.Component(logger, "gateway"))
	if err != nil {
		return err
	}
	log := logging.Component(logger, "monitor").WithField("transport", cfg.Transport)
	return monitor.New(client, monitorOptions(cfg), log).Run(cmd.Context())
}
