package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tonyperkins/homelab/internal/addr"
)

var classifyCmd = &cobra.Command{
	Use:   "classify IP...",
	Short: "Print whether each address is private, public or invalid",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, ip := range args {
			fmt.Fprintf(cmd.OutOrStdout(), "%-18s %s\n", ip, addr.Classify(ip))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}
