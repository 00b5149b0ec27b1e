// Package cli wires the blockfeed commands.
package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCommand creates the root command for blockfeed
func NewRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "blockfeed",
		Short: "Ordered chain height delivery with acknowledgment-gated flow control",
		Long: `Blockfeed watches a chain source for new block heights and delivers
them to a consumer one at a time, strictly in order. The next height is
only released after the previous one has been acknowledged.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the config file")

	cmd.AddCommand(NewRunCommand(&configPath))
	cmd.AddCommand(NewInitCommand())
	cmd.AddCommand(NewConfigCommand(&configPath))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}
