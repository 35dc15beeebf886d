package cmd

import (
	"github.com/spf13/cobra"

	"github.com/zjrosen/vhosts/internal/flags"
)

var flagsCmd = &cobra.Command{
	Use:   "flags",
	Short: "List feature flags and whether they are enabled",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		registry := flags.New(cfg.Flags)
		for _, name := range flags.Names() {
			state := "off"
			if registry.Enabled(name) {
				state = "on"
			}
			printf(cmd, "%-14s %-3s  %s\n", name, state, flags.Descriptions[name])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(flagsCmd)
}
