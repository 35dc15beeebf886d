package cmd

import (
	"github.com/spf13/cobra"

	"github.com/zjrosen/vhosts/internal/presentation"
)

var (
	listFormat string
	listGroup  string
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List virtual hosts",
	Long: `List every virtual host in the registry, grouped and sorted by domain.

Examples:
  vhosts list
  vhosts list --group Work
  vhosts list --format json | jq '.[].domain'`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		reg, err := hostService.ListHosts(cmd.Context())
		if err != nil {
			return err
		}
		formatter := presentation.NewFormatter(cmd.OutOrStdout())
		return formatter.FormatHosts(presentation.FromRegistry(reg, listGroup), listFormat)
	},
}

func init() {
	listCmd.Flags().StringVarP(&listFormat, "format", "o", presentation.FormatTable, "Output format: table, json or yaml")
	listCmd.Flags().StringVarP(&listGroup, "group", "g", "", "Only show hosts in this group")
	rootCmd.AddCommand(listCmd)
}
