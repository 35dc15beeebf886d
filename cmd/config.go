package cmd

import (
	"github.com/spf13/cobra"

	"github.com/zjrosen/vhosts/internal/config"
	"github.com/zjrosen/vhosts/internal/paths"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and edit the vhosts config file",
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file and the hosts file in use",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		printf(cmd, "config: %s\n", configFilePath())
		printf(cmd, "hosts:  %s\n", hostService.Path())
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a value in the config file, keeping comments",
	Long: `Set a value in the config file. Nested keys use dots.

Examples:
  vhosts config set lock.timeout 5s
  vhosts config set flags.direct-write true`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if args[0] == "hosts_file" {
			return setHostsFile(cmd, args[1])
		}
		if err := config.SetValue(configFilePath(), args[0], args[1]); err != nil {
			return err
		}
		printf(cmd, "Set %s in %s\n", args[0], configFilePath())
		return nil
	},
}

var configSetHostsCmd = &cobra.Command{
	Use:   "set-hosts <path>",
	Short: "Point vhosts at another hosts.json",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setHostsFile(cmd, args[0])
	},
}

func init() {
	configCmd.AddCommand(configPathCmd, configSetCmd, configSetHostsCmd)
	rootCmd.AddCommand(configCmd)
}

// setHostsFile stores the resolved hosts path so a directory argument becomes <dir>/hosts.json.
func setHostsFile(cmd *cobra.Command, path string) error {
	resolved := paths.ResolveHostsFile(path)
	if err := config.SetHostsFile(configFilePath(), resolved); err != nil {
		return err
	}
	printf(cmd, "hosts_file set to %s\n", resolved)
	return nil
}
