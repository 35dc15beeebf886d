package cmd

import (
	"github.com/spf13/cobra"
)

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Manage host groups",
}

var groupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List group labels with their host counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		reg, err := hostService.ListHosts(cmd.Context())
		if err != nil {
			return err
		}
		for _, group := range reg.Groups() {
			printf(cmd, "%s\t%d\n", group, len(reg.InGroup(group)))
		}
		return nil
	},
}

var groupRenameCmd = &cobra.Command{
	Use:   "rename <from> <to>",
	Short: "Move every host in a group to another group",
	Long: `Move every host whose group is <from> into <to>. An empty <to> moves the
hosts back to the default group.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		moved, err := hostService.RenameGroup(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		printf(cmd, "Moved %d hosts from %q to %q\n", moved, args[0], args[1])
		return nil
	},
}

func init() {
	groupCmd.AddCommand(groupListCmd, groupRenameCmd)
	rootCmd.AddCommand(groupCmd)
}
