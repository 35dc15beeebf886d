package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/zjrosen/vhosts/internal/application/hosts"
	"github.com/zjrosen/vhosts/internal/domain/vhost"
)

var saveCmd = &cobra.Command{
	Use:   "save <file|->",
	Short: "Replace the whole registry with a hosts document",
	Long: `Replace the whole registry with the JSON hosts document read from a file,
or from stdin when the argument is "-". Legacy alias layouts are accepted and
written back in canonical form.

Saving does not read the current hosts.json, so it also repairs a corrupt file.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(cmd, args[0])
		if err != nil {
			return err
		}
		reg, skipped, err := hosts.DecodeFormat(data, hosts.FormatJSON)
		if err != nil {
			return err
		}
		if err := hostService.ReplaceAll(cmd.Context(), reg); err != nil {
			return err
		}
		printf(cmd, "Saved %d hosts to %s\n", len(reg), hostService.Path())
		if len(skipped) > 0 {
			printf(cmd, "Skipped malformed entries: %v\n", skipped)
		}
		return nil
	},
}

var (
	addDocroot  string
	addGroup    string
	addType     string
	addNoSSL    bool
	addInactive bool
	addAliases  []string
)

var addCmd = &cobra.Command{
	Use:   "add <domain>",
	Short: "Add a virtual host or update an existing one",
	Long: `Add a virtual host. If the domain already exists its record is replaced
with the given fields.

Examples:
  vhosts add shop.test --docroot ~/projects/shop/public --group Work
  vhosts add api.test --type proxy --no-ssl --alias v1.api.test`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		host := vhost.NewHost(args[0])
		host.Docroot = addDocroot
		host.Group = addGroup
		host.Type = addType
		host.SSL = !addNoSSL
		host.Active = !addInactive
		for _, value := range addAliases {
			host.Aliases = append(host.Aliases, vhost.NewAlias(value))
		}

		created, err := hostService.UpsertHost(cmd.Context(), host)
		if err != nil {
			return err
		}
		if created {
			printf(cmd, "Added %s\n", host.Domain)
		} else {
			printf(cmd, "Updated %s\n", host.Domain)
		}
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete <domain>",
	Aliases: []string{"rm"},
	Short:   "Delete a virtual host",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := hostService.DeleteOne(cmd.Context(), args[0]); err != nil {
			return err
		}
		printf(cmd, "Deleted %s\n", args[0])
		return nil
	},
}

var toggleCmd = &cobra.Command{
	Use:   "toggle <domain>",
	Short: "Enable or disable a virtual host",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		host, err := hostService.ToggleActive(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printf(cmd, "%s is now %s\n", host.Domain, activeWord(host.Active))
		return nil
	},
}

var activateAllCmd = &cobra.Command{
	Use:   "activate-all",
	Short: "Enable every virtual host",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return setAllActive(cmd, true)
	},
}

var deactivateAllCmd = &cobra.Command{
	Use:   "deactivate-all",
	Short: "Disable every virtual host",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return setAllActive(cmd, false)
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename <from> <to>",
	Short: "Rename a virtual host's domain",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := hostService.RenameDomain(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		printf(cmd, "Renamed %s to %s\n", args[0], args[1])
		return nil
	},
}

func init() {
	addCmd.Flags().StringVar(&addDocroot, "docroot", "", "Document root directory")
	addCmd.Flags().StringVarP(&addGroup, "group", "g", vhost.DefaultGroup, "Group label")
	addCmd.Flags().StringVarP(&addType, "type", "t", vhost.DefaultType, "Site type (e.g. static, php, proxy)")
	addCmd.Flags().BoolVar(&addNoSSL, "no-ssl", false, "Serve over plain HTTP")
	addCmd.Flags().BoolVar(&addInactive, "inactive", false, "Add the host disabled")
	addCmd.Flags().StringArrayVarP(&addAliases, "alias", "a", nil, "Alias hostname (repeatable)")

	rootCmd.AddCommand(saveCmd, addCmd, deleteCmd, toggleCmd, activateAllCmd, deactivateAllCmd, renameCmd)
}

func setAllActive(cmd *cobra.Command, active bool) error {
	changed, err := hostService.SetAllActive(cmd.Context(), active)
	if err != nil {
		return err
	}
	if changed == 0 {
		printf(cmd, "All hosts already %s\n", activeWord(active))
		return nil
	}
	printf(cmd, "%d hosts now %s\n", changed, activeWord(active))
	return nil
}

// readInput reads a whole file, or stdin when name is "-".
func readInput(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(name) //nolint:gosec // G304: user-supplied input file
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return data, nil
}

func printf(cmd *cobra.Command, format string, args ...any) {
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}

func activeWord(active bool) string {
	if active {
		return "enabled"
	}
	return "disabled"
}
