package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/zjrosen/vhosts/internal/domain/vhost"
)

var aliasCmd = &cobra.Command{
	Use:   "alias",
	Short: "Manage a host's alias hostnames",
}

var aliasAddCmd = &cobra.Command{
	Use:   "add <domain> <alias>",
	Short: "Add an active alias to a host",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		alias, err := hostService.AddAlias(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		printf(cmd, "Added alias %s (%s) to %s\n", alias.Value, alias.ID, args[0])
		return nil
	},
}

var aliasRemoveCmd = &cobra.Command{
	Use:     "rm <domain> <alias-id|value>",
	Aliases: []string{"remove"},
	Short:   "Remove an alias from a host",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resolveAliasID(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		if err := hostService.RemoveAlias(cmd.Context(), args[0], id); err != nil {
			return err
		}
		printf(cmd, "Removed alias %s from %s\n", args[1], args[0])
		return nil
	},
}

var aliasToggleCmd = &cobra.Command{
	Use:   "toggle <domain> <alias-id|value>",
	Short: "Enable or disable an alias",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resolveAliasID(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		alias, err := hostService.ToggleAlias(cmd.Context(), args[0], id)
		if err != nil {
			return err
		}
		printf(cmd, "Alias %s is now %s\n", alias.Value, activeWord(alias.Active))
		return nil
	},
}

func init() {
	aliasCmd.AddCommand(aliasAddCmd, aliasRemoveCmd, aliasToggleCmd)
	rootCmd.AddCommand(aliasCmd)
}

// resolveAliasID accepts either an alias id or its hostname.
func resolveAliasID(ctx context.Context, domain, ref string) (string, error) {
	reg, err := hostService.ListHosts(ctx)
	if err != nil {
		return "", err
	}
	host, err := reg.Get(domain)
	if err != nil {
		return "", err
	}
	if host.AliasIndex(ref) >= 0 {
		return ref, nil
	}
	for _, a := range host.Aliases {
		if a.Value == ref {
			return a.ID, nil
		}
	}
	return "", &vhost.NotFoundError{Domain: domain, AliasID: ref}
}
