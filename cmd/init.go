package cmd

import (
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/zjrosen/vhosts/internal/config"
	"github.com/zjrosen/vhosts/internal/infrastructure/filestore"
	"github.com/zjrosen/vhosts/internal/paths"
)

var (
	initStack        string
	initProjectsPath string
	initDataDir      string
	initWriteConfig  bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the configuration directory, hosts.json and settings.json",
	Long: `Lay out a fresh installation: the conf, scripts, ssl and projects
directories, an empty hosts.json (an existing one is never overwritten) and
settings.json marked as set up.

With --write-config the created hosts.json becomes hosts_file in the vhosts
config file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		settingsPath := cfg.SettingsFile
		if settingsPath == "" {
			settingsPath = paths.DefaultSettingsFile()
		}
		settings, err := config.LoadSettings(paths.ExpandHome(settingsPath))
		if err != nil {
			return err
		}
		if initStack != "" {
			settings.Stack = initStack
		}
		if initProjectsPath != "" {
			settings.ProjectsPath = paths.ExpandHome(initProjectsPath)
		}
		if initDataDir != "" {
			dir := paths.ExpandHome(initDataDir)
			settings.ConfigPath = dir
			settings.SSLPath = filepath.Join(dir, "ssl")
		}

		lock := filestore.GuardOptions{Timeout: cfg.Lock.Timeout, PollInterval: cfg.Lock.PollInterval}
		result, err := config.CreateInitial(cmd.Context(), settings, time.Now(), lock)
		if err != nil {
			return err
		}
		if result.HostsCreated {
			printf(cmd, "Created %s\n", result.HostsFile)
		} else {
			printf(cmd, "Kept existing %s\n", result.HostsFile)
		}
		printf(cmd, "Wrote %s\n", result.SettingsFile)

		if initWriteConfig {
			if err := config.SetHostsFile(configFilePath(), result.HostsFile); err != nil {
				return err
			}
			printf(cmd, "Set hosts_file in %s\n", configFilePath())
		}
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&initStack, "stack", "", "Web stack name recorded in settings.json (e.g. apache, nginx)")
	initCmd.Flags().StringVar(&initProjectsPath, "projects", "", "Projects directory (default: ~/projects)")
	initCmd.Flags().StringVar(&initDataDir, "dir", "", "Data directory (default: ~/localhost-manager)")
	initCmd.Flags().BoolVar(&initWriteConfig, "write-config", false, "Record the hosts file in the vhosts config")
	rootCmd.AddCommand(initCmd)
}
