package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/vhosts/internal/application/hosts"
	"github.com/zjrosen/vhosts/internal/config"
	"github.com/zjrosen/vhosts/internal/flags"
	"github.com/zjrosen/vhosts/internal/infrastructure/filestore"
	"github.com/zjrosen/vhosts/internal/log"
	"github.com/zjrosen/vhosts/internal/paths"
	"github.com/zjrosen/vhosts/internal/tracing"
)

const localConfigPath = ".vhosts/config.yaml"

var (
	version       = "dev"
	cfgFile       string
	hostsFileFlag string
	debugFlag     bool
	cfg           config.Config

	hostService   *hosts.Service
	traceProvider *tracing.Provider
	cleanups      []func()
)

var rootCmd = &cobra.Command{
	Use:   "vhosts",
	Short: "Manage the virtual hosts of a local web stack",
	Long: `Manage the virtual-host registry (hosts.json) shared by the tray app, the
config generator scripts and this CLI.

Every change is a locked read-modify-write of hosts.json, so several vhosts
processes can edit the registry at once without losing updates.`,
	Version:           version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupApp,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.config/vhosts/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&hostsFileFlag, "hosts-file", "f", "",
		"path to hosts.json or the directory containing it")
	rootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false,
		"write debug logs (path from VHOSTS_LOG, default vhosts-debug.log)")
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("hosts_file", defaults.HostsFile)
	viper.SetDefault("settings_file", defaults.SettingsFile)
	viper.SetDefault("lock.timeout", defaults.Lock.Timeout)
	viper.SetDefault("lock.poll_interval", defaults.Lock.PollInterval)
	viper.SetDefault("lock.read_retry_delay", defaults.Lock.ReadRetryDelay)
	viper.SetDefault("watch.debounce", defaults.Watch.Debounce)
	viper.SetDefault("serve.addr", defaults.Serve.Addr)
	viper.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)

	// VHOSTS_HOSTS_FILE, VHOSTS_LOCK_TIMEOUT, ...
	viper.SetEnvPrefix("VHOSTS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if flag := rootCmd.PersistentFlags().Lookup("hosts-file"); flag != nil && flag.Changed {
		_ = viper.BindPFlag("hosts_file", flag)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .vhosts/config.yaml (current directory)
		// 2. ~/.config/vhosts/config.yaml (user config)
		if _, err := os.Stat(localConfigPath); err == nil {
			viper.SetConfigFile(localConfigPath)
		} else {
			viper.AddConfigPath(paths.ConfigDir())
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		// No config file found anywhere - create the default user config
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && cfgFile == "" {
			defaultPath := filepath.Join(paths.ConfigDir(), "config.yaml")
			if writeErr := config.WriteDefaultConfig(defaultPath); writeErr == nil {
				viper.SetConfigFile(defaultPath)
				_ = viper.ReadInConfig()
			}
			// If write fails, just continue with defaults (no config file)
		}
	}

	cfg = defaults
	_ = viper.Unmarshal(&cfg)
}

// configFilePath returns the config file in use, or where one would be created.
func configFilePath() string {
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	if cfgFile != "" {
		return cfgFile
	}
	return filepath.Join(paths.ConfigDir(), "config.yaml")
}

// setupApp runs before every command: logging, config validation, tracing and the
// hosts service. Nothing here touches hosts.json.
func setupApp(cmd *cobra.Command, _ []string) error {
	debug := os.Getenv("VHOSTS_DEBUG") != "" || debugFlag
	if debug {
		logPath := os.Getenv("VHOSTS_LOG")
		if logPath == "" {
			logPath = "vhosts-debug.log"
		}
		cleanup, err := log.Init(logPath)
		if err != nil {
			return fmt.Errorf("initializing logging: %w", err)
		}
		cleanups = append(cleanups, cleanup)
		log.Info(log.CatCLI, "vhosts starting", "command", cmd.CommandPath(), "version", version, "config", viper.ConfigFileUsed())
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	tracingCfg := tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		Exporter:     cfg.Tracing.Exporter,
		FilePath:     paths.ExpandHome(cfg.Tracing.FilePath),
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SampleRate:   cfg.Tracing.SampleRate,

		ServiceName:    tracing.DefaultServiceName,
		ServiceVersion: version,
		HostsFile:      paths.ResolveHostsFile(cfg.HostsFile),
	}
	if tracingCfg.Enabled && tracingCfg.Exporter == tracing.ExporterFile && tracingCfg.FilePath == "" {
		tracingCfg.FilePath = filepath.Join(paths.ConfigDir(), "traces", "traces.jsonl")
	}
	provider, err := tracing.NewProvider(cmd.Context(), tracingCfg)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	traceProvider = provider
	if provider.Enabled() {
		log.Debug(log.CatCLI, "Tracing enabled", "exporter", tracingCfg.Exporter)
	}
	cleanups = append(cleanups, func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			log.ErrorErr(log.CatCLI, "Tracing shutdown failed", err)
		}
	})

	hostService = newHostService(cfg, flags.New(cfg.Flags), provider)
	log.Debug(log.CatCLI, "Using hosts file", "path", hostService.Path())
	return nil
}

// newHostService wires the file-backed repository into a Service.
func newHostService(c config.Config, ff *flags.Registry, provider *tracing.Provider) *hosts.Service {
	repo := filestore.NewRepository(paths.ResolveHostsFile(c.HostsFile), filestore.Options{
		Store: filestore.StoreOptions{
			DirectWrite:    ff.Enabled(flags.FlagDirectWrite),
			StrictDecode:   ff.Enabled(flags.FlagStrictDecode),
			ReadRetryDelay: c.Lock.ReadRetryDelay,
		},
		Guard: filestore.GuardOptions{
			Timeout:      c.Lock.Timeout,
			PollInterval: c.Lock.PollInterval,
		},
	})
	return hosts.NewService(repo, hosts.WithTracer(provider.Tracer()))
}

func runCleanups() {
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
	cleanups = nil
}

// Execute runs the root command
func Execute() error {
	defer runCleanups()
	err := rootCmd.Execute()
	if err != nil {
		printError(rootCmd.ErrOrStderr(), err)
	}
	return err
}

// printError writes err with a hint matched to its kind.
func printError(w io.Writer, err error) {
	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
	switch hosts.ErrorKind(err) {
	case "lock_timeout":
		_, _ = fmt.Fprintln(w, "Another vhosts process is editing the hosts file. Try again in a moment.")
	case "parse":
		_, _ = fmt.Fprintln(w, "The hosts file is not valid JSON. Fix it by hand or restore it with `vhosts save <backup>`.")
	}
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
