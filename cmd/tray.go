package cmd

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zjrosen/vhosts/internal/application/hosts"
	"github.com/zjrosen/vhosts/internal/domain/vhost"
	"github.com/zjrosen/vhosts/internal/log"
	"github.com/zjrosen/vhosts/internal/presentation"
	"github.com/zjrosen/vhosts/internal/pubsub"
)

var (
	trayDiff    bool
	trayNoInput bool
)

var trayCmd = &cobra.Command{
	Use:   "tray",
	Short: "Watch hosts.json and apply tray actions from stdin",
	Long: `Run the headless tray: every change to hosts.json, by any process, is printed
as it happens. Tray actions are read from stdin, one per line:

  toggle <domain>
  show <domain>
  activate-all
  deactivate-all
  list
  quit

Stop with Ctrl+C.`,
	Args: cobra.NoArgs,
	RunE: runTray,
}

func init() {
	trayCmd.Flags().BoolVar(&trayDiff, "diff", false, "Print a line diff with every change")
	trayCmd.Flags().BoolVar(&trayNoInput, "no-input", false, "Only watch; ignore stdin")
	rootCmd.AddCommand(trayCmd)
}

func runTray(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	monitor := hosts.NewMonitor(hostService, hosts.MonitorOptions{Debounce: cfg.Watch.Debounce})
	defer monitor.Close()
	events := monitor.Subscribe(ctx)

	if reg, err := hostService.ListHosts(ctx); err != nil {
		printf(cmd, "Watching %s (unavailable: %v)\n", hostService.Path(), err)
	} else {
		printf(cmd, "Watching %s (%d/%d active)\n", hostService.Path(), reg.ActiveCount(), len(reg))
	}

	runErr := make(chan error, 1)
	go func() {
		runErr <- monitor.Run(ctx)
	}()

	var commands <-chan string
	if !trayNoInput {
		commands = readLines(ctx, cmd.InOrStdin())
	}

	formatter := presentation.NewFormatter(cmd.OutOrStdout())
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-runErr:
			return err
		case event, ok := <-events:
			if !ok {
				return nil
			}
			printTrayEvent(cmd, formatter, event)
		case line, ok := <-commands:
			if !ok {
				commands = nil
				continue
			}
			if quit := runTrayAction(ctx, cmd, line); quit {
				return nil
			}
		}
	}
}

func printTrayEvent(cmd *cobra.Command, formatter *presentation.Formatter, event pubsub.Event[hosts.Change]) {
	if err := formatter.FormatChange(presentation.FromChange(string(event.Type), event.Payload)); err != nil {
		log.ErrorErr(log.CatCLI, "Failed to print change", err)
	}
	if trayDiff && event.Payload.Diff != "" {
		printf(cmd, "%s", event.Payload.Diff)
	}
}

// runTrayAction applies one stdin action. Failures are printed, not returned, so
// the tray keeps running. It reports whether the tray should exit.
func runTrayAction(ctx context.Context, cmd *cobra.Command, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	var err error
	switch fields[0] {
	case "quit", "exit":
		return true
	case "list":
		reg, listErr := hostService.ListHosts(ctx)
		err = listErr
		if err == nil {
			err = presentation.NewFormatter(cmd.OutOrStdout()).FormatTable(presentation.FromRegistry(reg, ""))
		}
	case "toggle":
		if len(fields) != 2 {
			printf(cmd, "usage: toggle <domain>\n")
			return false
		}
		_, err = hostService.ToggleActive(ctx, fields[1])
	case "show":
		if len(fields) != 2 {
			printf(cmd, "usage: show <domain>\n")
			return false
		}
		err = showTrayHost(ctx, cmd, fields[1])
	case "activate-all":
		_, err = hostService.SetAllActive(ctx, true)
	case "deactivate-all":
		_, err = hostService.SetAllActive(ctx, false)
	default:
		printf(cmd, "unknown action %q\n", fields[0])
		return false
	}
	if err != nil {
		printError(cmd.OutOrStdout(), err)
	}
	return false
}

func showTrayHost(ctx context.Context, cmd *cobra.Command, domain string) error {
	reg, err := hostService.ListHosts(ctx)
	if err != nil {
		return err
	}
	host, ok := reg[domain]
	if !ok {
		return &vhost.NotFoundError{Domain: domain}
	}
	status := "inactive"
	if host.Active {
		status = "active"
	}
	printf(cmd, "%s  %s  %s\n", host.Domain, status, host.Docroot)
	if aliases := host.ActiveAliases(); len(aliases) > 0 {
		printf(cmd, "  serves: %s\n", strings.Join(aliases, ", "))
	}
	return nil
}

// readLines streams lines from r until EOF or until ctx is done, then closes
// the channel. A read already blocked on r finishes before the goroutine exits.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}
