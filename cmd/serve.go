package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zjrosen/vhosts/internal/api"
	"github.com/zjrosen/vhosts/internal/application/hosts"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the registry over a local HTTP API",
	Long: `Serve the registry over HTTP so other local tools can read and edit it.

Endpoints:
  GET    /health
  GET    /api/hosts                    registry in hosts.json form
  PUT    /api/hosts                    replace the registry
  PUT    /api/hosts/{domain}           add or update one host
  DELETE /api/hosts/{domain}           delete a host
  POST   /api/hosts/{domain}/toggle    flip a host's active flag
  POST   /api/hosts/activate-all
  POST   /api/hosts/deactivate-all

Writes take the same lock as the CLI, so a busy registry answers 409.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		addr := serveAddr
		if addr == "" {
			addr = cfg.Serve.Addr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		lister := hosts.NewCachedLister(hostService, hosts.DefaultListCacheTTL)
		router := api.NewRouter(hostService, lister, traceProvider.Tracer())

		printf(cmd, "Serving %s on http://%s\n", hostService.Path(), addr)
		if err := api.Serve(ctx, addr, router); err != nil {
			return err
		}
		printf(cmd, "Server stopped\n")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Address to listen on (overrides serve.addr)")
	rootCmd.AddCommand(serveCmd)
}
