package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/54b3r/semdex/internal/config"
	"github.com/54b3r/semdex/internal/logging"
	"github.com/54b3r/semdex/internal/server"
)

// NewServeCmd constructs the `semdex serve` command, which starts the HTTP
// server exposing the index over a REST API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the semdex HTTP server",
		Long: `Start the semdex HTTP server on localhost.

The server exposes POST /api/search for similarity queries, GET
/api/collections for index introspection, liveness and readiness probes,
and Prometheus metrics on /metrics.

Set SEMDEX_API_KEY to require Bearer authentication on the API routes;
health, readiness, and metrics stay open for probes and scrapers.

Examples:
  semdex serve
  semdex serve --port 9090
  SEMDEX_API_KEY=secret semdex serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			settings, err := config.Resolve()
			if err != nil {
				return err
			}

			emb, err := buildEmbedder(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			mgr, store := buildStore(settings)
			defer func() { _ = mgr.Close() }()
			log.Info("vector store configured", slog.String("addr", mgr.Addr()))

			retriever, err := buildRetriever(store, emb, settings)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			pingers := []server.Pinger{
				mgr,
				server.NewEmbedderPinger(emb, embeddingBackendName()),
			}

			srv, err := server.New(retriever, store, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: pingers,
				APIKey:  os.Getenv("SEMDEX_API_KEY"),
				SearchCollections: []string{
					settings.Collections.Default,
					settings.Collections.Agents,
				},
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
