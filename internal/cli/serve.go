package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/crowdframe/internal/ingest"
	"github.com/ppiankov/crowdframe/internal/model"
	"github.com/ppiankov/crowdframe/internal/search"
	"github.com/ppiankov/crowdframe/internal/server"
)

var (
	serveAddr   string
	serveDBPath string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the log ingestion and search endpoints",
	Long: `Serve starts the HTTP surface used by worker sessions:
- POST /api/v1/log     store one logged action in its task batch table
- GET  /api/v1/search  run one page of a search query (q, offset)
- GET  /health

Logged actions are written to a local SQLite database, one table per
task batch, keyed by worker and sequence.

Example:
  crowdframe serve
  crowdframe serve --addr :9090 --db ./logs.db`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config server.addr)")
	serveCmd.Flags().StringVar(&serveDBPath, "db", "", "SQLite database path (default from config ingest.db_path)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if serveDBPath != "" {
		cfg.Ingest.DBPath = serveDBPath
	}

	store, err := ingest.NewSQLiteStore(cfg.Ingest.DBPath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	writer := ingest.NewWriter(store, cfg.Ingest.TablePrefix, cfg.Ingest.MaxAttempts)

	svc, err := search.NewServiceFromConfig(cfg, model.SearchEngineSettings{})
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	if n, err := svc.PruneCache(); err != nil {
		fmt.Fprintf(os.Stderr, "✗ cache prune: %v\n", err)
	} else if n > 0 && verbose {
		fmt.Fprintf(os.Stderr, "✓ Pruned %d expired cache entries\n", n)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Crowdframe Server\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Listening:    %s\n", cfg.Server.Addr)
	fmt.Fprintf(os.Stderr, "  Database:     %s\n", store.Path())
	fmt.Fprintf(os.Stderr, "  Table prefix: %s\n", cfg.Ingest.TablePrefix)
	fmt.Fprintf(os.Stderr, "  Search:       %s (page size %d)\n", svc.ProviderName(), svc.PageSize())
	fmt.Fprintf(os.Stderr, "\n")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(writer, svc, cfg.Server.Mode)
	if err := srv.ListenAndServe(ctx, cfg.Server.Addr); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "✓ Server stopped\n")
	return nil
}

// openDeliverer picks where session records go: the configured ingestion
// endpoint when set, otherwise the local SQLite log. The returned closer
// releases the local store.
func openDeliverer(cfg *model.Config) (ingest.Deliverer, func(), error) {
	if cfg.Ingest.Endpoint != "" {
		d := ingest.NewHTTPDeliverer(cfg.Ingest.Endpoint, cfg.HTTP.Timeout,
			cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy, cfg.HTTP.NoProxy)
		return d, func() {}, nil
	}

	store, err := ingest.NewSQLiteStore(cfg.Ingest.DBPath)
	if err != nil {
		return nil, nil, err
	}
	w := ingest.NewWriter(store, cfg.Ingest.TablePrefix, cfg.Ingest.MaxAttempts)
	return w, func() { _ = store.Close() }, nil
}
