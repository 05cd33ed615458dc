package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/solatis/normprops/internal/core/api"
	"github.com/solatis/normprops/internal/core/config"
	"github.com/solatis/normprops/internal/core/db"
	"github.com/solatis/normprops/internal/core/metrics"
	"github.com/solatis/normprops/internal/core/server"
	"github.com/solatis/normprops/internal/props"
	"github.com/solatis/normprops/internal/schema"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gRPC query service",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "0.0.0.0", "gRPC server host")
	serveCmd.Flags().Int("port", 50051, "gRPC server port")
	serveCmd.Flags().String("schema", "./schema.yaml", "schema file declaring models and properties")
	serveCmd.Flags().String("metrics-addr", ":9090", "address of the prometheus /metrics endpoint (empty disables it)")
}

var serveFlags = map[string]string{
	"host":         "server.host",
	"port":         "server.port",
	"schema":       "server.schema_file",
	"metrics-addr": "server.metrics_addr",
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd, serveFlags)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	catalog, err := schema.Load(cfg.SchemaFile)
	if err != nil {
		return fmt.Errorf("failed to load schema: %w", err)
	}
	logger.Info("schema loaded", "file", cfg.SchemaFile, "models", catalog.Names())

	var store api.Querier
	if cfg.HasDatabase() {
		database, s, err := openStore(ctx, cfg, catalog, logger)
		if err != nil {
			return err
		}
		defer database.Close()
		store = s
	} else {
		logger.Warn("no database configured, Query is disabled")
	}

	service, err := api.NewQueryService(catalog, store, logger)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	m := metrics.New()
	grpcServer, err := server.NewGRPCServer(cfg, service, m, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	logger.Info("starting normprops query service", "version", Version, "addr", cfg.Addr())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return grpcServer.Start(gctx)
	})

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		metricsServer = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		g.Go(func() error {
			logger.Info("serving metrics", "addr", cfg.MetricsAddr)
			if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		var errs []error
		if metricsServer != nil {
			errs = append(errs, metricsServer.Shutdown(shutdownCtx))
		}
		errs = append(errs, grpcServer.Shutdown(shutdownCtx))
		return errors.Join(errs...)
	})

	return g.Wait()
}

// openStore opens and verifies the database and builds the store.
func openStore(ctx context.Context, cfg *config.ServerConfig, catalog *props.Catalog, logger *slog.Logger) (*sqlx.DB, *db.Store, error) {
	database, err := db.Open(ctx, cfg.DBURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database %s: %w", cfg.RedactedDBURL(), err)
	}

	statuses, err := db.MigrateStatus(ctx, database)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to check migrations: %w", err)
	}
	for _, s := range statuses {
		if !s.Applied {
			database.Close()
			return nil, nil, fmt.Errorf("migration %s not applied - run 'normprops migrate' first", s.ID)
		}
	}

	store, err := db.NewStore(database, catalog, logger)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to create store: %w", err)
	}
	logger.Info("database ready", "url", cfg.RedactedDBURL())
	return database, store, nil
}

// exitOnSignal is used by one-shot commands that should stop cleanly on Ctrl-C.
func exitOnSignal() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
