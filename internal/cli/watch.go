package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/evanofslack/cddns/internal/config"
	"github.com/evanofslack/cddns/internal/metrics"
	"github.com/evanofslack/cddns/internal/reconcile"
	"github.com/evanofslack/cddns/internal/watch"
	"github.com/spf13/cobra"
)

func newWatchCommand(opts *InventoryOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Reconcile continuously until interrupted",
		Long: `Run a reconciliation cycle every interval, measured from the start of
one cycle to the start of the next. Outdated records are updated without
asking. Invalid records are pruned only with --force-prune.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.apply(cmd); err != nil {
				return err
			}
			return runWatch(cmd, opts)
		},
	}
}

// watchPolicy never prompts: there is nobody to answer.
func watchPolicy(cfg *config.Config) reconcile.Policy {
	return reconcile.Policy{
		Update:      true,
		ForceUpdate: true,
		Prune:       cfg.Inventory.ForcePrune,
		ForcePrune:  true,
		Persist:     true,
	}
}

func runWatch(cmd *cobra.Command, opts *InventoryOptions) error {
	cfg := opts.Config
	store, inv, err := opts.load()
	if err != nil {
		return err
	}

	m := metrics.New(cfg.Metrics.Addr != "")
	client, err := newClient(cfg, m)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create DNS client", err)
	}
	resolver, err := newResolver(cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create address resolver", err)
	}
	history := openHistory(cfg, m)
	if history != nil {
		defer history.Close()
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	if cfg.Metrics.Addr != "" {
		server := startMetricsServer(cfg.Metrics.Addr, m)
		defer shutdownMetricsServer(server)
	}

	engine := reconcile.NewEngine(client, resolver, store, reconcile.Always(false), cfg.RequestTimeout(), m)
	scheduler := watch.New(engine, store, inv, watch.Options{
		Interval: cfg.WatchInterval(),
		Reload:   cfg.Reload(),
		Policy:   watchPolicy(cfg),
		History:  history,
	})

	if err := scheduler.Run(ctx); err != nil {
		return WrapExitError(ExitFailure, "watch stopped", err)
	}
	slog.Info("Watch stopped")
	return nil
}

func startMetricsServer(addr string, m *metrics.Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("Starting metrics server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server failed", "error", err)
		}
	}()
	return server
}

func shutdownMetricsServer(server *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Metrics server shutdown error", "error", err)
	}
}
