package cli

import (
	"context"
	"log/slog"
	"net/netip"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/evanofslack/cddns/internal/config"
	"github.com/evanofslack/cddns/internal/metrics"
	"github.com/evanofslack/cddns/internal/provider"
	"github.com/evanofslack/cddns/internal/provider/cloudflare"
	"github.com/evanofslack/cddns/internal/publicip"
	"github.com/evanofslack/cddns/internal/state"
)

// dnsClient is what the commands need from the DNS provider.
type dnsClient interface {
	provider.Provider
	provider.Verifier
}

// newClient is swapped out in tests.
var newClient = func(cfg *config.Config, m *metrics.Metrics) (dnsClient, error) {
	if err := cfg.RequireToken(); err != nil {
		return nil, err
	}
	cf, err := cloudflare.New(cfg.Token, cfg.RequestTimeout(), m)
	if err != nil {
		return nil, err
	}
	return cf, nil
}

// newResolver builds the public address lookup chain from ip.sources.
// Static addresses are consulted first whenever they are configured.
func newResolver(cfg *config.Config) (publicip.Resolver, error) {
	var chain publicip.Chain

	static := publicip.Static{}
	if cfg.IP.IPv4 != "" {
		static.V4 = netip.MustParseAddr(cfg.IP.IPv4)
	}
	if cfg.IP.IPv6 != "" {
		static.V6 = netip.MustParseAddr(cfg.IP.IPv6)
	}
	if static.V4.IsValid() || static.V6.IsValid() || slices.Contains(cfg.IP.Sources, "static") {
		chain = append(chain, static)
	}

	for _, source := range cfg.IP.Sources {
		switch source {
		case "dns":
			chain = append(chain, publicip.NewDNS(cfg.RequestTimeout()))
		case "web":
			web, err := publicip.NewWeb(cfg.IP.WebURLs...)
			if err != nil {
				return nil, err
			}
			chain = append(chain, web)
		}
	}
	return chain, nil
}

// openHistory opens the cycle history when state_path is set. A history
// that cannot be opened is logged and skipped.
func openHistory(cfg *config.Config, m *metrics.Metrics) state.Manager {
	if cfg.StatePath == "" {
		return nil
	}
	history, err := state.New(cfg.StatePath, m)
	if err != nil {
		slog.Warn("Failed to open cycle history, continuing without it", "path", cfg.StatePath, "error", err)
		return nil
	}
	return history
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("Received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}
