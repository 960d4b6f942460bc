// Package bouncer is a minimal IRC bouncer hosting the reply router: one
// upstream connection per network shared by any number of clients.
package bouncer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/pior/replyroute/internal/metrics"
	"github.com/pior/replyroute/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const metricsShutdownTimeout = 5 * time.Second

// Bouncer runs every configured network, the client listener and the
// metrics endpoint.
type Bouncer struct {
	config   *Config
	logger   *zap.Logger
	store    *store.Store
	networks []*Network
	server   *Server
	exporter *metrics.Exporter
}

// New opens the preference store and builds every network. Call Close to
// release the store.
func New(config *Config, logger *zap.Logger) (*Bouncer, error) {
	return newBouncer(config, logger, NetworkOptions{})
}

func newBouncer(config *Config, logger *zap.Logger, options NetworkOptions) (*Bouncer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := store.Open(config.Database)
	if err != nil {
		return nil, err
	}
	logger.Debug("preferences store opened", zap.String("path", db.Path()))

	b := &Bouncer{
		config:   config,
		logger:   logger,
		store:    db,
		exporter: metrics.NewExporter(),
	}

	for _, nc := range config.Networks {
		opts := options
		opts.ModuleNick = config.ModuleNick
		opts.Preferences = db.Scope(nc.Name)
		opts.Logger = logger

		n, err := NewNetwork(nc, opts)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("network %s: %w", nc.Name, err)
		}
		b.networks = append(b.networks, n)
		b.exporter.Collector().Add(n)
	}

	b.server = NewServer(config, b.networks, logger)
	return b, nil
}

// Run listens on the configured address and serves until ctx is done or a
// component fails.
func (b *Bouncer) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", b.config.Listen)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return b.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (b *Bouncer) Serve(ctx context.Context, ln net.Listener) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, n := range b.networks {
		g.Go(func() error {
			return n.Run(ctx)
		})
	}

	g.Go(func() error {
		return b.server.Serve(ctx, ln)
	})

	if b.config.MetricsListen != "" {
		g.Go(func() error {
			return b.serveMetrics(ctx)
		})
	}

	return g.Wait()
}

func (b *Bouncer) serveMetrics(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", b.exporter.Handler())

	srv := &http.Server{
		Addr:              b.config.MetricsListen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	b.logger.Info("serving metrics", zap.String("addr", b.config.MetricsListen))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics: %w", err)
	}
	return nil
}

// Networks returns the configured networks.
func (b *Bouncer) Networks() []*Network {
	return b.networks
}

// Exporter returns the Prometheus exporter of the bouncer.
func (b *Bouncer) Exporter() *metrics.Exporter {
	return b.exporter
}

// Close releases the preference store. Call it after Run returned.
func (b *Bouncer) Close() error {
	return b.store.Close()
}
