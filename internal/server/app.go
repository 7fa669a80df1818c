// Package server wires the vault together: object store, index maintainer,
// record writer, query engine, the gRPC query endpoint and the monitoring
// endpoint. Shutdown is driven by context cancellation and OS signals.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dmitrijs2005/kycvault/internal/logging"
	"github.com/dmitrijs2005/kycvault/internal/server/assembler"
	"github.com/dmitrijs2005/kycvault/internal/server/config"
	"github.com/dmitrijs2005/kycvault/internal/server/indexer"
	"github.com/dmitrijs2005/kycvault/internal/server/metrics"
	"github.com/dmitrijs2005/kycvault/internal/server/monitoring"
	"github.com/dmitrijs2005/kycvault/internal/server/objectstore"
	"github.com/dmitrijs2005/kycvault/internal/server/queries"
	"github.com/dmitrijs2005/kycvault/internal/server/reconcile"
	"github.com/dmitrijs2005/kycvault/internal/server/records"

	gs "github.com/dmitrijs2005/kycvault/internal/server/grpc"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	store    objectstore.Store
	registry *prometheus.Registry
	writer   *records.Writer
	service  *gs.Service

	bucketOnce sync.Once
	bucketErr  error
}

// NewApp connects to the configured S3 endpoint and builds the vault on it.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stderr, c.LogLevel)

	store, err := objectstore.NewS3Store(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("object store init error: %w", err)
	}

	return NewAppWithStore(c, logger, store), nil
}

// NewAppWithStore builds the vault on an existing store.
func NewAppWithStore(c *config.Config, logger logging.Logger, store objectstore.Store) *App {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	idx := indexer.New(store, logger, m, indexer.Options{
		Conditional: c.ConditionalWrites,
		MaxRetries:  c.IndexMaxRetries,
		RetryBase:   c.IndexRetryBase,
	})
	if !c.ConditionalWrites {
		logger.Warn(context.Background(), "conditional index writes disabled, aggregates are best-effort")
	}

	return &App{
		config:   c,
		logger:   logger,
		store:    store,
		registry: reg,
		writer:   records.NewWriter(store, idx, logger, m),
		service: gs.NewService(
			queries.New(store, logger, m, c.QueryConcurrency),
			assembler.New(store, logger, assembler.ClampTTL(c.PresignTTL)),
			reconcile.New(store, logger, m, c.QueryConcurrency),
		),
	}
}

func (app *App) Logger() logging.Logger { return app.logger }

func (app *App) Writer() *records.Writer { return app.writer }

func (app *App) Queries() gs.VerificationQueryServer { return app.service }

// EnsureBucket creates the bucket on first use. The outcome of the first
// call is remembered.
func (app *App) EnsureBucket(ctx context.Context) error {
	app.bucketOnce.Do(func() {
		app.bucketErr = app.store.EnsureBucket(ctx)
	})
	return app.bucketErr
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.service)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// newMonitoringServer answers readiness with a read-only bucket check;
// bucket creation happens once, in Run.
func (app *App) newMonitoringServer() *monitoring.Server {
	return monitoring.NewServer(app.config.MetricsAddr, app.registry, app.store.Ping, app.logger)
}

func (app *App) startMonitoringServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := app.newMonitoringServer()
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled, a signal arrives or either server
// fails.
func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	if err := app.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startMonitoringServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.logger.Info(context.Background(), "App stopped")
	return nil
}
