// Package app builds the process object graph from config. The HTTP server and
// the operator CLI share it so both run the same services against the same
// backends.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"leasepack/internal/blobstore"
	caseshandler "leasepack/internal/cases/handler"
	casesservice "leasepack/internal/cases/service"
	casesstore "leasepack/internal/cases/store"
	"leasepack/internal/compliance"
	compliancehandler "leasepack/internal/compliance/handler"
	compliancemetrics "leasepack/internal/compliance/metrics"
	"leasepack/internal/events"
	"leasepack/internal/fulfillment"
	fulfillmenthandler "leasepack/internal/fulfillment/handler"
	fulfillmentmetrics "leasepack/internal/fulfillment/metrics"
	httpapi "leasepack/internal/http"
	"leasepack/internal/notify"
	"leasepack/internal/orders/store/document"
	"leasepack/internal/orders/store/order"
	"leasepack/internal/pack"
	"leasepack/internal/platform/config"
	"leasepack/internal/platform/metrics"
	"leasepack/internal/platform/postgres"
	"leasepack/internal/platform/redis"
)

// App is the wired service graph.
type App struct {
	Cases       *casesservice.Service
	Engine      *compliance.Engine
	Fulfillment *fulfillment.Service

	cfg     config.Config
	logger  *slog.Logger
	db      *sql.DB
	redis   *redis.Client
	kafka   *events.Kafka
	relay   *events.Relay
	checks  map[string]httpapi.HealthCheck
	handler []httpapi.Registrar
}

// Build connects every configured backend and falls back to in-process
// implementations for the ones left unset.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger, checks: map[string]httpapi.HealthCheck{}}
	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// blobStore is what both the case and fulfillment services need from storage.
type blobStore interface {
	fulfillment.BlobStore
	casesservice.BlobStore
}

func (a *App) build(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger
	var (
		caseStore  casesservice.Store        = casesstore.NewInMemory()
		caseTx     casesservice.CaseTx       = casesservice.NewShardedTx()
		orderStore fulfillment.OrderStore    = order.NewInMemory()
		docStore   fulfillment.DocumentStore = document.NewInMemory()
		publisher  fulfillment.Publisher     = events.NewMemory()
		blobs      blobStore                 = blobstore.NewMemory(cfg.Storage.Bucket, cfg.Storage.PublicBaseURL)
		err        error
	)

	if cfg.Database.URL != "" {
		if a.db, err = postgres.Open(ctx, cfg.Database.URL, cfg.Database.MaxOpenConns); err != nil {
			return err
		}
		if err = postgres.Migrate(ctx, a.db); err != nil {
			return err
		}
		caseStore = casesstore.NewPostgres(a.db)
		caseTx = casesservice.NewSQLTx(postgres.NewTransactor(a.db))
		orderStore = order.NewPostgres(a.db)
		docStore = document.NewPostgres(a.db)
		a.checks["postgres"] = a.db.PingContext
	} else {
		logger.WarnContext(ctx, "no database configured, using in-memory stores")
	}

	if cfg.Storage.Endpoint != "" {
		if blobs, err = blobstore.NewMinIO(ctx, cfg.Storage); err != nil {
			return err
		}
	}

	if a.redis, err = redis.New(ctx, cfg.Redis); err != nil {
		return err
	}
	if a.redis != nil {
		a.checks["redis"] = a.redis.Health
	}

	if len(cfg.Kafka.Brokers) > 0 {
		if a.kafka, err = events.NewKafka(cfg.Kafka); err != nil {
			return err
		}
		if err = a.kafka.EnsureTopic(ctx, 3, 1); err != nil {
			return err
		}
		a.checks["kafka"] = a.kafka.Health
		publisher = a.kafka
		if a.db != nil {
			publisher = events.NewOutbox(a.db)
			a.relay = events.NewRelay(a.db, a.kafka, events.WithRelayLogger(logger))
		}
	}

	engine, err := compliance.NewEngine(
		compliance.WithLogger(logger),
		compliance.WithMetrics(compliancemetrics.New()),
	)
	if err != nil {
		return err
	}
	a.Engine = engine

	renderer, err := newRenderer(cfg.Render)
	if err != nil {
		return err
	}
	registry, err := pack.NewRegistry(renderer, pack.WithLogger(logger), pack.WithRules(engine.Rules()))
	if err != nil {
		return err
	}

	if a.Cases, err = casesservice.New(caseStore, blobs, casesservice.WithLogger(logger), casesservice.WithTx(caseTx)); err != nil {
		return err
	}

	fm := fulfillmentmetrics.New()
	fulfillOpts := []fulfillment.Option{
		fulfillment.WithLogger(logger),
		fulfillment.WithMetrics(fm),
		fulfillment.WithPublisher(publisher),
	}
	if sender := notify.NewSMTPSender(cfg.SMTP); sender.Configured() {
		fulfillOpts = append(fulfillOpts, fulfillment.WithNotifier(notify.New(sender,
			notify.WithLogger(logger),
			notify.WithSupportAddress(cfg.Fulfillment.SupportEmail),
		)))
	} else {
		logger.WarnContext(ctx, "smtp not configured, fulfillment emails disabled")
	}
	if a.redis != nil {
		fulfillOpts = append(fulfillOpts, fulfillment.WithLocker(fulfillment.NewRedisLocker(a.redis.Client)))
	}
	if a.Fulfillment, err = fulfillment.New(orderStore, docStore, a.Cases, registry, engine, blobs, cfg.Fulfillment, fulfillOpts...); err != nil {
		return err
	}

	if cfg.Webhook.Secret == "" {
		logger.WarnContext(ctx, "webhook secret not configured, every payment event will be rejected")
	}
	webhookOpts := []fulfillmenthandler.Option{fulfillmenthandler.WithMetrics(fm)}
	if a.redis != nil {
		webhookOpts = append(webhookOpts, fulfillmenthandler.WithDeduper(fulfillmenthandler.NewRedisDeduper(a.redis.Client, 0)))
	}
	a.handler = []httpapi.Registrar{
		caseshandler.New(a.Cases, logger),
		compliancehandler.New(engine, a.Cases, logger),
		fulfillmenthandler.New(a.Fulfillment,
			fulfillmenthandler.NewVerifier(cfg.Webhook.Secret, cfg.Webhook.Tolerance), logger, webhookOpts...),
	}
	return nil
}

func newRenderer(cfg config.Render) (pack.Renderer, error) {
	html, err := pack.NewHTMLRenderer()
	if err != nil {
		return nil, err
	}
	if !cfg.PDFEnabled {
		return html, nil
	}
	return pack.NewPDFRenderer(html, pack.WithChromePath(cfg.ChromePath), pack.WithRenderTimeout(cfg.Timeout)), nil
}

// Router returns the public HTTP handler.
func (a *App) Router() http.Handler {
	return httpapi.NewRouter(httpapi.Deps{
		Logger:         a.logger,
		Metrics:        metrics.New(),
		RequestTimeout: a.cfg.Server.RequestTimeout,
		HealthChecks:   a.checks,
		Handlers:       a.handler,
	})
}

// RunBackground runs the stale sweeper and the outbox relay until ctx ends.
func (a *App) RunBackground(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Fulfillment.RunSweeper(ctx, a.cfg.Fulfillment.SweepInterval)
		return nil
	})
	if a.relay != nil {
		g.Go(func() error {
			if err := a.relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("outbox relay: %w", err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Close releases connections. Safe on a partially built App.
func (a *App) Close() {
	if a.kafka != nil {
		a.kafka.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("closing redis", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("closing postgres", "error", err)
		}
	}
}
