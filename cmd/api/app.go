package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivertype"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/formbricks/recommender/internal/api/handlers"
	"github.com/formbricks/recommender/internal/api/middleware"
	"github.com/formbricks/recommender/internal/config"
	"github.com/formbricks/recommender/internal/embeddings"
	"github.com/formbricks/recommender/internal/jobs"
	"github.com/formbricks/recommender/internal/observability"
	"github.com/formbricks/recommender/internal/repository"
	"github.com/formbricks/recommender/internal/service"
	"github.com/formbricks/recommender/internal/vectorindex"
	"github.com/formbricks/recommender/internal/workers"
)

// App holds all server dependencies and coordinates startup and shutdown.
type App struct {
	cfg            *config.Config
	db             *pgxpool.Pool
	server         *http.Server
	river          *river.Client[pgx.Tx]
	embeddings     *embeddings.Stack
	index          vectorIndex
	sync           *service.SyncService
	meterProvider  *observability.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	metrics        *observability.Metrics
}

// vectorIndex is implemented by both index backends.
type vectorIndex interface {
	service.VectorSearcher
	service.VectorIndexWriter
	Count(ctx context.Context) (int, error)
}

const syncQueueDepthInterval = 15 * time.Second

// setupMetrics creates the meter provider and recommender metrics when metrics are enabled.
// When NewMeterProvider returns nil (unsupported or disabled exporter), returns (nil, nil, nil).
func setupMetrics(ctx context.Context, cfg *config.Config) (*observability.MeterProvider, *observability.Metrics, error) {
	mp, err := observability.NewMeterProvider(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create meter provider: %w", err)
	}

	if mp == nil {
		return nil, nil, nil
	}

	metrics, err := observability.NewMetrics(mp.ServiceMeter())
	if err != nil {
		if err2 := observability.ShutdownMeterProvider(context.Background(), mp); err2 != nil {
			slog.Error("shutdown meter provider after metrics error", "error", err2)
		}

		return nil, nil, fmt.Errorf("create metrics: %w", err)
	}

	return mp, metrics, nil
}

// newVectorIndex selects the index backend from VECTOR_INDEX_BACKEND.
func newVectorIndex(cfg *config.Config, db *pgxpool.Pool) (vectorIndex, error) {
	if cfg.VectorIndexBackend == config.VectorIndexMemory {
		return vectorindex.NewMemory(), nil
	}

	idx, err := repository.NewProductVectorsRepository(db, cfg.VectorCollection)
	if err != nil {
		return nil, fmt.Errorf("create pgvector index: %w", err)
	}

	return idx, nil
}

// NewApp builds and wires all components. It does not start the HTTP server or River;
// call Run to start and block until shutdown or failure.
func NewApp(ctx context.Context, cfg *config.Config, db *pgxpool.Pool) (_ *App, err error) {
	app := &App{cfg: cfg, db: db}

	// Release whatever was created when a later step fails.
	defer func() {
		if err != nil {
			app.closeResources(context.Background())
		}
	}()

	if cfg.OtelMetricsExporter == "" {
		slog.Warn("metrics not enabled (OTEL_METRICS_EXPORTER empty or unset)")
	} else {
		app.meterProvider, app.metrics, err = setupMetrics(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	if cfg.OtelTracesExporter == "" {
		slog.Warn("tracing not enabled (OTEL_TRACES_EXPORTER empty or unset)")
	} else {
		app.tracerProvider, err = observability.NewTracerProvider(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("create tracer provider: %w", err)
		}
	}

	if app.tracerProvider != nil {
		otel.SetTracerProvider(app.tracerProvider)
	}

	if app.meterProvider != nil {
		otel.SetMeterProvider(app.meterProvider)
	}

	var (
		httpMetrics observability.HTTPMetrics
		recMetrics  observability.RecommendationMetrics
		syncMetrics observability.SyncMetrics
	)

	if app.metrics != nil {
		httpMetrics = app.metrics.HTTP
		recMetrics = app.metrics.Recommendations
		syncMetrics = app.metrics.Sync
	}

	app.embeddings, err = embeddings.NewStackFromConfig(ctx, cfg, app.metrics, slog.Default())
	if err != nil {
		return nil, fmt.Errorf("create embedding client: %w", err)
	}

	app.index, err = newVectorIndex(cfg, db)
	if err != nil {
		return nil, err
	}

	productsRepo := repository.NewProductsRepository(db)
	activityRepo := repository.NewActivityRepository(db)

	activityService := service.NewActivityService(service.ActivityServiceParams{
		Activity: activityRepo,
		Products: productsRepo,
		Params:   cfg.Ranking,
	})
	profileService := service.NewProfileService(service.ProfileServiceParams{
		Activity:   activityService,
		Products:   productsRepo,
		Embeddings: app.embeddings.Client,
		Params:     cfg.Ranking,
	})
	recommendationService := service.NewRecommendationService(service.RecommendationServiceParams{
		Products:   productsRepo,
		Index:      app.index,
		Embeddings: app.embeddings.Client,
		Profiles:   profileService,
		Params:     cfg.Ranking,
		Metrics:    recMetrics,
	})
	app.sync = service.NewSyncService(service.SyncServiceParams{
		Products:           productsRepo,
		Index:              app.index,
		Embeddings:         app.embeddings.Client,
		Dimensions:         cfg.EmbeddingDimensions,
		BatchSize:          cfg.SyncBatchSize,
		EmbeddingRateLimit: cfg.SyncEmbeddingRateLimit,
		Metrics:            syncMetrics,
	})

	var inserter jobs.JobInserter

	if cfg.SyncQueueEnabled {
		app.river, err = newRiverClient(cfg, db, app.sync)
		if err != nil {
			return nil, err
		}

		inserter = jobs.NewRiverJobInserter(app.river)

		slog.Info("sync queue enabled", "queue", jobs.SyncQueueName, "interval", cfg.SyncInterval)
	} else {
		slog.Info("sync queue disabled (SYNC_QUEUE_ENABLED=false); POST /v1/sync runs inline only")
	}

	var metricsHandler http.Handler
	if app.meterProvider != nil {
		metricsHandler = app.meterProvider.Handler
	}

	app.server = newHTTPServer(
		cfg,
		handlers.NewHealthHandler(db),
		handlers.NewRecommendationsHandler(recommendationService, profileService, cfg.RequestTimeout),
		handlers.NewSyncHandler(app.sync, inserter),
		metricsHandler,
		httpMetrics,
		app.meterProvider,
		app.tracerProvider,
	)

	return app, nil
}

// newRiverClient registers the product sync worker on its own single-worker queue, plus the periodic rebuild.
func newRiverClient(cfg *config.Config, db *pgxpool.Pool, sync *service.SyncService) (*river.Client[pgx.Tx], error) {
	riverWorkers := river.NewWorkers()
	river.AddWorker(riverWorkers, workers.NewProductSyncWorker(sync, slog.Default()))

	riverConfig := &river.Config{
		Queues: map[string]river.QueueConfig{
			// One rebuild at a time; the sync service also rejects overlapping runs.
			jobs.SyncQueueName: {MaxWorkers: 1},
		},
		Workers:      riverWorkers,
		ErrorHandler: &jobs.ErrorHandler{Logger: slog.Default()},
		MaxAttempts:  jobs.SyncMaxAttempts,
		Logger:       slog.Default(),
	}

	if periodic := jobs.PeriodicSyncJob(cfg.SyncInterval); periodic != nil {
		riverConfig.PeriodicJobs = []*river.PeriodicJob{periodic}
	}

	client, err := river.NewClient(riverpgxv5.New(db), riverConfig)
	if err != nil {
		return nil, fmt.Errorf("create River client: %w", err)
	}

	return client, nil
}

// newHTTPServer builds the HTTP server and mux. /health and /metrics are not traced.
// Handler chain: RequestID -> Metrics -> otelhttp(Logging(mux)) so access logs get trace_id/span_id from context.
func newHTTPServer(
	cfg *config.Config,
	health *handlers.HealthHandler,
	recommendations *handlers.RecommendationsHandler,
	sync *handlers.SyncHandler,
	metricsHandler http.Handler,
	httpMetrics observability.HTTPMetrics,
	meterProvider *observability.MeterProvider,
	tracerProvider *sdktrace.TracerProvider,
) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", health.Check)

	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}

	mux.HandleFunc("GET /v1/recommend/product/{id}", recommendations.ProductRecommendations)
	mux.HandleFunc("GET /v1/recommend/user/{id}", recommendations.UserRecommendations)
	mux.HandleFunc("GET /v1/recommend/user/{id}/profile", recommendations.UserProfile)
	mux.HandleFunc("POST /v1/sync", sync.Sync)

	otelOpts := []otelhttp.Option{
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health" && r.URL.Path != "/metrics"
		}),
	}
	if meterProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithMeterProvider(meterProvider))
	}

	if tracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(tracerProvider))
	}

	// Logging runs inside otelhttp so r.Context() has the span when we log.
	inner := middleware.Logging(mux)
	handler := otelhttp.NewHandler(inner, "recommender-api", otelOpts...)

	if httpMetrics != nil {
		handler = middleware.Metrics(httpMetrics)(handler)
	}

	handler = middleware.RequestID(handler)

	const (
		readTimeout  = 15 * time.Second
		writeTimeout = 30 * time.Second
		idleTimeout  = 60 * time.Second
	)

	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
}

// Run starts the HTTP server and River, then blocks until ctx is cancelled (e.g. signal)
// or a component fails. Caller should then call Shutdown.
func (a *App) Run(ctx context.Context) error {
	runErr := make(chan error, 1)

	bgCtx, cancelBackground := context.WithCancel(ctx)
	defer cancelBackground()

	a.checkIndex(bgCtx)

	if a.river != nil {
		if a.metrics != nil && a.metrics.Sync != nil {
			go runSyncQueueDepthPoller(bgCtx, a.db, a.metrics.Sync)
		}

		go func() {
			if err := a.river.Start(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
				select {
				case runErr <- fmt.Errorf("river: %w", err):
				default:
				}
			}
		}()
	}

	go func() {
		slog.Info("Starting server", "port", a.cfg.Port, "vector_index", a.cfg.VectorIndexBackend)

		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case runErr <- fmt.Errorf("server: %w", err):
			default:
			}
		}
	}()

	select {
	case err := <-runErr:
		cancelBackground()

		return err
	case <-ctx.Done():
		cancelBackground()

		return nil
	}
}

// checkIndex fills the in-memory index in the background, since it starts empty on every boot.
// For pgvector it only warns when the collection is empty.
func (a *App) checkIndex(ctx context.Context) {
	if a.cfg.VectorIndexBackend == config.VectorIndexMemory {
		go func() {
			result, err := a.sync.RebuildIndex(ctx)
			if err != nil {
				slog.ErrorContext(ctx, "initial in-memory index build failed", "error", err)

				return
			}

			slog.InfoContext(ctx, "in-memory index built", "indexed", result.Indexed, "skipped", result.Skipped)
		}()

		return
	}

	count, err := a.index.Count(ctx)
	if err != nil {
		slog.WarnContext(ctx, "vector index count failed", "error", err)

		return
	}

	if count == 0 {
		slog.WarnContext(ctx, "vector index is empty; run sync-products or POST /v1/sync",
			"collection", a.cfg.VectorCollection)
	}
}

// runSyncQueueDepthPoller periodically updates the sync queue depth gauge.
func runSyncQueueDepthPoller(ctx context.Context, db *pgxpool.Pool, syncMetrics observability.SyncMetrics) {
	ticker := time.NewTicker(syncQueueDepthInterval)
	defer ticker.Stop()

	update := func() {
		var count int

		err := db.QueryRow(ctx,
			`SELECT COUNT(*) FROM river_job WHERE queue = $1 AND state::text = ANY($2)`,
			jobs.SyncQueueName,
			[]string{
				string(rivertype.JobStateAvailable),
				string(rivertype.JobStateRetryable),
				string(rivertype.JobStateScheduled),
			},
		).Scan(&count)
		if err != nil {
			slog.WarnContext(ctx, "sync queue depth poll failed", "error", err)

			return
		}

		syncMetrics.SetQueueDepth(count)
	}

	update()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			update()
		}
	}
}

// shutdownObservability shuts down tracer and meter providers. Logs secondary errors, returns the first.
func shutdownObservability(ctx context.Context, tracer *sdktrace.TracerProvider, meter *observability.MeterProvider) error {
	var first error

	if tracer != nil {
		if err := observability.ShutdownTracerProvider(ctx, tracer); err != nil {
			first = err
		}
	}

	if meter != nil {
		if err := observability.ShutdownMeterProvider(ctx, meter); err != nil {
			if first == nil {
				first = err
			} else {
				slog.Error("shutdown meter provider", "error", err)
			}
		}
	}

	return first
}

// closeResources releases the embedding stack and observability providers.
func (a *App) closeResources(ctx context.Context) {
	if a.embeddings != nil {
		if err := a.embeddings.Close(); err != nil {
			slog.Error("close embedding cache", "error", err)
		}
	}

	if err := shutdownObservability(ctx, a.tracerProvider, a.meterProvider); err != nil {
		slog.Error("shutdown observability", "error", err)
	}
}

// Shutdown stops the server, then River. Call after Run returns.
// Observability is shut down once via defer; its error is returned only when server and River shut down successfully.
func (a *App) Shutdown(ctx context.Context) (err error) {
	defer func() {
		if a.embeddings != nil {
			if closeErr := a.embeddings.Close(); closeErr != nil {
				slog.Error("close embedding cache", "error", closeErr)
			}
		}

		obsErr := shutdownObservability(ctx, a.tracerProvider, a.meterProvider)
		if err == nil {
			err = obsErr
		} else if obsErr != nil {
			slog.Error("shutdown observability", "error", obsErr)
		}
	}()

	if err = a.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.stopRiver(ctx)

		return fmt.Errorf("server shutdown: %w", err)
	}

	if a.river == nil {
		return nil
	}

	if err = a.river.Stop(ctx); err != nil {
		return fmt.Errorf("river stop: %w", err)
	}

	return nil
}

func (a *App) stopRiver(ctx context.Context) {
	if a.river == nil {
		return
	}

	if err := a.river.Stop(ctx); err != nil {
		slog.Error("river stop during server shutdown", "error", err)
	}
}
