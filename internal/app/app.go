package app

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

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/LASER-IDEA/white-paper-sub000/internal/config"
	"github.com/LASER-IDEA/white-paper-sub000/internal/engine"
	apierrors "github.com/LASER-IDEA/white-paper-sub000/internal/errors"
	"github.com/LASER-IDEA/white-paper-sub000/internal/infrastructure"
	"github.com/LASER-IDEA/white-paper-sub000/internal/middleware"
	"github.com/LASER-IDEA/white-paper-sub000/internal/services"
	handlers "github.com/LASER-IDEA/white-paper-sub000/internal/transport/http"
)

// runtimeInterval is how often runtime gauges are refreshed
const runtimeInterval = 15 * time.Second

// Application holds every long-lived component of the index service
type Application struct {
	Config        *config.Config
	Logger        *slog.Logger
	Router        *chi.Mux
	Server        *http.Server
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.BusinessMetrics
	Runtime       *infrastructure.RuntimeMetrics
	Engine        *engine.Engine
	IndexService  *services.IndexService
	HealthService *services.HealthService
}

// New builds the application from cfg. The caller owns logger setup.
func New(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	providers, err := infrastructure.InitializeOTel(cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics, err := infrastructure.CreateBusinessMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}

	runtimeMetrics, err := infrastructure.NewRuntimeMetrics(providers.Meter, runtimeInterval)
	if err != nil {
		return nil, fmt.Errorf("failed to create runtime metrics: %w", err)
	}

	eng, err := engine.NewFromConfig(cfg.Engine,
		engine.WithLogger(infrastructure.WithComponent(logger, "engine")),
		engine.WithTracer(providers.Tracer),
		engine.WithMetrics(metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	a := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: providers,
		Metrics:       metrics,
		Runtime:       runtimeMetrics,
		Engine:        eng,
		IndexService:  services.NewIndexService(eng, logger),
		HealthService: services.NewHealthService(config.AppVersion, eng, runtimeMetrics, logger),
	}

	a.setupRouter()
	a.createServer()
	return a, nil
}

func (a *Application) setupRouter() {
	r := chi.NewRouter()
	errorHandler := apierrors.NewErrorHandler(a.Logger, false)

	// RequestID → RealIP → telemetry → logger → recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Telemetry(a.OTelProviders.Tracer, a.Metrics))
	r.Use(middleware.StructuredLogger(a.Logger))
	r.Use(apierrors.RecoveryMiddleware(errorHandler))
	r.Use(middleware.SecurityHeaders)

	if a.Config.Security.RateLimit.Enabled {
		r.Use(middleware.NewRateLimiter(
			a.Config.Security.RateLimit.RPS,
			a.Config.Security.RateLimit.Burst,
			a.Logger,
		).Handler)
	}

	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(chimiddleware.Timeout(a.Config.Server.WriteTimeout))

		healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
		r.Get("/health", healthHandler.HealthCheck)
		r.Get("/health/live", healthHandler.LivenessCheck)
		r.Get("/version", healthHandler.Version)

		r.Route("/v1", func(r chi.Router) {
			r.Use(middleware.BodyLimit(a.Config.Server.MaxBodyBytes))
			r.Use(middleware.ContentTypeValidator(errorHandler,
				"text/csv", "application/csv", "text/plain", "application/json",
				"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
				"application/octet-stream"))

			indexHandler := handlers.NewIndexHandler(a.IndexService, middleware.NewValidator(a.Logger), a.Logger, errorHandler)
			r.Mount("/indices", indexHandler.Routes())
		})
	})

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start begins serving in the background. A listener failure cancels ctx
// through cancel.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) {
	a.Logger.InfoContext(ctx, "starting index service",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion),
		slog.Int("port", a.Config.Server.Port),
		slog.Int("indices", len(a.Engine.Definitions())))

	go a.Runtime.Start(ctx)

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "server error", slog.String("error", err.Error()))
			cancel()
		}
	}()
}

// Stop drains in-flight requests and flushes telemetry
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "shutting down index service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}

	a.Runtime.Stop()

	if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
	}

	a.Logger.InfoContext(ctx, "shutdown complete")
	return errors.Join(errs...)
}

// Run serves until SIGINT or SIGTERM, then shuts down gracefully
func (a *Application) Run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a.Start(ctx, cancel)
	<-ctx.Done()

	return a.Stop(context.WithoutCancel(ctx))
}
