// Package app assembles the application: configuration, logging,
// metrics, storage, services, router and HTTP server.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/gorilla/websocket"

	"tradejournal/internal/config"
	apierrors "tradejournal/internal/errors"
	"tradejournal/internal/infrastructure"
	custommw "tradejournal/internal/middleware"
	"tradejournal/internal/operations"
	"tradejournal/internal/services"
	"tradejournal/internal/storage"
	transporthttp "tradejournal/internal/transport/http"
	"tradejournal/internal/validation"
	wshub "tradejournal/internal/websocket"
)

// Version is set at build time with -ldflags.
var Version = "dev"

// Application holds every long-lived component.
type Application struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *infrastructure.Metrics
	Store   *storage.Store
	Hub     *wshub.Hub
	Router  chi.Router

	registry      *operations.Registry
	importService *services.ImportService
	accounts      *services.AccountService
	health        *services.HealthService
	upgrader      websocket.Upgrader
	server        *http.Server
}

// New builds the application from configuration.
func New() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	metrics, err := infrastructure.InitializeMetrics(Version, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize metrics: %w", err)
	}

	a := &Application{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics,
	}
	if err := a.initializeServices(); err != nil {
		return nil, err
	}
	a.setupRouter()
	a.createServer()
	return a, nil
}

func (a *Application) initializeServices() error {
	if dir := filepath.Dir(a.Config.Storage.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}
	}
	store, err := storage.Open(a.Config.Storage.DatabasePath, a.Logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	a.Store = store

	a.Hub = wshub.NewHub(a.Logger)
	a.registry = operations.NewRegistry(a.Config.Import.SessionTTL, a.Logger)
	a.accounts = services.NewAccountService(store, a.Config.Import.AccountCacheTTL, a.Logger)
	a.importService = services.NewImportService(
		a.registry,
		a.accounts,
		store,
		a.Hub,
		services.ImportMetrics{
			ImportsStarted: a.Metrics.ImportsStarted,
			TradesSaved:    a.Metrics.TradesSaved,
			TradesSkipped:  a.Metrics.TradesSkipped,
			TradesFailed:   a.Metrics.TradesFailed,
			ParseFailures:  a.Metrics.ParseFailures,
		},
		a.Logger,
	)
	a.health = services.NewHealthService(Version, store, a.registry)

	a.upgrader = websocket.Upgrader{
		ReadBufferSize:  a.Config.WebSocket.ReadBufferSize,
		WriteBufferSize: a.Config.WebSocket.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, allowed := range a.Config.Security.AllowedOrigins {
				if allowed == "*" || allowed == origin {
					return true
				}
			}
			return false
		},
	}
	return nil
}

func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// RequestID and RealIP stay outside the group so the websocket
	// upgrade is not wrapped by a response writer it cannot hijack.
	r.Use(custommw.RequestID)
	r.Use(chimiddleware.RealIP)

	r.HandleFunc("/ws", a.handleWebSocket)
	r.Handle("/metrics", a.Metrics.PrometheusHTTP)

	errHandler := apierrors.NewErrorHandler(a.Logger)
	uploadValidator := validation.NewUploadValidator(a.Config.Import.MaxUploadBytes, a.Logger)

	r.Group(func(r chi.Router) {
		r.Use(custommw.StructuredLogger(a.Logger))
		r.Use(custommw.Recoverer(a.Logger))
		r.Use(custommw.SecurityHeaders)
		if a.Config.Security.EnableCORS {
			r.Use(custommw.CORS(custommw.CORSConfig{
				AllowedOrigins: a.Config.Security.AllowedOrigins,
			}))
		}
		if a.Config.Security.RateLimit.Enabled {
			r.Use(custommw.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		r.Route("/api", func(r chi.Router) {
			r.Use(render.SetContentType(render.ContentTypeJSON))

			healthHandler := transporthttp.NewHealthHandler(a.health, a.Logger)
			r.Mount("/health", healthHandler.Routes())

			importHandler := transporthttp.NewImportHandler(a.importService, uploadValidator, errHandler, a.Logger)
			r.Mount("/import", importHandler.Routes())

			accountHandler := transporthttp.NewAccountHandler(a.accounts, errHandler, a.Logger)
			r.Mount("/accounts", accountHandler.Routes())
		})
	})

	a.Router = r
}

func (a *Application) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if err := wshub.ServeWS(a.Hub, a.upgrader, w, r, a.Logger); err != nil {
		a.Logger.ErrorContext(r.Context(), "websocket upgrade failed",
			slog.String("error", err.Error()),
			slog.String("remote_addr", r.RemoteAddr))
	}
}

func (a *Application) createServer() {
	a.server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Run starts the server and blocks until SIGINT or SIGTERM, then shuts
// down gracefully.
func (a *Application) Run() error {
	a.Hub.Start()

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("server listening", slog.Int("port", a.Config.Server.Port))
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-stop:
		a.Logger.Info("shutting down", slog.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()
	return a.Stop(ctx)
}

// Stop shuts every component down in dependency order.
func (a *Application) Stop(ctx context.Context) error {
	var firstErr error
	if err := a.server.Shutdown(ctx); err != nil {
		firstErr = fmt.Errorf("server shutdown: %w", err)
	}
	a.Hub.Shutdown()
	if err := a.Metrics.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("metrics shutdown: %w", err)
	}
	if err := a.Store.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("storage close: %w", err)
	}
	infrastructure.CloseLogFile()

	if firstErr != nil {
		return firstErr
	}
	a.Logger.Info("shutdown complete")
	return nil
}
