package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"

	"github.com/julienschmidt/httprouter"

	"rentsplit/pkg/config"
	"rentsplit/pkg/contracts"
	"rentsplit/pkg/middleware"
)

type Application struct {
	cfg              *config.Config
	server           *http.Server
	idempotencyStore *middleware.InMemoryIdempotencyStore
	rateLimiter      *middleware.ParticipantRateLimiter
	healthHandler    http.Handler
	streamHandler    http.Handler
	streamPatterns   []string
	appHTTPHandler   http.Handler
	workers          []contracts.Worker
	closers          []func()
}

func NewApplication() *Application {
	return &Application{}
}

// SetApp wires the three route groups. stream may be nil.
func (a *Application) SetApp(cfg *config.Config, health contracts.Handler, appHandler contracts.Handler, stream contracts.StreamHandler) {
	a.cfg = cfg
	a.setHealthHandler(health)
	a.setStreamHandler(stream)
	a.setAppHandler(appHandler)
	a.setAppServer()
}

// AddWorker registers a background loop started by Run and stopped on shutdown.
func (a *Application) AddWorker(w contracts.Worker) {
	a.workers = append(a.workers, w)
}

// OnShutdown registers cleanup run after the server and workers stopped,
// in reverse registration order.
func (a *Application) OnShutdown(fn func()) {
	a.closers = append(a.closers, fn)
}

func (a *Application) Handler() http.Handler {
	return a.server.Handler
}

func (a *Application) setHealthHandler(health contracts.Handler) {
	healthRouter := httprouter.New()
	health.RegisterRoutes(healthRouter)

	var h http.Handler = healthRouter
	h = middleware.RequestLogging(a.cfg.Log)(h)
	h = middleware.Recovery(a.cfg.Log)(h)
	a.healthHandler = h
	a.cfg.Log.Info("Health endpoints configured with minimal middleware (Recovery + Logging only)")
}

func (a *Application) setStreamHandler(stream contracts.StreamHandler) {
	if stream == nil {
		return
	}
	streamRouter := httprouter.New()
	stream.RegisterStreamRoutes(streamRouter)

	var h http.Handler = streamRouter
	h = middleware.RequestLogging(a.cfg.Log)(h)
	h = middleware.Recovery(a.cfg.Log)(h)
	a.streamHandler = h
	a.streamPatterns = stream.StreamPatterns()
	a.cfg.Log.Info("Stream endpoints configured without request timeout", "patterns", a.streamPatterns)
}

func (a *Application) setAppHandler(appHandler contracts.Handler) {
	cfg := a.cfg
	appRouter := httprouter.New()
	appHandler.RegisterRoutes(appRouter)

	a.idempotencyStore = middleware.NewInMemoryIdempotencyStore(cfg.IdempotencyTTL)
	a.rateLimiter = middleware.NewParticipantRateLimiter(
		cfg.RateLimitRequests,
		cfg.RateLimitWindow,
		middleware.DefaultParticipantExtractor,
		cfg.Log,
	)

	var h http.Handler = appRouter
	h = middleware.Idempotency(a.idempotencyStore, middleware.IdempotencyKeyHeader)(h)
	h = middleware.RequestTimeout(cfg.RequestTimeout)(h)
	h = middleware.ParticipantRateLimit(a.rateLimiter)(h)
	h = middleware.ContentTypeValidation(cfg.Log)(h)
	h = middleware.MaxRequestSize(int64(cfg.MaxRequestSize))(h)
	h = middleware.RequestLogging(cfg.Log)(h)
	h = middleware.Recovery(cfg.Log)(h)
	a.appHTTPHandler = h
	cfg.Log.Info("Application endpoints configured with full middleware stack")
}

func (a *Application) setAppServer() {
	mux := http.NewServeMux()
	mux.Handle("/health", a.healthHandler)
	mux.Handle("/ready", a.healthHandler)
	for _, pattern := range a.streamPatterns {
		mux.Handle(pattern, a.streamHandler)
	}
	mux.Handle("/", a.appHTTPHandler)

	a.server = &http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      mux,
		ReadTimeout:  a.cfg.ReadTimeout,
		WriteTimeout: a.cfg.WriteTimeout,
		IdleTimeout:  a.cfg.IdleTimeout,
	}

	a.cfg.Log.Info("HTTP server configured", "port", a.cfg.Port)
}

func (a *Application) Run() {
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	var wg sync.WaitGroup
	for _, w := range a.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.cfg.Log.Info("Starting background worker", "worker", w.Name())
			if err := w.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
				a.cfg.Log.Error("Background worker stopped with error", "worker", w.Name(), "error", err)
			}
		}()
	}

	serverErrors := make(chan error, 1)
	go func() {
		a.cfg.Log.Info("Starting HTTP server", "address", a.server.Addr)
		serverErrors <- a.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		a.cfg.Log.Fatal("HTTP server failed", "error", err)

	case sig := <-shutdown:
		a.cfg.Log.Info("Shutdown signal received", "signal", sig)
		a.gracefulShutdown(stopWorkers, &wg)
	}
}

func (a *Application) gracefulShutdown(stopWorkers context.CancelFunc, workers *sync.WaitGroup) {
	a.cfg.Log.Info("Starting graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.cfg.Log.Error("Server shutdown failed", "error", err)
		if err := a.server.Close(); err != nil {
			a.cfg.Log.Fatal("Could not stop server gracefully", "error", err)
		}
	}

	a.cfg.Log.Info("Stopping background workers...")
	stopWorkers()
	workers.Wait()
	a.idempotencyStore.Stop()
	a.rateLimiter.Stop()
	a.cfg.Log.Info("Background workers stopped")

	for _, fn := range slices.Backward(a.closers) {
		fn()
	}

	a.cfg.Log.Info("Server stopped gracefully")
}
