package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/phonescreen-labs/phonescreen-core/internal/bus"
	"github.com/phonescreen-labs/phonescreen-core/internal/config"
	"github.com/phonescreen-labs/phonescreen-core/internal/flow"
	"github.com/phonescreen-labs/phonescreen-core/internal/gateway"
	"github.com/phonescreen-labs/phonescreen-core/internal/interview"
	"github.com/phonescreen-labs/phonescreen-core/internal/natsserver"
	"github.com/phonescreen-labs/phonescreen-core/internal/notify"
	"github.com/phonescreen-labs/phonescreen-core/internal/question"
	"github.com/phonescreen-labs/phonescreen-core/internal/recordstore"
	"github.com/phonescreen-labs/phonescreen-core/internal/session"
	"github.com/phonescreen-labs/phonescreen-core/internal/telephony"
	"github.com/phonescreen-labs/phonescreen-core/internal/webhook"
)

// Runtime assembles and runs the daemon: embedded bus, record store,
// interview flow, provider webhooks, the client gateway, and the HTTP
// servers that front them. Start blocks until the context is cancelled.
type Runtime struct {
	cfg    config.Config
	logger *slog.Logger

	httpServer    *http.Server
	metricsServer *http.Server
	tracerClose   func(context.Context) error

	natsServer *natsserver.EmbeddedServer
	busClient  *bus.Client
	store      *recordstore.Store
	sessions   *session.Store
	gateway    *gateway.Service
	manager    *interview.Manager

	ready atomic.Bool
	wg    sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	if r.cfg.Bus.Embedded {
		srv, err := natsserver.Start(r.cfg.Bus, r.logger)
		if err != nil {
			return fmt.Errorf("failed to start embedded bus: %w", err)
		}
		r.natsServer = srv
	}

	busClient, err := bus.Connect(ctx, r.cfg.Bus, r.logger)
	if err != nil {
		r.stopBus()
		return fmt.Errorf("failed to connect to bus: %w", err)
	}
	r.busClient = busClient

	store, err := recordstore.Open(ctx, r.cfg.RecordStore, r.logger)
	if err != nil {
		r.stopBus()
		return fmt.Errorf("failed to open record store: %w", err)
	}
	r.store = store

	r.manager = interview.NewManager(store, r.logger)
	r.sessions = session.NewStore()

	provider, err := telephony.New(r.cfg.Telephony)
	if err != nil {
		return fmt.Errorf("failed to build telephony provider: %w", err)
	}
	gen, err := question.New(r.cfg.Question)
	if err != nil {
		return fmt.Errorf("failed to build question generator: %w", err)
	}

	notifier := notify.NewBusNotifier(busClient, r.logger)
	controller := flow.NewController(r.cfg.Interview, r.cfg.Question, r.sessions, r.manager, gen, notifier, r.logger)
	hooks := webhook.NewHandler(controller, r.logger)

	r.gateway = gateway.NewService(r.cfg.HTTP, r.manager, provider, r.sessions, busClient, r.logger)
	if err := r.gateway.Start(); err != nil {
		return fmt.Errorf("failed to start gateway: %w", err)
	}

	mux := http.NewServeMux()
	hooks.Register(mux)
	mux.HandleFunc("/ws", r.gateway.HandleWS)
	mux.HandleFunc("GET /interviews/{id}", r.handleGetInterview)
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	if metricsHandler != nil {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", metricsHandler)
		r.metricsServer = &http.Server{
			Addr:              r.cfg.Telemetry.PrometheusBind,
			Handler:           metricsMux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			if err := r.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				r.logger.Error("metrics server failed", slog.String("error", err.Error()))
			}
		}()
	}

	r.ready.Store(true)
	r.logger.Info("runtime started",
		slog.String("addr", addr),
		slog.String("public_url", r.cfg.HTTP.PublicURL))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	r.ready.Store(false)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	if r.metricsServer != nil {
		if err := r.metricsServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("metrics shutdown error", slog.String("error", err.Error()))
		}
	}

	r.gateway.Close()

	// In-flight calls don't survive a restart; the provider's status
	// webhooks for them will land after we are gone, so record what is
	// being abandoned.
	if n := r.sessions.Len(); n > 0 {
		r.logger.Warn("shutting down with live interview sessions",
			slog.Int("sessions", n),
			slog.Any("call_ids", r.sessions.CallIDs()))
	}

	r.busClient.Close()
	r.stopBus()
	if err := r.store.Close(); err != nil {
		r.logger.Error("record store close error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

func (r *Runtime) stopBus() {
	if r.natsServer != nil {
		r.natsServer.Shutdown()
		r.natsServer = nil
	}
}

func (r *Runtime) handleGetInterview(w http.ResponseWriter, req *http.Request) {
	rec, err := r.manager.Get(req.Context(), req.PathValue("id"))
	if err != nil {
		if errors.Is(err, interview.ErrRecordNotFound) {
			http.Error(w, "interview not found", http.StatusNotFound)
			return
		}
		r.logger.Error("failed to load interview", slog.String("error", err.Error()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rec)
}

// handleHealth is pure liveness: the process is up and answering. Dependency
// state is the readiness endpoint's job.
func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (r *Runtime) handleReady(w http.ResponseWriter, req *http.Request) {
	if r.ready.Load() && r.store.Healthy(req.Context()) && r.busClient.Healthy() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}
