package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"cabanas/internal/clock"
	"cabanas/internal/config"
	"cabanas/internal/domain"
	"cabanas/internal/export"
	"cabanas/internal/metrics"
	"cabanas/internal/service"

	"github.com/rs/zerolog"
)

// HTTPServer exposes the public booking API and the admin surface.
type HTTPServer struct {
	cfg          config.APIConfig
	gatewayMode  string
	store        domain.Store
	gw           domain.Gateway
	availability *service.AvailabilityService
	holds        *service.HoldService
	reconciler   *service.Reconciler
	exporter     *export.Exporter
	bus          domain.EventPublisher
	clk          clock.Clock
	server       *http.Server
	auth         *HTTPAuth
	logger       zerolog.Logger
}

func NewHTTPServer(
	cfg config.APIConfig,
	gatewayMode string,
	store domain.Store,
	gw domain.Gateway,
	availability *service.AvailabilityService,
	holds *service.HoldService,
	reconciler *service.Reconciler,
	exporter *export.Exporter,
	bus domain.EventPublisher,
	clk clock.Clock,
	logger *zerolog.Logger,
) *HTTPServer {
	mux := http.NewServeMux()
	srv := &HTTPServer{
		cfg:          cfg,
		gatewayMode:  gatewayMode,
		store:        store,
		gw:           gw,
		availability: availability,
		holds:        holds,
		reconciler:   reconciler,
		exporter:     exporter,
		bus:          bus,
		clk:          clk,
		logger:       logger.With().Str("component", "api").Logger(),
	}
	srv.auth = NewHTTPAuth(cfg)

	mux.HandleFunc("/api/v1/units", srv.handleUnits)
	mux.HandleFunc("/api/v1/availability/", srv.handleAvailability)
	mux.HandleFunc("/api/v1/bookings", srv.handleCreateBooking)
	mux.HandleFunc("/api/v1/bookings/", srv.handleGetBooking)
	mux.HandleFunc("/api/v1/payments/webhook", srv.handleWebhook)
	mux.HandleFunc("/api/v1/payments/return", srv.handleReturn)
	mux.HandleFunc("/api/v1/jobs/reconcile", srv.handleReconcileJob)

	mux.HandleFunc("/api/v1/admin/blocks", srv.handleBlocks)
	mux.HandleFunc("/api/v1/admin/blocks/", srv.handleDeleteBlock)
	mux.HandleFunc("/api/v1/admin/bookings", srv.handleAdminBookings)
	mux.HandleFunc("/api/v1/admin/export", srv.handleExport)

	if gatewayMode == "mock" {
		mux.HandleFunc("/api/v1/payments/mock-confirm", srv.handleMockConfirm)
	}

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

// Handler returns the configured root handler, used by tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		metrics.IncHTTP(r.URL.Path)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
