package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/sprinkler-controller/internal/controllers/systemcontroller"
	"github.com/thatsimonsguy/sprinkler-controller/internal/zone"
)

const (
	maxBodyBytes    = 16 << 10
	shutdownTimeout = 10 * time.Second
)

type Server struct {
	registry *zone.Registry
	system   *systemcontroller.Controller
	router   http.Handler
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func NewServer(registry *zone.Registry, system *systemcontroller.Controller) *Server {
	s := &Server{
		registry: registry,
		system:   system,
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)
	r.Use(bodySizeLimit)

	r.Route("/system", func(r chi.Router) {
		r.Get("/state", s.getSystemState)
		r.Put("/state", s.setSystemState)
		r.Post("/run", s.startJob)
		r.Post("/winterize", s.startJob)
		r.Post("/test", s.startJob)
		r.Post("/abort", s.abortJob)
		r.Get("/job", s.getJob)
	})

	r.Route("/zone", func(r chi.Router) {
		r.Put("/", s.toggleZone)
		r.Post("/", s.createZone)
		r.Delete("/", s.deleteZone)
		r.Get("/info", s.getZones)
		r.Get("/info/{id}", s.getZone)
		r.Put("/update", s.updateZone)
		r.Put("/order", s.reorderZones)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

// Start serves the API on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("address", addr).Msg("Starting REST API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down api server: %w", err)
	}
	log.Info().Msg("REST API server stopped")
	return nil
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("api request")
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bodySizeLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Warn().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	s.writeJSON(w, statusCode, ErrorResponse{Error: message})
}

// writeFailure maps a core error onto an HTTP status.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, zone.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, zone.ErrHardwareUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, zone.ErrLengthMismatch), errors.Is(err, zone.ErrInvalidZone):
		status = http.StatusBadRequest
	case errors.Is(err, zone.ErrZoneActive), errors.Is(err, systemcontroller.ErrBusy):
		status = http.StatusConflict
	}

	event := log.Warn()
	if status >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.Err(err).Str("method", r.Method).Str("path", r.URL.Path).Int("status", status).Msg("request failed")

	s.writeError(w, status, err.Error())
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return false
	}
	return true
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid zone id %q", raw)
	}
	return id, nil
}
