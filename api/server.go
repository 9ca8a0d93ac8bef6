// Package api provides the HTTP read API over the sales warehouse.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"sales-analytics/internal/metrics"
	"sales-analytics/internal/query"
)

// Server is the HTTP API server
type Server struct {
	httpServer *http.Server
	sales      *query.Service
	metrics    *metrics.Registry
	config     *Config
}

// Config holds server configuration
type Config struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	return &Config{
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
}

// NewServer creates a new API server
func NewServer(sales *query.Service, reg *metrics.Registry, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	return &Server{
		sales:   sales,
		metrics: reg,
		config:  config,
	}
}

// StoreSummaryResponse is one store's aggregate in /sales/summary.
type StoreSummaryResponse struct {
	StoreID  string  `json:"store_id"`
	RowCount uint64  `json:"row_count"`
	Revenue  float64 `json:"revenue"`
}

// ProductRowResponse is one product's aggregate in /sales/top-products.
type ProductRowResponse struct {
	Product string  `json:"product"`
	Revenue float64 `json:"revenue"`
	Qty     int64   `json:"qty"`
}

// Router builds the chi router with all routes and middleware mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.loggingMiddleware)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/", s.handleRoot)
	r.Get("/sales/summary", s.handleSummary)
	r.Get("/sales/top-products", s.handleTopProducts)

	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	return r
}

func (s *Server) newHTTPServer() *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.Router(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.httpServer = s.newHTTPServer()
	log.Info().Int("port", s.config.Port).Msg("Starting sales API server")
	return s.httpServer.ListenAndServe()
}

// StartWithGracefulShutdown starts the server and drains it on SIGINT/SIGTERM.
func (s *Server) StartWithGracefulShutdown() error {
	// The handle must exist before the goroutine starts so a signal
	// arriving immediately still has a server to shut down.
	s.httpServer = s.newHTTPServer()

	errChan := make(chan error, 1)
	go func() {
		log.Info().Int("port", s.config.Port).Msg("Starting sales API server")
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-quit:
		log.Info().Msg("Shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")

		if s.metrics != nil {
			s.metrics.HTTPRequests.WithLabelValues(r.URL.Path, strconv.Itoa(ww.Status())).Inc()
			s.metrics.QueryLatencySec.Observe(time.Since(start).Seconds())
		}
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "sales-api",
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.sales.StoreSummaries(r.Context())
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, fmt.Sprintf("failed to query summary: %v", err))
		return
	}

	resp := make([]StoreSummaryResponse, len(summaries))
	for i, sum := range summaries {
		resp[i] = StoreSummaryResponse{
			StoreID:  sum.StoreID,
			RowCount: sum.RowCount,
			Revenue:  sum.Revenue,
		}
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

func (s *Server) handleTopProducts(w http.ResponseWriter, r *http.Request) {
	storeID := r.URL.Query().Get("store_id")
	if storeID == "" {
		s.jsonError(w, http.StatusBadRequest, "store_id is required")
		return
	}

	limit := query.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			s.jsonError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = parsed
	}

	products, err := s.sales.TopProducts(r.Context(), storeID, limit)
	if err != nil {
		var noData *query.NoDataError
		switch {
		case errors.As(err, &noData):
			s.jsonError(w, http.StatusNotFound, fmt.Sprintf("No data for store_id=%s", noData.StoreID))
		case errors.Is(err, query.ErrInvalidLimit):
			s.jsonError(w, http.StatusBadRequest, err.Error())
		default:
			s.jsonError(w, http.StatusInternalServerError, fmt.Sprintf("failed to query top products: %v", err))
		}
		return
	}

	resp := make([]ProductRowResponse, len(products))
	for i, p := range products {
		resp[i] = ProductRowResponse{
			Product: p.Product,
			Revenue: p.Revenue,
			Qty:     p.Qty,
		}
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) jsonError(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{
		"error": message,
	})
}
