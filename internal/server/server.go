package server

import (
	"log/slog"
	"net/http"

	"sales-dashboard/internal/handlers"
	"sales-dashboard/internal/services"
)

type Server struct {
	analytics    *services.Analytics
	mux          *http.ServeMux
	logger       *slog.Logger
	apiHandlers  *handlers.APIHandlers
	sseHandlers  *handlers.SSEHandlers
	pageHandlers *handlers.PageHandlers
}

// NewServer registers every route. metrics serves /metrics and may be nil
// to leave the route out.
func NewServer(analytics *services.Analytics, logger *slog.Logger, metrics http.Handler) *Server {
	s := &Server{
		analytics:    analytics,
		mux:          http.NewServeMux(),
		logger:       logger,
		apiHandlers:  handlers.NewAPIHandlers(analytics, logger),
		sseHandlers:  handlers.NewSSEHandlers(analytics, logger),
		pageHandlers: handlers.NewPageHandlers(analytics, logger),
	}
	s.setupRoutes(metrics)
	return s
}

func (s *Server) setupRoutes(metrics http.Handler) {
	// Dashboard page and operations
	s.mux.HandleFunc("GET /{$}", s.pageHandlers.HandleDashboard)
	s.mux.HandleFunc("GET /health", s.apiHandlers.HandleHealth)
	s.mux.HandleFunc("GET /admin/stats", s.apiHandlers.HandleStats)
	s.mux.HandleFunc("POST /admin/reload", s.apiHandlers.HandleReload)
	if metrics != nil {
		s.mux.Handle("GET /metrics", metrics)
	}

	// REST API endpoints
	s.mux.HandleFunc("GET /api/years", s.apiHandlers.HandleYears)
	s.mux.HandleFunc("GET /api/kpis", s.apiHandlers.HandleKPIs)
	s.mux.HandleFunc("GET /api/top-products", s.apiHandlers.HandleTopProducts)
	s.mux.HandleFunc("GET /api/shipping", s.apiHandlers.HandleShipping)
	s.mux.HandleFunc("GET /api/category-sales", s.apiHandlers.HandleCategorySales)
	s.mux.HandleFunc("GET /api/records", s.apiHandlers.HandleRecords)
	s.mux.HandleFunc("GET /api/changes", s.apiHandlers.HandleChanges)

	// Datastar SSE endpoint
	s.mux.HandleFunc("GET /sse/dashboard", s.sseHandlers.HandleDashboard)
}

// Routes exposes the mux so middleware can label requests by pattern.
func (s *Server) Routes() *http.ServeMux {
	return s.mux
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
