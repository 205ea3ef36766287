package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/services"
	"sales-dashboard/internal/ui/templates"
)

const renderTimeout = 10 * time.Second

type PageHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
}

func NewPageHandlers(analytics *services.Analytics, logger *slog.Logger) *PageHandlers {
	return &PageHandlers{
		analytics: analytics,
		logger:    logger,
	}
}

// HandleDashboard renders the page shell. A dataset that fails to load still
// gets a page; the SSE pass then reports the failure in place.
func (h *PageHandlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	p := templates.DashboardPage{Selection: services.SelectAll}
	years, err := h.analytics.Years(ctx)
	if err != nil {
		observability.LoggerFromContext(ctx, h.logger).Warn("rendering dashboard without years", "error", err)
		p.Notice = "Sales data is unavailable."
	}
	p.Years = years

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	if err := templates.Dashboard(p).Render(ctx, w); err != nil {
		h.logger.Error("render dashboard", "error", err)
		http.Error(w, "render error", http.StatusInternalServerError)
	}
}
