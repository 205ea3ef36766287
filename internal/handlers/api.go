package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"sales-dashboard/internal/errors"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/services"
)

const cacheMaxAge = "public, max-age=300"

var yearPattern = regexp.MustCompile(`^[0-9]{4}$`)

var queryValidator = newQueryValidator()

func newQueryValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("selection", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == services.SelectAll || yearPattern.MatchString(s)
	})
	return v
}

// dashboardQuery holds the query parameters shared by the JSON API.
type dashboardQuery struct {
	Year   string `validate:"selection"`
	Metric string `validate:"omitempty,oneof=sales profit"`
}

// parseQuery reads ?year= and ?metric=. A missing or
// "all" year selects every year. Parameters that are not well formed are
// rejected here; a well formed year the dataset does not contain is left
// for the analytics core to reject.
func parseQuery(r *http.Request) (dashboardQuery, error) {
	q := r.URL.Query()
	dq := dashboardQuery{
		Year:   strings.TrimSpace(q.Get("year")),
		Metric: strings.ToLower(strings.TrimSpace(q.Get("metric"))),
	}
	if dq.Year == "" || strings.EqualFold(dq.Year, services.SelectAll) {
		dq.Year = services.SelectAll
	}

	if err := queryValidator.Struct(dq); err != nil {
		return dq, errors.BadRequestWrap(err, describeQueryError(err))
	}
	return dq, nil
}

func describeQueryError(err error) string {
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok || len(fieldErrs) == 0 {
		return "invalid query parameters"
	}
	fe := fieldErrs[0]
	name := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "selection":
		return name + " must be \"All\" or a four digit year"
	case "oneof":
		return name + " must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return name + " is invalid"
	}
}

type APIHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
}

func NewAPIHandlers(analytics *services.Analytics, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		analytics: analytics,
		logger:    logger,
	}
}

func (h *APIHandlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
}

// view parses the selection and filters the dataset by it.
func (h *APIHandlers) view(ctx context.Context, r *http.Request) (dashboardQuery, *services.Dataset, *services.View, error) {
	dq, err := parseQuery(r)
	if err != nil {
		return dq, nil, nil, err
	}
	ds, v, err := h.analytics.View(ctx, dq.Year)
	return dq, ds, v, err
}

func (h *APIHandlers) HandleYears(w http.ResponseWriter, r *http.Request) {
	years, err := h.analytics.Years(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	options := make([]string, 0, len(years)+1)
	options = append(options, services.SelectAll)
	for _, y := range years {
		options = append(options, strconv.Itoa(y))
	}

	errors.WriteSuccessWithHeaders(w, map[string]any{
		"years":   years,
		"options": options,
	}, map[string]string{"Cache-Control": cacheMaxAge})
}

type kpiResponse struct {
	Selection string           `json:"selection"`
	Totals    models.KPITotals `json:"totals"`
	Deltas    models.KPIDeltas `json:"deltas"`
}

func (h *APIHandlers) HandleKPIs(w http.ResponseWriter, r *http.Request) {
	_, ds, v, err := h.view(r.Context(), r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	errors.WriteSuccessWithHeaders(w, kpiResponse{
		Selection: v.Selection,
		Totals:    services.Totals(v),
		Deltas:    services.Deltas(ds, v),
	}, map[string]string{"Cache-Control": cacheMaxAge})
}

func (h *APIHandlers) HandleTopProducts(w http.ResponseWriter, r *http.Request) {
	dq, _, v, err := h.view(r.Context(), r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	metric := services.Sales
	if dq.Metric != "" {
		if metric, err = services.ParseMetric(dq.Metric); err != nil {
			h.fail(w, r, errors.BadRequestWrap(err, "unknown metric"))
			return
		}
	}

	errors.WriteSuccessWithHeaders(w, map[string]any{
		"selection": v.Selection,
		"metric":    metric.String(),
		"products":  services.TopProducts(v, metric, h.analytics.TopN()),
	}, map[string]string{"Cache-Control": cacheMaxAge})
}

func (h *APIHandlers) HandleShipping(w http.ResponseWriter, r *http.Request) {
	_, _, v, err := h.view(r.Context(), r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	errors.WriteSuccessWithHeaders(w, map[string]any{
		"selection": v.Selection,
		"gauge":     services.Shipping(v),
	}, map[string]string{"Cache-Control": cacheMaxAge})
}

func (h *APIHandlers) HandleCategorySales(w http.ResponseWriter, r *http.Request) {
	_, _, v, err := h.view(r.Context(), r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	errors.WriteSuccessWithHeaders(w, map[string]any{
		"selection": v.Selection,
		"series":    services.CategorySales(v),
	}, map[string]string{"Cache-Control": cacheMaxAge})
}

type recordsResponse struct {
	Selection string               `json:"selection"`
	Total     int                  `json:"total"`
	Records   []models.SalesRecord `json:"records"`
}

// HandleRecords returns every row of the filtered view.
func (h *APIHandlers) HandleRecords(w http.ResponseWriter, r *http.Request) {
	_, _, v, err := h.view(r.Context(), r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	errors.WriteSuccessWithHeaders(w, recordsResponse{
		Selection: v.Selection,
		Total:     len(v.Records),
		Records:   v.Records,
	}, map[string]string{"Cache-Control": cacheMaxAge})
}

func (h *APIHandlers) HandleChanges(w http.ResponseWriter, r *http.Request) {
	changes, err := h.analytics.Changes(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	errors.WriteSuccessWithHeaders(w, changes, map[string]string{"Cache-Control": cacheMaxAge})
}

// HandleHealth reports healthy while the process serves requests; the
// dataset block tells whether a copy is currently cached.
func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	stats := h.analytics.Stats()

	errors.WriteSuccess(w, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   Version,
		"dataset": map[string]any{
			"loaded":  stats["loaded"],
			"records": stats["records"],
		},
	})
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, h.analytics.Stats())
}

// HandleReload rereads the source and reports the new cache state.
func (h *APIHandlers) HandleReload(w http.ResponseWriter, r *http.Request) {
	if _, err := h.analytics.Reload(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	errors.WriteSuccess(w, h.analytics.Stats())
}

// Version is reported by the health endpoint.
var Version = "1.0.0"
