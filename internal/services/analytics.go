package services

import (
	"context"
	"log/slog"
	"time"

	"sales-dashboard/internal/models"
)

const DefaultTopN = 10

// Analytics answers dashboard queries from the cached dataset. Every call
// filters and aggregates afresh; only the dataset itself is cached.
type Analytics struct {
	cache  *Cache
	topN   int
	logger *slog.Logger
}

func NewAnalytics(cache *Cache, topN int, logger *slog.Logger) *Analytics {
	if topN <= 0 {
		topN = DefaultTopN
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analytics{
		cache:  cache,
		topN:   topN,
		logger: logger.With("component", "analytics"),
	}
}

func (a *Analytics) TopN() int { return a.topN }

// Dataset returns the cached dataset, loading it if needed.
func (a *Analytics) Dataset(ctx context.Context) (*Dataset, error) {
	return a.cache.Get(ctx)
}

// Reload drops the cached dataset and reads the source again, so an edited
// file is served before the cache window ends.
func (a *Analytics) Reload(ctx context.Context) (*Dataset, error) {
	a.cache.Invalidate()
	ds, err := a.cache.Get(ctx)
	if err != nil {
		return nil, err
	}
	a.logger.Info("dataset reloaded on request", "records", len(ds.Records))
	return ds, nil
}

func (a *Analytics) Years(ctx context.Context) ([]int, error) {
	ds, err := a.cache.Get(ctx)
	if err != nil {
		return nil, err
	}
	return ds.Years, nil
}

// View loads the dataset and applies the year selection to it.
func (a *Analytics) View(ctx context.Context, selection string) (*Dataset, *View, error) {
	ds, err := a.cache.Get(ctx)
	if err != nil {
		return nil, nil, err
	}
	v, err := FilterByYear(ds, selection)
	if err != nil {
		return nil, nil, err
	}
	return ds, v, nil
}

// Changes returns the year-over-year series of every metric keyed by name.
func (a *Analytics) Changes(ctx context.Context) (map[string][]models.YearChange, error) {
	ds, err := a.cache.Get(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]models.YearChange, len(Metrics))
	for _, m := range Metrics {
		out[m.String()] = ds.Change(m).Points()
	}
	return out, nil
}

// Dashboard computes every aggregate for one selection in a single pass.
func (a *Analytics) Dashboard(ctx context.Context, selection string) (*models.Dashboard, error) {
	start := time.Now()

	ds, v, err := a.View(ctx, selection)
	if err != nil {
		return nil, err
	}

	d := &models.Dashboard{
		Selection:     v.Selection,
		Years:         ds.Years,
		KPIs:          Totals(v),
		Deltas:        Deltas(ds, v),
		TopBySales:    TopProducts(v, Sales, a.topN),
		TopByProfit:   TopProducts(v, Profit, a.topN),
		Shipping:      Shipping(v),
		CategorySales: CategorySales(v),
		Records:       v.Records,
		SkippedRows:   ds.Skipped,
	}

	a.logger.Debug("dashboard computed",
		"selection", v.Selection,
		"rows", len(v.Records),
		"duration", time.Since(start),
	)
	return d, nil
}

// Stats reports the cache state for monitoring.
func (a *Analytics) Stats() map[string]any {
	st := a.cache.State()
	return map[string]any{
		"loaded":     st.Loaded,
		"source":     st.Source,
		"records":    st.Records,
		"skipped":    st.Skipped,
		"years":      st.Years,
		"loaded_at":  st.LoadedAt,
		"expires_at": st.ExpiresAt,
		"top_n":      a.topN,
	}
}
