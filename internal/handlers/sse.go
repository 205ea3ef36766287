package handlers

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"html/template"
	"log/slog"
	"math"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/starfederation/datastar-go/datastar"

	"sales-dashboard/internal/models"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/services"
)

const (
	// tableChunkRows bounds the size of one table patch; the whole view is
	// sent as consecutive appends.
	tableChunkRows = 500
	dateLayout     = "2006-01-02"
)

// TableColumns are the record columns shown in the data table.
var TableColumns = []string{
	"Order Date", "Ship Date", "Ship Mode", "Category", "Sub-Category",
	"Product Name", "Sales", "Quantity", "Discount", "Profit",
}

var fragments = template.Must(template.New("fragments").Parse(`
{{define "error"}}<div id="dashboard-error" class="error-banner{{if not .}} hidden{{end}}" role="alert">{{.}}</div>{{end}}

{{define "notice"}}<div id="dataset-notice" class="notice{{if not .}} hidden{{end}}" role="status">{{.}}</div>{{end}}

{{define "kpis"}}<div id="kpi-cards" class="kpi-grid">
{{range .}}<div class="kpi-card">
<div class="kpi-label">{{.Label}}</div>
<div class="kpi-value">{{.Value}}</div>
<div class="kpi-delta {{.DeltaClass}}">{{.Delta}}</div>
</div>
{{end}}</div>{{end}}

{{define "bars"}}<div id="{{.ID}}" class="bar-list">
<h3>{{.Title}}</h3>
{{range .Bars}}<div class="bar-row">
<span class="bar-label" title="{{.Label}}">{{.Label}}</span>
<span class="bar-track"><span class="bar-fill{{if .Negative}} bar-negative{{end}}" style="width: {{printf "%.1f" .Percent}}%"></span></span>
<span class="bar-value">{{.Value}}</span>
</div>
{{else}}<p class="empty">No products</p>
{{end}}</div>{{end}}

{{define "gauge"}}<div id="shipping-gauge" class="gauge">
<h3>Average days to ship</h3>
<div class="gauge-track"><span class="gauge-fill" style="width: {{printf "%.1f" .Percent}}%"></span></div>
<div class="gauge-value">{{.Average}}</div>
<div class="gauge-range"><span>{{.Min}}</span><span>{{.Max}}</span></div>
</div>{{end}}

{{define "categories"}}<div id="category-sales" class="stacked-bars">
<h3>Sales by category</h3>
{{range .Rows}}<div class="stack-row">
<span class="stack-year">{{.Year}}</span>
<span class="stack-track">{{range .Segments}}<span class="stack-segment {{.Class}}" style="width: {{printf "%.1f" .Percent}}%" title="{{.Category}}: {{.Value}}"></span>{{end}}</span>
<span class="stack-total">{{.Total}}</span>
</div>
{{else}}<p class="empty">No sales</p>
{{end}}<div class="legend">{{range $i, $c := .Categories}}<span class="legend-item series-{{$i}}">{{$c}}</span>{{end}}</div>
</div>{{end}}

{{define "table"}}<div id="records-table" class="table-wrap">
<p class="table-caption">{{.Total}} rows</p>
<table class="modern-table">
<thead><tr>{{range .Columns}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody id="records-body"></tbody>
</table>
</div>{{end}}

{{define "rows"}}{{range .}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{end}}{{end}}

{{define "unavailable"}}<div id="{{.}}" class="panel-empty">No data available</div>{{end}}
`))

// panelIDs are the elements patched on every render pass.
var panelIDs = []string{"kpi-cards", "top-sales", "top-profit", "shipping-gauge", "category-sales", "records-table"}

type kpiCard struct {
	Label      string
	Value      string
	Delta      string
	DeltaClass string
}

type bar struct {
	Label    string
	Value    string
	Percent  float64
	Negative bool
}

type barList struct {
	ID    string
	Title string
	Bars  []bar
}

type gaugeView struct {
	Average, Min, Max int
	Percent           float64
}

type segment struct {
	Category string
	Value    string
	Percent  float64
	Class    string
}

type stackRow struct {
	Year     int
	Total    string
	Segments []segment
}

type categoryView struct {
	Categories []string
	Rows       []stackRow
}

type tableView struct {
	Columns []string
	Rows    [][]string
	Total   int
}

// yearSignal accepts the year as either a JSON string or number.
type yearSignal string

func (y *yearSignal) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*y = yearSignal(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("year signal: %w", err)
	}
	*y = yearSignal(n.String())
	return nil
}

type dashboardSignals struct {
	Year yearSignal `json:"year"`
}

type SSEHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
}

func NewSSEHandlers(analytics *services.Analytics, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		analytics: analytics,
		logger:    logger,
	}
}

// HandleDashboard computes one snapshot for the year signal and patches every
// panel. An unknown year shows a banner and falls back to all years; a
// dataset that cannot be loaded empties the panels.
func (h *SSEHandlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.LoggerFromContext(ctx, h.logger)

	var signals dashboardSignals
	readErr := datastar.ReadSignals(r, &signals)

	sse := datastar.NewSSE(w, r)

	selection := strings.TrimSpace(string(signals.Year))
	if selection == "" || strings.EqualFold(selection, services.SelectAll) {
		selection = services.SelectAll
	}

	var banner string
	if readErr != nil {
		logger.Warn("unreadable dashboard signals", "error", readErr)
		banner = "Could not read the selected year; showing all years."
		selection = services.SelectAll
	}

	d, err := h.analytics.Dashboard(ctx, selection)

	var selErr *services.InvalidSelectionError
	if stderrors.As(err, &selErr) {
		logger.Warn("invalid year selection", "selection", selErr.Selection)
		banner = fmt.Sprintf("No data for %q; showing all years.", selErr.Selection)
		d, err = h.analytics.Dashboard(ctx, services.SelectAll)
	}

	if err != nil {
		var loadErr *services.LoadError
		msg := "Something went wrong while computing the dashboard."
		if stderrors.As(err, &loadErr) {
			msg = "Sales data is unavailable: " + loadErr.Reason + "."
		}
		logger.Error("dashboard render failed", "error", err)
		h.patchUnavailable(sse, logger, msg)
		return
	}

	if err := h.patchDashboard(sse, d, banner); err != nil {
		logger.Error("patch dashboard", "error", err)
	}
}

func (h *SSEHandlers) patchDashboard(sse *datastar.ServerSentEventGenerator, d *models.Dashboard, banner string) error {
	parts := []struct {
		name string
		data any
	}{
		{"error", banner},
		{"notice", skippedNotice(d.SkippedRows)},
		{"kpis", kpiCards(d)},
		{"bars", barList{ID: "top-sales", Title: "Top 10 products by sales", Bars: bars(d.TopBySales)}},
		{"bars", barList{ID: "top-profit", Title: "Top 10 products by profit", Bars: bars(d.TopByProfit)}},
		{"gauge", gauge(d.Shipping)},
		{"categories", categories(d.CategorySales)},
	}

	for _, p := range parts {
		html, err := render(p.name, p.data)
		if err != nil {
			return fmt.Errorf("render %s: %w", p.name, err)
		}
		if err := sse.PatchElements(html); err != nil {
			return fmt.Errorf("patch %s: %w", p.name, err)
		}
	}

	if err := patchTable(sse, table(d.Records)); err != nil {
		return err
	}

	signals, err := json.Marshal(map[string]any{
		"year":          d.Selection,
		"years":         d.Years,
		"topSales":      d.TopBySales,
		"topProfit":     d.TopByProfit,
		"shipping":      d.Shipping,
		"categorySales": d.CategorySales,
	})
	if err != nil {
		return fmt.Errorf("marshal signals: %w", err)
	}
	return sse.PatchSignals(signals)
}

func (h *SSEHandlers) patchUnavailable(sse *datastar.ServerSentEventGenerator, logger *slog.Logger, msg string) {
	html, err := render("error", msg)
	if err != nil {
		logger.Error("render error banner", "error", err)
		return
	}
	if err := sse.PatchElements(html); err != nil {
		logger.Error("patch error banner", "error", err)
		return
	}
	for _, id := range panelIDs {
		html, err := render("unavailable", id)
		if err != nil {
			logger.Error("render empty panel", "panel", id, "error", err)
			return
		}
		if err := sse.PatchElements(html); err != nil {
			logger.Error("patch empty panel", "panel", id, "error", err)
			return
		}
	}
}

func skippedNotice(n int) string {
	switch {
	case n == 1:
		return "1 row of the sales table could not be read and is excluded."
	case n > 1:
		return fmt.Sprintf("%d rows of the sales table could not be read and are excluded.", n)
	}
	return ""
}

// patchTable replaces the table with an empty body, then appends every row
// of the view in chunks.
func patchTable(sse *datastar.ServerSentEventGenerator, t tableView) error {
	html, err := render("table", t)
	if err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	if err := sse.PatchElements(html); err != nil {
		return fmt.Errorf("patch table: %w", err)
	}

	for chunk := range slices.Chunk(t.Rows, tableChunkRows) {
		html, err := render("rows", chunk)
		if err != nil {
			return fmt.Errorf("render rows: %w", err)
		}
		if err := sse.PatchElements(html, datastar.WithSelectorID("records-body"), datastar.WithModeAppend()); err != nil {
			return fmt.Errorf("patch rows: %w", err)
		}
	}
	return nil
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := fragments.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func kpiCards(d *models.Dashboard) []kpiCard {
	card := func(label, value, delta string) kpiCard {
		return kpiCard{Label: label, Value: value, Delta: delta, DeltaClass: deltaClass(delta)}
	}
	return []kpiCard{
		card("Sales", compactMoney(d.KPIs.Sales), d.Deltas.Sales),
		card("Profit", compactMoney(d.KPIs.Profit), d.Deltas.Profit),
		card("Orders", strconv.Itoa(d.KPIs.Orders), d.Deltas.Orders),
		card("Quantity", compact(float64(d.KPIs.Quantity), 2), d.Deltas.Quantity),
	}
}

// bars scales each total against the largest magnitude in the list.
func bars(products []models.ProductTotal) []bar {
	var peak float64
	for _, p := range products {
		peak = max(peak, math.Abs(p.Total))
	}

	out := make([]bar, len(products))
	for i, p := range products {
		out[i] = bar{Label: p.ProductName, Value: compactMoney(p.Total), Negative: p.Total < 0}
		if peak > 0 {
			out[i].Percent = math.Abs(p.Total) / peak * 100
		}
	}
	return out
}

func gauge(g models.ShippingGauge) gaugeView {
	v := gaugeView{Average: g.AverageDays, Min: g.MinDays, Max: g.MaxDays}
	if span := g.MaxDays - g.MinDays; span > 0 {
		v.Percent = float64(g.AverageDays-g.MinDays) / float64(span) * 100
	}
	return v
}

// categories lays out one stacked row per year. Segment widths are relative
// to the year with the largest total so rows compare against each other.
func categories(sales []models.CategoryYearSales) categoryView {
	var view categoryView
	seriesIndex := make(map[string]int)
	for _, s := range sales {
		if _, ok := seriesIndex[s.Category]; !ok {
			seriesIndex[s.Category] = len(view.Categories)
			view.Categories = append(view.Categories, s.Category)
		}
	}

	totals := make(map[int]float64)
	var years []int
	for _, s := range sales {
		if _, ok := totals[s.Year]; !ok {
			years = append(years, s.Year)
		}
		totals[s.Year] += s.Sales
	}
	var peak float64
	for _, t := range totals {
		peak = max(peak, t)
	}

	rows := make(map[int]*stackRow, len(years))
	for _, y := range years {
		view.Rows = append(view.Rows, stackRow{Year: y, Total: compactMoney(totals[y])})
	}
	for i := range view.Rows {
		rows[view.Rows[i].Year] = &view.Rows[i]
	}
	for _, s := range sales {
		seg := segment{
			Category: s.Category,
			Value:    compactMoney(s.Sales),
			Class:    "series-" + strconv.Itoa(seriesIndex[s.Category]),
		}
		if peak > 0 {
			seg.Percent = max(s.Sales, 0) / peak * 100
		}
		row := rows[s.Year]
		row.Segments = append(row.Segments, seg)
	}
	return view
}

func table(records []models.SalesRecord) tableView {
	t := tableView{Columns: TableColumns, Rows: make([][]string, len(records)), Total: len(records)}
	for i, r := range records {
		t.Rows[i] = []string{
			r.OrderDate.Format(dateLayout),
			r.ShipDate.Format(dateLayout),
			r.ShipMode,
			r.Category,
			r.SubCategory,
			r.ProductName,
			money(r.Sales),
			strconv.Itoa(r.Quantity),
			strconv.FormatFloat(r.Discount, 'f', -1, 64),
			money(r.Profit),
		}
	}
	return t
}
