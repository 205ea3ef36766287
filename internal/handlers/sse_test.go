package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sales-dashboard/internal/models"
	"sales-dashboard/internal/services"
)

func sseRequest(signals string) *http.Request {
	target := "/sse/dashboard"
	if signals != "" {
		target += "?datastar=" + url.QueryEscape(signals)
	}
	return httptest.NewRequest(http.MethodGet, target, nil)
}

func TestNewSSEHandlers(t *testing.T) {
	analytics := createTestAnalytics()
	logger := testLogger()

	handlers := NewSSEHandlers(analytics, logger)

	if handlers.analytics != analytics {
		t.Error("NewSSEHandlers() should set analytics field")
	}
	if handlers.logger != logger {
		t.Error("NewSSEHandlers() should set logger field")
	}
}

func TestSSEHandlers_HandleDashboard(t *testing.T) {
	h := NewSSEHandlers(createTestAnalytics(), testLogger())

	tests := []struct {
		name        string
		signals     string
		contains    []string
		notContains []string
	}{
		{
			name:    "no signals means all years",
			signals: "",
			contains: []string{
				"text/event-stream",
				`id="kpi-cards"`,
				`id="top-sales"`,
				`id="top-profit"`,
				`id="shipping-gauge"`,
				`id="category-sales"`,
				`id="records-table"`,
				"5 rows</p>",
				`"year":"All"`,
				`id="dataset-notice" class="notice hidden"`,
			},
		},
		{
			name:     "string year",
			signals:  `{"year":"2017"}`,
			contains: []string{"3 rows</p>", "Eldon Base", `"year":"2017"`},
			notContains: []string{"Bretford Table"},
		},
		{
			name:     "numeric year",
			signals:  `{"year":2016}`,
			contains: []string{"2 rows</p>", "Bretford Table", `"year":"2016"`},
		},
		{
			name:     "unknown year falls back to all",
			signals:  `{"year":"1999"}`,
			contains: []string{"showing all years", "5 rows</p>", `"year":"All"`},
		},
		{
			name:     "zero padded year is not a known year",
			signals:  `{"year":"02017"}`,
			contains: []string{`No data for &#34;02017&#34;`, "5 rows</p>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.HandleDashboard(rec, sseRequest(tt.signals))

			body := rec.Header().Get("Content-Type") + "\n" + rec.Body.String()
			for _, want := range tt.contains {
				if !strings.Contains(body, want) {
					t.Errorf("response missing %q", want)
				}
			}
			for _, unwanted := range tt.notContains {
				if strings.Contains(body, unwanted) {
					t.Errorf("response should not contain %q", unwanted)
				}
			}
		})
	}
}

func TestSSEHandlers_HandleDashboard_LoadFailure(t *testing.T) {
	h := NewSSEHandlers(createAnalyticsWith(nil), testLogger())

	rec := httptest.NewRecorder()
	h.HandleDashboard(rec, sseRequest(`{"year":"All"}`))
	body := rec.Body.String()

	if !strings.Contains(body, "Sales data is unavailable: no records.") {
		t.Errorf("missing error state:\n%s", body)
	}
	for _, id := range panelIDs {
		if !strings.Contains(body, fmt.Sprintf(`id="%s" class="panel-empty"`, id)) {
			t.Errorf("panel %s not emptied", id)
		}
	}
}

func TestSSEHandlers_HandleDashboard_SkippedRowsNotice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sales.csv")
	body := "Order ID,Order Date,Ship Date,Ship Mode,Category,Sub-Category,Product Name,Sales,Quantity,Profit\n" +
		"CA-1,2016-11-08,2016-11-11,Second Class,Furniture,Chairs,Chair,731.94,3,219.58\n" +
		"CA-2,soon,2016-11-11,Second Class,Furniture,Chairs,Chair,1,1,1\n" +
		"CA-3,2016-11-08,2016-11-11,Second Class,Furniture,Chairs,Chair,lots,1,1\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	loader := &services.FileLoader{Path: path, Logger: testLogger()}
	a := services.NewAnalytics(services.NewCache(loader, time.Hour, testLogger(), nil), 10, testLogger())

	rec := httptest.NewRecorder()
	NewSSEHandlers(a, testLogger()).HandleDashboard(rec, sseRequest(""))
	out := rec.Body.String()

	if !strings.Contains(out, `id="dataset-notice" class="notice" role="status">2 rows of the sales table could not be read and are excluded.`) {
		t.Errorf("missing skipped rows notice:\n%s", out)
	}
	if !strings.Contains(out, "1 rows</p>") {
		t.Errorf("want the one readable row in the table")
	}
}

func TestSkippedNotice(t *testing.T) {
	tests := map[int]string{
		0: "",
		1: "1 row of the sales table could not be read and is excluded.",
		7: "7 rows of the sales table could not be read and are excluded.",
	}
	for n, want := range tests {
		if got := skippedNotice(n); got != want {
			t.Errorf("skippedNotice(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestSSEHandlers_HandleDashboard_BadSignals(t *testing.T) {
	h := NewSSEHandlers(createTestAnalytics(), testLogger())

	rec := httptest.NewRecorder()
	h.HandleDashboard(rec, sseRequest(`{"year":`))

	if !strings.Contains(rec.Body.String(), "Could not read the selected year") {
		t.Errorf("missing banner:\n%s", rec.Body.String())
	}
}

func TestKPICards(t *testing.T) {
	cards := kpiCards(&models.Dashboard{
		KPIs:   models.KPITotals{Sales: 2297200.86, Profit: 286397.02, Orders: 5009, Quantity: 37873},
		Deltas: models.KPIDeltas{Sales: "20.4%", Profit: "-3.2%", Orders: "0.0%", Quantity: "NaN"},
	})

	want := []kpiCard{
		{"Sales", "₹2.3M", "20.4%", "delta-up"},
		{"Profit", "₹286.4k", "-3.2%", "delta-down"},
		{"Orders", "5009", "0.0%", "delta-flat"},
		{"Quantity", "37.87k", "NaN", "delta-flat"},
	}
	for i, w := range want {
		if cards[i] != w {
			t.Errorf("card %d = %+v, want %+v", i, cards[i], w)
		}
	}
}

func TestBars(t *testing.T) {
	got := bars([]models.ProductTotal{
		{ProductName: "A", Total: 200},
		{ProductName: "B", Total: 50},
		{ProductName: "C", Total: -100},
	})

	if got[0].Percent != 100 || got[1].Percent != 25 || got[2].Percent != 50 {
		t.Errorf("percents = %v %v %v", got[0].Percent, got[1].Percent, got[2].Percent)
	}
	if !got[2].Negative {
		t.Error("negative total not flagged")
	}
	if len(bars(nil)) != 0 {
		t.Error("bars(nil) should be empty")
	}
}

func TestGauge(t *testing.T) {
	g := gauge(models.ShippingGauge{AverageDays: 4, MinDays: 0, MaxDays: 7})
	if g.Percent < 57 || g.Percent > 57.2 {
		t.Errorf("percent = %v", g.Percent)
	}
	if gauge(models.ShippingGauge{AverageDays: 3, MinDays: 3, MaxDays: 3}).Percent != 0 {
		t.Error("flat range should not divide by zero")
	}
}

func TestCategories(t *testing.T) {
	view := categories([]models.CategoryYearSales{
		{Year: 2016, Category: "Furniture", Sales: 100},
		{Year: 2016, Category: "Technology", Sales: 100},
		{Year: 2017, Category: "Furniture", Sales: 50},
	})

	if strings.Join(view.Categories, ",") != "Furniture,Technology" {
		t.Errorf("categories = %v", view.Categories)
	}
	if len(view.Rows) != 2 || view.Rows[0].Year != 2016 || len(view.Rows[0].Segments) != 2 {
		t.Fatalf("rows = %+v", view.Rows)
	}
	if view.Rows[1].Segments[0].Percent != 25 {
		t.Errorf("2017 furniture = %v%%, want 25%%", view.Rows[1].Segments[0].Percent)
	}
	if view.Rows[0].Segments[1].Class != "series-1" {
		t.Errorf("class = %q", view.Rows[0].Segments[1].Class)
	}
}

func TestTable(t *testing.T) {
	records := make([]models.SalesRecord, 250)
	for i := range records {
		records[i] = testRecord("X", time.Date(2016, 1, 2, 0, 0, 0, 0, time.UTC), "Thing", "Furniture", 1234.5, -2, 1)
	}

	tv := table(records)
	if tv.Total != 250 || len(tv.Rows) != 250 {
		t.Fatalf("total %d, rows %d", tv.Total, len(tv.Rows))
	}
	want := []string{"2016-01-02", "2016-01-05", "Standard Class", "Furniture", "Chairs", "Thing", "1,234.50", "1", "0.2", "-2.00"}
	if strings.Join(tv.Rows[0], "|") != strings.Join(want, "|") {
		t.Errorf("row = %v, want %v", tv.Rows[0], want)
	}
	if len(tv.Columns) != len(want) {
		t.Errorf("columns = %v", tv.Columns)
	}
}

func TestSSEHandlers_HandleDashboard_StreamsWholeTable(t *testing.T) {
	records := make([]models.SalesRecord, 2*tableChunkRows+1)
	for i := range records {
		records[i] = testRecord(fmt.Sprintf("CA-%d", i), time.Date(2016, 3, 1, 0, 0, 0, 0, time.UTC), "Thing", "Furniture", 10, 1, 1)
	}
	h := NewSSEHandlers(createAnalyticsWith(records), testLogger())

	rec := httptest.NewRecorder()
	h.HandleDashboard(rec, sseRequest(""))
	body := rec.Body.String()

	if !strings.Contains(body, fmt.Sprintf("%d rows</p>", len(records))) {
		t.Error("caption does not report every row")
	}
	if got := strings.Count(body, "<tr><td>"); got != len(records) {
		t.Errorf("rows sent = %d, want %d", got, len(records))
	}
	if got := strings.Count(body, "selector #records-body"); got != 3 {
		t.Errorf("row patches = %d, want 3", got)
	}
	if got := strings.Count(body, "mode append"); got != 3 {
		t.Errorf("append patches = %d, want 3", got)
	}
}

func TestRender_EscapesProductNames(t *testing.T) {
	html, err := render("bars", barList{ID: "top-sales", Bars: []bar{{Label: `<script>alert(1)</script>`}}})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(html, "<script>") {
		t.Errorf("product name not escaped: %s", html)
	}
}
