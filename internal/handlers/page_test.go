package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestPageHandlers_HandleDashboard(t *testing.T) {
	tests := []struct {
		name     string
		handlers *PageHandlers
		contains []string
	}{
		{
			name:     "lists years",
			handlers: NewPageHandlers(createTestAnalytics(), testLogger()),
			contains: []string{
				`<select id="year-select"`,
				`<option value="All" selected>All</option>`,
				`<option value="2016">2016</option>`,
				`<option value="2017">2017</option>`,
				`@get('/sse/dashboard')`,
			},
		},
		{
			name:     "renders without data",
			handlers: NewPageHandlers(createAnalyticsWith(nil), testLogger()),
			contains: []string{
				`<option value="All" selected>All</option>`,
				"Sales data is unavailable.",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.handlers.HandleDashboard(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
				t.Errorf("Content-Type = %q", ct)
			}
			body := rec.Body.String()
			for _, want := range tt.contains {
				if !strings.Contains(body, want) {
					t.Errorf("page missing %q", want)
				}
			}
		})
	}
}
