// Package templates renders the full HTML pages. Dynamic panels start as
// placeholders and are filled by the SSE endpoint.
package templates

import (
	"context"
	"html/template"
	"io"
	"strconv"

	"github.com/a-h/templ"
)

const datastarScript = "https://cdn.jsdelivr.net/gh/starfederation/datastar@v1.0.0-RC.5/bundles/datastar.js"

// DashboardPage is what the page shell needs to render.
type DashboardPage struct {
	Title     string
	Selection string
	Years     []int
	// Notice is shown above the panels, e.g. when no year list could be read.
	Notice string
}

type yearOption struct {
	Value    string
	Selected bool
}

var page = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<script type="module" src="{{.Script}}"></script>
<style>
body{font-family:system-ui,sans-serif;margin:0;background:#f6f7f9;color:#1d2330}
header{display:flex;justify-content:space-between;align-items:center;padding:1rem 2rem;background:#fff;border-bottom:1px solid #e3e6ea}
main{padding:1.5rem 2rem;display:grid;gap:1.5rem}
.kpi-grid{display:grid;grid-template-columns:repeat(4,1fr);gap:1rem}
.kpi-card,.panel{background:#fff;border-radius:8px;padding:1rem;box-shadow:0 1px 2px rgba(0,0,0,.06)}
.kpi-value{font-size:1.8rem;font-weight:600}
.delta-up{color:#1a7f37}.delta-down{color:#cf222e}.delta-flat{color:#6e7781}
.row{display:grid;grid-template-columns:1fr 1fr;gap:1.5rem}
.bar-row,.stack-row{display:grid;grid-template-columns:14rem 1fr 5rem;gap:.5rem;align-items:center;margin:.25rem 0}
.bar-label{overflow:hidden;text-overflow:ellipsis;white-space:nowrap}
.bar-track,.stack-track,.gauge-track{display:flex;background:#eef0f3;height:.9rem;border-radius:4px;overflow:hidden}
.bar-fill,.gauge-fill{background:#2f6feb}.bar-negative{background:#cf222e}
.series-0{background:#2f6feb}.series-1{background:#f0883e}.series-2{background:#3fb950}.series-3{background:#a371f7}
.legend-item{display:inline-block;color:#fff;padding:0 .4rem;margin-right:.4rem;border-radius:3px}
.gauge-range{display:flex;justify-content:space-between;color:#6e7781}
.error-banner{background:#ffebe9;border:1px solid #ff8182;padding:.75rem 1rem;border-radius:6px}
.notice{background:#fff8c5;border:1px solid #d4a72c;padding:.5rem 1rem;border-radius:6px;margin-top:.5rem}
.hidden{display:none}
.table-wrap{overflow:auto;max-height:32rem}
.modern-table{border-collapse:collapse;width:100%;font-size:.85rem}
.modern-table th,.modern-table td{padding:.35rem .5rem;border-bottom:1px solid #e3e6ea;text-align:left;white-space:nowrap}
</style>
</head>
<body data-signals='{"year": {{.SelectionJSON}}}'>
<header>
<h1>{{.Title}}</h1>
<label>Year
<select id="year-select" data-bind-year data-on-change="@get('/sse/dashboard')">
{{range .Options}}<option value="{{.Value}}"{{if .Selected}} selected{{end}}>{{.Value}}</option>
{{end}}</select>
</label>
</header>
<main data-on-load="@get('/sse/dashboard')">
{{if .Notice}}<div id="dashboard-error" class="error-banner" role="alert">{{.Notice}}</div>{{else}}<div id="dashboard-error" class="error-banner hidden" role="alert"></div>{{end}}
<div id="dataset-notice" class="notice hidden" role="status"></div>
<section class="panel"><div id="kpi-cards" class="kpi-grid">Loading…</div></section>
<div class="row">
<section class="panel"><div id="top-sales" class="bar-list">Loading…</div></section>
<section class="panel"><div id="top-profit" class="bar-list">Loading…</div></section>
</div>
<div class="row">
<section class="panel"><div id="shipping-gauge" class="gauge">Loading…</div></section>
<section class="panel"><div id="category-sales" class="stacked-bars">Loading…</div></section>
</div>
<section class="panel"><div id="records-table" class="table-wrap">Loading…</div></section>
</main>
</body>
</html>
`))

type pageData struct {
	DashboardPage
	Script        string
	SelectionJSON string
	Options       []yearOption
}

// Dashboard renders the page shell with a year selector holding "All" and
// every known year.
func Dashboard(p DashboardPage) templ.Component {
	if p.Title == "" {
		p.Title = "Sales Dashboard"
	}
	if p.Selection == "" {
		p.Selection = "All"
	}

	data := pageData{
		DashboardPage: p,
		Script:        datastarScript,
		SelectionJSON: strconv.Quote(p.Selection),
		Options:       make([]yearOption, 0, len(p.Years)+1),
	}
	data.Options = append(data.Options, yearOption{Value: "All", Selected: p.Selection == "All"})
	for _, y := range p.Years {
		v := strconv.Itoa(y)
		data.Options = append(data.Options, yearOption{Value: v, Selected: p.Selection == v})
	}

	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return page.Execute(w, data)
	})
}
