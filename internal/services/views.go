package services

import (
	"cmp"
	"math"
	"slices"

	"github.com/shopspring/decimal"

	"sales-dashboard/internal/models"
)

// Totals computes the KPI cards for a view.
func Totals(v *View) models.KPITotals {
	return models.KPITotals{
		Sales:    Sales.aggregate(v.Records),
		Profit:   Profit.aggregate(v.Records),
		Orders:   int(OrderCount.aggregate(v.Records)),
		Quantity: int(Quantity.aggregate(v.Records)),
	}
}

// Deltas looks up the change of each KPI for the view's year, or for the
// latest year when the view covers all years.
func Deltas(ds *Dataset, v *View) models.KPIDeltas {
	delta := func(m Metric) string {
		series := ds.Change(m)
		var (
			c  Change
			ok bool
		)
		if v.All() {
			c, ok = series.Latest()
		} else {
			c, ok = series.Lookup(v.Year)
		}
		if !ok {
			return undefinedChange
		}
		return c.String()
	}

	return models.KPIDeltas{
		Sales:    delta(Sales),
		Profit:   delta(Profit),
		Orders:   delta(OrderCount),
		Quantity: delta(Quantity),
	}
}

// TopProducts ranks products by the metric summed over the view and keeps
// the first n. Products are grouped in name order and the sort is stable, so
// equal totals keep that order.
func TopProducts(v *View, m Metric, n int) []models.ProductTotal {
	groups := make(map[string]accumulator)
	for i := range v.Records {
		r := &v.Records[i]
		acc, ok := groups[r.ProductName]
		if !ok {
			acc = m.newAccumulator()
			groups[r.ProductName] = acc
		}
		acc.add(r)
	}

	out := make([]models.ProductTotal, 0, len(groups))
	for name, acc := range groups {
		out = append(out, models.ProductTotal{ProductName: name, Total: acc.value()})
	}
	slices.SortFunc(out, func(a, b models.ProductTotal) int { return cmp.Compare(a.ProductName, b.ProductName) })
	slices.SortStableFunc(out, func(a, b models.ProductTotal) int { return cmp.Compare(b.Total, a.Total) })

	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Shipping computes the gauge: mean days to ship rounded half to even, and
// the range of days to ship over the view.
func Shipping(v *View) models.ShippingGauge {
	if len(v.Records) == 0 {
		return models.ShippingGauge{}
	}

	g := models.ShippingGauge{MinDays: v.Records[0].DaysToShip, MaxDays: v.Records[0].DaysToShip}
	total := 0
	for i := range v.Records {
		d := v.Records[i].DaysToShip
		total += d
		g.MinDays = min(g.MinDays, d)
		g.MaxDays = max(g.MaxDays, d)
	}
	g.AverageDays = int(math.RoundToEven(float64(total) / float64(len(v.Records))))
	return g
}

// CategorySales sums sales per (year, category), ordered by year then
// category.
func CategorySales(v *View) []models.CategoryYearSales {
	type key struct {
		year     int
		category string
	}
	sums := make(map[key]decimal.Decimal)
	for i := range v.Records {
		r := &v.Records[i]
		k := key{r.Year, r.Category}
		sums[k] = sums[k].Add(decimal.NewFromFloat(r.Sales))
	}

	out := make([]models.CategoryYearSales, 0, len(sums))
	for k, total := range sums {
		out = append(out, models.CategoryYearSales{Year: k.year, Category: k.category, Sales: total.InexactFloat64()})
	}
	slices.SortFunc(out, func(a, b models.CategoryYearSales) int {
		return cmp.Or(cmp.Compare(a.Year, b.Year), cmp.Compare(a.Category, b.Category))
	})
	return out
}
