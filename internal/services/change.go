package services

import (
	"slices"
	"strconv"

	"sales-dashboard/internal/models"
)

const undefinedChange = "NaN"

// Change is the percent change of a metric against the previous year.
// Defined is false when the previous year aggregated to zero and the
// current one did not.
type Change struct {
	Year    int
	Percent float64
	Defined bool
}

func (c Change) String() string {
	if !c.Defined {
		return undefinedChange
	}
	return strconv.FormatFloat(c.Percent, 'f', 1, 64) + "%"
}

// ChangeSeries is the year-over-year change of one metric, ascending by year.
type ChangeSeries struct {
	Metric  Metric
	Changes []Change
}

// PercentChange groups records by year, aggregates the metric within each
// year and compares every year with the one before it. The earliest year has
// no predecessor and reports 0. A zero previous aggregate reports 0 when the
// current aggregate is also zero and is undefined otherwise.
func PercentChange(m Metric, records []models.SalesRecord) ChangeSeries {
	groups := make(map[int]accumulator)
	for i := range records {
		r := &records[i]
		acc, ok := groups[r.Year]
		if !ok {
			acc = m.newAccumulator()
			groups[r.Year] = acc
		}
		acc.add(r)
	}

	years := make([]int, 0, len(groups))
	for y := range groups {
		years = append(years, y)
	}
	slices.Sort(years)

	series := ChangeSeries{Metric: m, Changes: make([]Change, 0, len(years))}
	var prev float64
	for i, y := range years {
		cur := groups[y].value()
		c := Change{Year: y, Defined: true}
		switch {
		case i == 0:
		case prev == 0:
			c.Defined = cur == 0
		default:
			c.Percent = (cur - prev) / prev * 100
		}
		series.Changes = append(series.Changes, c)
		prev = cur
	}
	return series
}

// Lookup returns the change recorded for year.
func (s ChangeSeries) Lookup(year int) (Change, bool) {
	i, found := slices.BinarySearchFunc(s.Changes, year, func(c Change, y int) int { return c.Year - y })
	if !found {
		return Change{}, false
	}
	return s.Changes[i], true
}

// Latest returns the change for the most recent calendar year.
func (s ChangeSeries) Latest() (Change, bool) {
	if len(s.Changes) == 0 {
		return Change{}, false
	}
	return s.Changes[len(s.Changes)-1], true
}

// Formatted maps each year to its display string, e.g. "12.3%".
func (s ChangeSeries) Formatted() map[int]string {
	out := make(map[int]string, len(s.Changes))
	for _, c := range s.Changes {
		out[c.Year] = c.String()
	}
	return out
}

func (s ChangeSeries) Points() []models.YearChange {
	out := make([]models.YearChange, len(s.Changes))
	for i, c := range s.Changes {
		out[i] = models.YearChange{Year: c.Year, Display: c.String()}
		if c.Defined {
			v := c.Percent
			out[i].Value = &v
		}
	}
	return out
}
