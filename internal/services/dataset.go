package services

import (
	"slices"
	"time"

	"sales-dashboard/internal/models"
)

// Dataset is the loaded sales table with its derived columns and the
// year-over-year series of every metric. It is read-only once built.
type Dataset struct {
	Source string
	// LoadedAt is when the cache published the dataset; zero until then.
	LoadedAt time.Time
	Records  []models.SalesRecord
	Years    []int
	Skipped  int

	changes map[Metric]ChangeSeries
}

// NewDataset derives year and days-to-ship for every record and computes the
// change series. It takes ownership of records.
func NewDataset(source string, records []models.SalesRecord) *Dataset {
	for i := range records {
		deriveColumns(&records[i])
	}

	ds := &Dataset{
		Source:  source,
		Records: records,
		changes: make(map[Metric]ChangeSeries, len(Metrics)),
	}
	for _, m := range Metrics {
		ds.changes[m] = PercentChange(m, records)
	}

	for _, c := range ds.changes[Sales].Changes {
		ds.Years = append(ds.Years, c.Year)
	}
	return ds
}

func deriveColumns(r *models.SalesRecord) {
	r.Year = r.OrderDate.Year()
	r.DaysToShip = daysBetween(r.OrderDate, r.ShipDate)
}

// daysBetween is the whole number of days separating a and b, regardless of
// which comes first.
func daysBetween(a, b time.Time) int {
	d := b.Sub(a)
	if d < 0 {
		d = -d
	}
	return int(d / (24 * time.Hour))
}

// Change returns the year-over-year series for m.
func (d *Dataset) Change(m Metric) ChangeSeries {
	return d.changes[m]
}

func (d *Dataset) HasYear(year int) bool {
	_, found := slices.BinarySearch(d.Years, year)
	return found
}

func (d *Dataset) LatestYear() (int, bool) {
	if len(d.Years) == 0 {
		return 0, false
	}
	return d.Years[len(d.Years)-1], true
}
