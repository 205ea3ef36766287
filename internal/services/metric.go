package services

import (
	"fmt"

	"github.com/shopspring/decimal"

	"sales-dashboard/internal/models"
)

// Metric is one of the tracked sales measures. Each is bound to a fixed
// column and aggregation.
type Metric int

const (
	Sales Metric = iota
	Profit
	OrderCount
	Quantity
)

// Metrics lists every tracked metric in display order.
var Metrics = []Metric{Sales, Profit, OrderCount, Quantity}

type Aggregation int

const (
	Sum Aggregation = iota
	CountDistinct
)

func (a Aggregation) String() string {
	switch a {
	case Sum:
		return "sum"
	case CountDistinct:
		return "count-distinct"
	default:
		return fmt.Sprintf("Aggregation(%d)", int(a))
	}
}

func (m Metric) String() string {
	switch m {
	case Sales:
		return "sales"
	case Profit:
		return "profit"
	case OrderCount:
		return "orders"
	case Quantity:
		return "quantity"
	default:
		return fmt.Sprintf("Metric(%d)", int(m))
	}
}

// Column is the source column the metric aggregates.
func (m Metric) Column() string {
	switch m {
	case Sales:
		return "Sales"
	case Profit:
		return "Profit"
	case OrderCount:
		return "Order ID"
	case Quantity:
		return "Quantity"
	default:
		return ""
	}
}

func (m Metric) Aggregation() Aggregation {
	if m == OrderCount {
		return CountDistinct
	}
	return Sum
}

// ParseMetric maps a metric name as produced by String back to the Metric.
func ParseMetric(s string) (Metric, error) {
	for _, m := range Metrics {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown metric %q", s)
}

type accumulator interface {
	add(r *models.SalesRecord)
	value() float64
}

func (m Metric) newAccumulator() accumulator {
	switch m {
	case Sales:
		return &moneySum{field: func(r *models.SalesRecord) float64 { return r.Sales }}
	case Profit:
		return &moneySum{field: func(r *models.SalesRecord) float64 { return r.Profit }}
	case OrderCount:
		return &distinctOrders{seen: make(map[string]struct{})}
	case Quantity:
		return &quantitySum{}
	default:
		panic(fmt.Sprintf("services: no aggregation bound to %v", m))
	}
}

// aggregate reduces records with the metric's aggregation.
func (m Metric) aggregate(records []models.SalesRecord) float64 {
	acc := m.newAccumulator()
	for i := range records {
		acc.add(&records[i])
	}
	return acc.value()
}

// moneySum adds currency in decimal so long columns of cents do not drift.
type moneySum struct {
	field func(*models.SalesRecord) float64
	total decimal.Decimal
}

func (s *moneySum) add(r *models.SalesRecord) {
	s.total = s.total.Add(decimal.NewFromFloat(s.field(r)))
}

func (s *moneySum) value() float64 { return s.total.InexactFloat64() }

type quantitySum struct{ total int }

func (s *quantitySum) add(r *models.SalesRecord) { s.total += r.Quantity }

func (s *quantitySum) value() float64 { return float64(s.total) }

type distinctOrders struct{ seen map[string]struct{} }

func (d *distinctOrders) add(r *models.SalesRecord) { d.seen[r.OrderID] = struct{}{} }

func (d *distinctOrders) value() float64 { return float64(len(d.seen)) }
