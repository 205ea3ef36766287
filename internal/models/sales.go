package models

import "time"

// SalesRecord is one line item of the sales table. Year and DaysToShip are
// derived once when the dataset is built.
type SalesRecord struct {
	OrderID     string    `json:"order_id"`
	OrderDate   time.Time `json:"order_date"`
	ShipDate    time.Time `json:"ship_date"`
	ShipMode    string    `json:"ship_mode"`
	Category    string    `json:"category"`
	SubCategory string    `json:"sub_category"`
	ProductName string    `json:"product_name"`
	Sales       float64   `json:"sales"`
	Quantity    int       `json:"quantity"`
	Discount    float64   `json:"discount"`
	Profit      float64   `json:"profit"`

	Year       int `json:"year"`
	DaysToShip int `json:"days_to_ship"`
}

type KPITotals struct {
	Sales    float64 `json:"sales"`
	Profit   float64 `json:"profit"`
	Orders   int     `json:"orders"`
	Quantity int     `json:"quantity"`
}

// KPIDeltas holds the formatted year-over-year change shown under each KPI.
type KPIDeltas struct {
	Sales    string `json:"sales"`
	Profit   string `json:"profit"`
	Orders   string `json:"orders"`
	Quantity string `json:"quantity"`
}

type ProductTotal struct {
	ProductName string  `json:"product_name"`
	Total       float64 `json:"total"`
}

type ShippingGauge struct {
	AverageDays int `json:"average_days"`
	MinDays     int `json:"min_days"`
	MaxDays     int `json:"max_days"`
}

type CategoryYearSales struct {
	Year     int     `json:"year"`
	Category string  `json:"category"`
	Sales    float64 `json:"sales"`
}

// YearChange is one point of a year-over-year series. Value is nil when the
// change is undefined.
type YearChange struct {
	Year    int      `json:"year"`
	Value   *float64 `json:"value"`
	Display string   `json:"display"`
}

// Dashboard is everything one render pass needs for a single selection.
type Dashboard struct {
	Selection     string              `json:"selection"`
	Years         []int               `json:"years"`
	KPIs          KPITotals           `json:"kpis"`
	Deltas        KPIDeltas           `json:"deltas"`
	TopBySales    []ProductTotal      `json:"top_by_sales"`
	TopByProfit   []ProductTotal      `json:"top_by_profit"`
	Shipping      ShippingGauge       `json:"shipping"`
	CategorySales []CategoryYearSales `json:"category_sales"`
	Records       []SalesRecord       `json:"records"`
	SkippedRows   int                 `json:"skipped_rows"`
}
