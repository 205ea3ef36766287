package ingest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"sales-dashboard/internal/models"
)

var (
	ErrMissingColumns = errors.New("missing required columns")
	ErrNoRecords      = errors.New("no valid records found")
)

type column int

const (
	colOrderID column = iota
	colOrderDate
	colShipDate
	colShipMode
	colCategory
	colSubCategory
	colProductName
	colSales
	colQuantity
	colDiscount
	colProfit
	numColumns
)

var columnHeaders = [numColumns]string{
	colOrderID:     "Order ID",
	colOrderDate:   "Order Date",
	colShipDate:    "Ship Date",
	colShipMode:    "Ship Mode",
	colCategory:    "Category",
	colSubCategory: "Sub-Category",
	colProductName: "Product Name",
	colSales:       "Sales",
	colQuantity:    "Quantity",
	colDiscount:    "Discount",
	colProfit:      "Profit",
}

// Discount is displayed but not required; rows without it read as no discount.
var optionalColumns = map[column]bool{colDiscount: true}

// RequiredColumns lists the header names a source must carry.
func RequiredColumns() []string {
	out := make([]string, 0, numColumns)
	for c := column(0); c < numColumns; c++ {
		if !optionalColumns[c] {
			out = append(out, columnHeaders[c])
		}
	}
	return out
}

type columnIndex [numColumns]int

func normalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

func mapHeader(header []string) (columnIndex, error) {
	var idx columnIndex
	for i := range idx {
		idx[i] = -1
	}

	positions := make(map[string]int, len(header))
	for i, h := range header {
		name := normalizeHeader(h)
		if _, seen := positions[name]; !seen {
			positions[name] = i
		}
	}

	var missing []string
	for c := column(0); c < numColumns; c++ {
		pos, ok := positions[normalizeHeader(columnHeaders[c])]
		if !ok {
			if !optionalColumns[c] {
				missing = append(missing, columnHeaders[c])
			}
			continue
		}
		idx[c] = pos
	}
	if len(missing) > 0 {
		return idx, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	return idx, nil
}

// Result is the outcome of parsing one source table.
type Result struct {
	Records []models.SalesRecord
	Skipped int
}

// ParseRows converts a header row plus data rows of a text source into sales
// records. Blank rows are ignored; rows with unparseable cells are counted in
// Skipped.
func ParseRows(ctx context.Context, rows [][]string) (*Result, error) {
	return ParseTable(ctx, &Table{Rows: rows})
}

// ParseTable is ParseRows for a table read from any source. Date cells of a
// spreadsheet may also be Excel serial day numbers.
func ParseTable(ctx context.Context, t *Table) (*Result, error) {
	rows := t.Rows
	if len(rows) == 0 {
		return nil, ErrEmptySheet
	}

	idx, err := mapHeader(rows[0])
	if err != nil {
		return nil, err
	}

	dates := parseDate
	if t.SerialDates {
		dates = parseSheetDate
	}

	res := &Result{Records: make([]models.SalesRecord, 0, len(rows)-1)}
	for n, row := range rows[1:] {
		if n%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if isBlank(row) {
			continue
		}

		rec, err := parseRecord(row, idx, dates)
		if err != nil {
			res.Skipped++
			continue
		}
		res.Records = append(res.Records, rec)
	}

	if len(res.Records) == 0 {
		return nil, ErrNoRecords
	}
	return res, nil
}

func parseRecord(row []string, idx columnIndex, dateOf func(string) (time.Time, error)) (models.SalesRecord, error) {
	cell := func(c column) string {
		i := idx[c]
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	orderDate, err := dateOf(cell(colOrderDate))
	if err != nil {
		return models.SalesRecord{}, fmt.Errorf("order date: %w", err)
	}
	shipDate, err := dateOf(cell(colShipDate))
	if err != nil {
		return models.SalesRecord{}, fmt.Errorf("ship date: %w", err)
	}
	sales, err := parseAmount(cell(colSales))
	if err != nil {
		return models.SalesRecord{}, fmt.Errorf("sales: %w", err)
	}
	profit, err := parseAmount(cell(colProfit))
	if err != nil {
		return models.SalesRecord{}, fmt.Errorf("profit: %w", err)
	}
	quantity, err := parseQuantity(cell(colQuantity))
	if err != nil {
		return models.SalesRecord{}, fmt.Errorf("quantity: %w", err)
	}

	var discount float64
	if raw := cell(colDiscount); raw != "" {
		if discount, err = parseFraction(raw); err != nil {
			return models.SalesRecord{}, fmt.Errorf("discount: %w", err)
		}
	}

	orderID := cell(colOrderID)
	if orderID == "" {
		return models.SalesRecord{}, errors.New("order id is empty")
	}

	return models.SalesRecord{
		OrderID:     orderID,
		OrderDate:   orderDate,
		ShipDate:    shipDate,
		ShipMode:    cell(colShipMode),
		Category:    cell(colCategory),
		SubCategory: cell(colSubCategory),
		ProductName: cell(colProductName),
		Sales:       sales,
		Quantity:    quantity,
		Discount:    discount,
		Profit:      profit,
	}, nil
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"1/2/2006",
	"1/2/2006 15:04",
	"1/2/06",
	"01-02-06",
	"2006.01.02 15:04:05",
	"2006/01/02",
}

// parseDate accepts the textual layouts seen in exported sheets.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// Excel serials of 1970-01-01 and 9999-12-31. Sales dates outside that
// window are taken as a misread cell, not a date.
const (
	minDateSerial = 25569
	maxDateSerial = 2958465
)

var serialPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// parseSheetDate is parseDate for spreadsheet cells, which may also hold an
// Excel serial day number. A "2016.11" year-month rendering is rejected.
func parseSheetDate(s string) (time.Time, error) {
	if t, err := parseDate(s); err == nil || !serialPattern.MatchString(s) {
		return t, err
	}
	serial, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognised date %q", s)
	}
	if serial < minDateSerial || serial > maxDateSerial {
		return time.Time{}, fmt.Errorf("date serial %q out of range", s)
	}
	return excelize.ExcelDateToTime(serial, false)
}

var amountCleaner = strings.NewReplacer("$", "", "₹", "", "€", "", "£", "", ",", "", " ", "")

func parseAmount(s string) (float64, error) {
	if s == "" {
		return 0, errors.New("empty amount")
	}
	negative := strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")
	if negative {
		s = s[1 : len(s)-1]
	}
	v, err := strconv.ParseFloat(amountCleaner.Replace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite amount %q", s)
	}
	if negative {
		v = -v
	}
	return v, nil
}

func parseQuantity(s string) (int, error) {
	v, err := parseAmount(s)
	if err != nil {
		return 0, err
	}
	if v != math.Trunc(v) {
		return 0, fmt.Errorf("fractional quantity %q", s)
	}
	return int(v), nil
}

func parseFraction(s string) (float64, error) {
	if pct, ok := strings.CutSuffix(s, "%"); ok {
		v, err := parseAmount(pct)
		return v / 100, err
	}
	return parseAmount(s)
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
