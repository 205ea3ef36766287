package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported source format")
	ErrNoSheet           = errors.New("no worksheet found")
	ErrEmptySheet        = errors.New("worksheet is empty")
)

// Table is the cells of one sheet. SerialDates is set for spreadsheet
// sources, whose date cells arrive as Excel day numbers.
type Table struct {
	Rows        [][]string
	SerialDates bool
}

// ReadTable returns the cells of the first sheet of the file at path. The
// reader is chosen by extension: .xlsx/.xlsm through excelize, legacy .xls
// through extrame/xls and .csv through encoding/csv.
func ReadTable(path string) (*Table, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	var (
		t   = &Table{SerialDates: true}
		err error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx", ".xlsm":
		t.Rows, err = readXLSX(path)
	case ".xls":
		t.Rows, err = readXLS(path)
	case ".csv":
		t.Rows, err = readCSV(path)
		t.SerialDates = false
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, err
	}
	if len(t.Rows) == 0 {
		return nil, ErrEmptySheet
	}
	return t, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, ErrNoSheet
	}

	// Raw values keep dates as Excel serials regardless of the cell format.
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

func readXLS(path string) ([][]string, error) {
	wb, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	if wb.NumSheets() == 0 {
		return nil, ErrNoSheet
	}

	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, ErrNoSheet
	}

	useStoredValues(wb)

	// ReadAllCells walks the sheets in order; capping it at the first
	// sheet's row count keeps the others out.
	return wb.ReadAllCells(int(sheet.MaxRow) + 1), nil
}

// useStoredValues resets every cell style to the General format. extrame/xls
// renders built-in date formats as "2006.01", dropping the day, and any
// custom format as an RFC 3339 date, even for plain amounts. Under General
// every numeric cell reads back as the number it stores, so dates arrive as
// Excel serials.
func useStoredValues(wb *xls.WorkBook) {
	for _, xf := range wb.Xfs {
		switch v := xf.(type) {
		case *xls.Xf8:
			v.Format = 0
		case *xls.Xf5:
			v.Format = 0
		}
	}
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var rows [][]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		rows = append(rows, record)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}
	return rows, nil
}
