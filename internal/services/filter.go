package services

import (
	"strconv"
	"strings"

	"sales-dashboard/internal/models"
)

// SelectAll is the selection that keeps every year.
const SelectAll = "All"

// View is the subset of a dataset matching one year selection.
type View struct {
	Selection string
	// Year is zero when the view covers all years.
	Year    int
	Records []models.SalesRecord
}

func (v *View) All() bool { return v.Year == 0 }

// FilterByYear returns the rows of ds matching selection. "All" shares the
// dataset's records without copying them; a year must be one the dataset
// knows about, written the way the year list prints it.
func FilterByYear(ds *Dataset, selection string) (*View, error) {
	selection = strings.TrimSpace(selection)
	if selection == SelectAll {
		return &View{Selection: SelectAll, Records: ds.Records}, nil
	}

	year, err := strconv.Atoi(selection)
	if err != nil || strconv.Itoa(year) != selection || !ds.HasYear(year) {
		return nil, &InvalidSelectionError{Selection: selection, Known: ds.Years}
	}

	records := make([]models.SalesRecord, 0, len(ds.Records)/max(len(ds.Years), 1))
	for i := range ds.Records {
		if ds.Records[i].Year == year {
			records = append(records, ds.Records[i])
		}
	}
	return &View{Selection: selection, Year: year, Records: records}, nil
}
