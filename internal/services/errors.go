package services

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrLoad             = errors.New("dataset load failed")
	ErrInvalidSelection = errors.New("invalid year selection")
)

// LoadError reports a source that is missing, unreadable or lacks required
// columns. A render pass that hits it has no data to show.
type LoadError struct {
	Source string
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("load %q: %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("load %q: %s", e.Source, e.Reason)
}

func (e *LoadError) Unwrap() error { return e.Err }

func (e *LoadError) Is(target error) bool { return target == ErrLoad }

// InvalidSelectionError reports a selection that is neither "All" nor one
// of the dataset's years.
type InvalidSelectionError struct {
	Selection string
	Known     []int
}

func (e *InvalidSelectionError) Error() string {
	years := make([]string, len(e.Known))
	for i, y := range e.Known {
		years[i] = strconv.Itoa(y)
	}
	return fmt.Sprintf("invalid year selection %q: want %q or one of [%s]", e.Selection, SelectAll, strings.Join(years, ", "))
}

func (e *InvalidSelectionError) Is(target error) bool { return target == ErrInvalidSelection }
