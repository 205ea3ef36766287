// Package ingest reads the sales source table into records.
package ingest

import (
	"context"
	"fmt"
)

// LoadFile reads the first sheet of the file at path and parses it.
func LoadFile(ctx context.Context, path string) (*Result, error) {
	t, err := ReadTable(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseTable(ctx, t)
}
