package services

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"sales-dashboard/internal/ingest"
	"sales-dashboard/internal/models"
)

const tracerName = "sales-dashboard/internal/services"

// Loader produces a fresh Dataset from its source.
type Loader interface {
	Load(ctx context.Context) (*Dataset, error)
}

// LoadObserver is told about cache traffic and reloads.
type LoadObserver interface {
	CacheHit()
	CacheMiss(reason string)
	DatasetLoaded(records, skipped int, took time.Duration)
	DatasetLoadFailed(reason string)
}

type nopObserver struct{}

func (nopObserver) CacheHit()                             {}
func (nopObserver) CacheMiss(string)                      {}
func (nopObserver) DatasetLoaded(int, int, time.Duration) {}
func (nopObserver) DatasetLoadFailed(string)              {}

// FileLoader reads the dataset from a spreadsheet or CSV file.
type FileLoader struct {
	Path   string
	Logger *slog.Logger
}

func (l *FileLoader) Load(ctx context.Context) (*Dataset, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "dataset.load")
	defer span.End()
	span.SetAttributes(attribute.String("dataset.source", l.Path))

	res, err := ingest.LoadFile(ctx, l.Path)
	if err != nil {
		loadErr := &LoadError{Source: l.Path, Reason: loadFailureReason(err), Err: err}
		span.RecordError(loadErr)
		span.SetStatus(codes.Error, loadErr.Reason)
		return nil, loadErr
	}

	ds := NewDataset(l.Path, res.Records)
	ds.Skipped = res.Skipped
	span.SetAttributes(
		attribute.Int("dataset.records", len(ds.Records)),
		attribute.Int("dataset.skipped", ds.Skipped),
		attribute.Int("dataset.years", len(ds.Years)),
	)

	if l.Logger != nil && res.Skipped > 0 {
		l.Logger.Warn("skipped unparseable rows", "source", l.Path, "skipped", res.Skipped)
	}
	return ds, nil
}

func loadFailureReason(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.Is(err, os.ErrNotExist):
		return "source missing"
	case errors.Is(err, ingest.ErrMissingColumns):
		return "missing required columns"
	case errors.Is(err, ingest.ErrNoRecords), errors.Is(err, ingest.ErrEmptySheet):
		return "no records"
	default:
		return "source unreadable"
	}
}

// StaticLoader serves a fixed set of records, for tests and embedded data.
type StaticLoader struct {
	Source  string
	Records []models.SalesRecord
}

func (l StaticLoader) Load(context.Context) (*Dataset, error) {
	if len(l.Records) == 0 {
		return nil, &LoadError{Source: l.Source, Reason: "no records"}
	}
	return NewDataset(l.Source, slices.Clone(l.Records)), nil
}

// CacheState describes the cache without triggering a load.
type CacheState struct {
	Source    string    `json:"source,omitempty"`
	Loaded    bool      `json:"loaded"`
	LoadedAt  time.Time `json:"loaded_at,omitzero"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
	Records   int       `json:"records"`
	Skipped   int       `json:"skipped"`
	Years     []int     `json:"years"`
}

// Cache holds one Dataset for a fixed time window. Get reloads synchronously
// once the window has passed; concurrent callers wait for that single load.
type Cache struct {
	mu       sync.Mutex
	loader   Loader
	ttl      time.Duration
	now      func() time.Time
	logger   *slog.Logger
	observer LoadObserver

	dataset *Dataset
}

func NewCache(loader Loader, ttl time.Duration, logger *slog.Logger, observer LoadObserver) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Cache{
		loader:   loader,
		ttl:      ttl,
		now:      time.Now,
		logger:   logger.With("component", "dataset_cache"),
		observer: observer,
	}
}

// Get returns the cached dataset, loading it first when the cache is cold or
// the entry has expired. Load failures are returned as *LoadError and leave
// the cache empty. A load abandoned because ctx ended leaves the cache as it
// was and is not counted as a failure.
func (c *Cache) Get(ctx context.Context) (*Dataset, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.dataset != nil && now.Sub(c.dataset.LoadedAt) < c.ttl {
		c.observer.CacheHit()
		return c.dataset, nil
	}

	reason := "cold"
	if c.dataset != nil {
		reason = "expired"
	}
	c.observer.CacheMiss(reason)
	c.logger.Info("loading dataset", "reason", reason)

	start := time.Now()
	ds, err := c.loader.Load(ctx)
	if err != nil {
		// Cancelled by the caller, not a source failure.
		if ctxErr := ctx.Err(); ctxErr != nil {
			c.logger.Info("dataset load cancelled", "error", ctxErr)
			return nil, &LoadError{Source: sourceOf(c.loader), Reason: "cancelled", Err: ctxErr}
		}
		c.dataset = nil
		var loadErr *LoadError
		if !errors.As(err, &loadErr) {
			loadErr = &LoadError{Source: sourceOf(c.loader), Reason: "source unreadable", Err: err}
		}
		c.observer.DatasetLoadFailed(loadErr.Reason)
		c.logger.Error("dataset load failed", "error", loadErr)
		return nil, loadErr
	}

	took := time.Since(start)
	ds.LoadedAt = now
	c.dataset = ds
	c.observer.DatasetLoaded(len(ds.Records), ds.Skipped, took)
	c.logger.Info("dataset loaded",
		"source", ds.Source,
		"records", len(ds.Records),
		"skipped", ds.Skipped,
		"years", ds.Years,
		"duration", took,
	)
	return ds, nil
}

// Invalidate drops the cached dataset so the next Get reloads.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dataset = nil
}

func sourceOf(l Loader) string {
	switch l := l.(type) {
	case *FileLoader:
		return l.Path
	case StaticLoader:
		return l.Source
	}
	return ""
}

func (c *Cache) State() CacheState {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dataset == nil {
		return CacheState{Years: []int{}}
	}
	return CacheState{
		Source:    c.dataset.Source,
		Loaded:    true,
		LoadedAt:  c.dataset.LoadedAt,
		ExpiresAt: c.dataset.LoadedAt.Add(c.ttl),
		Records:   len(c.dataset.Records),
		Skipped:   c.dataset.Skipped,
		Years:     slices.Clone(c.dataset.Years),
	}
}
