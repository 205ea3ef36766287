package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-dashboard/internal/models"
)

type countingLoader struct {
	calls atomic.Int32
	err   error
	data  []models.SalesRecord
}

func (l *countingLoader) Load(ctx context.Context) (*Dataset, error) {
	l.calls.Add(1)
	if l.err != nil {
		return nil, l.err
	}
	return StaticLoader{Source: "counting", Records: l.data}.Load(ctx)
}

type recordingObserver struct {
	mu       sync.Mutex
	hits     int
	misses   []string
	loaded   int
	failures []string
}

func (o *recordingObserver) CacheHit() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.hits++
}

func (o *recordingObserver) CacheMiss(reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.misses = append(o.misses, reason)
}

func (o *recordingObserver) DatasetLoaded(int, int, time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.loaded++
}

func (o *recordingObserver) DatasetLoadFailed(reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures = append(o.failures, reason)
}

// fakeClock lets tests move the cache's notion of now.
type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClockedCache(l Loader, ttl time.Duration, obs LoadObserver) (*Cache, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	c := NewCache(l, ttl, nil, obs)
	c.now = clock.Now
	return c, clock
}

func TestCache_HitWithinTTL(t *testing.T) {
	loader := &countingLoader{data: sampleRecords()}
	obs := &recordingObserver{}
	c, clock := newClockedCache(loader, time.Hour, obs)

	first, err := c.Get(context.Background())
	require.NoError(t, err)

	clock.Advance(59 * time.Minute)
	second, err := c.Get(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.EqualValues(t, 1, loader.calls.Load())
	assert.Equal(t, 1, obs.hits)
	assert.Equal(t, []string{"cold"}, obs.misses)
}

func TestCache_ReloadsAfterTTL(t *testing.T) {
	loader := &countingLoader{data: sampleRecords()}
	obs := &recordingObserver{}
	c, clock := newClockedCache(loader, time.Hour, obs)

	first, err := c.Get(context.Background())
	require.NoError(t, err)

	clock.Advance(time.Hour)
	second, err := c.Get(context.Background())
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.EqualValues(t, 2, loader.calls.Load())
	assert.Equal(t, []string{"cold", "expired"}, obs.misses)
	assert.Equal(t, 2, obs.loaded)
}

func TestCache_FailureLeavesCacheEmpty(t *testing.T) {
	loader := &countingLoader{data: sampleRecords()}
	obs := &recordingObserver{}
	c, clock := newClockedCache(loader, time.Minute, obs)

	_, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.True(t, c.State().Loaded)

	loader.err = errors.New("disk on fire")
	clock.Advance(2 * time.Minute)

	_, err = c.Get(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLoad)

	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, "source unreadable", loadErr.Reason)
	assert.Equal(t, []string{"source unreadable"}, obs.failures)

	st := c.State()
	assert.False(t, st.Loaded)
	assert.Empty(t, st.Years)

	// the next call retries rather than serving the failure
	loader.err = nil
	_, err = c.Get(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, loader.calls.Load())
}

// blockingLoader waits for its context, like a slow read abandoned by the
// request that started it.
type blockingLoader struct{}

func (blockingLoader) Load(ctx context.Context) (*Dataset, error) {
	<-ctx.Done()
	return nil, &LoadError{Source: "slow.xlsx", Reason: "source unreadable", Err: ctx.Err()}
}

func TestCache_CancelledLoad(t *testing.T) {
	loader := &countingLoader{data: sampleRecords()}
	obs := &recordingObserver{}
	c, clock := newClockedCache(loader, time.Minute, obs)

	_, err := c.Get(context.Background())
	require.NoError(t, err)
	loadedAt := c.State().LoadedAt

	clock.Advance(2 * time.Minute)
	c.loader = blockingLoader{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = c.Get(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, "cancelled", loadErr.Reason)
	assert.Empty(t, obs.failures)

	// the stale dataset stays until a caller finishes a reload
	st := c.State()
	assert.True(t, st.Loaded)
	assert.Equal(t, loadedAt, st.LoadedAt)

	c.loader = loader
	_, err = c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, clock.Now(), c.State().LoadedAt)
}

func TestFileLoader_CancelledReason(t *testing.T) {
	assert.Equal(t, "cancelled", loadFailureReason(context.Canceled))
	assert.Equal(t, "cancelled", loadFailureReason(fmt.Errorf("parse: %w", context.DeadlineExceeded)))
	assert.Equal(t, "source missing", loadFailureReason(os.ErrNotExist))
}

func TestCache_Invalidate(t *testing.T) {
	loader := &countingLoader{data: sampleRecords()}
	c, _ := newClockedCache(loader, time.Hour, nil)

	_, err := c.Get(context.Background())
	require.NoError(t, err)
	c.Invalidate()
	_, err = c.Get(context.Background())
	require.NoError(t, err)

	assert.EqualValues(t, 2, loader.calls.Load())
}

func TestCache_State(t *testing.T) {
	c, clock := newClockedCache(&countingLoader{data: sampleRecords()}, 30*time.Minute, nil)

	assert.Equal(t, CacheState{Years: []int{}}, c.State())

	_, err := c.Get(context.Background())
	require.NoError(t, err)

	st := c.State()
	assert.True(t, st.Loaded)
	assert.Equal(t, "counting", st.Source)
	assert.Equal(t, 6, st.Records)
	assert.Equal(t, []int{2020, 2021, 2022}, st.Years)
	assert.Equal(t, clock.Now(), st.LoadedAt)
	assert.Equal(t, clock.Now().Add(30*time.Minute), st.ExpiresAt)
}

func TestCache_ConcurrentColdStartLoadsOnce(t *testing.T) {
	loader := &countingLoader{data: sampleRecords()}
	c := NewCache(loader, time.Hour, nil, nil)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Get(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, loader.calls.Load())
}

func TestFileLoader(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		l := &FileLoader{Path: filepath.Join(dir, "nope.xlsx")}
		_, err := l.Load(context.Background())

		var loadErr *LoadError
		require.True(t, errors.As(err, &loadErr))
		assert.Equal(t, "source missing", loadErr.Reason)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("missing columns", func(t *testing.T) {
		path := filepath.Join(dir, "bad.csv")
		require.NoError(t, os.WriteFile(path, []byte("Order ID,Sales\nA,1\n"), 0o644))

		_, err := (&FileLoader{Path: path}).Load(context.Background())
		var loadErr *LoadError
		require.True(t, errors.As(err, &loadErr))
		assert.Equal(t, "missing required columns", loadErr.Reason)
	})

	t.Run("csv", func(t *testing.T) {
		path := filepath.Join(dir, "ok.csv")
		body := "Order ID,Order Date,Ship Date,Ship Mode,Category,Sub-Category,Product Name,Sales,Quantity,Profit\n" +
			"CA-1,2016-11-08,2016-11-11,Second Class,Furniture,Chairs,Chair,731.94,3,219.58\n" +
			"CA-2,2017-06-12,2017-06-16,Standard Class,Office Supplies,Labels,Labels,14.62,2,6.87\n" +
			"CA-3,not a date,2017-06-16,Standard Class,Office Supplies,Labels,Labels,1,1,1\n"
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

		ds, err := (&FileLoader{Path: path}).Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []int{2016, 2017}, ds.Years)
		assert.Equal(t, 1, ds.Skipped)
		assert.Equal(t, 3, ds.Records[0].DaysToShip)
	})
}

func TestStaticLoader_Empty(t *testing.T) {
	_, err := StaticLoader{Source: "empty"}.Load(context.Background())
	assert.ErrorIs(t, err, ErrLoad)
}
