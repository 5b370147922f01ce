package market

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingProvider serves a fixed price and counts upstream calls.
type countingProvider struct {
	mu    sync.Mutex
	price float64
	err   error
	calls int
}

func (p *countingProvider) Quote(_ context.Context, symbol string) (Quote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return Quote{}, p.err
	}
	return Quote{Symbol: symbol, Price: p.price}, nil
}

func (p *countingProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// testClock is an adjustable now() for driving TTL and token refill.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestCachedProviderServesFromCache(t *testing.T) {
	t.Parallel()

	inner := &countingProvider{price: 100}
	clock := newTestClock()
	c := NewCachedProvider(inner, 15*time.Second, 60, clock.now)
	ctx := context.Background()

	q, err := c.Quote(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 100.0, q.Price)
	assert.Equal(t, 1, inner.callCount())

	// Within the TTL the upstream is not touched.
	clock.advance(5 * time.Second)
	_, err = c.Quote(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.callCount())

	// Past the TTL it is.
	clock.advance(15 * time.Second)
	inner.price = 105
	q, err = c.Quote(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 105.0, q.Price)
	assert.Equal(t, 2, inner.callCount())
}

func TestCachedProviderRateLimit(t *testing.T) {
	t.Parallel()

	inner := &countingProvider{price: 100}
	clock := newTestClock()
	// One call per minute, 1s TTL: the second fetch is rate limited.
	c := NewCachedProvider(inner, time.Second, 1, clock.now)
	ctx := context.Background()

	_, err := c.Quote(ctx, "AAPL")
	require.NoError(t, err)
	require.Equal(t, 1, inner.callCount())

	// TTL expired but no token: the stale quote is served.
	clock.advance(2 * time.Second)
	q, err := c.Quote(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 100.0, q.Price)
	assert.Equal(t, 1, inner.callCount())

	// No cache and no token: unavailable.
	_, err = c.Quote(ctx, "MSFT")
	require.ErrorIs(t, err, ErrQuoteUnavailable)

	// A minute later the bucket has refilled.
	clock.advance(time.Minute)
	_, err = c.Quote(ctx, "MSFT")
	require.NoError(t, err)
}

func TestCachedProviderStaleFallbackOnError(t *testing.T) {
	t.Parallel()

	inner := &countingProvider{price: 100}
	clock := newTestClock()
	c := NewCachedProvider(inner, time.Second, 600, clock.now)
	ctx := context.Background()

	_, err := c.Quote(ctx, "AAPL")
	require.NoError(t, err)

	// Upstream fails after the TTL: stale beats nothing.
	inner.err = ErrQuoteUnavailable
	clock.advance(2 * time.Second)
	q, err := c.Quote(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 100.0, q.Price)

	// But an uncached symbol has no fallback.
	clock.advance(2 * time.Second)
	_, err = c.Quote(ctx, "MSFT")
	require.ErrorIs(t, err, ErrQuoteUnavailable)
}

func TestStrictQuote(t *testing.T) {
	t.Parallel()

	inner := &countingProvider{price: 100}
	clock := newTestClock()
	c := NewCachedProvider(inner, time.Second, 600, clock.now)
	ctx := context.Background()

	_, err := c.StrictQuote(ctx, "AAPL")
	require.NoError(t, err)

	// Fresh cache hit: no upstream call.
	calls := inner.callCount()
	_, err = c.StrictQuote(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, calls, inner.callCount())

	// Stale cache plus failing upstream: strict refuses the stale quote.
	inner.err = ErrQuoteUnavailable
	clock.advance(2 * time.Second)
	_, err = c.StrictQuote(ctx, "AAPL")
	require.ErrorIs(t, err, ErrQuoteUnavailable)
}

func TestStrictAdapter(t *testing.T) {
	t.Parallel()

	inner := &countingProvider{price: 100}
	clock := newTestClock()
	c := NewCachedProvider(inner, time.Second, 600, clock.now)
	ctx := context.Background()

	var p QuoteProvider = c.Strict()
	q, err := p.Quote(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 100.0, q.Price)

	// The adapter carries StrictQuote semantics: stale plus failing
	// upstream is an error, while the plain provider still falls back.
	inner.err = ErrQuoteUnavailable
	clock.advance(2 * time.Second)
	_, err = p.Quote(ctx, "AAPL")
	require.ErrorIs(t, err, ErrQuoteUnavailable)
	_, err = c.Quote(ctx, "AAPL")
	require.NoError(t, err)
}
