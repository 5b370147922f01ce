package market

import (
	"context"
	"sync"
	"time"
)

type cachedQuote struct {
	quote Quote
	at    time.Time
}

// CachedProvider wraps a QuoteProvider with a per-symbol TTL cache and a
// token-bucket rate limit on upstream calls. When the upstream is rate
// limited or failing, a stale cached quote is better than none for display
// paths, but StrictQuote exists for order execution where staleness is not
// acceptable.
type CachedProvider struct {
	inner QuoteProvider
	ttl   time.Duration

	mu       sync.Mutex
	quotes   map[string]cachedQuote
	tokens   float64
	rate     float64 // tokens per second
	lastFill time.Time
	now      func() time.Time
}

// NewCachedProvider caches quotes for ttl and allows perMinute upstream
// calls. The now function is injectable for tests; pass nil for time.Now.
func NewCachedProvider(inner QuoteProvider, ttl time.Duration, perMinute int, now func() time.Time) *CachedProvider {
	if now == nil {
		now = time.Now
	}
	return &CachedProvider{
		inner:    inner,
		ttl:      ttl,
		quotes:   make(map[string]cachedQuote),
		tokens:   1,
		rate:     float64(perMinute) / 60.0,
		lastFill: now(),
		now:      now,
	}
}

func (c *CachedProvider) takeToken() bool {
	now := c.now()
	c.tokens += now.Sub(c.lastFill).Seconds() * c.rate
	if c.tokens > float64(1) {
		c.tokens = 1
	}
	c.lastFill = now

	if c.tokens >= 1 {
		c.tokens--
		return true
	}
	return false
}

// Quote returns a cached quote when fresh, otherwise fetches upstream. On
// upstream failure or rate limiting, a stale cached quote is returned rather
// than an error; ErrQuoteUnavailable only when nothing is cached at all.
func (c *CachedProvider) Quote(ctx context.Context, symbol string) (Quote, error) {
	c.mu.Lock()
	cached, ok := c.quotes[symbol]
	if ok && c.now().Sub(cached.at) < c.ttl {
		c.mu.Unlock()
		return cached.quote, nil
	}
	allowed := c.takeToken()
	c.mu.Unlock()

	if allowed {
		q, err := c.inner.Quote(ctx, symbol)
		if err == nil {
			c.mu.Lock()
			c.quotes[symbol] = cachedQuote{quote: q, at: c.now()}
			c.mu.Unlock()
			return q, nil
		}
	}

	if ok {
		return cached.quote, nil
	}
	return Quote{}, ErrQuoteUnavailable
}

// StrictQuote bypasses stale fallback: it serves fresh cache hits, otherwise
// requires a successful upstream fetch. Order execution uses this so fills
// never happen at a price older than the cache TTL.
func (c *CachedProvider) StrictQuote(ctx context.Context, symbol string) (Quote, error) {
	c.mu.Lock()
	cached, ok := c.quotes[symbol]
	fresh := ok && c.now().Sub(cached.at) < c.ttl
	c.mu.Unlock()

	if fresh {
		return cached.quote, nil
	}

	q, err := c.inner.Quote(ctx, symbol)
	if err != nil {
		return Quote{}, err
	}
	c.mu.Lock()
	c.quotes[symbol] = cachedQuote{quote: q, at: c.now()}
	c.mu.Unlock()
	return q, nil
}

type strictProvider struct {
	c *CachedProvider
}

func (s strictProvider) Quote(ctx context.Context, symbol string) (Quote, error) {
	return s.c.StrictQuote(ctx, symbol)
}

// Strict returns a QuoteProvider view whose Quote is StrictQuote. Hand this
// to components that must not fill against stale prices.
func (c *CachedProvider) Strict() QuoteProvider {
	return strictProvider{c: c}
}
