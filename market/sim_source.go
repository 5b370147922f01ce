package market

import (
	"context"
	"hash/fnv"
	"math/rand"
	"sync"
	"time"
)

// basePrices anchors well-known symbols so simulated quotes look plausible.
// Unknown symbols get a price derived from their name hash.
var basePrices = map[string]float64{
	"AAPL": 178.0,
	"MSFT": 415.0,
	"GOOG": 142.0,
	"AMZN": 185.0,
	"NVDA": 122.0,
	"SPY":  520.0,
	"TSLA": 248.0,
}

// SimulatedSource produces quotes and historical bars from a seeded random
// walk. The walk for a given symbol is a pure function of the symbol name and
// the configured seed, so repeated runs see identical data.
//
// It implements both QuoteProvider and BarProvider.
type SimulatedSource struct {
	mu    sync.Mutex
	seed  int64
	now   func() time.Time
	last  map[string]float64
	walks map[string]*rand.Rand
}

// NewSimulatedSource creates a source whose output is fully determined by
// seed. The now function stamps quotes; pass nil for time.Now.
func NewSimulatedSource(seed int64, now func() time.Time) *SimulatedSource {
	if now == nil {
		now = time.Now
	}
	return &SimulatedSource{
		seed:  seed,
		now:   now,
		last:  make(map[string]float64),
		walks: make(map[string]*rand.Rand),
	}
}

func (s *SimulatedSource) walkFor(symbol string) *rand.Rand {
	if w, ok := s.walks[symbol]; ok {
		return w
	}
	h := fnv.New64a()
	h.Write([]byte(symbol))
	w := rand.New(rand.NewSource(s.seed ^ int64(h.Sum64())))
	s.walks[symbol] = w
	return w
}

func (s *SimulatedSource) basePrice(symbol string) float64 {
	if p, ok := basePrices[symbol]; ok {
		return p
	}
	h := fnv.New64a()
	h.Write([]byte(symbol))
	// Spread unknown symbols across $20..$300.
	return 20 + float64(h.Sum64()%2800)/10
}

// Quote advances the symbol's random walk one step and returns the new price.
// Steps are bounded to roughly ±1.5% so resting limit/stop orders trigger
// within a plausible number of matcher ticks.
func (s *SimulatedSource) Quote(_ context.Context, symbol string) (Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.walkFor(symbol)
	p, ok := s.last[symbol]
	if !ok {
		p = s.basePrice(symbol)
	}
	p *= 1 + (w.Float64()-0.5)*0.03
	if p < 1 {
		p = 1
	}
	s.last[symbol] = p

	return Quote{Symbol: symbol, Price: p, Time: s.now()}, nil
}

// History generates a daily random-walk OHLCV series ending today. The walk
// carries a slight upward drift, mirroring long-run equity behaviour.
func (s *SimulatedSource) History(_ context.Context, symbol string, days int) ([]Bar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.walkFor(symbol + "/history")
	price := s.basePrice(symbol) * (0.7 + w.Float64()*0.2)
	end := s.now()

	bars := make([]Bar, 0, days)
	for i := 0; i < days; i++ {
		ret := w.NormFloat64()*0.015 + 0.0003
		price *= 1 + ret
		if price < 1 {
			price = 1
		}

		open := price * (0.995 + w.Float64()*0.01)
		high := price * (1.001 + w.Float64()*0.024)
		low := price * (0.975 + w.Float64()*0.024)
		if low > price {
			low = price
		}
		if high < price {
			high = price
		}

		bars = append(bars, Bar{
			Date:   end.AddDate(0, 0, i-days).Truncate(24 * time.Hour),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  price,
			Volume: 1_000_000 + int64(w.Intn(49_000_000)),
		})
	}
	return bars, nil
}
