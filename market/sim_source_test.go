package market

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNow() time.Time {
	return time.Date(2025, 7, 1, 15, 30, 0, 0, time.UTC)
}

func TestSimulatedSourceHistoryDeterministic(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	a, err := NewSimulatedSource(7, fixedNow).History(ctx, "AAPL", 100)
	require.NoError(t, err)
	b, err := NewSimulatedSource(7, fixedNow).History(ctx, "AAPL", 100)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 100)
	require.NoError(t, ValidateBars(a))

	// A different seed walks a different path.
	c, err := NewSimulatedSource(8, fixedNow).History(ctx, "AAPL", 100)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestSimulatedSourceHistoryShape(t *testing.T) {
	t.Parallel()

	bars, err := NewSimulatedSource(1, fixedNow).History(context.Background(), "MSFT", 30)
	require.NoError(t, err)
	require.Len(t, bars, 30)

	for i, b := range bars {
		assert.GreaterOrEqual(t, b.High, b.Close, "bar %d", i)
		assert.LessOrEqual(t, b.Low, b.Close, "bar %d", i)
		assert.Positive(t, b.Volume, "bar %d", i)
	}
	last := bars[len(bars)-1]
	assert.True(t, last.Date.Before(fixedNow()))
}

func TestSimulatedSourceQuote(t *testing.T) {
	t.Parallel()

	src := NewSimulatedSource(3, fixedNow)
	ctx := context.Background()

	q1, err := src.Quote(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", q1.Symbol)
	assert.Positive(t, q1.Price)
	assert.Equal(t, fixedNow(), q1.Time)

	// The walk steps are bounded, so consecutive quotes stay near each other.
	q2, err := src.Quote(ctx, "AAPL")
	require.NoError(t, err)
	assert.InDelta(t, q1.Price, q2.Price, q1.Price*0.02)

	// Unknown symbols still quote, from a hash-derived base price.
	q3, err := src.Quote(ctx, "ZZZZ")
	require.NoError(t, err)
	assert.Positive(t, q3.Price)
}

func TestValidateBars(t *testing.T) {
	t.Parallel()

	d := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	good := []Bar{
		{Date: d, Open: 10, Close: 10},
		{Date: d.AddDate(0, 0, 1), Open: 11, Close: 11},
	}
	require.NoError(t, ValidateBars(good))
	require.NoError(t, ValidateBars(nil))

	t.Run("duplicate date", func(t *testing.T) {
		bad := []Bar{good[0], good[0]}
		require.Error(t, ValidateBars(bad))
	})

	t.Run("non-positive price", func(t *testing.T) {
		bad := []Bar{{Date: d, Open: 10, Close: 0}}
		require.Error(t, ValidateBars(bad))
	})
}
