// loadgen/decimal.go

package loadgen

import (
	"math/rand"
	"sync"
	"time"

	"github.com/illmade-knight/go-pricestore/pkg/pricestore"
	"github.com/shopspring/decimal"
)

// DecimalGenerator produces prices whose payloads are decimal quotes doing a
// bounded random walk around a starting value. It keeps one walk per
// instrument so a feed's quotes drift plausibly rather than jumping.
type DecimalGenerator struct {
	mu    sync.Mutex
	start decimal.Decimal
	step  decimal.Decimal
	last  map[string]decimal.Decimal
	rng   *rand.Rand
}

// NewDecimalGenerator creates a generator walking from start with the given
// maximum step per tick.
func NewDecimalGenerator(start, step decimal.Decimal, seed int64) *DecimalGenerator {
	return &DecimalGenerator{
		start: start,
		step:  step,
		last:  make(map[string]decimal.Decimal),
		rng:   rand.New(rand.NewSource(seed)),
	}
}

// GeneratePrice implements the PriceGenerator interface.
func (g *DecimalGenerator) GeneratePrice(feed *Feed) (*pricestore.Price, error) {
	g.mu.Lock()
	current, ok := g.last[feed.Instrument]
	if !ok {
		current = g.start
	}
	// Walk by a random fraction of the step, in either direction.
	delta := g.step.Mul(decimal.NewFromFloat(g.rng.Float64()*2 - 1))
	current = current.Add(delta)
	g.last[feed.Instrument] = current
	g.mu.Unlock()

	return pricestore.NewPrice(feed.Instrument, time.Now().UTC(), current)
}
