// loadgen/interfaces.go

package loadgen

import (
	"context"

	"github.com/illmade-knight/go-pricestore/pkg/pricestore"
)

// PriceGenerator defines the interface for generating price observations.
// An application can implement this interface to produce its own payload
// shapes. It is passed a pointer to the feed to allow feed-specific
// information (like the instrument id) to be included in the price.
type PriceGenerator interface {
	GeneratePrice(feed *Feed) (*pricestore.Price, error)
}

// Publisher defines the interface for a sink that accepts generated prices.
// This allows different targets (a pricefeed batcher, a store directly, a
// test recorder) to be driven by the same generator.
type Publisher interface {
	Publish(ctx context.Context, price *pricestore.Price) error
}
