package pricefeed

import (
	"context"

	"github.com/illmade-knight/go-pricestore/pkg/pricestore"
)

// Publish wraps a price in a FeedMessage and enqueues it for the next flush,
// blocking until the worker accepts it or the context ends. It lets a Batcher
// stand in wherever a plain price sink is expected, e.g. as the loadgen
// Publisher. Publish is safe to call concurrently with Stop: once shutdown
// has begun it fails instead of enqueueing, and an accepted price is always
// flushed before Stop returns.
func (b *Batcher) Publish(ctx context.Context, price *pricestore.Price) error {
	// The read lock holds off Stop's channel close until this send has either
	// completed or given up, so the send can never hit a closed channel.
	b.sendMu.RLock()
	defer b.sendMu.RUnlock()

	if err := b.shutdownCtx.Err(); err != nil {
		return err
	}
	select {
	case b.inputChan <- &FeedMessage{Price: price}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-b.shutdownCtx.Done():
		return b.shutdownCtx.Err()
	}
}
