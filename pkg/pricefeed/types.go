package pricefeed

import "github.com/illmade-knight/go-pricestore/pkg/pricestore"

// ====================================================================================
// This file defines the core types for the pricefeed library.
// ====================================================================================

// BatchStore is the subset of the price store's operations the feed needs to
// publish a batch. pricestore.PriceService satisfies it.
type BatchStore interface {
	StartBatch() string
	UploadPrices(batchID string, prices []*pricestore.Price) error
	CompleteBatch(batchID string) error
	CancelBatch(batchID string) error
}

// FeedMessage wraps a price on its way into the store together with the
// delivery callbacks of whatever source produced it. Ack is called once the
// price has been committed, Nack if the batch it was part of had to be
// cancelled. Either callback may be nil for sources with no delivery
// semantics.
type FeedMessage struct {
	Price *pricestore.Price
	Ack   func()
	Nack  func()
}
