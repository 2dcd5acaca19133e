package pricefeed

import (
	"context"
	"sync"
	"time"

	"github.com/illmade-knight/go-pricestore/pkg/pricestore"
	"github.com/rs/zerolog"
)

// BatcherConfig holds configuration for the Batcher.
type BatcherConfig struct {
	BatchSize    int
	FlushTimeout time.Duration
}

// Batcher collects incoming price messages and publishes them to a BatchStore
// in batches: each flush opens a fresh batch, uploads the collected prices
// and completes it, so readers of the store see every flush as one committed
// unit. If any step fails the batch is cancelled and the messages are Nacked.
type Batcher struct {
	config       *BatcherConfig
	store        BatchStore
	logger       zerolog.Logger
	inputChan    chan *FeedMessage
	sendMu       sync.RWMutex // serializes Publish sends against Stop's channel close
	wg           sync.WaitGroup
	shutdownCtx  context.Context
	shutdownFunc context.CancelFunc
}

// NewBatcher creates a new Batcher publishing to the given store.
func NewBatcher(config *BatcherConfig, store BatchStore, logger zerolog.Logger) *Batcher {
	if config.BatchSize <= 0 {
		logger.Warn().Int("provided_batch_size", config.BatchSize).Msg("BatchSize must be positive, defaulting to 100.")
		config.BatchSize = 100
	}
	if config.FlushTimeout <= 0 {
		logger.Warn().Dur("provided_flush_timeout", config.FlushTimeout).Msg("FlushTimeout must be positive, defaulting to 1 second.")
		config.FlushTimeout = 1 * time.Second
	}
	shutdownCtx, shutdownFunc := context.WithCancel(context.Background())
	return &Batcher{
		config:       config,
		store:        store,
		logger:       logger.With().Str("component", "PricefeedBatcher").Logger(),
		inputChan:    make(chan *FeedMessage, config.BatchSize*2),
		shutdownCtx:  shutdownCtx,
		shutdownFunc: shutdownFunc,
	}
}

// Start begins the batching worker goroutine.
func (b *Batcher) Start() {
	b.logger.Info().
		Int("batch_size", b.config.BatchSize).
		Dur("flush_timeout", b.config.FlushTimeout).
		Msg("Starting pricefeed Batcher worker...")
	b.wg.Add(1)
	go b.worker()
}

// Stop gracefully shuts down the Batcher, flushing any pending prices:
// everything accepted into the input channel before Stop is committed (or
// Nacked) before Stop returns.
func (b *Batcher) Stop() {
	b.logger.Info().Msg("Stopping pricefeed Batcher...")
	b.shutdownFunc() // Signal worker to stop and unblock in-flight Publish calls.
	// Wait for in-flight Publish sends to finish before closing the channel,
	// so a Publish racing Stop can never send on a closed channel.
	b.sendMu.Lock()
	close(b.inputChan)
	b.sendMu.Unlock()
	b.wg.Wait() // Wait for the worker to finish flushing.
	b.logger.Info().Msg("Pricefeed Batcher stopped.")
}

// Input returns the write-only channel for price messages.
func (b *Batcher) Input() chan<- *FeedMessage {
	return b.inputChan
}

// worker collects messages into a batch and flushes on size or timeout.
func (b *Batcher) worker() {
	defer b.wg.Done()
	batch := make([]*FeedMessage, 0, b.config.BatchSize)
	ticker := time.NewTicker(b.config.FlushTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-b.shutdownCtx.Done():
			// Stop closes the input channel once in-flight sends have
			// finished, so drain whatever is still buffered before the final
			// flush; the drain terminates because the close is guaranteed.
			for msg := range b.inputChan {
				batch = append(batch, msg)
				if len(batch) >= b.config.BatchSize {
					b.flush(batch)
					batch = make([]*FeedMessage, 0, b.config.BatchSize)
				}
			}
			b.flush(batch)
			return

		case msg, ok := <-b.inputChan:
			if !ok {
				b.logger.Info().Msg("Input channel closed, flushing remaining prices.")
				b.flush(batch)
				return
			}
			batch = append(batch, msg)
			if len(batch) >= b.config.BatchSize {
				b.flush(batch)
				batch = make([]*FeedMessage, 0, b.config.BatchSize)
			}

		case <-ticker.C:
			if len(batch) > 0 {
				b.flush(batch)
				batch = make([]*FeedMessage, 0, b.config.BatchSize)
			}
		}
	}
}

// flush publishes the collected prices through one batch lifecycle and
// handles the Ack/Nack logic.
func (b *Batcher) flush(batch []*FeedMessage) {
	if len(batch) == 0 {
		return
	}

	prices := make([]*pricestore.Price, len(batch))
	for i, msg := range batch {
		prices[i] = msg.Price
	}

	batchID := b.store.StartBatch()
	err := b.store.UploadPrices(batchID, prices)
	if err == nil {
		err = b.store.CompleteBatch(batchID)
	} else if cancelErr := b.store.CancelBatch(batchID); cancelErr != nil {
		b.logger.Error().Err(cancelErr).Str("batch_id", batchID).Msg("Failed to cancel batch after upload error")
	}

	if err != nil {
		b.logger.Error().Err(err).Str("batch_id", batchID).Int("batch_size", len(batch)).Msg("Failed to publish batch, Nacking messages.")
		for _, msg := range batch {
			if msg.Nack != nil {
				msg.Nack()
			}
		}
		return
	}

	b.logger.Info().Str("batch_id", batchID).Int("batch_size", len(batch)).Msg("Successfully published batch, Acking messages.")
	for _, msg := range batch {
		if msg.Ack != nil {
			msg.Ack()
		}
	}
}
