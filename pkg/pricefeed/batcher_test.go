package pricefeed

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/illmade-knight/go-pricestore/pkg/pricestore"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingStore rejects every upload, driving the Nack path.
type failingStore struct {
	sync.Mutex
	inner     *pricestore.PriceService
	cancelled []string
}

func newFailingStore() *failingStore {
	return &failingStore{inner: pricestore.New(zerolog.Nop())}
}

func (f *failingStore) StartBatch() string { return f.inner.StartBatch() }

func (f *failingStore) UploadPrices(batchID string, prices []*pricestore.Price) error {
	return pricestore.ErrInvalidBatch{BatchID: batchID}
}

func (f *failingStore) CompleteBatch(batchID string) error { return f.inner.CompleteBatch(batchID) }

func (f *failingStore) CancelBatch(batchID string) error {
	f.Lock()
	f.cancelled = append(f.cancelled, batchID)
	f.Unlock()
	return f.inner.CancelBatch(batchID)
}

func (f *failingStore) CancelledBatches() []string {
	f.Lock()
	defer f.Unlock()
	return append([]string(nil), f.cancelled...)
}

func feedPrice(t *testing.T, id string, asOf time.Time) *pricestore.Price {
	t.Helper()
	p, err := pricestore.NewPrice(id, asOf, 150.00)
	require.NoError(t, err)
	return p
}

func TestBatcher_BatchSizeTrigger(t *testing.T) {
	logger := zerolog.Nop()
	store := pricestore.New(logger)
	config := &BatcherConfig{
		BatchSize:    3,
		FlushTimeout: 1 * time.Second,
	}
	asOf := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	batcher := NewBatcher(config, store, logger)
	batcher.Start()
	defer batcher.Stop()

	var wg sync.WaitGroup
	wg.Add(3)
	ids := []string{"AAPL", "GOOG", "MSFT"}
	for _, id := range ids {
		batcher.Input() <- &FeedMessage{
			Price: feedPrice(t, id, asOf),
			Ack:   wg.Done,
		}
	}

	wg.Wait() // The full batch should flush without waiting for the timeout.

	result, err := store.GetLastPrices(ids)
	require.NoError(t, err)
	assert.Len(t, result, 3, "all prices of the full batch should be committed")
	assert.Equal(t, 0, store.OpenBatchCount(), "the flush batch should not be left open")
}

func TestBatcher_FlushTimeoutTrigger(t *testing.T) {
	logger := zerolog.Nop()
	store := pricestore.New(logger)
	config := &BatcherConfig{
		BatchSize:    10,
		FlushTimeout: 100 * time.Millisecond,
	}
	asOf := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	batcher := NewBatcher(config, store, logger)
	batcher.Start()
	defer batcher.Stop()

	var wg sync.WaitGroup
	wg.Add(2)
	batcher.Input() <- &FeedMessage{Price: feedPrice(t, "AAPL", asOf), Ack: wg.Done}
	batcher.Input() <- &FeedMessage{Price: feedPrice(t, "GOOG", asOf), Ack: wg.Done}

	wg.Wait() // The partial batch should flush once the timeout fires.

	result, err := store.GetLastPrices([]string{"AAPL", "GOOG"})
	require.NoError(t, err)
	assert.Len(t, result, 2, "the partial batch should be committed by the timeout")
}

func TestBatcher_StopFlushesFinalBatch(t *testing.T) {
	logger := zerolog.Nop()
	store := pricestore.New(logger)
	config := &BatcherConfig{
		BatchSize:    10,
		FlushTimeout: 5 * time.Second,
	}
	asOf := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	batcher := NewBatcher(config, store, logger)
	batcher.Start()

	ids := []string{"AAPL", "GOOG", "MSFT", "AMZN"}
	for _, id := range ids {
		batcher.Input() <- &FeedMessage{Price: feedPrice(t, id, asOf)}
	}

	batcher.Stop() // Should trigger the final flush.

	result, err := store.GetLastPrices(ids)
	require.NoError(t, err)
	assert.Len(t, result, 4, "the final batch should be committed on stop")
}

// TestBatcher_StopDrainsBufferedMessages verifies that prices still buffered
// in the input channel when Stop is called are committed, not dropped: the
// worker must drain the channel however the shutdown signal and the channel
// close interleave. Iterated to give the races a chance to surface.
func TestBatcher_StopDrainsBufferedMessages(t *testing.T) {
	logger := zerolog.Nop()
	asOf := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 50; i++ {
		store := pricestore.New(logger)
		// A large batch size and a flush timeout that never fires, so only
		// Stop can flush.
		batcher := NewBatcher(&BatcherConfig{BatchSize: 100, FlushTimeout: time.Hour}, store, logger)
		batcher.Start()

		const buffered = 8
		for j := 0; j < buffered; j++ {
			batcher.Input() <- &FeedMessage{Price: feedPrice(t, fmt.Sprintf("INSTR-%03d", j), asOf)}
		}
		batcher.Stop()

		require.Equal(t, buffered, store.CommittedPriceCount(),
			"every price accepted before Stop must be committed (iteration %d)", i)
	}
}

func TestBatcher_NacksAndCancelsOnFailure(t *testing.T) {
	logger := zerolog.Nop()
	store := newFailingStore()
	config := &BatcherConfig{BatchSize: 1, FlushTimeout: time.Second}

	batcher := NewBatcher(config, store, logger)
	batcher.Start()
	defer batcher.Stop()

	var wg sync.WaitGroup
	wg.Add(1)
	ackCalled, nackCalled := false, false
	batcher.Input() <- &FeedMessage{
		Price: feedPrice(t, "AAPL", time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)),
		Ack: func() {
			ackCalled = true
			wg.Done()
		},
		Nack: func() {
			nackCalled = true
			wg.Done()
		},
	}

	wg.Wait() // Wait for Ack/Nack to be called.

	assert.False(t, ackCalled, "Should not have acked the message")
	assert.True(t, nackCalled, "Should have nacked the message")
	assert.Len(t, store.CancelledBatches(), 1, "the failed batch should have been cancelled")
}

func TestNewBatcher_DefaultsInvalidConfig(t *testing.T) {
	logger := zerolog.Nop()
	store := pricestore.New(logger)

	batcher := NewBatcher(&BatcherConfig{}, store, logger)
	assert.Equal(t, 100, batcher.config.BatchSize)
	assert.Equal(t, 1*time.Second, batcher.config.FlushTimeout)
}
