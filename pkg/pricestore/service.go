package pricestore

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Service defines the batch upload and query operations of the price store.
// A transport layer binds these five operations to whatever protocol it
// chooses; this package only provides the concurrent in-memory core.
type Service interface {
	// StartBatch opens a new batch and returns its id. It never fails.
	StartBatch() string
	// UploadPrices merges prices into an open batch's staging area. It may be
	// called repeatedly, and concurrently, against the same batch.
	UploadPrices(batchID string, prices []*Price) error
	// CompleteBatch makes a batch's staged prices visible to readers and
	// discards the batch.
	CompleteBatch(batchID string) error
	// CancelBatch discards a batch's staged prices without committing them.
	CancelBatch(batchID string) error
	// GetLastPrices returns the latest committed price for each requested
	// instrument that has one; unknown instruments are omitted.
	GetLastPrices(ids []string) (map[string]*Price, error)
}

// PriceService is the in-memory implementation of Service. Prices staged in a
// batch become reader-visible only when the batch completes, and both staging
// and commit keep the price with the latest asOf per instrument.
type PriceService struct {
	committed *latestMap
	batches   *batchManager
	logger    zerolog.Logger
}

var _ Service = (*PriceService)(nil)

// New creates an empty PriceService.
func New(logger zerolog.Logger) *PriceService {
	return &PriceService{
		committed: newLatestMap(),
		batches:   newBatchManager(),
		logger:    logger.With().Str("component", "PriceService").Logger(),
	}
}

// StartBatch implements Service.
func (s *PriceService) StartBatch() string {
	batchID := s.batches.start()
	s.logger.Debug().Str("batch_id", batchID).Msg("Batch started.")
	return batchID
}

// UploadPrices implements Service. A nil prices list is rejected with
// ErrInvalidArgument; nil elements inside the list are skipped. A failed call
// leaves all state untouched.
func (s *PriceService) UploadPrices(batchID string, prices []*Price) error {
	if prices == nil {
		return fmt.Errorf("%w: prices list must not be nil", ErrInvalidArgument)
	}
	if err := s.batches.stage(batchID, prices); err != nil {
		return err
	}
	s.logger.Debug().Str("batch_id", batchID).Int("price_count", len(prices)).Msg("Prices staged.")
	return nil
}

// CompleteBatch implements Service. The batch atomically leaves the open set
// first, so no further upload can land in it and no concurrent complete or
// cancel for the same id can succeed. The detached staging contents are then
// merged into the committed store instrument by instrument: each instrument's
// update is atomic, but a concurrent reader may observe a partially applied
// completion while the merge loop is in progress. That relaxation is a
// documented semantic of this store, not an oversight.
func (s *PriceService) CompleteBatch(batchID string) error {
	staging, err := s.batches.detach(batchID)
	if err != nil {
		return err
	}

	staged := 0
	staging.each(func(p *Price) {
		s.committed.merge(p)
		staged++
	})

	s.logger.Info().Str("batch_id", batchID).Int("price_count", staged).Msg("Batch completed.")
	return nil
}

// CancelBatch implements Service. Cancellation is immediate and
// unconditional: once it returns, the staged data is unreachable and will
// never reach the committed store, and an in-flight CompleteBatch for the
// same id fails with ErrInvalidBatch.
func (s *PriceService) CancelBatch(batchID string) error {
	if err := s.batches.discard(batchID); err != nil {
		return err
	}
	s.logger.Info().Str("batch_id", batchID).Msg("Batch cancelled.")
	return nil
}

// GetLastPrices implements Service. It is read-only, never observes staging
// areas, and is never blocked by writers of unrelated instruments. A nil ids
// list is rejected with ErrInvalidArgument; unknown ids are simply omitted
// from the result.
func (s *PriceService) GetLastPrices(ids []string) (map[string]*Price, error) {
	if ids == nil {
		return nil, fmt.Errorf("%w: ids list must not be nil", ErrInvalidArgument)
	}

	result := make(map[string]*Price, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if p, ok := s.committed.get(id); ok {
			result[id] = p
		}
	}
	return result, nil
}

// CommittedPriceCount reports the number of instruments with a committed
// price. Intended for monitoring and tests.
func (s *PriceService) CommittedPriceCount() int {
	return s.committed.size()
}

// OpenBatchCount reports the number of currently open batches. Intended for
// monitoring and tests.
func (s *PriceService) OpenBatchCount() int {
	return s.batches.count()
}
