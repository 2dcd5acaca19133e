package pricestore

import (
	"sync"

	"github.com/google/uuid"
)

// batchManager owns the set of open batches and their staging areas, and
// enforces the batch state machine: open --upload--> open,
// open --complete/cancel--> gone. Once a batch leaves the open set no further
// operation on its id is valid.
//
// Locking follows the coarse-lifecycle / fine-merge split: operations that
// create or remove a staging area take the write lock, while uploads take the
// read lock for the duration of their merge. Uploads therefore run in
// parallel with each other (per-key atomicity comes from latestMap), but a
// staging area can never be detached or discarded while an upload is still
// merging into it.
type batchManager struct {
	mu   sync.RWMutex
	open map[string]*latestMap
}

func newBatchManager() *batchManager {
	return &batchManager{open: make(map[string]*latestMap)}
}

// start allocates a fresh batch id with an empty staging area. Ids are opaque
// and never reused for the lifetime of the process.
func (b *batchManager) start() string {
	id := "batch-" + uuid.NewString()
	b.mu.Lock()
	b.open[id] = newLatestMap()
	b.mu.Unlock()
	return id
}

// stage merges the given prices into the batch's staging area. Nil entries in
// the slice are skipped.
func (b *batchManager) stage(batchID string, prices []*Price) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	staging, ok := b.open[batchID]
	if !ok {
		return ErrInvalidBatch{BatchID: batchID}
	}
	for _, p := range prices {
		if p == nil {
			continue
		}
		staging.merge(p)
	}
	return nil
}

// detach removes the batch from the open set and returns its staging area.
// After detach returns, no upload can land in the returned map and no other
// terminal operation can succeed for the id.
func (b *batchManager) detach(batchID string) (*latestMap, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	staging, ok := b.open[batchID]
	if !ok {
		return nil, ErrInvalidBatch{BatchID: batchID}
	}
	delete(b.open, batchID)
	return staging, nil
}

// discard removes the batch from the open set, dropping its staged prices.
func (b *batchManager) discard(batchID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.open[batchID]; !ok {
		return ErrInvalidBatch{BatchID: batchID}
	}
	delete(b.open, batchID)
	return nil
}

// count reports the number of currently open batches.
func (b *batchManager) count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.open)
}
