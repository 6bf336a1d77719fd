package memory

import (
	"context"
	"sync"

	"boutique/backoffice/internal/store"
)

type Journal struct {
	mu      sync.RWMutex
	batches []store.BatchRecord
}

func New() *Journal {
	return &Journal{}
}

func (j *Journal) RecordBatch(_ context.Context, batch store.BatchRecord) error {
	if err := batch.Validate(); err != nil {
		return err
	}
	batch.Rows = append([]store.RowRecord(nil), batch.Rows...)
	j.mu.Lock()
	j.batches = append(j.batches, batch)
	j.mu.Unlock()
	return nil
}

// ListBatches returns the newest batches first.
func (j *Journal) ListBatches(_ context.Context, limit int) ([]store.BatchRecord, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if limit <= 0 || limit > len(j.batches) {
		limit = len(j.batches)
	}
	out := make([]store.BatchRecord, 0, limit)
	for i := len(j.batches) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, j.batches[i])
	}
	return out, nil
}
