package store

import (
	"context"
	"errors"
	"time"

	"boutique/backoffice/internal/apperr"
	"boutique/backoffice/internal/domain"
)

var ErrInvalidBatch = errors.New("invalid save batch")

type BatchStatus string

const (
	BatchCommitted BatchStatus = "committed"
	BatchPartial   BatchStatus = "partial"
	BatchFailed    BatchStatus = "failed"
)

// RowRecord is the fate of one draft row in a save.
type RowRecord struct {
	LocalID  int               `json:"local_id"`
	Name     string            `json:"name"`
	EntityID *int              `json:"entity_id,omitempty"`
	Outcome  apperr.RowOutcome `json:"outcome"`
	Error    string            `json:"error,omitempty"`
}

// BatchRecord is one save attempt as kept in the journal.
type BatchRecord struct {
	ID         string                    `json:"id"`
	Kind       string                    `json:"kind"`
	Status     BatchStatus               `json:"status"`
	Rows       []RowRecord               `json:"rows"`
	OutOfStock []domain.OutOfStockNotice `json:"out_of_stock,omitempty"`
	Error      string                    `json:"error,omitempty"`
	CreatedAt  time.Time                 `json:"created_at"`
}

func (b BatchRecord) Validate() error {
	if b.ID == "" || b.Kind == "" || b.Status == "" {
		return ErrInvalidBatch
	}
	return nil
}

// Journal keeps the outcome of every save so partial failures can be
// reviewed after the grid is gone.
type Journal interface {
	RecordBatch(ctx context.Context, batch BatchRecord) error
	ListBatches(ctx context.Context, limit int) ([]BatchRecord, error)
}
