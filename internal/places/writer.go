package places

import (
	"context"

	"github.com/sells-group/places-catalog/internal/model"
)

// BusinessWriter is the store capability the Writer needs.
type BusinessWriter interface {
	UpsertBusinesses(ctx context.Context, items []model.Business) (int, error)
}

// Writer persists enriched businesses keyed by place_id.
type Writer struct {
	store BusinessWriter
}

// NewWriter creates a Writer over store.
func NewWriter(store BusinessWriter) *Writer {
	return &Writer{store: store}
}

// UpsertBatch submits items as one batch. Empty input makes no store call.
// On a partial failure the count of rows written is still returned.
func (w *Writer) UpsertBatch(ctx context.Context, items []model.Business) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	n, err := w.store.UpsertBusinesses(ctx, items)
	businessesUpserted.Add(float64(n))
	if err != nil {
		return n, &StoreError{Op: "upsert", Err: err}
	}
	return n, nil
}
