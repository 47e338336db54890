package places

import (
	"context"
	"math"

	"github.com/sells-group/places-catalog/internal/model"
)

// BusinessReader is the store capability the Reader needs.
type BusinessReader interface {
	ListBusinesses(ctx context.Context, offset, limit int) ([]model.Business, error)
	CountBusinesses(ctx context.Context) (int64, error)
}

// Reader serves windows over the whole persisted catalog.
type Reader struct {
	store BusinessReader
}

// NewReader creates a Reader over store.
func NewReader(store BusinessReader) *Reader {
	return &Reader{store: store}
}

// ReadPage returns page (1-based) of size records in store order, with the
// catalog-wide total.
func (r *Reader) ReadPage(ctx context.Context, page, size int) (*model.PageResult, error) {
	if err := validatePaging(page, size); err != nil {
		return nil, err
	}

	res := &model.PageResult{Data: []model.Business{}, Page: page, Limit: size}

	total, err := r.store.CountBusinesses(ctx)
	if err != nil {
		return nil, &StoreError{Op: "count", Err: err}
	}
	res.Total = total

	// A window past MaxInt cannot hold rows.
	if page-1 > math.MaxInt/size {
		return res, nil
	}
	data, err := r.store.ListBusinesses(ctx, (page-1)*size, size)
	if err != nil {
		return nil, &StoreError{Op: "list", Err: err}
	}
	if data != nil {
		res.Data = data
	}
	return res, nil
}

func validatePaging(page, size int) error {
	if page < 1 {
		return &ValidationError{Field: "page", Msg: "must be a positive integer"}
	}
	if size < 1 {
		return &ValidationError{Field: "limit", Msg: "must be a positive integer"}
	}
	return nil
}
