package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sells-group/places-catalog/internal/model"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicate is returned when an insert violates a unique constraint.
	ErrDuplicate = errors.New("store: duplicate")
)

// Options tunes store behaviour shared by both drivers.
type Options struct {
	// AtomicBatches applies each UpsertBusinesses batch in one transaction.
	// When false, rows are written independently and failures are reported
	// per place_id in a *BatchError.
	AtomicBatches bool
}

// BatchError reports the rows of a non-atomic batch that failed to persist.
// Rows not listed were written.
type BatchError struct {
	Failed []string // place_ids
	Err    error    // first failure
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("store: %d rows failed (%s): %v", len(e.Failed), strings.Join(e.Failed, ", "), e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// Store defines the persistence interface for the business catalog.
type Store interface {
	// Businesses
	UpsertBusinesses(ctx context.Context, items []model.Business) (int, error)
	ListBusinesses(ctx context.Context, offset, limit int) ([]model.Business, error)
	CountBusinesses(ctx context.Context) (int64, error)
	AllBusinesses(ctx context.Context) ([]model.Business, error)
	CreateBusiness(ctx context.Context, b *model.Business) error
	NearbyBusinesses(ctx context.Context, center model.Location, radiusMeters float64, limit int) ([]model.Business, error)

	// Users
	CreateUser(ctx context.Context, u *model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
