package places

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/places-catalog/internal/model"
	"github.com/sells-group/places-catalog/internal/store"
)

func newCatalog(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "places.db"), store.Options{AtomicBatches: true})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// failingStore fails every call and counts them.
type failingStore struct {
	calls int
	err   error
}

func (s *failingStore) UpsertBusinesses(context.Context, []model.Business) (int, error) {
	s.calls++
	return 0, s.err
}

func (s *failingStore) ListBusinesses(context.Context, int, int) ([]model.Business, error) {
	s.calls++
	return nil, s.err
}

func (s *failingStore) CountBusinesses(context.Context) (int64, error) {
	s.calls++
	return 0, s.err
}

func TestWriter_EmptyBatchSkipsStore(t *testing.T) {
	fs := &failingStore{err: errors.New("should not be called")}
	n, err := NewWriter(fs).UpsertBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, fs.calls)
}

func TestWriter_StoreFailure(t *testing.T) {
	fs := &failingStore{err: errors.New("disk full")}
	_, err := NewWriter(fs).UpsertBatch(context.Background(), []model.Business{{PlaceID: "a", Name: "A"}})

	var serr *StoreError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "upsert", serr.Op)
	assert.Contains(t, err.Error(), "disk full")
}

func TestWriter_UpsertIsIdempotent(t *testing.T) {
	st := newCatalog(t)
	w := NewWriter(st)
	ctx := context.Background()

	_, err := w.UpsertBatch(ctx, []model.Business{{PlaceID: "a", Name: "First"}})
	require.NoError(t, err)
	n, err := w.UpsertBatch(ctx, []model.Business{{PlaceID: "a", Name: "Second"}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	res, err := NewReader(st).ReadPage(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Total)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "Second", res.Data[0].Name)
}

func TestReader_Validation(t *testing.T) {
	fs := &failingStore{}
	r := NewReader(fs)

	for _, tc := range []struct {
		page, size int
		field      string
	}{
		{0, 10, "page"},
		{-1, 10, "page"},
		{1, 0, "limit"},
		{1, -5, "limit"},
	} {
		_, err := r.ReadPage(context.Background(), tc.page, tc.size)
		var verr *ValidationError
		require.True(t, errors.As(err, &verr), "page=%d size=%d", tc.page, tc.size)
		assert.Equal(t, tc.field, verr.Field)
	}
	assert.Equal(t, 0, fs.calls)
}

func TestReader_StoreFailure(t *testing.T) {
	_, err := NewReader(&failingStore{err: errors.New("gone")}).ReadPage(context.Background(), 1, 10)
	var serr *StoreError
	require.True(t, errors.As(err, &serr))
}

func TestReader_PageBeyondEnd(t *testing.T) {
	st := newCatalog(t)
	_, err := st.UpsertBusinesses(context.Background(), []model.Business{{PlaceID: "a", Name: "A"}})
	require.NoError(t, err)

	res, err := NewReader(st).ReadPage(context.Background(), 5, 10)
	require.NoError(t, err)
	assert.Empty(t, res.Data)
	assert.NotNil(t, res.Data)
	assert.Equal(t, int64(1), res.Total)
	assert.Equal(t, 5, res.Page)
	assert.Equal(t, 10, res.Limit)
}

func TestReader_HugePageDoesNotOverflow(t *testing.T) {
	st := newCatalog(t)
	res, err := NewReader(st).ReadPage(context.Background(), int(^uint(0)>>1), 10)
	require.NoError(t, err)
	assert.Empty(t, res.Data)
}

// Consecutive windows never overlap and together cover the catalog.
func TestReader_PagesAreDisjointAndCovering(t *testing.T) {
	st := newCatalog(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))

	n := 1 + rng.Intn(40)
	var batch []model.Business
	for i := 0; i < n; i++ {
		batch = append(batch, model.Business{PlaceID: fmt.Sprintf("p%03d", i), Name: "Shop"})
	}
	_, err := st.UpsertBusinesses(ctx, batch)
	require.NoError(t, err)

	r := NewReader(st)
	for k := 0; k < 10; k++ {
		size := 1 + rng.Intn(12)
		seen := map[string]bool{}
		for pg := 1; ; pg++ {
			res, err := r.ReadPage(ctx, pg, size)
			require.NoError(t, err)
			assert.Equal(t, int64(n), res.Total)
			if len(res.Data) == 0 {
				break
			}
			assert.LessOrEqual(t, len(res.Data), size)
			for _, b := range res.Data {
				assert.False(t, seen[b.PlaceID], "duplicate %s with size %d", b.PlaceID, size)
				seen[b.PlaceID] = true
			}
		}
		assert.Len(t, seen, n, "size %d", size)
	}
}
