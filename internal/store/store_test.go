package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/places-catalog/internal/model"
)

func ptr[T any](v T) *T { return &v }

func business(placeID, name string) model.Business {
	return model.Business{
		PlaceID: placeID,
		Name:    name,
		Address: name + " St",
		Types:   []string{"cafe"},
		Raw:     json.RawMessage(`{"place_id":"` + placeID + `"}`),
	}
}

// storeTestSuite runs the behaviour every Store driver must share.
func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("UpsertThenList", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		b := business("p1", "Blue Bottle")
		b.Phone = "555-0100"
		b.Rating = ptr(4.5)
		b.RatingCount = ptr(120)
		b.PriceLevel = ptr(2)
		b.OpenNow = ptr(true)
		b.Location = &model.Location{Lat: 37.77, Lng: -122.42}

		n, err := s.UpsertBusinesses(ctx, []model.Business{b})
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		got, err := s.ListBusinesses(ctx, 0, 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.NotEmpty(t, got[0].ID)
		assert.Equal(t, "p1", got[0].PlaceID)
		assert.Equal(t, "555-0100", got[0].Phone)
		assert.Equal(t, []string{"cafe"}, got[0].Types)
		require.NotNil(t, got[0].Rating)
		assert.InDelta(t, 4.5, *got[0].Rating, 1e-9)
		assert.Equal(t, 120, *got[0].RatingCount)
		assert.Equal(t, 2, *got[0].PriceLevel)
		assert.True(t, *got[0].OpenNow)
		require.NotNil(t, got[0].Location)
		assert.InDelta(t, 37.77, got[0].Location.Lat, 1e-9)
		assert.JSONEq(t, `{"place_id":"p1"}`, string(got[0].Raw))
		assert.False(t, got[0].CreatedAt.IsZero())
	})

	t.Run("DoubleUpsertKeepsOneRowWithSecondValues", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.UpsertBusinesses(ctx, []model.Business{business("p1", "Old Name")})
		require.NoError(t, err)
		first, err := s.ListBusinesses(ctx, 0, 10)
		require.NoError(t, err)
		require.Len(t, first, 1)

		updated := business("p1", "New Name")
		updated.Website = "https://new.example"
		_, err = s.UpsertBusinesses(ctx, []model.Business{updated})
		require.NoError(t, err)

		total, err := s.CountBusinesses(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)

		got, err := s.ListBusinesses(ctx, 0, 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "New Name", got[0].Name)
		assert.Equal(t, "https://new.example", got[0].Website)
		assert.Equal(t, first[0].ID, got[0].ID)
		assert.True(t, got[0].CreatedAt.Equal(first[0].CreatedAt))
	})

	t.Run("DuplicateKeysInBatchLastWins", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		n, err := s.UpsertBusinesses(ctx, []model.Business{
			business("p1", "A"), business("p2", "B"), business("p1", "A2"),
		})
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		got, err := s.AllBusinesses(ctx)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "A2", got[0].Name)
		assert.Equal(t, "B", got[1].Name)
	})

	t.Run("EmptyBatch", func(t *testing.T) {
		s := newStore(t)
		n, err := s.UpsertBusinesses(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("PageWindowsAreDisjointAndCovering", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		var batch []model.Business
		for i := 0; i < 7; i++ {
			batch = append(batch, business(fmt.Sprintf("p%d", i), fmt.Sprintf("Shop %d", i)))
		}
		_, err := s.UpsertBusinesses(ctx, batch)
		require.NoError(t, err)

		seen := map[string]int{}
		var order []string
		for offset := 0; offset < 9; offset += 3 {
			page, err := s.ListBusinesses(ctx, offset, 3)
			require.NoError(t, err)
			for _, b := range page {
				seen[b.PlaceID]++
				order = append(order, b.PlaceID)
			}
		}
		assert.Len(t, seen, 7)
		for id, c := range seen {
			assert.Equal(t, 1, c, id)
		}
		assert.Equal(t, []string{"p0", "p1", "p2", "p3", "p4", "p5", "p6"}, order)

		beyond, err := s.ListBusinesses(ctx, 21, 3)
		require.NoError(t, err)
		assert.Empty(t, beyond)
	})

	t.Run("UpsertKeepsOwner", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		u := &model.User{Username: "ada", Email: "ada@example.com", PasswordHash: "x"}
		require.NoError(t, s.CreateUser(ctx, u))

		b := business("p9", "Owned")
		b.OwnerID = &u.ID
		require.NoError(t, s.CreateBusiness(ctx, &b))
		assert.NotEmpty(t, b.ID)

		_, err := s.UpsertBusinesses(ctx, []model.Business{business("p9", "Renamed")})
		require.NoError(t, err)

		got, err := s.AllBusinesses(ctx)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Renamed", got[0].Name)
		require.NotNil(t, got[0].OwnerID)
		assert.Equal(t, u.ID, *got[0].OwnerID)
	})

	t.Run("CreateBusinessDuplicate", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		b := business("dup", "First")
		require.NoError(t, s.CreateBusiness(ctx, &b))
		again := business("dup", "Second")
		err := s.CreateBusiness(ctx, &again)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrDuplicate))
	})

	t.Run("Nearby", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		near := business("near", "Near")
		near.Location = &model.Location{Lat: 40.7128, Lng: -74.0060}
		closer := business("closer", "Closer")
		closer.Location = &model.Location{Lat: 40.7130, Lng: -74.0061}
		far := business("far", "Far")
		far.Location = &model.Location{Lat: 34.0522, Lng: -118.2437}
		nowhere := business("nowhere", "No Location")
		_, err := s.UpsertBusinesses(ctx, []model.Business{near, closer, far, nowhere})
		require.NoError(t, err)

		got, err := s.NearbyBusinesses(ctx, model.Location{Lat: 40.7131, Lng: -74.0061}, 1000, 10)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "closer", got[0].PlaceID)
		assert.Equal(t, "near", got[1].PlaceID)

		got, err = s.NearbyBusinesses(ctx, model.Location{Lat: 40.7131, Lng: -74.0061}, 1000, 1)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("Users", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		u := &model.User{Username: "grace", Email: "grace@example.com", PasswordHash: "hash"}
		require.NoError(t, s.CreateUser(ctx, u))
		assert.NotEmpty(t, u.ID)

		got, err := s.GetUserByEmail(ctx, "grace@example.com")
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)
		assert.Equal(t, "grace", got.Username)
		assert.Equal(t, "hash", got.PasswordHash)

		err = s.CreateUser(ctx, &model.User{Username: "grace", Email: "other@example.com", PasswordHash: "h"})
		assert.True(t, errors.Is(err, ErrDuplicate))

		_, err = s.GetUserByEmail(ctx, "missing@example.com")
		assert.True(t, errors.Is(err, ErrNotFound))
	})
}
