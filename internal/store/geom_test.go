package store

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/places-catalog/internal/model"
)

func TestSearchBound(t *testing.T) {
	center := model.Location{Lat: 30.27, Lng: -97.74}
	sw, ne := searchBound(center, 1000)

	assert.Less(t, sw.Lat, center.Lat)
	assert.Less(t, sw.Lng, center.Lng)
	assert.Greater(t, ne.Lat, center.Lat)
	assert.Greater(t, ne.Lng, center.Lng)
	// About 0.009 degrees of latitude per kilometre.
	assert.InDelta(t, 0.009, ne.Lat-center.Lat, 0.0005)
	assert.InDelta(t, center.Lat-sw.Lat, ne.Lat-center.Lat, 1e-9)
}

func TestNearest(t *testing.T) {
	center := model.Location{Lat: 30.27, Lng: -97.74}
	at := func(id string, lat, lng float64) model.Business {
		b := business(id, id)
		b.Location = &model.Location{Lat: lat, Lng: lng}
		return b
	}
	items := []model.Business{
		at("far", 30.30, -97.74),
		at("near", 30.271, -97.74),
		business("unplaced", "unplaced"),
		at("mid", 30.275, -97.74),
	}

	got := nearest(items, center, 1000, 0)
	ids := make([]string, len(got))
	for i, b := range got {
		ids[i] = b.PlaceID
	}
	assert.Equal(t, []string{"near", "mid"}, ids)

	assert.Len(t, nearest(items, center, 1000, 1), 1)
}
