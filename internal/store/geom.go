package store

import (
	"cmp"
	"slices"

	"github.com/paulmach/orb/geo"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/places-catalog/internal/model"
)

// pointEWKB encodes a location as an SRID 4326 EWKB point for PostGIS params.
func pointEWKB(loc model.Location) ([]byte, error) {
	p := geom.NewPointFlat(geom.XY, []float64{loc.Lng, loc.Lat}).SetSRID(4326)
	data, err := ewkb.Marshal(p, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "store: encode point")
	}
	return data, nil
}

// searchBound returns the south-west and north-east corners of the lat/lng box
// that contains every point within radiusMeters of center.
func searchBound(center model.Location, radiusMeters float64) (sw, ne model.Location) {
	b := geo.NewBoundAroundPoint(center.Point(), radiusMeters)
	return model.LocationFromPoint(b.Min), model.LocationFromPoint(b.Max)
}

// nearest keeps the businesses within radiusMeters of center, closest first,
// capped at limit.
func nearest(items []model.Business, center model.Location, radiusMeters float64, limit int) []model.Business {
	type hit struct {
		b    model.Business
		dist float64
	}
	c := center.Point()
	hits := make([]hit, 0, len(items))
	for _, b := range items {
		if b.Location == nil {
			continue
		}
		d := geo.DistanceHaversine(c, b.Location.Point())
		if d <= radiusMeters {
			hits = append(hits, hit{b: b, dist: d})
		}
	}
	slices.SortStableFunc(hits, func(a, b hit) int { return cmp.Compare(a.dist, b.dist) })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]model.Business, len(hits))
	for i, h := range hits {
		out[i] = h.b
	}
	return out
}
