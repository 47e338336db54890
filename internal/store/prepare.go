package store

import (
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/places-catalog/internal/dedupe"
	"github.com/sells-group/places-catalog/internal/model"
)

func newID() string { return uuid.New().String() }

// prepareBatch drops rows without a place_id, collapses duplicate keys (last
// wins) and stamps ids and timestamps. On conflict the stored id and
// created_at are kept, so the stamped values only matter for new rows.
func prepareBatch(items []model.Business, now time.Time) []model.Business {
	rows := dedupe.ByKey(items, func(b model.Business) string { return b.PlaceID })
	for i := range rows {
		if rows[i].ID == "" {
			rows[i].ID = newID()
		}
		if rows[i].CreatedAt.IsZero() {
			rows[i].CreatedAt = now
		}
		rows[i].UpdatedAt = now
		if rows[i].Types == nil {
			rows[i].Types = []string{}
		}
	}
	return rows
}

func nullableRaw(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

func latLng(loc *model.Location) (lat, lng *float64) {
	if loc == nil {
		return nil, nil
	}
	la, ln := loc.Lat, loc.Lng
	return &la, &ln
}

func locationOf(lat, lng *float64) *model.Location {
	if lat == nil || lng == nil {
		return nil
	}
	return &model.Location{Lat: *lat, Lng: *lng}
}
