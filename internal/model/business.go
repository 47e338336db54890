package model

import (
	"encoding/json"
	"time"

	"github.com/paulmach/orb"
)

// Location is a WGS84 coordinate pair.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Point returns the location as an orb.Point (lon, lat order).
func (l Location) Point() orb.Point {
	return orb.Point{l.Lng, l.Lat}
}

// LocationFromPoint converts an orb.Point back to a Location.
func LocationFromPoint(p orb.Point) Location {
	return Location{Lat: p.Lat(), Lng: p.Lon()}
}

// Candidate is a place returned by a text search page, before enrichment.
// It lives only for the duration of one pipeline run.
type Candidate struct {
	PlaceID  string          `json:"place_id"`
	Name     string          `json:"name"`
	Address  string          `json:"address,omitempty"`
	Location *Location       `json:"location,omitempty"`
	Types    []string        `json:"types,omitempty"`
	Raw      json.RawMessage `json:"raw,omitempty"`

	// Search results already carry some summary fields; details overwrite them.
	Rating      *float64 `json:"rating,omitempty"`
	RatingCount *int     `json:"user_ratings_total,omitempty"`
	PriceLevel  *int     `json:"price_level,omitempty"`
	OpenNow     *bool    `json:"open_now,omitempty"`
	Icon        string   `json:"icon,omitempty"`
}

// Business is the persisted catalog entity. PlaceID is the natural key.
type Business struct {
	ID          string          `json:"id"`
	PlaceID     string          `json:"place_id"`
	Name        string          `json:"name"`
	Address     string          `json:"formatted_address,omitempty"`
	Phone       string          `json:"formatted_phone_number,omitempty"`
	Website     string          `json:"website,omitempty"`
	Rating      *float64        `json:"rating,omitempty"`
	RatingCount *int            `json:"user_ratings_total,omitempty"`
	PriceLevel  *int            `json:"price_level,omitempty"`
	OpenNow     *bool           `json:"open_now,omitempty"`
	Icon        string          `json:"icon,omitempty"`
	Types       []string        `json:"types,omitempty"`
	Location    *Location       `json:"location,omitempty"`
	Raw         json.RawMessage `json:"raw,omitempty"`
	OwnerID     *string         `json:"owner_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Business converts the candidate into an un-enriched Business.
func (c Candidate) Business() Business {
	return Business{
		PlaceID:     c.PlaceID,
		Name:        c.Name,
		Address:     c.Address,
		Rating:      c.Rating,
		RatingCount: c.RatingCount,
		PriceLevel:  c.PriceLevel,
		OpenNow:     c.OpenNow,
		Icon:        c.Icon,
		Types:       c.Types,
		Location:    c.Location,
		Raw:         c.Raw,
	}
}

// PageResult is one window over the persisted catalog.
type PageResult struct {
	Data  []Business `json:"data"`
	Total int64      `json:"total"`
	Page  int        `json:"page"`
	Limit int        `json:"limit"`
}
