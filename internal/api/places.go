package api

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/sells-group/places-catalog/internal/model"
	"github.com/sells-group/places-catalog/internal/places"
)

const (
	defaultPage        = 1
	defaultLimit       = 10
	defaultRadius      = 1000.0
	maxRadius          = 50000.0
	defaultNearbyLimit = 20
	maxNearbyLimit     = 100
)

// intParam returns def when the query parameter is absent.
func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &places.ValidationError{Field: name, Msg: "must be a number"}
	}
	return n, nil
}

func floatParam(r *http.Request, name string, def *float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		if def == nil {
			return 0, &places.ValidationError{Field: name, Msg: "is required"}
		}
		return *def, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &places.ValidationError{Field: name, Msg: "must be a number"}
	}
	return f, nil
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	page, err := intParam(r, "page", defaultPage)
	if err != nil {
		s.writePipelineError(w, err)
		return
	}
	limit, err := intParam(r, "limit", defaultLimit)
	if err != nil {
		s.writePipelineError(w, err)
		return
	}

	q := r.URL.Query()
	res, err := s.search.Run(r.Context(), places.SearchRequest{
		Type:     q.Get("type"),
		Location: q.Get("location"),
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		s.writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleNearby(w http.ResponseWriter, r *http.Request) {
	lat, err := floatParam(r, "lat", nil)
	if err == nil && (lat < -90 || lat > 90) {
		err = &places.ValidationError{Field: "lat", Msg: "must be between -90 and 90"}
	}
	if err != nil {
		s.writePipelineError(w, err)
		return
	}
	lng, err := floatParam(r, "lng", nil)
	if err == nil && (lng < -180 || lng > 180) {
		err = &places.ValidationError{Field: "lng", Msg: "must be between -180 and 180"}
	}
	if err != nil {
		s.writePipelineError(w, err)
		return
	}
	def := defaultRadius
	radius, err := floatParam(r, "radius_m", &def)
	if err == nil && (radius <= 0 || radius > maxRadius) {
		err = &places.ValidationError{Field: "radius_m", Msg: "must be between 0 and 50000"}
	}
	if err != nil {
		s.writePipelineError(w, err)
		return
	}
	limit, err := intParam(r, "limit", defaultNearbyLimit)
	if err == nil && (limit < 1 || limit > maxNearbyLimit) {
		err = &places.ValidationError{Field: "limit", Msg: "must be between 1 and 100"}
	}
	if err != nil {
		s.writePipelineError(w, err)
		return
	}

	items, err := s.catalog.NearbyBusinesses(r.Context(), model.Location{Lat: lat, Lng: lng}, radius, limit)
	if err != nil {
		s.log.Error("nearby query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to query businesses")
		return
	}
	if items == nil {
		items = []model.Business{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": items})
}
