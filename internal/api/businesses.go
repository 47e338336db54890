package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/places-catalog/internal/auth"
	"github.com/sells-group/places-catalog/internal/model"
	"github.com/sells-group/places-catalog/internal/store"
)

// manualPrefix marks businesses entered by users rather than found upstream.
const manualPrefix = "manual:"

type createBusinessRequest struct {
	PlaceID     string          `json:"place_id"`
	Name        string          `json:"name"`
	Address     string          `json:"formatted_address"`
	Phone       string          `json:"formatted_phone_number"`
	Website     string          `json:"website"`
	Rating      *float64        `json:"rating"`
	RatingCount *int            `json:"user_ratings_total"`
	PriceLevel  *int            `json:"price_level"`
	OpenNow     *bool           `json:"open_now"`
	Types       []string        `json:"types"`
	Location    *model.Location `json:"location"`
}

func (req createBusinessRequest) business(owner string) model.Business {
	placeID := strings.TrimSpace(req.PlaceID)
	if placeID == "" {
		placeID = manualPrefix + uuid.NewString()
	}
	return model.Business{
		PlaceID:     placeID,
		Name:        strings.TrimSpace(req.Name),
		Address:     req.Address,
		Phone:       req.Phone,
		Website:     req.Website,
		Rating:      req.Rating,
		RatingCount: req.RatingCount,
		PriceLevel:  req.PriceLevel,
		OpenNow:     req.OpenNow,
		Types:       req.Types,
		Location:    req.Location,
		OwnerID:     &owner,
	}
}

func (s *Server) handleCreateBusiness(w http.ResponseWriter, r *http.Request) {
	owner, ok := auth.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	var req createBusinessRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	b := req.business(owner)
	if err := s.catalog.CreateBusiness(r.Context(), &b); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeError(w, http.StatusConflict, "business already exists")
			return
		}
		s.log.Error("create business", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create business")
		return
	}

	if s.appender != nil {
		if err := s.appender.Append(r.Context(), []model.Business{b}); err != nil {
			s.log.Warn("append business to sheet", zap.String("place_id", b.PlaceID), zap.Error(err))
		}
	}

	writeJSON(w, http.StatusCreated, b)
}
