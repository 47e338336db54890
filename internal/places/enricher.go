package places

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/places-catalog/internal/model"
	"github.com/sells-group/places-catalog/pkg/google"
)

// DetailCache stores place details between runs. Get returns nil, nil on a miss.
type DetailCache interface {
	Get(ctx context.Context, placeID string) (*google.PlaceDetails, error)
	Set(ctx context.Context, placeID string, d *google.PlaceDetails) error
}

// EnricherConfig bounds detail fetching.
type EnricherConfig struct {
	Concurrency int           // max detail calls in flight
	CallTimeout time.Duration // per detail call
	Fields      []string      // detail fields to request; nil = google.DefaultDetailFields
}

// Enricher fetches place details for candidates under a concurrency cap.
type Enricher struct {
	client google.Client
	cache  DetailCache
	cfg    EnricherConfig
}

// EnricherOption configures an Enricher.
type EnricherOption func(*Enricher)

// WithDetailCache consults c before every upstream detail call.
func WithDetailCache(c DetailCache) EnricherOption {
	return func(e *Enricher) { e.cache = c }
}

// NewEnricher creates an Enricher. Concurrency below 1 is raised to 1.
func NewEnricher(client google.Client, cfg EnricherConfig, opts ...EnricherOption) *Enricher {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	if len(cfg.Fields) == 0 {
		cfg.Fields = google.DefaultDetailFields
	}
	e := &Enricher{client: client, cfg: cfg}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Enrich returns one Business per candidate, in input order. A candidate
// whose detail fetch fails, times out or panics is returned un-enriched.
func (e *Enricher) Enrich(ctx context.Context, candidates []model.Candidate) []model.Business {
	out := make([]model.Business, len(candidates))

	var g errgroup.Group
	g.SetLimit(e.cfg.Concurrency)
	for i, c := range candidates {
		i, c := i, c
		g.Go(func() error {
			out[i] = e.enrichOne(ctx, c)
			return nil
		})
	}
	_ = g.Wait()

	return out
}

func (e *Enricher) enrichOne(ctx context.Context, c model.Candidate) (b model.Business) {
	log := zap.L().With(zap.String("component", "places.enricher"), zap.String("place_id", c.PlaceID))

	defer func() {
		if r := recover(); r != nil {
			log.Error("detail fetch panicked", zap.String("panic", fmt.Sprint(r)))
			detailOutcomes.WithLabelValues("fallback").Inc()
			b = c.Business()
		}
	}()

	if e.cache != nil {
		d, err := e.cache.Get(ctx, c.PlaceID)
		if err != nil {
			log.Warn("detail cache get failed", zap.Error(err))
		}
		if d != nil {
			detailOutcomes.WithLabelValues("cache_hit").Inc()
			return mergeDetails(c, d)
		}
	}

	cctx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()

	d, err := e.client.PlaceDetails(cctx, c.PlaceID, e.cfg.Fields)
	if err != nil || d == nil {
		log.Warn("detail fetch failed, keeping search result", zap.Error(err))
		detailOutcomes.WithLabelValues("fallback").Inc()
		return c.Business()
	}

	if e.cache != nil {
		if err := e.cache.Set(ctx, c.PlaceID, d); err != nil {
			log.Warn("detail cache set failed", zap.Error(err))
		}
	}
	detailOutcomes.WithLabelValues("ok").Inc()
	return mergeDetails(c, d)
}

// mergeDetails overlays the non-empty detail fields on the candidate. The
// place_id always comes from the candidate.
func mergeDetails(c model.Candidate, d *google.PlaceDetails) model.Business {
	b := c.Business()
	if d.Name != "" {
		b.Name = d.Name
	}
	if d.FormattedAddress != "" {
		b.Address = d.FormattedAddress
	}
	b.Phone = d.FormattedPhoneNumber
	b.Website = d.Website
	if d.Rating != nil {
		b.Rating = d.Rating
	}
	if d.UserRatingsTotal != nil {
		b.RatingCount = d.UserRatingsTotal
	}
	if d.PriceLevel != nil {
		b.PriceLevel = d.PriceLevel
	}
	if d.OpeningHours != nil && d.OpeningHours.OpenNow != nil {
		b.OpenNow = d.OpeningHours.OpenNow
	}
	if d.Icon != "" {
		b.Icon = d.Icon
	}
	if len(d.Types) > 0 {
		b.Types = d.Types
	}
	if d.Geometry != nil {
		b.Location = &model.Location{Lat: d.Geometry.Location.Lat, Lng: d.Geometry.Location.Lng}
	}
	return b
}
