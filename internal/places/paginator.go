package places

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/places-catalog/internal/model"
	"github.com/sells-group/places-catalog/internal/resilience"
	"github.com/sells-group/places-catalog/pkg/google"
)

// State is a position in the paginator's page loop.
type State int

// Paginator states. StateDone and StateFailed are terminal.
const (
	StateStart State = iota
	StateAwaitingNextPage
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateAwaitingNextPage:
		return "awaiting_next_page"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// PaginatorConfig bounds a multi-page text search.
type PaginatorConfig struct {
	MaxPages     int           // total page calls, first included
	PageDelay    time.Duration // wait before presenting a continuation token
	CallTimeout  time.Duration // per upstream call
	TokenRetries int           // extra attempts per page on transient failures, a not-yet-valid token included
}

// DefaultPaginatorConfig matches the upstream's three-page cap and token delay.
func DefaultPaginatorConfig() PaginatorConfig {
	return PaginatorConfig{
		MaxPages:     3,
		PageDelay:    2 * time.Second,
		CallTimeout:  10 * time.Second,
		TokenRetries: 3,
	}
}

// Paginator drains a text search across continuation tokens.
type Paginator struct {
	client google.Client
	cfg    PaginatorConfig
	sleep  resilience.Sleeper
}

// PaginatorOption configures a Paginator.
type PaginatorOption func(*Paginator)

// WithSleeper replaces the timer used for the inter-page delay.
func WithSleeper(s resilience.Sleeper) PaginatorOption {
	return func(p *Paginator) { p.sleep = s }
}

// NewPaginator creates a Paginator. Zero config fields fall back to defaults.
func NewPaginator(client google.Client, cfg PaginatorConfig, opts ...PaginatorOption) *Paginator {
	def := DefaultPaginatorConfig()
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = def.MaxPages
	}
	if cfg.PageDelay < 0 {
		cfg.PageDelay = 0
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = def.CallTimeout
	}
	if cfg.TokenRetries < 0 {
		cfg.TokenRetries = 0
	}
	p := &Paginator{client: client, cfg: cfg, sleep: resilience.Sleep}
	for _, o := range opts {
		o(p)
	}
	return p
}

// pageRun is the mutable state of one FetchAll call.
type pageRun struct {
	state   State
	token   string
	calls   int
	results []model.Candidate
	err     error
}

// FetchAll returns every result of query across at most MaxPages pages, in
// upstream order. An empty first page yields an empty slice and no error.
func (p *Paginator) FetchAll(ctx context.Context, query string) ([]model.Candidate, error) {
	log := zap.L().With(zap.String("component", "places.paginator"), zap.String("query", query))

	run := &pageRun{state: StateStart, results: []model.Candidate{}}
	for run.state != StateDone && run.state != StateFailed {
		p.step(ctx, query, run)
	}
	if run.state == StateFailed {
		log.Error("text search failed", zap.Int("pages", run.calls), zap.Error(run.err))
		return nil, run.err
	}

	log.Debug("text search complete", zap.Int("pages", run.calls), zap.Int("results", len(run.results)))
	return run.results, nil
}

func (p *Paginator) step(ctx context.Context, query string, run *pageRun) {
	var (
		resp *google.TextSearchResponse
		err  error
	)
	switch run.state {
	case StateStart:
		resp, err = p.fetchPage(ctx, google.TextSearchRequest{Query: query})
	case StateAwaitingNextPage:
		if err = p.sleep(ctx, p.cfg.PageDelay); err != nil {
			run.state, run.err = StateFailed, &UpstreamError{Op: "text search", Err: err}
			return
		}
		resp, err = p.fetchPage(ctx, google.TextSearchRequest{Query: query, PageToken: run.token})
	}
	if err != nil {
		run.state, run.err = StateFailed, &UpstreamError{Op: "text search", Err: err}
		return
	}

	run.calls++
	pagesFetched.Inc()
	for _, pl := range resp.Results {
		if pl.PlaceID == "" {
			continue
		}
		run.results = append(run.results, candidateFromPlace(pl))
	}

	if resp.NextPageToken != "" && run.calls < p.cfg.MaxPages {
		run.state, run.token = StateAwaitingNextPage, resp.NextPageToken
		return
	}
	run.state, run.token = StateDone, ""
}

func (p *Paginator) call(ctx context.Context, req google.TextSearchRequest) (*google.TextSearchResponse, error) {
	cctx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout)
	defer cancel()
	return p.client.TextSearch(cctx, req)
}

// fetchPage issues one page call and retries it while the upstream reports a
// transient failure: 429/5xx, OVER_QUERY_LIMIT, a network error, or a
// continuation token that is not active yet.
func (p *Paginator) fetchPage(ctx context.Context, req google.TextSearchRequest) (*google.TextSearchResponse, error) {
	cfg := resilience.RetryConfig{
		MaxAttempts:    p.cfg.TokenRetries + 1,
		InitialBackoff: p.cfg.PageDelay,
		MaxBackoff:     p.cfg.PageDelay,
		Multiplier:     1,
		ShouldRetry:    resilience.IsTransient,
		OnRetry:        resilience.RetryLogger("google", "text_search_page"),
		Sleep:          p.sleep,
	}
	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*google.TextSearchResponse, error) {
		return p.call(ctx, req)
	})
}

func candidateFromPlace(pl google.Place) model.Candidate {
	c := model.Candidate{
		PlaceID:     pl.PlaceID,
		Name:        pl.Name,
		Address:     pl.FormattedAddress,
		Types:       pl.Types,
		Raw:         pl.Raw,
		Rating:      pl.Rating,
		RatingCount: pl.UserRatingsTotal,
		PriceLevel:  pl.PriceLevel,
		Icon:        pl.Icon,
	}
	if pl.Geometry != nil {
		c.Location = &model.Location{Lat: pl.Geometry.Location.Lat, Lng: pl.Geometry.Location.Lng}
	}
	if pl.OpeningHours != nil {
		c.OpenNow = pl.OpeningHours.OpenNow
	}
	return c
}
