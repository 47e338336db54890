package places

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/places-catalog/internal/dedupe"
	"github.com/sells-group/places-catalog/internal/model"
)

// SearchRequest is one ingestion request.
type SearchRequest struct {
	Type     string `json:"type"`
	Location string `json:"location"`
	Page     int    `json:"page"`
	Limit    int    `json:"limit"`
}

// Validate checks the request without touching the network or the store.
func (r SearchRequest) Validate() error {
	if strings.TrimSpace(r.Type) == "" {
		return &ValidationError{Field: "type", Msg: "is required"}
	}
	if strings.TrimSpace(r.Location) == "" {
		return &ValidationError{Field: "location", Msg: "is required"}
	}
	return validatePaging(r.Page, r.Limit)
}

// Query is the text search phrase, e.g. "cafe in Austin, TX".
func (r SearchRequest) Query() string {
	return strings.TrimSpace(r.Type) + " in " + strings.TrimSpace(r.Location)
}

// Appender receives the businesses of each successful upsert.
type Appender interface {
	Append(ctx context.Context, items []model.Business) error
}

// Pipeline runs validate, paginate, dedupe, enrich, upsert and read page.
type Pipeline struct {
	paginator *Paginator
	enricher  *Enricher
	writer    *Writer
	reader    *Reader
	appender  Appender
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithAppender mirrors upserted rows to a, e.g. a spreadsheet. Append
// failures are logged and never fail the run.
func WithAppender(a Appender) PipelineOption {
	return func(p *Pipeline) { p.appender = a }
}

// NewPipeline wires the pipeline stages.
func NewPipeline(paginator *Paginator, enricher *Enricher, writer *Writer, reader *Reader, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{paginator: paginator, enricher: enricher, writer: writer, reader: reader}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run ingests the results of req and returns the requested page of the
// catalog as stored after the upsert.
func (p *Pipeline) Run(ctx context.Context, req SearchRequest) (res *model.PageResult, err error) {
	start := time.Now()
	defer func() {
		pipelineDuration.WithLabelValues(outcome(err)).Observe(time.Since(start).Seconds())
	}()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	log := zap.L().With(zap.String("component", "places.pipeline"), zap.String("query", req.Query()))

	candidates, err := p.paginator.FetchAll(ctx, req.Query())
	if err != nil {
		return nil, err
	}

	unique := dedupe.ByKey(candidates, func(c model.Candidate) string { return c.PlaceID })
	enriched := p.enricher.Enrich(ctx, unique)

	n, err := p.writer.UpsertBatch(ctx, enriched)
	if err != nil {
		return nil, err
	}
	log.Info("search ingested",
		zap.Int("fetched", len(candidates)),
		zap.Int("unique", len(unique)),
		zap.Int("upserted", n),
	)

	if p.appender != nil && len(enriched) > 0 {
		if err := p.appender.Append(ctx, enriched); err != nil {
			log.Warn("append to sheet failed", zap.Error(err))
		}
	}

	return p.reader.ReadPage(ctx, req.Page, req.Limit)
}

func outcome(err error) string {
	var (
		verr *ValidationError
		uerr *UpstreamError
		serr *StoreError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &verr):
		return "invalid"
	case errors.As(err, &uerr):
		return "upstream_error"
	case errors.As(err, &serr):
		return "store_error"
	default:
		return "error"
	}
}
