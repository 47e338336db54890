package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/places-catalog/internal/cache"
	"github.com/sells-group/places-catalog/internal/mail"
	"github.com/sells-group/places-catalog/internal/places"
	"github.com/sells-group/places-catalog/internal/sheets"
	"github.com/sells-group/places-catalog/internal/store"
	"github.com/sells-group/places-catalog/pkg/google"
)

// appEnv holds every client the commands share. Optional collaborators are
// nil when not configured.
type appEnv struct {
	Store    store.Store
	Pipeline *places.Pipeline
	Cache    *cache.DetailCache // may be nil
	Sheets   *sheets.Appender   // may be nil
	Mailer   *mail.Sender       // may be nil
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Cache != nil {
		_ = e.Cache.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	opts := store.Options{AtomicBatches: cfg.Store.AtomicBatches}
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "places.db"
		}
		return store.NewSQLite(dsn, opts)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		}, opts)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initStoreOnly opens and migrates the store for commands that never call
// the Places API.
func initStoreOnly(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return &appEnv{Store: st}, nil
}

// initEnv validates config for mode, opens the store, builds the Places
// client and pipeline, and enables the optional collaborators that are
// configured. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	env, err := initStoreOnly(ctx, mode)
	if err != nil {
		return nil, err
	}

	// One limiter for the process caps upstream QPS across concurrent runs.
	limiter := rate.NewLimiter(rate.Limit(cfg.Places.RateLimit), max(1, int(cfg.Places.RateLimit)))
	gopts := []google.Option{google.WithLimiter(limiter)}
	if cfg.Google.BaseURL != "" {
		gopts = append(gopts, google.WithBaseURL(cfg.Google.BaseURL))
	}
	client := google.NewClient(cfg.Google.Key, gopts...)

	var enrichOpts []places.EnricherOption
	if cfg.Cache.Enabled() {
		dc, err := cache.Open(ctx, cfg.Cache.RedisURL, cfg.Cache.DetailTTL)
		if err != nil {
			zap.L().Warn("detail cache unavailable, continuing without it", zap.Error(err))
		} else {
			env.Cache = dc
			enrichOpts = append(enrichOpts, places.WithDetailCache(dc))
			zap.L().Info("detail cache enabled")
		}
	} else {
		zap.L().Debug("PLACES_CACHE_REDIS_URL not set, detail cache disabled")
	}

	var pipeOpts []places.PipelineOption
	if cfg.Sheets.Enabled() {
		app, err := initSheets(ctx)
		if err != nil {
			zap.L().Warn("sheets init failed, skipping spreadsheet append", zap.Error(err))
		} else {
			env.Sheets = app
			pipeOpts = append(pipeOpts, places.WithAppender(app))
			zap.L().Info("sheets append enabled")
		}
	} else {
		zap.L().Debug("sheets not configured, spreadsheet append disabled")
	}

	if cfg.Mail.Enabled() {
		m, err := mail.NewSender(mail.Config{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
		})
		if err != nil {
			zap.L().Warn("mail init failed, /email disabled", zap.Error(err))
		} else {
			env.Mailer = m
		}
	} else {
		zap.L().Debug("mail not configured, /email disabled")
	}

	env.Pipeline = places.NewPipeline(
		places.NewPaginator(client, places.PaginatorConfig{
			MaxPages:     cfg.Places.MaxPages,
			PageDelay:    cfg.Places.PageDelay,
			CallTimeout:  cfg.Places.CallTimeout,
			TokenRetries: cfg.Places.TokenRetries,
		}),
		places.NewEnricher(client, places.EnricherConfig{
			Concurrency: cfg.Places.DetailConcurrency,
			CallTimeout: cfg.Places.CallTimeout,
			Fields:      cfg.Places.DetailFields,
		}, enrichOpts...),
		places.NewWriter(env.Store),
		places.NewReader(env.Store),
		pipeOpts...,
	)

	return env, nil
}

func initSheets(ctx context.Context) (*sheets.Appender, error) {
	opts, err := sheets.Credentials{
		ClientEmail:     cfg.Sheets.ClientEmail,
		PrivateKey:      cfg.Sheets.PrivateKey,
		CredentialsFile: cfg.Sheets.CredentialsFile,
	}.ClientOptions()
	if err != nil {
		return nil, err
	}
	return sheets.NewAppender(ctx, cfg.Sheets.SpreadsheetID, cfg.Sheets.Range, opts...)
}
