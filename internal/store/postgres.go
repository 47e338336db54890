package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/places-catalog/internal/db"
	"github.com/sells-group/places-catalog/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	opts    Options
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `mapstructure:"max_conns"`
	MinConns int32 `mapstructure:"min_conns"`
}

const businessColumns = `id, place_id, name, address, phone, website, rating, rating_count, price_level, open_now, icon, types, lat, lng, raw, owner_id, created_at, updated_at`

var businessUpsert = db.UpsertConfig{
	Table: "businesses",
	Columns: []string{
		"id", "place_id", "name", "address", "phone", "website",
		"rating", "rating_count", "price_level", "open_now", "icon", "types",
		"lat", "lng", "raw", "owner_id", "created_at", "updated_at",
	},
	ConflictKeys: []string{"place_id"},
	// id, owner_id and created_at belong to the first insert.
	UpdateCols: []string{
		"name", "address", "phone", "website",
		"rating", "rating_count", "price_level", "open_now", "icon", "types",
		"lat", "lng", "raw", "updated_at",
	},
}

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"list_businesses":   `SELECT ` + businessColumns + ` FROM businesses ORDER BY seq LIMIT $1 OFFSET $2`,
	"count_businesses":  `SELECT count(*) FROM businesses`,
	"get_user_by_email": `SELECT id, username, email, password_hash, created_at, updated_at FROM users WHERE email = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig, opts Options) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Statements are prepared lazily per connection; a fresh database has no
	// tables until Migrate runs, so a failed prepare is not fatal.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				zap.L().Debug("postgres: prepare skipped", zap.String("statement", name), zap.Error(err))
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, opts: opts, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE EXTENSION IF NOT EXISTS postgis;

CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	username      TEXT NOT NULL UNIQUE,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS businesses (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	seq          BIGINT GENERATED BY DEFAULT AS IDENTITY,
	place_id     TEXT NOT NULL UNIQUE,
	name         TEXT NOT NULL,
	address      TEXT NOT NULL DEFAULT '',
	phone        TEXT NOT NULL DEFAULT '',
	website      TEXT NOT NULL DEFAULT '',
	rating       DOUBLE PRECISION,
	rating_count INTEGER,
	price_level  INTEGER,
	open_now     BOOLEAN,
	icon         TEXT NOT NULL DEFAULT '',
	types        TEXT[] NOT NULL DEFAULT '{}',
	lat          DOUBLE PRECISION,
	lng          DOUBLE PRECISION,
	location     GEOGRAPHY(Point, 4326) GENERATED ALWAYS AS (
		CASE WHEN lat IS NULL OR lng IS NULL THEN NULL
		ELSE ST_SetSRID(ST_MakePoint(lng, lat), 4326)::geography END
	) STORED,
	raw          JSONB,
	owner_id     TEXT REFERENCES users(id),
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_businesses_seq ON businesses(seq);
CREATE INDEX IF NOT EXISTS idx_businesses_owner ON businesses(owner_id);
CREATE INDEX IF NOT EXISTS idx_businesses_location ON businesses USING GIST (location);
`

// Migrate creates the catalog schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func businessRow(b model.Business) []any {
	lat, lng := latLng(b.Location)
	return []any{
		b.ID, b.PlaceID, b.Name, b.Address, b.Phone, b.Website,
		b.Rating, b.RatingCount, b.PriceLevel, b.OpenNow, b.Icon, b.Types,
		lat, lng, nullableRaw(b.Raw), b.OwnerID, b.CreatedAt, b.UpdatedAt,
	}
}

// UpsertBusinesses inserts or updates items keyed by place_id. With atomic
// batches the whole set lands in one transaction; otherwise each row is an
// independent statement and failures come back as a *BatchError.
func (s *PostgresStore) UpsertBusinesses(ctx context.Context, items []model.Business) (int, error) {
	rows := prepareBatch(items, time.Now().UTC())
	if len(rows) == 0 {
		return 0, nil
	}

	if s.opts.AtomicBatches {
		values := make([][]any, len(rows))
		for i, b := range rows {
			values[i] = businessRow(b)
		}
		n, err := db.BulkUpsert(ctx, s.pool, businessUpsert, values)
		if err != nil {
			return 0, eris.Wrap(err, "postgres: upsert businesses")
		}
		return int(n), nil
	}

	query := db.UpsertValuesSQL(businessUpsert)
	var (
		written int
		failed  []string
		first   error
	)
	for _, b := range rows {
		if _, err := s.pool.Exec(ctx, query, businessRow(b)...); err != nil {
			failed = append(failed, b.PlaceID)
			if first == nil {
				first = err
			}
			continue
		}
		written++
	}
	if len(failed) > 0 {
		return written, &BatchError{Failed: failed, Err: eris.Wrap(first, "postgres: upsert business")}
	}
	return written, nil
}

func scanBusiness(row pgx.Row) (*model.Business, error) {
	var (
		b        model.Business
		lat, lng *float64
		raw      []byte
	)
	err := row.Scan(
		&b.ID, &b.PlaceID, &b.Name, &b.Address, &b.Phone, &b.Website,
		&b.Rating, &b.RatingCount, &b.PriceLevel, &b.OpenNow, &b.Icon, &b.Types,
		&lat, &lng, &raw, &b.OwnerID, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Location = locationOf(lat, lng)
	if len(raw) > 0 {
		b.Raw = raw
	}
	return &b, nil
}

func (s *PostgresStore) queryBusinesses(ctx context.Context, op, sql string, args ...any) ([]model.Business, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: %s", op)
	}
	defer rows.Close()

	out := []model.Business{}
	for rows.Next() {
		b, err := scanBusiness(rows)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: scan %s", op)
		}
		out = append(out, *b)
	}
	return out, eris.Wrapf(rows.Err(), "postgres: iterate %s", op)
}

// ListBusinesses returns a window of the catalog in insertion order.
func (s *PostgresStore) ListBusinesses(ctx context.Context, offset, limit int) ([]model.Business, error) {
	return s.queryBusinesses(ctx, "list businesses",
		`SELECT `+businessColumns+` FROM businesses ORDER BY seq LIMIT $1 OFFSET $2`, limit, offset)
}

// CountBusinesses returns the size of the whole catalog.
func (s *PostgresStore) CountBusinesses(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM businesses`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "postgres: count businesses")
	}
	return n, nil
}

// AllBusinesses returns the whole catalog in insertion order.
func (s *PostgresStore) AllBusinesses(ctx context.Context) ([]model.Business, error) {
	return s.queryBusinesses(ctx, "all businesses",
		`SELECT `+businessColumns+` FROM businesses ORDER BY seq`)
}

// CreateBusiness inserts a single business, filling in its id and timestamps.
func (s *PostgresStore) CreateBusiness(ctx context.Context, b *model.Business) error {
	stamped := prepareBatch([]model.Business{*b}, time.Now().UTC())
	if len(stamped) == 0 {
		return eris.New("postgres: create business: place_id is required")
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO businesses (`+businessColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		businessRow(stamped[0])...,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return eris.Wrapf(ErrDuplicate, "postgres: business %s", b.PlaceID)
		}
		return eris.Wrap(err, "postgres: create business")
	}
	*b = stamped[0]
	return nil
}

// NearbyBusinesses returns businesses within radiusMeters of center, closest first.
func (s *PostgresStore) NearbyBusinesses(ctx context.Context, center model.Location, radiusMeters float64, limit int) ([]model.Business, error) {
	pt, err := pointEWKB(center)
	if err != nil {
		return nil, err
	}
	return s.queryBusinesses(ctx, "nearby businesses",
		`SELECT `+businessColumns+` FROM businesses
		WHERE location IS NOT NULL AND ST_DWithin(location, ST_GeomFromEWKB($1)::geography, $2)
		ORDER BY ST_Distance(location, ST_GeomFromEWKB($1)::geography), seq
		LIMIT $3`, pt, radiusMeters, limit)
}

// CreateUser inserts u, filling in its id and timestamps.
func (s *PostgresStore) CreateUser(ctx context.Context, u *model.User) error {
	now := time.Now().UTC()
	id := u.ID
	if id == "" {
		id = newID()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, username, email, password_hash, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, u.Username, u.Email, u.PasswordHash, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return eris.Wrapf(ErrDuplicate, "postgres: user %s", u.Email)
		}
		return eris.Wrap(err, "postgres: create user")
	}
	u.ID, u.CreatedAt, u.UpdatedAt = id, now, now
	return nil
}

// GetUserByEmail returns ErrNotFound when no user has the address.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, email, password_hash, created_at, updated_at FROM users WHERE email = $1`, email,
	).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: user %s", email)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get user")
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
