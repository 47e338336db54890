package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sells-group/places-catalog/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db   *sql.DB
	opts Options
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
// Foreign keys are enabled through the DSN so every pooled connection has them.
func NewSQLite(dsn string, opts Options) (*SQLiteStore, error) {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite", dsn+sep+"_pragma=foreign_keys(1)")
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, opts: opts}, nil
}

// Businesses are returned in rowid order, which follows first insertion and
// survives ON CONFLICT updates.
const sqliteMigration = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS businesses (
	id           TEXT PRIMARY KEY,
	place_id     TEXT NOT NULL UNIQUE,
	name         TEXT NOT NULL,
	address      TEXT NOT NULL DEFAULT '',
	phone        TEXT NOT NULL DEFAULT '',
	website      TEXT NOT NULL DEFAULT '',
	rating       REAL,
	rating_count INTEGER,
	price_level  INTEGER,
	open_now     INTEGER,
	icon         TEXT NOT NULL DEFAULT '',
	types        TEXT NOT NULL DEFAULT '[]',
	lat          REAL,
	lng          REAL,
	raw          TEXT,
	owner_id     TEXT REFERENCES users(id),
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_businesses_owner ON businesses(owner_id);
CREATE INDEX IF NOT EXISTS idx_businesses_lat_lng ON businesses(lat, lng);
`

// Migrate creates the catalog schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteUpsert = `INSERT INTO businesses (` + businessColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(place_id) DO UPDATE SET
	name = excluded.name,
	address = excluded.address,
	phone = excluded.phone,
	website = excluded.website,
	rating = excluded.rating,
	rating_count = excluded.rating_count,
	price_level = excluded.price_level,
	open_now = excluded.open_now,
	icon = excluded.icon,
	types = excluded.types,
	lat = excluded.lat,
	lng = excluded.lng,
	raw = excluded.raw,
	updated_at = excluded.updated_at`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func sqliteBusinessArgs(b model.Business) ([]any, error) {
	types, err := json.Marshal(b.Types)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal types")
	}
	var raw any
	if len(b.Raw) > 0 {
		raw = string(b.Raw)
	}
	lat, lng := latLng(b.Location)
	return []any{
		b.ID, b.PlaceID, b.Name, b.Address, b.Phone, b.Website,
		b.Rating, b.RatingCount, b.PriceLevel, b.OpenNow, b.Icon, string(types),
		lat, lng, raw, b.OwnerID, b.CreatedAt, b.UpdatedAt,
	}, nil
}

func execBusiness(ctx context.Context, ex execer, query string, b model.Business) error {
	args, err := sqliteBusinessArgs(b)
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx, query, args...)
	return err
}

// UpsertBusinesses inserts or updates items keyed by place_id. With atomic
// batches the whole set lands in one transaction; otherwise each row is an
// independent statement and failures come back as a *BatchError.
func (s *SQLiteStore) UpsertBusinesses(ctx context.Context, items []model.Business) (int, error) {
	rows := prepareBatch(items, time.Now().UTC())
	if len(rows) == 0 {
		return 0, nil
	}

	if s.opts.AtomicBatches {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: begin tx")
		}
		defer tx.Rollback() //nolint:errcheck
		for _, b := range rows {
			if err := execBusiness(ctx, tx, sqliteUpsert, b); err != nil {
				return 0, eris.Wrapf(err, "sqlite: upsert business %s", b.PlaceID)
			}
		}
		if err := tx.Commit(); err != nil {
			return 0, eris.Wrap(err, "sqlite: commit tx")
		}
		return len(rows), nil
	}

	var (
		written int
		failed  []string
		first   error
	)
	for _, b := range rows {
		if err := execBusiness(ctx, s.db, sqliteUpsert, b); err != nil {
			failed = append(failed, b.PlaceID)
			if first == nil {
				first = err
			}
			continue
		}
		written++
	}
	if len(failed) > 0 {
		return written, &BatchError{Failed: failed, Err: eris.Wrap(first, "sqlite: upsert business")}
	}
	return written, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteBusiness(row scannable) (*model.Business, error) {
	var (
		b        model.Business
		lat, lng *float64
		types    string
		raw      sql.NullString
	)
	err := row.Scan(
		&b.ID, &b.PlaceID, &b.Name, &b.Address, &b.Phone, &b.Website,
		&b.Rating, &b.RatingCount, &b.PriceLevel, &b.OpenNow, &b.Icon, &types,
		&lat, &lng, &raw, &b.OwnerID, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan business")
	}
	if err := json.Unmarshal([]byte(types), &b.Types); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal types")
	}
	if len(b.Types) == 0 {
		b.Types = nil
	}
	if raw.Valid && raw.String != "" {
		b.Raw = json.RawMessage(raw.String)
	}
	b.Location = locationOf(lat, lng)
	return &b, nil
}

func (s *SQLiteStore) queryBusinesses(ctx context.Context, query string, args ...any) ([]model.Business, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query businesses")
	}
	defer rows.Close() //nolint:errcheck

	out := []model.Business{}
	for rows.Next() {
		b, err := scanSQLiteBusiness(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate businesses")
}

// ListBusinesses returns a window of the catalog in insertion order.
func (s *SQLiteStore) ListBusinesses(ctx context.Context, offset, limit int) ([]model.Business, error) {
	return s.queryBusinesses(ctx,
		`SELECT `+businessColumns+` FROM businesses ORDER BY rowid LIMIT ? OFFSET ?`, limit, offset)
}

// CountBusinesses returns the size of the whole catalog.
func (s *SQLiteStore) CountBusinesses(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM businesses`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "sqlite: count businesses")
	}
	return n, nil
}

// AllBusinesses returns the whole catalog in insertion order.
func (s *SQLiteStore) AllBusinesses(ctx context.Context) ([]model.Business, error) {
	return s.queryBusinesses(ctx, `SELECT `+businessColumns+` FROM businesses ORDER BY rowid`)
}

// CreateBusiness inserts a single business, filling in its id and timestamps.
func (s *SQLiteStore) CreateBusiness(ctx context.Context, b *model.Business) error {
	stamped := prepareBatch([]model.Business{*b}, time.Now().UTC())
	if len(stamped) == 0 {
		return eris.New("sqlite: create business: place_id is required")
	}
	err := execBusiness(ctx, s.db,
		`INSERT INTO businesses (`+businessColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		stamped[0])
	if err != nil {
		if isSQLiteUnique(err) {
			return eris.Wrapf(ErrDuplicate, "sqlite: business %s", b.PlaceID)
		}
		return eris.Wrap(err, "sqlite: create business")
	}
	*b = stamped[0]
	return nil
}

// NearbyBusinesses narrows candidates with a lat/lng box on the index, then
// filters and orders them by haversine distance.
func (s *SQLiteStore) NearbyBusinesses(ctx context.Context, center model.Location, radiusMeters float64, limit int) ([]model.Business, error) {
	sw, ne := searchBound(center, radiusMeters)
	candidates, err := s.queryBusinesses(ctx,
		`SELECT `+businessColumns+` FROM businesses
		WHERE lat BETWEEN ? AND ? AND lng BETWEEN ? AND ?
		ORDER BY rowid`,
		sw.Lat, ne.Lat, sw.Lng, ne.Lng)
	if err != nil {
		return nil, err
	}
	return nearest(candidates, center, radiusMeters, limit), nil
}

// CreateUser inserts u, filling in its id and timestamps.
func (s *SQLiteStore) CreateUser(ctx context.Context, u *model.User) error {
	now := time.Now().UTC()
	id := u.ID
	if id == "" {
		id = newID()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, u.Username, u.Email, u.PasswordHash, now, now,
	)
	if err != nil {
		if isSQLiteUnique(err) {
			return eris.Wrapf(ErrDuplicate, "sqlite: user %s", u.Email)
		}
		return eris.Wrap(err, "sqlite: create user")
	}
	u.ID, u.CreatedAt, u.UpdatedAt = id, now, now
	return nil
}

// GetUserByEmail returns ErrNotFound when no user has the address.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, created_at, updated_at FROM users WHERE email = ?`, email,
	).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: user %s", email)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get user")
	}
	return &u, nil
}

func isSQLiteUnique(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
