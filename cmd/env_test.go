package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/places-catalog/internal/config"
	"github.com/sells-group/places-catalog/internal/store"
)

// useTestConfig installs a config backed by a temp SQLite file and restores
// the previous one when the test ends.
func useTestConfig(t *testing.T) *config.Config {
	t.Helper()
	prev := cfg
	t.Cleanup(func() { cfg = prev })

	cfg = &config.Config{
		Google: config.GoogleConfig{Key: "test-key"},
		Places: config.PlacesConfig{
			MaxPages:          3,
			DetailConcurrency: 2,
			CallTimeout:       5 * time.Second,
			RateLimit:         100,
			TokenRetries:      1,
		},
		Store: config.StoreConfig{
			Driver:        "sqlite",
			DatabaseURL:   filepath.Join(t.TempDir(), "places.db"),
			AtomicBatches: true,
		},
		Auth:   config.AuthConfig{JWTSecret: "test-secret", TokenTTL: time.Hour},
		Mail:   config.MailConfig{Host: "smtp.example.com", Port: 587},
		Sheets: config.SheetsConfig{Range: "Sheet1!A2"},
		Server: config.ServerConfig{Port: 5000},
		Log:    config.LogConfig{Level: "info", Format: "json"},
	}
	return cfg
}

func TestInitStore_UnsupportedDriver(t *testing.T) {
	useTestConfig(t).Store.Driver = "mongo"

	_, err := initStore(context.Background())
	assert.ErrorContains(t, err, "unsupported store driver: mongo")
}

func TestInitStore_SQLite(t *testing.T) {
	useTestConfig(t)

	st, err := initStore(context.Background())
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	_, ok := st.(*store.SQLiteStore)
	assert.True(t, ok)
}

func TestInitStoreOnly_MigratesSchema(t *testing.T) {
	useTestConfig(t)
	ctx := context.Background()

	env, err := initStoreOnly(ctx, "migrate")
	require.NoError(t, err)
	defer env.Close()

	n, err := env.Store.CountBusinesses(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Nil(t, env.Pipeline)
}

func TestInitEnv_InvalidConfig(t *testing.T) {
	useTestConfig(t).Google.Key = ""

	_, err := initEnv(context.Background(), "search")
	assert.ErrorContains(t, err, "google.key is required")
}

func TestInitEnv_OptionalCollaboratorsDisabled(t *testing.T) {
	useTestConfig(t)

	env, err := initEnv(context.Background(), "serve")
	require.NoError(t, err)
	defer env.Close()

	assert.NotNil(t, env.Pipeline)
	assert.Nil(t, env.Cache)
	assert.Nil(t, env.Sheets)
	assert.Nil(t, env.Mailer)
}

func TestInitEnv_OptionalCollaboratorFailuresAreNotFatal(t *testing.T) {
	c := useTestConfig(t)
	c.Cache = config.CacheConfig{RedisURL: "redis://127.0.0.1:1/0", DetailTTL: time.Hour}
	c.Sheets.SpreadsheetID = "sheet-1"
	c.Sheets.CredentialsFile = filepath.Join(t.TempDir(), "missing.json")
	c.Mail.Username = "bot@example.com"
	c.Mail.Password = "secret"

	env, err := initEnv(context.Background(), "serve")
	require.NoError(t, err)
	defer env.Close()

	assert.NotNil(t, env.Pipeline)
	assert.Nil(t, env.Cache)
	assert.Nil(t, env.Sheets)
	assert.NotNil(t, env.Mailer)
}
