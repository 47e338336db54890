package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Google GoogleConfig `yaml:"google" mapstructure:"google"`
	Places PlacesConfig `yaml:"places" mapstructure:"places"`
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Cache  CacheConfig  `yaml:"cache" mapstructure:"cache"`
	Auth   AuthConfig   `yaml:"auth" mapstructure:"auth"`
	Mail   MailConfig   `yaml:"mail" mapstructure:"mail"`
	Sheets SheetsConfig `yaml:"sheets" mapstructure:"sheets"`
	Export ExportConfig `yaml:"export" mapstructure:"export"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// GoogleConfig holds Places API credentials.
type GoogleConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// PlacesConfig tunes the ingestion pipeline.
type PlacesConfig struct {
	MaxPages          int           `yaml:"max_pages" mapstructure:"max_pages"`
	PageDelay         time.Duration `yaml:"page_delay" mapstructure:"page_delay"`
	DetailConcurrency int           `yaml:"detail_concurrency" mapstructure:"detail_concurrency"`
	CallTimeout       time.Duration `yaml:"call_timeout" mapstructure:"call_timeout"`
	RateLimit         float64       `yaml:"rate_limit" mapstructure:"rate_limit"` // requests per second, shared by all runs
	TokenRetries      int           `yaml:"token_retries" mapstructure:"token_retries"`
	DetailFields      []string      `yaml:"detail_fields" mapstructure:"detail_fields"`
}

// StoreConfig selects and tunes the catalog database.
type StoreConfig struct {
	Driver        string `yaml:"driver" mapstructure:"driver"` // postgres or sqlite
	DatabaseURL   string `yaml:"database_url" mapstructure:"database_url"`
	AtomicBatches bool   `yaml:"atomic_batches" mapstructure:"atomic_batches"`
	MaxConns      int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns      int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// CacheConfig configures the optional Redis detail cache.
type CacheConfig struct {
	RedisURL  string        `yaml:"redis_url" mapstructure:"redis_url"`
	DetailTTL time.Duration `yaml:"detail_ttl" mapstructure:"detail_ttl"`
}

// Enabled reports whether a Redis URL is configured.
func (c CacheConfig) Enabled() bool { return c.RedisURL != "" }

// AuthConfig configures user tokens.
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret" mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl" mapstructure:"token_ttl"`
}

// MailConfig configures outbound SMTP.
type MailConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	From     string `yaml:"from" mapstructure:"from"`
}

// Enabled reports whether SMTP credentials are configured.
func (c MailConfig) Enabled() bool { return c.Username != "" && c.Password != "" }

// SheetsConfig configures the spreadsheet side-channel.
type SheetsConfig struct {
	SpreadsheetID   string `yaml:"spreadsheet_id" mapstructure:"spreadsheet_id"`
	Range           string `yaml:"range" mapstructure:"range"`
	ClientEmail     string `yaml:"client_email" mapstructure:"client_email"`
	PrivateKey      string `yaml:"private_key" mapstructure:"private_key"`
	CredentialsFile string `yaml:"credentials_file" mapstructure:"credentials_file"`
}

// Enabled reports whether a spreadsheet and service account are configured.
func (c SheetsConfig) Enabled() bool {
	if c.SpreadsheetID == "" {
		return false
	}
	return c.CredentialsFile != "" || (c.ClientEmail != "" && c.PrivateKey != "")
}

// ExportConfig configures uploads of gs:// exports.
type ExportConfig struct {
	CredentialsFile string `yaml:"credentials_file" mapstructure:"credentials_file"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// legacyEnv maps keys to the unprefixed variable names older deployments use.
// The PLACES_ form always wins.
var legacyEnv = map[string]string{
	"google.key":            "GOOGLE_API_KEY",
	"store.database_url":    "DATABASE_URL",
	"auth.jwt_secret":       "JWT_SECRET",
	"server.port":           "PORT",
	"mail.username":         "GMAIL_USER",
	"mail.password":         "GMAIL_PASS",
	"sheets.spreadsheet_id": "SPREADSHEET_ID",
	"sheets.client_email":   "CLIENT_EMAIL",
	"sheets.private_key":    "PRIVATE_KEY",
}

// keys without a default still need binding so Unmarshal sees their env values.
var envOnlyKeys = []string{
	"google.base_url",
	"places.detail_fields",
	"store.max_conns",
	"store.min_conns",
	"cache.redis_url",
	"mail.from",
	"sheets.credentials_file",
	"export.credentials_file",
}

const envPrefix = "PLACES"

// Load reads configuration from .env, config.yaml and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("places.max_pages", 3)
	v.SetDefault("places.page_delay", 2*time.Second)
	v.SetDefault("places.detail_concurrency", 5)
	v.SetDefault("places.call_timeout", 10*time.Second)
	v.SetDefault("places.rate_limit", 10.0)
	v.SetDefault("places.token_retries", 3)
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.atomic_batches", true)
	v.SetDefault("cache.detail_ttl", 24*time.Hour)
	v.SetDefault("auth.token_ttl", time.Hour)
	v.SetDefault("mail.host", "smtp.gmail.com")
	v.SetDefault("mail.port", 587)
	v.SetDefault("sheets.range", "Sheet1!A2")
	v.SetDefault("server.port", 5000)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	for key, legacy := range legacyEnv {
		if err := v.BindEnv(key, envName(key), legacy); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", key)
		}
	}
	for _, key := range envOnlyKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", key)
		}
	}

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func envName(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Validate checks that the settings a command needs are present and in range.
// Optional collaborators (mail, sheets, cache) are never required.
func (c *Config) Validate(mode string) error {
	var problems []string
	require := func(ok bool, key string) {
		if !ok {
			problems = append(problems, key+" is required")
		}
	}
	needDB := func() {
		require(c.Store.Driver != "postgres" || c.Store.DatabaseURL != "", "store.database_url")
	}

	switch mode {
	case "serve":
		require(c.Google.Key != "", "google.key")
		require(c.Auth.JWTSecret != "", "auth.jwt_secret")
		needDB()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "search":
		require(c.Google.Key != "", "google.key")
		needDB()
	case "export", "migrate":
		needDB()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Store.Driver != "postgres" && c.Store.Driver != "sqlite" {
		problems = append(problems, "store.driver must be postgres or sqlite")
	}
	if mode == "serve" || mode == "search" {
		if c.Places.DetailConcurrency < 1 || c.Places.DetailConcurrency > 50 {
			problems = append(problems, "places.detail_concurrency must be between 1 and 50")
		}
		if c.Places.MaxPages < 1 {
			problems = append(problems, "places.max_pages must be >= 1")
		}
		if c.Places.RateLimit <= 0 {
			problems = append(problems, "places.rate_limit must be > 0")
		}
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid %s config: %s", mode, strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
