// Package config loads the server configuration.
//
// Values are resolved in four layers, each overriding the previous one:
//
//  1. built-in defaults (Default)
//  2. an optional YAML file, named by --config or YOUTHHUB_CONFIG
//  3. environment variables (PORT, STORE, DB_PATH, JWT_SECRET, ...)
//  4. command-line flags
//
// Load validates the result and fails fast; the server never starts on a
// half-valid configuration.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	StoreSQLite = "sqlite"
	StoreMongo  = "mongo"
)

// minSecretLen matches the floor enforced by auth.NewTokenService.
const minSecretLen = 16

// Config is the complete server configuration.
type Config struct {
	// Port is the HTTP listen port.
	Port int `yaml:"port"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// Store selects the persistence backend: "sqlite" or "mongo".
	Store string `yaml:"store"`

	// DBPath is the SQLite database file. ":memory:" is accepted.
	DBPath string `yaml:"db_path"`

	Mongo MongoConfig `yaml:"mongo"`
	Auth  AuthConfig  `yaml:"auth"`
}

// MongoConfig is used when Store is "mongo".
type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// AuthConfig configures session tokens and the optional Google login.
type AuthConfig struct {
	// JWTSecret signs session tokens. At least 16 characters.
	JWTSecret string `yaml:"jwt_secret"`

	// TokenTTL is the session lifetime, e.g. "168h".
	TokenTTL time.Duration `yaml:"token_ttl"`

	Google GoogleConfig `yaml:"google"`
}

// GoogleConfig enables Google login when all three fields are set.
type GoogleConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	CallbackURL  string `yaml:"callback_url"`
}

// Enabled reports whether Google login is configured.
func (g GoogleConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != "" && g.CallbackURL != ""
}

// Default returns the built-in configuration. It has no JWT secret, so it
// does not validate on its own.
func Default() Config {
	return Config{
		Port:     8080,
		LogLevel: "info",
		Store:    StoreSQLite,
		DBPath:   "data/youthhub.db",
		Mongo: MongoConfig{
			Database: "youthhub",
		},
		Auth: AuthConfig{
			TokenTTL: 7 * 24 * time.Hour,
		},
	}
}

// Load resolves the configuration from args (without the program name) and
// the environment read through getenv. Passing os.Getenv is the normal
// case; tests pass a map lookup.
func Load(args []string, getenv func(string) string) (*Config, error) {
	cfg := Default()

	fs := pflag.NewFlagSet("youthhub", pflag.ContinueOnError)
	var (
		configPath = fs.String("config", "", "path to a YAML config file")
		port       = fs.Int("port", cfg.Port, "HTTP listen port")
		logLevel   = fs.String("log-level", cfg.LogLevel, "log level: debug, info, warn, error")
		store      = fs.String("store", cfg.Store, "storage backend: sqlite or mongo")
		dbPath     = fs.String("db-path", cfg.DBPath, "SQLite database file")
		mongoURI   = fs.String("mongo-uri", "", "MongoDB connection string")
		mongoDB    = fs.String("mongo-database", cfg.Mongo.Database, "MongoDB database name")
		tokenTTL   = fs.Duration("token-ttl", cfg.Auth.TokenTTL, "session token lifetime")
	)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	path := *configPath
	if path == "" {
		path = getenv("YOUTHHUB_CONFIG")
	}
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(&cfg, getenv); err != nil {
		return nil, err
	}

	// Only flags given on the command line override; fs.Visit skips the rest.
	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = *port
		case "log-level":
			cfg.LogLevel = *logLevel
		case "store":
			cfg.Store = *store
		case "db-path":
			cfg.DBPath = *dbPath
		case "mongo-uri":
			cfg.Mongo.URI = *mongoURI
		case "mongo-database":
			cfg.Mongo.Database = *mongoDB
		case "token-ttl":
			cfg.Auth.TokenTTL = *tokenTTL
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config: opening %s: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: PORT=%q is not a number", v)
		}
		cfg.Port = port
	}
	if v := getenv("TOKEN_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: TOKEN_TTL=%q: %w", v, err)
		}
		cfg.Auth.TokenTTL = ttl
	}

	strs := []struct {
		env string
		dst *string
	}{
		{"LOG_LEVEL", &cfg.LogLevel},
		{"STORE", &cfg.Store},
		{"DB_PATH", &cfg.DBPath},
		{"MONGO_URI", &cfg.Mongo.URI},
		{"MONGO_DATABASE", &cfg.Mongo.Database},
		{"JWT_SECRET", &cfg.Auth.JWTSecret},
		{"GOOGLE_CLIENT_ID", &cfg.Auth.Google.ClientID},
		{"GOOGLE_CLIENT_SECRET", &cfg.Auth.Google.ClientSecret},
		{"GOOGLE_CALLBACK_URL", &cfg.Auth.Google.CallbackURL},
	}
	for _, s := range strs {
		if v := getenv(s.env); v != "" {
			*s.dst = v
		}
	}
	return nil
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch c.Store {
	case StoreSQLite:
		if c.DBPath == "" {
			errs = append(errs, errors.New("db_path is required for the sqlite store"))
		}
	case StoreMongo:
		if c.Mongo.URI == "" {
			errs = append(errs, errors.New("mongo.uri is required for the mongo store"))
		}
		if c.Mongo.Database == "" {
			errs = append(errs, errors.New("mongo.database is required for the mongo store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store %q (want sqlite or mongo)", c.Store))
	}
	if len(c.Auth.JWTSecret) < minSecretLen {
		errs = append(errs, fmt.Errorf("jwt secret must be at least %d characters", minSecretLen))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("token ttl must be positive"))
	}
	g := c.Auth.Google
	if (g.ClientID != "" || g.ClientSecret != "" || g.CallbackURL != "") && !g.Enabled() {
		errs = append(errs, errors.New("google login needs client id, client secret and callback url together"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}
