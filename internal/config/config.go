package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application level configuration loaded from environment and flags.
type Config struct {
	RunAddress           string
	DatabaseURI          string
	ShutdownTimeout      time.Duration
	ImportQueueSize      int
	TrustSourceArea      bool
	AliasFile            string
	DefaultSourceCRS     string
	FeatureSourceTimeout time.Duration
	MaxUploadBytes       int64
}

const (
	defaultRunAddress           = ":8080"
	defaultShutdownTimeout      = 10 * time.Second
	defaultImportQueueSize      = 8
	defaultFeatureSourceTimeout = 30 * time.Second
	defaultMaxUploadBytes       = 64 << 20
)

// Load reads an optional .env file, then environment variables and flags.
// Flags win over the environment.
func Load() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	return load(os.Args[1:], os.LookupEnv)
}

// LoadEnv is Load without command line parsing, for tools that own their
// flags.
func LoadEnv() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	return load(nil, os.LookupEnv)
}

func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

type envLookup func(string) (string, bool)

func load(args []string, lookup envLookup) (*Config, error) {
	cfg := &Config{
		RunAddress:           getString(lookup, "RUN_ADDRESS", defaultRunAddress),
		DatabaseURI:          getString(lookup, "DATABASE_URI", ""),
		ShutdownTimeout:      getDuration(lookup, "SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		ImportQueueSize:      getInt(lookup, "IMPORT_QUEUE_SIZE", defaultImportQueueSize),
		TrustSourceArea:      getBool(lookup, "TRUST_SOURCE_AREA", false),
		AliasFile:            getString(lookup, "ALIAS_FILE", ""),
		DefaultSourceCRS:     getString(lookup, "DEFAULT_SOURCE_CRS", ""),
		FeatureSourceTimeout: getDuration(lookup, "FEATURE_SOURCE_TIMEOUT", defaultFeatureSourceTimeout),
		MaxUploadBytes:       int64(getInt(lookup, "MAX_UPLOAD_BYTES", defaultMaxUploadBytes)),
	}

	fs := flag.NewFlagSet("plotcatalog", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		shutdownTimeoutStr = cfg.ShutdownTimeout.String()
		sourceTimeoutStr   = cfg.FeatureSourceTimeout.String()
	)

	fs.StringVar(&cfg.RunAddress, "a", cfg.RunAddress, "HTTP server listen address")
	fs.StringVar(&cfg.DatabaseURI, "d", cfg.DatabaseURI, "Catalog database (postgres://... or sqlite://path)")
	fs.StringVar(&shutdownTimeoutStr, "shutdown-timeout", shutdownTimeoutStr, "Graceful shutdown timeout")
	fs.IntVar(&cfg.ImportQueueSize, "import-queue", cfg.ImportQueueSize, "Maximum queued imports")
	fs.BoolVar(&cfg.TrustSourceArea, "trust-source-area", cfg.TrustSourceArea, "Use source area attributes when present")
	fs.StringVar(&cfg.AliasFile, "aliases", cfg.AliasFile, "YAML file with attribute aliases")
	fs.StringVar(&cfg.DefaultSourceCRS, "crs", cfg.DefaultSourceCRS, "CRS assumed for sources without one")
	fs.StringVar(&sourceTimeoutStr, "source-timeout", sourceTimeoutStr, "Timeout for remote feature sources")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	var err error

	if cfg.ShutdownTimeout, err = time.ParseDuration(shutdownTimeoutStr); err != nil {
		return nil, fmt.Errorf("invalid shutdown timeout: %w", err)
	}

	if cfg.FeatureSourceTimeout, err = time.ParseDuration(sourceTimeoutStr); err != nil {
		return nil, fmt.Errorf("invalid source timeout: %w", err)
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	if cfg.FeatureSourceTimeout <= 0 {
		cfg.FeatureSourceTimeout = defaultFeatureSourceTimeout
	}

	if cfg.ImportQueueSize <= 0 {
		cfg.ImportQueueSize = defaultImportQueueSize
	}

	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}

	if cfg.DatabaseURI == "" {
		return nil, fmt.Errorf("database URI must be provided")
	}

	return cfg, nil
}

func getString(lookup envLookup, key, def string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return def
}

func getInt(lookup envLookup, key string, def int) int {
	if v, ok := lookup(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getBool(lookup envLookup, key string, def bool) bool {
	if v, ok := lookup(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDuration(lookup envLookup, key string, def time.Duration) time.Duration {
	if v, ok := lookup(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
