package lakeutil

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
)

// CatalogType represents supported catalog types.
type CatalogType string

const (
	// CatalogREST represents the Iceberg REST Catalog.
	CatalogREST CatalogType = "rest"
	// CatalogSQL represents the SQLite-backed catalog.
	CatalogSQL CatalogType = "sql"
)

// StorageType represents supported storage backends.
type StorageType string

const (
	// StorageLocal represents local filesystem storage.
	StorageLocal StorageType = "local"
	// StorageS3 represents Amazon S3 or a compatible service.
	StorageS3 StorageType = "s3"
)

// Config holds the client configuration.
type Config struct {
	Catalog   CatalogConfig `mapstructure:"catalog"`
	Warehouse string        `mapstructure:"warehouse"`
	Storage   StorageType   `mapstructure:"storage"`
	S3        S3Config      `mapstructure:"s3"`
	Log       LogConfig     `mapstructure:"log"`

	// Concurrency bounds the parallel file reads and rewrites per table.
	Concurrency int `mapstructure:"concurrency"`

	// ValidatePrimaryKey makes keep-one deduplication check the primary
	// key column before scanning.
	ValidatePrimaryKey bool `mapstructure:"validate_primary_key"`

	Logger   *slog.Logger         `mapstructure:"-"`
	Registry prometheus.Registerer `mapstructure:"-"`
}

// CatalogConfig selects and configures the catalog.
type CatalogConfig struct {
	Type  CatalogType `mapstructure:"type"`
	Name  string      `mapstructure:"name"`
	URI   string      `mapstructure:"uri"`   // REST endpoint
	Token string      `mapstructure:"token"` // REST bearer token
	Path  string      `mapstructure:"path"`  // SQLite database file
}

// S3Config holds S3-specific configuration.
type S3Config struct {
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"` // For MinIO, LocalStack, etc.
	AccessKeyID     string `mapstructure:"accesskey"`
	SecretAccessKey string `mapstructure:"secretkey"`
	SessionToken    string `mapstructure:"sessiontoken"`
	ForcePathStyle  bool   `mapstructure:"pathstyle"`
}

// LogConfig configures the process logger used by the command line tool.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Catalog: CatalogConfig{
			Type: CatalogSQL,
			Name: "lakeutil",
			Path: "lakeutil.db",
		},
		Warehouse:          "warehouse",
		Storage:            StorageLocal,
		Log:                LogConfig{Level: "INFO", Format: "text"},
		Concurrency:        4,
		ValidatePrimaryKey: true,
	}
}

// Validate checks that the configuration can build a client.
func (c *Config) Validate() error {
	switch c.Catalog.Type {
	case CatalogREST:
		if c.Catalog.URI == "" {
			return &ConfigError{Field: "catalog.uri", Message: "required for the REST catalog"}
		}
	case CatalogSQL:
		if c.Catalog.Path == "" {
			return &ConfigError{Field: "catalog.path", Message: "required for the SQL catalog"}
		}
		if c.Warehouse == "" {
			return &ConfigError{Field: "warehouse", Message: "required for the SQL catalog"}
		}
	default:
		return &ConfigError{Field: "catalog.type", Message: fmt.Sprintf("unsupported catalog type %q", c.Catalog.Type)}
	}

	switch c.Storage {
	case StorageLocal, StorageS3:
	default:
		return &ConfigError{Field: "storage", Message: fmt.Sprintf("unsupported storage type %q", c.Storage)}
	}
	if c.Concurrency < 0 {
		return &ConfigError{Field: "concurrency", Message: "must not be negative"}
	}
	return nil
}

// LoadConfig builds a Config from the defaults, a .env file in the
// working directory and environment variables carrying prefix. Underscores
// after the prefix separate sections, so LAKEUTIL_CATALOG_URI sets
// catalog.uri. Environment variables win over the .env file.
func LoadConfig(prefix string) (*Config, error) {
	return loadConfig(prefix, ".env", os.Environ())
}

func loadConfig(prefix, envFile string, environ []string) (*Config, error) {
	prefix = strings.ToUpper(prefix)
	if prefix != "" && !strings.HasSuffix(prefix, "_") {
		prefix += "_"
	}

	settings := make(map[string]string)

	file := viper.New()
	file.SetConfigFile(envFile)
	file.SetConfigType("env")
	if err := file.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read %s: %w", envFile, err)
		}
	}
	// dotenv keys come back lower-cased
	for _, key := range file.AllKeys() {
		if k, ok := settingKey(prefix, strings.ToUpper(key)); ok {
			settings[k] = file.GetString(key)
		}
	}

	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if k, ok := settingKey(prefix, key); ok {
			settings[k] = value
		}
	}

	v := viper.New()
	for k, value := range settings {
		v.Set(k, value)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// settingKey maps PREFIX_CATALOG_URI to catalog.uri. Keys of the top-level
// fields whose names contain underscores are kept whole.
func settingKey(prefix, envKey string) (string, bool) {
	if !strings.HasPrefix(envKey, prefix) {
		return "", false
	}
	k := strings.ToLower(strings.TrimPrefix(envKey, prefix))
	if k == "" {
		return "", false
	}
	if k == "validate_primary_key" {
		return k, true
	}
	return strings.ReplaceAll(k, "_", "."), true
}

// Option is a functional option for client configuration.
type Option func(*Config)

// WithRESTCatalog configures the client to use a REST catalog.
func WithRESTCatalog(uri string) Option {
	return func(c *Config) {
		c.Catalog.Type = CatalogREST
		c.Catalog.URI = uri
	}
}

// WithSQLCatalog configures the client to use a SQLite catalog stored at
// path.
func WithSQLCatalog(path string) Option {
	return func(c *Config) {
		c.Catalog.Type = CatalogSQL
		c.Catalog.Path = path
	}
}

// WithCatalogName sets the catalog name.
func WithCatalogName(name string) Option {
	return func(c *Config) {
		c.Catalog.Name = name
	}
}

// WithWarehouse sets the warehouse location.
func WithWarehouse(warehouse string) Option {
	return func(c *Config) {
		c.Warehouse = warehouse
	}
}

// WithToken sets a bearer token for the REST catalog.
func WithToken(token string) Option {
	return func(c *Config) {
		c.Catalog.Token = token
	}
}

// WithS3 configures the S3 storage backend.
func WithS3(cfg S3Config) Option {
	return func(c *Config) {
		c.Storage = StorageS3
		c.S3 = cfg
	}
}

// WithLocalStorage configures local filesystem storage.
func WithLocalStorage() Option {
	return func(c *Config) {
		c.Storage = StorageLocal
	}
}

// WithConcurrency bounds parallel file work per table.
func WithConcurrency(n int) Option {
	return func(c *Config) {
		c.Concurrency = n
	}
}

// WithPrimaryKeyValidation toggles the primary key check of keep-one
// deduplication.
func WithPrimaryKeyValidation(enabled bool) Option {
	return func(c *Config) {
		c.ValidatePrimaryKey = enabled
	}
}

// WithLogger sets the logger used by the client.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithMetricsRegistry registers the deduplication metrics with reg.
func WithMetricsRegistry(reg prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = reg
	}
}
