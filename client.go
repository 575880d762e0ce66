package lakeutil

import (
	"context"
	"fmt"
	stdio "io"
	"log/slog"

	"github.com/BrobridgeOrg/go-lakeutil/catalog"
	"github.com/BrobridgeOrg/go-lakeutil/dedup"
	"github.com/BrobridgeOrg/go-lakeutil/internal/logger"
	"github.com/BrobridgeOrg/go-lakeutil/io"
	"github.com/BrobridgeOrg/go-lakeutil/spec"
	"github.com/BrobridgeOrg/go-lakeutil/table"
)

// Client is the main entry point for table management and deduplication.
type Client struct {
	catalog  catalog.Catalog
	config   *Config
	io       io.FileIO
	resolver *dedup.Resolver
	logger   *slog.Logger
}

// NewClient creates a client from the default configuration and opts.
func NewClient(ctx context.Context, opts ...Option) (*Client, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(config)
	}
	return NewClientFromConfig(ctx, config)
}

// NewClientFromConfig creates a client from config, for example one
// returned by LoadConfig.
func NewClientFromConfig(ctx context.Context, config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	log := config.Logger
	if log == nil {
		log = logger.Get()
	}

	fileIO, err := createFileIO(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create file IO: %w", err)
	}

	cat, err := createCatalog(config, fileIO)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog: %w", err)
	}

	resolverOpts := []dedup.Option{
		dedup.WithLogger(log),
		dedup.WithPrimaryKeyValidation(config.ValidatePrimaryKey),
	}
	if config.Registry != nil {
		resolverOpts = append(resolverOpts, dedup.WithMetrics(dedup.NewMetrics(config.Registry)))
	}

	log.Debug("client created",
		"catalog", cat.Name(),
		"catalog_type", string(config.Catalog.Type),
		"storage", string(config.Storage),
		"warehouse", config.Warehouse)

	return &Client{
		catalog:  cat,
		config:   config,
		io:       fileIO,
		resolver: dedup.NewResolver(resolverOpts...),
		logger:   log,
	}, nil
}

func createCatalog(config *Config, fileIO io.FileIO) (catalog.Catalog, error) {
	switch config.Catalog.Type {
	case CatalogREST:
		opts := []catalog.RESTCatalogOption{
			catalog.WithWarehouse(config.Warehouse),
		}
		if config.Catalog.Name != "" {
			opts = append(opts, catalog.WithName(config.Catalog.Name))
		}
		if config.Catalog.Token != "" {
			opts = append(opts, catalog.WithToken(config.Catalog.Token))
		}
		return catalog.NewRESTCatalog(config.Catalog.URI, opts...)

	case CatalogSQL:
		var opts []catalog.SQLCatalogOption
		if config.Catalog.Name != "" {
			opts = append(opts, catalog.WithSQLCatalogName(config.Catalog.Name))
		}
		return catalog.NewSQLCatalog(config.Catalog.Path, config.Warehouse, fileIO, opts...)

	default:
		return nil, fmt.Errorf("%w: unsupported catalog type: %s", ErrInvalidConfig, config.Catalog.Type)
	}
}

func createFileIO(ctx context.Context, config *Config) (io.FileIO, error) {
	switch config.Storage {
	case StorageS3:
		return io.NewS3FileIO(ctx, &io.S3Config{
			Region:          config.S3.Region,
			Endpoint:        config.S3.Endpoint,
			AccessKeyID:     config.S3.AccessKeyID,
			SecretAccessKey: config.S3.SecretAccessKey,
			SessionToken:    config.S3.SessionToken,
			ForcePathStyle:  config.S3.ForcePathStyle,
		})
	default:
		return io.NewLocalFileIO(), nil
	}
}

// Close releases the catalog's resources.
func (c *Client) Close() error {
	if closer, ok := c.catalog.(stdio.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Config returns the client configuration.
func (c *Client) Config() *Config {
	return c.config
}

// Catalog returns the underlying catalog for advanced operations.
func (c *Client) Catalog() catalog.Catalog {
	return c.catalog
}

// FileIO returns the file I/O handler.
func (c *Client) FileIO() io.FileIO {
	return c.io
}

// Table opens an existing table named "namespace.table".
func (c *Client) Table(ctx context.Context, name string) (*table.Table, error) {
	id, err := catalog.ParseIdentifier(name)
	if err != nil {
		return nil, err
	}
	t, err := table.Load(ctx, c.catalog, c.io, id, c.tableOptions()...)
	if err != nil {
		return nil, mapCatalogError(err, name)
	}
	return t, nil
}

// CreateTable creates a new table named "namespace.table".
func (c *Client) CreateTable(ctx context.Context, name string, schema *spec.Schema, opts ...CreateTableOption) (*table.Table, error) {
	cfg := &CreateTableConfig{
		Properties: make(map[string]string),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	id, err := catalog.ParseIdentifier(name)
	if err != nil {
		return nil, err
	}

	var catOpts []catalog.CreateTableOption
	if cfg.Location != "" {
		catOpts = append(catOpts, catalog.WithLocation(cfg.Location))
	}
	if len(cfg.Properties) > 0 {
		catOpts = append(catOpts, catalog.WithProperties(cfg.Properties))
	}

	meta, err := c.catalog.CreateTable(ctx, id, schema, catOpts...)
	if err != nil {
		return nil, mapCatalogError(err, name)
	}
	c.logger.Info("table created", "table", name, "location", meta.Location)
	return table.New(id, meta, c.catalog, c.io, c.tableOptions()...), nil
}

// DropTable drops a table. With purge set, its data and metadata files are
// deleted too.
func (c *Client) DropTable(ctx context.Context, name string, purge bool) error {
	id, err := catalog.ParseIdentifier(name)
	if err != nil {
		return err
	}
	if err := c.catalog.DropTable(ctx, id, purge); err != nil {
		return mapCatalogError(err, name)
	}
	c.logger.Info("table dropped", "table", name, "purge", purge)
	return nil
}

// TableExists checks if a table exists.
func (c *Client) TableExists(ctx context.Context, name string) (bool, error) {
	id, err := catalog.ParseIdentifier(name)
	if err != nil {
		return false, err
	}
	return c.catalog.TableExists(ctx, id)
}

// ListTables lists all tables in a namespace.
func (c *Client) ListTables(ctx context.Context, namespace string) ([]string, error) {
	tables, err := c.catalog.ListTables(ctx, catalog.ParseNamespace(namespace))
	if err != nil {
		return nil, mapCatalogError(err, namespace)
	}

	result := make([]string, len(tables))
	for i, t := range tables {
		result[i] = t.String()
	}
	return result, nil
}

// ListNamespaces lists all namespaces.
func (c *Client) ListNamespaces(ctx context.Context) ([]string, error) {
	namespaces, err := c.catalog.ListNamespaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list namespaces: %w", err)
	}

	result := make([]string, len(namespaces))
	for i, ns := range namespaces {
		result[i] = ns.String()
	}
	return result, nil
}

// CreateNamespace creates a new namespace.
func (c *Client) CreateNamespace(ctx context.Context, namespace string, props map[string]string) error {
	if err := c.catalog.CreateNamespace(ctx, catalog.ParseNamespace(namespace), props); err != nil {
		return mapCatalogError(err, namespace)
	}
	return nil
}

// DropNamespace drops an empty namespace.
func (c *Client) DropNamespace(ctx context.Context, namespace string) error {
	if err := c.catalog.DropNamespace(ctx, catalog.ParseNamespace(namespace)); err != nil {
		return mapCatalogError(err, namespace)
	}
	return nil
}

// LatestVersion returns the version of the table's most recent commit.
func (c *Client) LatestVersion(ctx context.Context, name string) (dedup.Version, error) {
	t, err := c.Table(ctx, name)
	if err != nil {
		return 0, err
	}
	return dedup.LatestVersion(ctx, dedup.ForTable(t))
}

// RemoveAllDuplicates deletes every row of the table whose key values are
// shared with another row.
func (c *Client) RemoveAllDuplicates(ctx context.Context, name string, key ...string) error {
	t, err := c.Table(ctx, name)
	if err != nil {
		return err
	}
	return c.resolver.RemoveAllDuplicates(ctx, dedup.ForTable(t), key)
}

// RemoveDuplicatesKeepOne keeps the row with the smallest primary key of
// every group sharing the extra columns and deletes the rest.
func (c *Client) RemoveDuplicatesKeepOne(ctx context.Context, name, primaryKey string, extra ...string) error {
	t, err := c.Table(ctx, name)
	if err != nil {
		return err
	}
	return c.resolver.RemoveDuplicatesKeepOne(ctx, dedup.ForTable(t), primaryKey, extra...)
}

func (c *Client) tableOptions() []table.Option {
	if c.config.Concurrency > 0 {
		return []table.Option{table.WithConcurrency(c.config.Concurrency)}
	}
	return nil
}

// CreateTableConfig holds options for table creation.
type CreateTableConfig struct {
	Location   string
	Properties map[string]string
}

// CreateTableOption configures table creation.
type CreateTableOption func(*CreateTableConfig)

// WithTableLocation sets the location for table creation.
func WithTableLocation(location string) CreateTableOption {
	return func(c *CreateTableConfig) {
		c.Location = location
	}
}

// WithTableProperties sets properties for table creation.
func WithTableProperties(props map[string]string) CreateTableOption {
	return func(c *CreateTableConfig) {
		for k, v := range props {
			c.Properties[k] = v
		}
	}
}
