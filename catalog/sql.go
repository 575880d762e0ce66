package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/BrobridgeOrg/go-lakeutil/io"
	"github.com/BrobridgeOrg/go-lakeutil/spec"
)

// SQLCatalog keeps a pointer from each table to its current metadata file
// in a SQLite database. The metadata itself is written through FileIO.
// Commits swap the pointer inside a transaction, so of two writers racing
// on the same base metadata exactly one wins.
type SQLCatalog struct {
	name      string
	db        *sql.DB
	warehouse string
	fileIO    io.FileIO
}

// SQLCatalogOption configures a SQL catalog.
type SQLCatalogOption func(*SQLCatalog)

// WithSQLCatalogName sets the catalog name.
func WithSQLCatalogName(name string) SQLCatalogOption {
	return func(c *SQLCatalog) {
		c.name = name
	}
}

// NewSQLCatalog opens (or creates) the catalog database at dbPath. New
// tables are placed under warehouse.
func NewSQLCatalog(dbPath, warehouse string, fileIO io.FileIO, opts ...SQLCatalogOption) (*SQLCatalog, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Pointer swaps are serialized on one connection.
	db.SetMaxOpenConns(1)

	c := &SQLCatalog{
		name:      "sql",
		db:        db,
		warehouse: strings.TrimSuffix(warehouse, "/"),
		fileIO:    fileIO,
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return c, nil
}

func (c *SQLCatalog) initSchema() error {
	_, err := c.db.Exec(`
	CREATE TABLE IF NOT EXISTS namespaces (
		namespace TEXT PRIMARY KEY,
		properties TEXT NOT NULL DEFAULT '{}'
	);

	CREATE TABLE IF NOT EXISTS tables (
		namespace TEXT NOT NULL,
		name TEXT NOT NULL,
		metadata_location TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (namespace, name)
	);
	`)
	return err
}

// Close closes the database.
func (c *SQLCatalog) Close() error {
	return c.db.Close()
}

// Name returns the catalog name.
func (c *SQLCatalog) Name() string {
	return c.name
}

// ListNamespaces lists all namespaces.
func (c *SQLCatalog) ListNamespaces(ctx context.Context) ([]Namespace, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT namespace FROM namespaces ORDER BY namespace`)
	if err != nil {
		return nil, fmt.Errorf("failed to query namespaces: %w", err)
	}
	defer rows.Close()

	var namespaces []Namespace
	for rows.Next() {
		var ns string
		if err := rows.Scan(&ns); err != nil {
			return nil, fmt.Errorf("failed to scan namespace: %w", err)
		}
		namespaces = append(namespaces, ParseNamespace(ns))
	}
	return namespaces, rows.Err()
}

// CreateNamespace creates a new namespace.
func (c *SQLCatalog) CreateNamespace(ctx context.Context, namespace Namespace, properties map[string]string) error {
	if len(namespace) == 0 {
		return fmt.Errorf("namespace must not be empty")
	}
	exists, err := c.NamespaceExists(ctx, namespace)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrNamespaceAlreadyExists, namespace)
	}

	if properties == nil {
		properties = map[string]string{}
	}
	props, err := json.Marshal(properties)
	if err != nil {
		return fmt.Errorf("failed to marshal properties: %w", err)
	}

	if _, err := c.db.ExecContext(ctx,
		`INSERT INTO namespaces (namespace, properties) VALUES (?, ?)`,
		namespace.String(), string(props),
	); err != nil {
		return fmt.Errorf("failed to create namespace: %w", err)
	}
	return nil
}

// DropNamespace drops an empty namespace.
func (c *SQLCatalog) DropNamespace(ctx context.Context, namespace Namespace) error {
	tables, err := c.ListTables(ctx, namespace)
	if err != nil {
		return err
	}
	if len(tables) > 0 {
		return fmt.Errorf("%w: %s", ErrNamespaceNotEmpty, namespace)
	}

	res, err := c.db.ExecContext(ctx, `DELETE FROM namespaces WHERE namespace = ?`, namespace.String())
	if err != nil {
		return fmt.Errorf("failed to drop namespace: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNoSuchNamespace, namespace)
	}
	return nil
}

// NamespaceExists checks if a namespace exists.
func (c *SQLCatalog) NamespaceExists(ctx context.Context, namespace Namespace) (bool, error) {
	var n int
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM namespaces WHERE namespace = ?`, namespace.String(),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to query namespace: %w", err)
	}
	return n > 0, nil
}

// ListTables lists all tables in a namespace.
func (c *SQLCatalog) ListTables(ctx context.Context, namespace Namespace) ([]TableIdentifier, error) {
	exists, err := c.NamespaceExists(ctx, namespace)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchNamespace, namespace)
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT name FROM tables WHERE namespace = ? ORDER BY name`, namespace.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	defer rows.Close()

	var tables []TableIdentifier
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table: %w", err)
		}
		tables = append(tables, TableIdentifier{Namespace: namespace, Name: name})
	}
	return tables, rows.Err()
}

// CreateTable creates a new table and writes its first metadata file.
func (c *SQLCatalog) CreateTable(ctx context.Context, identifier TableIdentifier, schema *spec.Schema, opts ...CreateTableOption) (*spec.TableMetadata, error) {
	cfg := &CreateTableConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	exists, err := c.NamespaceExists(ctx, identifier.Namespace)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchNamespace, identifier.Namespace)
	}
	if _, err := c.metadataLocation(ctx, c.db, identifier); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrTableAlreadyExists, identifier)
	} else if !errors.Is(err, ErrNoSuchTable) {
		return nil, err
	}

	location := cfg.Location
	if location == "" {
		location = c.defaultLocation(identifier)
	}

	now := time.Now().UnixMilli()
	meta := spec.NewTableMetadata(uuid.NewString(), location, schema, cfg.Properties, now)
	metaLoc, err := c.writeMetadata(ctx, meta)
	if err != nil {
		return nil, err
	}

	if _, err := c.db.ExecContext(ctx,
		`INSERT INTO tables (namespace, name, metadata_location, updated_at) VALUES (?, ?, ?, ?)`,
		identifier.Namespace.String(), identifier.Name, metaLoc, now,
	); err != nil {
		c.fileIO.Delete(ctx, metaLoc)
		return nil, fmt.Errorf("failed to register table: %w", err)
	}

	return meta, nil
}

// LoadTable loads a table's current metadata.
func (c *SQLCatalog) LoadTable(ctx context.Context, identifier TableIdentifier) (*spec.TableMetadata, error) {
	metaLoc, err := c.metadataLocation(ctx, c.db, identifier)
	if err != nil {
		return nil, err
	}
	return c.readMetadata(ctx, metaLoc)
}

// TableExists checks if a table exists.
func (c *SQLCatalog) TableExists(ctx context.Context, identifier TableIdentifier) (bool, error) {
	_, err := c.metadataLocation(ctx, c.db, identifier)
	if errors.Is(err, ErrNoSuchTable) {
		return false, nil
	}
	return err == nil, err
}

// DropTable drops a table. With purge set and a FileIO that can list, all
// files under the table location are deleted.
func (c *SQLCatalog) DropTable(ctx context.Context, identifier TableIdentifier, purge bool) error {
	var meta *spec.TableMetadata
	if purge {
		var err error
		if meta, err = c.LoadTable(ctx, identifier); err != nil {
			return err
		}
	}

	res, err := c.db.ExecContext(ctx,
		`DELETE FROM tables WHERE namespace = ? AND name = ?`,
		identifier.Namespace.String(), identifier.Name)
	if err != nil {
		return fmt.Errorf("failed to drop table: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNoSuchTable, identifier)
	}

	if !purge {
		return nil
	}
	bulk, ok := c.fileIO.(io.BulkFileIO)
	if !ok {
		return nil
	}
	files, err := bulk.ListFiles(ctx, meta.Location)
	if err != nil {
		return fmt.Errorf("failed to list table files: %w", err)
	}
	if err := bulk.DeleteFiles(ctx, files); err != nil {
		return fmt.Errorf("failed to purge table files: %w", err)
	}
	return nil
}

// CommitTable applies updates if all requirements hold, writes a new
// metadata file and swaps the table pointer to it.
func (c *SQLCatalog) CommitTable(ctx context.Context, identifier TableIdentifier, requirements []TableRequirement, updates []TableUpdate) (*spec.TableMetadata, error) {
	baseLoc, err := c.metadataLocation(ctx, c.db, identifier)
	if err != nil {
		return nil, err
	}
	base, err := c.readMetadata(ctx, baseLoc)
	if err != nil {
		return nil, err
	}

	if err := CheckRequirements(identifier, base, requirements); err != nil {
		return nil, err
	}

	now := time.Now().UnixMilli()
	meta, err := ApplyUpdates(base, updates, now)
	if err != nil {
		return nil, fmt.Errorf("failed to apply updates to %s: %w", identifier, err)
	}
	b := spec.NewMetadataBuilder(meta)
	b.AddMetadataLog(baseLoc, base.LastUpdatedMs)
	meta = b.Build()

	newLoc, err := c.writeMetadata(ctx, meta)
	if err != nil {
		return nil, err
	}

	if err := c.swapPointer(ctx, identifier, baseLoc, newLoc, now); err != nil {
		c.fileIO.Delete(ctx, newLoc)
		return nil, err
	}

	return meta, nil
}

// swapPointer moves the table pointer from expected to next with a
// compare-and-swap UPDATE. No row changing means another commit moved the
// pointer first, possibly from another process.
func (c *SQLCatalog) swapPointer(ctx context.Context, identifier TableIdentifier, expected, next string, now int64) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE tables SET metadata_location = ?, updated_at = ? WHERE namespace = ? AND name = ? AND metadata_location = ?`,
		next, now, identifier.Namespace.String(), identifier.Name, expected,
	)
	if err != nil {
		return fmt.Errorf("failed to update table pointer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update table pointer: %w", err)
	}
	if n == 0 {
		current, err := c.metadataLocation(ctx, tx, identifier)
		if err != nil {
			return err
		}
		return &CommitConflictError{
			Table:       identifier.String(),
			Requirement: "metadata-location",
			Expected:    expected,
			Actual:      current,
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (c *SQLCatalog) metadataLocation(ctx context.Context, q queryer, identifier TableIdentifier) (string, error) {
	var loc string
	err := q.QueryRowContext(ctx,
		`SELECT metadata_location FROM tables WHERE namespace = ? AND name = ?`,
		identifier.Namespace.String(), identifier.Name,
	).Scan(&loc)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%w: %s", ErrNoSuchTable, identifier)
	}
	if err != nil {
		return "", fmt.Errorf("failed to query table: %w", err)
	}
	return loc, nil
}

func (c *SQLCatalog) defaultLocation(identifier TableIdentifier) string {
	return c.warehouse + "/" + strings.Join(identifier.Namespace, "/") + "/" + identifier.Name
}

func (c *SQLCatalog) writeMetadata(ctx context.Context, meta *spec.TableMetadata) (string, error) {
	data, err := meta.ToJSON()
	if err != nil {
		return "", fmt.Errorf("failed to serialize metadata: %w", err)
	}
	loc := fmt.Sprintf("%s/metadata/%05d-%s.metadata.json",
		strings.TrimSuffix(meta.Location, "/"), len(meta.MetadataLog), uuid.NewString())
	if err := io.WriteFile(ctx, c.fileIO, loc, data, true); err != nil {
		return "", fmt.Errorf("failed to write metadata: %w", err)
	}
	return loc, nil
}

func (c *SQLCatalog) readMetadata(ctx context.Context, loc string) (*spec.TableMetadata, error) {
	data, err := io.ReadFile(ctx, c.fileIO, loc)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	return spec.ParseTableMetadata(data)
}
