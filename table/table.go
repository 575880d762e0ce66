// Package table reads and modifies tables through a catalog: scans into
// arrow-backed frames, appends, copy-on-write deletes and merges.
package table

import (
	"context"
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/BrobridgeOrg/go-lakeutil/catalog"
	"github.com/BrobridgeOrg/go-lakeutil/io"
	"github.com/BrobridgeOrg/go-lakeutil/spec"
)

// Table is a handle on a catalog table and its last loaded metadata.
// A Table is not safe for concurrent modification; load one per writer.
type Table struct {
	identifier  catalog.TableIdentifier
	metadata    *spec.TableMetadata
	cat         catalog.Catalog
	fileIO      io.FileIO
	concurrency int
}

// Option configures a Table.
type Option func(*Table)

// WithConcurrency bounds the number of files read or rewritten at once.
func WithConcurrency(n int) Option {
	return func(t *Table) {
		t.concurrency = n
	}
}

// New wraps already loaded metadata.
func New(identifier catalog.TableIdentifier, metadata *spec.TableMetadata, cat catalog.Catalog, fileIO io.FileIO, opts ...Option) *Table {
	t := &Table{
		identifier: identifier,
		metadata:   metadata,
		cat:        cat,
		fileIO:     fileIO,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Load loads a table from the catalog.
func Load(ctx context.Context, cat catalog.Catalog, fileIO io.FileIO, identifier catalog.TableIdentifier, opts ...Option) (*Table, error) {
	meta, err := cat.LoadTable(ctx, identifier)
	if err != nil {
		return nil, err
	}
	return New(identifier, meta, cat, fileIO, opts...), nil
}

// Identifier returns the table identifier.
func (t *Table) Identifier() catalog.TableIdentifier {
	return t.identifier
}

// Metadata returns the table metadata.
func (t *Table) Metadata() *spec.TableMetadata {
	return t.metadata
}

// Location returns the table location.
func (t *Table) Location() string {
	return t.metadata.Location
}

// Schema returns the current schema.
func (t *Table) Schema() *spec.Schema {
	return t.metadata.CurrentSchema()
}

// ArrowSchema returns the current schema as an arrow schema.
func (t *Table) ArrowSchema() *arrow.Schema {
	return ArrowSchema(t.Schema())
}

// Properties returns the table properties.
func (t *Table) Properties() map[string]string {
	return t.metadata.Properties
}

// CurrentSnapshot returns the current snapshot, or nil for an empty table.
func (t *Table) CurrentSnapshot() *spec.Snapshot {
	return t.metadata.CurrentSnapshot()
}

// Version returns the sequence number of the current snapshot, 0 when
// nothing has been committed.
func (t *Table) Version() int64 {
	if snap := t.CurrentSnapshot(); snap != nil {
		return snap.SequenceNumber
	}
	return 0
}

// Snapshots returns all snapshots.
func (t *Table) Snapshots() []spec.Snapshot {
	return t.metadata.Snapshots
}

// SnapshotByID returns a snapshot by ID.
func (t *Table) SnapshotByID(id int64) *spec.Snapshot {
	return t.metadata.SnapshotByID(id)
}

// SnapshotAt returns the snapshot that was current at the given timestamp.
func (t *Table) SnapshotAt(timestamp time.Time) (*spec.Snapshot, error) {
	ts := timestamp.UnixMilli()
	var result *spec.Snapshot
	for _, entry := range t.metadata.SnapshotLog {
		if entry.TimestampMs > ts {
			break
		}
		result = t.SnapshotByID(entry.SnapshotID)
	}
	if result == nil {
		return nil, fmt.Errorf("%w: none at or before %v", ErrSnapshotNotFound, timestamp)
	}
	return result, nil
}

// FileIO returns the file I/O handler.
func (t *Table) FileIO() io.FileIO {
	return t.fileIO
}

// Catalog returns the catalog.
func (t *Table) Catalog() catalog.Catalog {
	return t.cat
}

// Refresh reloads the table metadata from the catalog.
func (t *Table) Refresh(ctx context.Context) error {
	meta, err := t.cat.LoadTable(ctx, t.identifier)
	if err != nil {
		return fmt.Errorf("failed to refresh table: %w", err)
	}
	t.metadata = meta
	return nil
}

// Scan creates a new scan builder for this table.
func (t *Table) Scan() *ScanBuilder {
	return NewScanBuilder(t)
}

// HistoryEntry is one commit of the main branch.
type HistoryEntry struct {
	Version    int64
	SnapshotID int64
	Timestamp  time.Time
	Operation  spec.Operation
	Summary    *spec.Summary
}

// History returns up to limit commits of the current snapshot lineage,
// most recent first. A limit of zero or less returns the whole lineage.
func (t *Table) History(limit int) []HistoryEntry {
	var entries []HistoryEntry
	seen := make(map[int64]bool)
	for snap := t.CurrentSnapshot(); snap != nil && !seen[snap.SnapshotID]; {
		if limit > 0 && len(entries) == limit {
			break
		}
		seen[snap.SnapshotID] = true

		entry := HistoryEntry{
			Version:    snap.SequenceNumber,
			SnapshotID: snap.SnapshotID,
			Timestamp:  snap.Timestamp(),
			Summary:    snap.Summary,
		}
		if snap.Summary != nil {
			entry.Operation = snap.Summary.Operation
		}
		entries = append(entries, entry)

		if snap.ParentSnapshotID == nil {
			break
		}
		snap = t.SnapshotByID(*snap.ParentSnapshotID)
	}
	return entries
}
