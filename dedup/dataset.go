// Package dedup removes duplicate rows from transactional tables.
//
// The resolver computes duplicate keys with dataset operations (window
// count or rank, filter, projection, distinct) and deletes them through a
// single atomic merge on the owning table. It never mutates a table any
// other way.
package dedup

import (
	"context"
	"time"

	"github.com/BrobridgeOrg/go-lakeutil/table"
)

// Version identifies a committed table snapshot. Versions only grow.
type Version int64

// HistoryEntry is one committed change of a table.
type HistoryEntry struct {
	Version   Version
	Timestamp time.Time
	Operation string
}

// Table is a transactional table as the resolver sees it.
type Table interface {
	// History returns up to n entries, most recent first.
	History(ctx context.Context, n int) ([]HistoryEntry, error)
	// Schema returns the column names of the current schema.
	Schema() []string
	// Dataset returns the current table contents.
	Dataset(ctx context.Context) (Dataset, error)
	// Merge matches source rows against the table on cond, where target
	// columns carry the "old." prefix and source columns "new.".
	Merge(source Dataset, cond *table.Expression) Merger
}

// Merger configures and commits a merge.
type Merger interface {
	WhenMatchedDelete() Merger
	Commit(ctx context.Context) (MergeResult, error)
}

// MergeResult describes a committed merge.
type MergeResult struct {
	Version     Version
	DeletedRows int64
	Committed   bool
}

// Dataset is an immutable set of rows. Every operation returns a new
// dataset the caller must release.
type Dataset interface {
	Columns() []string
	NumRows() int64
	Project(columns ...string) (Dataset, error)
	Filter(expr *table.Expression) (Dataset, error)
	Distinct() (Dataset, error)
	// WindowCount adds column as holding each row's partition size.
	WindowCount(partitionBy []string, as string) (Dataset, error)
	// WindowRank adds column as numbering each partition from 1 in
	// ascending orderBy order, ties in input order.
	WindowRank(partitionBy []string, orderBy, as string) (Dataset, error)
	Release()
}
