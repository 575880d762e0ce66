package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BrobridgeOrg/go-lakeutil/internal/logger"
	"github.com/BrobridgeOrg/go-lakeutil/table"
)

// Names of the helper columns added while computing duplicates. They
// never reach the merge source, and get a numeric suffix when the table
// already has a column of the same name.
const (
	dupCountColumn = "__lakeutil_dup_count"
	dupRankColumn  = "__lakeutil_dup_rank"
)

const (
	modeRemoveAll = "remove_all"
	modeKeepOne   = "keep_one"
)

// Resolver removes duplicate rows from tables. A Resolver is safe for
// concurrent use, but two runs against the same table and keys must not
// overlap: each reads, then deletes, and only the delete is atomic.
type Resolver struct {
	logger             *slog.Logger
	metrics            *Metrics
	validatePrimaryKey bool
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

// WithMetrics records runs in m.
func WithMetrics(m *Metrics) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// WithPrimaryKeyValidation controls whether keep-one mode checks that the
// primary key column exists before scanning. It is on by default; turning
// it off leaves a missing primary key to fail inside the engine.
func WithPrimaryKeyValidation(enabled bool) Option {
	return func(r *Resolver) {
		r.validatePrimaryKey = enabled
	}
}

// NewResolver creates a resolver.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{validatePrimaryKey: true}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.Get()
	}
	r.logger = r.logger.With("component", "dedup")
	return r
}

// RemoveAllDuplicates deletes every row whose key values are shared with
// at least one other row. No member of a duplicated key survives; rows
// with a unique key are untouched.
func (r *Resolver) RemoveAllDuplicates(ctx context.Context, t Table, key []string) (err error) {
	start := time.Now()
	defer func() { r.metrics.observe(modeRemoveAll, start, err) }()

	if len(key) == 0 {
		return r.reject(modeRemoveAll, &InvalidArgumentError{Argument: "key", Reason: "must name at least one column"})
	}
	if err := requireColumns(t.Schema(), key); err != nil {
		return r.reject(modeRemoveAll, err)
	}

	ds, err := t.Dataset(ctx)
	if err != nil {
		return fmt.Errorf("failed to read table: %w", err)
	}
	defer ds.Release()

	countCol := freeColumn(ds.Columns(), dupCountColumn)
	keys, err := pipeline(ds,
		func(d Dataset) (Dataset, error) { return d.WindowCount(key, countCol) },
		func(d Dataset) (Dataset, error) { return d.Filter(table.Gt(countCol, 1)) },
		func(d Dataset) (Dataset, error) { return d.Project(key...) },
		func(d Dataset) (Dataset, error) { return d.Distinct() },
	)
	if err != nil {
		return fmt.Errorf("failed to compute duplicate keys: %w", err)
	}
	defer keys.Release()

	return r.deleteMatching(ctx, modeRemoveAll, t, keys, key)
}

// RemoveDuplicatesKeepOne keeps, for every group of rows sharing the
// extra key columns (or the primary key alone when there are none), the
// row with the smallest primary key and deletes the others.
//
// Rows are deleted by matching the primary key and extra columns of each
// surplus row, so a surviving row that shares all of those values with a
// surplus row is deleted too.
func (r *Resolver) RemoveDuplicatesKeepOne(ctx context.Context, t Table, primaryKey string, extra ...string) (err error) {
	start := time.Now()
	defer func() { r.metrics.observe(modeKeepOne, start, err) }()

	if primaryKey == "" {
		return r.reject(modeKeepOne, &InvalidArgumentError{Argument: "primaryKey", Reason: "must not be empty"})
	}
	check := extra
	if r.validatePrimaryKey {
		check = append([]string{primaryKey}, extra...)
	}
	if err := requireColumns(t.Schema(), check); err != nil {
		return r.reject(modeKeepOne, err)
	}

	group := extra
	if len(group) == 0 {
		group = []string{primaryKey}
	}
	matchCols := uniqueColumns(append([]string{primaryKey}, extra...))

	ds, err := t.Dataset(ctx)
	if err != nil {
		return fmt.Errorf("failed to read table: %w", err)
	}
	defer ds.Release()

	rankCol := freeColumn(ds.Columns(), dupRankColumn)
	keys, err := pipeline(ds,
		func(d Dataset) (Dataset, error) { return d.WindowRank(group, primaryKey, rankCol) },
		func(d Dataset) (Dataset, error) { return d.Filter(table.Gt(rankCol, 1)) },
		func(d Dataset) (Dataset, error) { return d.Project(matchCols...) },
		func(d Dataset) (Dataset, error) { return d.Distinct() },
	)
	if err != nil {
		return fmt.Errorf("failed to compute duplicate keys: %w", err)
	}
	defer keys.Release()

	return r.deleteMatching(ctx, modeKeepOne, t, keys, matchCols)
}

// deleteMatching merges keys into t, deleting every row equal on cols.
// Nothing is committed when there are no keys.
func (r *Resolver) deleteMatching(ctx context.Context, mode string, t Table, keys Dataset, cols []string) error {
	n := keys.NumRows()
	r.metrics.found(mode, n)
	r.logger.Info("duplicate keys computed", "mode", mode, "columns", cols, "duplicate_keys", n)
	if n == 0 {
		return nil
	}

	res, err := t.Merge(keys, matchCondition(cols)).WhenMatchedDelete().Commit(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete duplicates: %w", err)
	}

	r.metrics.deleted(mode, res.DeletedRows)
	r.logger.Info("duplicates removed", "mode", mode, "deleted_rows", res.DeletedRows,
		"version", int64(res.Version), "committed", res.Committed)
	return nil
}

func (r *Resolver) reject(mode string, err error) error {
	r.logger.Debug("request rejected", "mode", mode, "error", err)
	return err
}

// pipeline applies steps in order, releasing intermediate datasets. The
// input is not released.
func pipeline(in Dataset, steps ...func(Dataset) (Dataset, error)) (Dataset, error) {
	cur := in
	for _, step := range steps {
		next, err := step(cur)
		if cur != in {
			cur.Release()
		}
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}
