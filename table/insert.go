package table

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/BrobridgeOrg/go-lakeutil/spec"
)

// InsertOption configures insert operations.
type InsertOption func(*InsertConfig)

// InsertConfig holds configuration for insert operations.
type InsertConfig struct {
	// MaxRowsPerFile bounds the size of each written data file.
	MaxRowsPerFile int64
	// Overwrite replaces the table contents instead of appending.
	Overwrite bool
}

// WithMaxRowsPerFile sets the maximum number of rows per data file.
func WithMaxRowsPerFile(n int64) InsertOption {
	return func(c *InsertConfig) {
		c.MaxRowsPerFile = n
	}
}

// WithOverwrite enables overwrite mode.
func WithOverwrite(overwrite bool) InsertOption {
	return func(c *InsertConfig) {
		c.Overwrite = overwrite
	}
}

// Insert appends records to the table in a single commit. Every record
// must carry exactly the table columns. It returns the committed snapshot,
// or nil when there were no rows to write.
func (t *Table) Insert(ctx context.Context, records []arrow.Record, opts ...InsertOption) (*spec.Snapshot, error) {
	cfg := &InsertConfig{MaxRowsPerFile: defaultMaxRowsPerFile}
	for _, opt := range opts {
		opt(cfg)
	}

	want := t.ArrowSchema()
	for _, rec := range records {
		if err := checkRecordSchema(want, rec.Schema()); err != nil {
			return nil, err
		}
	}

	writer := NewDataWriter(t).WithMaxRowsPerFile(cfg.MaxRowsPerFile)
	result, err := writer.Write(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("failed to write data files: %w", err)
	}

	op := spec.OpAppend
	if cfg.Overwrite {
		op = spec.OpOverwrite
	}

	tx := t.NewTransaction()
	builder := tx.NewSnapshot(op).AddDataFile(result.DataFiles...)
	if cfg.Overwrite {
		builder.DeleteAll()
	} else if len(result.DataFiles) == 0 {
		return nil, nil
	}

	snapshot, err := tx.Commit(ctx)
	if err != nil {
		writer.abort(ctx, result)
		return nil, err
	}
	return snapshot, nil
}

// InsertFrame appends the rows of a frame.
func (t *Table) InsertFrame(ctx context.Context, frame *Frame, opts ...InsertOption) (*spec.Snapshot, error) {
	rec := frame.Record()
	defer rec.Release()
	return t.Insert(ctx, []arrow.Record{rec}, opts...)
}

// Overwrite replaces the table contents with records.
func (t *Table) Overwrite(ctx context.Context, records []arrow.Record, opts ...InsertOption) (*spec.Snapshot, error) {
	return t.Insert(ctx, records, append(opts, WithOverwrite(true))...)
}
