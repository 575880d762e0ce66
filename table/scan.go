package table

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/BrobridgeOrg/go-lakeutil/io"
	"github.com/BrobridgeOrg/go-lakeutil/spec"
)

// ScanBuilder builds a table scan.
type ScanBuilder struct {
	table          *Table
	snapshotID     *int64
	asOfTimestamp  *time.Time
	filter         *Expression
	selectedFields []string
	limit          *int64
}

// NewScanBuilder creates a new scan builder for the given table.
func NewScanBuilder(t *Table) *ScanBuilder {
	return &ScanBuilder{table: t}
}

// WithSnapshot sets the snapshot ID to scan.
func (sb *ScanBuilder) WithSnapshot(snapshotID int64) *ScanBuilder {
	sb.snapshotID = &snapshotID
	return sb
}

// AsOf scans the snapshot that was current at timestamp.
func (sb *ScanBuilder) AsOf(timestamp time.Time) *ScanBuilder {
	sb.asOfTimestamp = &timestamp
	return sb
}

// Filter keeps only rows matching filter.
func (sb *ScanBuilder) Filter(filter *Expression) *ScanBuilder {
	sb.filter = filter
	return sb
}

// Select specifies the columns to return.
func (sb *ScanBuilder) Select(columns ...string) *ScanBuilder {
	sb.selectedFields = columns
	return sb
}

// Limit sets the maximum number of rows to return. A negative limit
// returns no rows.
func (sb *ScanBuilder) Limit(n int64) *ScanBuilder {
	sb.limit = &n
	return sb
}

func (sb *ScanBuilder) resolveSnapshot() (*spec.Snapshot, error) {
	switch {
	case sb.asOfTimestamp != nil:
		return sb.table.SnapshotAt(*sb.asOfTimestamp)
	case sb.snapshotID != nil:
		snap := sb.table.SnapshotByID(*sb.snapshotID)
		if snap == nil {
			return nil, fmt.Errorf("%w: %d", ErrSnapshotNotFound, *sb.snapshotID)
		}
		return snap, nil
	default:
		return sb.table.CurrentSnapshot(), nil
	}
}

// FileScanTask is one data file to read.
type FileScanTask struct {
	File           spec.DataFile
	SequenceNumber int64
}

// PlanFiles returns the data files of the scanned snapshot.
func (sb *ScanBuilder) PlanFiles(ctx context.Context) ([]FileScanTask, error) {
	snapshot, err := sb.resolveSnapshot()
	if err != nil {
		return nil, err
	}

	entries, err := sb.table.liveEntries(ctx, snapshot)
	if err != nil {
		return nil, err
	}

	tasks := make([]FileScanTask, 0, len(entries))
	for _, entry := range entries {
		task := FileScanTask{File: entry.DataFile}
		if entry.SequenceNumber != nil {
			task.SequenceNumber = *entry.SequenceNumber
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// ToFrame executes the scan and materializes the result. Files are read
// concurrently; rows keep file order, then in-file order.
func (sb *ScanBuilder) ToFrame(ctx context.Context) (*Frame, error) {
	tasks, err := sb.PlanFiles(ctx)
	if err != nil {
		return nil, err
	}

	schema := sb.table.ArrowSchema()
	if sb.filter != nil {
		if _, err := fieldIndices(schema, sb.filter.GetReferencedColumns()); err != nil {
			return nil, err
		}
	}

	parts := make([]*Frame, len(tasks))
	defer func() {
		for _, p := range parts {
			if p != nil {
				p.Release()
			}
		}
	}()

	err = runParallel(ctx, sb.table.concurrency, len(tasks), func(ctx context.Context, i int) error {
		frame, err := sb.table.readDataFile(ctx, tasks[i].File.FilePath, schema)
		if err != nil {
			return err
		}
		if sb.filter != nil {
			filtered, err := frame.Filter(sb.filter)
			frame.Release()
			if err != nil {
				return err
			}
			frame = filtered
		}
		parts[i] = frame
		return nil
	})
	if err != nil {
		return nil, err
	}

	recs := make([]arrow.Record, 0, len(parts))
	for _, p := range parts {
		rec := p.Record()
		defer rec.Release()
		recs = append(recs, rec)
	}
	result, err := NewFrameFromRecords(schema, recs...)
	if err != nil {
		return nil, err
	}

	if sb.limit != nil && *sb.limit < result.NumRows() {
		limited, err := result.head(int(max(*sb.limit, 0)))
		result.Release()
		if err != nil {
			return nil, err
		}
		result = limited
	}

	if len(sb.selectedFields) > 0 {
		projected, err := result.Project(sb.selectedFields...)
		result.Release()
		if err != nil {
			return nil, err
		}
		result = projected
	}
	return result, nil
}

// Count returns the number of rows the scan would return. Without a filter
// it is answered from file metadata.
func (sb *ScanBuilder) Count(ctx context.Context) (int64, error) {
	var count int64
	if sb.filter == nil {
		tasks, err := sb.PlanFiles(ctx)
		if err != nil {
			return 0, err
		}
		for _, task := range tasks {
			count += task.File.RecordCount
		}
	} else {
		frame, err := sb.ToFrame(ctx)
		if err != nil {
			return 0, err
		}
		count = frame.NumRows()
		frame.Release()
	}

	if sb.limit != nil && *sb.limit < count {
		count = max(*sb.limit, 0)
	}
	return count, nil
}

// readDataFile reads a parquet data file into a frame with the given
// schema. Columns missing from the file are filled with NULL.
func (t *Table) readDataFile(ctx context.Context, path string, schema *arrow.Schema) (*Frame, error) {
	data, err := io.ReadFile(ctx, t.fileIO, path)
	if err != nil {
		return nil, err
	}

	pqReader, err := file.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file %s: %w", path, err)
	}
	defer pqReader.Close()

	mem := memory.NewGoAllocator()
	arrowReader, err := pqarrow.NewFileReader(pqReader, pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		return nil, fmt.Errorf("failed to create arrow reader: %w", err)
	}

	tbl, err := arrowReader.ReadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet file %s: %w", path, err)
	}
	defer tbl.Release()

	rows := int(tbl.NumRows())
	cols := make([]arrow.Array, len(schema.Fields()))
	defer releaseArrays(cols)

	for i, field := range schema.Fields() {
		idx := tbl.Schema().FieldIndices(field.Name)
		if len(idx) == 0 {
			cols[i] = array.MakeArrayOfNull(mem, field.Type, rows)
			continue
		}
		col := tbl.Column(idx[0])
		if !arrow.TypeEqual(col.DataType(), field.Type) {
			return nil, fmt.Errorf("%w: file %s column %q has type %s, want %s",
				ErrSchemaMismatch, path, field.Name, col.DataType(), field.Type)
		}
		arr, err := concatChunks(mem, field.Type, col.Data().Chunks())
		if err != nil {
			return nil, fmt.Errorf("failed to concatenate column %q: %w", field.Name, err)
		}
		cols[i] = arr
	}
	return NewFrame(schema, cols)
}
