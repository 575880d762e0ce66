package table

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/BrobridgeOrg/go-lakeutil/spec"
)

// DeleteResult describes a committed delete.
type DeleteResult struct {
	// Version is the table version after the delete. When nothing matched
	// no commit is made and Version is the unchanged current version.
	Version        int64
	DeletedRows    int64
	RewrittenFiles int
	AddedFiles     int
}

// Delete removes every row matching filter by rewriting the data files
// that hold such rows. Rows where filter evaluates against NULL are kept.
func (t *Table) Delete(ctx context.Context, filter *Expression) (*DeleteResult, error) {
	if filter == nil {
		return nil, fmt.Errorf("%w: delete requires a filter", ErrInvalidCondition)
	}
	if _, err := fieldIndices(t.ArrowSchema(), filter.GetReferencedColumns()); err != nil {
		return nil, err
	}

	return t.rewrite(ctx, func(rec arrow.Record) func(row int) bool {
		return func(row int) bool {
			return !filter.Matches(rec, row)
		}
	})
}

// keepFunc returns, for one data file's rows, whether a row survives.
type keepFunc func(rec arrow.Record) func(row int) bool

// fileRewrite is the outcome of rewriting one data file.
type fileRewrite struct {
	old     spec.DataFile
	added   []spec.DataFile
	deleted int64
}

// rewrite applies a copy-on-write delete: each live file with at least one
// dropped row is replaced by a file holding only its surviving rows, and
// all replacements are committed as one snapshot.
func (t *Table) rewrite(ctx context.Context, keep keepFunc) (*DeleteResult, error) {
	tasks, err := t.Scan().PlanFiles(ctx)
	if err != nil {
		return nil, err
	}

	schema := t.ArrowSchema()
	writer := NewDataWriter(t)
	rewrites := make([]*fileRewrite, len(tasks))
	var deleted atomic.Int64

	err = runParallel(ctx, t.concurrency, len(tasks), func(ctx context.Context, i int) error {
		rw, err := t.rewriteFile(ctx, writer, tasks[i].File, schema, keep)
		if err != nil {
			return fmt.Errorf("failed to rewrite %s: %w", tasks[i].File.FilePath, err)
		}
		if rw != nil {
			rewrites[i] = rw
			deleted.Add(rw.deleted)
		}
		return nil
	})

	// runParallel waits for every started task, so rewrites holds all
	// files written by tasks that succeeded. A failed task's writer has
	// already removed its own output.
	written := &WriteResult{}
	for _, rw := range rewrites {
		if rw != nil {
			written.DataFiles = append(written.DataFiles, rw.added...)
		}
	}
	if err != nil {
		writer.abort(ctx, written)
		return nil, err
	}

	result := &DeleteResult{Version: t.Version(), DeletedRows: deleted.Load()}
	if result.DeletedRows == 0 {
		return result, nil
	}

	op := spec.OpDelete
	if len(written.DataFiles) > 0 {
		op = spec.OpOverwrite
	}
	tx := t.NewTransaction()
	builder := tx.NewSnapshot(op).AddDataFile(written.DataFiles...)
	for _, rw := range rewrites {
		if rw != nil {
			builder.DeleteDataFile(rw.old.FilePath)
			result.RewrittenFiles++
		}
	}
	result.AddedFiles = len(written.DataFiles)

	snapshot, err := tx.Commit(ctx)
	if err != nil {
		writer.abort(ctx, written)
		return nil, err
	}
	result.Version = snapshot.SequenceNumber
	return result, nil
}

// rewriteFile returns nil when every row of the file survives.
func (t *Table) rewriteFile(ctx context.Context, writer *DataWriter, df spec.DataFile, schema *arrow.Schema, keep keepFunc) (*fileRewrite, error) {
	frame, err := t.readDataFile(ctx, df.FilePath, schema)
	if err != nil {
		return nil, err
	}
	defer frame.Release()

	rec := frame.Record()
	keepRow := keep(rec)
	rows := make([]int, 0, frame.rows)
	for i := 0; i < frame.rows; i++ {
		if keepRow(i) {
			rows = append(rows, i)
		}
	}
	rec.Release()

	if len(rows) == frame.rows {
		return nil, nil
	}
	rw := &fileRewrite{old: df, deleted: int64(frame.rows - len(rows))}
	if len(rows) == 0 {
		return rw, nil
	}

	survivors, err := frame.take(rows)
	if err != nil {
		return nil, err
	}
	defer survivors.Release()

	out := survivors.Record()
	defer out.Release()
	res, err := writer.Write(ctx, []arrow.Record{out})
	if err != nil {
		return nil, err
	}
	rw.added = res.DataFiles
	return rw, nil
}
