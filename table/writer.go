package table

import (
	"context"
	"fmt"
	goio "io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/google/uuid"

	"github.com/BrobridgeOrg/go-lakeutil/io"
	"github.com/BrobridgeOrg/go-lakeutil/spec"
)

const defaultMaxRowsPerFile = 1 << 20

// DataWriter writes arrow records as parquet data files under a table
// location.
type DataWriter struct {
	fileIO         io.FileIO
	location       string
	schema         *spec.Schema
	maxRowsPerFile int64
}

// NewDataWriter creates a data writer for a table.
func NewDataWriter(t *Table) *DataWriter {
	return &DataWriter{
		fileIO:         t.fileIO,
		location:       t.Location(),
		schema:         t.Schema(),
		maxRowsPerFile: defaultMaxRowsPerFile,
	}
}

// WithMaxRowsPerFile sets how many rows go into one data file before the
// writer rolls over to a new one.
func (w *DataWriter) WithMaxRowsPerFile(n int64) *DataWriter {
	if n > 0 {
		w.maxRowsPerFile = n
	}
	return w
}

// WriteResult contains information about written data files.
type WriteResult struct {
	DataFiles []spec.DataFile
}

// RecordCount returns the number of rows written.
func (r *WriteResult) RecordCount() int64 {
	var n int64
	for _, f := range r.DataFiles {
		n += f.RecordCount
	}
	return n
}

// Write writes records to one or more parquet files. Empty records are
// skipped; no file is created when there are no rows.
func (w *DataWriter) Write(ctx context.Context, records []arrow.Record) (*WriteResult, error) {
	result := &WriteResult{}

	var batch []arrow.Record
	var batchRows int64
	flush := func() error {
		if batchRows == 0 {
			return nil
		}
		df, err := w.writeFile(ctx, batch)
		for _, rec := range batch {
			rec.Release()
		}
		batch, batchRows = nil, 0
		if err != nil {
			return err
		}
		result.DataFiles = append(result.DataFiles, *df)
		return nil
	}

	for _, rec := range records {
		for off := int64(0); off < rec.NumRows(); {
			n := min(rec.NumRows()-off, w.maxRowsPerFile-batchRows)
			batch = append(batch, rec.NewSlice(off, off+n))
			batchRows += n
			off += n
			if batchRows >= w.maxRowsPerFile {
				if err := flush(); err != nil {
					w.abort(ctx, result)
					return nil, err
				}
			}
		}
	}
	if err := flush(); err != nil {
		w.abort(ctx, result)
		return nil, err
	}
	return result, nil
}

// abort removes data files that will not be committed. A failed Write
// has already removed its own files, including a partial one.
func (w *DataWriter) abort(ctx context.Context, result *WriteResult) {
	for _, f := range result.DataFiles {
		_ = w.fileIO.Delete(ctx, f.FilePath)
	}
}

// writeFile writes records to a single parquet file.
func (w *DataWriter) writeFile(ctx context.Context, records []arrow.Record) (*spec.DataFile, error) {
	filePath := joinLocation(w.location, "data", uuid.NewString()+".parquet")

	out, err := w.fileIO.Create(ctx, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create data file: %w", err)
	}
	sink, err := out.Create(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open data file: %w", err)
	}

	counter := &countingWriter{w: sink}
	pqWriter, err := pqarrow.NewFileWriter(
		records[0].Schema(),
		counter,
		parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy)),
		pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema()),
	)
	if err != nil {
		sink.Close()
		_ = w.fileIO.Delete(ctx, filePath)
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}

	var rows int64
	nulls := make(map[string]int64)
	for _, rec := range records {
		if err := pqWriter.WriteBuffered(rec); err != nil {
			pqWriter.Close()
			sink.Close()
			_ = w.fileIO.Delete(ctx, filePath)
			return nil, fmt.Errorf("failed to write record: %w", err)
		}
		rows += rec.NumRows()
		for i, field := range rec.Schema().Fields() {
			nulls[field.Name] += int64(rec.Column(i).NullN())
		}
	}

	if err := pqWriter.Close(); err != nil {
		sink.Close()
		_ = w.fileIO.Delete(ctx, filePath)
		return nil, fmt.Errorf("failed to close parquet writer: %w", err)
	}
	if err := sink.Close(); err != nil {
		_ = w.fileIO.Delete(ctx, filePath)
		return nil, fmt.Errorf("failed to close data file: %w", err)
	}

	valueCounts := make(map[int]int64, len(w.schema.Fields))
	nullCounts := make(map[int]int64, len(w.schema.Fields))
	for _, field := range w.schema.Fields {
		valueCounts[field.ID] = rows
		nullCounts[field.ID] = nulls[field.Name]
	}

	return &spec.DataFile{
		Content:         spec.FileContentData,
		FilePath:        filePath,
		FileFormat:      spec.FileFormatParquet,
		RecordCount:     rows,
		FileSizeInBytes: counter.n,
		ValueCounts:     valueCounts,
		NullValueCounts: nullCounts,
	}, nil
}

// countingWriter counts bytes and hides Close from the parquet writer so
// the sink is closed exactly once, by the data writer.
type countingWriter struct {
	w goio.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
