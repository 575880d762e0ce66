package table

import (
	"fmt"
	"slices"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Frame is an immutable, fully materialized set of rows held as arrow
// arrays, one per column. Every transformation returns a new Frame and
// leaves the receiver untouched. Release frees the arrays.
type Frame struct {
	mem    memory.Allocator
	schema *arrow.Schema
	cols   []arrow.Array
	rows   int
}

// NewFrame creates a frame from column arrays. The arrays are retained.
func NewFrame(schema *arrow.Schema, cols []arrow.Array) (*Frame, error) {
	if len(cols) != len(schema.Fields()) {
		return nil, fmt.Errorf("%w: %d columns for %d fields", ErrSchemaMismatch, len(cols), len(schema.Fields()))
	}

	rows := 0
	for i, col := range cols {
		if i == 0 {
			rows = col.Len()
		} else if col.Len() != rows {
			return nil, fmt.Errorf("%w: column %q has %d rows, want %d",
				ErrSchemaMismatch, schema.Field(i).Name, col.Len(), rows)
		}
	}

	for _, col := range cols {
		col.Retain()
	}
	return &Frame{
		mem:    memory.NewGoAllocator(),
		schema: schema,
		cols:   cols,
		rows:   rows,
	}, nil
}

// NewFrameFromRecords concatenates records sharing schema into a frame.
func NewFrameFromRecords(schema *arrow.Schema, recs ...arrow.Record) (*Frame, error) {
	mem := memory.NewGoAllocator()
	cols := make([]arrow.Array, len(schema.Fields()))
	defer releaseArrays(cols)

	for i, field := range schema.Fields() {
		chunks := make([]arrow.Array, 0, len(recs))
		for _, rec := range recs {
			if !rec.Schema().Equal(schema) {
				return nil, fmt.Errorf("%w: record schema %s", ErrSchemaMismatch, rec.Schema())
			}
			chunks = append(chunks, rec.Column(i))
		}
		col, err := concatChunks(mem, field.Type, chunks)
		if err != nil {
			return nil, fmt.Errorf("failed to concatenate column %q: %w", field.Name, err)
		}
		cols[i] = col
	}
	return NewFrame(schema, cols)
}

// newFrameFromTable concatenates the chunks of an arrow table.
func newFrameFromTable(tbl arrow.Table) (*Frame, error) {
	mem := memory.NewGoAllocator()
	cols := make([]arrow.Array, tbl.NumCols())
	defer releaseArrays(cols)

	for i := range cols {
		col := tbl.Column(i)
		arr, err := concatChunks(mem, col.DataType(), col.Data().Chunks())
		if err != nil {
			return nil, fmt.Errorf("failed to concatenate column %q: %w", col.Name(), err)
		}
		cols[i] = arr
	}
	return NewFrame(tbl.Schema(), cols)
}

// EmptyFrame returns a frame with the given schema and no rows.
func EmptyFrame(schema *arrow.Schema) *Frame {
	mem := memory.NewGoAllocator()
	cols := make([]arrow.Array, len(schema.Fields()))
	for i, field := range schema.Fields() {
		cols[i] = emptyArray(mem, field.Type)
	}
	return &Frame{mem: mem, schema: schema, cols: cols}
}

func concatChunks(mem memory.Allocator, dt arrow.DataType, chunks []arrow.Array) (arrow.Array, error) {
	switch len(chunks) {
	case 0:
		return emptyArray(mem, dt), nil
	case 1:
		chunks[0].Retain()
		return chunks[0], nil
	}
	return array.Concatenate(chunks, mem)
}

func emptyArray(mem memory.Allocator, dt arrow.DataType) arrow.Array {
	b := array.NewBuilder(mem, dt)
	defer b.Release()
	return b.NewArray()
}

func releaseArrays(arrs []arrow.Array) {
	for _, a := range arrs {
		if a != nil {
			a.Release()
		}
	}
}

// Schema returns the arrow schema of the frame.
func (f *Frame) Schema() *arrow.Schema { return f.schema }

// NumRows returns the number of rows.
func (f *Frame) NumRows() int64 { return int64(f.rows) }

// Columns returns the column names in order.
func (f *Frame) Columns() []string {
	names := make([]string, len(f.schema.Fields()))
	for i, field := range f.schema.Fields() {
		names[i] = field.Name
	}
	return names
}

// Column returns the array of the named column, or nil.
func (f *Frame) Column(name string) arrow.Array {
	idx := f.schema.FieldIndices(name)
	if len(idx) == 0 {
		return nil
	}
	return f.cols[idx[0]]
}

func (f *Frame) lookup(names []string) ([]int, error) {
	return fieldIndices(f.schema, names)
}

// fieldIndices resolves names against schema, reporting every missing one.
func fieldIndices(schema *arrow.Schema, names []string) ([]int, error) {
	indices := make([]int, len(names))
	var missing []string
	for i, name := range names {
		idx := schema.FieldIndices(name)
		if len(idx) == 0 {
			missing = append(missing, name)
			continue
		}
		indices[i] = idx[0]
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrColumnNotFound, missing)
	}
	return indices, nil
}

// Record returns the frame as a single record. The caller must release it.
func (f *Frame) Record() arrow.Record {
	return array.NewRecord(f.schema, f.cols, int64(f.rows))
}

// Rows returns every row as a slice of Go values, NULL as nil.
func (f *Frame) Rows() [][]any {
	out := make([][]any, f.rows)
	for r := range out {
		row := make([]any, len(f.cols))
		for c, col := range f.cols {
			row[c] = getValueAt(col, r)
		}
		out[r] = row
	}
	return out
}

// Release releases the column arrays.
func (f *Frame) Release() {
	releaseArrays(f.cols)
	f.cols = nil
	f.rows = 0
}

// Project keeps the named columns, in the given order.
func (f *Frame) Project(columns ...string) (*Frame, error) {
	indices, err := f.lookup(columns)
	if err != nil {
		return nil, err
	}

	fields := make([]arrow.Field, len(indices))
	cols := make([]arrow.Array, len(indices))
	for i, idx := range indices {
		fields[i] = f.schema.Field(idx)
		cols[i] = f.cols[idx]
	}
	return NewFrame(arrow.NewSchema(fields, nil), cols)
}

// Filter keeps the rows for which expr matches.
func (f *Frame) Filter(expr *Expression) (*Frame, error) {
	if _, err := f.lookup(expr.GetReferencedColumns()); err != nil {
		return nil, err
	}

	rec := f.Record()
	defer rec.Release()

	keep := make([]int, 0, f.rows)
	for i := 0; i < f.rows; i++ {
		if expr.Matches(rec, i) {
			keep = append(keep, i)
		}
	}
	return f.take(keep)
}

// Distinct removes duplicate rows, keeping the first occurrence of each.
// NULLs compare equal to each other here.
func (f *Frame) Distinct() (*Frame, error) {
	seen := make(map[string]struct{}, f.rows)
	keep := make([]int, 0, f.rows)

	var buf []byte
	for i := 0; i < f.rows; i++ {
		buf, _ = rowKey(buf, f.cols, i)
		if _, ok := seen[string(buf)]; ok {
			continue
		}
		seen[string(buf)] = struct{}{}
		keep = append(keep, i)
	}
	return f.take(keep)
}

// WindowCount appends an int64 column named as holding, for each row, the
// number of rows sharing its partitionBy values.
func (f *Frame) WindowCount(partitionBy []string, as string) (*Frame, error) {
	groups, err := f.partition(partitionBy, as)
	if err != nil {
		return nil, err
	}

	counts := make([]int64, f.rows)
	for _, rows := range groups {
		for _, r := range rows {
			counts[r] = int64(len(rows))
		}
	}
	return f.withInt64Column(as, counts)
}

// WindowRank appends an int64 column named as numbering the rows of each
// partitionBy group from 1 in ascending orderBy order. NULL sorts first and
// ties keep their input order, so every rank within a group is distinct.
func (f *Frame) WindowRank(partitionBy []string, orderBy, as string) (*Frame, error) {
	groups, err := f.partition(partitionBy, as)
	if err != nil {
		return nil, err
	}
	order := f.Column(orderBy)
	if order == nil {
		return nil, fmt.Errorf("%w: [%s]", ErrColumnNotFound, orderBy)
	}

	ranks := make([]int64, f.rows)
	for _, rows := range groups {
		slices.SortStableFunc(rows, func(a, b int) int {
			return compareAt(order, a, b)
		})
		for i, r := range rows {
			ranks[r] = int64(i + 1)
		}
	}
	return f.withInt64Column(as, ranks)
}

// partition groups row indices by their partitionBy values. Each group
// lists rows in input order.
func (f *Frame) partition(partitionBy []string, as string) ([][]int, error) {
	if len(partitionBy) == 0 {
		return nil, fmt.Errorf("%w: no partition columns", ErrColumnNotFound)
	}
	if f.Column(as) != nil {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, as)
	}
	indices, err := f.lookup(partitionBy)
	if err != nil {
		return nil, err
	}
	keyCols := make([]arrow.Array, len(indices))
	for i, idx := range indices {
		keyCols[i] = f.cols[idx]
	}

	slot := make(map[string]int)
	var groups [][]int
	var buf []byte
	for i := 0; i < f.rows; i++ {
		buf, _ = rowKey(buf, keyCols, i)
		g, ok := slot[string(buf)]
		if !ok {
			g = len(groups)
			slot[string(buf)] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	return groups, nil
}

func (f *Frame) withInt64Column(name string, values []int64) (*Frame, error) {
	b := array.NewInt64Builder(f.mem)
	defer b.Release()
	b.AppendValues(values, nil)
	col := b.NewArray()
	defer col.Release()

	fields := append(slices.Clone(f.schema.Fields()), arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Int64})
	cols := append(slices.Clone(f.cols), col)
	return NewFrame(arrow.NewSchema(fields, nil), cols)
}

// head returns the first n rows.
func (f *Frame) head(n int) (*Frame, error) {
	n = min(n, f.rows)
	cols := make([]arrow.Array, len(f.cols))
	defer releaseArrays(cols)
	for i, col := range f.cols {
		cols[i] = array.NewSlice(col, 0, int64(n))
	}
	return NewFrame(f.schema, cols)
}

// take builds a frame from the given rows, in order.
func (f *Frame) take(rows []int) (*Frame, error) {
	cols := make([]arrow.Array, len(f.cols))
	defer releaseArrays(cols)

	for c, col := range f.cols {
		b := array.NewBuilder(f.mem, col.DataType())
		b.Reserve(len(rows))
		for _, r := range rows {
			appendValue(b, col, r)
		}
		cols[c] = b.NewArray()
		b.Release()
	}
	return NewFrame(f.schema, cols)
}
