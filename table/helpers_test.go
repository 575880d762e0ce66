package table

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"

	"github.com/BrobridgeOrg/go-lakeutil/catalog"
	"github.com/BrobridgeOrg/go-lakeutil/io"
	"github.com/BrobridgeOrg/go-lakeutil/spec"
)

// buildRecord builds a record from Go values; nil appends NULL.
func buildRecord(t testing.TB, schema *arrow.Schema, rows [][]any) arrow.Record {
	t.Helper()
	b := array.NewRecordBuilder(memory.NewGoAllocator(), schema)
	defer b.Release()

	for _, row := range rows {
		require.Len(t, row, len(schema.Fields()))
		for i, v := range row {
			fb := b.Field(i)
			if v == nil {
				fb.AppendNull()
				continue
			}
			switch fb := fb.(type) {
			case *array.Int64Builder:
				fb.Append(int64(v.(int)))
			case *array.Int32Builder:
				fb.Append(int32(v.(int)))
			case *array.Float64Builder:
				fb.Append(v.(float64))
			case *array.StringBuilder:
				fb.Append(v.(string))
			case *array.BooleanBuilder:
				fb.Append(v.(bool))
			default:
				t.Fatalf("unsupported builder %T", fb)
			}
		}
	}
	return b.NewRecord()
}

func buildFrame(t testing.TB, schema *arrow.Schema, rows [][]any) *Frame {
	t.Helper()
	rec := buildRecord(t, schema, rows)
	defer rec.Release()
	f, err := NewFrameFromRecords(schema, rec)
	require.NoError(t, err)
	t.Cleanup(f.Release)
	return f
}

// idAKSchema is (id long required, a string, k string).
func idAKSchema() *spec.Schema {
	return spec.NewSchema(0, []spec.NestedField{
		{ID: 1, Name: "id", Type: spec.LongType, Required: true},
		{ID: 2, Name: "a", Type: spec.StringType},
		{ID: 3, Name: "k", Type: spec.StringType},
	})
}

// newTestTable creates db.t in a SQLite catalog over a temp warehouse.
func newTestTable(t *testing.T, schema *spec.Schema) *Table {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	fileIO := io.NewLocalFileIO()

	cat, err := catalog.NewSQLCatalog(filepath.Join(dir, "catalog.db"), filepath.Join(dir, "warehouse"), fileIO)
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })

	require.NoError(t, cat.CreateNamespace(ctx, catalog.Namespace{"db"}, nil))
	id := catalog.TableIdentifier{Namespace: catalog.Namespace{"db"}, Name: "t"}
	_, err = cat.CreateTable(ctx, id, schema)
	require.NoError(t, err)

	tbl, err := Load(ctx, cat, fileIO, id, WithConcurrency(2))
	require.NoError(t, err)
	return tbl
}

// insertRows appends rows in one commit, one data file per call.
func insertRows(t *testing.T, tbl *Table, rows [][]any) *spec.Snapshot {
	t.Helper()
	rec := buildRecord(t, tbl.ArrowSchema(), rows)
	defer rec.Release()
	snap, err := tbl.Insert(context.Background(), []arrow.Record{rec})
	require.NoError(t, err)
	return snap
}

func scanRows(t *testing.T, tbl *Table) [][]any {
	t.Helper()
	f, err := tbl.Scan().ToFrame(context.Background())
	require.NoError(t, err)
	defer f.Release()
	return f.Rows()
}
