package dedup

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
	"github.com/BrobridgeOrg/go-lakeutil/table"
)

var idASchema = spec.NewSchema(0, []spec.NestedField{
	{ID: 1, Name: "id", Type: spec.LongType},
	{ID: 2, Name: "a", Type: spec.StringType},
})

// buildRecord builds a record of int64 and string columns; nil is NULL.
func buildRecord(t testing.TB, schema *arrow.Schema, rows [][]any) arrow.Record {
	t.Helper()
	b := array.NewRecordBuilder(memory.NewGoAllocator(), schema)
	defer b.Release()

	for _, row := range rows {
		for i, v := range row {
			switch fb := b.Field(i).(type) {
			case *array.Int64Builder:
				if v == nil {
					fb.AppendNull()
				} else {
					fb.Append(toInt64(v))
				}
			case *array.StringBuilder:
				if v == nil {
					fb.AppendNull()
				} else {
					fb.Append(v.(string))
				}
			default:
				t.Fatalf("unsupported builder %T", fb)
			}
		}
	}
	return b.NewRecord()
}

func toInt64(v any) int64 {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int64:
		return x
	}
	panic("not an integer")
}

func buildFrame(t testing.TB, schema *arrow.Schema, rows [][]any) *table.Frame {
	t.Helper()
	rec := buildRecord(t, schema, rows)
	defer rec.Release()
	f, err := table.NewFrameFromRecords(schema, rec)
	require.NoError(t, err)
	return f
}

// newRealTable creates db.t holding rows in a SQLite catalog over a temp
// warehouse.
func newRealTable(t *testing.T, rows [][]any) *table.Table {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	fileIO := io.NewLocalFileIO()

	cat, err := catalog.NewSQLCatalog(filepath.Join(dir, "catalog.db"), filepath.Join(dir, "warehouse"), fileIO)
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })

	id := catalog.TableIdentifier{Namespace: catalog.Namespace{"db"}, Name: "t"}
	require.NoError(t, cat.CreateNamespace(ctx, id.Namespace, nil))
	_, err = cat.CreateTable(ctx, id, idASchema)
	require.NoError(t, err)

	tbl, err := table.Load(ctx, cat, fileIO, id)
	require.NoError(t, err)

	if len(rows) > 0 {
		rec := buildRecord(t, tbl.ArrowSchema(), rows)
		defer rec.Release()
		_, err = tbl.Insert(ctx, []arrow.Record{rec})
		require.NoError(t, err)
	}
	return tbl
}

func tableRows(t *testing.T, tbl *table.Table) [][]any {
	t.Helper()
	f, err := tbl.Scan().ToFrame(context.Background())
	require.NoError(t, err)
	defer f.Release()
	return f.Rows()
}
