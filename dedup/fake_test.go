package dedup

import (
	"context"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/BrobridgeOrg/go-lakeutil/table"
)

// fakeTable keeps rows in memory and applies merges directly, recording
// every call the resolver makes.
type fakeTable struct {
	t       testing.TB
	schema  *arrow.Schema
	rows    [][]any
	history []HistoryEntry

	historyErr error
	commitErr  error

	datasetCalls int
	merges       []fakeMerge
}

type fakeMerge struct {
	cond          string
	sourceCols    []string
	sourceRows    [][]any
	deleteMatched bool
}

func newFakeTable(t testing.TB, rows [][]any) *fakeTable {
	return &fakeTable{
		t: t,
		schema: arrow.NewSchema([]arrow.Field{
			{Name: "id", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
			{Name: "a", Type: arrow.BinaryTypes.String, Nullable: true},
		}, nil),
		rows: rows,
	}
}

func (f *fakeTable) History(_ context.Context, n int) ([]HistoryEntry, error) {
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.history[:min(n, len(f.history))], nil
}

func (f *fakeTable) Schema() []string {
	names := make([]string, len(f.schema.Fields()))
	for i, field := range f.schema.Fields() {
		names[i] = field.Name
	}
	return names
}

func (f *fakeTable) Dataset(context.Context) (Dataset, error) {
	f.datasetCalls++
	return frameDataset{buildFrame(f.t, f.schema, f.rows)}, nil
}

func (f *fakeTable) Merge(source Dataset, cond *table.Expression) Merger {
	return &fakeMerger{table: f, source: source, cond: cond}
}

type fakeMerger struct {
	table         *fakeTable
	source        Dataset
	cond          *table.Expression
	deleteMatched bool
}

func (m *fakeMerger) WhenMatchedDelete() Merger {
	m.deleteMatched = true
	return m
}

func (m *fakeMerger) Commit(context.Context) (MergeResult, error) {
	f := m.table
	src := m.source.(frameDataset).f
	f.merges = append(f.merges, fakeMerge{
		cond:          m.cond.String(),
		sourceCols:    src.Columns(),
		sourceRows:    src.Rows(),
		deleteMatched: m.deleteMatched,
	})
	if f.commitErr != nil {
		return MergeResult{}, f.commitErr
	}

	pairs, err := m.cond.EquiJoinColumns(table.TargetAlias, table.SourceAlias)
	if err != nil {
		return MergeResult{}, err
	}
	targetIdx := func(name string) int {
		return f.schema.FieldIndices(name)[0]
	}
	sourceIdx := func(name string) int {
		return src.Schema().FieldIndices(name)[0]
	}

	var kept [][]any
	var deleted int64
	for _, row := range f.rows {
		matched := false
		for _, s := range src.Rows() {
			all := true
			for _, p := range pairs {
				tv, sv := row[targetIdx(p.Target)], s[sourceIdx(p.Source)]
				if tv == nil || sv == nil || normalize(tv) != normalize(sv) {
					all = false
					break
				}
			}
			if all {
				matched = true
				break
			}
		}
		if matched && m.deleteMatched {
			deleted++
			continue
		}
		kept = append(kept, row)
	}
	f.rows = kept

	if deleted == 0 {
		return MergeResult{}, nil
	}
	v := Version(len(f.history) + 1)
	f.history = append([]HistoryEntry{{Version: v, Operation: "delete"}}, f.history...)
	return MergeResult{Version: v, DeletedRows: deleted, Committed: true}, nil
}

func normalize(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	}
	return v
}
