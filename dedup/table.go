package dedup

import (
	"context"
	"fmt"

	"github.com/BrobridgeOrg/go-lakeutil/table"
)

// ForTable adapts a table handle to the resolver's Table interface.
func ForTable(t *table.Table) Table {
	return &tableAdapter{t: t}
}

type tableAdapter struct {
	t *table.Table
}

func (a *tableAdapter) History(_ context.Context, n int) ([]HistoryEntry, error) {
	entries := a.t.History(n)
	out := make([]HistoryEntry, len(entries))
	for i, e := range entries {
		out[i] = HistoryEntry{
			Version:   Version(e.Version),
			Timestamp: e.Timestamp,
			Operation: string(e.Operation),
		}
	}
	return out, nil
}

func (a *tableAdapter) Schema() []string {
	return a.t.Schema().ColumnNames()
}

func (a *tableAdapter) Dataset(ctx context.Context) (Dataset, error) {
	f, err := a.t.Scan().ToFrame(ctx)
	if err != nil {
		return nil, err
	}
	return frameDataset{f}, nil
}

func (a *tableAdapter) Merge(source Dataset, cond *table.Expression) Merger {
	return &tableMerger{t: a.t, source: source, cond: cond}
}

type tableMerger struct {
	t             *table.Table
	source        Dataset
	cond          *table.Expression
	deleteMatched bool
}

func (m *tableMerger) WhenMatchedDelete() Merger {
	m.deleteMatched = true
	return m
}

func (m *tableMerger) Commit(ctx context.Context) (MergeResult, error) {
	src, ok := m.source.(frameDataset)
	if !ok {
		return MergeResult{}, fmt.Errorf("merge source %T was not produced by this table", m.source)
	}

	b := m.t.Merge(src.f, m.cond)
	if m.deleteMatched {
		b = b.WhenMatchedDelete()
	}
	res, err := b.Commit(ctx)
	if err != nil {
		return MergeResult{}, err
	}
	return MergeResult{
		Version:     Version(res.Version),
		DeletedRows: res.DeletedRows,
		Committed:   res.Committed,
	}, nil
}

// frameDataset exposes a table.Frame as a Dataset.
type frameDataset struct {
	f *table.Frame
}

func wrap(f *table.Frame, err error) (Dataset, error) {
	if err != nil {
		return nil, err
	}
	return frameDataset{f}, nil
}

func (d frameDataset) Columns() []string { return d.f.Columns() }
func (d frameDataset) NumRows() int64    { return d.f.NumRows() }
func (d frameDataset) Release()          { d.f.Release() }

func (d frameDataset) Project(columns ...string) (Dataset, error) {
	return wrap(d.f.Project(columns...))
}

func (d frameDataset) Filter(expr *table.Expression) (Dataset, error) {
	return wrap(d.f.Filter(expr))
}

func (d frameDataset) Distinct() (Dataset, error) {
	return wrap(d.f.Distinct())
}

func (d frameDataset) WindowCount(partitionBy []string, as string) (Dataset, error) {
	return wrap(d.f.WindowCount(partitionBy, as))
}

func (d frameDataset) WindowRank(partitionBy []string, orderBy, as string) (Dataset, error) {
	return wrap(d.f.WindowRank(partitionBy, orderBy, as))
}
