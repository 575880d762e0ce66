package table

import (
	"context"
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
)

// Default aliases of the merge target and source in a merge condition.
const (
	TargetAlias = "old"
	SourceAlias = "new"
)

// ErrNoMergeAction is returned when a merge is committed without any
// WHEN MATCHED clause.
var ErrNoMergeAction = errors.New("merge has no action")

// MergeBuilder builds a merge of a source frame into the table. Only the
// delete-when-matched action is supported.
type MergeBuilder struct {
	table         *Table
	source        *Frame
	cond          *Expression
	targetAlias   string
	sourceAlias   string
	deleteMatched bool
}

// MergeResult describes a committed merge.
type MergeResult struct {
	// Version is the table version after the merge. When no target row
	// matched no commit is made and Version is the unchanged current
	// version.
	Version        int64
	DeletedRows    int64
	RewrittenFiles int
	Committed      bool
}

// Merge starts a merge of source into the table on cond. The condition
// must be an AND of equalities between old.<target column> and
// new.<source column>, e.g. Col("old.id").EqCol("new.id").
func (t *Table) Merge(source *Frame, cond *Expression) *MergeBuilder {
	return &MergeBuilder{
		table:       t,
		source:      source,
		cond:        cond,
		targetAlias: TargetAlias,
		sourceAlias: SourceAlias,
	}
}

// WithAliases changes the aliases used in the condition.
func (m *MergeBuilder) WithAliases(target, source string) *MergeBuilder {
	m.targetAlias = target
	m.sourceAlias = source
	return m
}

// WhenMatchedDelete deletes every target row matching a source row.
func (m *MergeBuilder) WhenMatchedDelete() *MergeBuilder {
	m.deleteMatched = true
	return m
}

// Commit executes the merge as one atomic commit. A target row matches
// when all its condition columns equal those of some source row; NULL
// never equals anything.
func (m *MergeBuilder) Commit(ctx context.Context) (*MergeResult, error) {
	if !m.deleteMatched {
		return nil, ErrNoMergeAction
	}
	if m.source == nil {
		return nil, fmt.Errorf("%w: nil source", ErrInvalidCondition)
	}

	pairs, err := m.cond.EquiJoinColumns(m.targetAlias, m.sourceAlias)
	if err != nil {
		return nil, err
	}
	targetCols := make([]string, len(pairs))
	sourceCols := make([]string, len(pairs))
	for i, p := range pairs {
		targetCols[i] = p.Target
		sourceCols[i] = p.Source
	}

	schema := m.table.ArrowSchema()
	if _, err := fieldIndices(schema, targetCols); err != nil {
		return nil, fmt.Errorf("merge target: %w", err)
	}
	srcIdx, err := m.source.lookup(sourceCols)
	if err != nil {
		return nil, fmt.Errorf("merge source: %w", err)
	}

	keys := m.sourceKeys(srcIdx)
	if len(keys) == 0 {
		return &MergeResult{Version: m.table.Version()}, nil
	}

	res, err := m.table.rewrite(ctx, func(rec arrow.Record) func(row int) bool {
		cols := make([]arrow.Array, len(targetCols))
		for i, name := range targetCols {
			cols[i] = recordColumn(rec, name)
		}
		var buf []byte
		return func(row int) bool {
			var hasNull bool
			buf, hasNull = rowKey(buf, cols, row)
			if hasNull {
				return true
			}
			_, matched := keys[string(buf)]
			return !matched
		}
	})
	if err != nil {
		return nil, err
	}

	return &MergeResult{
		Version:        res.Version,
		DeletedRows:    res.DeletedRows,
		RewrittenFiles: res.RewrittenFiles,
		Committed:      res.DeletedRows > 0,
	}, nil
}

// sourceKeys collects the encoded join keys of the source rows. Keys
// containing NULL can never match and are skipped.
func (m *MergeBuilder) sourceKeys(indices []int) map[string]struct{} {
	cols := make([]arrow.Array, len(indices))
	for i, idx := range indices {
		cols[i] = m.source.cols[idx]
	}

	keys := make(map[string]struct{}, m.source.rows)
	var buf []byte
	for row := 0; row < m.source.rows; row++ {
		var hasNull bool
		buf, hasNull = rowKey(buf, cols, row)
		if hasNull {
			continue
		}
		keys[string(buf)] = struct{}{}
	}
	return keys
}
