package dedup

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrobridgeOrg/go-lakeutil/internal/logger"
	"github.com/BrobridgeOrg/go-lakeutil/table"
)

func quietResolver(opts ...Option) *Resolver {
	var buf bytes.Buffer
	return NewResolver(append([]Option{WithLogger(logger.New(logger.Config{Output: &buf}))}, opts...)...)
}

func exampleRows() [][]any {
	return [][]any{{1, "x"}, {2, "x"}, {3, "y"}}
}

func TestLatestVersion(t *testing.T) {
	ctx := context.Background()
	fake := newFakeTable(t, nil)
	fake.history = []HistoryEntry{{Version: 3}, {Version: 2}, {Version: 1}}

	v, err := LatestVersion(ctx, fake)
	require.NoError(t, err)
	assert.Equal(t, Version(3), v)
}

func TestLatestVersion_NoHistory(t *testing.T) {
	_, err := LatestVersion(context.Background(), newFakeTable(t, nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)

	var nf *NotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestLatestVersion_PropagatesEngineError(t *testing.T) {
	boom := errors.New("boom")
	fake := newFakeTable(t, nil)
	fake.historyErr = boom

	_, err := LatestVersion(context.Background(), fake)
	assert.ErrorIs(t, err, boom)
}

func TestRemoveAllDuplicates_Example(t *testing.T) {
	fake := newFakeTable(t, exampleRows())

	require.NoError(t, quietResolver().RemoveAllDuplicates(context.Background(), fake, []string{"a"}))

	assert.Equal(t, [][]any{{3, "y"}}, fake.rows)
	require.Len(t, fake.merges, 1)
	m := fake.merges[0]
	assert.Equal(t, "(old.a = new.a)", m.cond)
	assert.Equal(t, []string{"a"}, m.sourceCols)
	assert.Equal(t, [][]any{{"x"}}, m.sourceRows)
	assert.True(t, m.deleteMatched)
}

func TestRemoveAllDuplicates_CompositeKey(t *testing.T) {
	fake := newFakeTable(t, [][]any{
		{1, "x"}, {1, "x"}, {1, "y"}, {2, "x"}, {2, "x"}, {2, "x"},
	})

	require.NoError(t, quietResolver().RemoveAllDuplicates(context.Background(), fake, []string{"id", "a"}))

	assert.Equal(t, [][]any{{1, "y"}}, fake.rows)
	require.Len(t, fake.merges, 1)
	assert.Equal(t, "(old.id = new.id AND old.a = new.a)", fake.merges[0].cond)
	assert.ElementsMatch(t, [][]any{{int64(1), "x"}, {int64(2), "x"}}, fake.merges[0].sourceRows)
}

func TestRemoveAllDuplicates_NoDuplicatesSkipsMerge(t *testing.T) {
	fake := newFakeTable(t, exampleRows())

	require.NoError(t, quietResolver().RemoveAllDuplicates(context.Background(), fake, []string{"id"}))
	assert.Empty(t, fake.merges)
	assert.Len(t, fake.rows, 3)
}

func TestRemoveAllDuplicates_NullKeysNeverMatch(t *testing.T) {
	fake := newFakeTable(t, [][]any{{1, nil}, {2, nil}, {3, "y"}})

	require.NoError(t, quietResolver().RemoveAllDuplicates(context.Background(), fake, []string{"a"}))
	assert.Len(t, fake.rows, 3)
}

func TestRemoveAllDuplicates_Validation(t *testing.T) {
	ctx := context.Background()
	r := quietResolver()

	for _, key := range [][]string{nil, {}} {
		fake := newFakeTable(t, exampleRows())
		err := r.RemoveAllDuplicates(ctx, fake, key)
		assert.ErrorIs(t, err, ErrInvalidArgument)
		var ia *InvalidArgumentError
		assert.True(t, errors.As(err, &ia))
		assert.Zero(t, fake.datasetCalls)
		assert.Empty(t, fake.merges)
	}

	fake := newFakeTable(t, exampleRows())
	err := r.RemoveAllDuplicates(ctx, fake, []string{"a", "b", "c", "b"})
	assert.ErrorIs(t, err, ErrSchemaMismatch)
	var sm *SchemaMismatchError
	require.True(t, errors.As(err, &sm))
	assert.Equal(t, []string{"b", "c"}, sm.Missing)
	assert.Zero(t, fake.datasetCalls)
	assert.Empty(t, fake.merges)
}

func TestRemoveAllDuplicates_PropagatesCommitError(t *testing.T) {
	conflict := errors.New("commit conflict")
	fake := newFakeTable(t, exampleRows())
	fake.commitErr = conflict

	err := quietResolver().RemoveAllDuplicates(context.Background(), fake, []string{"a"})
	assert.ErrorIs(t, err, conflict)
	assert.Len(t, fake.merges, 1)
}

func TestRemoveDuplicatesKeepOne_Example(t *testing.T) {
	fake := newFakeTable(t, exampleRows())

	require.NoError(t, quietResolver().RemoveDuplicatesKeepOne(context.Background(), fake, "id", "a"))

	assert.Equal(t, [][]any{{1, "x"}, {3, "y"}}, fake.rows)
	require.Len(t, fake.merges, 1)
	assert.Equal(t, "(old.id = new.id AND old.a = new.a)", fake.merges[0].cond)
	assert.Equal(t, [][]any{{int64(2), "x"}}, fake.merges[0].sourceRows)
}

func TestRemoveDuplicatesKeepOne_KeepsSmallestPrimaryKey(t *testing.T) {
	fake := newFakeTable(t, [][]any{{7, "x"}, {5, "x"}, {9, "x"}, {4, "y"}, {2, "y"}})

	require.NoError(t, quietResolver().RemoveDuplicatesKeepOne(context.Background(), fake, "id", "a"))
	assert.Equal(t, [][]any{{5, "x"}, {2, "y"}}, fake.rows)
}

func TestRemoveDuplicatesKeepOne_PrimaryKeyOnlyOverDeletes(t *testing.T) {
	// Without extra columns the group is the primary key itself, so the
	// surplus copy of id 1 matches its survivor as well.
	fake := newFakeTable(t, [][]any{{1, "x"}, {1, "y"}, {2, "z"}})

	require.NoError(t, quietResolver().RemoveDuplicatesKeepOne(context.Background(), fake, "id"))
	assert.Equal(t, "(old.id = new.id)", fake.merges[0].cond)
	assert.Equal(t, [][]any{{2, "z"}}, fake.rows)
}

func TestRemoveDuplicatesKeepOne_PrimaryKeyRepeatedInExtra(t *testing.T) {
	fake := newFakeTable(t, exampleRows())

	require.NoError(t, quietResolver().RemoveDuplicatesKeepOne(context.Background(), fake, "id", "a", "id"))
	require.Len(t, fake.merges, 0)

	fake = newFakeTable(t, [][]any{{1, "x"}, {1, "x"}})
	require.NoError(t, quietResolver().RemoveDuplicatesKeepOne(context.Background(), fake, "id", "id", "a"))
	require.Len(t, fake.merges, 1)
	assert.Equal(t, "(old.id = new.id AND old.a = new.a)", fake.merges[0].cond)
	assert.Empty(t, fake.rows)
}

func TestRemoveDuplicatesKeepOne_Validation(t *testing.T) {
	ctx := context.Background()

	fake := newFakeTable(t, exampleRows())
	err := quietResolver().RemoveDuplicatesKeepOne(ctx, fake, "")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Zero(t, fake.datasetCalls)

	fake = newFakeTable(t, exampleRows())
	err = quietResolver().RemoveDuplicatesKeepOne(ctx, fake, "id", "nope")
	var sm *SchemaMismatchError
	require.True(t, errors.As(err, &sm))
	assert.Equal(t, []string{"nope"}, sm.Missing)
	assert.Zero(t, fake.datasetCalls)

	fake = newFakeTable(t, exampleRows())
	err = quietResolver().RemoveDuplicatesKeepOne(ctx, fake, "pk", "a")
	require.True(t, errors.As(err, &sm))
	assert.Equal(t, []string{"pk"}, sm.Missing)
	assert.Zero(t, fake.datasetCalls)
}

func TestRemoveDuplicatesKeepOne_WithoutPrimaryKeyValidation(t *testing.T) {
	fake := newFakeTable(t, exampleRows())
	r := quietResolver(WithPrimaryKeyValidation(false))

	err := r.RemoveDuplicatesKeepOne(context.Background(), fake, "pk", "a")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSchemaMismatch)
	assert.ErrorIs(t, err, table.ErrColumnNotFound)
	assert.Equal(t, 1, fake.datasetCalls)
	assert.Empty(t, fake.merges)
}

func TestResolver_UserColumnsNamedLikeHelpers(t *testing.T) {
	newTable := func() *fakeTable {
		fake := newFakeTable(t, [][]any{{1, "x", 7, 7}, {2, "x", 7, 8}, {3, "y", 9, 9}})
		fake.schema = arrow.NewSchema([]arrow.Field{
			{Name: "id", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
			{Name: "a", Type: arrow.BinaryTypes.String, Nullable: true},
			{Name: dupCountColumn, Type: arrow.PrimitiveTypes.Int64, Nullable: true},
			{Name: dupRankColumn, Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		}, nil)
		return fake
	}
	ctx := context.Background()

	fake := newTable()
	require.NoError(t, quietResolver().RemoveAllDuplicates(ctx, fake, []string{"a"}))
	assert.Equal(t, [][]any{{3, "y", 9, 9}}, fake.rows)
	require.Len(t, fake.merges, 1)
	assert.Equal(t, []string{"a"}, fake.merges[0].sourceCols)

	fake = newTable()
	require.NoError(t, quietResolver().RemoveDuplicatesKeepOne(ctx, fake, "id", dupCountColumn))
	assert.Equal(t, [][]any{{1, "x", 7, 7}, {3, "y", 9, 9}}, fake.rows)
	require.Len(t, fake.merges, 1)
	assert.Equal(t, []string{"id", dupCountColumn}, fake.merges[0].sourceCols)
	assert.Equal(t, [][]any{{int64(2), int64(7)}}, fake.merges[0].sourceRows)
}

func TestFreeColumn(t *testing.T) {
	assert.Equal(t, "cnt", freeColumn([]string{"id", "a"}, "cnt"))
	assert.Equal(t, "cnt_1", freeColumn([]string{"cnt"}, "cnt"))
	assert.Equal(t, "cnt_3", freeColumn([]string{"cnt", "cnt_1", "cnt_2"}, "cnt"))
}

func TestResolverMetrics(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	r := quietResolver(WithMetrics(m))

	require.NoError(t, r.RemoveAllDuplicates(ctx, newFakeTable(t, exampleRows()), []string{"a"}))
	require.Error(t, r.RemoveAllDuplicates(ctx, newFakeTable(t, exampleRows()), nil))
	failing := newFakeTable(t, exampleRows())
	failing.commitErr = errors.New("boom")
	require.Error(t, r.RemoveDuplicatesKeepOne(ctx, failing, "id", "a"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues(modeRemoveAll, "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues(modeRemoveAll, "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues(modeKeepOne, "failed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.deletedRows.WithLabelValues(modeRemoveAll)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.duplicateKeys.WithLabelValues(modeKeepOne)))
	assert.Equal(t, 2, testutil.CollectAndCount(m.duration))
}

func TestResolverLogs(t *testing.T) {
	var buf bytes.Buffer
	r := NewResolver(WithLogger(logger.New(logger.Config{Level: "DEBUG", Format: "json", Output: &buf})))

	require.NoError(t, r.RemoveAllDuplicates(context.Background(), newFakeTable(t, exampleRows()), []string{"a"}))
	assert.Contains(t, buf.String(), `"msg":"duplicate keys computed"`)
	assert.Contains(t, buf.String(), `"duplicate_keys":1`)
	assert.Contains(t, buf.String(), `"deleted_rows":2`)

	buf.Reset()
	require.Error(t, r.RemoveAllDuplicates(context.Background(), newFakeTable(t, exampleRows()), nil))
	assert.Contains(t, buf.String(), `"msg":"request rejected"`)
}
