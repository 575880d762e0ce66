package dedup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrobridgeOrg/go-lakeutil/catalog"
	"github.com/BrobridgeOrg/go-lakeutil/table"
)

func TestTableAdapter_RemoveAllDuplicates(t *testing.T) {
	ctx := context.Background()
	tbl := newRealTable(t, exampleRows())
	dt := ForTable(tbl)

	before, err := LatestVersion(ctx, dt)
	require.NoError(t, err)
	assert.Equal(t, Version(1), before)

	require.NoError(t, quietResolver().RemoveAllDuplicates(ctx, dt, []string{"a"}))

	assert.Equal(t, [][]any{{int64(3), "y"}}, tableRows(t, tbl))
	after, err := LatestVersion(ctx, dt)
	require.NoError(t, err)
	assert.Equal(t, Version(2), after)

	history, err := dt.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "overwrite", history[0].Operation)
	assert.Equal(t, "append", history[1].Operation)

	// Running again finds nothing and leaves the version alone.
	require.NoError(t, quietResolver().RemoveAllDuplicates(ctx, dt, []string{"a"}))
	again, err := LatestVersion(ctx, dt)
	require.NoError(t, err)
	assert.Equal(t, after, again)
}

func TestTableAdapter_RemoveDuplicatesKeepOne(t *testing.T) {
	ctx := context.Background()
	tbl := newRealTable(t, [][]any{{1, "x"}, {2, "x"}, {3, "y"}, {4, "y"}, {5, nil}})
	dt := ForTable(tbl)

	require.NoError(t, quietResolver().RemoveDuplicatesKeepOne(ctx, dt, "id", "a"))

	assert.ElementsMatch(t, [][]any{
		{int64(1), "x"},
		{int64(3), "y"},
		{int64(5), nil},
	}, tableRows(t, tbl))

	v, err := LatestVersion(ctx, dt)
	require.NoError(t, err)
	assert.Equal(t, Version(2), v)
}

func TestTableAdapter_EmptyTableHasNoVersion(t *testing.T) {
	tbl := newRealTable(t, nil)
	dt := ForTable(tbl)

	_, err := LatestVersion(context.Background(), dt)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, quietResolver().RemoveAllDuplicates(context.Background(), dt, []string{"id"}))
	assert.Empty(t, tableRows(t, tbl))
}

func TestTableAdapter_SchemaMismatch(t *testing.T) {
	tbl := newRealTable(t, exampleRows())

	err := quietResolver().RemoveAllDuplicates(context.Background(), ForTable(tbl), []string{"b"})
	var sm *SchemaMismatchError
	require.ErrorAs(t, err, &sm)
	assert.Equal(t, []string{"b"}, sm.Missing)
	assert.EqualValues(t, 1, tbl.Version())
}

func TestTableAdapter_ConflictPropagates(t *testing.T) {
	ctx := context.Background()
	tbl := newRealTable(t, exampleRows())

	stale, err := table.Load(ctx, tbl.Catalog(), tbl.FileIO(), tbl.Identifier())
	require.NoError(t, err)

	_, err = tbl.Delete(ctx, table.Eq("id", 3))
	require.NoError(t, err)

	err = quietResolver().RemoveAllDuplicates(ctx, ForTable(stale), []string{"a"})
	require.Error(t, err)
	assert.ErrorIs(t, err, catalog.ErrCommitFailed)

	require.NoError(t, tbl.Refresh(ctx))
	assert.ElementsMatch(t, [][]any{{int64(1), "x"}, {int64(2), "x"}}, tableRows(t, tbl))
}
