package table

import (
	"math"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func idASchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "a", Type: arrow.BinaryTypes.String, Nullable: true},
	}, nil)
}

func TestFrame_ProjectAndColumns(t *testing.T) {
	f := buildFrame(t, idASchema(), [][]any{{1, "x"}, {2, "y"}})

	assert.Equal(t, []string{"id", "a"}, f.Columns())
	assert.EqualValues(t, 2, f.NumRows())

	p, err := f.Project("a", "id")
	require.NoError(t, err)
	defer p.Release()
	assert.Equal(t, []string{"a", "id"}, p.Columns())
	assert.Equal(t, [][]any{{"x", int64(1)}, {"y", int64(2)}}, p.Rows())

	_, err = f.Project("id", "nope", "gone")
	assert.ErrorIs(t, err, ErrColumnNotFound)
	assert.ErrorContains(t, err, "nope")
	assert.ErrorContains(t, err, "gone")
}

func TestFrame_Filter(t *testing.T) {
	f := buildFrame(t, idASchema(), [][]any{{1, "x"}, {2, nil}, {3, "x"}})

	got, err := f.Filter(Eq("a", "x"))
	require.NoError(t, err)
	defer got.Release()
	assert.Equal(t, [][]any{{int64(1), "x"}, {int64(3), "x"}}, got.Rows())

	_, err = f.Filter(Eq("missing", 1))
	assert.ErrorIs(t, err, ErrColumnNotFound)
}

func TestFrame_DistinctKeepsFirstAndGroupsNulls(t *testing.T) {
	f := buildFrame(t, idASchema(), [][]any{
		{1, "x"}, {1, "x"}, {2, nil}, {2, nil}, {1, "y"},
	})

	got, err := f.Distinct()
	require.NoError(t, err)
	defer got.Release()
	assert.Equal(t, [][]any{{int64(1), "x"}, {int64(2), nil}, {int64(1), "y"}}, got.Rows())
}

func TestFrame_WindowCount(t *testing.T) {
	f := buildFrame(t, idASchema(), [][]any{{1, "x"}, {2, "x"}, {3, "y"}, {4, nil}, {5, nil}})

	got, err := f.WindowCount([]string{"a"}, "cnt")
	require.NoError(t, err)
	defer got.Release()

	assert.Equal(t, []string{"id", "a", "cnt"}, got.Columns())
	var counts []any
	for _, row := range got.Rows() {
		counts = append(counts, row[2])
	}
	assert.Equal(t, []any{int64(2), int64(2), int64(1), int64(2), int64(2)}, counts)

	_, err = f.WindowCount([]string{"a"}, "a")
	assert.ErrorIs(t, err, ErrDuplicateColumn)
	_, err = f.WindowCount([]string{"nope"}, "cnt")
	assert.ErrorIs(t, err, ErrColumnNotFound)
}

func TestFrame_FloatKeysGroupSignedZeroAndNaN(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "v", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	}, nil)
	otherNaN := math.Float64frombits(0x7ff800000000beef)
	f := buildFrame(t, schema, [][]any{
		{0.0}, {math.Copysign(0, -1)}, {math.NaN()}, {otherNaN}, {1.5},
	})

	d, err := f.Distinct()
	require.NoError(t, err)
	defer d.Release()
	assert.EqualValues(t, 3, d.NumRows())

	got, err := f.WindowCount([]string{"v"}, "cnt")
	require.NoError(t, err)
	defer got.Release()
	var counts []any
	for _, row := range got.Rows() {
		counts = append(counts, row[1])
	}
	assert.Equal(t, []any{int64(2), int64(2), int64(2), int64(2), int64(1)}, counts)
}

func TestFrame_WindowRankIsRowNumber(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		{Name: "a", Type: arrow.BinaryTypes.String},
		{Name: "tag", Type: arrow.BinaryTypes.String},
	}, nil)
	f := buildFrame(t, schema, [][]any{
		{3, "x", "first-3"},
		{1, "x", "only-1"},
		{3, "x", "second-3"},
		{nil, "x", "null"},
		{7, "y", "only-7"},
	})

	got, err := f.WindowRank([]string{"a"}, "id", "rn")
	require.NoError(t, err)
	defer got.Release()

	ranks := map[string]int64{}
	for _, row := range got.Rows() {
		ranks[row[2].(string)] = row[3].(int64)
	}
	assert.Equal(t, map[string]int64{
		"null":     1,
		"only-1":   2,
		"first-3":  3,
		"second-3": 4,
		"only-7":   1,
	}, ranks)
}

func TestFrame_EmptyAndHead(t *testing.T) {
	empty := EmptyFrame(idASchema())
	defer empty.Release()
	assert.EqualValues(t, 0, empty.NumRows())

	d, err := empty.Distinct()
	require.NoError(t, err)
	defer d.Release()
	assert.EqualValues(t, 0, d.NumRows())

	f := buildFrame(t, idASchema(), [][]any{{1, "x"}, {2, "y"}, {3, "z"}})
	h, err := f.head(2)
	require.NoError(t, err)
	defer h.Release()
	assert.Equal(t, [][]any{{int64(1), "x"}, {int64(2), "y"}}, h.Rows())
}

func TestFrame_TransformsLeaveReceiverIntact(t *testing.T) {
	f := buildFrame(t, idASchema(), [][]any{{1, "x"}, {1, "x"}})

	d, err := f.Distinct()
	require.NoError(t, err)
	d.Release()

	assert.EqualValues(t, 2, f.NumRows())
	assert.Equal(t, [][]any{{int64(1), "x"}, {int64(1), "x"}}, f.Rows())
}
