package table

import (
	"bytes"
	"cmp"
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// getValueAt gets the value at a specific index from an Arrow array.
func getValueAt(arr arrow.Array, idx int) any {
	if arr.IsNull(idx) {
		return nil
	}

	switch a := arr.(type) {
	case *array.Int32:
		return a.Value(idx)
	case *array.Int64:
		return a.Value(idx)
	case *array.Float32:
		return a.Value(idx)
	case *array.Float64:
		return a.Value(idx)
	case *array.String:
		return a.Value(idx)
	case *array.Boolean:
		return a.Value(idx)
	case *array.Binary:
		return a.Value(idx)
	case *array.Date32:
		return a.Value(idx)
	case *array.Timestamp:
		return a.Value(idx)
	default:
		return a.ValueStr(idx)
	}
}

// appendValue appends a value from an array to a builder of the same type.
func appendValue(builder array.Builder, arr arrow.Array, idx int) {
	if arr.IsNull(idx) {
		builder.AppendNull()
		return
	}

	switch b := builder.(type) {
	case *array.Int32Builder:
		b.Append(arr.(*array.Int32).Value(idx))
	case *array.Int64Builder:
		b.Append(arr.(*array.Int64).Value(idx))
	case *array.Float32Builder:
		b.Append(arr.(*array.Float32).Value(idx))
	case *array.Float64Builder:
		b.Append(arr.(*array.Float64).Value(idx))
	case *array.StringBuilder:
		b.Append(arr.(*array.String).Value(idx))
	case *array.BooleanBuilder:
		b.Append(arr.(*array.Boolean).Value(idx))
	case *array.BinaryBuilder:
		b.Append(arr.(*array.Binary).Value(idx))
	case *array.Date32Builder:
		b.Append(arr.(*array.Date32).Value(idx))
	case *array.TimestampBuilder:
		b.Append(arr.(*array.Timestamp).Value(idx))
	default:
		if err := builder.AppendValueFromString(arr.ValueStr(idx)); err != nil {
			builder.AppendNull()
		}
	}
}

// floatKey encodes f so that equal floats share a key: -0 groups with 0
// and every NaN with every other NaN.
func floatKey(f float64) uint64 {
	switch {
	case f == 0:
		return 0
	case math.IsNaN(f):
		return 0x7ff8000000000001
	}
	return math.Float64bits(f)
}

// appendKey appends a type-tagged encoding of one cell to buf. Equal
// values encode to equal bytes, integers of any width share a tag, and
// NULL has its own tag so it never collides with a value. The second
// result reports whether the cell was NULL.
func appendKey(buf []byte, arr arrow.Array, idx int) ([]byte, bool) {
	if arr.IsNull(idx) {
		return append(buf, 0), true
	}

	switch a := arr.(type) {
	case *array.Int32:
		buf = binary.BigEndian.AppendUint64(append(buf, 1), uint64(a.Value(idx)))
	case *array.Int64:
		buf = binary.BigEndian.AppendUint64(append(buf, 1), uint64(a.Value(idx)))
	case *array.Float32:
		buf = binary.BigEndian.AppendUint64(append(buf, 2), floatKey(float64(a.Value(idx))))
	case *array.Float64:
		buf = binary.BigEndian.AppendUint64(append(buf, 2), floatKey(a.Value(idx)))
	case *array.String:
		v := a.Value(idx)
		buf = binary.AppendUvarint(append(buf, 3), uint64(len(v)))
		buf = append(buf, v...)
	case *array.Binary:
		v := a.Value(idx)
		buf = binary.AppendUvarint(append(buf, 4), uint64(len(v)))
		buf = append(buf, v...)
	case *array.Boolean:
		b := byte(0)
		if a.Value(idx) {
			b = 1
		}
		buf = append(buf, 5, b)
	case *array.Date32:
		buf = binary.BigEndian.AppendUint64(append(buf, 6), uint64(a.Value(idx)))
	case *array.Timestamp:
		buf = binary.BigEndian.AppendUint64(append(buf, 7), uint64(a.Value(idx)))
	default:
		v := a.ValueStr(idx)
		buf = binary.AppendUvarint(append(buf, 8), uint64(len(v)))
		buf = append(buf, v...)
	}
	return buf, false
}

// rowKey encodes the cells of row idx across cols. hasNull is set if any
// of the cells is NULL.
func rowKey(buf []byte, cols []arrow.Array, idx int) (key []byte, hasNull bool) {
	key = buf[:0]
	for _, col := range cols {
		var isNull bool
		key, isNull = appendKey(key, col, idx)
		hasNull = hasNull || isNull
	}
	return key, hasNull
}

// compareAt orders two cells of the same array. NULL sorts first.
func compareAt(arr arrow.Array, i, j int) int {
	ni, nj := arr.IsNull(i), arr.IsNull(j)
	switch {
	case ni && nj:
		return 0
	case ni:
		return -1
	case nj:
		return 1
	}

	switch a := arr.(type) {
	case *array.Int32:
		return cmp.Compare(a.Value(i), a.Value(j))
	case *array.Int64:
		return cmp.Compare(a.Value(i), a.Value(j))
	case *array.Float32:
		return cmp.Compare(a.Value(i), a.Value(j))
	case *array.Float64:
		return cmp.Compare(a.Value(i), a.Value(j))
	case *array.String:
		return strings.Compare(a.Value(i), a.Value(j))
	case *array.Binary:
		return bytes.Compare(a.Value(i), a.Value(j))
	case *array.Boolean:
		return cmp.Compare(boolInt(a.Value(i)), boolInt(a.Value(j)))
	case *array.Date32:
		return cmp.Compare(a.Value(i), a.Value(j))
	case *array.Timestamp:
		return cmp.Compare(a.Value(i), a.Value(j))
	default:
		return strings.Compare(a.ValueStr(i), a.ValueStr(j))
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// compareValues compares two values with the given operator.
func compareValues(left, right any, op ExprOp) bool {
	if left == nil || right == nil {
		return false
	}

	switch l := left.(type) {
	case int32:
		return compareOrdered(int64(l), toInt64(right), op)
	case int64:
		return compareOrdered(l, toInt64(right), op)
	case arrow.Date32:
		return compareOrdered(int64(l), toInt64(right), op)
	case arrow.Timestamp:
		return compareOrdered(int64(l), toInt64(right), op)
	case float32:
		return compareOrdered(float64(l), toFloat64(right), op)
	case float64:
		return compareOrdered(l, toFloat64(right), op)
	case string:
		return compareOrdered(l, toString(right), op)
	case []byte:
		r, ok := right.([]byte)
		if !ok {
			r = []byte(toString(right))
		}
		return compareOrdered(bytes.Compare(l, r), 0, op)
	case bool:
		r, ok := right.(bool)
		if !ok {
			return false
		}
		switch op {
		case OpEq:
			return l == r
		case OpNotEq:
			return l != r
		}
		return false
	default:
		return false
	}
}

func compareOrdered[T cmp.Ordered](l, r T, op ExprOp) bool {
	switch op {
	case OpEq:
		return l == r
	case OpNotEq:
		return l != r
	case OpLt:
		return l < r
	case OpLte:
		return l <= r
	case OpGt:
		return l > r
	case OpGte:
		return l >= r
	default:
		return false
	}
}

func toInt64(v any) int64 {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case int64:
		return x
	case arrow.Date32:
		return int64(x)
	case arrow.Timestamp:
		return int64(x)
	case float32:
		return int64(x)
	case float64:
		return int64(x)
	default:
		return 0
	}
}

func toFloat64(v any) float64 {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case float32:
		return float64(x)
	case float64:
		return x
	default:
		return 0
	}
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprintf("%v", v)
	}
}
