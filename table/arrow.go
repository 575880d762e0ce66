package table

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/BrobridgeOrg/go-lakeutil/spec"
)

// specTypeToArrow converts a spec.Type to an arrow.DataType.
func specTypeToArrow(t spec.Type) arrow.DataType {
	switch t.TypeID() {
	case spec.TypeBoolean:
		return arrow.FixedWidthTypes.Boolean
	case spec.TypeInt:
		return arrow.PrimitiveTypes.Int32
	case spec.TypeLong:
		return arrow.PrimitiveTypes.Int64
	case spec.TypeFloat:
		return arrow.PrimitiveTypes.Float32
	case spec.TypeDouble:
		return arrow.PrimitiveTypes.Float64
	case spec.TypeString:
		return arrow.BinaryTypes.String
	case spec.TypeBinary:
		return arrow.BinaryTypes.Binary
	case spec.TypeDate:
		return arrow.FixedWidthTypes.Date32
	case spec.TypeTimestamp:
		return arrow.FixedWidthTypes.Timestamp_us
	case spec.TypeTimestampTz:
		return &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}
	default:
		return arrow.BinaryTypes.String
	}
}

// ArrowSchema converts a table schema to an arrow schema.
func ArrowSchema(schema *spec.Schema) *arrow.Schema {
	fields := make([]arrow.Field, len(schema.Fields))
	for i, f := range schema.Fields {
		fields[i] = arrow.Field{
			Name:     f.Name,
			Type:     specTypeToArrow(f.Type),
			Nullable: !f.Required,
		}
	}
	return arrow.NewSchema(fields, nil)
}

// checkRecordSchema verifies that a record carries exactly the table
// columns with matching types.
func checkRecordSchema(want, got *arrow.Schema) error {
	if len(want.Fields()) != len(got.Fields()) {
		return fmt.Errorf("%w: record has %d columns, table has %d",
			ErrSchemaMismatch, len(got.Fields()), len(want.Fields()))
	}
	for i, f := range want.Fields() {
		g := got.Field(i)
		if g.Name != f.Name {
			return fmt.Errorf("%w: column %d is %q, want %q", ErrSchemaMismatch, i, g.Name, f.Name)
		}
		if !arrow.TypeEqual(g.Type, f.Type) {
			return fmt.Errorf("%w: column %q has type %s, want %s", ErrSchemaMismatch, f.Name, g.Type, f.Type)
		}
	}
	return nil
}
