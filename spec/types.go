// Package spec defines the on-disk table model: schemas, snapshots, table
// metadata and the avro encoded manifest files that track data files.
package spec

import (
	"fmt"
	"strings"
)

// TypeID identifies a column type.
type TypeID int

const (
	TypeBoolean TypeID = iota
	TypeInt
	TypeLong
	TypeFloat
	TypeDouble
	TypeDate
	TypeTimestamp
	TypeTimestampTz
	TypeString
	TypeBinary
)

// Type is a column data type. Only flat primitive columns are supported.
type Type interface {
	TypeID() TypeID
	String() string
	Equals(other Type) bool
}

// PrimitiveType is a scalar column type.
type PrimitiveType struct {
	id TypeID
}

func (t PrimitiveType) TypeID() TypeID { return t.id }

func (t PrimitiveType) Equals(other Type) bool {
	if o, ok := other.(PrimitiveType); ok {
		return t.id == o.id
	}
	return false
}

func (t PrimitiveType) String() string {
	if name, ok := typeNames[t.id]; ok {
		return name
	}
	return "unknown"
}

var (
	BooleanType     = PrimitiveType{TypeBoolean}
	IntType         = PrimitiveType{TypeInt}
	LongType        = PrimitiveType{TypeLong}
	FloatType       = PrimitiveType{TypeFloat}
	DoubleType      = PrimitiveType{TypeDouble}
	DateType        = PrimitiveType{TypeDate}
	TimestampType   = PrimitiveType{TypeTimestamp}
	TimestampTzType = PrimitiveType{TypeTimestampTz}
	StringType      = PrimitiveType{TypeString}
	BinaryType      = PrimitiveType{TypeBinary}
)

var typeNames = map[TypeID]string{
	TypeBoolean:     "boolean",
	TypeInt:         "int",
	TypeLong:        "long",
	TypeFloat:       "float",
	TypeDouble:      "double",
	TypeDate:        "date",
	TypeTimestamp:   "timestamp",
	TypeTimestampTz: "timestamptz",
	TypeString:      "string",
	TypeBinary:      "binary",
}

// ParseType parses a type name such as "long" or "string".
func ParseType(s string) (Type, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for id, name := range typeNames {
		if name == s {
			return PrimitiveType{id}, nil
		}
	}
	return nil, fmt.Errorf("unknown type: %s", s)
}

// NestedField is a named, typed column of a schema.
type NestedField struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Required bool   `json:"required"`
	Type     Type   `json:"type"`
	Doc      string `json:"doc,omitempty"`
}

// ParseField parses a "name:type" column definition. A trailing "!"
// on the type marks the column as required, e.g. "id:long!".
func ParseField(id int, def string) (NestedField, error) {
	name, typ, ok := strings.Cut(def, ":")
	if !ok || strings.TrimSpace(name) == "" {
		return NestedField{}, fmt.Errorf("invalid column definition %q: want name:type", def)
	}

	required := strings.HasSuffix(typ, "!")
	t, err := ParseType(strings.TrimSuffix(typ, "!"))
	if err != nil {
		return NestedField{}, fmt.Errorf("invalid column definition %q: %w", def, err)
	}

	return NestedField{
		ID:       id,
		Name:     strings.TrimSpace(name),
		Required: required,
		Type:     t,
	}, nil
}
