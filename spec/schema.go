package spec

import (
	"encoding/json"
	"fmt"
)

// Schema is the ordered set of columns of a table.
type Schema struct {
	SchemaID        int           `json:"schema-id"`
	IdentifierField []int         `json:"identifier-field-ids,omitempty"`
	Fields          []NestedField `json:"fields"`
}

// NewSchema creates a new schema with the given fields.
func NewSchema(schemaID int, fields []NestedField) *Schema {
	return &Schema{
		SchemaID: schemaID,
		Fields:   fields,
	}
}

// FieldByName returns the field with the given name, or nil if not found.
func (s *Schema) FieldByName(name string) *NestedField {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return &s.Fields[i]
		}
	}
	return nil
}

// ColumnNames returns the column names in schema order.
func (s *Schema) ColumnNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// HighestFieldID returns the highest field ID in the schema.
func (s *Schema) HighestFieldID() int {
	highest := 0
	for _, f := range s.Fields {
		if f.ID > highest {
			highest = f.ID
		}
	}
	return highest
}

// Equals checks if two schemas are equal.
func (s *Schema) Equals(other *Schema) bool {
	if other == nil || s.SchemaID != other.SchemaID || len(s.Fields) != len(other.Fields) {
		return false
	}
	for i := range s.Fields {
		if s.Fields[i].ID != other.Fields[i].ID ||
			s.Fields[i].Name != other.Fields[i].Name ||
			s.Fields[i].Required != other.Fields[i].Required ||
			!s.Fields[i].Type.Equals(other.Fields[i].Type) {
			return false
		}
	}
	return true
}

type fieldJSON struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Required bool   `json:"required"`
	Type     string `json:"type"`
	Doc      string `json:"doc,omitempty"`
}

type schemaJSON struct {
	SchemaID        int         `json:"schema-id"`
	Type            string      `json:"type"`
	Fields          []fieldJSON `json:"fields"`
	IdentifierField []int       `json:"identifier-field-ids,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (s *Schema) MarshalJSON() ([]byte, error) {
	fields := make([]fieldJSON, len(s.Fields))
	for i, f := range s.Fields {
		if f.Type == nil {
			return nil, fmt.Errorf("field %s has no type", f.Name)
		}
		fields[i] = fieldJSON{
			ID:       f.ID,
			Name:     f.Name,
			Required: f.Required,
			Type:     f.Type.String(),
			Doc:      f.Doc,
		}
	}

	return json.Marshal(schemaJSON{
		SchemaID:        s.SchemaID,
		Type:            "struct",
		Fields:          fields,
		IdentifierField: s.IdentifierField,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Schema) UnmarshalJSON(data []byte) error {
	var sj schemaJSON
	if err := json.Unmarshal(data, &sj); err != nil {
		return err
	}

	s.SchemaID = sj.SchemaID
	s.IdentifierField = sj.IdentifierField
	s.Fields = make([]NestedField, len(sj.Fields))

	for i, f := range sj.Fields {
		t, err := ParseType(f.Type)
		if err != nil {
			return fmt.Errorf("failed to unmarshal field %s type: %w", f.Name, err)
		}
		s.Fields[i] = NestedField{
			ID:       f.ID,
			Name:     f.Name,
			Required: f.Required,
			Type:     t,
			Doc:      f.Doc,
		}
	}

	return nil
}
