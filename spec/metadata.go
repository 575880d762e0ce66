package spec

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// FormatVersion is the table format version.
type FormatVersion int

const FormatVersionV2 FormatVersion = 2

// MainBranch is the ref every commit advances.
const MainBranch = "main"

// PartitionField is one field of a partition spec. Tables written by this
// module are unpartitioned, so specs are always empty, but the field is
// kept so metadata written by other engines still parses.
type PartitionField struct {
	SourceID  int    `json:"source-id"`
	FieldID   int    `json:"field-id"`
	Name      string `json:"name"`
	Transform string `json:"transform"`
}

// PartitionSpec describes how a table is partitioned.
type PartitionSpec struct {
	SpecID int              `json:"spec-id"`
	Fields []PartitionField `json:"fields"`
}

// SortOrder describes how rows in data files are sorted.
type SortOrder struct {
	OrderID int               `json:"order-id"`
	Fields  []json.RawMessage `json:"fields"`
}

// MetadataLogEntry records a previous metadata file of the table.
type MetadataLogEntry struct {
	TimestampMs  int64  `json:"timestamp-ms"`
	MetadataFile string `json:"metadata-file"`
}

// TableMetadata is the full metadata document of a table.
type TableMetadata struct {
	FormatVersion      FormatVersion          `json:"format-version"`
	TableUUID          string                 `json:"table-uuid"`
	Location           string                 `json:"location"`
	LastSequenceNumber int64                  `json:"last-sequence-number"`
	LastUpdatedMs      int64                  `json:"last-updated-ms"`
	LastColumnID       int                    `json:"last-column-id"`
	Schemas            []*Schema              `json:"schemas"`
	CurrentSchemaID    int                    `json:"current-schema-id"`
	PartitionSpecs     []PartitionSpec        `json:"partition-specs"`
	DefaultSpecID      int                    `json:"default-spec-id"`
	LastPartitionID    int                    `json:"last-partition-id"`
	Properties         map[string]string      `json:"properties,omitempty"`
	CurrentSnapshotID  *int64                 `json:"current-snapshot-id,omitempty"`
	Snapshots          []Snapshot             `json:"snapshots,omitempty"`
	SnapshotLog        []SnapshotLog          `json:"snapshot-log,omitempty"`
	MetadataLog        []MetadataLogEntry     `json:"metadata-log,omitempty"`
	SortOrders         []SortOrder            `json:"sort-orders"`
	DefaultSortOrderID int                    `json:"default-sort-order-id"`
	Refs               map[string]SnapshotRef `json:"refs,omitempty"`
}

// CurrentSchema returns the current schema.
func (m *TableMetadata) CurrentSchema() *Schema {
	return m.SchemaByID(m.CurrentSchemaID)
}

// SchemaByID returns a schema by its ID.
func (m *TableMetadata) SchemaByID(id int) *Schema {
	for _, s := range m.Schemas {
		if s.SchemaID == id {
			return s
		}
	}
	return nil
}

// CurrentSnapshot returns the current snapshot, or nil for an empty table.
func (m *TableMetadata) CurrentSnapshot() *Snapshot {
	if m.CurrentSnapshotID == nil {
		return nil
	}
	return m.SnapshotByID(*m.CurrentSnapshotID)
}

// SnapshotByID returns a snapshot by its ID.
func (m *TableMetadata) SnapshotByID(id int64) *Snapshot {
	for i := range m.Snapshots {
		if m.Snapshots[i].SnapshotID == id {
			return &m.Snapshots[i]
		}
	}
	return nil
}

// ParseTableMetadata parses table metadata from JSON.
func ParseTableMetadata(data []byte) (*TableMetadata, error) {
	var meta TableMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse table metadata: %w", err)
	}
	if meta.FormatVersion != FormatVersionV2 {
		return nil, fmt.Errorf("unsupported format version: %d", meta.FormatVersion)
	}
	return &meta, nil
}

// ToJSON serializes the metadata to JSON.
func (m *TableMetadata) ToJSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// NewTableMetadata creates metadata for a new, empty, unpartitioned table.
func NewTableMetadata(tableUUID, location string, schema *Schema, properties map[string]string, nowMs int64) *TableMetadata {
	return &TableMetadata{
		FormatVersion:   FormatVersionV2,
		TableUUID:       tableUUID,
		Location:        location,
		LastUpdatedMs:   nowMs,
		LastColumnID:    schema.HighestFieldID(),
		Schemas:         []*Schema{schema},
		CurrentSchemaID: schema.SchemaID,
		PartitionSpecs:  []PartitionSpec{{SpecID: 0, Fields: []PartitionField{}}},
		Properties:      properties,
		SortOrders:      []SortOrder{{OrderID: 0, Fields: []json.RawMessage{}}},
		Refs:            make(map[string]SnapshotRef),
	}
}

// MetadataBuilder applies changes to a copy of table metadata.
type MetadataBuilder struct {
	meta *TableMetadata
}

// NewMetadataBuilder creates a new metadata builder from existing metadata.
// The base is never modified.
func NewMetadataBuilder(base *TableMetadata) *MetadataBuilder {
	copied := *base
	copied.Schemas = slices.Clone(base.Schemas)
	copied.PartitionSpecs = slices.Clone(base.PartitionSpecs)
	copied.SortOrders = slices.Clone(base.SortOrders)
	copied.Snapshots = slices.Clone(base.Snapshots)
	copied.SnapshotLog = slices.Clone(base.SnapshotLog)
	copied.MetadataLog = slices.Clone(base.MetadataLog)
	copied.Properties = maps.Clone(base.Properties)
	copied.Refs = maps.Clone(base.Refs)
	if copied.Refs == nil {
		copied.Refs = make(map[string]SnapshotRef)
	}
	return &MetadataBuilder{meta: &copied}
}

// AddSnapshot adds a snapshot. Its sequence number must be greater than the
// last one assigned.
func (b *MetadataBuilder) AddSnapshot(snap Snapshot) error {
	if b.meta.SnapshotByID(snap.SnapshotID) != nil {
		return fmt.Errorf("snapshot %d already exists", snap.SnapshotID)
	}
	if snap.SequenceNumber <= b.meta.LastSequenceNumber {
		return fmt.Errorf("sequence number %d is not greater than last sequence number %d",
			snap.SequenceNumber, b.meta.LastSequenceNumber)
	}
	b.meta.Snapshots = append(b.meta.Snapshots, snap)
	b.meta.LastSequenceNumber = snap.SequenceNumber
	b.meta.LastUpdatedMs = snap.TimestampMs
	return nil
}

// SetRef points a ref at an existing snapshot. Moving the main branch also
// makes the snapshot current and appends a snapshot log entry.
func (b *MetadataBuilder) SetRef(name string, ref SnapshotRef) error {
	snap := b.meta.SnapshotByID(ref.SnapshotID)
	if snap == nil {
		return fmt.Errorf("cannot set ref %s to unknown snapshot %d", name, ref.SnapshotID)
	}
	b.meta.Refs[name] = ref
	if name == MainBranch {
		id := ref.SnapshotID
		b.meta.CurrentSnapshotID = &id
		b.meta.SnapshotLog = append(b.meta.SnapshotLog, SnapshotLog{
			SnapshotID:  id,
			TimestampMs: snap.TimestampMs,
		})
	}
	return nil
}

// AddSchema adds a schema and returns the ID it was stored under.
func (b *MetadataBuilder) AddSchema(schema *Schema) int {
	for _, s := range b.meta.Schemas {
		if s.SchemaID >= schema.SchemaID {
			schema.SchemaID = s.SchemaID + 1
		}
	}
	b.meta.Schemas = append(b.meta.Schemas, schema)
	if highest := schema.HighestFieldID(); highest > b.meta.LastColumnID {
		b.meta.LastColumnID = highest
	}
	return schema.SchemaID
}

// SetCurrentSchema makes an existing schema current.
func (b *MetadataBuilder) SetCurrentSchema(id int) error {
	if b.meta.SchemaByID(id) == nil {
		return fmt.Errorf("unknown schema %d", id)
	}
	b.meta.CurrentSchemaID = id
	return nil
}

// SetProperties sets table properties.
func (b *MetadataBuilder) SetProperties(props map[string]string) {
	if b.meta.Properties == nil {
		b.meta.Properties = make(map[string]string, len(props))
	}
	maps.Copy(b.meta.Properties, props)
}

// RemoveProperties removes table properties.
func (b *MetadataBuilder) RemoveProperties(keys []string) {
	for _, k := range keys {
		delete(b.meta.Properties, k)
	}
}

// AddMetadataLog records the metadata file being replaced.
func (b *MetadataBuilder) AddMetadataLog(location string, timestampMs int64) {
	if location == "" {
		return
	}
	b.meta.MetadataLog = append(b.meta.MetadataLog, MetadataLogEntry{
		TimestampMs:  timestampMs,
		MetadataFile: location,
	})
}

// SetLastUpdatedMs sets the last updated timestamp.
func (b *MetadataBuilder) SetLastUpdatedMs(ts int64) {
	b.meta.LastUpdatedMs = ts
}

// Build returns the built metadata.
func (b *MetadataBuilder) Build() *TableMetadata {
	return b.meta
}
