// Package catalog provides the catalog interface and its SQL and REST
// implementations. A catalog maps table identifiers to the current table
// metadata and serializes commits against it.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/BrobridgeOrg/go-lakeutil/spec"
)

// Catalog is the interface for catalog operations.
type Catalog interface {
	// Name returns the catalog name.
	Name() string

	// ListNamespaces lists all namespaces in the catalog.
	ListNamespaces(ctx context.Context) ([]Namespace, error)

	// CreateNamespace creates a new namespace.
	CreateNamespace(ctx context.Context, namespace Namespace, properties map[string]string) error

	// DropNamespace drops an empty namespace.
	DropNamespace(ctx context.Context, namespace Namespace) error

	// NamespaceExists checks if a namespace exists.
	NamespaceExists(ctx context.Context, namespace Namespace) (bool, error)

	// ListTables lists all tables in a namespace.
	ListTables(ctx context.Context, namespace Namespace) ([]TableIdentifier, error)

	// CreateTable creates a new table.
	CreateTable(ctx context.Context, identifier TableIdentifier, schema *spec.Schema, opts ...CreateTableOption) (*spec.TableMetadata, error)

	// LoadTable loads a table's metadata.
	LoadTable(ctx context.Context, identifier TableIdentifier) (*spec.TableMetadata, error)

	// TableExists checks if a table exists.
	TableExists(ctx context.Context, identifier TableIdentifier) (bool, error)

	// DropTable drops a table. With purge set, its files are deleted too.
	DropTable(ctx context.Context, identifier TableIdentifier, purge bool) error

	// CommitTable checks the requirements against the current metadata and
	// applies the updates atomically. A failed requirement returns a
	// *CommitConflictError.
	CommitTable(ctx context.Context, identifier TableIdentifier, requirements []TableRequirement, updates []TableUpdate) (*spec.TableMetadata, error)
}

// Namespace represents a namespace (database).
type Namespace []string

// String returns the namespace as a dot-separated string.
func (n Namespace) String() string {
	return strings.Join(n, ".")
}

// ParseNamespace splits a dot-separated namespace.
func ParseNamespace(s string) Namespace {
	if s == "" {
		return nil
	}
	return Namespace(strings.Split(s, "."))
}

// TableIdentifier represents a fully qualified table identifier.
type TableIdentifier struct {
	Namespace Namespace
	Name      string
}

// String returns the table identifier as a dot-separated string.
func (t TableIdentifier) String() string {
	if len(t.Namespace) == 0 {
		return t.Name
	}
	return t.Namespace.String() + "." + t.Name
}

// ParseIdentifier parses "ns.table" or "a.b.table". The last element is
// the table name.
func ParseIdentifier(s string) (TableIdentifier, error) {
	parts := strings.Split(s, ".")
	if len(parts) < 2 {
		return TableIdentifier{}, fmt.Errorf("invalid table identifier %q: expected namespace.table", s)
	}
	for _, p := range parts {
		if p == "" {
			return TableIdentifier{}, fmt.Errorf("invalid table identifier %q: empty element", s)
		}
	}
	return TableIdentifier{
		Namespace: Namespace(parts[:len(parts)-1]),
		Name:      parts[len(parts)-1],
	}, nil
}

// CreateTableOption configures table creation.
type CreateTableOption func(*CreateTableConfig)

// CreateTableConfig holds table creation configuration.
type CreateTableConfig struct {
	Location   string
	Properties map[string]string
}

// WithLocation sets the location for table creation.
func WithLocation(location string) CreateTableOption {
	return func(c *CreateTableConfig) {
		c.Location = location
	}
}

// WithProperties sets properties for table creation.
func WithProperties(props map[string]string) CreateTableOption {
	return func(c *CreateTableConfig) {
		c.Properties = props
	}
}

// TableRequirement is a precondition checked before committing changes.
type TableRequirement struct {
	Type            string  `json:"type"`
	Ref             *string `json:"ref,omitempty"`
	UUID            *string `json:"uuid,omitempty"`
	SnapshotID      *int64  `json:"snapshot-id,omitempty"`
	CurrentSchemaID *int    `json:"current-schema-id,omitempty"`
}

// Requirement types.
const (
	RequirementAssertCreate          = "assert-create"
	RequirementAssertTableUUID       = "assert-table-uuid"
	RequirementAssertRefSnapshotID   = "assert-ref-snapshot-id"
	RequirementAssertCurrentSchemaID = "assert-current-schema-id"
)

// RequireAssertCreate requires that the table does not exist.
func RequireAssertCreate() TableRequirement {
	return TableRequirement{Type: RequirementAssertCreate}
}

// RequireAssertTableUUID requires a specific table UUID.
func RequireAssertTableUUID(uuid string) TableRequirement {
	return TableRequirement{Type: RequirementAssertTableUUID, UUID: &uuid}
}

// RequireAssertRefSnapshotID requires a ref to point at snapshotID. A nil
// snapshotID requires the ref to not exist yet.
func RequireAssertRefSnapshotID(ref string, snapshotID *int64) TableRequirement {
	return TableRequirement{Type: RequirementAssertRefSnapshotID, Ref: &ref, SnapshotID: snapshotID}
}

// RequireAssertCurrentSchemaID requires a specific current schema ID.
func RequireAssertCurrentSchemaID(id int) TableRequirement {
	return TableRequirement{Type: RequirementAssertCurrentSchemaID, CurrentSchemaID: &id}
}

// TableUpdate is a change applied to table metadata on commit.
type TableUpdate struct {
	Action     string            `json:"action"`
	Schema     *spec.Schema      `json:"schema,omitempty"`
	SchemaID   *int              `json:"schema-id,omitempty"`
	Snapshot   *spec.Snapshot    `json:"snapshot,omitempty"`
	RefName    *string           `json:"ref-name,omitempty"`
	Type       *string           `json:"type,omitempty"`
	SnapshotID *int64            `json:"snapshot-id,omitempty"`
	Removals   []string          `json:"removals,omitempty"`
	Updates    map[string]string `json:"updates,omitempty"`
}

// Update actions.
const (
	ActionAddSchema        = "add-schema"
	ActionSetCurrentSchema = "set-current-schema"
	ActionAddSnapshot      = "add-snapshot"
	ActionSetSnapshotRef   = "set-snapshot-ref"
	ActionSetProperties    = "set-properties"
	ActionRemoveProperties = "remove-properties"
)

// UpdateAddSchema adds a new schema.
func UpdateAddSchema(schema *spec.Schema) TableUpdate {
	return TableUpdate{Action: ActionAddSchema, Schema: schema}
}

// UpdateSetCurrentSchema sets the current schema. -1 selects the schema
// added last in the same commit.
func UpdateSetCurrentSchema(schemaID int) TableUpdate {
	return TableUpdate{Action: ActionSetCurrentSchema, SchemaID: &schemaID}
}

// UpdateAddSnapshot adds a snapshot.
func UpdateAddSnapshot(snapshot *spec.Snapshot) TableUpdate {
	return TableUpdate{Action: ActionAddSnapshot, Snapshot: snapshot}
}

// UpdateSetSnapshotRef sets a snapshot reference.
func UpdateSetSnapshotRef(refName string, snapshotID int64, refType string) TableUpdate {
	return TableUpdate{
		Action:     ActionSetSnapshotRef,
		RefName:    &refName,
		SnapshotID: &snapshotID,
		Type:       &refType,
	}
}

// UpdateSetProperties sets table properties.
func UpdateSetProperties(updates map[string]string) TableUpdate {
	return TableUpdate{Action: ActionSetProperties, Updates: updates}
}

// UpdateRemoveProperties removes table properties.
func UpdateRemoveProperties(removals []string) TableUpdate {
	return TableUpdate{Action: ActionRemoveProperties, Removals: removals}
}
