package catalog

import (
	"fmt"

	"github.com/BrobridgeOrg/go-lakeutil/spec"
)

// CheckRequirements validates requirements against the current metadata of
// a table. meta is nil when the table does not exist.
func CheckRequirements(id TableIdentifier, meta *spec.TableMetadata, reqs []TableRequirement) error {
	for _, req := range reqs {
		if err := checkRequirement(meta, req); err != nil {
			err.Table = id.String()
			return err
		}
	}
	return nil
}

func checkRequirement(meta *spec.TableMetadata, req TableRequirement) *CommitConflictError {
	if req.Type == RequirementAssertCreate {
		if meta != nil {
			return &CommitConflictError{Requirement: req.Type, Expected: "no table", Actual: meta.TableUUID}
		}
		return nil
	}
	if meta == nil {
		return &CommitConflictError{Requirement: req.Type, Expected: "existing table", Actual: "no table", Cause: ErrNoSuchTable}
	}

	switch req.Type {
	case RequirementAssertTableUUID:
		if req.UUID == nil || *req.UUID != meta.TableUUID {
			return &CommitConflictError{Requirement: req.Type, Expected: deref(req.UUID), Actual: meta.TableUUID}
		}

	case RequirementAssertRefSnapshotID:
		ref, ok := meta.Refs[deref(req.Ref)]
		switch {
		case req.SnapshotID == nil && ok:
			return &CommitConflictError{Requirement: req.Type, Expected: "no ref", Actual: ref.SnapshotID}
		case req.SnapshotID != nil && !ok:
			return &CommitConflictError{Requirement: req.Type, Expected: *req.SnapshotID, Actual: "no ref"}
		case req.SnapshotID != nil && ref.SnapshotID != *req.SnapshotID:
			return &CommitConflictError{Requirement: req.Type, Expected: *req.SnapshotID, Actual: ref.SnapshotID}
		}

	case RequirementAssertCurrentSchemaID:
		if req.CurrentSchemaID == nil || *req.CurrentSchemaID != meta.CurrentSchemaID {
			return &CommitConflictError{Requirement: req.Type, Expected: deref(req.CurrentSchemaID), Actual: meta.CurrentSchemaID}
		}

	default:
		return &CommitConflictError{Requirement: req.Type, Cause: fmt.Errorf("unknown requirement type %q", req.Type)}
	}
	return nil
}

// ApplyUpdates applies updates to a copy of base and returns the result.
func ApplyUpdates(base *spec.TableMetadata, updates []TableUpdate, nowMs int64) (*spec.TableMetadata, error) {
	b := spec.NewMetadataBuilder(base)
	lastSchemaID := -1

	for _, u := range updates {
		switch u.Action {
		case ActionAddSchema:
			if u.Schema == nil {
				return nil, fmt.Errorf("%s: missing schema", u.Action)
			}
			lastSchemaID = b.AddSchema(u.Schema)

		case ActionSetCurrentSchema:
			id := deref(u.SchemaID)
			if id == -1 {
				id = lastSchemaID
			}
			if err := b.SetCurrentSchema(id); err != nil {
				return nil, fmt.Errorf("%s: %w", u.Action, err)
			}

		case ActionAddSnapshot:
			if u.Snapshot == nil {
				return nil, fmt.Errorf("%s: missing snapshot", u.Action)
			}
			if err := b.AddSnapshot(*u.Snapshot); err != nil {
				return nil, fmt.Errorf("%s: %w", u.Action, err)
			}

		case ActionSetSnapshotRef:
			if u.RefName == nil || u.SnapshotID == nil {
				return nil, fmt.Errorf("%s: missing ref name or snapshot id", u.Action)
			}
			refType := "branch"
			if u.Type != nil {
				refType = *u.Type
			}
			if err := b.SetRef(*u.RefName, spec.SnapshotRef{SnapshotID: *u.SnapshotID, Type: refType}); err != nil {
				return nil, fmt.Errorf("%s: %w", u.Action, err)
			}

		case ActionSetProperties:
			b.SetProperties(u.Updates)

		case ActionRemoveProperties:
			b.RemoveProperties(u.Removals)

		default:
			return nil, fmt.Errorf("unsupported update action %q", u.Action)
		}
	}

	meta := b.Build()
	if meta.LastUpdatedMs < nowMs {
		meta.LastUpdatedMs = nowMs
	}
	return meta, nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
