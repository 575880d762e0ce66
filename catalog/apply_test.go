package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrobridgeOrg/go-lakeutil/spec"
)

func TestCheckRequirements(t *testing.T) {
	id := TableIdentifier{Namespace: Namespace{"db"}, Name: "t"}
	meta := spec.NewTableMetadata("uuid-1", "/w/db/t", testSchema(), nil, 1)
	b := spec.NewMetadataBuilder(meta)
	require.NoError(t, b.AddSnapshot(spec.Snapshot{SnapshotID: 5, SequenceNumber: 1}))
	require.NoError(t, b.SetRef(spec.MainBranch, spec.SnapshotRef{SnapshotID: 5, Type: "branch"}))
	withSnap := b.Build()

	five := int64(5)
	six := int64(6)

	tests := []struct {
		name    string
		meta    *spec.TableMetadata
		req     TableRequirement
		wantErr bool
	}{
		{"create on missing table", nil, RequireAssertCreate(), false},
		{"create on existing table", meta, RequireAssertCreate(), true},
		{"uuid matches", meta, RequireAssertTableUUID("uuid-1"), false},
		{"uuid differs", meta, RequireAssertTableUUID("other"), true},
		{"ref absent as expected", meta, RequireAssertRefSnapshotID(spec.MainBranch, nil), false},
		{"ref unexpectedly present", withSnap, RequireAssertRefSnapshotID(spec.MainBranch, nil), true},
		{"ref matches", withSnap, RequireAssertRefSnapshotID(spec.MainBranch, &five), false},
		{"ref moved", withSnap, RequireAssertRefSnapshotID(spec.MainBranch, &six), true},
		{"ref missing", meta, RequireAssertRefSnapshotID(spec.MainBranch, &five), true},
		{"schema matches", meta, RequireAssertCurrentSchemaID(0), false},
		{"schema differs", meta, RequireAssertCurrentSchemaID(3), true},
		{"table missing", nil, RequireAssertTableUUID("uuid-1"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckRequirements(id, tt.meta, []TableRequirement{tt.req})
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrCommitFailed)
			assert.Contains(t, err.Error(), "db.t")
		})
	}
}

func TestApplyUpdates(t *testing.T) {
	base := spec.NewTableMetadata("uuid-1", "/w/db/t", testSchema(), nil, 1)

	newSchema := spec.NewSchema(0, []spec.NestedField{
		{ID: 1, Name: "id", Required: true, Type: spec.LongType},
		{ID: 2, Name: "a", Type: spec.StringType},
		{ID: 3, Name: "b", Type: spec.IntType},
	})

	meta, err := ApplyUpdates(base, []TableUpdate{
		UpdateAddSchema(newSchema),
		UpdateSetCurrentSchema(-1),
		UpdateAddSnapshot(&spec.Snapshot{SnapshotID: 9, SequenceNumber: 1, TimestampMs: 10}),
		UpdateSetSnapshotRef(spec.MainBranch, 9, "branch"),
		UpdateSetProperties(map[string]string{"k": "v", "gone": "x"}),
		UpdateRemoveProperties([]string{"gone"}),
	}, 20)
	require.NoError(t, err)

	assert.Equal(t, 1, meta.CurrentSchemaID)
	assert.Equal(t, 3, meta.LastColumnID)
	assert.Equal(t, int64(9), *meta.CurrentSnapshotID)
	assert.Equal(t, map[string]string{"k": "v"}, meta.Properties)
	assert.Equal(t, int64(20), meta.LastUpdatedMs)
	assert.Nil(t, base.CurrentSnapshotID, "base metadata must be left untouched")

	_, err = ApplyUpdates(base, []TableUpdate{{Action: "rename-table"}}, 20)
	assert.Error(t, err)

	_, err = ApplyUpdates(base, []TableUpdate{UpdateSetSnapshotRef(spec.MainBranch, 42, "branch")}, 20)
	assert.Error(t, err)
}
