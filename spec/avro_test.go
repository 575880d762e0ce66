package spec

import (
	"bytes"
	"testing"
)

func TestManifestListRoundTrip(t *testing.T) {
	in := []ManifestFile{
		{
			ManifestPath:       "/t/metadata/m1.avro",
			ManifestLength:     512,
			SequenceNumber:     4,
			MinSequenceNumber:  1,
			AddedSnapshotID:    42,
			AddedFilesCount:    1,
			ExistingFilesCount: 2,
			DeletedFilesCount:  1,
			AddedRowsCount:     10,
			ExistingRowsCount:  20,
			DeletedRowsCount:   5,
		},
	}

	data, err := WriteManifestList(in)
	if err != nil {
		t.Fatalf("WriteManifestList failed: %v", err)
	}
	out, err := ReadManifestList(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadManifestList failed: %v", err)
	}

	if len(out) != 1 {
		t.Fatalf("read %d manifests, want 1", len(out))
	}
	if out[0] != in[0] {
		t.Errorf("manifest = %+v, want %+v", out[0], in[0])
	}
}

func TestManifestRoundTrip(t *testing.T) {
	snapID := int64(42)
	seq := int64(3)
	entries := []ManifestEntry{
		{
			Status:         EntryStatusAdded,
			SnapshotID:     &snapID,
			SequenceNumber: &seq,
			DataFile: DataFile{
				FilePath:        "/t/data/a.parquet",
				FileFormat:      FileFormatParquet,
				RecordCount:     3,
				FileSizeInBytes: 900,
				ValueCounts:     map[int]int64{1: 3, 2: 3},
				NullValueCounts: map[int]int64{2: 1},
			},
		},
		{
			Status: EntryStatusDeleted,
			DataFile: DataFile{
				FilePath:    "/t/data/b.parquet",
				FileFormat:  FileFormatParquet,
				RecordCount: 7,
			},
		},
	}

	data, err := WriteManifest(5, ManifestContentData, entries)
	if err != nil {
		t.Fatalf("WriteManifest failed: %v", err)
	}
	m, err := ReadManifest(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadManifest failed: %v", err)
	}

	if m.SchemaID != 5 {
		t.Errorf("SchemaID = %d, want 5", m.SchemaID)
	}
	if len(m.Entries) != 2 {
		t.Fatalf("Entries length = %d, want 2", len(m.Entries))
	}

	first := m.Entries[0]
	if first.SnapshotID == nil || *first.SnapshotID != 42 {
		t.Errorf("SnapshotID = %v, want 42", first.SnapshotID)
	}
	if first.DataFile.ValueCounts[1] != 3 || first.DataFile.NullValueCounts[2] != 1 {
		t.Errorf("column counts = %v / %v", first.DataFile.ValueCounts, first.DataFile.NullValueCounts)
	}
	if m.Entries[1].SnapshotID != nil {
		t.Errorf("second SnapshotID = %v, want nil", *m.Entries[1].SnapshotID)
	}

	live := m.LiveEntries()
	if len(live) != 1 || live[0].DataFile.FilePath != "/t/data/a.parquet" {
		t.Errorf("LiveEntries = %+v, want only a.parquet", live)
	}
}

func TestEmptyManifestList(t *testing.T) {
	data, err := WriteManifestList(nil)
	if err != nil {
		t.Fatalf("WriteManifestList failed: %v", err)
	}
	out, err := ReadManifestList(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadManifestList failed: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("read %d manifests, want 0", len(out))
	}
}
