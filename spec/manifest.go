package spec

import (
	"fmt"
)

// ManifestContent is the kind of files a manifest tracks.
type ManifestContent int

const (
	ManifestContentData    ManifestContent = 0
	ManifestContentDeletes ManifestContent = 1
)

// FileContent is the kind of a tracked file.
type FileContent int

const (
	FileContentData FileContent = 0
)

// FileFormat is the format of a data file.
type FileFormat string

const FileFormatParquet FileFormat = "PARQUET"

// EntryStatus is the state of a manifest entry within its snapshot.
type EntryStatus int

const (
	EntryStatusExisting EntryStatus = 0
	EntryStatusAdded    EntryStatus = 1
	EntryStatusDeleted  EntryStatus = 2
)

// String returns the string representation.
func (s EntryStatus) String() string {
	switch s {
	case EntryStatusExisting:
		return "existing"
	case EntryStatusAdded:
		return "added"
	case EntryStatusDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// DataFile describes one data file of a table.
type DataFile struct {
	Content         FileContent
	FilePath        string
	FileFormat      FileFormat
	RecordCount     int64
	FileSizeInBytes int64
	ValueCounts     map[int]int64
	NullValueCounts map[int]int64
}

// Validate validates the data file.
func (f *DataFile) Validate() error {
	if f.FilePath == "" {
		return fmt.Errorf("file path is required")
	}
	if f.FileFormat == "" {
		return fmt.Errorf("file format is required")
	}
	if f.RecordCount < 0 {
		return fmt.Errorf("record count must be non-negative")
	}
	if f.FileSizeInBytes < 0 {
		return fmt.Errorf("file size must be non-negative")
	}
	return nil
}

// ManifestEntry tracks a data file in a manifest.
type ManifestEntry struct {
	Status         EntryStatus
	SnapshotID     *int64
	SequenceNumber *int64
	DataFile       DataFile
}

// ManifestFile is an entry of a manifest list.
type ManifestFile struct {
	ManifestPath       string
	ManifestLength     int64
	PartitionSpecID    int
	Content            ManifestContent
	SequenceNumber     int64
	MinSequenceNumber  int64
	AddedSnapshotID    int64
	AddedFilesCount    int
	ExistingFilesCount int
	DeletedFilesCount  int
	AddedRowsCount     int64
	ExistingRowsCount  int64
	DeletedRowsCount   int64
}

// Manifest is a decoded manifest file.
type Manifest struct {
	SchemaID int
	Content  ManifestContent
	Entries  []ManifestEntry
}

// LiveEntries returns entries that are not deleted.
func (m *Manifest) LiveEntries() []ManifestEntry {
	result := make([]ManifestEntry, 0, len(m.Entries))
	for _, entry := range m.Entries {
		if entry.Status != EntryStatusDeleted {
			result = append(result, entry)
		}
	}
	return result
}
