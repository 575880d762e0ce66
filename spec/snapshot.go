package spec

import (
	"encoding/json"
	"strconv"
	"time"
)

// Operation is the kind of change that produced a snapshot.
type Operation string

const (
	OpAppend    Operation = "append"
	OpOverwrite Operation = "overwrite"
	OpDelete    Operation = "delete"
)

// Summary describes what a snapshot changed. Counts are serialized as
// strings, following the table format.
type Summary struct {
	Operation             Operation
	AddedDataFilesCount   int64
	AddedRecordsCount     int64
	DeletedDataFilesCount int64
	DeletedRecordsCount   int64
	TotalDataFilesCount   int64
	TotalRecordsCount     int64
	Extra                 map[string]string
}

var summaryKeys = []struct {
	key string
	get func(*Summary) *int64
}{
	{"added-data-files", func(s *Summary) *int64 { return &s.AddedDataFilesCount }},
	{"added-records", func(s *Summary) *int64 { return &s.AddedRecordsCount }},
	{"deleted-data-files", func(s *Summary) *int64 { return &s.DeletedDataFilesCount }},
	{"deleted-records", func(s *Summary) *int64 { return &s.DeletedRecordsCount }},
	{"total-data-files", func(s *Summary) *int64 { return &s.TotalDataFilesCount }},
	{"total-records", func(s *Summary) *int64 { return &s.TotalRecordsCount }},
}

// MarshalJSON implements json.Marshaler.
func (s *Summary) MarshalJSON() ([]byte, error) {
	m := make(map[string]string, len(summaryKeys)+len(s.Extra)+1)
	for k, v := range s.Extra {
		m[k] = v
	}
	m["operation"] = string(s.Operation)
	for _, sk := range summaryKeys {
		m[sk.key] = strconv.FormatInt(*sk.get(s), 10)
	}
	return json.Marshal(m)
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Summary) UnmarshalJSON(data []byte) error {
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}

	s.Operation = Operation(m["operation"])
	delete(m, "operation")
	for _, sk := range summaryKeys {
		if v, ok := m[sk.key]; ok {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return err
			}
			*sk.get(s) = n
			delete(m, sk.key)
		}
	}
	s.Extra = m
	return nil
}

// Snapshot is the state of a table at a point in time.
type Snapshot struct {
	SnapshotID       int64    `json:"snapshot-id"`
	ParentSnapshotID *int64   `json:"parent-snapshot-id,omitempty"`
	SequenceNumber   int64    `json:"sequence-number"`
	TimestampMs      int64    `json:"timestamp-ms"`
	ManifestList     string   `json:"manifest-list,omitempty"`
	Summary          *Summary `json:"summary,omitempty"`
	SchemaID         *int     `json:"schema-id,omitempty"`
}

// Timestamp returns the snapshot timestamp as a time.Time.
func (s *Snapshot) Timestamp() time.Time {
	return time.UnixMilli(s.TimestampMs)
}

// SnapshotRef points a branch or tag at a snapshot.
type SnapshotRef struct {
	SnapshotID int64  `json:"snapshot-id"`
	Type       string `json:"type"`
}

// SnapshotLog records when a snapshot became current.
type SnapshotLog struct {
	SnapshotID  int64 `json:"snapshot-id"`
	TimestampMs int64 `json:"timestamp-ms"`
}
