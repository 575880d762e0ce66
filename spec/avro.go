package spec

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/linkedin/goavro/v2"
)

const avroSchemaManifestList = `{
  "type": "record",
  "name": "manifest_file",
  "fields": [
    {"name": "manifest_path", "type": "string"},
    {"name": "manifest_length", "type": "long"},
    {"name": "partition_spec_id", "type": "int"},
    {"name": "content", "type": "int", "default": 0},
    {"name": "sequence_number", "type": "long", "default": 0},
    {"name": "min_sequence_number", "type": "long", "default": 0},
    {"name": "added_snapshot_id", "type": "long"},
    {"name": "added_files_count", "type": "int", "default": 0},
    {"name": "existing_files_count", "type": "int", "default": 0},
    {"name": "deleted_files_count", "type": "int", "default": 0},
    {"name": "added_rows_count", "type": "long", "default": 0},
    {"name": "existing_rows_count", "type": "long", "default": 0},
    {"name": "deleted_rows_count", "type": "long", "default": 0}
  ]
}`

const avroSchemaManifestEntry = `{
  "type": "record",
  "name": "manifest_entry",
  "fields": [
    {"name": "status", "type": "int"},
    {"name": "snapshot_id", "type": ["null", "long"], "default": null},
    {"name": "sequence_number", "type": ["null", "long"], "default": null},
    {"name": "data_file", "type": {
      "type": "record",
      "name": "data_file",
      "fields": [
        {"name": "content", "type": "int", "default": 0},
        {"name": "file_path", "type": "string"},
        {"name": "file_format", "type": "string"},
        {"name": "partition", "type": {"type": "record", "name": "r102", "fields": []}},
        {"name": "record_count", "type": "long"},
        {"name": "file_size_in_bytes", "type": "long"},
        {"name": "value_counts", "type": ["null", {"type": "map", "values": "long"}], "default": null},
        {"name": "null_value_counts", "type": ["null", {"type": "map", "values": "long"}], "default": null}
      ]
    }}
  ]
}`

var (
	manifestListCodec  = mustCodec(avroSchemaManifestList)
	manifestEntryCodec = mustCodec(avroSchemaManifestEntry)
)

func mustCodec(schema string) *goavro.Codec {
	codec, err := goavro.NewCodec(schema)
	if err != nil {
		panic(fmt.Sprintf("invalid avro schema: %v", err))
	}
	return codec
}

// WriteManifestList encodes manifest list entries as an avro container file.
func WriteManifestList(manifests []ManifestFile) ([]byte, error) {
	buf := new(bytes.Buffer)
	ocf, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               buf,
		Codec:           manifestListCodec,
		CompressionName: goavro.CompressionDeflateLabel,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create OCF writer: %w", err)
	}

	records := make([]any, len(manifests))
	for i, mf := range manifests {
		records[i] = map[string]any{
			"manifest_path":        mf.ManifestPath,
			"manifest_length":      mf.ManifestLength,
			"partition_spec_id":    int32(mf.PartitionSpecID),
			"content":              int32(mf.Content),
			"sequence_number":      mf.SequenceNumber,
			"min_sequence_number":  mf.MinSequenceNumber,
			"added_snapshot_id":    mf.AddedSnapshotID,
			"added_files_count":    int32(mf.AddedFilesCount),
			"existing_files_count": int32(mf.ExistingFilesCount),
			"deleted_files_count":  int32(mf.DeletedFilesCount),
			"added_rows_count":     mf.AddedRowsCount,
			"existing_rows_count":  mf.ExistingRowsCount,
			"deleted_rows_count":   mf.DeletedRowsCount,
		}
	}
	if len(records) > 0 {
		if err := ocf.Append(records); err != nil {
			return nil, fmt.Errorf("failed to write manifest list entry: %w", err)
		}
	}

	return buf.Bytes(), nil
}

// ReadManifestList decodes a manifest list.
func ReadManifestList(r io.Reader) ([]ManifestFile, error) {
	ocf, err := goavro.NewOCFReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create OCF reader: %w", err)
	}

	var manifests []ManifestFile
	for ocf.Scan() {
		record, err := ocf.Read()
		if err != nil {
			return nil, fmt.Errorf("failed to read manifest list entry: %w", err)
		}
		m, ok := record.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("unexpected record type %T", record)
		}
		manifests = append(manifests, ManifestFile{
			ManifestPath:       getString(m, "manifest_path"),
			ManifestLength:     getInt64(m, "manifest_length"),
			PartitionSpecID:    int(getInt64(m, "partition_spec_id")),
			Content:            ManifestContent(getInt64(m, "content")),
			SequenceNumber:     getInt64(m, "sequence_number"),
			MinSequenceNumber:  getInt64(m, "min_sequence_number"),
			AddedSnapshotID:    getInt64(m, "added_snapshot_id"),
			AddedFilesCount:    int(getInt64(m, "added_files_count")),
			ExistingFilesCount: int(getInt64(m, "existing_files_count")),
			DeletedFilesCount:  int(getInt64(m, "deleted_files_count")),
			AddedRowsCount:     getInt64(m, "added_rows_count"),
			ExistingRowsCount:  getInt64(m, "existing_rows_count"),
			DeletedRowsCount:   getInt64(m, "deleted_rows_count"),
		})
	}
	if err := ocf.Err(); err != nil {
		return nil, fmt.Errorf("error reading manifest list: %w", err)
	}

	return manifests, nil
}

// WriteManifest encodes manifest entries as an avro container file. The
// schema id and content are stored in the file metadata.
func WriteManifest(schemaID int, content ManifestContent, entries []ManifestEntry) ([]byte, error) {
	buf := new(bytes.Buffer)
	ocf, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               buf,
		Codec:           manifestEntryCodec,
		CompressionName: goavro.CompressionDeflateLabel,
		MetaData: map[string][]byte{
			"schema-id":      []byte(strconv.Itoa(schemaID)),
			"content":        []byte(strconv.Itoa(int(content))),
			"format-version": []byte("2"),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create OCF writer: %w", err)
	}

	records := make([]any, len(entries))
	for i, entry := range entries {
		df := entry.DataFile
		records[i] = map[string]any{
			"status":          int32(entry.Status),
			"snapshot_id":     optionalLong(entry.SnapshotID),
			"sequence_number": optionalLong(entry.SequenceNumber),
			"data_file": map[string]any{
				"content":            int32(df.Content),
				"file_path":          df.FilePath,
				"file_format":        string(df.FileFormat),
				"partition":          map[string]any{},
				"record_count":       df.RecordCount,
				"file_size_in_bytes": df.FileSizeInBytes,
				"value_counts":       optionalCounts(df.ValueCounts),
				"null_value_counts":  optionalCounts(df.NullValueCounts),
			},
		}
	}
	if len(records) > 0 {
		if err := ocf.Append(records); err != nil {
			return nil, fmt.Errorf("failed to write manifest entry: %w", err)
		}
	}

	return buf.Bytes(), nil
}

// ReadManifest decodes a manifest file.
func ReadManifest(r io.Reader) (*Manifest, error) {
	ocf, err := goavro.NewOCFReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create OCF reader: %w", err)
	}

	manifest := &Manifest{}
	meta := ocf.MetaData()
	if v, ok := meta["schema-id"]; ok {
		manifest.SchemaID, _ = strconv.Atoi(string(v))
	}
	if v, ok := meta["content"]; ok {
		c, _ := strconv.Atoi(string(v))
		manifest.Content = ManifestContent(c)
	}

	for ocf.Scan() {
		record, err := ocf.Read()
		if err != nil {
			return nil, fmt.Errorf("failed to read manifest entry: %w", err)
		}
		m, ok := record.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("unexpected record type %T", record)
		}

		entry := ManifestEntry{
			Status:         EntryStatus(getInt64(m, "status")),
			SnapshotID:     getOptionalLong(m, "snapshot_id"),
			SequenceNumber: getOptionalLong(m, "sequence_number"),
		}
		if df, ok := m["data_file"].(map[string]any); ok {
			entry.DataFile = DataFile{
				Content:         FileContent(getInt64(df, "content")),
				FilePath:        getString(df, "file_path"),
				FileFormat:      FileFormat(getString(df, "file_format")),
				RecordCount:     getInt64(df, "record_count"),
				FileSizeInBytes: getInt64(df, "file_size_in_bytes"),
				ValueCounts:     getCounts(df, "value_counts"),
				NullValueCounts: getCounts(df, "null_value_counts"),
			}
		}
		manifest.Entries = append(manifest.Entries, entry)
	}
	if err := ocf.Err(); err != nil {
		return nil, fmt.Errorf("error reading manifest: %w", err)
	}

	return manifest, nil
}

func optionalLong(v *int64) any {
	if v == nil {
		return nil
	}
	return goavro.Union("long", *v)
}

func optionalCounts(m map[int]int64) any {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[strconv.Itoa(k)] = v
	}
	return goavro.Union("map", out)
}

func getString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func getInt64(m map[string]any, key string) int64 {
	switch v := m[key].(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int:
		return int64(v)
	}
	return 0
}

// getOptionalLong unwraps a ["null", "long"] union.
func getOptionalLong(m map[string]any, key string) *int64 {
	union, ok := m[key].(map[string]any)
	if !ok {
		return nil
	}
	v, ok := union["long"].(int64)
	if !ok {
		return nil
	}
	return &v
}

// getCounts unwraps a ["null", map<long>] union keyed by field id.
func getCounts(m map[string]any, key string) map[int]int64 {
	union, ok := m[key].(map[string]any)
	if !ok {
		return nil
	}
	data, ok := union["map"].(map[string]any)
	if !ok {
		return nil
	}

	result := make(map[int]int64, len(data))
	for k, v := range data {
		id, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		if n, ok := v.(int64); ok {
			result[id] = n
		}
	}
	return result
}
