package table

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/BrobridgeOrg/go-lakeutil/catalog"
	"github.com/BrobridgeOrg/go-lakeutil/io"
	"github.com/BrobridgeOrg/go-lakeutil/spec"
)

// Transaction collects changes against the metadata it was started from
// and commits them atomically. The commit fails with a catalog commit
// conflict if the main branch moved in the meantime.
type Transaction struct {
	table    *Table
	base     *spec.TableMetadata
	updates  []catalog.TableUpdate
	snapshot *SnapshotBuilder
}

// NewTransaction starts a transaction on the table's current metadata.
func (t *Table) NewTransaction() *Transaction {
	return &Transaction{table: t, base: t.metadata}
}

// SetProperties sets table properties.
func (tx *Transaction) SetProperties(props map[string]string) *Transaction {
	tx.updates = append(tx.updates, catalog.UpdateSetProperties(props))
	return tx
}

// RemoveProperties removes table properties.
func (tx *Transaction) RemoveProperties(keys []string) *Transaction {
	tx.updates = append(tx.updates, catalog.UpdateRemoveProperties(keys))
	return tx
}

// NewSnapshot starts the snapshot this transaction will commit. Calling it
// twice returns the same builder.
func (tx *Transaction) NewSnapshot(op spec.Operation) *SnapshotBuilder {
	if tx.snapshot == nil {
		tx.snapshot = &SnapshotBuilder{table: tx.table, base: tx.base, operation: op}
	}
	return tx.snapshot
}

// Commit writes the snapshot manifests, if any, and commits all changes.
// It returns the new snapshot, or nil when the transaction added none.
func (tx *Transaction) Commit(ctx context.Context) (*spec.Snapshot, error) {
	updates := tx.updates

	var snapshot *spec.Snapshot
	var written []string
	if tx.snapshot != nil && !tx.snapshot.empty() {
		var err error
		snapshot, written, err = tx.snapshot.build(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to build snapshot: %w", err)
		}
		updates = append(updates,
			catalog.UpdateAddSnapshot(snapshot),
			catalog.UpdateSetSnapshotRef(spec.MainBranch, snapshot.SnapshotID, "branch"),
		)
	}

	if len(updates) == 0 {
		return nil, nil
	}

	requirements := []catalog.TableRequirement{
		catalog.RequireAssertTableUUID(tx.base.TableUUID),
		catalog.RequireAssertRefSnapshotID(spec.MainBranch, tx.base.CurrentSnapshotID),
	}

	meta, err := tx.table.cat.CommitTable(ctx, tx.table.identifier, requirements, updates)
	if err != nil {
		// A conflict means the catalog never saw our manifests. Other
		// failures are ambiguous, so the files are kept.
		if errors.Is(err, catalog.ErrCommitFailed) {
			for _, p := range written {
				_ = tx.table.fileIO.Delete(ctx, p)
			}
		}
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	tx.table.metadata = meta
	return snapshot, nil
}

// SnapshotBuilder accumulates file changes for a new snapshot. The
// snapshot it builds lists every live file of the table: files carried
// over from the base snapshot, files added, and tombstones for files
// removed.
type SnapshotBuilder struct {
	table        *Table
	base         *spec.TableMetadata
	operation    spec.Operation
	addedFiles   []spec.DataFile
	deletedFiles map[string]bool
	deleteAll    bool
}

// AddDataFile adds a data file to the snapshot.
func (b *SnapshotBuilder) AddDataFile(files ...spec.DataFile) *SnapshotBuilder {
	b.addedFiles = append(b.addedFiles, files...)
	return b
}

// DeleteDataFile removes a data file of the base snapshot.
func (b *SnapshotBuilder) DeleteDataFile(paths ...string) *SnapshotBuilder {
	if b.deletedFiles == nil {
		b.deletedFiles = make(map[string]bool)
	}
	for _, p := range paths {
		b.deletedFiles[p] = true
	}
	return b
}

// DeleteAll removes every data file of the base snapshot.
func (b *SnapshotBuilder) DeleteAll() *SnapshotBuilder {
	b.deleteAll = true
	return b
}

func (b *SnapshotBuilder) empty() bool {
	return len(b.addedFiles) == 0 && len(b.deletedFiles) == 0 && !b.deleteAll
}

func (b *SnapshotBuilder) newSnapshotID() int64 {
	id := time.Now().UnixNano()
	for b.base.SnapshotByID(id) != nil {
		id++
	}
	return id
}

// build writes the manifest and manifest list of the new snapshot and
// returns the snapshot with the paths it wrote.
func (b *SnapshotBuilder) build(ctx context.Context) (*spec.Snapshot, []string, error) {
	snapshotID := b.newSnapshotID()
	seqNum := b.base.LastSequenceNumber + 1
	schemaID := b.base.CurrentSchemaID
	parent := b.base.CurrentSnapshot()

	previous, err := b.table.liveEntries(ctx, parent)
	if err != nil {
		return nil, nil, err
	}

	summary := &spec.Summary{Operation: b.operation}
	manifest := spec.ManifestFile{
		Content:           spec.ManifestContentData,
		SequenceNumber:    seqNum,
		MinSequenceNumber: seqNum,
		AddedSnapshotID:   snapshotID,
	}

	entries := make([]spec.ManifestEntry, 0, len(previous)+len(b.addedFiles))
	found := make(map[string]bool, len(b.deletedFiles))
	for _, entry := range previous {
		fp := entry.DataFile.FilePath
		if b.deleteAll || b.deletedFiles[fp] {
			found[fp] = true
			entries = append(entries, spec.ManifestEntry{
				Status:         spec.EntryStatusDeleted,
				SnapshotID:     &snapshotID,
				SequenceNumber: entry.SequenceNumber,
				DataFile:       entry.DataFile,
			})
			manifest.DeletedFilesCount++
			manifest.DeletedRowsCount += entry.DataFile.RecordCount
			continue
		}

		entry.Status = spec.EntryStatusExisting
		entries = append(entries, entry)
		manifest.ExistingFilesCount++
		manifest.ExistingRowsCount += entry.DataFile.RecordCount
		if entry.SequenceNumber != nil {
			manifest.MinSequenceNumber = min(manifest.MinSequenceNumber, *entry.SequenceNumber)
		}
	}
	for p := range b.deletedFiles {
		if !found[p] {
			return nil, nil, fmt.Errorf("cannot delete %s: not a live file of the table", p)
		}
	}

	for _, f := range b.addedFiles {
		entries = append(entries, spec.ManifestEntry{
			Status:         spec.EntryStatusAdded,
			SnapshotID:     &snapshotID,
			SequenceNumber: &seqNum,
			DataFile:       f,
		})
		manifest.AddedFilesCount++
		manifest.AddedRowsCount += f.RecordCount
	}

	summary.AddedDataFilesCount = int64(manifest.AddedFilesCount)
	summary.AddedRecordsCount = manifest.AddedRowsCount
	summary.DeletedDataFilesCount = int64(manifest.DeletedFilesCount)
	summary.DeletedRecordsCount = manifest.DeletedRowsCount
	summary.TotalDataFilesCount = int64(manifest.ExistingFilesCount + manifest.AddedFilesCount)
	summary.TotalRecordsCount = manifest.ExistingRowsCount + manifest.AddedRowsCount

	metaDir := joinLocation(b.base.Location, "metadata")
	var written []string
	cleanup := func() {
		for _, p := range written {
			_ = b.table.fileIO.Delete(ctx, p)
		}
	}

	manifestData, err := spec.WriteManifest(schemaID, spec.ManifestContentData, entries)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	manifest.ManifestPath = joinLocation(metaDir, fmt.Sprintf("%s-m0.avro", uuid.NewString()))
	manifest.ManifestLength = int64(len(manifestData))
	if err := io.WriteFile(ctx, b.table.fileIO, manifest.ManifestPath, manifestData, true); err != nil {
		return nil, nil, err
	}
	written = append(written, manifest.ManifestPath)

	listData, err := spec.WriteManifestList([]spec.ManifestFile{manifest})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to encode manifest list: %w", err)
	}
	listPath := joinLocation(metaDir, fmt.Sprintf("snap-%d-%s.avro", snapshotID, uuid.NewString()))
	if err := io.WriteFile(ctx, b.table.fileIO, listPath, listData, true); err != nil {
		cleanup()
		return nil, nil, err
	}
	written = append(written, listPath)

	snapshot := &spec.Snapshot{
		SnapshotID:     snapshotID,
		SequenceNumber: seqNum,
		TimestampMs:    time.Now().UnixMilli(),
		ManifestList:   listPath,
		Summary:        summary,
		SchemaID:       &schemaID,
	}
	if parent != nil {
		snapshot.ParentSnapshotID = &parent.SnapshotID
	}
	return snapshot, written, nil
}
