package table

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/BrobridgeOrg/go-lakeutil/io"
	"github.com/BrobridgeOrg/go-lakeutil/spec"
)

func (t *Table) readManifestList(ctx context.Context, snap *spec.Snapshot) ([]spec.ManifestFile, error) {
	if snap == nil || snap.ManifestList == "" {
		return nil, nil
	}
	data, err := io.ReadFile(ctx, t.fileIO, snap.ManifestList)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest list: %w", err)
	}
	manifests, err := spec.ReadManifestList(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode manifest list %s: %w", snap.ManifestList, err)
	}
	return manifests, nil
}

func (t *Table) readManifest(ctx context.Context, mf spec.ManifestFile) (*spec.Manifest, error) {
	data, err := io.ReadFile(ctx, t.fileIO, mf.ManifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	m, err := spec.ReadManifest(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode manifest %s: %w", mf.ManifestPath, err)
	}
	return m, nil
}

// liveEntries returns the data file entries that make up snap.
func (t *Table) liveEntries(ctx context.Context, snap *spec.Snapshot) ([]spec.ManifestEntry, error) {
	manifests, err := t.readManifestList(ctx, snap)
	if err != nil {
		return nil, err
	}

	var entries []spec.ManifestEntry
	for _, mf := range manifests {
		if mf.Content != spec.ManifestContentData {
			continue
		}
		m, err := t.readManifest(ctx, mf)
		if err != nil {
			return nil, err
		}
		entries = append(entries, m.LiveEntries()...)
	}
	return entries, nil
}

// joinLocation appends path elements to a table location. Unlike
// path.Join it leaves URI schemes such as s3:// intact.
func joinLocation(base string, elem ...string) string {
	return strings.Join(append([]string{strings.TrimSuffix(base, "/")}, elem...), "/")
}
