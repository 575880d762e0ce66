// Package lakeutil removes duplicate rows from transactional lake tables
// and reports their latest committed version.
//
// Tables live in an Iceberg-style layout: parquet data files, avro
// manifests and JSON table metadata, tracked by a SQL or REST catalog.
// Every change is a single atomic commit that produces a new snapshot,
// and the snapshot's sequence number is the table's version.
//
// # Quick Start
//
// Create a client backed by a local SQLite catalog:
//
//	client, err := lakeutil.NewClient(ctx,
//	    lakeutil.WithSQLCatalog("/var/lib/lake/catalog.db"),
//	    lakeutil.WithWarehouse("/var/lib/lake/warehouse"),
//	)
//	defer client.Close()
//
// Or from LAKEUTIL_* environment variables and a .env file:
//
//	cfg, err := lakeutil.LoadConfig("LAKEUTIL")
//	client, err := lakeutil.NewClientFromConfig(ctx, cfg)
//
// Delete every row whose (a, b) pair occurs more than once:
//
//	err := client.RemoveAllDuplicates(ctx, "analytics.events", "a", "b")
//
// Keep the row with the smallest id of each (a) group:
//
//	err := client.RemoveDuplicatesKeepOne(ctx, "analytics.events", "id", "a")
//
// Read the latest version:
//
//	v, err := client.LatestVersion(ctx, "analytics.events")
//
// # Concurrency
//
// Deduplication reads the table, computes the duplicate keys and deletes
// them in one commit. If another writer commits in between, the commit
// fails with an error for which IsCommitConflict reports true and the
// table is left unchanged. Two deduplication runs against the same table
// should not overlap.
//
// The dedup package exposes the resolver over an abstract Table
// interface, and the table package the underlying scan, delete and merge
// operations.
package lakeutil
