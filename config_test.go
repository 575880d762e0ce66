package lakeutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, CatalogSQL, cfg.Catalog.Type)
	assert.Equal(t, StorageLocal, cfg.Storage)
	assert.True(t, cfg.ValidatePrimaryKey)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name  string
		opts  []Option
		field string
	}{
		{name: "rest without uri", opts: []Option{WithRESTCatalog("")}, field: "catalog.uri"},
		{name: "sql without path", opts: []Option{WithSQLCatalog("")}, field: "catalog.path"},
		{name: "sql without warehouse", opts: []Option{WithWarehouse("")}, field: "warehouse"},
		{name: "negative concurrency", opts: []Option{WithConcurrency(-1)}, field: "concurrency"},
		{name: "rest", opts: []Option{WithRESTCatalog("http://localhost:8181"), WithToken("t")}},
		{name: "s3", opts: []Option{WithS3(S3Config{Region: "us-east-1"})}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			for _, opt := range tt.opts {
				opt(cfg)
			}
			err := cfg.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var ce *ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	cfg := DefaultConfig()
	cfg.Catalog.Type = "glue"
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.Storage = "gcs"
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}

func TestLoadConfig_Environment(t *testing.T) {
	environ := []string{
		"LAKEUTIL_CATALOG_TYPE=rest",
		"LAKEUTIL_CATALOG_URI=http://catalog:8181",
		"LAKEUTIL_WAREHOUSE=s3://lake/warehouse",
		"LAKEUTIL_STORAGE=s3",
		"LAKEUTIL_S3_REGION=eu-west-1",
		"LAKEUTIL_S3_PATHSTYLE=true",
		"LAKEUTIL_CONCURRENCY=8",
		"LAKEUTIL_VALIDATE_PRIMARY_KEY=false",
		"OTHER_CATALOG_TYPE=sql",
	}
	cfg, err := loadConfig("LAKEUTIL", filepath.Join(t.TempDir(), ".env"), environ)
	require.NoError(t, err)

	assert.Equal(t, CatalogREST, cfg.Catalog.Type)
	assert.Equal(t, "http://catalog:8181", cfg.Catalog.URI)
	assert.Equal(t, "lakeutil", cfg.Catalog.Name)
	assert.Equal(t, "s3://lake/warehouse", cfg.Warehouse)
	assert.Equal(t, StorageS3, cfg.Storage)
	assert.Equal(t, "eu-west-1", cfg.S3.Region)
	assert.True(t, cfg.S3.ForcePathStyle)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.False(t, cfg.ValidatePrimaryKey)
	assert.Equal(t, "INFO", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_DotEnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"LAKEUTIL_CATALOG_PATH=/data/catalog.db\n"+
			"LAKEUTIL_LOG_LEVEL=debug\n"+
			"LAKEUTIL_WAREHOUSE=/data/from-file\n"), 0o644))

	cfg, err := loadConfig("LAKEUTIL_", envFile, []string{"LAKEUTIL_WAREHOUSE=/data/from-env"})
	require.NoError(t, err)

	assert.Equal(t, "/data/catalog.db", cfg.Catalog.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/data/from-env", cfg.Warehouse)
}
