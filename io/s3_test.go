package io

import "testing"

func TestParseS3URI(t *testing.T) {
	tests := []struct {
		uri     string
		bucket  string
		key     string
		wantErr bool
	}{
		{"s3://warehouse/db/t/data/a.parquet", "warehouse", "db/t/data/a.parquet", false},
		{"s3a://warehouse/db/t", "warehouse", "db/t", false},
		{"s3://warehouse", "warehouse", "", false},
		{"s3:///no-bucket", "", "", true},
		{"/local/path", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, key, err := parseS3URI(tt.uri)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseS3URI(%q) should fail", tt.uri)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseS3URI(%q) failed: %v", tt.uri, err)
			}
			if bucket != tt.bucket || key != tt.key {
				t.Errorf("parseS3URI(%q) = %q, %q, want %q, %q", tt.uri, bucket, key, tt.bucket, tt.key)
			}
		})
	}
}

func TestIsS3Location(t *testing.T) {
	if !IsS3Location("s3://b/k") || !IsS3Location("s3a://b/k") {
		t.Error("s3 schemes should be recognized")
	}
	if IsS3Location("/tmp/warehouse") || IsS3Location("file:///tmp") {
		t.Error("local paths should not be S3 locations")
	}
}
