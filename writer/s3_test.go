package writer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	appconfig "calderaflow/config"
)

func uploaderConfig() *appconfig.Config {
	cfg := &appconfig.Config{}
	cfg.Storage.S3.Enabled = true
	cfg.Storage.S3.Bucket = "calderaflow-artifacts"
	cfg.Storage.S3.Region = "us-west-2"
	cfg.Storage.S3.Prefix = "calderaflow"
	cfg.Storage.S3.RequestsPerSecond = 5
	cfg.Storage.S3.AccessKeyID = "test-access-key"
	cfg.Storage.S3.SecretAccessKey = "test-secret-key"
	return cfg
}

func TestNewUploaderRequiresEnabled(t *testing.T) {
	cfg := uploaderConfig()
	cfg.Storage.S3.Enabled = false
	if _, err := NewUploader(cfg); err == nil {
		t.Fatalf("expected error when s3 storage is disabled")
	}
}

func TestUploadRunHonorsCancellation(t *testing.T) {
	uploader, err := NewUploader(uploaderConfig())
	if err != nil {
		t.Fatalf("NewUploader failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "run_summary.json")
	if err := os.WriteFile(path, []byte("{}\n"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A cancelled context must stop the upload before any request is made.
	if err := uploader.UploadRun(ctx, "run-1", []string{path}); err == nil {
		t.Fatalf("expected error for cancelled context")
	}
}
