package document

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/spec-kit/campus-desk/internal/config"
)

// OpenBucket opens the artifact sink. A configured bucket URL wins; otherwise the
// artifact directory is created and served as a file bucket.
func OpenBucket(ctx context.Context, cfg config.StorageConfig) (*blob.Bucket, error) {
	if cfg.BucketURL != "" {
		bucket, err := blob.OpenBucket(ctx, cfg.BucketURL)
		if err != nil {
			return nil, fmt.Errorf("open bucket %q: %w", cfg.BucketURL, err)
		}
		return bucket, nil
	}

	dir, err := filepath.Abs(cfg.ArtifactDir)
	if err != nil {
		return nil, fmt.Errorf("resolve artifact dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	bucket, err := fileblob.OpenBucket(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("open artifact dir: %w", err)
	}
	return bucket, nil
}
