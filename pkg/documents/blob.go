package documents

import (
	"context"
	"fmt"
	"io"

	"github.com/opschat/opschat/pkg/config"
)

// BlobStore is where document content lives. Put returns the URL the
// metadata record should carry.
type BlobStore interface {
	Put(ctx context.Context, key string, content io.Reader, contentType string) (url string, err error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// NewBlobStore builds the backend named by the storage configuration.
func NewBlobStore(ctx context.Context, cfg config.StorageConfig) (BlobStore, error) {
	switch cfg.Type {
	case "filesystem":
		return NewFilesystemBlobStore(cfg.FilesystemRoot)
	case "s3":
		return NewS3BlobStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
