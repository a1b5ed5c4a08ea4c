// Package storage persists the manual-override file. The local backend
// writes through a temp file and rename; the aws backend keeps a single S3
// object. Both treat a missing file as empty.
package storage

import (
	"context"
	"fmt"

	"github.com/ignite/cohort-match/internal/config"
)

// Backend reads and replaces one opaque blob.
type Backend interface {
	// Read returns the stored bytes, or nil with no error when nothing has
	// been written yet.
	Read(ctx context.Context) ([]byte, error)
	// Write replaces the stored bytes as a whole. Readers never observe a
	// partially written blob.
	Write(ctx context.Context, data []byte) error
	// Location describes where the blob lives, for logs.
	Location() string
}

// New builds the backend selected by cfg.Type.
func New(ctx context.Context, cfg config.OverridesConfig) (Backend, error) {
	switch cfg.Type {
	case "", "local":
		return NewLocalBackend(cfg.LocalPath)
	case "aws":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("overrides: s3_bucket is required for type aws")
		}
		return NewAWSBackend(ctx, cfg.S3Bucket, cfg.S3Key, cfg.AWSRegion, cfg.GetAWSProfile())
	default:
		return nil, fmt.Errorf("overrides: unknown storage type %q", cfg.Type)
	}
}
