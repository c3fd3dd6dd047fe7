// Package storage provides per-run scratch space and persistent output storage.
// It defines the Storage interface (port) and implementations for local disk
// and S3.
package storage

import (
	"context"
	"io"
)

// Storage hands out run workspaces and optionally uploads finished videos.
type Storage interface {
	// NewWorkspace creates an empty scratch directory owned by runID.
	// Two runs never share a workspace.
	NewWorkspace(ctx context.Context, runID string) (*Workspace, error)

	// UploadToS3 uploads data to S3 and returns the public URL.
	// Returns ErrS3NotConfigured if S3 is not configured.
	UploadToS3(ctx context.Context, key string, data io.Reader) (url string, err error)
}
