package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrS3NotConfigured is returned when S3 operations are attempted
	// without proper configuration.
	ErrS3NotConfigured = errors.New("S3 storage is not configured")
	// ErrInvalidRunID is returned for run ids that are not a single path element.
	ErrInvalidRunID = errors.New("invalid run id")
	// ErrWorkspaceExists is returned when a run id is reused.
	ErrWorkspaceExists = errors.New("workspace already exists")
)

// LocalStorage implements the Storage interface using local disk.
// Each run gets its own subdirectory of tempDir. S3 is not supported
// unless wrapped with S3Storage.
type LocalStorage struct {
	tempDir string
}

// NewLocalStorage creates a new LocalStorage instance.
// The tempDir parameter specifies where run workspaces are created.
// If tempDir is empty, a "slideshow" directory under os.TempDir() is used.
// The directory is created if it doesn't exist.
func NewLocalStorage(tempDir string) (*LocalStorage, error) {
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), "slideshow")
	}

	if err := os.MkdirAll(tempDir, 0750); err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}

	return &LocalStorage{tempDir: tempDir}, nil
}

// TempDir returns the temporary directory path.
func (s *LocalStorage) TempDir() string {
	return s.tempDir
}

// NewWorkspace creates TEMP_DIR/<runID>/.
func (s *LocalStorage) NewWorkspace(ctx context.Context, runID string) (*Workspace, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	if runID == "" || runID == "." || runID == ".." || strings.ContainsAny(runID, `/\`) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRunID, runID)
	}

	dir := filepath.Join(s.tempDir, runID)
	if err := os.Mkdir(dir, 0750); err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrWorkspaceExists, runID)
		}
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	return &Workspace{dir: dir, runID: runID}, nil
}

// UploadToS3 is not supported by LocalStorage and returns ErrS3NotConfigured.
func (s *LocalStorage) UploadToS3(_ context.Context, _ string, _ io.Reader) (string, error) {
	return "", ErrS3NotConfigured
}

var (
	_ Storage = (*LocalStorage)(nil)
	_ Storage = (*S3Storage)(nil)
)
