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

// ErrOutsideWorkspace is returned when a path does not belong to the workspace.
var ErrOutsideWorkspace = errors.New("path is outside the workspace")

// Workspace is the scratch directory of a single run. Every file it hands
// out lives directly inside dir, so Release never touches another run.
type Workspace struct {
	dir   string
	runID string
}

// Dir returns the workspace directory.
func (w *Workspace) Dir() string { return w.dir }

// RunID returns the id of the owning run.
func (w *Workspace) RunID() string { return w.runID }

// Path returns a path for a generated artifact with the given name.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.dir, filepath.Base(name))
}

// SaveTemp saves data to a new file and returns its path.
// The name's stem and extension are kept around a unique suffix.
func (w *Workspace) SaveTemp(ctx context.Context, name string, data io.Reader) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	base := filepath.Base(name)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" || stem == "." {
		stem = "upload"
	}

	f, err := os.CreateTemp(w.dir, stem+"_*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	fileName := f.Name()
	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(fileName)
		return "", fmt.Errorf("write temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(fileName)
		return "", fmt.Errorf("close temp file: %w", err)
	}

	return fileName, nil
}

// LoadTemp opens a workspace file for reading.
// The caller is responsible for closing the returned ReadCloser.
func (w *Workspace) LoadTemp(ctx context.Context, path string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	if !w.owns(path) {
		return nil, fmt.Errorf("%w: %s", ErrOutsideWorkspace, path)
	}

	f, err := os.Open(path) // #nosec G304 - path is checked to be inside the workspace
	if err != nil {
		return nil, fmt.Errorf("open temp file: %w", err)
	}

	return f, nil
}

// CleanupTemp removes the given workspace files.
// It continues cleanup even if some files fail to delete,
// returning the first error encountered.
func (w *Workspace) CleanupTemp(ctx context.Context, paths []string) error {
	var firstErr error
	for _, p := range paths {
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		if !w.owns(p) {
			if firstErr == nil {
				firstErr = fmt.Errorf("%w: %s", ErrOutsideWorkspace, p)
			}
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove temp file %s: %w", p, err)
			}
		}
	}
	return firstErr
}

// Release deletes the workspace and everything in it. It is safe to call
// more than once.
func (w *Workspace) Release(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	if err := os.RemoveAll(w.dir); err != nil {
		return fmt.Errorf("remove workspace %s: %w", w.runID, err)
	}
	return nil
}

func (w *Workspace) owns(path string) bool {
	return filepath.Dir(filepath.Clean(path)) == filepath.Clean(w.dir)
}
