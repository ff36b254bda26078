// Package fileaccess resolves stored file locators to absolute paths and
// reads their bytes. It is the consumer's only view of uploaded files; every
// failure wraps ErrFileAccess so the consumer can record the attempt as
// FAILED and leave the message unacknowledged.
package fileaccess

import (
	"context"
	"os"
	"path/filepath"

	apperrors "github.com/docuflow/ingestion-platform/pkg/errors"
)

// Accessor reads uploaded files from a shared filesystem.
type Accessor interface {
	// Resolve canonicalises a file locator to an absolute path.
	Resolve(fileURL string) (string, error)
	// ReadBytes returns the full content of the file at absPath.
	ReadBytes(ctx context.Context, absPath string) ([]byte, error)
}

// Local is an Accessor over the local (or mounted) filesystem.
type Local struct{}

// NewLocal creates a filesystem-backed Accessor.
func NewLocal() *Local {
	return &Local{}
}

func (l *Local) Resolve(fileURL string) (string, error) {
	abs, err := filepath.Abs(fileURL)
	if err != nil {
		return "", apperrors.Newf(apperrors.ErrFileAccess, 500, "resolving %s: %v", fileURL, err)
	}
	return abs, nil
}

func (l *Local) ReadBytes(ctx context.Context, absPath string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrFileAccess, 500, "reading %s: %v", absPath, err)
	}
	return data, nil
}
