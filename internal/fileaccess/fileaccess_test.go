package fileaccess

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/docuflow/ingestion-platform/pkg/errors"
)

func TestResolveReturnsAbsolutePath(t *testing.T) {
	abs, err := NewLocal().Resolve("uploads/report.pdf")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !filepath.IsAbs(abs) {
		t.Errorf("expected absolute path, got %q", abs)
	}
}

func TestResolveKeepsAbsolutePath(t *testing.T) {
	want := filepath.Join(t.TempDir(), "report.pdf")
	got, err := NewLocal().Resolve(want)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != want {
		t.Errorf("expected %q unchanged, got %q", want, got)
	}
}

func TestReadBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	data, err := NewLocal().ReadBytes(context.Background(), path)
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if string(data) != "%PDF-1.4" {
		t.Errorf("unexpected content %q", data)
	}
}

func TestReadBytesMissingFileWrapsFileAccess(t *testing.T) {
	_, err := NewLocal().ReadBytes(context.Background(), filepath.Join(t.TempDir(), "gone.pdf"))
	if !errors.Is(err, apperrors.ErrFileAccess) {
		t.Fatalf("expected ErrFileAccess, got %v", err)
	}
}

func TestReadBytesHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLocal().ReadBytes(ctx, "/anywhere")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
