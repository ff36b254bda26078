// Package extract pulls plain text out of uploaded document bytes. The PDF
// implementation uses github.com/ledongthuc/pdf. An extractor that finds no
// text returns an empty string and no error: absence of text is not a
// failure.
package extract

import (
	"bytes"
	"context"
	"io"

	apperrors "github.com/docuflow/ingestion-platform/pkg/errors"
	"github.com/ledongthuc/pdf"
)

// Extractor turns file bytes into plain text.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

// PDF extracts text from PDF documents.
type PDF struct{}

// NewPDF creates a PDF text extractor.
func NewPDF() *PDF {
	return &PDF{}
}

// Extract parses the PDF and concatenates its plain text. Parse failures
// wrap ErrExtraction.
func (p *PDF) Extract(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", apperrors.Newf(apperrors.ErrExtraction, 500, "opening pdf: %v", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", apperrors.Newf(apperrors.ErrExtraction, 500, "extracting pdf text: %v", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", apperrors.Newf(apperrors.ErrExtraction, 500, "reading pdf text: %v", err)
	}
	return buf.String(), nil
}
