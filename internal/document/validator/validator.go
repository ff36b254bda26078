// Package validator provides input validation for document uploads. It
// checks the owning user id and the uploaded file's name and size, and
// returns per-field error details.
package validator

import (
	"fmt"
	"path/filepath"
	"strings"
)

const maxUserIDLength = 255

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	var parts []string
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s:%s", field, msg))
	}
	return strings.Join(parts, "; ")
}

// ValidateUpload checks the upload form fields. Only PDF files are accepted;
// other document formats are outside the pipeline's scope.
func ValidateUpload(userID, fileName string, size, maxSize int64) error {
	errs := make(map[string]string)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		errs["userId"] = "userId is required"
	} else if len(userID) > maxUserIDLength {
		errs["userId"] = fmt.Sprintf("userId must be at most %d characters", maxUserIDLength)
	}
	if fileName == "" {
		errs["file"] = "file is required"
	} else if ext := strings.ToLower(filepath.Ext(fileName)); ext != ".pdf" {
		errs["file"] = fmt.Sprintf("unsupported file type %q, only .pdf is accepted", ext)
	}
	if size <= 0 {
		errs["file"] = "file is empty"
	} else if maxSize > 0 && size > maxSize {
		errs["file"] = fmt.Sprintf("file exceeds the %d byte limit", maxSize)
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
