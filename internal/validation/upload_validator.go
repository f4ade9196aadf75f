// Package validation checks uploaded broker files before they reach
// the parsers.
package validation

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"tradejournal/pkg/contracts/domain"
)

// allowedExtensions lists the file types each source exports. The
// parser detector applies the same matrix; validating here rejects bad
// uploads before the body is read into memory.
var allowedExtensions = map[domain.DataSource][]string{
	domain.SourceMetaTrader:  {".xlsx", ".xls", ".html", ".htm"},
	domain.SourceNinjaTrader: {".csv"},
	domain.SourceTradovate:   {".csv", ".pdf"},
}

// UploadValidator enforces the size and extension limits on uploads.
type UploadValidator struct {
	maxBytes int64
	logger   *slog.Logger
}

// NewUploadValidator creates a validator with the given size cap.
func NewUploadValidator(maxBytes int64, logger *slog.Logger) *UploadValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadValidator{
		maxBytes: maxBytes,
		logger:   logger.With(slog.String("component", "upload_validator")),
	}
}

// MaxBytes returns the configured size cap.
func (v *UploadValidator) MaxBytes() int64 {
	return v.maxBytes
}

// Validate rejects empty, oversized or wrongly-typed uploads.
func (v *UploadValidator) Validate(filename string, size int64, source domain.DataSource) error {
	if size <= 0 {
		return fmt.Errorf("uploaded file %s is empty", filename)
	}
	if size > v.maxBytes {
		v.logger.Warn("upload over size limit",
			slog.String("filename", filename),
			slog.Int64("size", size),
			slog.Int64("limit", v.maxBytes))
		return fmt.Errorf("uploaded file %s exceeds the %d byte limit", filename, v.maxBytes)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range allowedExtensions[source] {
		if ext == allowed {
			return nil
		}
	}
	return fmt.Errorf("file type %q is not supported for %s exports", ext, source)
}
