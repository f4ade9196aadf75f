package importer

import (
	"log/slog"
	"path/filepath"
	"strings"

	"tradejournal/pkg/contracts/domain"
)

// DetectParser routes an uploaded file to the parser for the session's
// data source based on the filename extension. Extensions outside the
// source's accepted set are rejected with a *FormatError before any
// bytes are read.
func DetectParser(source domain.DataSource, filename string, logger *slog.Logger) (Parser, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ext := strings.ToLower(filepath.Ext(filename))

	logger.Debug("detecting file format",
		slog.String("source", string(source)),
		slog.String("filename", filename),
		slog.String("extension", ext))

	switch source {
	case domain.SourceMetaTrader:
		switch ext {
		case ".xlsx", ".xls":
			return NewMetaTraderXLSXParser(logger), nil
		case ".html", ".htm":
			return NewMetaTraderHTMLParser(logger), nil
		case ".csv":
			return nil, formatErrorf(source, "CSV exports are not supported for MetaTrader; export the report as XLSX or HTML")
		default:
			return nil, formatErrorf(source, "unsupported file extension %q (accepted: .xlsx, .xls, .html, .htm)", ext)
		}
	case domain.SourceNinjaTrader:
		if ext != ".csv" {
			return nil, formatErrorf(source, "unsupported file extension %q (accepted: .csv)", ext)
		}
		return NewNinjaTraderParser(logger), nil
	case domain.SourceTradovate:
		switch ext {
		case ".csv":
			return NewTradovateCSVParser(logger), nil
		case ".pdf":
			return NewTradovatePDFParser(logger), nil
		default:
			return nil, formatErrorf(source, "unsupported file extension %q (accepted: .csv, .pdf)", ext)
		}
	default:
		return nil, formatErrorf(source, "no data source selected")
	}
}
