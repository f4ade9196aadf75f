package importer

import (
	"bytes"
	"log/slog"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"tradejournal/pkg/contracts/domain"
)

// Section markers in a MetaTrader account statement. Position rows sit
// between the "Positions" marker and the next section.
const (
	mtSectionPositions = "Positions"
	mtSectionOrders    = "Orders"
	mtSectionDeals     = "Deals"
)

// Canonical names given to the duplicated Time/Price header labels. The
// first occurrence describes the entry leg, the second the exit leg.
const (
	HeaderEntryTime  = "Entry Time"
	HeaderEntryPrice = "Entry Price"
	HeaderExitTime   = "Exit Time"
	HeaderExitPrice  = "Exit Price"
)

// MetaTraderXLSXParser reads MetaTrader 5 account statements exported as
// spreadsheets.
type MetaTraderXLSXParser struct {
	logger *slog.Logger
}

// NewMetaTraderXLSXParser creates the XLSX statement parser.
func NewMetaTraderXLSXParser(logger *slog.Logger) *MetaTraderXLSXParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &MetaTraderXLSXParser{logger: logger.With(slog.String("parser", "metatrader_xlsx"))}
}

// Parse scans the first sheet for the "Positions" section, takes the row
// that follows it as the header row, and extracts one RawRow per position
// until the next section marker or the end of the sheet.
func (p *MetaTraderXLSXParser) Parse(data []byte) (*ParsedFile, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, formatErrorf(domain.SourceMetaTrader, "cannot open spreadsheet: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, formatErrorf(domain.SourceMetaTrader, "spreadsheet has no sheets")
	}

	// RawCellValue keeps Excel date serials as numbers instead of the
	// sheet's display format, so the date normalizer can decode them.
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, formatErrorf(domain.SourceMetaTrader, "cannot read sheet %q: %v", sheets[0], err)
	}

	positionsRow := -1
	for i, row := range rows {
		if len(row) > 0 && strings.TrimSpace(firstNonEmpty(row)) == mtSectionPositions {
			positionsRow = i
			break
		}
	}
	if positionsRow == -1 || positionsRow+1 >= len(rows) {
		return nil, formatErrorf(domain.SourceMetaTrader, "no %q section found in spreadsheet", mtSectionPositions)
	}

	headers := disambiguateHeaders(rows[positionsRow+1])

	parsed := &ParsedFile{Source: domain.SourceMetaTrader, Headers: headers}
	for i := positionsRow + 2; i < len(rows); i++ {
		row := rows[i]
		first := strings.TrimSpace(firstNonEmpty(row))
		if first == mtSectionOrders || first == mtSectionDeals {
			break
		}
		// Spacer rows between sections carry fewer than 3 cells.
		if countNonEmpty(row) < 3 {
			continue
		}
		raw := make(RawRow, len(headers))
		for j, h := range headers {
			if j >= len(row) {
				break
			}
			cell := strings.TrimSpace(row[j])
			if cell == "" {
				continue
			}
			if n, err := strconv.ParseFloat(cell, 64); err == nil {
				raw[h] = n
			} else {
				raw[h] = cell
			}
		}
		parsed.Rows = append(parsed.Rows, raw)
	}

	if len(parsed.Rows) == 0 {
		return nil, formatErrorf(domain.SourceMetaTrader, "%q section contains no trade rows", mtSectionPositions)
	}

	p.logger.Info("parsed MetaTrader spreadsheet",
		slog.String("sheet", sheets[0]),
		slog.Int("rows", len(parsed.Rows)),
		slog.Int("headers", len(headers)))

	return parsed, nil
}

// disambiguateHeaders renames the duplicated MetaTrader header labels.
// "Time" and "Price" each appear twice (entry at indices 0/5, exit at
// 8/9); the first occurrence becomes the entry header and the second the
// exit header. Any further duplicate label gets a numeric suffix.
func disambiguateHeaders(row []string) []string {
	seen := make(map[string]int, len(row))
	headers := make([]string, 0, len(row))
	for _, cell := range row {
		label := strings.TrimSpace(cell)
		seen[label]++
		switch {
		case label == "Time" && seen[label] == 1:
			label = HeaderEntryTime
		case label == "Time" && seen[label] == 2:
			label = HeaderExitTime
		case label == "Price" && seen[label] == 1:
			label = HeaderEntryPrice
		case label == "Price" && seen[label] == 2:
			label = HeaderExitPrice
		case seen[label] > 1:
			label = label + " " + strconv.Itoa(seen[label])
		}
		headers = append(headers, label)
	}
	return headers
}

func firstNonEmpty(row []string) string {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return cell
		}
	}
	return ""
}

func countNonEmpty(row []string) int {
	n := 0
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			n++
		}
	}
	return n
}
