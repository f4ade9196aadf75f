package importer

import (
	"bytes"
	"encoding/csv"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"tradejournal/pkg/contracts/domain"
)

// Raw column names of the Tradovate performance CSV export.
const (
	tvColSymbol    = "symbol"
	tvColQty       = "qty"
	tvColBuyPrice  = "buyPrice"
	tvColSellPrice = "sellPrice"
	tvColPnL       = "pnl"
	tvColBoughtTS  = "boughtTimestamp"
	tvColSoldTS    = "soldTimestamp"
)

// Synthesized headers shared by the Tradovate CSV and PDF parsers. The
// export pairs a buy fill with a sell fill instead of recording entry and
// exit legs, so the parser derives the direction and the entry/exit
// assignment from the fill timestamps.
var tvHeaders = []string{
	"Symbol", "Direction", "Qty",
	HeaderEntryTime, HeaderEntryPrice, HeaderExitTime, HeaderExitPrice,
	"Profit",
}

const tvTimestampLayout = "01/02/2006 15:04:05"

// TradovateCSVParser reads the comma-delimited Tradovate performance
// export.
type TradovateCSVParser struct {
	logger *slog.Logger
}

// NewTradovateCSVParser creates the Tradovate CSV parser.
func NewTradovateCSVParser(logger *slog.Logger) *TradovateCSVParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &TradovateCSVParser{logger: logger.With(slog.String("parser", "tradovate_csv"))}
}

// Parse reads the header line and converts each fill pair into a RawRow
// under the synthesized headers. Rows whose timestamps cannot be ordered
// are skipped individually.
func (p *TradovateCSVParser) Parse(data []byte) (*ParsedFile, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, formatErrorf(domain.SourceTradovate, "cannot read CSV: %v", err)
	}
	if len(records) < 2 {
		return nil, formatErrorf(domain.SourceTradovate, "file has no data rows")
	}

	headers := records[0]
	col := func(name string) int {
		for i, h := range headers {
			if strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")), name) {
				return i
			}
		}
		return -1
	}
	symbolIdx, qtyIdx := col(tvColSymbol), col(tvColQty)
	buyPriceIdx, sellPriceIdx := col(tvColBuyPrice), col(tvColSellPrice)
	pnlIdx := col(tvColPnL)
	boughtIdx, soldIdx := col(tvColBoughtTS), col(tvColSoldTS)
	if symbolIdx == -1 || buyPriceIdx == -1 || sellPriceIdx == -1 || boughtIdx == -1 || soldIdx == -1 {
		return nil, formatErrorf(domain.SourceTradovate, "CSV is missing the fill-pair columns of a performance export")
	}

	parsed := &ParsedFile{Source: domain.SourceTradovate, Headers: tvHeaders}
	for _, record := range records[1:] {
		raw, ok := tvFillPairRow(record, symbolIdx, qtyIdx, buyPriceIdx, sellPriceIdx, pnlIdx, boughtIdx, soldIdx)
		if ok {
			parsed.Rows = append(parsed.Rows, raw)
		}
	}

	if len(parsed.Rows) == 0 {
		return nil, formatErrorf(domain.SourceTradovate, "no trade rows found in CSV")
	}

	p.logger.Info("parsed Tradovate CSV", slog.Int("rows", len(parsed.Rows)))
	return parsed, nil
}

// tvFillPairRow reorders one fill pair into entry/exit legs. Buying
// before selling is a long trade; selling first is a short.
func tvFillPairRow(record []string, symbolIdx, qtyIdx, buyPriceIdx, sellPriceIdx, pnlIdx, boughtIdx, soldIdx int) (RawRow, bool) {
	cell := func(idx int) string {
		if idx < 0 || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	symbol := cell(symbolIdx)
	if symbol == "" {
		return nil, false
	}
	bought, err := time.Parse(tvTimestampLayout, cell(boughtIdx))
	if err != nil {
		return nil, false
	}
	sold, err := time.Parse(tvTimestampLayout, cell(soldIdx))
	if err != nil {
		return nil, false
	}

	raw := RawRow{"Symbol": symbol}
	if qty := cell(qtyIdx); qty != "" {
		raw["Qty"] = qty
	}
	if pnl := cell(pnlIdx); pnl != "" {
		raw["Profit"] = pnl
	}
	if !sold.Before(bought) {
		raw["Direction"] = "long"
		raw[HeaderEntryTime] = cell(boughtIdx)
		raw[HeaderEntryPrice] = cell(buyPriceIdx)
		raw[HeaderExitTime] = cell(soldIdx)
		raw[HeaderExitPrice] = cell(sellPriceIdx)
	} else {
		raw["Direction"] = "short"
		raw[HeaderEntryTime] = cell(soldIdx)
		raw[HeaderEntryPrice] = cell(sellPriceIdx)
		raw[HeaderExitTime] = cell(boughtIdx)
		raw[HeaderExitPrice] = cell(buyPriceIdx)
	}
	return raw, true
}

// tvPDFRow matches one reconstructed performance line in the extracted
// PDF text: symbol, quantity, buy price, sell price, P/L and the two fill
// timestamps. The PDF layout is report-specific; lines that do not match
// are ignored.
var tvPDFRow = regexp.MustCompile(
	`([A-Z][A-Z0-9]{0,5}(?: \d{1,2}-\d{2})?)\s+` + // symbol, optional contract token
		`(\d+)\s+` + // qty
		`\$?([\d,]+\.?\d*)\s+` + // buy price
		`\$?([\d,]+\.?\d*)\s+` + // sell price
		`(\$?\(?-?\$?[\d,]+\.?\d*\)?)\s+` + // pnl
		`(\d{2}/\d{2}/\d{4} \d{2}:\d{2}:\d{2})\s+` + // bought timestamp
		`(\d{2}/\d{2}/\d{4} \d{2}:\d{2}:\d{2})`) // sold timestamp

// TradovatePDFParser reads the Tradovate performance report PDF by
// extracting its text and reconstructing fill-pair rows.
type TradovatePDFParser struct {
	logger *slog.Logger
}

// NewTradovatePDFParser creates the Tradovate PDF parser.
func NewTradovatePDFParser(logger *slog.Logger) *TradovatePDFParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &TradovatePDFParser{logger: logger.With(slog.String("parser", "tradovate_pdf"))}
}

// Parse extracts the document text and applies the fill-pair line pattern.
func (p *TradovatePDFParser) Parse(data []byte) (*ParsedFile, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, formatErrorf(domain.SourceTradovate, "cannot open PDF: %v", err)
	}

	textReader, err := reader.GetPlainText()
	if err != nil {
		return nil, formatErrorf(domain.SourceTradovate, "cannot extract PDF text: %v", err)
	}
	text, err := io.ReadAll(textReader)
	if err != nil {
		return nil, formatErrorf(domain.SourceTradovate, "cannot read PDF text: %v", err)
	}

	parsed := &ParsedFile{Source: domain.SourceTradovate, Headers: tvHeaders}
	for _, m := range tvPDFRow.FindAllStringSubmatch(string(text), -1) {
		// Positional record: symbol qty buyPrice sellPrice pnl bought sold.
		row, ok := tvFillPairRow(m[1:], 0, 1, 2, 3, 4, 5, 6)
		if ok {
			parsed.Rows = append(parsed.Rows, row)
		}
	}

	if len(parsed.Rows) == 0 {
		return nil, formatErrorf(domain.SourceTradovate, "no trade rows recognized in PDF")
	}

	p.logger.Info("parsed Tradovate PDF", slog.Int("rows", len(parsed.Rows)))
	return parsed, nil
}
