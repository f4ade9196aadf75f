package importer

import (
	"bytes"
	"encoding/csv"
	"log/slog"
	"strconv"
	"strings"

	"tradejournal/pkg/contracts/domain"
)

// Portuguese-localized column names the NinjaTrader performance CSV
// always uses. The format is rigid, so the default mapping is fixed
// rather than heuristic.
const (
	ntColTradeNumber = "Número do trade"
	ntColInstrument  = "Instrumento"
	ntColPosition    = "Posição no mercado"
	ntColQuantity    = "Qtd"
	ntColEntryPrice  = "Preço de entrada"
	ntColExitPrice   = "Preço de saída"
	ntColEntryTime   = "Hora de entrada"
	ntColExitTime    = "Hora de saída"
	ntColProfit      = "Lucro"
	ntColCommission  = "Comissão"
)

// NinjaTraderParser reads the semicolon-delimited NinjaTrader trade
// performance export.
type NinjaTraderParser struct {
	logger *slog.Logger
}

// NewNinjaTraderParser creates the NinjaTrader CSV parser.
func NewNinjaTraderParser(logger *slog.Logger) *NinjaTraderParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &NinjaTraderParser{logger: logger.With(slog.String("parser", "ninjatrader_csv"))}
}

// Parse reads the header from the first line and accepts a data row only
// when its trade-number column parses as a positive integer, which
// filters blank and footer lines out of the export.
func (p *NinjaTraderParser) Parse(data []byte) (*ParsedFile, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, formatErrorf(domain.SourceNinjaTrader, "cannot read CSV: %v", err)
	}
	if len(records) < 2 {
		return nil, formatErrorf(domain.SourceNinjaTrader, "file has no data rows")
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	tradeNumIdx := indexOf(headers, ntColTradeNumber)
	if tradeNumIdx == -1 {
		// Column naming drifts between NinjaTrader locales; fall back to
		// the first column, which is the trade number in every variant.
		tradeNumIdx = 0
	}

	parsed := &ParsedFile{Source: domain.SourceNinjaTrader, Headers: headers}
	for _, record := range records[1:] {
		if tradeNumIdx >= len(record) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(record[tradeNumIdx]))
		if err != nil || n <= 0 {
			continue
		}
		raw := make(RawRow, len(headers))
		for i, h := range headers {
			if i >= len(record) {
				break
			}
			if v := strings.TrimSpace(record[i]); v != "" {
				raw[h] = v
			}
		}
		parsed.Rows = append(parsed.Rows, raw)
	}

	if len(parsed.Rows) == 0 {
		return nil, formatErrorf(domain.SourceNinjaTrader, "no trade rows found in CSV")
	}

	p.logger.Info("parsed NinjaTrader CSV", slog.Int("rows", len(parsed.Rows)))
	return parsed, nil
}

func indexOf(headers []string, name string) int {
	for i, h := range headers {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}
