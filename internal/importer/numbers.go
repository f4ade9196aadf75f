package importer

import (
	"fmt"
	"strconv"
	"strings"

	"tradejournal/pkg/contracts/domain"
)

// Numeric dialects differ per broker export:
//
//   - MetaTrader statements use dot decimals with an optional space as
//     thousands separator ("1 234.56").
//   - NinjaTrader CSVs use comma decimals; money cells additionally carry
//     a currency marker with the sign in front of it ("-$ 12,34") and dot
//     thousands separators.
//   - Tradovate exports use plain dot decimals with comma thousands
//     separators and an optional leading "$".

// parseNumeric parses a raw cell using the data source's numeric dialect.
// money selects the money-cell variant of the dialect (relevant for
// NinjaTrader's "$ 12,34" format); price and volume cells pass false.
func parseNumeric(raw any, source domain.DataSource, money bool) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case string:
		switch source {
		case domain.SourceNinjaTrader:
			return parseNinjaTraderNumber(v, money)
		case domain.SourceTradovate:
			return parseTradovateNumber(v)
		default:
			return parseMetaTraderNumber(v)
		}
	default:
		return 0, fmt.Errorf("cell is not numeric: %v", raw)
	}
}

func parseMetaTraderNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty numeric cell")
	}
	// Space and non-breaking space are thousands separators.
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")
	return strconv.ParseFloat(s, 64)
}

// parseNinjaTraderNumber normalizes the comma-decimal NinjaTrader cells.
// Money cells look like "[-]$ 12,34": the currency marker is stripped
// while the leading sign is preserved.
func parseNinjaTraderNumber(s string, money bool) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty numeric cell")
	}
	if money {
		s = strings.ReplaceAll(s, "$", "")
		s = strings.ReplaceAll(s, " ", "")
	}
	// Dot is the thousands separator, comma the decimal mark.
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
	}
	s = strings.ReplaceAll(s, ",", ".")
	return strconv.ParseFloat(s, 64)
}

func parseTradovateNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty numeric cell")
	}
	neg := false
	// Accounting-style negatives: $(12.34)
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if neg {
		v = -v
	}
	return v, nil
}
