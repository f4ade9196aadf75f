package importer

import (
	"strings"

	"tradejournal/pkg/contracts/domain"
)

// fieldRule drives the generic header matcher for one canonical field:
// exact header names are tried first, then case-insensitive substring
// keywords. Keyword sets are bilingual (English/Portuguese) because
// broker exports arrive in both locales.
type fieldRule struct {
	Exact    []string
	Keywords []string
}

// metatraderRules match against the canonical headers both MetaTrader
// parsers synthesize, with keyword fallback for manually edited or
// re-localized reports.
var metatraderRules = map[Field]fieldRule{
	FieldEntryDate:  {Exact: []string{HeaderEntryTime}, Keywords: []string{"time", "date", "hora", "data"}},
	FieldSymbol:     {Exact: []string{"Symbol"}, Keywords: []string{"symbol", "ativo", "par"}},
	FieldDirection:  {Exact: []string{"Type"}, Keywords: []string{"type", "tipo", "direction"}},
	FieldVolume:     {Exact: []string{"Volume"}, Keywords: []string{"volume", "lote", "size"}},
	FieldEntryPrice: {Exact: []string{HeaderEntryPrice}, Keywords: []string{"price", "preço", "preco"}},
	FieldExitDate:   {Exact: []string{HeaderExitTime}},
	FieldExitPrice:  {Exact: []string{HeaderExitPrice}},
	FieldProfit:     {Exact: []string{"Profit"}, Keywords: []string{"profit", "lucro", "resultado"}},
	FieldCommission: {Exact: []string{"Commission"}, Keywords: []string{"commission", "comissão", "comissao"}},
	FieldSwap:       {Exact: []string{"Swap"}, Keywords: []string{"swap"}},
	FieldStopLoss:   {Exact: []string{"S / L"}, Keywords: []string{"s/l", "stop"}},
	FieldTakeProfit: {Exact: []string{"T / P"}, Keywords: []string{"t/p", "take"}},
}

// ninjatraderMapping is fixed: the NinjaTrader CSV always carries the
// same Portuguese-localized columns, so no heuristic is needed.
var ninjatraderMapping = ColumnMapping{
	FieldEntryDate:  ntColEntryTime,
	FieldSymbol:     ntColInstrument,
	FieldDirection:  ntColPosition,
	FieldVolume:     ntColQuantity,
	FieldEntryPrice: ntColEntryPrice,
	FieldExitDate:   ntColExitTime,
	FieldExitPrice:  ntColExitPrice,
	FieldProfit:     ntColProfit,
	FieldCommission: ntColCommission,
}

// tradovateMapping maps the headers the Tradovate parsers synthesize.
var tradovateMapping = ColumnMapping{
	FieldEntryDate:  HeaderEntryTime,
	FieldSymbol:     "Symbol",
	FieldDirection:  "Direction",
	FieldVolume:     "Qty",
	FieldEntryPrice: HeaderEntryPrice,
	FieldExitDate:   HeaderExitTime,
	FieldExitPrice:  HeaderExitPrice,
	FieldProfit:     "Profit",
}

// DefaultMapping proposes a header for every canonical field the current
// mapping leaves unset. Fields the user has already assigned are never
// overwritten. Proposed headers must exist in the discovered header list.
func DefaultMapping(source domain.DataSource, headers []string, current ColumnMapping) ColumnMapping {
	out := current.Clone()
	if out == nil {
		out = make(ColumnMapping)
	}

	switch source {
	case domain.SourceNinjaTrader:
		applyFixedMapping(out, ninjatraderMapping, headers)
	case domain.SourceTradovate:
		applyFixedMapping(out, tradovateMapping, headers)
	default:
		for _, field := range AllFields {
			if out[field] != "" {
				continue
			}
			if h := matchHeader(metatraderRules[field], headers, out); h != "" {
				out[field] = h
			}
		}
	}
	return out
}

func applyFixedMapping(out ColumnMapping, fixed ColumnMapping, headers []string) {
	for field, header := range fixed {
		if out[field] != "" {
			continue
		}
		if containsHeader(headers, header) {
			out[field] = header
		}
	}
}

// matchHeader evaluates one field rule against the discovered headers:
// exact matches win, then the first header containing any keyword. A
// header already assigned to another field is not proposed again.
func matchHeader(rule fieldRule, headers []string, taken ColumnMapping) string {
	used := make(map[string]bool, len(taken))
	for _, h := range taken {
		if h != "" {
			used[h] = true
		}
	}

	for _, exact := range rule.Exact {
		for _, h := range headers {
			if !used[h] && strings.EqualFold(strings.TrimSpace(h), exact) {
				return h
			}
		}
	}
	for _, kw := range rule.Keywords {
		for _, h := range headers {
			if !used[h] && strings.Contains(strings.ToLower(h), kw) {
				return h
			}
		}
	}
	return ""
}

func containsHeader(headers []string, name string) bool {
	for _, h := range headers {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return true
		}
	}
	return false
}
