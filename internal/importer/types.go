package importer

import (
	"fmt"

	"tradejournal/pkg/contracts/domain"
)

// RawRow is one detected trade line from a source file, keyed by the
// discovered header strings. Values are either string or float64,
// depending on what the parser could read from the cell.
type RawRow map[string]any

// String returns the row's value under header as a string, with ok=false
// when the header is unmapped or the cell is absent.
func (r RawRow) String(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	v, ok := r[header]
	if !ok || v == nil {
		return "", false
	}
	switch val := v.(type) {
	case string:
		return val, true
	case float64:
		return fmt.Sprintf("%g", val), true
	default:
		return fmt.Sprintf("%v", val), true
	}
}

// Value returns the raw cell value under header.
func (r RawRow) Value(header string) (any, bool) {
	if header == "" {
		return nil, false
	}
	v, ok := r[header]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// ParsedFile is the output of one broker parser: the discovered column
// headers and one RawRow per trade line, tagged with the source dialect.
type ParsedFile struct {
	Source  domain.DataSource `json:"source"`
	Headers []string          `json:"headers"`
	Rows    []RawRow          `json:"rows"`

	// NetProfit carries the report-level "Total Net Profit" scalar when
	// the source file exposes one (MetaTrader HTML reports). It is a
	// sanity cross-check only and does not affect assembly.
	NetProfit *float64 `json:"net_profit,omitempty"`
}

// Parser turns one uploaded file's raw bytes into rows and headers.
// Structural problems (missing section anchor, undecodable bytes, empty
// result) fail with *FormatError; individually malformed rows are
// silently omitted.
type Parser interface {
	Parse(data []byte) (*ParsedFile, error)
}

// FormatError reports a structural problem with an uploaded file. The
// import session stays on the upload step and no rows are processed.
type FormatError struct {
	Source domain.DataSource
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s file format: %s", e.Source, e.Reason)
}

func formatErrorf(source domain.DataSource, format string, args ...any) *FormatError {
	return &FormatError{Source: source, Reason: fmt.Sprintf(format, args...)}
}

// Field names the canonical trade attributes a column can be mapped to.
type Field string

const (
	FieldEntryDate  Field = "entryDate"
	FieldSymbol     Field = "symbol"
	FieldDirection  Field = "direction"
	FieldVolume     Field = "volume"
	FieldEntryPrice Field = "entryPrice"
	FieldExitDate   Field = "exitDate"
	FieldExitPrice  Field = "exitPrice"
	FieldProfit     Field = "profit"
	FieldCommission Field = "commission"
	FieldSwap       Field = "swap"
	FieldStopLoss   Field = "stopLoss"
	FieldTakeProfit Field = "takeProfit"
)

// AllFields lists every mappable field in display order.
var AllFields = []Field{
	FieldEntryDate, FieldSymbol, FieldDirection, FieldVolume, FieldEntryPrice,
	FieldExitDate, FieldExitPrice, FieldProfit, FieldCommission, FieldSwap,
	FieldStopLoss, FieldTakeProfit,
}

// RequiredFields must all be mapped before an import may run.
var RequiredFields = []Field{
	FieldEntryDate, FieldSymbol, FieldDirection, FieldVolume, FieldEntryPrice,
}

// ColumnMapping assigns a source header to each canonical field. An empty
// value means the field is unmapped and will be omitted from the trade.
type ColumnMapping map[Field]string

// MissingRequired returns the required fields that have no header assigned.
func (m ColumnMapping) MissingRequired() []Field {
	var missing []Field
	for _, f := range RequiredFields {
		if m[f] == "" {
			missing = append(missing, f)
		}
	}
	return missing
}

// Clone returns a copy so callers can mutate without aliasing session state.
func (m ColumnMapping) Clone() ColumnMapping {
	out := make(ColumnMapping, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
