package importer

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"tradejournal/pkg/contracts/domain"
)

// mtDatePrefix matches the yyyy.MM.dd date prefix a MetaTrader HTML
// position row always starts with.
var mtDatePrefix = regexp.MustCompile(`^\d{4}\.\d{2}\.\d{2}`)

// Per-width field index tables for MetaTrader HTML position rows. Broker
// report variants emit 13, 14 or 15 cells per row; Profit is always the
// last cell regardless of width. The 14-column variant inserts a fee cell
// after Swap, the 15-column variant additionally carries a market/comment
// cell after T/P.
//
//	width 13: Time(0) Pos(1) Sym(2) Type(3) Vol(4) Price(5) SL(6) TP(7) Time(8) Price(9) Comm(10) Swap(11) Profit(12)
//	width 14: Time(0) Pos(1) Sym(2) Type(3) Vol(4) Price(5) SL(6) TP(7) Time(8) Price(9) Comm(10) Fee(11) Swap(12) Profit(13)
//	width 15: Time(0) Pos(1) Sym(2) Type(3) Vol(4) Price(5) SL(6) TP(7) Market(8) Time(9) Price(10) Comm(11) Fee(12) Swap(13) Profit(14)
var mtHTMLIndexTables = map[int]map[string]int{
	13: {
		HeaderEntryTime: 0, "Symbol": 2, "Type": 3, "Volume": 4, HeaderEntryPrice: 5,
		"S / L": 6, "T / P": 7, HeaderExitTime: 8, HeaderExitPrice: 9,
		"Commission": 10, "Swap": 11,
	},
	14: {
		HeaderEntryTime: 0, "Symbol": 2, "Type": 3, "Volume": 4, HeaderEntryPrice: 5,
		"S / L": 6, "T / P": 7, HeaderExitTime: 8, HeaderExitPrice: 9,
		"Commission": 10, "Swap": 12,
	},
	15: {
		HeaderEntryTime: 0, "Symbol": 2, "Type": 3, "Volume": 4, HeaderEntryPrice: 5,
		"S / L": 6, "T / P": 7, HeaderExitTime: 9, HeaderExitPrice: 10,
		"Commission": 11, "Swap": 13,
	},
}

// mtHTMLHeaders are the synthesized canonical headers shared with the
// XLSX parser so one default mapping covers both MetaTrader formats.
var mtHTMLHeaders = []string{
	HeaderEntryTime, "Symbol", "Type", "Volume", HeaderEntryPrice,
	"S / L", "T / P", HeaderExitTime, HeaderExitPrice,
	"Commission", "Swap", "Profit",
}

// MetaTraderHTMLParser reads MetaTrader account statements saved as HTML
// report pages.
type MetaTraderHTMLParser struct {
	logger *slog.Logger
}

// NewMetaTraderHTMLParser creates the HTML statement parser.
func NewMetaTraderHTMLParser(logger *slog.Logger) *MetaTraderHTMLParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &MetaTraderHTMLParser{logger: logger.With(slog.String("parser", "metatrader_html"))}
}

// Parse decodes the report bytes, walks the table rows between the
// "Positions" label and the next section label, and extracts one RawRow
// per position row. A row counts as data only when its first cell starts
// with a yyyy.MM.dd date and its type cell is buy or sell.
func (p *MetaTraderHTMLParser) Parse(data []byte) (*ParsedFile, error) {
	text, err := decodeReportBytes(data)
	if err != nil {
		return nil, formatErrorf(domain.SourceMetaTrader, "cannot decode report bytes: %v", err)
	}

	doc, err := html.Parse(strings.NewReader(text))
	if err != nil {
		return nil, formatErrorf(domain.SourceMetaTrader, "malformed HTML: %v", err)
	}

	tableRows := collectTableRows(doc)
	if len(tableRows) == 0 {
		return nil, formatErrorf(domain.SourceMetaTrader, "report contains no table rows")
	}

	parsed := &ParsedFile{Source: domain.SourceMetaTrader, Headers: mtHTMLHeaders}

	inPositions := false
	for _, cells := range tableRows {
		joined := strings.TrimSpace(strings.Join(cells, " "))
		switch {
		case strings.HasPrefix(joined, mtSectionPositions):
			inPositions = true
			continue
		case strings.HasPrefix(joined, mtSectionOrders), strings.HasPrefix(joined, mtSectionDeals):
			if inPositions {
				inPositions = false
			}
			continue
		}
		if !inPositions {
			continue
		}
		if raw, ok := p.positionRow(cells); ok {
			parsed.Rows = append(parsed.Rows, raw)
		}
	}

	if len(parsed.Rows) == 0 {
		return nil, formatErrorf(domain.SourceMetaTrader, "no %q section with trade rows found", mtSectionPositions)
	}

	if net, ok := extractNetProfit(doc); ok {
		parsed.NetProfit = &net
		p.logger.Debug("report net profit cross-check", slog.Float64("total_net_profit", net))
	}

	p.logger.Info("parsed MetaTrader HTML report", slog.Int("rows", len(parsed.Rows)))
	return parsed, nil
}

// positionRow converts one table row into a RawRow using the index table
// for its width. Rows with unexpected widths or a non buy/sell type cell
// are rejected individually.
func (p *MetaTraderHTMLParser) positionRow(cells []string) (RawRow, bool) {
	if len(cells) == 0 || !mtDatePrefix.MatchString(strings.TrimSpace(cells[0])) {
		return nil, false
	}
	table, ok := mtHTMLIndexTables[len(cells)]
	if !ok {
		p.logger.Warn("skipping position row with unexpected width", slog.Int("cells", len(cells)))
		return nil, false
	}
	typeIdx := table["Type"]
	typ := strings.ToLower(strings.TrimSpace(cells[typeIdx]))
	if typ != "buy" && typ != "sell" {
		return nil, false
	}

	raw := make(RawRow, len(table)+1)
	for header, idx := range table {
		if idx < len(cells) {
			if v := strings.TrimSpace(cells[idx]); v != "" {
				raw[header] = v
			}
		}
	}
	// Profit is always the last cell, whatever the report width.
	raw["Profit"] = strings.TrimSpace(cells[len(cells)-1])
	return raw, true
}

// decodeReportBytes detects UTF-16 little/big endian by byte-order-mark,
// falls back to UTF-8, then to Windows-1252 for legacy single-byte
// reports.
func decodeReportBytes(data []byte) (string, error) {
	if len(data) == 0 {
		return "", formatErrorf(domain.SourceMetaTrader, "empty file")
	}
	switch {
	case len(data) >= 2 && data[0] == 0xFF && data[1] == 0xFE:
		dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		out, err := dec.Bytes(data)
		if err != nil {
			return "", err
		}
		return string(out), nil
	case len(data) >= 2 && data[0] == 0xFE && data[1] == 0xFF:
		dec := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder()
		out, err := dec.Bytes(data)
		if err != nil {
			return "", err
		}
		return string(out), nil
	case utf8.Valid(data):
		return string(data), nil
	default:
		out, err := charmap.Windows1252.NewDecoder().Bytes(data)
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
}

// collectTableRows walks the document and returns the trimmed cell texts
// of every <tr> element, in document order.
func collectTableRows(doc *html.Node) [][]string {
	var rows [][]string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			var cells []string
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
					cells = append(cells, strings.TrimSpace(nodeText(c)))
				}
			}
			if len(cells) > 0 {
				rows = append(rows, cells)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return rows
}

// extractNetProfit finds the report-level "Total Net Profit" scalar. The
// label and the <b>-wrapped value live in differently placed cells across
// report variants, so the scan is label-relative: the first <b> text that
// parses as a number after the label wins.
func extractNetProfit(doc *html.Node) (float64, bool) {
	labelSeen := false
	var found float64
	var ok bool
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if ok {
			return
		}
		if n.Type == html.TextNode && strings.Contains(n.Data, "Total Net Profit") {
			labelSeen = true
		}
		if labelSeen && n.Type == html.ElementNode && n.Data == "b" {
			if v, err := parseMetaTraderNumber(nodeText(n)); err == nil {
				found, ok = v, true
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return found, ok
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}
