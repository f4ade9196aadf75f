package importer

import (
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"tradejournal/pkg/contracts/domain"
)

// futuresContractSuffix matches the trailing contract month-year token of
// futures-style symbols ("MNQ 12-25").
var futuresContractSuffix = regexp.MustCompile(`\s+\d{1,2}-\d{2}$`)

// CleanSymbol strips broker decorations from a symbol: any dot suffix
// ("EURUSD.cash") and a trailing futures contract token ("MNQ 12-25").
func CleanSymbol(symbol string) string {
	s := strings.TrimSpace(symbol)
	if i := strings.Index(s, "."); i > 0 {
		s = s[:i]
	}
	s = futuresContractSuffix.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// directionVocabulary maps broker direction words, lowercased, onto the
// canonical sides. English and Portuguese vocabularies are both in play.
var directionVocabulary = map[string]domain.Direction{
	"buy":      domain.DirectionLong,
	"long":     domain.DirectionLong,
	"compra":   domain.DirectionLong,
	"comprada": domain.DirectionLong,
	"sell":     domain.DirectionShort,
	"short":    domain.DirectionShort,
	"venda":    domain.DirectionShort,
	"vendida":  domain.DirectionShort,
}

// NormalizeDirection maps a broker's direction word to Long/Short.
// Unrecognized words report ok=false and the row is dropped.
func NormalizeDirection(raw string) (domain.Direction, bool) {
	d, ok := directionVocabulary[strings.ToLower(strings.TrimSpace(raw))]
	return d, ok
}

// Assembler turns raw parser rows into canonical trades using the
// session's column mapping and numeric/date dialects.
type Assembler struct {
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// NewAssembler creates a trade assembler.
func NewAssembler(logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		logger: logger.With(slog.String("component", "assembler")),
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
}

// Assemble converts every raw row it can into a Trade and counts the rest
// as dropped. A row is dropped when its entry date is missing or
// unparseable, its direction is unrecognized, or a required numeric field
// does not parse; drops never fail the batch.
func (a *Assembler) Assemble(
	rows []RawRow,
	mapping ColumnMapping,
	source domain.DataSource,
	sourceTZ string,
	accountID, userID string,
) ([]domain.Trade, int) {
	trades := make([]domain.Trade, 0, len(rows))
	dropped := 0

	for i, row := range rows {
		trade, ok := a.assembleRow(row, mapping, source, sourceTZ, accountID, userID)
		if !ok {
			dropped++
			a.logger.Debug("dropped unassemblable row", slog.Int("row", i))
			continue
		}
		trades = append(trades, trade)
	}

	if dropped > 0 {
		a.logger.Info("assembly finished with dropped rows",
			slog.Int("assembled", len(trades)),
			slog.Int("dropped", dropped))
	}
	return trades, dropped
}

func (a *Assembler) assembleRow(
	row RawRow,
	mapping ColumnMapping,
	source domain.DataSource,
	sourceTZ string,
	accountID, userID string,
) (domain.Trade, bool) {
	var trade domain.Trade

	entryRaw, ok := row.Value(mapping[FieldEntryDate])
	if !ok {
		return trade, false
	}
	naive := ParseBrokerDate(entryRaw, source)
	if naive == nil {
		return trade, false
	}
	entry, err := ToTargetTimezone(*naive, sourceTZ)
	if err != nil {
		return trade, false
	}

	symbolRaw, ok := row.String(mapping[FieldSymbol])
	if !ok {
		return trade, false
	}
	symbol := CleanSymbol(symbolRaw)
	if symbol == "" {
		return trade, false
	}

	directionRaw, ok := row.String(mapping[FieldDirection])
	if !ok {
		return trade, false
	}
	direction, ok := NormalizeDirection(directionRaw)
	if !ok {
		return trade, false
	}

	volume, ok := a.numeric(row, mapping[FieldVolume], source, false)
	if !ok || volume <= 0 {
		return trade, false
	}
	entryPrice, ok := a.numeric(row, mapping[FieldEntryPrice], source, false)
	if !ok {
		return trade, false
	}

	now := a.now()
	trade = domain.Trade{
		ID:         a.newID(),
		UserID:     userID,
		AccountID:  accountID,
		Symbol:     symbol,
		Direction:  direction,
		EntryDate:  entry.Format("2006-01-02"),
		EntryTime:  entry.Format("15:04:05"),
		EntryPrice: entryPrice,
		Volume:     volume,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	trade.Session = domain.SessionForTime(trade.EntryTime)

	if sl, ok := a.numeric(row, mapping[FieldStopLoss], source, false); ok {
		trade.StopLoss = sl
	}
	if tp, ok := a.numeric(row, mapping[FieldTakeProfit], source, false); ok {
		trade.TakeProfit = tp
	}

	// The exit leg goes through the same normalization as the entry,
	// independently; a broken exit cell degrades the trade to open
	// rather than dropping the row.
	if exitRaw, ok := row.Value(mapping[FieldExitDate]); ok {
		if exitNaive := ParseBrokerDate(exitRaw, source); exitNaive != nil {
			if exit, err := ToTargetTimezone(*exitNaive, sourceTZ); err == nil {
				trade.ExitDate = exit.Format("2006-01-02")
				trade.ExitTime = exit.Format("15:04:05")
			}
		}
	}
	if exitPrice, ok := a.numeric(row, mapping[FieldExitPrice], source, false); ok {
		trade.ExitPrice = &exitPrice
	}

	if profit, ok := a.numeric(row, mapping[FieldProfit], source, true); ok {
		pnl := profit
		if commission, ok := a.numeric(row, mapping[FieldCommission], source, true); ok {
			// NinjaTrader reports commission as a positive cost;
			// MetaTrader statements already store it signed.
			if source == domain.SourceNinjaTrader && commission > 0 {
				commission = -commission
			}
			trade.Commission = &commission
			pnl += commission
		}
		if swap, ok := a.numeric(row, mapping[FieldSwap], source, true); ok {
			trade.Swap = &swap
			pnl += swap
		}
		trade.PnL = &pnl
		trade.Outcome = domain.OutcomeForPnL(pnl)
	}

	return trade, true
}

func (a *Assembler) numeric(row RawRow, header string, source domain.DataSource, money bool) (float64, bool) {
	raw, ok := row.Value(header)
	if !ok {
		return 0, false
	}
	v, err := parseNumeric(raw, source, money)
	if err != nil {
		return 0, false
	}
	return v, true
}
