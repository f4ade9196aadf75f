package domain

import (
	"fmt"
	"time"
)

// Direction represents which side of the market a trade was on.
type Direction string

const (
	DirectionLong  Direction = "Long"
	DirectionShort Direction = "Short"
)

// Outcome classifies a closed trade by the sign of its final PnL.
type Outcome string

const (
	OutcomeWin       Outcome = "win"
	OutcomeLoss      Outcome = "loss"
	OutcomeBreakeven Outcome = "breakeven"
)

// Trade is the canonical journal entry produced by the import pipeline.
// EntryDate and EntryTime are always expressed in the target timezone
// (America/New_York) regardless of the broker's locale; the timezone
// normalizer exists to guarantee exactly this invariant.
type Trade struct {
	ID         string    `json:"id" db:"id" validate:"required,uuid"`
	UserID     string    `json:"user_id" db:"user_id" validate:"required"`
	AccountID  string    `json:"account_id" db:"account_id" validate:"required"`
	Symbol     string    `json:"symbol" db:"symbol" validate:"required"`
	Direction  Direction `json:"direction" db:"direction" validate:"required,oneof=Long Short"`
	EntryDate  string    `json:"entry_date" db:"entry_date" validate:"required"` // yyyy-MM-dd
	EntryTime  string    `json:"entry_time,omitempty" db:"entry_time"`           // HH:mm:ss
	EntryPrice float64   `json:"entry_price" db:"entry_price" validate:"required"`
	Volume     float64   `json:"volume" db:"volume" validate:"required,gt=0"`
	StopLoss   float64   `json:"stop_loss,omitempty" db:"stop_loss"`
	TakeProfit float64   `json:"take_profit,omitempty" db:"take_profit"`
	ExitDate   string    `json:"exit_date,omitempty" db:"exit_date"`
	ExitTime   string    `json:"exit_time,omitempty" db:"exit_time"`
	ExitPrice  *float64  `json:"exit_price,omitempty" db:"exit_price"`
	PnL        *float64  `json:"pnl,omitempty" db:"pnl"`
	Outcome    Outcome   `json:"outcome,omitempty" db:"outcome"`
	Commission *float64  `json:"commission,omitempty" db:"commission"`
	Swap       *float64  `json:"swap,omitempty" db:"swap"`
	Notes      string    `json:"notes,omitempty" db:"notes"`
	Session    string    `json:"session,omitempty" db:"session"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// TradeLite is the minimal projection of a persisted trade, sufficient to
// build import signatures for duplicate detection.
type TradeLite struct {
	EntryDate  string    `json:"entry_date" db:"entry_date"`
	EntryTime  string    `json:"entry_time" db:"entry_time"`
	Symbol     string    `json:"symbol" db:"symbol"`
	Direction  Direction `json:"direction" db:"direction"`
	EntryPrice float64   `json:"entry_price" db:"entry_price"`
}

// Signature derives the dedup key for a trade: entry date, entry time
// truncated to the minute, symbol, direction and entry price. Minute
// truncation absorbs sub-minute timestamp drift between a re-exported
// file and previously stored trades.
func (t Trade) Signature() string {
	return signature(t.EntryDate, t.EntryTime, t.Symbol, string(t.Direction), t.EntryPrice)
}

// Signature derives the same dedup key from the lite projection.
func (t TradeLite) Signature() string {
	return signature(t.EntryDate, t.EntryTime, t.Symbol, string(t.Direction), t.EntryPrice)
}

func signature(date, clock, symbol, direction string, price float64) string {
	if len(clock) > 5 {
		clock = clock[:5]
	}
	return fmt.Sprintf("%s|%s|%s|%s|%g", date, clock, symbol, direction, price)
}

// OutcomeForPnL classifies a final, commission- and swap-adjusted PnL.
func OutcomeForPnL(pnl float64) Outcome {
	switch {
	case pnl > 0:
		return OutcomeWin
	case pnl < 0:
		return OutcomeLoss
	default:
		return OutcomeBreakeven
	}
}
