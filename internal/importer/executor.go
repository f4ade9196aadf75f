package importer

import (
	"context"
	"fmt"
	"log/slog"

	"tradejournal/pkg/contracts/domain"
)

// ImportMode selects how an import run treats the account's existing
// trade history.
type ImportMode string

const (
	// ModeAppend keeps existing trades and skips candidates whose
	// signature matches one already stored.
	ModeAppend ImportMode = "append"
	// ModeReplace purges the account's trade history before importing.
	ModeReplace ImportMode = "replace"
)

// Valid reports whether m is a supported import mode.
func (m ImportMode) Valid() bool {
	return m == ModeAppend || m == ModeReplace
}

// TradeStorage is the narrow contract to the external trade backend. A
// false result from SaveTrade or DeleteAllTrades means the call was
// acknowledged but not applied.
type TradeStorage interface {
	SaveTrade(ctx context.Context, trade domain.Trade) (bool, error)
	ListTradesLite(ctx context.Context, accountID string) ([]domain.TradeLite, error)
	DeleteAllTrades(ctx context.Context, accountID string) (bool, error)
}

// PreconditionError aborts an import run before any row is processed:
// replace-mode purge failure or a missing destination account.
type PreconditionError struct {
	Reason string
	Err    error
}

func (e *PreconditionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("import precondition failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("import precondition failed: %s", e.Reason)
}

func (e *PreconditionError) Unwrap() error { return e.Err }

// ProgressFunc receives persistence progress after every processed trade.
type ProgressFunc func(processed, total int, stats domain.ImportStats)

// Executor deduplicates assembled trades against an account's history and
// persists them one at a time.
type Executor struct {
	storage TradeStorage
	logger  *slog.Logger
}

// NewExecutor creates an import executor over the given storage.
func NewExecutor(storage TradeStorage, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		storage: storage,
		logger:  logger.With(slog.String("component", "import_executor")),
	}
}

// Run executes one import. rawCount is the number of raw rows the parser
// produced; the difference between it and len(trades) is added to the
// failed counter so rows dropped during assembly are accounted for.
//
// Persistence is sequential, one trade per call, which keeps the
// skip/fail/success arithmetic stable and reproducible. A failed save
// does not abort the remaining trades; only precondition failures abort
// the run, and they do so before any row is processed.
func (e *Executor) Run(
	ctx context.Context,
	trades []domain.Trade,
	rawCount int,
	accountID string,
	mode ImportMode,
	progress ProgressFunc,
) (domain.ImportStats, error) {
	stats := domain.ImportStats{Total: rawCount}

	if accountID == "" {
		return stats, &PreconditionError{Reason: "no destination account selected"}
	}

	existing := make(map[string]struct{})
	switch mode {
	case ModeReplace:
		ok, err := e.storage.DeleteAllTrades(ctx, accountID)
		if err != nil || !ok {
			return stats, &PreconditionError{Reason: "could not purge existing trades", Err: err}
		}
		e.logger.Info("purged account history for replace import",
			slog.String("account_id", accountID))
	case ModeAppend:
		lite, err := e.storage.ListTradesLite(ctx, accountID)
		if err != nil {
			return stats, &PreconditionError{Reason: "could not load existing trades for dedup", Err: err}
		}
		for _, t := range lite {
			existing[t.Signature()] = struct{}{}
		}
		e.logger.Debug("built dedup signature set",
			slog.String("account_id", accountID),
			slog.Int("signatures", len(existing)))
	default:
		return stats, &PreconditionError{Reason: fmt.Sprintf("unknown import mode %q", mode)}
	}

	for i, trade := range trades {
		if mode == ModeAppend {
			if _, dup := existing[trade.Signature()]; dup {
				stats.Skipped++
				if progress != nil {
					progress(i+1, len(trades), stats)
				}
				continue
			}
		}

		saved, err := e.storage.SaveTrade(ctx, trade)
		if err != nil || !saved {
			stats.Failed++
			e.logger.Warn("trade not persisted",
				slog.String("symbol", trade.Symbol),
				slog.String("entry_date", trade.EntryDate),
				slog.Any("error", err))
		} else {
			stats.Success++
		}
		if progress != nil {
			progress(i+1, len(trades), stats)
		}
	}

	// Rows the assembler dropped never reached the loop; they still count
	// as failures in the final report.
	stats.Failed += rawCount - len(trades)

	e.logger.Info("import run finished",
		slog.String("account_id", accountID),
		slog.String("mode", string(mode)),
		slog.Int("total", stats.Total),
		slog.Int("success", stats.Success),
		slog.Int("skipped", stats.Skipped),
		slog.Int("failed", stats.Failed))

	return stats, nil
}
