// Package services holds the orchestration layer between the HTTP
// handlers and the import pipeline, session registry and storage.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"

	"tradejournal/internal/importer"
	"tradejournal/internal/infrastructure"
	"tradejournal/internal/operations"
	"tradejournal/pkg/contracts/domain"
)

// AccountStore is the account persistence surface the services need.
type AccountStore interface {
	CreateAccount(ctx context.Context, account domain.Account) error
	GetAccount(ctx context.Context, id string) (domain.Account, error)
	ListAccounts(ctx context.Context, userID string) ([]domain.Account, error)
}

// ImportMetrics is the subset of counters the import service records.
// Nil-safe: a zero value disables recording.
type ImportMetrics struct {
	ImportsStarted metric.Int64Counter
	TradesSaved    metric.Int64Counter
	TradesSkipped  metric.Int64Counter
	TradesFailed   metric.Int64Counter
	ParseFailures  metric.Int64Counter
}

// ImportService drives an import session through its lifecycle:
// configuration, upload, mapping, execution.
type ImportService struct {
	registry    *operations.Registry
	accounts    AccountStore
	assembler   *importer.Assembler
	executor    *importer.Executor
	broadcaster operations.Broadcaster
	metrics     ImportMetrics
	logger      *slog.Logger
}

// NewImportService wires the import pipeline together.
func NewImportService(
	registry *operations.Registry,
	accounts AccountStore,
	trades importer.TradeStorage,
	broadcaster operations.Broadcaster,
	metrics ImportMetrics,
	logger *slog.Logger,
) *ImportService {
	if logger == nil {
		logger = slog.Default()
	}
	if broadcaster == nil {
		broadcaster = operations.NopBroadcaster{}
	}
	return &ImportService{
		registry:    registry,
		accounts:    accounts,
		assembler:   importer.NewAssembler(logger),
		executor:    importer.NewExecutor(trades, logger),
		broadcaster: broadcaster,
		metrics:     metrics,
		logger:      logger.With(slog.String("component", "import_service")),
	}
}

// CreateSession validates the source selection and opens a session
// already advanced to the upload step.
func (s *ImportService) CreateSession(
	ctx context.Context,
	userID string,
	source domain.DataSource,
	accountID, timezone string,
	mode importer.ImportMode,
) (operations.SessionView, error) {
	if !source.Valid() {
		return operations.SessionView{}, fmt.Errorf("%w: %q", ErrInvalidSource, source)
	}
	if mode == "" {
		mode = importer.ModeAppend
	}
	if !mode.Valid() {
		return operations.SessionView{}, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	if timezone == "" {
		timezone = source.DefaultTimezone()
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return operations.SessionView{}, fmt.Errorf("%w: %q", ErrInvalidTimezone, timezone)
	}
	if _, err := s.accounts.GetAccount(ctx, accountID); err != nil {
		return operations.SessionView{}, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}

	session := s.registry.Create(userID)
	if err := session.Configure(source, accountID, timezone, mode); err != nil {
		return operations.SessionView{}, err
	}

	s.logger.InfoContext(ctx, "import session created",
		slog.String("session_id", session.ID),
		slog.String("source", string(source)),
		slog.String("account_id", accountID),
		slog.String("timezone", timezone),
		slog.String("mode", string(mode)))
	return session.Snapshot(), nil
}

// Upload parses the uploaded file with the session's source parser and
// attaches the result together with an auto-detected column mapping.
func (s *ImportService) Upload(ctx context.Context, sessionID, filename string, data []byte) (operations.SessionView, error) {
	session, ok := s.registry.Get(sessionID)
	if !ok {
		return operations.SessionView{}, ErrSessionNotFound
	}
	if len(data) == 0 {
		return operations.SessionView{}, ErrEmptyFile
	}

	snap := session.Snapshot()
	parser, err := importer.DetectParser(snap.Source, filename, s.logger)
	if err != nil {
		return operations.SessionView{}, err
	}

	parsed, err := parser.Parse(data)
	if err != nil {
		s.addCounter(ctx, s.metrics.ParseFailures, 1, snap.Source)
		s.logger.WarnContext(ctx, "upload failed to parse",
			slog.String("session_id", sessionID),
			slog.String("filename", filename),
			slog.String("error", err.Error()))
		return operations.SessionView{}, err
	}

	mapping := importer.DefaultMapping(snap.Source, parsed.Headers, snap.Mapping)
	if err := session.AttachFile(filename, parsed, mapping); err != nil {
		return operations.SessionView{}, err
	}

	s.logger.InfoContext(ctx, "file attached to session",
		slog.String("session_id", sessionID),
		slog.String("filename", filename),
		slog.Int("rows", len(parsed.Rows)))
	return session.Snapshot(), nil
}

// UpdateMapping applies user overrides to the column mapping.
func (s *ImportService) UpdateMapping(ctx context.Context, sessionID string, overrides importer.ColumnMapping) (operations.SessionView, error) {
	session, ok := s.registry.Get(sessionID)
	if !ok {
		return operations.SessionView{}, ErrSessionNotFound
	}
	if err := session.SetMapping(overrides); err != nil {
		return operations.SessionView{}, err
	}
	return session.Snapshot(), nil
}

// Run assembles and persists the attached file's rows. It blocks until
// the import finishes; progress is broadcast after every saved row so
// websocket clients can render a live bar.
func (s *ImportService) Run(ctx context.Context, sessionID string) (operations.SessionView, error) {
	session, ok := s.registry.Get(sessionID)
	if !ok {
		return operations.SessionView{}, ErrSessionNotFound
	}
	if err := session.BeginImport(); err != nil {
		return operations.SessionView{}, err
	}

	snap := session.Snapshot()
	s.addCounter(ctx, s.metrics.ImportsStarted, 1, snap.Source)

	trades, _ := s.assembler.Assemble(
		snap.Parsed.Rows, snap.Mapping, snap.Source, snap.Timezone,
		snap.AccountID, snap.UserID,
	)

	progress := func(processed, total int, stats domain.ImportStats) {
		s.broadcaster.BroadcastProgress(operations.ProgressEvent{
			SessionID: sessionID,
			Step:      operations.StepImporting,
			Processed: processed,
			Total:     total,
			Stats:     stats,
		})
	}

	stats, err := s.executor.Run(ctx, trades, len(snap.Parsed.Rows), snap.AccountID, snap.Mode, progress)
	if err != nil {
		session.FailImport(err)
		s.logger.ErrorContext(ctx, "import run failed",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
		return operations.SessionView{}, err
	}

	s.addCounter(ctx, s.metrics.TradesSaved, int64(stats.Success), snap.Source)
	s.addCounter(ctx, s.metrics.TradesSkipped, int64(stats.Skipped), snap.Source)
	s.addCounter(ctx, s.metrics.TradesFailed, int64(stats.Failed), snap.Source)

	session.CompleteImport(stats)
	s.broadcaster.BroadcastProgress(operations.ProgressEvent{
		SessionID: sessionID,
		Step:      operations.StepComplete,
		Processed: stats.Total,
		Total:     stats.Total,
		Stats:     stats,
	})

	s.logger.InfoContext(ctx, "import run complete",
		slog.String("session_id", sessionID),
		slog.Int("total", stats.Total),
		slog.Int("success", stats.Success),
		slog.Int("skipped", stats.Skipped),
		slog.Int("failed", stats.Failed))
	return session.Snapshot(), nil
}

// Reset returns the session to source selection, discarding everything.
func (s *ImportService) Reset(ctx context.Context, sessionID string) (operations.SessionView, error) {
	session, ok := s.registry.Get(sessionID)
	if !ok {
		return operations.SessionView{}, ErrSessionNotFound
	}
	session.Reset()
	s.logger.InfoContext(ctx, "import session reset", slog.String("session_id", sessionID))
	return session.Snapshot(), nil
}

// Get returns the current session snapshot.
func (s *ImportService) Get(ctx context.Context, sessionID string) (operations.SessionView, error) {
	session, ok := s.registry.Get(sessionID)
	if !ok {
		return operations.SessionView{}, ErrSessionNotFound
	}
	return session.Snapshot(), nil
}

func (s *ImportService) addCounter(ctx context.Context, c metric.Int64Counter, n int64, source domain.DataSource) {
	if c == nil || n == 0 {
		return
	}
	c.Add(ctx, n, infrastructure.SourceAttr(string(source)))
}
