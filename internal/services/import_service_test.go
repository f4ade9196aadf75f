package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradejournal/internal/importer"
	"tradejournal/internal/operations"
	"tradejournal/pkg/contracts/domain"
)

type fakeAccounts struct {
	accounts map[string]domain.Account
}

func newFakeAccounts(ids ...string) *fakeAccounts {
	f := &fakeAccounts{accounts: make(map[string]domain.Account)}
	for _, id := range ids {
		f.accounts[id] = domain.Account{ID: id, UserID: "user-1", Name: id, Currency: "USD"}
	}
	return f
}

func (f *fakeAccounts) CreateAccount(_ context.Context, a domain.Account) error {
	f.accounts[a.ID] = a
	return nil
}

func (f *fakeAccounts) GetAccount(_ context.Context, id string) (domain.Account, error) {
	a, ok := f.accounts[id]
	if !ok {
		return domain.Account{}, sql.ErrNoRows
	}
	return a, nil
}

func (f *fakeAccounts) ListAccounts(_ context.Context, userID string) ([]domain.Account, error) {
	var out []domain.Account
	for _, a := range f.accounts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeTrades struct {
	mu     sync.Mutex
	saved  []domain.Trade
	litein []domain.TradeLite
}

func (f *fakeTrades) SaveTrade(_ context.Context, t domain.Trade) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, t)
	return true, nil
}

func (f *fakeTrades) ListTradesLite(_ context.Context, _ string) ([]domain.TradeLite, error) {
	return f.litein, nil
}

func (f *fakeTrades) DeleteAllTrades(_ context.Context, _ string) (bool, error) {
	return true, nil
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []operations.ProgressEvent
}

func (b *recordingBroadcaster) BroadcastProgress(e operations.ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

const sessionCSV = `Número do trade;Instrumento;Posição no mercado;Qtd;Preço de entrada;Preço de saída;Hora de entrada;Hora de saída;Lucro;Comissão
1;WINFUT;Comprada;1;128500;128650;15/01/2025 10:05:00;15/01/2025 10:25:00;30,00;1,50
2;WINFUT;Vendida;2;128700;128600;15/01/2025 11:00:00;15/01/2025 11:40:00;40,00;1,50
`

func newTestService(trades importer.TradeStorage, b operations.Broadcaster) *ImportService {
	registry := operations.NewRegistry(time.Minute, nil)
	return NewImportService(registry, newFakeAccounts("acct-1"), trades, b, ImportMetrics{}, nil)
}

func TestImportLifecycle(t *testing.T) {
	ctx := context.Background()
	trades := &fakeTrades{}
	broadcaster := &recordingBroadcaster{}
	svc := newTestService(trades, broadcaster)

	snap, err := svc.CreateSession(ctx, "user-1", domain.SourceNinjaTrader, "acct-1", "", "")
	require.NoError(t, err)
	assert.Equal(t, operations.StepUpload, snap.Step)
	assert.Equal(t, "America/Sao_Paulo", snap.Timezone, "NinjaTrader timezone default applies")

	snap, err = svc.Upload(ctx, snap.ID, "executions.csv", []byte(sessionCSV))
	require.NoError(t, err)
	assert.Equal(t, operations.StepMapping, snap.Step)
	assert.Equal(t, "Instrumento", snap.Mapping[importer.FieldSymbol])

	snap, err = svc.Run(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, operations.StepComplete, snap.Step)
	require.NotNil(t, snap.Stats)
	assert.Equal(t, domain.ImportStats{Total: 2, Success: 2}, *snap.Stats)
	assert.Len(t, trades.saved, 2)

	// One progress event per row plus the completion event.
	broadcaster.mu.Lock()
	defer broadcaster.mu.Unlock()
	require.Len(t, broadcaster.events, 3)
	assert.Equal(t, operations.StepComplete, broadcaster.events[2].Step)
}

func TestCreateSessionValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(&fakeTrades{}, nil)

	_, err := svc.CreateSession(ctx, "user-1", "etrade", "acct-1", "", "")
	assert.ErrorIs(t, err, ErrInvalidSource)

	_, err = svc.CreateSession(ctx, "user-1", domain.SourceMetaTrader, "acct-1", "Mars/Olympus", "")
	assert.ErrorIs(t, err, ErrInvalidTimezone)

	_, err = svc.CreateSession(ctx, "user-1", domain.SourceMetaTrader, "missing", "", "")
	assert.ErrorIs(t, err, ErrAccountNotFound)

	_, err = svc.CreateSession(ctx, "user-1", domain.SourceMetaTrader, "acct-1", "", "merge")
	assert.ErrorIs(t, err, ErrInvalidMode)
}

func TestUploadErrors(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(&fakeTrades{}, nil)

	_, err := svc.Upload(ctx, "missing", "f.csv", []byte("x"))
	assert.ErrorIs(t, err, ErrSessionNotFound)

	snap, err := svc.CreateSession(ctx, "user-1", domain.SourceNinjaTrader, "acct-1", "", "")
	require.NoError(t, err)

	_, err = svc.Upload(ctx, snap.ID, "f.csv", nil)
	assert.ErrorIs(t, err, ErrEmptyFile)

	// Wrong extension for the source is a detector error.
	_, err = svc.Upload(ctx, snap.ID, "report.xlsx", []byte("data"))
	require.Error(t, err)

	// Garbage content is a parse error, and the session stays on upload.
	_, err = svc.Upload(ctx, snap.ID, "report.csv", []byte("not;a;trade;file"))
	require.Error(t, err)
	got, err := svc.Get(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, operations.StepUpload, got.Step)
}

func TestRunCountsUnassemblableRowsAsFailed(t *testing.T) {
	ctx := context.Background()
	trades := &fakeTrades{}
	svc := newTestService(trades, nil)

	snap, err := svc.CreateSession(ctx, "user-1", domain.SourceNinjaTrader, "acct-1", "", "")
	require.NoError(t, err)
	snap, err = svc.Upload(ctx, snap.ID, "executions.csv", []byte(sessionCSV))
	require.NoError(t, err)

	// Point the symbol field at a header no row carries; every row is
	// then dropped during assembly and counted as failed.
	_, err = svc.UpdateMapping(ctx, snap.ID, importer.ColumnMapping{importer.FieldSymbol: "Conta"})
	require.NoError(t, err)

	snap, err = svc.Run(ctx, snap.ID)
	require.NoError(t, err)
	require.NotNil(t, snap.Stats)
	assert.Equal(t, domain.ImportStats{Total: 2, Failed: 2}, *snap.Stats)
	assert.Empty(t, trades.saved)
}

func TestRunMissingSession(t *testing.T) {
	svc := newTestService(&fakeTrades{}, nil)
	_, err := svc.Run(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRunExecutorFailureReturnsToMapping(t *testing.T) {
	ctx := context.Background()
	trades := &failingTrades{}
	svc := newTestService(trades, nil)

	snap, err := svc.CreateSession(ctx, "user-1", domain.SourceNinjaTrader, "acct-1", "", "")
	require.NoError(t, err)
	snap, err = svc.Upload(ctx, snap.ID, "executions.csv", []byte(sessionCSV))
	require.NoError(t, err)

	_, err = svc.Run(ctx, snap.ID)
	require.Error(t, err)
	var pre *importer.PreconditionError
	assert.ErrorAs(t, err, &pre)

	got, err := svc.Get(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, operations.StepMapping, got.Step)
	assert.True(t, strings.Contains(got.Message, "dedup"), got.Message)
}

type failingTrades struct{}

func (failingTrades) SaveTrade(context.Context, domain.Trade) (bool, error) {
	return false, fmt.Errorf("unreachable")
}

func (failingTrades) ListTradesLite(context.Context, string) ([]domain.TradeLite, error) {
	return nil, fmt.Errorf("database locked")
}

func (failingTrades) DeleteAllTrades(context.Context, string) (bool, error) {
	return false, fmt.Errorf("database locked")
}
