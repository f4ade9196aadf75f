package http

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "tradejournal/internal/errors"
	"tradejournal/internal/operations"
	"tradejournal/internal/services"
	"tradejournal/internal/validation"
	"tradejournal/pkg/contracts/domain"
)

type stubAccounts struct {
	accounts map[string]domain.Account
}

func (s *stubAccounts) CreateAccount(_ context.Context, a domain.Account) error {
	s.accounts[a.ID] = a
	return nil
}

func (s *stubAccounts) GetAccount(_ context.Context, id string) (domain.Account, error) {
	a, ok := s.accounts[id]
	if !ok {
		return domain.Account{}, sql.ErrNoRows
	}
	return a, nil
}

func (s *stubAccounts) ListAccounts(_ context.Context, userID string) ([]domain.Account, error) {
	var out []domain.Account
	for _, a := range s.accounts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

type stubTrades struct {
	saved []domain.Trade
}

func (s *stubTrades) SaveTrade(_ context.Context, t domain.Trade) (bool, error) {
	s.saved = append(s.saved, t)
	return true, nil
}

func (s *stubTrades) ListTradesLite(context.Context, string) ([]domain.TradeLite, error) {
	return nil, nil
}

func (s *stubTrades) DeleteAllTrades(context.Context, string) (bool, error) {
	return true, nil
}

const handlerCSV = `Número do trade;Instrumento;Posição no mercado;Qtd;Preço de entrada;Preço de saída;Hora de entrada;Hora de saída;Lucro;Comissão
1;WINFUT;Comprada;1;128500;128650;15/01/2025 10:05:00;15/01/2025 10:25:00;30,00;1,50
`

func newTestRouter(t *testing.T) (chi.Router, *stubTrades) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	accounts := &stubAccounts{accounts: map[string]domain.Account{
		"acct-1": {ID: "acct-1", UserID: defaultUserID, Name: "Main", Currency: "USD"},
	}}
	trades := &stubTrades{}
	registry := operations.NewRegistry(time.Minute, logger)
	svc := services.NewImportService(registry, accounts, trades, nil, services.ImportMetrics{}, logger)

	handler := NewImportHandler(
		svc,
		validation.NewUploadValidator(1<<20, logger),
		apierrors.NewErrorHandler(logger),
		logger,
	)

	r := chi.NewRouter()
	r.Mount("/api/import", handler.Routes())
	return r, trades
}

func createSession(t *testing.T, router chi.Router, body string) operations.SessionView {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/import/session", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var snap operations.SessionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	return snap
}

func uploadFile(t *testing.T, router chi.Router, sessionID, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/import/"+sessionID+"/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestImportFlowOverHTTP(t *testing.T) {
	router, trades := newTestRouter(t)

	snap := createSession(t, router, `{"source":"ninjatrader","account_id":"acct-1"}`)
	assert.Equal(t, operations.StepUpload, snap.Step)

	rec := uploadFile(t, router, snap.ID, "executions.csv", handlerCSV)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var uploaded UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &uploaded))
	snap = uploaded.Session
	assert.Equal(t, operations.StepMapping, snap.Step)
	assert.Equal(t, "executions.csv", snap.Filename)
	assert.Equal(t, 1, uploaded.RowCount)
	assert.NotEmpty(t, uploaded.Headers)

	req := httptest.NewRequest(http.MethodPost, "/api/import/"+snap.ID+"/run", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, operations.StepComplete, snap.Step)
	require.NotNil(t, snap.Stats)
	assert.Equal(t, 1, snap.Stats.Success)
	assert.Len(t, trades.saved, 1)
}

func TestCreateSessionRejectsBadSource(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/import/session",
		strings.NewReader(`{"source":"etrade","account_id":"acct-1"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_REQUEST")
}

func TestCreateSessionUnknownAccount(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/import/session",
		strings.NewReader(`{"source":"metatrader","account_id":"nope"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "ACCOUNT_NOT_FOUND")
}

func TestUploadRejectsWrongExtension(t *testing.T) {
	router, _ := newTestRouter(t)
	snap := createSession(t, router, `{"source":"ninjatrader","account_id":"acct-1"}`)

	rec := uploadFile(t, router, snap.ID, "report.pdf", "%PDF-1.4")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_FAILED")
}

func TestUploadUnparseableFileIs422(t *testing.T) {
	router, _ := newTestRouter(t)
	snap := createSession(t, router, `{"source":"ninjatrader","account_id":"acct-1"}`)

	rec := uploadFile(t, router, snap.ID, "report.csv", "completely;wrong;content")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "UNSUPPORTED_FILE")
}

func TestRunBeforeUploadIsConflict(t *testing.T) {
	router, _ := newTestRouter(t)
	snap := createSession(t, router, `{"source":"ninjatrader","account_id":"acct-1"}`)

	req := httptest.NewRequest(http.MethodPost, "/api/import/"+snap.ID+"/run", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_TRANSITION")
}

func TestMappingUpdateAndReset(t *testing.T) {
	router, _ := newTestRouter(t)
	snap := createSession(t, router, `{"source":"ninjatrader","account_id":"acct-1"}`)
	rec := uploadFile(t, router, snap.ID, "executions.csv", handlerCSV)
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodPut, "/api/import/"+snap.ID+"/mapping",
		strings.NewReader(`{"mapping":{"notes":"Instrumento"}}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Unknown field names are rejected.
	req = httptest.NewRequest(http.MethodPut, "/api/import/"+snap.ID+"/mapping",
		strings.NewReader(`{"mapping":{"favourite_colour":"blue"}}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/import/"+snap.ID+"/reset", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var got operations.SessionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, operations.StepSourceSelection, got.Step)
}

func TestGetSessionNotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/import/missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "SESSION_NOT_FOUND")
}
