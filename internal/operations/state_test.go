package operations

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradejournal/internal/importer"
	"tradejournal/pkg/contracts/domain"
)

func configuredSession(t *testing.T) *ImportSession {
	t.Helper()
	s := NewImportSession("sess-1", "user-1")
	require.NoError(t, s.Configure(domain.SourceMetaTrader, "acct-1", "Europe/Helsinki", importer.ModeAppend))
	return s
}

func attachedSession(t *testing.T) *ImportSession {
	t.Helper()
	s := configuredSession(t)
	parsed := &importer.ParsedFile{
		Source:  domain.SourceMetaTrader,
		Headers: []string{importer.HeaderEntryTime, "Symbol", "Type", "Volume", importer.HeaderEntryPrice},
		Rows:    []importer.RawRow{{"Symbol": "EURUSD"}},
	}
	mapping := importer.ColumnMapping{
		importer.FieldEntryDate:  importer.HeaderEntryTime,
		importer.FieldSymbol:     "Symbol",
		importer.FieldDirection:  "Type",
		importer.FieldVolume:     "Volume",
		importer.FieldEntryPrice: importer.HeaderEntryPrice,
	}
	require.NoError(t, s.AttachFile("statement.xlsx", parsed, mapping))
	return s
}

func TestSessionLinearFlow(t *testing.T) {
	s := attachedSession(t)
	assert.Equal(t, StepMapping, s.CurrentStep())

	require.NoError(t, s.BeginImport())
	assert.Equal(t, StepImporting, s.CurrentStep())

	s.CompleteImport(domain.ImportStats{Total: 1, Success: 1})
	assert.Equal(t, StepComplete, s.CurrentStep())
	require.NotNil(t, s.Snapshot().Stats)
	assert.Equal(t, 1, s.Snapshot().Stats.Success)
}

func TestSessionRejectsOutOfOrderTransitions(t *testing.T) {
	s := NewImportSession("sess-2", "user-1")

	// No upload before configuration.
	err := s.AttachFile("f.xlsx", &importer.ParsedFile{}, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// No second configuration once on the upload step.
	require.NoError(t, s.Configure(domain.SourceNinjaTrader, "acct", "UTC", importer.ModeAppend))
	err = s.Configure(domain.SourceMetaTrader, "acct", "UTC", importer.ModeAppend)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// No run without a file.
	err = s.BeginImport()
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSessionBeginImportRequiresMappedFields(t *testing.T) {
	s := configuredSession(t)
	parsed := &importer.ParsedFile{Rows: []importer.RawRow{{"Symbol": "EURUSD"}}}
	require.NoError(t, s.AttachFile("f.xlsx", parsed, importer.ColumnMapping{
		importer.FieldEntryDate: importer.HeaderEntryTime,
	}))

	err := s.BeginImport()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required fields unmapped")
}

func TestSessionFailReturnsToMapping(t *testing.T) {
	s := attachedSession(t)
	require.NoError(t, s.BeginImport())

	s.FailImport(errors.New("storage went away"))

	assert.Equal(t, StepMapping, s.CurrentStep())
	assert.Equal(t, "storage went away", s.Snapshot().Message)
}

func TestSessionResetClearsEverything(t *testing.T) {
	s := attachedSession(t)
	s.Reset()

	snap := s.Snapshot()
	assert.Equal(t, StepSourceSelection, snap.Step)
	assert.Empty(t, snap.Source)
	assert.Empty(t, snap.AccountID)
	assert.Empty(t, snap.Filename)
	assert.Nil(t, snap.Stats)
	assert.Empty(t, snap.Mapping)
}

func TestSessionMappingOverride(t *testing.T) {
	s := attachedSession(t)
	require.NoError(t, s.SetMapping(importer.ColumnMapping{importer.FieldSymbol: "Type"}))
	assert.Equal(t, "Type", s.Snapshot().Mapping[importer.FieldSymbol])
}

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry(time.Minute, nil)

	s := r.Create("user-1")
	got, ok := r.Get(s.ID)
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, 1, r.Count())

	_, ok = r.Get("nope")
	assert.False(t, ok)

	r.Delete(s.ID)
	_, ok = r.Get(s.ID)
	assert.False(t, ok)
}
