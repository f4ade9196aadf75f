package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tradejournal/pkg/contracts/domain"
)

func TestDefaultMappingMetaTraderExact(t *testing.T) {
	headers := []string{
		HeaderEntryTime, "Position", "Symbol", "Type", "Volume",
		HeaderEntryPrice, "S / L", "T / P", HeaderExitTime, HeaderExitPrice,
		"Commission", "Swap", "Profit",
	}

	m := DefaultMapping(domain.SourceMetaTrader, headers, nil)

	assert.Equal(t, HeaderEntryTime, m[FieldEntryDate])
	assert.Equal(t, "Symbol", m[FieldSymbol])
	assert.Equal(t, "Type", m[FieldDirection])
	assert.Equal(t, "Volume", m[FieldVolume])
	assert.Equal(t, HeaderEntryPrice, m[FieldEntryPrice])
	assert.Equal(t, HeaderExitTime, m[FieldExitDate])
	assert.Equal(t, HeaderExitPrice, m[FieldExitPrice])
	assert.Equal(t, "Profit", m[FieldProfit])
	assert.Equal(t, "Commission", m[FieldCommission])
	assert.Equal(t, "Swap", m[FieldSwap])
	assert.Equal(t, "S / L", m[FieldStopLoss])
	assert.Equal(t, "T / P", m[FieldTakeProfit])
	assert.Empty(t, m.MissingRequired())
}

func TestDefaultMappingKeywordFallback(t *testing.T) {
	// No exact matches: a hand-edited report with Portuguese headers.
	headers := []string{"Data de abertura", "Ativo", "Tipo", "Lote", "Preço"}

	m := DefaultMapping(domain.SourceMetaTrader, headers, nil)

	assert.Equal(t, "Data de abertura", m[FieldEntryDate])
	assert.Equal(t, "Ativo", m[FieldSymbol])
	assert.Equal(t, "Tipo", m[FieldDirection])
	assert.Equal(t, "Lote", m[FieldVolume])
	assert.Equal(t, "Preço", m[FieldEntryPrice])
}

func TestDefaultMappingNeverOverwritesUserChoice(t *testing.T) {
	headers := []string{HeaderEntryTime, "Symbol", "Type", "Volume", HeaderEntryPrice}
	current := ColumnMapping{FieldSymbol: "Type"} // deliberate user override

	m := DefaultMapping(domain.SourceMetaTrader, headers, current)

	assert.Equal(t, "Type", m[FieldSymbol])
	// The original mapping is not mutated.
	assert.Len(t, current, 1)
}

func TestDefaultMappingNinjaTraderFixed(t *testing.T) {
	headers := []string{
		ntColTradeNumber, ntColInstrument, "Conta", "Estratégia",
		ntColPosition, ntColQuantity, ntColEntryPrice, ntColExitPrice,
		ntColEntryTime, ntColExitTime, ntColProfit, ntColCommission,
	}

	m := DefaultMapping(domain.SourceNinjaTrader, headers, nil)

	assert.Equal(t, ntColEntryTime, m[FieldEntryDate])
	assert.Equal(t, ntColInstrument, m[FieldSymbol])
	assert.Equal(t, ntColPosition, m[FieldDirection])
	assert.Equal(t, ntColQuantity, m[FieldVolume])
	assert.Equal(t, ntColProfit, m[FieldProfit])
	assert.Empty(t, m.MissingRequired())
}

func TestMissingRequired(t *testing.T) {
	m := ColumnMapping{FieldEntryDate: "Entry Time", FieldSymbol: "Symbol"}
	missing := m.MissingRequired()
	assert.ElementsMatch(t, []Field{FieldDirection, FieldVolume, FieldEntryPrice}, missing)
}
