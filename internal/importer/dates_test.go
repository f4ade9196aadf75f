package importer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradejournal/pkg/contracts/domain"
)

func TestParseBrokerDateMetaTrader(t *testing.T) {
	withSeconds := ParseBrokerDate("2025.12.05 17:35:00", domain.SourceMetaTrader)
	withoutSeconds := ParseBrokerDate("2025.12.05 17:35", domain.SourceMetaTrader)

	require.NotNil(t, withSeconds)
	require.NotNil(t, withoutSeconds)
	// Seconds default to zero, so both readings are the same instant.
	assert.True(t, withSeconds.Equal(*withoutSeconds))
	assert.Equal(t, 2025, withSeconds.Year())
	assert.Equal(t, time.December, withSeconds.Month())
	assert.Equal(t, 5, withSeconds.Day())
	assert.Equal(t, 17, withSeconds.Hour())
	assert.Equal(t, 35, withSeconds.Minute())
}

func TestParseBrokerDateExcelSerial(t *testing.T) {
	want := time.Date(2025, time.December, 5, 17, 35, 0, 0, time.UTC)
	days := want.Truncate(24*time.Hour).Sub(excelEpoch).Hours() / 24
	serial := days + (17*3600+35*60)/86400.0

	got := ParseBrokerDate(serial, domain.SourceMetaTrader)
	require.NotNil(t, got)
	assert.True(t, got.Equal(want), "serial %f decoded to %v, want %v", serial, got, want)

	// Serial arriving as a raw string cell decodes the same way.
	gotStr := ParseBrokerDate("45996.7326388889", domain.SourceMetaTrader)
	require.NotNil(t, gotStr)
	assert.Equal(t, 2025, gotStr.Year())
}

func TestParseBrokerDateNinjaTrader(t *testing.T) {
	got := ParseBrokerDate("05/12/2025 17:35:10", domain.SourceNinjaTrader)
	require.NotNil(t, got)
	// dd/MM/yyyy: day 5, month 12.
	assert.Equal(t, time.December, got.Month())
	assert.Equal(t, 5, got.Day())
	assert.Equal(t, 10, got.Second())
}

func TestParseBrokerDateFallbackAndFailure(t *testing.T) {
	iso := ParseBrokerDate("2025-12-05 17:35:00", domain.SourceMetaTrader)
	require.NotNil(t, iso)
	assert.Equal(t, 17, iso.Hour())

	assert.Nil(t, ParseBrokerDate("not a date", domain.SourceMetaTrader))
	assert.Nil(t, ParseBrokerDate("", domain.SourceNinjaTrader))
	assert.Nil(t, ParseBrokerDate(nil, domain.SourceMetaTrader))
}

func TestToTargetTimezoneDSTBoundary(t *testing.T) {
	// New York enters DST on 2025-03-09, London not until 2025-03-30.
	// The same London wall-clock reading therefore lands one hour later
	// in New York during the gap than it does in January.
	january := time.Date(2025, time.January, 20, 12, 0, 0, 0, time.UTC)
	gap := time.Date(2025, time.March, 20, 12, 0, 0, 0, time.UTC)

	janNY, err := ToTargetTimezone(january, "Europe/London")
	require.NoError(t, err)
	gapNY, err := ToTargetTimezone(gap, "Europe/London")
	require.NoError(t, err)

	assert.Equal(t, 7, janNY.Hour(), "GMT vs EST is a 5 hour offset")
	assert.Equal(t, 8, gapNY.Hour(), "GMT vs EDT is a 4 hour offset")
}

func TestToTargetTimezoneKeepsCalendarFields(t *testing.T) {
	// 01:30 in Tokyo on Jan 2 is still Jan 1 in New York.
	naive := time.Date(2025, time.January, 2, 1, 30, 0, 0, time.UTC)
	got, err := ToTargetTimezone(naive, "Asia/Tokyo")
	require.NoError(t, err)
	assert.Equal(t, "2025-01-01", got.Format("2006-01-02"))
	assert.Equal(t, "11:30:00", got.Format("15:04:05"))
}

func TestToTargetTimezoneUnknownZone(t *testing.T) {
	_, err := ToTargetTimezone(time.Now(), "Mars/Olympus_Mons")
	assert.Error(t, err)
}
