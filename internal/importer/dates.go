package importer

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"tradejournal/pkg/contracts/domain"
)

// Native date layouts tried per data source, most specific first. The
// parsed value is a wall-clock reading with no embedded timezone.
var brokerDateLayouts = map[domain.DataSource][]string{
	domain.SourceMetaTrader: {
		"2006.01.02 15:04:05",
		"2006.01.02 15:04",
		"2006.01.02",
	},
	domain.SourceNinjaTrader: {
		"02/01/2006 15:04:05",
		"02/01/2006 15:04",
		"02/01/2006",
	},
	domain.SourceTradovate: {
		"01/02/2006 15:04:05",
		"01/02/2006 15:04",
		"01/02/2006",
	},
}

// Locale-agnostic fallbacks tried after the source's native layouts.
var isoDateLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// excelEpoch is the day-zero of the Excel date-serial convention. Serial
// values count days since this date with a fractional time-of-day part.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// ParseBrokerDate parses a broker-specific date cell into a naive
// wall-clock reading. It tries the source's native layouts, then Excel
// date serials for MetaTrader spreadsheets, then the ISO fallbacks. It
// returns nil on total failure, never an error: callers must treat nil
// as "unparseable, skip row".
func ParseBrokerDate(raw any, source domain.DataSource) *time.Time {
	switch v := raw.(type) {
	case float64:
		if source == domain.SourceMetaTrader && v > 0 {
			t := excelSerialToTime(v)
			return &t
		}
		return nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil
		}
		for _, layout := range brokerDateLayouts[source] {
			if t, err := time.Parse(layout, s); err == nil {
				return &t
			}
		}
		if source == domain.SourceMetaTrader {
			if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 {
				t := excelSerialToTime(serial)
				return &t
			}
		}
		for _, layout := range isoDateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return &t
			}
		}
		return nil
	default:
		return nil
	}
}

// excelSerialToTime decodes an Excel date serial: whole days since the
// epoch plus a fractional day, rounded to the nearest second to absorb
// float representation noise.
func excelSerialToTime(serial float64) time.Time {
	days := math.Floor(serial)
	frac := serial - days
	seconds := math.Round(frac * 86400)
	return excelEpoch.
		AddDate(0, 0, int(days)).
		Add(time.Duration(seconds) * time.Second)
}

// ToTargetTimezone converts a naive wall-clock reading into the target
// timezone's wall-clock. The reading is first interpreted in the
// user-declared source zone (DST-aware for that exact date), producing a
// true instant, then re-expressed in the target zone. Both steps use the
// IANA database; a plain numeric offset shift would be wrong across
// daylight-saving boundaries.
func ToTargetTimezone(naive time.Time, sourceTZ string) (time.Time, error) {
	src, err := time.LoadLocation(sourceTZ)
	if err != nil {
		return time.Time{}, fmt.Errorf("unknown source timezone %q: %w", sourceTZ, err)
	}
	tgt, err := time.LoadLocation(domain.TargetTimezone)
	if err != nil {
		return time.Time{}, fmt.Errorf("load target timezone: %w", err)
	}

	instant := time.Date(
		naive.Year(), naive.Month(), naive.Day(),
		naive.Hour(), naive.Minute(), naive.Second(), 0,
		src,
	)
	return instant.In(tgt), nil
}
