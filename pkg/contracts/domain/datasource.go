package domain

// DataSource identifies the broker platform that produced an export file.
// It selects the parser, default column mapping, default broker timezone
// and the price/date parsing dialect for an import session.
type DataSource string

const (
	SourceMetaTrader  DataSource = "metatrader"
	SourceNinjaTrader DataSource = "ninjatrader"
	SourceTradovate   DataSource = "tradovate"
)

// Valid reports whether s is one of the supported broker tags.
func (s DataSource) Valid() bool {
	switch s {
	case SourceMetaTrader, SourceNinjaTrader, SourceTradovate:
		return true
	}
	return false
}

// DefaultTimezone returns the IANA zone a broker's exports are usually
// recorded in. The user can override it per import session.
func (s DataSource) DefaultTimezone() string {
	switch s {
	case SourceMetaTrader:
		return "Europe/Helsinki"
	case SourceNinjaTrader:
		return "America/Sao_Paulo"
	default:
		return "America/New_York"
	}
}

// SourceTimezones enumerates the broker timezones a user may declare.
var SourceTimezones = []string{
	"Europe/Helsinki",
	"UTC",
	"Europe/London",
	"America/New_York",
	"Asia/Tokyo",
	"America/Sao_Paulo",
}

// TargetTimezone is the single fixed zone every persisted entry/exit
// date and time is expressed in.
const TargetTimezone = "America/New_York"
