package domain

// Trading session buckets, derived from the trade's entry time of day in
// the target timezone. The same classification is used by the journal's
// reporting views, so the rule lives here rather than in the importer.
const (
	SessionAsia    = "Asia"
	SessionLondon  = "London"
	SessionNewYork = "New York"
)

// SessionForTime buckets a New York wall-clock time (HH:mm or HH:mm:ss)
// into a trading session. An empty or unparseable time yields "".
func SessionForTime(clock string) string {
	if len(clock) < 5 || clock[2] != ':' {
		return ""
	}
	h := int(clock[0]-'0')*10 + int(clock[1]-'0')
	if h < 0 || h > 23 {
		return ""
	}
	switch {
	case h >= 17 || h < 2:
		return SessionAsia
	case h < 8:
		return SessionLondon
	default:
		return SessionNewYork
	}
}
