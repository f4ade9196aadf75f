package domain

// ImportStats are the transient counters reported at the end of an import
// run. Total counts raw rows seen by the parser; Failed includes both rows
// dropped during assembly and storage calls that returned false.
type ImportStats struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}
