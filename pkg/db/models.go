package db

import "time"

// Build is a provenance row written after a builder pipeline exports.
type Build struct {
	ID             int64
	Pipeline       string
	FormulaVersion int
	Records        int
	FinishedAt     time.Time
}
