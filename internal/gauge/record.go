package gauge

import "time"

// Record is one accepted measurement as appended to the session export log.
// Records are never mutated or removed; ResetMemory does not touch them.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Unit      string    `json:"unit"`
	RawHex    string    `json:"rawHex"`
	Method    string    `json:"method"`
	Accepted  bool      `json:"accepted"`
}
