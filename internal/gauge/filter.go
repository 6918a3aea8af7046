package gauge

import "math"

// historySize bounds the rolling window of recently accepted values.
const historySize = 5

// acceptable decides whether the best candidate survives the consistency
// check against recent history. High and very-high tiers are trusted
// unconditionally, as are sign flips relative to the last accepted value.
// Medium/low candidates must land within the jump threshold of at least one
// history entry.
func (e *Engine) acceptable(c Candidate) bool {
	if len(e.history) == 0 {
		return true
	}
	last := e.history[len(e.history)-1]
	if (c.Value < 0) != (last < 0) {
		return true
	}
	if c.Confidence >= ConfidenceHigh {
		return true
	}
	for _, h := range e.history {
		if math.Abs(h-c.Value) <= e.cfg.JumpThreshold {
			return true
		}
	}
	return false
}

// remember appends an accepted value to the history window, evicting the
// oldest entry beyond capacity, and tracks whether a negative value has
// ever been seen this session.
func (e *Engine) remember(v float64) {
	e.history = append(e.history, v)
	if len(e.history) > historySize {
		e.history = e.history[1:]
	}
	if v < 0 {
		e.seenNegative = true
	}
}
