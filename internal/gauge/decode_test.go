package gauge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeFrame(e *Engine, data string, origin Origin) []Candidate {
	return e.decode(Frame{Data: []byte(data), Origin: origin})
}

func TestDecodeStrictDecimal(t *testing.T) {
	e, _ := newTestEngine(t, DefaultConfig())

	cands := decodeFrame(e, "12.345", OriginASCII)
	require.Len(t, cands, 1)
	assert.Equal(t, "ascii-decimal", cands[0].Method)
	assert.Equal(t, ConfidenceVeryHigh, cands[0].Confidence)
	assert.InDelta(t, 12.345, cands[0].Value, 1e-9)
}

func TestDecodeStrictDecimalWithOffset(t *testing.T) {
	e, _ := newTestEngine(t, DefaultConfig())
	e.offset = 1.0

	cands := decodeFrame(e, "12.345", OriginASCII)
	require.Len(t, cands, 1)
	assert.InDelta(t, 11.345, cands[0].Value, 1e-9)
}

func TestDecodeFixedSixDigits(t *testing.T) {
	e, _ := newTestEngine(t, DefaultConfig())

	cands := decodeFrame(e, "012345", OriginASCII)
	require.Len(t, cands, 1)
	assert.Equal(t, "ascii-fixed6", cands[0].Method)
	assert.Equal(t, ConfidenceVeryHigh, cands[0].Confidence)
	assert.InDelta(t, 12345, cands[0].Raw, 1e-9)
	assert.InDelta(t, 12.345, cands[0].Value, 1e-9)
}

func TestDecodeNegativeFixedSixDigits(t *testing.T) {
	e, _ := newTestEngine(t, DefaultConfig())

	cands := decodeFrame(e, "-012345", OriginASCII)
	require.Len(t, cands, 1)
	assert.InDelta(t, -12.345, cands[0].Value, 1e-9)
}

func TestDecodeFallbackOnlyWhenStrictFails(t *testing.T) {
	e, _ := newTestEngine(t, DefaultConfig())

	cands := decodeFrame(e, "val: 1.5mm", OriginASCII)
	require.Len(t, cands, 1)
	assert.Equal(t, "ascii-fallback", cands[0].Method)
	assert.Equal(t, ConfidenceMedium, cands[0].Confidence)
	assert.InDelta(t, 1.5, cands[0].Value, 1e-9)

	// Strict match present: no fallback candidate generated.
	for _, c := range decodeFrame(e, "12.345", OriginASCII) {
		assert.NotEqual(t, "ascii-fallback", c.Method)
	}
}

func TestDecodeUnparseableYieldsNothing(t *testing.T) {
	e, _ := newTestEngine(t, DefaultConfig())
	assert.Empty(t, decodeFrame(e, "..--..", OriginASCII))
	assert.Empty(t, decodeFrame(e, "hello", OriginASCII))
}

func TestDecodeBinaryWordHypotheses(t *testing.T) {
	e, _ := newTestEngine(t, DefaultConfig())

	// Tail bytes 0x10 0x27: BE 4135, LE 10000.
	cands := e.decode(Frame{Data: []byte{0x00, 0x10, 0x27}, Origin: OriginBinary})

	var high, medium int
	for _, c := range cands {
		switch c.Confidence {
		case ConfidenceHigh:
			high++
		case ConfidenceMedium:
			medium++
		}
	}
	// BE ×0.01 = 41.35 and LE ×0.01 = 100.0 both land in range at the high
	// tier; the remaining in-range scales plus the 24-bit reads are medium.
	assert.Equal(t, 2, high)
	assert.Greater(t, medium, 0)

	best := rank(cands)
	assert.Equal(t, ConfidenceHigh, best.Confidence)
	assert.Equal(t, "uint16-be", best.Method)
	assert.InDelta(t, 41.35, best.Value, 1e-9)
}

func TestDecodeBinaryRangeFilter(t *testing.T) {
	e, _ := newTestEngine(t, DefaultConfig())

	// 0xFF 0xFF = 65535 in both byte orders: only the ×0.001 scale lands
	// inside the plausible range.
	cands := e.decode(Frame{Data: []byte{0xFF, 0xFF}, Origin: OriginBinary})
	require.Len(t, cands, 2)
	for _, c := range cands {
		assert.InDelta(t, 65.535, c.Value, 1e-9)
		assert.Equal(t, ConfidenceMedium, c.Confidence)
	}
}

func TestDecodeASCIIOriginSkipsBinaryStrategies(t *testing.T) {
	e, _ := newTestEngine(t, DefaultConfig())

	// Digit text would also parse as tail-byte integers; the origin gate
	// keeps the candidate list at exactly the one strict match.
	cands := decodeFrame(e, "012345", OriginASCII)
	require.Len(t, cands, 1)
	assert.Equal(t, ConfidenceVeryHigh, cands[0].Confidence)
}

func TestRankTiesKeepGenerationOrder(t *testing.T) {
	a := Candidate{Method: "first", Confidence: ConfidenceMedium}
	b := Candidate{Method: "second", Confidence: ConfidenceMedium}
	assert.Equal(t, "first", rank([]Candidate{a, b}).Method)

	c := Candidate{Method: "third", Confidence: ConfidenceHigh}
	assert.Equal(t, "third", rank([]Candidate{a, b, c}).Method)
}

func TestConfidenceOrder(t *testing.T) {
	assert.True(t, ConfidenceVeryHigh > ConfidenceHigh)
	assert.True(t, ConfidenceHigh > ConfidenceMedium)
	assert.True(t, ConfidenceMedium > ConfidenceLow)
}
