package gauge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func binaryConfig() Config {
	cfg := DefaultConfig()
	cfg.Mode = ModeBinary
	return cfg
}

func TestASCIIFrameAcrossChunks(t *testing.T) {
	e, c := newTestEngine(t, DefaultConfig())

	e.Feed([]byte("0123"))
	assert.Empty(t, c.values)

	e.Feed([]byte("45\r"))
	require.Len(t, c.values, 1)
	assert.InDelta(t, 12.345, c.values[0], 1e-9)
}

func TestASCIIMinusBeforeDigits(t *testing.T) {
	e, c := newTestEngine(t, DefaultConfig())

	e.Feed([]byte("-012345\n"))
	require.Len(t, c.values, 1)
	assert.InDelta(t, -12.345, c.values[0], 1e-9)
}

func TestASCIIControlByteTerminator(t *testing.T) {
	e, c := newTestEngine(t, DefaultConfig())

	e.Feed([]byte{'0', '1', '2', '3', '4', '5', 0x12})
	require.Len(t, c.values, 1)
	assert.InDelta(t, 12.345, c.values[0], 1e-9)
}

func TestASCIIIgnoresUnknownCharacters(t *testing.T) {
	e, c := newTestEngine(t, DefaultConfig())

	e.Feed([]byte("a0b1c2 3*4!5\r"))
	require.Len(t, c.values, 1)
	assert.InDelta(t, 12.345, c.values[0], 1e-9)
}

func TestASCIIWrongLengthDiscarded(t *testing.T) {
	e, c := newTestEngine(t, DefaultConfig())

	e.Feed([]byte("12345\r"))
	assert.Empty(t, c.values)
	assert.NotEmpty(t, c.tagged(TagInfo))

	// The discarded run does not bleed into the next frame.
	e.Feed([]byte("012345\r"))
	require.Len(t, c.values, 1)
	assert.InDelta(t, 12.345, c.values[0], 1e-9)
}

func TestASCIIShortReadingsPadded(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"000000\r", 0.0},
		{"000001\r", 0.001},
		{"000042\r", 0.042},
		{"000420\r", 0.420},
		{"004200\r", 4.2},
	}
	for _, tt := range tests {
		e, c := newTestEngine(t, DefaultConfig())
		e.Feed([]byte(tt.in))
		require.Len(t, c.values, 1, "input %q", tt.in)
		assert.InDelta(t, tt.want, c.values[0], 1e-9, "input %q", tt.in)
	}
}

func TestASCIIConfigurableDigitLength(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExpectedDigits = 4
	e, c := newTestEngine(t, cfg)

	e.Feed([]byte("1234\r"))
	require.Len(t, c.values, 1)
	assert.InDelta(t, 1.234, c.values[0], 1e-9)
}

func TestBinaryTextExtractionTakesPrecedence(t *testing.T) {
	e, c := newTestEngine(t, binaryConfig())

	// Ten bytes total: without the precedence rule the fixed-size slicer
	// would eat the decimal reading as part of an 8-byte frame.
	e.Feed([]byte("zz12.345yy"))

	require.Len(t, c.values, 1)
	assert.InDelta(t, 12.345, c.values[0], 1e-9)
	// The four residual bytes stay buffered, not sliced.
	assert.Equal(t, []byte("zzyy"), e.buf)
}

func TestBinaryEmbeddedFixedDigits(t *testing.T) {
	e, c := newTestEngine(t, binaryConfig())

	e.Feed([]byte{0x02, '0', '1', '2', '3', '4', '5', 0x03})

	require.Len(t, c.values, 1)
	assert.InDelta(t, 12.345, c.values[0], 1e-9)
}

func TestBinarySlicingAtActiveSize(t *testing.T) {
	e, c := newTestEngine(t, binaryConfig())

	// One full 8-byte frame; tail bytes decode via the word hypotheses.
	e.Feed([]byte{0x01, 0x05, 0x02, 0x07, 0x01, 0x05, 0x10, 0x27})

	require.Len(t, c.values, 1)
	assert.Empty(t, e.buf)
}

func TestBinaryNoiseFramesDropped(t *testing.T) {
	e, c := newTestEngine(t, binaryConfig())

	e.Feed([]byte{0x55, 0x55, 0x55, 0x55, 0x55, 0x55, 0x55, 0x55})
	e.Feed([]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08})
	e.Feed([]byte{0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01})

	assert.Empty(t, c.values)
	assert.Len(t, c.tagged(TagInfo), 3)
}

func TestMarkerOffsetAdoptedAfterThreeScans(t *testing.T) {
	e, _ := newTestEngine(t, binaryConfig())

	// Filler run of three 0x99 bytes at offset 4.
	chunk := []byte{0x01, 0x02, 0x03, 0x04, 0x99, 0x99, 0x99, 0x08}

	e.Feed(chunk)
	e.Feed(chunk)
	assert.Equal(t, 8, e.frameSize)

	e.Feed(chunk)
	assert.Equal(t, 4, e.frameSize)
}

func TestBinaryForceFlushAfterSilence(t *testing.T) {
	e, c := newTestEngine(t, binaryConfig())
	clk := &fakeClock{t: time.Unix(1000, 0)}
	installClock(e, clk)

	// Three bytes: less than one frame at the active size of 8.
	e.Feed([]byte{0x00, 0x10, 0x27})
	assert.Empty(t, c.values)

	clk.advance(600 * time.Millisecond)
	e.Tick()

	require.Len(t, c.values, 1)
	assert.Empty(t, e.buf)
}

func TestBinaryFlushTimerResetByExtraction(t *testing.T) {
	e, c := newTestEngine(t, binaryConfig())
	clk := &fakeClock{t: time.Unix(1000, 0)}
	installClock(e, clk)

	e.Feed([]byte{0x00, 0x10})
	clk.advance(300 * time.Millisecond)
	e.Feed([]byte("12.345")) // successful extraction resets the window
	c.values = nil

	clk.advance(300 * time.Millisecond)
	e.Tick()
	assert.Empty(t, c.values) // only 300ms since the last frame

	clk.advance(300 * time.Millisecond)
	e.Tick()
	assert.Len(t, c.values, 1) // now flushed
}

func TestBinaryFrameSizeCyclesAfterLongStall(t *testing.T) {
	e, c := newTestEngine(t, binaryConfig())
	clk := &fakeClock{t: time.Unix(1000, 0)}
	installClock(e, clk)

	e.Feed([]byte{0x00, 0x40, 0x00})
	clk.advance(11 * time.Second)
	e.Feed([]byte{0x41, 0x00, 0x42})

	// The stall cycles the frame size down to 2 and the buffered bytes
	// slice into three 2-byte frames.
	assert.Equal(t, 2, e.frameSize)
	assert.NotEmpty(t, c.values)
	assert.Empty(t, e.buf)
}
