package gauge

import "fmt"

// Origin tells the decoder which protocol produced a frame. ASCII frames
// carry digit text and only go through the text strategies; binary frames
// additionally get the byte-order/scale interpretations.
type Origin int

const (
	// OriginASCII marks frames from the fixed-digit protocol or from
	// text-pattern extraction out of the binary buffer.
	OriginASCII Origin = iota
	// OriginBinary marks frames sliced or flushed from the raw byte buffer.
	OriginBinary
)

func (o Origin) String() string {
	if o == OriginBinary {
		return "binary"
	}
	return "ascii"
}

// Frame is one delimited unit of raw input handed to the decoder. It is
// created by the segmenter, consumed once, then discarded.
type Frame struct {
	Data   []byte
	Origin Origin
}

// Text returns the frame contents decoded byte-for-byte (latin-1 style).
func (f Frame) Text() string {
	return string(f.Data)
}

// Hex returns the frame contents as space-separated hex pairs.
func (f Frame) Hex() string {
	return fmt.Sprintf("% x", f.Data)
}
