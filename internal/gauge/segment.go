package gauge

import (
	"regexp"
	"strings"
)

// reEmbedded finds decimal-formatted or fixed-digit-length readings embedded
// in the text of the binary buffer. Extraction takes precedence over
// fixed-size slicing so the same bytes are never consumed twice.
var reEmbedded = regexp.MustCompile(`-?\d+\.\d{3}|-?\d{6}`)

// alternateSizes is the cycle order tried when the active frame size has
// produced nothing for a long time.
var alternateSizes = []int{2, 3, 4, 6, 8}

// feedASCII consumes a chunk under the fixed-digit protocol: digits
// accumulate, '-' arms the pending-negative flag, and CR/LF/0x12 terminate a
// frame. Everything else is ignored.
func (e *Engine) feedASCII(chunk []byte) {
	for _, ch := range chunk {
		switch {
		case ch == '-':
			e.pendingMinus = true
		case ch == '\r' || ch == '\n' || ch == 0x12:
			e.closeDigitFrame()
		case ch >= '0' && ch <= '9':
			e.digits = append(e.digits, ch)
		}
	}
}

// closeDigitFrame validates the accumulated digit run, formats it as a
// millimetre reading with three decimal places, and hands it to the decode
// pipeline as an ASCII frame. The accumulator and the pending-negative flag
// reset regardless of outcome.
func (e *Engine) closeDigitFrame() {
	digits := string(e.digits)
	pending := e.pendingMinus
	e.digits = e.digits[:0]
	e.pendingMinus = false

	if digits == "" {
		return
	}
	if len(digits) != e.cfg.ExpectedDigits {
		e.log.Logf(TagInfo, "ignored buffer (unexpected length %d): %q", len(digits), digits)
		return
	}

	s := strings.TrimLeft(digits, "0")
	if s == "" {
		s = "0"
	}
	switch {
	case len(s) > 3:
		s = s[:len(s)-3] + "." + s[len(s)-3:]
	case len(s) == 3:
		s = "0." + s
	case len(s) == 2:
		s = "0.0" + s
	default:
		s = "0.00" + s
	}
	if pending {
		s = "-" + s
	}

	e.processFrame(Frame{Data: []byte(s), Origin: OriginASCII})
}

// feedBinary consumes a chunk under the adaptive binary protocol: grow the
// buffer, update the marker-offset statistics, extract embedded text
// readings, slice fixed-size frames, then evaluate the stall timeouts.
func (e *Engine) feedBinary(chunk []byte) {
	e.buf = append(e.buf, chunk...)
	e.scanMarkers(chunk)

	extracted := e.extractTextFrames()
	sliced := e.sliceFrames()
	if extracted || sliced {
		now := e.now()
		e.lastSuccessAt = now
		e.lastFrameAt = now
	}

	e.checkTimeouts()
}

// scanMarkers looks for runs of three identical consecutive bytes at each
// chunk offset and tallies the offsets. An offset observed in three separate
// scans becomes the new active frame size: instruments that pad frames with
// repeated filler bytes reveal their frame length this way.
func (e *Engine) scanMarkers(chunk []byte) {
	for i := 2; i+2 < len(chunk); i++ {
		if chunk[i] != chunk[i+1] || chunk[i] != chunk[i+2] {
			continue
		}
		e.markerTally[i]++
		if e.markerTally[i] >= 3 && e.frameSize != i {
			e.log.Logf(TagInfo, "marker offset %d confirmed, frame size %d -> %d", i, e.frameSize, i)
			e.frameSize = i
		}
	}
}

// extractTextFrames pulls decimal or fixed-digit readings out of the decoded
// buffer text, processes each as its own ASCII frame, and removes the
// matched bytes from the buffer. Returns whether anything was extracted.
func (e *Engine) extractTextFrames() bool {
	matches := reEmbedded.FindAllIndex(e.buf, -1)
	if len(matches) == 0 {
		return false
	}

	remainder := make([]byte, 0, len(e.buf))
	prev := 0
	var frames [][]byte
	for _, m := range matches {
		remainder = append(remainder, e.buf[prev:m[0]]...)
		frame := make([]byte, m[1]-m[0])
		copy(frame, e.buf[m[0]:m[1]])
		frames = append(frames, frame)
		prev = m[1]
	}
	remainder = append(remainder, e.buf[prev:]...)
	e.buf = remainder

	for _, data := range frames {
		e.processFrame(Frame{Data: data, Origin: OriginASCII})
	}
	return true
}

// sliceFrames cuts frames of the active size from the front of the buffer
// until it holds less than one frame. Returns whether anything was sliced.
func (e *Engine) sliceFrames() bool {
	n := 0
	for e.frameSize > 0 && len(e.buf) >= e.frameSize {
		data := make([]byte, e.frameSize)
		copy(data, e.buf[:e.frameSize])
		e.buf = e.buf[e.frameSize:]
		e.processFrame(Frame{Data: data, Origin: OriginBinary})
		n++
	}
	return n > 0
}

// checkTimeouts evaluates the two stall windows against the injected clock.
// The long window cycles to an alternate frame size while data is stuck in
// the buffer; the short window force-flushes whatever remains as one frame.
// The resize check runs first: a force-flush resets the short window, and a
// flushed frame must not mask a persistently wrong frame size.
func (e *Engine) checkTimeouts() {
	if len(e.buf) == 0 {
		return
	}
	now := e.now()

	if now.Sub(e.lastSuccessAt) > e.cfg.ResizeAfter {
		for _, size := range alternateSizes {
			if size == e.frameSize || len(e.buf) < size {
				continue
			}
			e.log.Logf(TagInfo, "no frames for %v, cycling frame size %d -> %d", e.cfg.ResizeAfter, e.frameSize, size)
			e.frameSize = size
			if e.sliceFrames() {
				e.lastSuccessAt = now
				e.lastFrameAt = now
			}
			break
		}
	}

	if len(e.buf) > 0 && now.Sub(e.lastFrameAt) > e.cfg.FlushAfter {
		data := make([]byte, len(e.buf))
		copy(data, e.buf)
		e.buf = e.buf[:0]
		e.log.Logf(TagInfo, "force-flushing %d buffered bytes after %v of silence", len(data), e.cfg.FlushAfter)
		e.lastFrameAt = now
		e.processFrame(Frame{Data: data, Origin: OriginBinary})
	}
}
