package gauge

import (
	"sync"
	"time"
)

// Mode selects the framing protocol.
type Mode string

const (
	// ModeASCII is the fixed-digit-length protocol with CR/LF/0x12 terminators.
	ModeASCII Mode = "ascii"
	// ModeBinary is the adaptive auto-sizing protocol.
	ModeBinary Mode = "binary"
)

// Config holds the decode parameters for one engine instance.
type Config struct {
	Mode           Mode
	ExpectedDigits int           // fixed-digit protocol frame length
	FrameSize      int           // initial binary frame size guess
	FlushAfter     time.Duration // force-flush window for a stalled buffer
	ResizeAfter    time.Duration // frame-size cycling window
	JumpThreshold  float64       // consistency filter distance, in mm
}

// DefaultConfig returns the decode parameters matching the gauges this was
// built against.
func DefaultConfig() Config {
	return Config{
		Mode:           ModeASCII,
		ExpectedDigits: 6,
		FrameSize:      8,
		FlushAfter:     500 * time.Millisecond,
		ResizeAfter:    10 * time.Second,
		JumpThreshold:  1.0,
	}
}

// Engine turns raw byte chunks from one instrument into calibrated readings.
// It owns all decode state for one session: calibration, history, the export
// log, and both segmenters' buffers. One engine per instrument; chunks are
// processed strictly in arrival order.
type Engine struct {
	mu   sync.Mutex
	cfg  Config
	log  Logger
	sink ValueSink

	// Calibration + acceptance state.
	offset       float64
	unit         Unit
	history      []float64
	seenNegative bool
	records      []Record

	// Fixed-digit segmenter state.
	digits       []byte
	pendingMinus bool

	// Adaptive binary segmenter state.
	buf           []byte
	frameSize     int
	markerTally   map[int]int
	lastFrameAt   time.Time // any frame produced, flushes included
	lastSuccessAt time.Time // frames from text extraction or slicing only

	closed bool
	now    func() time.Time
}

// New creates an engine with the given capabilities. Nil log or sink get
// no-op defaults.
func New(cfg Config, log Logger, sink ValueSink) *Engine {
	if log == nil {
		log = NopLogger{}
	}
	if sink == nil {
		sink = NopSink{}
	}
	if cfg.ExpectedDigits <= 0 {
		cfg.ExpectedDigits = 6
	}
	if cfg.FrameSize <= 0 {
		cfg.FrameSize = 8
	}
	if cfg.FlushAfter <= 0 {
		cfg.FlushAfter = 500 * time.Millisecond
	}
	if cfg.ResizeAfter <= 0 {
		cfg.ResizeAfter = 10 * time.Second
	}
	if cfg.JumpThreshold <= 0 {
		cfg.JumpThreshold = 1.0
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeASCII
	}

	e := &Engine{
		cfg:         cfg,
		log:         log,
		sink:        sink,
		frameSize:   cfg.FrameSize,
		markerTally: make(map[int]int),
		now:         time.Now,
	}
	e.lastFrameAt = e.now()
	e.lastSuccessAt = e.lastFrameAt
	return e
}

// Feed processes one raw chunk to completion: segmentation, classification,
// decoding, ranking, filtering, state update and event emission all happen
// before Feed returns.
func (e *Engine) Feed(chunk []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || len(chunk) == 0 {
		return
	}

	e.log.Logf(TagBin, "[%d bytes] % x", len(chunk), chunk)
	e.log.Logf(TagRaw, "%q", string(chunk))

	if e.cfg.Mode == ModeBinary {
		e.feedBinary(chunk)
	} else {
		e.feedASCII(chunk)
	}
}

// Tick re-evaluates the binary-mode stall timeouts without new data. Hosts
// whose transport exposes idle ticks call this during read timeouts so a
// stalled buffer still flushes under sustained silence.
func (e *Engine) Tick() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.cfg.Mode != ModeBinary {
		return
	}
	e.checkTimeouts()
}

// processFrame runs one frame through classify -> decode -> rank -> filter.
func (e *Engine) processFrame(f Frame) {
	if f.Origin == OriginBinary && isNoise(f.Data) {
		e.log.Logf(TagInfo, "noise frame dropped (%d bytes): % x", len(f.Data), f.Data)
		return
	}

	cands := e.decode(f)
	if len(cands) == 0 {
		e.log.Logf(TagWarn, "no candidates for %s frame: % x", f.Origin, f.Data)
		return
	}

	best := rank(cands)
	if !e.acceptable(best) {
		e.log.Logf(TagWarn, "rejected %s %.3f (%s, confidence %s): outside jump threshold of all %d history entries",
			best.Method, best.Value, best.Descriptor, best.Confidence, len(e.history))
		return
	}

	e.accept(best, f)
}

// accept commits a candidate: history, export log, log line, value event.
func (e *Engine) accept(c Candidate, f Frame) {
	e.remember(c.Value)

	display := convert(c.Value, UnitMM, e.unit)
	e.records = append(e.records, Record{
		Timestamp: e.now(),
		Value:     display,
		Unit:      e.unit.String(),
		RawHex:    f.Hex(),
		Method:    c.Method,
		Accepted:  true,
	})

	e.log.Logf(TagParsed, "%.3f %s (%s %s, confidence %s)", display, e.unit, c.Method, c.Descriptor, c.Confidence)
	e.sink.Push(display, e.unit)
}

// Zero makes the supplied current reading the new zero reference. The offset
// accumulates: zeroing twice at the same displayed value doubles nothing, it
// re-zeros at the already-adjusted position. Takes and stores millimetres.
func (e *Engine) Zero(current float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.offset = current + e.offset
	e.log.Logf(TagStatus, "zeroed at %.3f mm (offset now %.3f mm)", current, e.offset)
	e.sink.Push(0, e.unit)
}

// ToggleUnit flips the display unit. If a current reading is supplied it is
// re-emitted converted into the new unit; the stored offset and history stay
// in millimetres either way.
func (e *Engine) ToggleUnit(current ...float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	from := e.unit
	if e.unit == UnitMM {
		e.unit = UnitInch
	} else {
		e.unit = UnitMM
	}
	e.log.Logf(TagStatus, "unit %s -> %s", from, e.unit)
	if len(current) > 0 {
		e.sink.Push(convert(current[0], from, e.unit), e.unit)
	}
}

// ResetMemory clears the history window and the seen-negative flag. The
// export log is untouched.
func (e *Engine) ResetMemory() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = nil
	e.seenNegative = false
	e.log.Logf(TagStatus, "history reset")
}

// Data returns a copy of the full ordered export log.
func (e *Engine) Data() []Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Record, len(e.records))
	copy(out, e.records)
	return out
}

// Offset returns the current calibration offset in millimetres.
func (e *Engine) Offset() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.offset
}

// Unit returns the active display unit.
func (e *Engine) Unit() Unit {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.unit
}

// History returns a copy of the rolling accepted-value window, oldest first.
func (e *Engine) History() []float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]float64, len(e.history))
	copy(out, e.history)
	return out
}

// SeenNegative reports whether any negative value has been accepted since
// the last reset.
func (e *Engine) SeenNegative() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seenNegative
}

// Close stops further processing and discards any partially accumulated
// buffers. No partial frame survives into another session.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	e.buf = nil
	e.digits = nil
	e.pendingMinus = false
	e.log.Logf(TagStatus, "disconnected")
}
