package gauge

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Confidence is the ordered trust level attached to a candidate
// interpretation. Comparison uses the numeric order only.
type Confidence int

const (
	ConfidenceLow      Confidence = 1
	ConfidenceMedium   Confidence = 2
	ConfidenceHigh     Confidence = 3
	ConfidenceVeryHigh Confidence = 4
)

func (c Confidence) String() string {
	switch c {
	case ConfidenceVeryHigh:
		return "very-high"
	case ConfidenceHigh:
		return "high"
	case ConfidenceMedium:
		return "medium"
	default:
		return "low"
	}
}

// Candidate is one hypothesized decoding of a frame under a specific
// strategy. Value is the offset-adjusted result in millimetres.
type Candidate struct {
	Method     string
	Raw        float64
	Descriptor string // byte order / scale, e.g. "be ×0.01"
	Value      float64
	Confidence Confidence
}

// Plausible instrument range for binary interpretations. A dial gauge reads
// a few tens of millimetres at most; anything outside this is a misdecode.
const (
	plausibleMin = -100.0
	plausibleMax = 100.0
)

var (
	reDecimal = regexp.MustCompile(`^-?\d+\.\d{3}$`)
	reFixed   = regexp.MustCompile(`^-?\d{6}$`)
	reStrip   = regexp.MustCompile(`[^0-9.\-]`)
)

// decode runs every applicable strategy against the frame and collects all
// interpretations that succeed. Strategies never short-circuit each other;
// text strategies are generated first so they win confidence ties.
func (e *Engine) decode(f Frame) []Candidate {
	var cands []Candidate

	text := strings.TrimSpace(f.Text())

	// Strategy 1: strict decimal ASCII, e.g. "12.345".
	if reDecimal.MatchString(text) {
		if raw, err := strconv.ParseFloat(text, 64); err == nil {
			cands = append(cands, Candidate{
				Method:     "ascii-decimal",
				Raw:        raw,
				Descriptor: "×1",
				Value:      raw - e.offset,
				Confidence: ConfidenceVeryHigh,
			})
		}
	}

	// Strategy 2: strict 6-digit ASCII, e.g. "012345" -> 12.345.
	if reFixed.MatchString(text) {
		if n, err := strconv.Atoi(text); err == nil {
			raw := float64(n)
			cands = append(cands, Candidate{
				Method:     "ascii-fixed6",
				Raw:        raw,
				Descriptor: "×0.001",
				Value:      raw*0.001 - e.offset,
				Confidence: ConfidenceVeryHigh,
			})
		}
	}

	// Strategy 3: lenient text fallback, only when the strict matches
	// produced nothing.
	if len(cands) == 0 {
		cleaned := reStrip.ReplaceAllString(text, "")
		if cleaned != "" {
			if raw, err := strconv.ParseFloat(cleaned, 64); err == nil {
				cands = append(cands, Candidate{
					Method:     "ascii-fallback",
					Raw:        raw,
					Descriptor: "×1",
					Value:      raw - e.offset,
					Confidence: ConfidenceMedium,
				})
			}
		}
	}

	// Byte-order/scale hypotheses only make sense for binary frames; running
	// them on digit text would misread trailing characters as integers.
	if f.Origin != OriginBinary {
		return cands
	}

	// Strategy 4: 16-bit integer from the final two bytes, both byte orders,
	// at each plausible fixed-point scale.
	if len(f.Data) >= 2 {
		tail := f.Data[len(f.Data)-2:]
		be := uint16(tail[0])<<8 | uint16(tail[1])
		le := uint16(tail[1])<<8 | uint16(tail[0])
		for _, o := range []struct {
			name string
			raw  uint16
		}{{"be", be}, {"le", le}} {
			for _, scale := range []float64{1, 0.1, 0.01, 0.001} {
				adjusted := float64(o.raw)*scale - e.offset
				if adjusted < plausibleMin || adjusted > plausibleMax {
					continue
				}
				conf := ConfidenceMedium
				if scale == 0.01 {
					conf = ConfidenceHigh
				}
				cands = append(cands, Candidate{
					Method:     "uint16-" + o.name,
					Raw:        float64(o.raw),
					Descriptor: fmt.Sprintf("%s ×%g", o.name, scale),
					Value:      adjusted,
					Confidence: conf,
				})
			}
		}
	}

	// Strategy 5: 24-bit big-endian integer from the final three bytes.
	if len(f.Data) >= 3 {
		tail := f.Data[len(f.Data)-3:]
		raw := uint32(tail[0])<<16 | uint32(tail[1])<<8 | uint32(tail[2])
		for _, scale := range []float64{0.001, 0.0001, 0.00001} {
			adjusted := float64(raw)*scale - e.offset
			if adjusted < plausibleMin || adjusted > plausibleMax {
				continue
			}
			cands = append(cands, Candidate{
				Method:     "uint24-be",
				Raw:        float64(raw),
				Descriptor: fmt.Sprintf("be ×%g", scale),
				Value:      adjusted,
				Confidence: ConfidenceMedium,
			})
		}
	}

	return cands
}

// rank picks the candidate with the highest confidence tier. Ties keep
// generation order, so ASCII strategies beat binary interpretations.
func rank(cands []Candidate) Candidate {
	best := cands[0]
	for _, c := range cands[1:] {
		if c.Confidence > best.Confidence {
			best = c
		}
	}
	return best
}
