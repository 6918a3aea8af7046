package gauge

// Unit is the active display unit. The engine stores its offset and history
// in millimetres regardless; conversion happens at emission only.
type Unit int

const (
	UnitMM Unit = iota
	UnitInch
)

func (u Unit) String() string {
	if u == UnitInch {
		return "in"
	}
	return "mm"
}

// Fixed conversion constants used by the gauge's own display firmware.
const (
	mmToInch = 0.03937
	inchToMM = 25.4
)

// convert translates a value between units. Same-unit conversion is identity.
func convert(v float64, from, to Unit) float64 {
	if from == to {
		return v
	}
	if to == UnitInch {
		return v * mmToInch
	}
	return v * inchToMM
}
