package gauge

// isNoise reports whether a byte run is idle/handshake traffic rather than a
// measurement: every byte identical, or a strictly +1 increasing or strictly
// -1 decreasing run across the whole frame. Frames of length <= 1 are never
// classified as noise.
func isNoise(data []byte) bool {
	if len(data) <= 1 {
		return false
	}
	identical, ascending, descending := true, true, true
	for i := 1; i < len(data); i++ {
		if data[i] != data[0] {
			identical = false
		}
		if data[i] != data[i-1]+1 {
			ascending = false
		}
		if data[i] != data[i-1]-1 {
			descending = false
		}
	}
	return identical || ascending || descending
}
