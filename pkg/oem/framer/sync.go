package framer

// syncKind identifies which of the four wire families a recognized
// sync prefix belongs to (spec §4.1).
type syncKind uint8

const (
	syncNone syncKind = iota
	syncBinary
	syncShortBinary
	syncASCII
	syncAbbASCII
	syncNMEA
	syncJSON
)

var (
	binarySync      = [3]byte{0xAA, 0x44, 0x12}
	shortBinarySync = [3]byte{0xAA, 0x44, 0x13}
)

// findSync scans data for the first byte offset at which one of the
// recognized sync prefixes begins. Tie-breaking (spec §4.1: "the
// framer commits to the first recognized prefix") falls naturally out
// of scanning left to right and checking all families at each offset.
func findSync(data []byte, allowJSON bool) (offset int, kind syncKind, found bool) {
	for i := 0; i < len(data); i++ {
		if k := matchAt(data[i:], allowJSON); k != syncNone {
			return i, k, true
		}
	}
	return 0, syncNone, false
}

func matchAt(data []byte, allowJSON bool) syncKind {
	if len(data) == 0 {
		return syncNone
	}
	if len(data) >= 3 {
		if data[0] == binarySync[0] && data[1] == binarySync[1] && data[2] == binarySync[2] {
			return syncBinary
		}
		if data[0] == shortBinarySync[0] && data[1] == shortBinarySync[1] && data[2] == shortBinarySync[2] {
			return syncShortBinary
		}
	}
	switch data[0] {
	case '#':
		return syncASCII
	case '%':
		return syncAbbASCII
	case '$':
		return syncNMEA
	case '{':
		if allowJSON {
			return syncJSON
		}
	}
	return syncNone
}

// syncLen returns the number of leading sync bytes for kind, used to
// compute the CRC-mismatch resync advance (spec §4.1: "advances past
// the single byte after the sync").
func syncLen(kind syncKind) int {
	switch kind {
	case syncBinary, syncShortBinary:
		return 3
	default:
		return 1
	}
}
