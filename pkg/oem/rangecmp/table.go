package rangecmp

// Reference table sizing: one entry per (system, PRN, signal) key,
// maxSystems × maxPRNs × maxSignals = 16384 entries, the widths of the
// RANGECMP4/5 system, satellite and signal bitmaps. Per Design Notes §9
// ("use a flat array indexed by a packed key rather than a hash map
// for throughput") the table is a fixed-size slice, not a map.
const (
	maxSystems = 8
	maxPRNs    = 64
	maxSignals = 32
	tableSize  = maxSystems * maxPRNs * maxSignals
)

// referenceEntry is the per-(system, PRN, signal) delta-coding anchor
// (spec §3: "RangeCmp reference entry... stores last accumulated
// doppler and a locktime reference for delta-coded records").
type referenceEntry struct {
	valid       bool
	pseudorange float64
	doppler     float64
	adr         float64
	lockTime    float64
}

// referenceTable is the RangeDecompressor's owned, resettable state.
type referenceTable struct {
	entries [tableSize]referenceEntry
}

func packKey(system SatelliteSystem, prn uint8, signal uint8) (int, bool) {
	s := int(system)
	p := int(prn)
	sig := int(signal)
	if s < 0 || s >= maxSystems || p < 0 || p >= maxPRNs || sig < 0 || sig >= maxSignals {
		return 0, false
	}
	return (s*maxPRNs+p)*maxSignals + sig, true
}

func (t *referenceTable) get(system SatelliteSystem, prn, signal uint8) (referenceEntry, bool) {
	idx, ok := packKey(system, prn, signal)
	if !ok {
		return referenceEntry{}, false
	}
	e := t.entries[idx]
	return e, e.valid
}

func (t *referenceTable) put(system SatelliteSystem, prn, signal uint8, e referenceEntry) bool {
	idx, ok := packKey(system, prn, signal)
	if !ok {
		return false
	}
	e.valid = true
	t.entries[idx] = e
	return true
}

func (t *referenceTable) reset() {
	for i := range t.entries {
		t.entries[i] = referenceEntry{}
	}
}
