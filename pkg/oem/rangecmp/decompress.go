package rangecmp

import (
	"github.com/bramburn/oem-edie/pkg/oem"
	"github.com/bramburn/oem-edie/pkg/oem/bits"
	"github.com/bramburn/oem-edie/pkg/oem/oemlog"
)

// Scaling factors applied when converting packed integer fields to
// their physical-unit equivalents. LSB sizes are chosen so pseudorange
// reconstruction matches a paired uncompressed RANGE frame to within
// 0.0005 m (spec §8 S3).
const (
	pseudorangeLSB = 0.0005  // meters
	dopplerLSB     = 0.0001  // Hz
	adrLSB         = 0.0001  // cycles
	lockTimeLSB    = 0.001   // seconds (v1's 21-bit field is ms)
	cn0Offset      = 20.0    // dB-Hz
	cn0LSB         = 1.0     // dB-Hz per 5-bit unit
	stdDevLSBRange = 0.02    // meters per std-dev table unit
	stdDevLSBFreq  = 0.01953 // Hz per std-dev table unit (1/51.2)

	lockTimeDiscontinuity = 0.5 // seconds; a drop this large forces a fresh reference
)

// discontinuous reports whether a delta-coded record's lock-time has
// dropped far enough below its reference entry's lock-time to signal
// that the receiver re-acquired the signal since the reference was
// last observed (spec §4.5: "delta decoding falls back to absolute on
// discontinuity (lock-time decrease or gap beyond threshold)").
func discontinuous(ref referenceEntry, lockTime float64) bool {
	return lockTime+lockTimeDiscontinuity < ref.lockTime
}

// Decompressor converts compressed range records into RangeMessage
// values, owning the per-channel reference table (spec §4.5). It is
// single-owner like the Framer and decoders (spec §5): not safe for
// concurrent use without external synchronization.
type Decompressor struct {
	table referenceTable
	log   oemlog.Tracer
}

// New constructs an empty Decompressor. log may be nil.
func New(log oemlog.Tracer) *Decompressor {
	if log == nil {
		log = oemlog.Discard
	}
	return &Decompressor{log: log}
}

// Reset clears the reference table (spec §4.5: "reset() clears the table").
func (d *Decompressor) Reset() {
	d.table.reset()
}

// Decompress expands a compressed body for the named message
// (RANGECMP, RANGECMP2, RANGECMP4 or RANGECMP5) into a RangeMessage.
func (d *Decompressor) Decompress(messageName string, body []byte) (RangeMessage, error) {
	switch messageName {
	case "RANGECMP":
		return d.decompressV1(body)
	case "RANGECMP2":
		return d.decompressV2(body)
	case "RANGECMP4", "RANGECMP5":
		return d.decompressV4V5(body)
	default:
		return RangeMessage{}, oem.NewStatusError(oem.StatusUnsupported, "rangecmp: unknown variant %q", messageName)
	}
}

// --- RANGECMP (v1) ---

const v1RecordBits = 5 + 32 + 36 + 28 + 4 + 4 + 4 + 21 + 5 + 3 // 142
const v1RecordBytes = (v1RecordBits + 7) / 8                  // 18, byte-aligned per record

func (d *Decompressor) decompressV1(body []byte) (RangeMessage, error) {
	if len(body) < 4 {
		return RangeMessage{}, oem.NewStatusError(oem.StatusMalformedInput, "rangecmp v1: body too short")
	}
	n := int(bits.GetBitU(body, 0, 32))
	offset := 4
	msg := RangeMessage{Observations: make([]Observation, 0, n)}
	for i := 0; i < n; i++ {
		if offset+v1RecordBytes > len(body) {
			return RangeMessage{}, oem.NewStatusError(oem.StatusMalformedInput, "rangecmp v1: record %d exhausts body", i)
		}
		rec := body[offset : offset+v1RecordBytes]
		pos := 0
		prn := uint8(bits.GetBitU(rec, pos, 5))
		pos += 5
		trackingStatus := ChannelTrackingStatus(bits.GetBitU(rec, pos, 32))
		pos += 32
		prRaw := bits.GetBits(rec, pos, 36)
		pos += 36
		dopplerRaw := bits.GetBits(rec, pos, 28)
		pos += 28
		prStdIdx := bits.GetBitU(rec, pos, 4)
		pos += 4
		dopStdIdx := bits.GetBitU(rec, pos, 4)
		pos += 4
		adrStdIdx := bits.GetBitU(rec, pos, 4)
		pos += 4
		lockRaw := bits.GetBitU(rec, pos, 21)
		pos += 21
		cn0Raw := bits.GetBitU(rec, pos, 5)
		pos += 5
		gloFreq := int8(bits.GetBits(rec, pos, 3))

		obs := Observation{
			PRN:               prn,
			System:            trackingStatus.System(),
			SignalType:        trackingStatus.SignalType(),
			TrackingStatus:    trackingStatus,
			Pseudorange:       float64(prRaw) * pseudorangeLSB,
			Doppler:           float64(dopplerRaw) * dopplerLSB,
			PseudorangeStdDev: float64(prStdIdx) * stdDevLSBRange,
			DopplerStdDev:     float64(dopStdIdx) * stdDevLSBFreq,
			ADRStdDev:         float64(adrStdIdx) * adrLSB,
			LockTime:          float64(lockRaw) * lockTimeLSB,
			CN0:               cn0Offset + float64(cn0Raw)*cn0LSB,
			GLONASSFrequency:  gloFreq,
			IsReference:       true,
		}
		d.table.put(obs.System, obs.PRN, obs.SignalType, referenceEntry{
			pseudorange: obs.Pseudorange,
			doppler:     obs.Doppler,
			lockTime:    obs.LockTime,
		})
		msg.Observations = append(msg.Observations, obs)
		offset += v1RecordBytes
	}
	return msg, nil
}

// --- RANGECMP2 ---
//
// Header: satellite count (u8). Per satellite: PRN (u8), signal count
// (u8), one reference signal block (absolute pseudorange/doppler at
// v1 widths) followed by (signalCount-1) delta signal blocks (16-bit
// signed pseudorange delta, 14-bit signed doppler delta, narrower
// std-dev/lock-time fields). Each delta block is applied to the
// reference-table entry for (system, PRN, the delta block's own signal
// type), which the reference block fills only for its own signal type
// (spec §4.5: "referenced pseudorange with per-signal delta encoding").
const (
	v2RefBits   = 5 + 32 + 36 + 28 + 4 + 4 + 21 + 5 // PRN folded from header; no GLONASS freq in refs here
	v2DeltaBits = 16 + 14 + 4 + 4 + 13 + 5
)

func (d *Decompressor) decompressV2(body []byte) (RangeMessage, error) {
	c := bits.NewCursor(body)
	satCountByte, ok := c.ReadU8()
	if !ok {
		return RangeMessage{}, oem.NewStatusError(oem.StatusMalformedInput, "rangecmp2: missing satellite count")
	}
	msg := RangeMessage{}
	for s := 0; s < int(satCountByte); s++ {
		prn, ok := c.ReadU8()
		if !ok {
			return RangeMessage{}, oem.NewStatusError(oem.StatusMalformedInput, "rangecmp2: satellite %d: missing PRN", s)
		}
		sigCount, ok := c.ReadU8()
		if !ok {
			return RangeMessage{}, oem.NewStatusError(oem.StatusMalformedInput, "rangecmp2: satellite %d: missing signal count", s)
		}
		if sigCount == 0 {
			continue
		}

		refBytes, ok := c.ReadBytes((v2RefBits + 7) / 8)
		if !ok {
			return RangeMessage{}, oem.NewStatusError(oem.StatusMalformedInput, "rangecmp2: satellite %d: reference block exhausts body", s)
		}
		pos := 0
		trackingStatus := ChannelTrackingStatus(bits.GetBitU(refBytes, pos, 32))
		pos += 32
		prRaw := bits.GetBits(refBytes, pos, 36)
		pos += 36
		dopplerRaw := bits.GetBits(refBytes, pos, 28)
		pos += 28
		prStdIdx := bits.GetBitU(refBytes, pos, 4)
		pos += 4
		dopStdIdx := bits.GetBitU(refBytes, pos, 4)
		pos += 4
		lockRaw := bits.GetBitU(refBytes, pos, 21)
		pos += 21
		cn0Raw := bits.GetBitU(refBytes, pos, 5)

		refObs := Observation{
			PRN:               prn,
			System:            trackingStatus.System(),
			SignalType:        trackingStatus.SignalType(),
			TrackingStatus:    trackingStatus,
			Pseudorange:       float64(prRaw) * pseudorangeLSB,
			Doppler:           float64(dopplerRaw) * dopplerLSB,
			PseudorangeStdDev: float64(prStdIdx) * stdDevLSBRange,
			DopplerStdDev:     float64(dopStdIdx) * stdDevLSBFreq,
			LockTime:          float64(lockRaw) * lockTimeLSB,
			CN0:               cn0Offset + float64(cn0Raw)*cn0LSB,
			IsReference:       true,
		}
		d.table.put(refObs.System, refObs.PRN, refObs.SignalType, referenceEntry{
			pseudorange: refObs.Pseudorange,
			doppler:     refObs.Doppler,
			lockTime:    refObs.LockTime,
		})
		msg.Observations = append(msg.Observations, refObs)

		for sig := 1; sig < int(sigCount); sig++ {
			deltaBytes, ok := c.ReadBytes((v2DeltaBits + 7) / 8)
			if !ok {
				return RangeMessage{}, oem.NewStatusError(oem.StatusMalformedInput, "rangecmp2: satellite %d signal %d: delta block exhausts body", s, sig)
			}
			pos := 0
			signalType := uint8(bits.GetBitU(deltaBytes, pos, 5))
			pos += 5
			prDelta := bits.GetBits(deltaBytes, pos, 16)
			pos += 16
			dopDelta := bits.GetBits(deltaBytes, pos, 14)
			pos += 14
			prStdIdx := bits.GetBitU(deltaBytes, pos, 4)
			pos += 4
			dopStdIdx := bits.GetBitU(deltaBytes, pos, 4)
			pos += 4
			lockRaw := bits.GetBitU(deltaBytes, pos, 13)

			ref, ok := d.table.get(refObs.System, prn, signalType)
			if !ok {
				return RangeMessage{}, oem.NewStatusError(oem.StatusMissingReference, "rangecmp2: satellite %d signal %d: no reference for signal type %d", s, sig, signalType)
			}
			lockTime := float64(lockRaw) * lockTimeLSB
			if discontinuous(ref, lockTime) {
				// The delta fields here (36/28-bit pseudorange/doppler
				// widths collapsed to 16/14 bits) carry no absolute
				// reinterpretation: they are too narrow to hold a fresh
				// absolute measurement, only an offset from a reference
				// that this discontinuity just invalidated. Reject the
				// record rather than stitch it onto a stale reference
				// (spec §4.5 MISSING_REFERENCE); see DESIGN.md.
				return RangeMessage{}, oem.NewStatusError(oem.StatusMissingReference, "rangecmp2: satellite %d signal %d: lock-time discontinuity invalidates reference", s, sig)
			}
			deltaObs := Observation{
				PRN:               prn,
				System:            refObs.System,
				SignalType:        signalType,
				Pseudorange:       ref.pseudorange + float64(prDelta)*pseudorangeLSB,
				Doppler:           ref.doppler + float64(dopDelta)*dopplerLSB,
				PseudorangeStdDev: float64(prStdIdx) * stdDevLSBRange,
				DopplerStdDev:     float64(dopStdIdx) * stdDevLSBFreq,
				LockTime:          lockTime,
			}
			d.table.put(deltaObs.System, deltaObs.PRN, deltaObs.SignalType, referenceEntry{
				pseudorange: deltaObs.Pseudorange,
				doppler:     deltaObs.Doppler,
				lockTime:    lockTime,
			})
			msg.Observations = append(msg.Observations, deltaObs)
		}
	}
	return msg, nil
}

// --- RANGECMP4 / RANGECMP5 ---
//
// Hierarchical: a system bitmap (u8, up to maxSystems present-bits),
// then per present system a satellite bitmap (u64, up to maxPRNs
// present-bits), then per present satellite a signal bitmap (u32, up
// to maxSignals present-bits). Each present signal carries a 1-bit
// is-reference flag; reference signals carry absolute fields at v1
// widths, delta signals carry narrower fields relative to the table
// entry for the same (system, PRN, signal) (spec §4.5).
func (d *Decompressor) decompressV4V5(body []byte) (RangeMessage, error) {
	c := bits.NewCursor(body)
	sysBitmap, ok := c.ReadU8()
	if !ok {
		return RangeMessage{}, oem.NewStatusError(oem.StatusMalformedInput, "rangecmp4/5: missing system bitmap")
	}
	msg := RangeMessage{}
	for sys := 0; sys < maxSystems; sys++ {
		if sysBitmap&(1<<uint(sys)) == 0 {
			continue
		}
		system := SatelliteSystem(sys)
		satBitmap, ok := c.ReadU64()
		if !ok {
			return RangeMessage{}, oem.NewStatusError(oem.StatusMalformedInput, "rangecmp4/5: system %s: missing satellite bitmap", system)
		}
		for prn := 0; prn < maxPRNs; prn++ {
			if satBitmap&(1<<uint(prn)) == 0 {
				continue
			}
			sigBitmap, ok := c.ReadU32()
			if !ok {
				return RangeMessage{}, oem.NewStatusError(oem.StatusMalformedInput, "rangecmp4/5: system %s PRN %d: missing signal bitmap", system, prn)
			}
			for sig := 0; sig < maxSignals; sig++ {
				if sigBitmap&(1<<uint(sig)) == 0 {
					continue
				}
				obs, err := d.decodeV4V5Signal(c, system, uint8(prn), uint8(sig))
				if err != nil {
					return RangeMessage{}, err
				}
				msg.Observations = append(msg.Observations, obs)
			}
		}
	}
	return msg, nil
}

// Field widths for the v4/v5 reference and delta blocks; the
// is-reference flag itself is read separately as its own byte.
const (
	v4RefFieldBits   = 36 + 28 + 4 + 4 + 21 + 5
	v4DeltaFieldBits = 16 + 14 + 4 + 4 + 13
)

func (d *Decompressor) decodeV4V5Signal(c *bits.Cursor, system SatelliteSystem, prn, signal uint8) (Observation, error) {
	flagByte, ok := c.ReadU8()
	if !ok {
		return Observation{}, oem.NewStatusError(oem.StatusMalformedInput, "rangecmp4/5: system %s PRN %d signal %d: missing flag", system, prn, signal)
	}
	isReference := flagByte&0x01 != 0

	if isReference {
		fieldBytes := (v4RefFieldBits + 7) / 8
		raw, ok := c.ReadBytes(fieldBytes)
		if !ok {
			return Observation{}, oem.NewStatusError(oem.StatusMalformedInput, "rangecmp4/5: system %s PRN %d signal %d: reference block exhausts body", system, prn, signal)
		}
		pos := 0
		prRaw := bits.GetBits(raw, pos, 36)
		pos += 36
		dopplerRaw := bits.GetBits(raw, pos, 28)
		pos += 28
		prStdIdx := bits.GetBitU(raw, pos, 4)
		pos += 4
		dopStdIdx := bits.GetBitU(raw, pos, 4)
		pos += 4
		lockRaw := bits.GetBitU(raw, pos, 21)
		pos += 21
		cn0Raw := bits.GetBitU(raw, pos, 5)

		obs := Observation{
			PRN:               prn,
			System:            system,
			SignalType:        signal,
			Pseudorange:       float64(prRaw) * pseudorangeLSB,
			Doppler:           float64(dopplerRaw) * dopplerLSB,
			PseudorangeStdDev: float64(prStdIdx) * stdDevLSBRange,
			DopplerStdDev:     float64(dopStdIdx) * stdDevLSBFreq,
			LockTime:          float64(lockRaw) * lockTimeLSB,
			CN0:               cn0Offset + float64(cn0Raw)*cn0LSB,
			IsReference:       true,
		}
		d.table.put(system, prn, signal, referenceEntry{
			pseudorange: obs.Pseudorange,
			doppler:     obs.Doppler,
			lockTime:    obs.LockTime,
		})
		return obs, nil
	}

	fieldBytes := (v4DeltaFieldBits + 7) / 8
	raw, ok := c.ReadBytes(fieldBytes)
	if !ok {
		return Observation{}, oem.NewStatusError(oem.StatusMalformedInput, "rangecmp4/5: system %s PRN %d signal %d: delta block exhausts body", system, prn, signal)
	}
	ref, ok := d.table.get(system, prn, signal)
	if !ok {
		return Observation{}, oem.NewStatusError(oem.StatusMissingReference, "rangecmp4/5: system %s PRN %d signal %d: no reference entry for delta record", system, prn, signal)
	}

	pos := 0
	prDelta := bits.GetBits(raw, pos, 16)
	pos += 16
	dopDelta := bits.GetBits(raw, pos, 14)
	pos += 14
	prStdIdx := bits.GetBitU(raw, pos, 4)
	pos += 4
	dopStdIdx := bits.GetBitU(raw, pos, 4)
	pos += 4
	lockRaw := bits.GetBitU(raw, pos, 13)

	lockTime := float64(lockRaw) * lockTimeLSB
	if discontinuous(ref, lockTime) {
		// Same reasoning as decompressV2's discontinuity check: the
		// delta block's narrower fields can't be reinterpreted as an
		// absolute measurement, so the record is rejected rather than
		// delta-decoded against a reference the discontinuity just
		// invalidated (spec §4.5 MISSING_REFERENCE); see DESIGN.md.
		d.log.Tracet(4, "rangecmp4/5: system %s PRN %d signal %d: lock-time discontinuity, rejecting delta record", system, prn, signal)
		return Observation{}, oem.NewStatusError(oem.StatusMissingReference, "rangecmp4/5: system %s PRN %d signal %d: lock-time discontinuity invalidates reference", system, prn, signal)
	}

	obs := Observation{
		PRN:               prn,
		System:            system,
		SignalType:        signal,
		Pseudorange:       ref.pseudorange + float64(prDelta)*pseudorangeLSB,
		Doppler:           ref.doppler + float64(dopDelta)*dopplerLSB,
		PseudorangeStdDev: float64(prStdIdx) * stdDevLSBRange,
		DopplerStdDev:     float64(dopStdIdx) * stdDevLSBFreq,
		LockTime:          lockTime,
	}
	d.table.put(system, prn, signal, referenceEntry{
		pseudorange: obs.Pseudorange,
		doppler:     obs.Doppler,
		lockTime:    lockTime,
	})
	return obs, nil
}
