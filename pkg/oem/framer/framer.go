// Package framer implements the synchronization state machine that
// scans an arbitrary byte stream for OEM message boundaries across
// the binary, short-binary, ASCII, abbreviated-ASCII, NMEA and
// (optionally) JSON sync families, and validates frame-level
// integrity (spec §4.1).
//
// Grounded on the teacher's pkg/gnssgo/rtcm.RTCMParser — a buffer-
// plus-extract loop over a single wire family — generalized here to
// several families sharing one ring and one resync policy, and with
// an explicit state enum per Design Notes §9 instead of branching
// purely on byte offsets.
package framer

import (
	"encoding/binary"
	"strings"

	"github.com/bramburn/oem-edie/pkg/gnssgo/nmea"
	"github.com/bramburn/oem-edie/pkg/oem"
	"github.com/bramburn/oem-edie/pkg/oem/bits"
	"github.com/bramburn/oem-edie/pkg/oem/oemlog"
)

// DefaultCapacity sized for the maximum legal OEM message, per spec §5.
const DefaultCapacity = 32 * 1024

// Binary header layout (spec §4.1): 3-byte sync, header length at
// byte 3, body length as a little-endian uint16 at bytes 8-9.
const (
	binaryHeaderLenOffset = 3
	binaryBodyLenOffset   = 8
	minBinaryHeaderPeek   = 10 // bytes needed to read the body-length field
)

// Short-binary header is fixed-width: 3-byte sync, 2-byte message id,
// 1-byte body length, 2-byte week, 4-byte ms.
const (
	shortBinaryHeaderLen    = 12
	shortBinaryBodyLenOffset = 5
)

// State is the framer's single state variable (Design Notes §9). It
// is exposed for introspection/logging; callers never set it.
type State uint8

const (
	StateSearch State = iota
	StateHeader
	StateBody
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateHeader:
		return "HEADER"
	case StateBody:
		return "BODY"
	case StateComplete:
		return "COMPLETE"
	default:
		return "SEARCH"
	}
}

// Config carries the framer's behavioral flags (spec §4.1).
type Config struct {
	Capacity           int
	FrameJSON          bool
	PayloadOnly        bool
	ReportUnknownBytes bool
}

// Framer is a single-owner, single-threaded synchronization state
// machine (spec §5: never blocks, never shares state).
type Framer struct {
	cfg   Config
	ring  *ring
	state State
	log   oemlog.Tracer
}

// New constructs a Framer with the given configuration. A zero
// Capacity defaults to DefaultCapacity. A nil log disables tracing.
func New(cfg Config, log oemlog.Tracer) *Framer {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if log == nil {
		log = oemlog.Discard
	}
	return &Framer{cfg: cfg, ring: newRing(cfg.Capacity), state: StateSearch, log: log}
}

// State reports the framer's current state-machine value.
func (f *Framer) State() State { return f.state }

// Write appends bytes to the framer's ring, accepting as many as
// remaining capacity allows.
func (f *Framer) Write(p []byte) (int, oem.Status) {
	n := f.ring.Write(p)
	if n < len(p) {
		f.log.Tracet(2, "Framer.Write: buffer full, accepted %d of %d", n, len(p))
		return n, oem.StatusBufferFull
	}
	return n, oem.StatusSuccess
}

// GetFrame attempts to extract one complete frame into out. On
// StatusSuccess or StatusUnknown or StatusCRCMismatch, n is the
// number of bytes written to out and meta describes the span,
// per spec §4.1's return-status contract.
func (f *Framer) GetFrame(out []byte) (n int, status oem.Status, meta oem.MetaDataStruct) {
	for {
		data := f.ring.Bytes()
		if len(data) == 0 {
			f.state = StateSearch
			return 0, oem.StatusIncomplete, oem.MetaDataStruct{}
		}

		offset, kind, found := findSync(data, f.cfg.FrameJSON)
		if !found {
			f.state = StateSearch
			return 0, oem.StatusIncomplete, oem.MetaDataStruct{}
		}

		if offset > 0 {
			if f.cfg.ReportUnknownBytes {
				nc := copy(out, data[:offset])
				if nc < offset {
					return 0, oem.StatusBufferFull, oem.MetaDataStruct{}
				}
				f.ring.Advance(offset)
				f.log.Tracet(2, "Framer.GetFrame: skipped %d unknown bytes", offset)
				return nc, oem.StatusUnknown, oem.MetaDataStruct{
					Format: oem.HeaderFormatUnknown,
					Length: uint32(offset),
				}
			}
			f.ring.Advance(offset)
			continue
		}

		f.state = StateHeader
		switch kind {
		case syncBinary:
			return f.extractBinary(out, data, oem.HeaderFormatBinary)
		case syncShortBinary:
			return f.extractShortBinary(out, data)
		case syncASCII:
			return f.extractASCII(out, data, oem.HeaderFormatASCII)
		case syncAbbASCII:
			return f.extractASCII(out, data, oem.HeaderFormatAbbASCII)
		case syncNMEA:
			return f.extractNMEA(out, data)
		case syncJSON:
			return f.extractJSON(out, data)
		default:
			// unreachable: findSync only returns a kind it itself knows
			f.ring.Advance(1)
			continue
		}
	}
}

// Flush drains all buffered bytes as "unknown" and resets state
// (spec §4.1: `flush(out_buffer) -> n`).
func (f *Framer) Flush(out []byte) int {
	data := f.ring.Bytes()
	n := copy(out, data)
	f.ring.Reset()
	f.state = StateSearch
	return n
}

func (f *Framer) emitFrame(out []byte, frame []byte, headerLen int, format oem.HeaderFormat) (int, oem.Status, oem.MetaDataStruct) {
	body := frame
	total := len(frame)
	if f.cfg.PayloadOnly {
		body = oem.FrameSpans(frame, oem.MetaDataStruct{Format: format, HeaderLength: uint32(headerLen)}).Body()
	}
	nc := copy(out, body)
	if nc < len(body) {
		return 0, oem.StatusBufferFull, oem.MetaDataStruct{}
	}
	f.ring.Advance(total)
	f.state = StateComplete
	return nc, oem.StatusSuccess, oem.MetaDataStruct{
		Format:       format,
		Length:       uint32(total),
		HeaderLength: uint32(headerLen),
	}
}

// crcMismatch reports the bad frame's span in out (best-effort: a
// short out buffer still advances the ring and reports the status,
// just with n capped to what fit) and advances past the single byte
// after the sync so the next GetFrame call can resynchronize further
// along (spec §4.1).
func (f *Framer) crcMismatch(out []byte, kind syncKind, span []byte) (int, oem.Status, oem.MetaDataStruct) {
	nc := copy(out, span)
	f.ring.Advance(syncLen(kind) + 1)
	f.state = StateSearch
	return nc, oem.StatusCRCMismatch, oem.MetaDataStruct{Format: oem.HeaderFormatUnknown, Length: uint32(len(span))}
}

func (f *Framer) extractBinary(out []byte, data []byte, format oem.HeaderFormat) (int, oem.Status, oem.MetaDataStruct) {
	if len(data) < minBinaryHeaderPeek {
		f.state = StateHeader
		return 0, oem.StatusIncomplete, oem.MetaDataStruct{}
	}
	headerLen := int(data[binaryHeaderLenOffset])
	if headerLen < minBinaryHeaderPeek {
		return f.crcMismatch(out, syncBinary, data)
	}
	if len(data) < headerLen {
		return 0, oem.StatusIncomplete, oem.MetaDataStruct{}
	}
	bodyLen := int(binary.LittleEndian.Uint16(data[binaryBodyLenOffset:]))
	total := headerLen + bodyLen + 4
	if len(data) < total {
		f.state = StateBody
		return 0, oem.StatusIncomplete, oem.MetaDataStruct{}
	}
	frame := data[:total]
	if bits.CRC32(frame[:total-4]) != binary.LittleEndian.Uint32(frame[total-4:]) {
		return f.crcMismatch(out, syncBinary, frame)
	}
	return f.emitFrame(out, frame, headerLen, format)
}

func (f *Framer) extractShortBinary(out []byte, data []byte) (int, oem.Status, oem.MetaDataStruct) {
	if len(data) < shortBinaryHeaderLen {
		f.state = StateHeader
		return 0, oem.StatusIncomplete, oem.MetaDataStruct{}
	}
	bodyLen := int(data[shortBinaryBodyLenOffset])
	total := shortBinaryHeaderLen + bodyLen + 4
	if len(data) < total {
		f.state = StateBody
		return 0, oem.StatusIncomplete, oem.MetaDataStruct{}
	}
	frame := data[:total]
	if bits.CRC32(frame[:total-4]) != binary.LittleEndian.Uint32(frame[total-4:]) {
		return f.crcMismatch(out, syncShortBinary, frame)
	}
	return f.emitFrame(out, frame, shortBinaryHeaderLen, oem.HeaderFormatShortBinary)
}

// extractASCII scans for the terminal "*XXXXXXXX\r\n" (8 hex CRC
// digits, spec §4.1/§6) following the leading '#' or '%'. Candidate
// '*' occurrences that aren't followed by a well-formed terminator
// are skipped so embedded '*' characters inside string fields don't
// falsely end the scan.
func (f *Framer) extractASCII(out []byte, data []byte, format oem.HeaderFormat) (int, oem.Status, oem.MetaDataStruct) {
	searchFrom := 1
	for {
		star := indexByteFrom(data, '*', searchFrom)
		if star < 0 {
			f.state = StateBody
			return 0, oem.StatusIncomplete, oem.MetaDataStruct{}
		}
		need := star + 1 + 8 + 2
		if len(data) < need {
			f.state = StateBody
			return 0, oem.StatusIncomplete, oem.MetaDataStruct{}
		}
		if data[need-2] != '\r' || data[need-1] != '\n' || !isHex8(data[star+1:star+9]) {
			searchFrom = star + 1
			continue
		}
		frame := data[:need]
		wireCRC, ok := parseHex32(data[star+1 : star+9])
		if !ok {
			searchFrom = star + 1
			continue
		}
		if bits.CRC32(frame[1:star]) != wireCRC {
			return f.crcMismatch(out, syncASCII, frame)
		}
		headerLen := headerLenASCII(frame)
		return f.emitFrame(out, frame, headerLen, format)
	}
}

// extractNMEA scans for the terminal "*XX\r\n" (2 hex checksum
// digits, spec §4.1/§6) following the leading '$'.
func (f *Framer) extractNMEA(out []byte, data []byte) (int, oem.Status, oem.MetaDataStruct) {
	searchFrom := 1
	for {
		star := indexByteFrom(data, '*', searchFrom)
		if star < 0 {
			f.state = StateBody
			return 0, oem.StatusIncomplete, oem.MetaDataStruct{}
		}
		need := star + 1 + 2 + 2
		if len(data) < need {
			f.state = StateBody
			return 0, oem.StatusIncomplete, oem.MetaDataStruct{}
		}
		if data[need-2] != '\r' || data[need-1] != '\n' || !isHex2(data[star+1:star+3]) {
			searchFrom = star + 1
			continue
		}
		frame := data[:need]
		wireChecksum, ok := parseHex8(data[star+1 : star+3])
		if !ok {
			searchFrom = star + 1
			continue
		}
		if bits.NMEAChecksum(frame[1:star]) != wireChecksum {
			return f.crcMismatch(out, syncNMEA, frame)
		}
		return f.emitNMEAFrame(out, frame)
	}
}

// emitNMEAFrame hands the already checksum-validated sentence (spec
// §4.1/§6's own XOR checksum, via bits.NMEAChecksum above) to
// pkg/gnssgo/nmea's sentence parser so MetaDataStruct.MessageName is
// populated with the decoded sentence type (e.g. "GPGGA") instead of
// being left blank, the same way the Header Decoder resolves
// MessageName against the schema database for OEM formats. A sentence
// the nmea package can't parse (too few fields, unrecognized type
// length) still frames successfully with an empty MessageName, since
// the frame's own checksum already proved its wire integrity.
func (f *Framer) emitNMEAFrame(out []byte, frame []byte) (int, oem.Status, oem.MetaDataStruct) {
	sentence := strings.TrimRight(string(frame), "\r\n")
	name := ""
	if parsed, err := nmea.ParseNMEA(sentence); err == nil && parsed.Valid {
		name = parsed.Type
	} else {
		f.log.Tracet(3, "Framer.GetFrame: NMEA sentence type unresolved: %v", err)
	}
	n, status, meta := f.emitFrame(out, frame, 0, oem.HeaderFormatNMEA)
	meta.MessageName = name
	return n, status, meta
}

// extractJSON scans for the matching closing brace, tracking nesting
// depth and skipping over quoted-string content so braces inside
// string values don't affect the count. JSON frames carry no CRC
// (spec §4.1).
func (f *Framer) extractJSON(out []byte, data []byte) (int, oem.Status, oem.MetaDataStruct) {
	depth := 0
	inString := false
	escaped := false
	for i, b := range data {
		if inString {
			switch {
			case escaped:
				escaped = false
			case b == '\\':
				escaped = true
			case b == '"':
				inString = false
			}
			continue
		}
		switch b {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				frame := data[:i+1]
				return f.emitFrame(out, frame, 0, oem.HeaderFormatJSON)
			}
		}
	}
	f.state = StateBody
	return 0, oem.StatusIncomplete, oem.MetaDataStruct{}
}

// headerLenASCII returns the byte offset of the first ';' separating
// header fields from body fields (spec §4.2: "for ASCII/abbreviated,
// fields are comma-separated until the first ';'"), or the whole
// frame length if none is present.
func headerLenASCII(frame []byte) int {
	for i, b := range frame {
		if b == ';' {
			return i + 1
		}
	}
	return len(frame)
}

func indexByteFrom(data []byte, c byte, from int) int {
	for i := from; i < len(data); i++ {
		if data[i] == c {
			return i
		}
	}
	return -1
}

func isHex8(b []byte) bool {
	if len(b) != 8 {
		return false
	}
	for _, c := range b {
		if !isHexDigit(c) {
			return false
		}
	}
	return true
}

func isHex2(b []byte) bool {
	if len(b) != 2 {
		return false
	}
	return isHexDigit(b[0]) && isHexDigit(b[1])
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func parseHex32(b []byte) (uint32, bool) {
	var v uint32
	for _, c := range b {
		d, ok := hexVal(c)
		if !ok {
			return 0, false
		}
		v = v<<4 | uint32(d)
	}
	return v, true
}

func parseHex8(b []byte) (byte, bool) {
	var v byte
	for _, c := range b {
		d, ok := hexVal(c)
		if !ok {
			return 0, false
		}
		v = v<<4 | d
	}
	return v, true
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}
