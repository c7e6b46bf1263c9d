// Package header decodes the three header wire forms (binary, short
// binary, ASCII/abbreviated-ASCII) into a common record (spec §4.2).
package header

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/bramburn/oem-edie/pkg/oem"
	"github.com/bramburn/oem-edie/pkg/oem/db"
)

// Binary header field offsets, following the framer's assumed layout
// (pkg/oem/framer: sync(3) + headerLen(1) + ... ). This is the
// 28-byte OEM4 header shape: messageId(2)@4, messageType(1)@6,
// port(1)@7, messageLength(2)@8 (consumed by the framer, not here),
// sequence(2)@10, idleTime(1)@12, timeStatus(1)@13, week(2)@14,
// ms(4)@16, receiverStatus(4)@20, reserved(2)@24, swVersion(2)@26.
// Exported so the Encoder can lay out the same binary header shape
// without duplicating (and risking drift from) these offsets.
const (
	OffMessageID       = 4
	OffMessageType     = 6
	OffPort            = 7
	OffSequence        = 10
	OffIdleTime        = 12
	OffTimeStatus      = 13
	OffWeek            = 14
	OffMillis          = 16
	OffReceiverStatus  = 20
	OffReserved        = 24
	OffSWVersion       = 26
	BinaryHeaderMinLen = 28
)

const (
	offMessageID       = OffMessageID
	offMessageType     = OffMessageType
	offPort            = OffPort
	offSequence        = OffSequence
	offIdleTime        = OffIdleTime
	offTimeStatus      = OffTimeStatus
	offWeek            = OffWeek
	offMillis          = OffMillis
	offReceiverStatus  = OffReceiverStatus
	offReserved        = OffReserved
	offSWVersion       = OffSWVersion
	binaryHeaderMinLen = BinaryHeaderMinLen
)

// Short-binary header shape: sync(3) + messageId(2)@3 + length(1)@5 +
// week(2)@6 + ms(4)@8. It carries no message type, port, sequence,
// idle time, receiver status, reserved or SW version fields.
const (
	OffShortMessageID = 3
	OffShortWeek      = 6
	OffShortMillis    = 8
	ShortHeaderLen    = 12
)

const (
	offShortMessageID = OffShortMessageID
	offShortWeek      = OffShortWeek
	offShortMillis    = OffShortMillis
	shortHeaderLen    = ShortHeaderLen
)

const (
	MessageTypeResponseBit    = 0x80
	MeasurementSourceBitShift = 5
	MeasurementSourceBitMask  = 0x03
)

const (
	messageTypeResponseBit    = MessageTypeResponseBit
	measurementSourceBitShift = MeasurementSourceBitShift
	measurementSourceBitMask  = MeasurementSourceBitMask
)

// Record is the common header shape every wire form decodes into
// (spec §4.2).
type Record struct {
	MessageID         uint16
	MessageType       byte
	Port              byte
	Sequence          uint16
	IdleTime          byte
	TimeStatus        oem.TimeStatus
	Week              int
	Milliseconds      int
	ReceiverStatus    uint32
	Reserved          uint16
	SWVersion         uint16
	MeasurementSource oem.MeasurementSource
	Response          bool
}

// Decode decodes the header span of frame according to format,
// resolving the message name against database (spec §4.2: fails with
// MISSING_DEFINITION if the id is not present). database may be nil
// when the caller only needs the raw header fields without name
// resolution; the returned name is then empty for binary formats and
// the parsed log name for ASCII formats.
func Decode(header []byte, format oem.HeaderFormat, database *db.Database) (Record, string, error) {
	switch format {
	case oem.HeaderFormatBinary:
		return decodeBinary(header, database)
	case oem.HeaderFormatShortBinary:
		return decodeShortBinary(header, database)
	case oem.HeaderFormatASCII, oem.HeaderFormatAbbASCII:
		return decodeASCII(header, format, database)
	default:
		return Record{}, "", oem.NewStatusError(oem.StatusUnsupported, "header format %s", format)
	}
}

func decodeBinary(h []byte, database *db.Database) (Record, string, error) {
	if len(h) < binaryHeaderMinLen {
		return Record{}, "", oem.NewStatusError(oem.StatusMalformedInput, "binary header too short: %d bytes", len(h))
	}
	typeByte := h[offMessageType]
	rec := Record{
		MessageID:         binary.LittleEndian.Uint16(h[offMessageID:]),
		MessageType:       typeByte,
		Port:              h[offPort],
		Sequence:          binary.LittleEndian.Uint16(h[offSequence:]),
		IdleTime:          h[offIdleTime],
		TimeStatus:        oem.TimeStatus(h[offTimeStatus]),
		Week:              int(binary.LittleEndian.Uint16(h[offWeek:])),
		Milliseconds:      int(binary.LittleEndian.Uint32(h[offMillis:])),
		ReceiverStatus:    binary.LittleEndian.Uint32(h[offReceiverStatus:]),
		Reserved:          binary.LittleEndian.Uint16(h[offReserved:]),
		SWVersion:         binary.LittleEndian.Uint16(h[offSWVersion:]),
		MeasurementSource: oem.MeasurementSource((typeByte >> measurementSourceBitShift) & measurementSourceBitMask),
		Response:          typeByte&messageTypeResponseBit != 0,
	}
	return resolveName(rec, database)
}

func decodeShortBinary(h []byte, database *db.Database) (Record, string, error) {
	if len(h) < shortHeaderLen {
		return Record{}, "", oem.NewStatusError(oem.StatusMalformedInput, "short binary header too short: %d bytes", len(h))
	}
	rec := Record{
		MessageID:    binary.LittleEndian.Uint16(h[offShortMessageID:]),
		Week:         int(binary.LittleEndian.Uint16(h[offShortWeek:])),
		Milliseconds: int(binary.LittleEndian.Uint32(h[offShortMillis:])),
	}
	return resolveName(rec, database)
}

// decodeASCII parses "#NAMEsuffix,port,sequence,idletime,timestatus,
// week,seconds,receiverstatus,reserved,swversion;..." (spec §4.2: "fields
// are comma-separated until the first ';'").
func decodeASCII(h []byte, format oem.HeaderFormat, database *db.Database) (Record, string, error) {
	s := string(h)
	semi := strings.IndexByte(s, ';')
	if semi < 0 {
		semi = len(s)
	}
	header := s[1:semi] // drop leading '#'/'%'

	fields := strings.Split(header, ",")
	if len(fields) == 0 || fields[0] == "" {
		return Record{}, "", oem.NewStatusError(oem.StatusMalformedInput, "empty ASCII header")
	}
	name := stripASCIISuffix(fields[0], format)
	fields = fields[1:]

	get := func(i int) string {
		if i < len(fields) {
			return strings.TrimSpace(fields[i])
		}
		return ""
	}

	var rec Record
	if v := get(0); v != "" {
		if p, err := strconv.ParseUint(v, 10, 8); err == nil {
			rec.Port = byte(p)
		}
	}
	if v := get(1); v != "" {
		if p, err := strconv.ParseUint(v, 10, 16); err == nil {
			rec.Sequence = uint16(p)
		}
	}
	if v := get(2); v != "" {
		if p, err := strconv.ParseFloat(v, 64); err == nil {
			rec.IdleTime = byte(p)
		}
	}
	rec.TimeStatus = timeStatusFromName(get(3))
	if v := get(4); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			rec.Week = p
		} else {
			return Record{}, "", oem.NewStatusError(oem.StatusMalformedInput, "bad week field %q", v)
		}
	}
	if v := get(5); v != "" {
		if p, err := strconv.ParseFloat(v, 64); err == nil {
			rec.Milliseconds = int(p*1000.0 + 0.5)
		} else {
			return Record{}, "", oem.NewStatusError(oem.StatusMalformedInput, "bad seconds-of-week field %q", v)
		}
	}
	if v := get(6); v != "" {
		if p, err := strconv.ParseUint(v, 16, 32); err == nil {
			rec.ReceiverStatus = uint32(p)
		}
	}
	if v := get(7); v != "" {
		if p, err := strconv.ParseUint(v, 16, 16); err == nil {
			rec.Reserved = uint16(p)
		}
	}
	if v := get(8); v != "" {
		if p, err := strconv.ParseUint(v, 10, 16); err == nil {
			rec.SWVersion = uint16(p)
		}
	}

	if database == nil {
		return rec, name, nil
	}
	def, ok := database.MessageByName(name)
	if !ok {
		return rec, "", fmt.Errorf("header: message name %q: %w", name, oem.ErrMissingDefinition)
	}
	rec.MessageID = uint16(def.ID)
	return rec, def.Name, nil
}

// stripASCIISuffix removes the trailing format-indicator letter
// NovAtel ASCII log names carry ("BESTPOSA" -> "BESTPOS"); abbreviated
// ASCII carries no such suffix.
func stripASCIISuffix(name string, format oem.HeaderFormat) string {
	if format == oem.HeaderFormatASCII && strings.HasSuffix(name, "A") {
		return strings.TrimSuffix(name, "A")
	}
	return name
}

func timeStatusFromName(s string) oem.TimeStatus {
	switch strings.ToUpper(s) {
	case "APPROXIMATE":
		return oem.TimeStatusApproximate
	case "COARSE":
		return oem.TimeStatusCoarse
	case "FINE":
		return oem.TimeStatusFine
	case "FINESTEERING":
		return oem.TimeStatusFineSteering
	default:
		return oem.TimeStatusUnknown
	}
}

// resolveName looks up rec.MessageID in database and returns the
// definition's name. Only the binary and short-binary paths call it;
// decodeASCII resolves its parsed name with MessageByName itself.
func resolveName(rec Record, database *db.Database) (Record, string, error) {
	if database == nil {
		return rec, "", nil
	}
	def, ok := database.MessageByID(uint32(rec.MessageID))
	if !ok {
		return rec, "", fmt.Errorf("header: message id %d: %w", rec.MessageID, oem.ErrMissingDefinition)
	}
	return rec, def.Name, nil
}
