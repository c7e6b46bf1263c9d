// Package oem implements a decoder/encoder toolkit for the NovAtel OEM
// family of binary, ASCII and abbreviated-ASCII GNSS receiver messages.
//
// The core is single-threaded and cooperative: every stateful type
// (Framer, decoders, encoders, RangeDecompressor) is single-owner and
// returns synchronously, using a Status value instead of blocking or
// panicking when more input is required. See pkg/oem/framer,
// pkg/oem/header, pkg/oem/decoder, pkg/oem/encoder, pkg/oem/rangecmp,
// pkg/oem/rxconfig, pkg/oem/filter and pkg/oem/parser for the
// subsystems, and pkg/oem/db for the schema that drives them.
package oem

import "fmt"

// Status is the result code returned by the core decode/encode
// operations. It is returned by value, never as a panic or a bare Go
// error, so a caller driving a byte stream can distinguish "try again
// with more input" from a hard failure without type assertions.
type Status uint8

const (
	StatusSuccess Status = iota
	StatusIncomplete
	StatusIncompleteMoreData
	StatusBufferFull
	StatusUnknown
	StatusCRCMismatch
	StatusMalformedInput
	StatusMissingDefinition
	StatusUnsupported
	StatusStreamEmpty
	StatusMissingReference
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusIncomplete:
		return "INCOMPLETE"
	case StatusIncompleteMoreData:
		return "INCOMPLETE_MORE_DATA"
	case StatusBufferFull:
		return "BUFFER_FULL"
	case StatusUnknown:
		return "UNKNOWN"
	case StatusCRCMismatch:
		return "CRC_MISMATCH"
	case StatusMalformedInput:
		return "MALFORMED_INPUT"
	case StatusMissingDefinition:
		return "MISSING_DEFINITION"
	case StatusUnsupported:
		return "UNSUPPORTED"
	case StatusStreamEmpty:
		return "STREAM_EMPTY"
	case StatusMissingReference:
		return "MISSING_REFERENCE"
	default:
		return "UNKNOWN_STATUS"
	}
}

// statusError wraps a Status as an error so decode/encode paths that
// are not synchronization state machines (header decode, message
// decode, encode, range decompress, filter) can return (result, error)
// and callers can errors.Is against the sentinels below, the same way
// the teacher's rtcm package exposes ErrInvalidPreamble/ErrIncompleteMessage.
type statusError struct {
	status Status
	detail string
}

func (e *statusError) Error() string {
	if e.detail == "" {
		return e.status.String()
	}
	return fmt.Sprintf("%s: %s", e.status, e.detail)
}

// StatusOf reports the Status a wrapped error carries, or StatusSuccess
// if err is nil and StatusMalformedInput for an error of unknown origin.
func StatusOf(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	var se *statusError
	if ok := asStatusError(err, &se); ok {
		return se.status
	}
	return StatusMalformedInput
}

func asStatusError(err error, target **statusError) bool {
	for err != nil {
		if se, ok := err.(*statusError); ok {
			*target = se
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// NewStatusError builds an error carrying the given Status and detail,
// suitable for wrapping with fmt.Errorf("...: %w", err).
func NewStatusError(status Status, format string, args ...interface{}) error {
	return &statusError{status: status, detail: fmt.Sprintf(format, args...)}
}

// Sentinel errors for errors.Is comparisons, one per failure-mode
// Status named in spec §7.
var (
	ErrMalformedInput    = &statusError{status: StatusMalformedInput}
	ErrMissingDefinition = &statusError{status: StatusMissingDefinition}
	ErrUnsupported       = &statusError{status: StatusUnsupported}
	ErrMissingReference  = &statusError{status: StatusMissingReference}
	ErrCRCMismatch       = &statusError{status: StatusCRCMismatch}
)

// Is implements errors.Is matching purely on Status, so a detailed
// *statusError built by NewStatusError still compares equal to the
// bare sentinel of the same Status.
func (e *statusError) Is(target error) bool {
	other, ok := target.(*statusError)
	if !ok {
		return false
	}
	return e.status == other.status
}

// HeaderFormat identifies the wire encoding a frame or header was read
// from, or ALL/UNKNOWN as wildcard/absent values.
type HeaderFormat uint8

const (
	HeaderFormatUnknown HeaderFormat = iota
	HeaderFormatBinary
	HeaderFormatShortBinary
	HeaderFormatASCII
	HeaderFormatAbbASCII
	HeaderFormatNMEA
	HeaderFormatJSON
	HeaderFormatAll
)

func (f HeaderFormat) String() string {
	switch f {
	case HeaderFormatBinary:
		return "BINARY"
	case HeaderFormatShortBinary:
		return "SHORT_BINARY"
	case HeaderFormatASCII:
		return "ASCII"
	case HeaderFormatAbbASCII:
		return "ABB_ASCII"
	case HeaderFormatNMEA:
		return "NMEA"
	case HeaderFormatJSON:
		return "JSON"
	case HeaderFormatAll:
		return "ALL"
	default:
		return "UNKNOWN"
	}
}

// TimeStatus describes the confidence of the receiver's clock at the
// time a message was logged.
type TimeStatus uint8

const (
	TimeStatusUnknown TimeStatus = iota
	TimeStatusApproximate
	TimeStatusCoarse
	TimeStatusFine
	TimeStatusFineSteering
)

func (t TimeStatus) String() string {
	switch t {
	case TimeStatusApproximate:
		return "APPROXIMATE"
	case TimeStatusCoarse:
		return "COARSE"
	case TimeStatusFine:
		return "FINE"
	case TimeStatusFineSteering:
		return "FINESTEERING"
	default:
		return "UNKNOWN"
	}
}

// MeasurementSource distinguishes the primary and secondary antenna
// paths of a dual-antenna receiver.
type MeasurementSource uint8

const (
	MeasurementSourcePrimary MeasurementSource = iota
	MeasurementSourceSecondary
)

func (m MeasurementSource) String() string {
	if m == MeasurementSourceSecondary {
		return "SECONDARY"
	}
	return "PRIMARY"
}

// MetaDataStruct is produced by the Framer and enriched by the Header
// Decoder. It carries everything needed to route, filter and re-encode
// a frame without re-parsing its body.
type MetaDataStruct struct {
	Length            uint32            // total frame byte length
	HeaderLength       uint32            // header byte length; invariant HeaderLength <= Length
	Week              int               // GNSS week
	Milliseconds      int               // GNSS milliseconds of week
	TimeStatus        TimeStatus
	MessageID         uint16
	MessageName       string // populated once MessageID is resolved against the database
	MessageCRC        uint32
	Format            HeaderFormat
	MeasurementSource MeasurementSource
	Response          bool
}

// MessageDataStruct is the framed byte span plus the offsets into it
// that locate the header and body. Invariants (spec §3):
// HeaderOffset+HeaderLength == BodyOffset, BodyOffset+BodyLength <= len(Frame).
type MessageDataStruct struct {
	Frame        []byte
	HeaderOffset uint32
	HeaderLength uint32
	BodyOffset   uint32
	BodyLength   uint32
}

// Header returns the header span of the frame.
func (m MessageDataStruct) Header() []byte {
	return m.Frame[m.HeaderOffset : m.HeaderOffset+m.HeaderLength]
}

// Body returns the body span of the frame.
func (m MessageDataStruct) Body() []byte {
	return m.Frame[m.BodyOffset : m.BodyOffset+m.BodyLength]
}

// Valid reports whether the offsets satisfy the §3 invariants.
func (m MessageDataStruct) Valid() bool {
	if m.HeaderOffset+m.HeaderLength != m.BodyOffset {
		return false
	}
	return m.BodyOffset+m.BodyLength <= uint32(len(m.Frame))
}

// trailerLength returns the byte length of a frame's integrity suffix
// for the given format: a 4-byte CRC for binary/short-binary, the
// "*XXXXXXXX\r\n" ASCII CRC suffix, the "*XX\r\n" NMEA checksum
// suffix, or 0 for JSON (spec §4.1, §6: "no CRC").
func trailerLength(format HeaderFormat) uint32 {
	switch format {
	case HeaderFormatBinary, HeaderFormatShortBinary:
		return 4
	case HeaderFormatASCII, HeaderFormatAbbASCII:
		return 11
	case HeaderFormatNMEA:
		return 5
	default:
		return 0
	}
}

// FrameSpans derives the MessageDataStruct offsets for a complete
// frame, given the MetaDataStruct a Framer.GetFrame call produced for
// it. Callers that only have the (frame, meta) pair — the Parser's
// decode path, the RxConfig Handler unwrapping an inner frame — use
// this instead of re-deriving header/body boundaries themselves.
func FrameSpans(frame []byte, meta MetaDataStruct) MessageDataStruct {
	headerLen := meta.HeaderLength
	trailer := trailerLength(meta.Format)
	bodyLen := uint32(len(frame)) - headerLen - trailer
	return MessageDataStruct{
		Frame:        frame,
		HeaderOffset: 0,
		HeaderLength: headerLen,
		BodyOffset:   headerLen,
		BodyLength:   bodyLen,
	}
}
