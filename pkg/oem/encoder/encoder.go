// Package encoder implements the inverse of pkg/oem/decoder: it takes
// a decoded header record and field tree and produces binary, ASCII,
// abbreviated-ASCII or JSON wire bytes (spec §4.4).
package encoder

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/bramburn/oem-edie/pkg/oem"
	"github.com/bramburn/oem-edie/pkg/oem/bits"
	"github.com/bramburn/oem-edie/pkg/oem/db"
	"github.com/bramburn/oem-edie/pkg/oem/decoder"
	"github.com/bramburn/oem-edie/pkg/oem/header"
	"github.com/bramburn/oem-edie/pkg/oem/oemlog"
)

// Encoder re-serializes a decoded message. Guarantees (spec §4.4):
// encode(decode(x)) == x bit-exact for binary and byte-exact modulo
// whitespace/numeric formatting for ASCII.
type Encoder struct {
	database *db.Database
	log      oemlog.Tracer
}

func New(database *db.Database, log oemlog.Tracer) *Encoder {
	if log == nil {
		log = oemlog.Discard
	}
	return &Encoder{database: database, log: log}
}

// Encode serializes rec+fields (against schema, for the message named
// name) into the requested format.
func (e *Encoder) Encode(rec header.Record, name string, fields []decoder.FieldContainer, schema db.MessageSchema, format oem.HeaderFormat) ([]byte, error) {
	switch format {
	case oem.HeaderFormatBinary:
		return e.encodeBinary(rec, fields)
	case oem.HeaderFormatShortBinary:
		return e.encodeShortBinary(rec, fields)
	case oem.HeaderFormatASCII:
		return e.encodeASCII(rec, name, fields, true)
	case oem.HeaderFormatAbbASCII:
		return e.encodeASCII(rec, name, fields, false)
	case oem.HeaderFormatJSON:
		return e.encodeJSON(rec, name, fields)
	default:
		return nil, oem.NewStatusError(oem.StatusUnsupported, "encoder format %s", format)
	}
}

// --- binary ---

func (e *Encoder) encodeBinary(rec header.Record, fields []decoder.FieldContainer) ([]byte, error) {
	body, err := e.encodeBinaryFields(fields)
	if err != nil {
		return nil, err
	}

	h := make([]byte, header.BinaryHeaderMinLen)
	binary.LittleEndian.PutUint16(h[header.OffMessageID:], rec.MessageID)
	typeByte := byte(0)
	if rec.Response {
		typeByte |= header.MessageTypeResponseBit
	}
	typeByte |= byte(rec.MeasurementSource&header.MeasurementSourceBitMask) << header.MeasurementSourceBitShift
	h[header.OffMessageType] = typeByte
	h[header.OffPort] = rec.Port
	binary.LittleEndian.PutUint16(h[8:10], uint16(len(body)))
	binary.LittleEndian.PutUint16(h[header.OffSequence:], rec.Sequence)
	h[header.OffIdleTime] = rec.IdleTime
	h[header.OffTimeStatus] = byte(rec.TimeStatus)
	binary.LittleEndian.PutUint16(h[header.OffWeek:], uint16(rec.Week))
	binary.LittleEndian.PutUint32(h[header.OffMillis:], uint32(rec.Milliseconds))
	binary.LittleEndian.PutUint32(h[header.OffReceiverStatus:], rec.ReceiverStatus)
	binary.LittleEndian.PutUint16(h[header.OffReserved:], rec.Reserved)
	binary.LittleEndian.PutUint16(h[header.OffSWVersion:], rec.SWVersion)
	h[0], h[1], h[2] = 0xAA, 0x44, 0x12
	h[3] = header.BinaryHeaderMinLen

	frame := append(h, body...)
	crc := bits.CRC32(frame)
	crcBytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(crcBytes, crc)
	return append(frame, crcBytes...), nil
}

func (e *Encoder) encodeShortBinary(rec header.Record, fields []decoder.FieldContainer) ([]byte, error) {
	body, err := e.encodeBinaryFields(fields)
	if err != nil {
		return nil, err
	}
	h := make([]byte, header.ShortHeaderLen)
	h[0], h[1], h[2] = 0xAA, 0x44, 0x13
	binary.LittleEndian.PutUint16(h[header.OffShortMessageID:], rec.MessageID)
	h[5] = byte(len(body))
	binary.LittleEndian.PutUint16(h[header.OffShortWeek:], uint16(rec.Week))
	binary.LittleEndian.PutUint32(h[header.OffShortMillis:], uint32(rec.Milliseconds))

	frame := append(h, body...)
	crc := bits.CRC32(frame)
	crcBytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(crcBytes, crc)
	return append(frame, crcBytes...), nil
}

type binWriter struct {
	buf []byte
}

func (w *binWriter) align(width int) {
	if width <= 1 {
		return
	}
	for len(w.buf)%width != 0 {
		w.buf = append(w.buf, 0)
	}
}

func (w *binWriter) u8(v uint8)   { w.buf = append(w.buf, v) }
func (w *binWriter) i8(v int8)    { w.u8(uint8(v)) }
func (w *binWriter) u16(v uint16) { w.buf = append(w.buf, byte(v), byte(v>>8)) }
func (w *binWriter) i16(v int16)  { w.u16(uint16(v)) }
func (w *binWriter) u32(v uint32) {
	w.buf = append(w.buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}
func (w *binWriter) i32(v int32) { w.u32(uint32(v)) }
func (w *binWriter) u64(v uint64) {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * uint(i)))
	}
	w.buf = append(w.buf, b...)
}
func (w *binWriter) i64(v int64)   { w.u64(uint64(v)) }
func (w *binWriter) f32(v float32) { w.u32(math.Float32bits(v)) }
func (w *binWriter) f64(v float64) { w.u64(math.Float64bits(v)) }

func (w *binWriter) nulString(s string, max int) {
	field := make([]byte, max)
	copy(field, s)
	w.buf = append(w.buf, field...)
}

func (e *Encoder) encodeBinaryFields(fields []decoder.FieldContainer) ([]byte, error) {
	w := &binWriter{}
	if err := e.writeBinaryFields(w, fields); err != nil {
		return nil, err
	}
	return w.buf, nil
}

func (e *Encoder) writeBinaryFields(w *binWriter, fields []decoder.FieldContainer) error {
	for _, fc := range fields {
		if err := e.writeBinaryField(w, fc); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) writeBinaryField(w *binWriter, fc decoder.FieldContainer) error {
	fd := fc.Def
	if fd == nil {
		return oem.NewStatusError(oem.StatusMalformedInput, "field tree missing definition")
	}
	if width := fd.Type.Width(); width > 0 {
		w.align(width)
	}
	switch fd.Type {
	case db.DataTypeBool:
		if fc.Bool {
			w.u8(1)
		} else {
			w.u8(0)
		}
	case db.DataTypeChar, db.DataTypeI8:
		w.i8(int8(fc.Int))
	case db.DataTypeU8:
		w.u8(uint8(fc.Uint))
	case db.DataTypeI16:
		w.i16(int16(fc.Int))
	case db.DataTypeU16:
		w.u16(uint16(fc.Uint))
	case db.DataTypeI32, db.DataTypeEnum:
		w.i32(int32(fc.Int))
	case db.DataTypeU32:
		w.u32(uint32(fc.Uint))
	case db.DataTypeI64:
		w.i64(fc.Int)
	case db.DataTypeU64:
		w.u64(fc.Uint)
	case db.DataTypeFloat:
		w.f32(float32(fc.Float))
	case db.DataTypeDouble:
		w.f64(fc.Float)
	case db.DataTypeString:
		w.nulString(fc.Str, fd.ArrayLength)
	case db.DataTypeFixedArray:
		if err := e.writeBinaryArray(w, fc.Elements); err != nil {
			return err
		}
	case db.DataTypeVarArray:
		w.u32(uint32(len(fc.Elements)))
		if err := e.writeBinaryArray(w, fc.Elements); err != nil {
			return err
		}
	case db.DataTypeMessage:
		if err := e.writeBinaryFields(w, fc.Elements); err != nil {
			return err
		}
	default:
		return oem.NewStatusError(oem.StatusMalformedInput, "field %q: unknown type %s", fd.Name, fd.Type)
	}
	return nil
}

func (e *Encoder) writeBinaryArray(w *binWriter, elems []decoder.FieldContainer) error {
	for _, elem := range elems {
		if len(elem.Elements) > 0 && elem.Def != nil && elem.Def.Type != db.DataTypeMessage {
			// struct-shaped array element: elem itself carries no
			// scalar value, its Elements are the per-repeat fields.
			if err := e.writeBinaryFields(w, elem.Elements); err != nil {
				return err
			}
			continue
		}
		if err := e.writeBinaryField(w, elem); err != nil {
			return err
		}
	}
	return nil
}

// --- ASCII ---

func (e *Encoder) encodeASCII(rec header.Record, name string, fields []decoder.FieldContainer, full bool) ([]byte, error) {
	bodyTokens, err := e.asciiFieldTokens(fields)
	if err != nil {
		return nil, err
	}

	sync := byte('%')
	logName := name
	if full {
		sync = '#'
		logName = name + "A"
	}

	headerFields := []string{
		strconv.Itoa(int(rec.Port)),
		strconv.Itoa(int(rec.Sequence)),
		strconv.FormatFloat(float64(rec.IdleTime), 'f', 1, 64),
		rec.TimeStatus.String(),
		strconv.Itoa(rec.Week),
		strconv.FormatFloat(float64(rec.Milliseconds)/1000.0, 'f', 3, 64),
		fmt.Sprintf("%08x", rec.ReceiverStatus),
		fmt.Sprintf("%04x", rec.Reserved),
		strconv.Itoa(int(rec.SWVersion)),
	}

	var sb strings.Builder
	sb.WriteByte(sync)
	sb.WriteString(logName)
	sb.WriteByte(',')
	sb.WriteString(strings.Join(headerFields, ","))
	sb.WriteByte(';')
	sb.WriteString(strings.Join(bodyTokens, ","))

	crcInput := sb.String()[1:] // between leading sync (exclusive) and '*' (exclusive)
	crcHex := bits.CRC32Hex([]byte(crcInput))
	sb.WriteByte('*')
	sb.WriteString(crcHex)
	sb.WriteString("\r\n")
	return []byte(sb.String()), nil
}

func (e *Encoder) asciiFieldTokens(fields []decoder.FieldContainer) ([]string, error) {
	tokens := make([]string, 0, len(fields))
	for _, fc := range fields {
		t, err := e.asciiFieldToken(fc)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, t...)
	}
	return tokens, nil
}

func (e *Encoder) asciiFieldToken(fc decoder.FieldContainer) ([]string, error) {
	fd := fc.Def
	if fd == nil {
		return nil, oem.NewStatusError(oem.StatusMalformedInput, "field tree missing definition")
	}
	switch fd.Type {
	case db.DataTypeFixedArray, db.DataTypeVarArray:
		var out []string
		if fd.Type == db.DataTypeVarArray {
			out = append(out, strconv.Itoa(len(fc.Elements)))
		}
		for _, elem := range fc.Elements {
			if len(elem.Elements) > 0 && elem.Def != nil && elem.Def.Type != db.DataTypeMessage {
				toks, err := e.asciiFieldTokens(elem.Elements)
				if err != nil {
					return nil, err
				}
				out = append(out, toks...)
				continue
			}
			toks, err := e.asciiFieldToken(elem)
			if err != nil {
				return nil, err
			}
			out = append(out, toks...)
		}
		return out, nil
	case db.DataTypeMessage:
		return e.asciiFieldTokens(fc.Elements)
	}
	return []string{e.asciiScalarToken(fd, fc)}, nil
}

func (e *Encoder) asciiScalarToken(fd *db.FieldDefinition, fc decoder.FieldContainer) string {
	switch fd.Type {
	case db.DataTypeBool:
		if fc.Bool {
			return "TRUE"
		}
		return "FALSE"
	case db.DataTypeString:
		return `"` + strings.ReplaceAll(fc.Str, `"`, `\"`) + `"`
	case db.DataTypeEnum:
		if e.database != nil && fd.EnumName != "" {
			if enumDef, ok := e.database.Enum(fd.EnumName); ok {
				if name, ok := enumDef.ByValue(int32(fc.Int)); ok {
					return name
				}
			}
		}
		return strconv.FormatInt(fc.Int, 10)
	case db.DataTypeFloat, db.DataTypeDouble:
		precision := fd.Conversion.Precision
		if precision == 0 {
			precision = 6
		}
		return strconv.FormatFloat(fc.Float, 'f', precision, 64)
	case db.DataTypeI8, db.DataTypeI16, db.DataTypeI32, db.DataTypeI64, db.DataTypeChar:
		return strconv.FormatInt(fc.Int, 10)
	default:
		return strconv.FormatUint(fc.Uint, 10)
	}
}

// --- JSON ---

func (e *Encoder) encodeJSON(rec header.Record, name string, fields []decoder.FieldContainer) ([]byte, error) {
	headerMap := map[string]interface{}{
		"message":           name,
		"port":              rec.Port,
		"sequence":          rec.Sequence,
		"idle_time":         rec.IdleTime,
		"time_status":       rec.TimeStatus.String(),
		"week":              rec.Week,
		"milliseconds":      rec.Milliseconds,
		"receiver_status":   rec.ReceiverStatus,
		"reserved":          rec.Reserved,
		"sw_version":        rec.SWVersion,
		"measurement_source": rec.MeasurementSource.String(),
		"response":          rec.Response,
	}
	body, err := e.jsonFields(fields)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]interface{}{"header": headerMap, "body": body})
}

func (e *Encoder) jsonFields(fields []decoder.FieldContainer) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(fields))
	for _, fc := range fields {
		if fc.Def == nil {
			continue
		}
		v, err := e.jsonValue(fc)
		if err != nil {
			return nil, err
		}
		out[fc.Def.Name] = v
	}
	return out, nil
}

func (e *Encoder) jsonValue(fc decoder.FieldContainer) (interface{}, error) {
	fd := fc.Def
	switch fd.Type {
	case db.DataTypeBool:
		return fc.Bool, nil
	case db.DataTypeString:
		return fc.Str, nil
	case db.DataTypeFloat, db.DataTypeDouble:
		return fc.Float, nil
	case db.DataTypeEnum:
		if e.database != nil && fd.EnumName != "" {
			if enumDef, ok := e.database.Enum(fd.EnumName); ok {
				if name, ok := enumDef.ByValue(int32(fc.Int)); ok {
					return name, nil
				}
			}
		}
		return fc.Int, nil
	case db.DataTypeI8, db.DataTypeI16, db.DataTypeI32, db.DataTypeI64, db.DataTypeChar:
		return fc.Int, nil
	case db.DataTypeFixedArray, db.DataTypeVarArray:
		arr := make([]interface{}, 0, len(fc.Elements))
		for _, elem := range fc.Elements {
			if len(elem.Elements) > 0 && elem.Def != nil && elem.Def.Type != db.DataTypeMessage {
				m, err := e.jsonFields(elem.Elements)
				if err != nil {
					return nil, err
				}
				arr = append(arr, m)
				continue
			}
			v, err := e.jsonValue(elem)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return arr, nil
	case db.DataTypeMessage:
		return e.jsonFields(fc.Elements)
	default:
		return fc.Uint, nil
	}
}
