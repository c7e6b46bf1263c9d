// Package db loads the JSON-backed message database (spec §3, §6) and
// exposes message and enum definitions by id and name. It has no
// dependency on the framer/decoder/encoder packages: they depend on
// it, never the reverse.
package db

// DataType enumerates the finite set of field data types the schema
// can describe (spec §3). It is a closed tagged sum, not an open
// class hierarchy, per Design Notes §9.
type DataType uint8

const (
	DataTypeUnknown DataType = iota
	DataTypeBool
	DataTypeChar
	DataTypeI8
	DataTypeU8
	DataTypeI16
	DataTypeU16
	DataTypeI32
	DataTypeU32
	DataTypeI64
	DataTypeU64
	DataTypeFloat
	DataTypeDouble
	DataTypeEnum
	DataTypeString
	DataTypeFixedArray
	DataTypeVarArray
	DataTypeMessage
)

// Width returns the binary width in bytes of a fixed-width scalar
// type, or 0 for types whose width depends on data (string, array,
// nested message).
func (d DataType) Width() int {
	switch d {
	case DataTypeBool, DataTypeChar, DataTypeI8, DataTypeU8:
		return 1
	case DataTypeI16, DataTypeU16:
		return 2
	case DataTypeI32, DataTypeU32, DataTypeFloat, DataTypeEnum:
		return 4
	case DataTypeI64, DataTypeU64, DataTypeDouble:
		return 8
	default:
		return 0
	}
}

func (d DataType) String() string {
	switch d {
	case DataTypeBool:
		return "BOOL"
	case DataTypeChar:
		return "CHAR"
	case DataTypeI8:
		return "INT8"
	case DataTypeU8:
		return "UINT8"
	case DataTypeI16:
		return "INT16"
	case DataTypeU16:
		return "UINT16"
	case DataTypeI32:
		return "INT32"
	case DataTypeU32:
		return "UINT32"
	case DataTypeI64:
		return "INT64"
	case DataTypeU64:
		return "UINT64"
	case DataTypeFloat:
		return "FLOAT"
	case DataTypeDouble:
		return "DOUBLE"
	case DataTypeEnum:
		return "ENUM"
	case DataTypeString:
		return "STRING"
	case DataTypeFixedArray:
		return "FIXED_ARRAY"
	case DataTypeVarArray:
		return "VAR_ARRAY"
	case DataTypeMessage:
		return "MESSAGE"
	default:
		return "UNKNOWN"
	}
}

// Conversion carries the ASCII formatting hint for a field: a printf-
// style format specifier, field width and precision, parsed from the
// schema document's "conversionString" (e.g. "%8.3lf", "%d", "%s").
type Conversion struct {
	Spec      byte // the verb: 'd','u','f','s','c', ...
	Width     int
	Precision int
}

// FieldDefinition describes one field of a MessageSchema.
type FieldDefinition struct {
	Name        string
	Type        DataType
	Conversion  Conversion
	Description string

	// ArrayLength is the maximum element count for FixedArray/VarArray
	// fields (spec §3: "Array fields carry a max-length bound").
	ArrayLength int

	// EnumName names the EnumDefinition a DataTypeEnum field resolves
	// against.
	EnumName string

	// Fields is the element schema for array fields whose elements are
	// themselves structs, and the synthetic single-entry schema for
	// arrays of scalars.
	Fields []FieldDefinition

	// MessageID is the arena id-index of the MessageDefinition a
	// DataTypeMessage field recurses into. Id-indices (not direct
	// struct ownership) are used deliberately: message definitions may
	// reference each other, including cyclically, in pathological
	// schemas (Design Notes §9), and Database.MessageByID(id) always
	// resolves through the arena rather than a pointer baked in at
	// load time.
	MessageID uint32
}

// MessageSchema is the ordered field list for one version of a message.
type MessageSchema []FieldDefinition

// MessageDefinition is one message's identity plus its versioned
// schemas.
type MessageDefinition struct {
	ID       uint32
	Name     string
	CRC      uint32
	Versions map[int]MessageSchema
}

// LatestVersion returns the schema for the highest version number
// defined, and that version number. Message headers do not currently
// carry an explicit schema version, so decoding always targets the
// latest.
func (m *MessageDefinition) LatestVersion() (int, MessageSchema) {
	best := -1
	for v := range m.Versions {
		if v > best {
			best = v
		}
	}
	if best < 0 {
		return 0, nil
	}
	return best, m.Versions[best]
}

// EnumValue is one (name, integer value) pair of an EnumDefinition.
type EnumValue struct {
	Name  string
	Value int32
}

// EnumDefinition is a named, ordered list of enumerator pairs.
type EnumDefinition struct {
	Name   string
	Values []EnumValue
}

// ByValue looks up the symbolic name for an integer enumerator, used
// when encoding to ASCII (spec §4.4: "enums are emitted as their
// symbolic name in ASCII").
func (e *EnumDefinition) ByValue(v int32) (string, bool) {
	for _, ev := range e.Values {
		if ev.Value == v {
			return ev.Name, true
		}
	}
	return "", false
}

// ByName looks up the integer value for a symbolic enumerator name,
// used when decoding ASCII enum tokens (spec §4.3).
func (e *EnumDefinition) ByName(name string) (int32, bool) {
	for _, ev := range e.Values {
		if ev.Name == name {
			return ev.Value, true
		}
	}
	return 0, false
}
