package db

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/bramburn/oem-edie/pkg/oem/bits"
)

// jsonDocument is the top-level shape of the message database document
// (spec §6): an array of message definitions and an array of enum
// definitions. Unknown top-level and per-field keys are ignored, per
// the same section ("Unknown fields are ignored").
type jsonDocument struct {
	Messages []jsonMessage `json:"messages"`
	Enums    []jsonEnum    `json:"enums"`
}

type jsonMessage struct {
	Name             string                       `json:"name"`
	MessageID        uint32                       `json:"messageId"`
	LatestMessageCrc uint32                        `json:"latestMessageCrc"`
	Fields           map[string][]jsonFieldDefinition `json:"fields"`
}

type jsonFieldDefinition struct {
	Name             string                `json:"name"`
	Type             string                `json:"type"`
	ArrayLength      int                   `json:"arrayLength"`
	ConversionString string                `json:"conversionString"`
	Description      string                `json:"description"`
	EnumID           string                `json:"enumId"`
	MessageID        uint32                `json:"messageId"`
	Fields           []jsonFieldDefinition `json:"fields"`
}

type jsonEnum struct {
	Name   string          `json:"name"`
	Values []jsonEnumValue `json:"values"`
}

type jsonEnumValue struct {
	Name  string `json:"name"`
	Value int32  `json:"value"`
}

var typeNames = map[string]DataType{
	"BOOL":                DataTypeBool,
	"CHAR":                DataTypeChar,
	"INT8":                DataTypeI8,
	"UCHAR":               DataTypeU8,
	"UINT8":               DataTypeU8,
	"INT16":               DataTypeI16,
	"SHORT":               DataTypeI16,
	"UINT16":              DataTypeU16,
	"USHORT":              DataTypeU16,
	"INT32":               DataTypeI32,
	"INT":                 DataTypeI32,
	"UINT32":              DataTypeU32,
	"UINT":                DataTypeU32,
	"ULONG":               DataTypeU32,
	"INT64":               DataTypeI64,
	"LONG":                DataTypeI64,
	"UINT64":              DataTypeU64,
	"ULONGLONG":           DataTypeU64,
	"FLOAT":               DataTypeFloat,
	"DOUBLE":              DataTypeDouble,
	"ENUM":                DataTypeEnum,
	"STRING":              DataTypeString,
	"FIXED_LENGTH_ARRAY":  DataTypeFixedArray,
	"VARIABLE_LENGTH_ARRAY": DataTypeVarArray,
	"MESSAGE":             DataTypeMessage,
}

// Load parses the JSON message database document read from r into an
// immutable Database. Load failure is eager and all-or-nothing (spec
// §6: "Load failure → MALFORMED_INPUT at the database level; no
// partial loads"): any malformed definition aborts the whole load.
func Load(r io.Reader) (*Database, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("oem/db: read database document: %w", err)
	}

	var doc jsonDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("oem/db: %w: %v", errMalformedDB, err)
	}

	database := &Database{
		messagesByID:   make(map[uint32]*MessageDefinition, len(doc.Messages)),
		messagesByName: make(map[string]*MessageDefinition, len(doc.Messages)),
		enumsByName:    make(map[string]*EnumDefinition, len(doc.Enums)),
	}

	for _, je := range doc.Enums {
		enum := &EnumDefinition{Name: je.Name}
		for _, jv := range je.Values {
			enum.Values = append(enum.Values, EnumValue{Name: jv.Name, Value: jv.Value})
		}
		if err := database.addEnum(enum); err != nil {
			return nil, fmt.Errorf("oem/db: %w: %v", errMalformedDB, err)
		}
	}

	for _, jm := range doc.Messages {
		def := &MessageDefinition{
			ID:       jm.MessageID,
			Name:     jm.Name,
			CRC:      jm.LatestMessageCrc,
			Versions: make(map[int]MessageSchema, len(jm.Fields)),
		}
		for versionKey, jfields := range jm.Fields {
			version, err := strconv.Atoi(versionKey)
			if err != nil {
				return nil, fmt.Errorf("oem/db: message %q: %w: bad version key %q", jm.Name, errMalformedDB, versionKey)
			}
			schema, err := convertFields(jfields)
			if err != nil {
				return nil, fmt.Errorf("oem/db: message %q version %d: %w", jm.Name, version, err)
			}
			def.Versions[version] = schema
		}
		if err := database.addMessage(def); err != nil {
			return nil, fmt.Errorf("oem/db: %w: %v", errMalformedDB, err)
		}
		if version, schema := def.LatestVersion(); version >= 0 && def.CRC != 0 {
			if computed := schemaCRC(def.Name, schema); computed != def.CRC {
				database.Stale = append(database.Stale, def.Name)
			}
		}
	}

	return database, nil
}

func convertFields(jfields []jsonFieldDefinition) (MessageSchema, error) {
	schema := make(MessageSchema, 0, len(jfields))
	for _, jf := range jfields {
		fd, err := convertField(jf)
		if err != nil {
			return nil, err
		}
		schema = append(schema, fd)
	}
	return schema, nil
}

func convertField(jf jsonFieldDefinition) (FieldDefinition, error) {
	dt, ok := typeNames[strings.ToUpper(jf.Type)]
	if !ok {
		return FieldDefinition{}, fmt.Errorf("field %q: %w: unknown type %q", jf.Name, errMalformedDB, jf.Type)
	}
	fd := FieldDefinition{
		Name:        jf.Name,
		Type:        dt,
		Conversion:  parseConversion(jf.ConversionString),
		Description: jf.Description,
		ArrayLength: jf.ArrayLength,
		EnumName:    jf.EnumID,
		MessageID:   jf.MessageID,
	}
	if dt == DataTypeFixedArray || dt == DataTypeVarArray {
		if len(jf.Fields) == 0 {
			return FieldDefinition{}, fmt.Errorf("field %q: %w: array field has no element schema", jf.Name, errMalformedDB)
		}
	}
	sub, err := convertFields(jf.Fields)
	if err != nil {
		return FieldDefinition{}, err
	}
	fd.Fields = sub
	return fd, nil
}

// parseConversion extracts the printf-style verb, width and precision
// out of a conversionString like "%8.3lf" or "%d". An empty or
// unrecognized string yields the zero Conversion, which callers treat
// as "no ASCII hint, use the type's default formatting".
func parseConversion(s string) Conversion {
	if s == "" || s[0] != '%' {
		return Conversion{}
	}
	body := s[1:]
	if strings.HasSuffix(body, "lf") || strings.HasSuffix(body, "ld") {
		body = body[:len(body)-2] + body[len(body)-1:] // drop the 'l' length modifier, keep the verb
	}
	if body == "" {
		return Conversion{}
	}
	spec := body[len(body)-1]
	body = body[:len(body)-1]

	var width, precision int
	if dot := strings.IndexByte(body, '.'); dot >= 0 {
		width, _ = strconv.Atoi(body[:dot])
		precision, _ = strconv.Atoi(body[dot+1:])
	} else {
		width, _ = strconv.Atoi(body)
	}
	return Conversion{Spec: spec, Width: width, Precision: precision}
}

// schemaCRC canonicalizes a schema's field names and types into a
// deterministic byte string and CRC32s it, the same polynomial the
// wire CRC uses (pkg/oem/bits.CRC32). This is an approximation of the
// C++ generator's latestMessageCrc (computed from the full schema
// source, which this repo never has at runtime) good enough to flag
// gross drift between a shipped decoder and a newer database.
func schemaCRC(name string, schema MessageSchema) uint32 {
	var b strings.Builder
	b.WriteString(name)
	var walk func(MessageSchema)
	walk = func(s MessageSchema) {
		for _, f := range s {
			b.WriteByte(':')
			b.WriteString(f.Name)
			b.WriteByte(':')
			b.WriteString(f.Type.String())
			if len(f.Fields) > 0 {
				walk(f.Fields)
			}
		}
	}
	walk(schema)
	return bits.CRC32([]byte(b.String()))
}

type malformedDBError struct{}

func (malformedDBError) Error() string { return "MALFORMED_INPUT" }

var errMalformedDB = malformedDBError{}
