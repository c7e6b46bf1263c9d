package decoder

import (
	"strconv"
	"strings"

	"github.com/bramburn/oem-edie/pkg/oem"
	"github.com/bramburn/oem-edie/pkg/oem/bits"
	"github.com/bramburn/oem-edie/pkg/oem/db"
	"github.com/bramburn/oem-edie/pkg/oem/oemlog"
)

// Decoder converts a message body into a field tree against a shared,
// read-only Database (spec §5: the database "may be shared read-only
// across multiple decoder instances").
type Decoder struct {
	database *db.Database
	log      oemlog.Tracer
}

// New constructs a Decoder over database. log may be nil.
func New(database *db.Database, log oemlog.Tracer) *Decoder {
	if log == nil {
		log = oemlog.Discard
	}
	return &Decoder{database: database, log: log}
}

// Decode decodes body per schema and format (BINARY/SHORT_BINARY use
// the binary path; ASCII/ABB_ASCII use the comma-token path).
func (d *Decoder) Decode(body []byte, format oem.HeaderFormat, schema db.MessageSchema) ([]FieldContainer, error) {
	switch format {
	case oem.HeaderFormatBinary, oem.HeaderFormatShortBinary:
		c := bits.NewCursor(body)
		return d.decodeBinaryFields(c, schema)
	case oem.HeaderFormatASCII, oem.HeaderFormatAbbASCII:
		tokens := &asciiCursor{tokens: splitASCIITokens(string(body))}
		return d.decodeASCIIFields(tokens, schema)
	default:
		return nil, oem.NewStatusError(oem.StatusUnsupported, "decoder format %s", format)
	}
}

func (d *Decoder) decodeBinaryFields(c *bits.Cursor, schema db.MessageSchema) ([]FieldContainer, error) {
	out := make([]FieldContainer, 0, len(schema))
	for i := range schema {
		fd := &schema[i]
		fc, err := d.decodeBinaryField(c, fd)
		if err != nil {
			return nil, err
		}
		out = append(out, fc)
	}
	return out, nil
}

func (d *Decoder) decodeBinaryField(c *bits.Cursor, fd *db.FieldDefinition) (FieldContainer, error) {
	fc := FieldContainer{Def: fd}
	if w := fd.Type.Width(); w > 0 {
		c.Align(w)
	}
	switch fd.Type {
	case db.DataTypeBool:
		v, ok := c.ReadU8()
		if !ok {
			return fc, shortRead(fd)
		}
		fc.Bool = v != 0
	case db.DataTypeChar, db.DataTypeI8:
		v, ok := c.ReadI8()
		if !ok {
			return fc, shortRead(fd)
		}
		fc.Int = int64(v)
	case db.DataTypeU8:
		v, ok := c.ReadU8()
		if !ok {
			return fc, shortRead(fd)
		}
		fc.Uint = uint64(v)
	case db.DataTypeI16:
		v, ok := c.ReadI16()
		if !ok {
			return fc, shortRead(fd)
		}
		fc.Int = int64(v)
	case db.DataTypeU16:
		v, ok := c.ReadU16()
		if !ok {
			return fc, shortRead(fd)
		}
		fc.Uint = uint64(v)
	case db.DataTypeI32, db.DataTypeEnum:
		v, ok := c.ReadI32()
		if !ok {
			return fc, shortRead(fd)
		}
		fc.Int = int64(v)
		if fd.Type == db.DataTypeEnum {
			if err := d.checkEnumMembership(fd, fc.Int); err != nil {
				return fc, err
			}
		}
	case db.DataTypeU32:
		v, ok := c.ReadU32()
		if !ok {
			return fc, shortRead(fd)
		}
		fc.Uint = uint64(v)
	case db.DataTypeI64:
		v, ok := c.ReadI64()
		if !ok {
			return fc, shortRead(fd)
		}
		fc.Int = v
	case db.DataTypeU64:
		v, ok := c.ReadU64()
		if !ok {
			return fc, shortRead(fd)
		}
		fc.Uint = v
	case db.DataTypeFloat:
		v, ok := c.ReadF32()
		if !ok {
			return fc, shortRead(fd)
		}
		fc.Float = float64(v)
	case db.DataTypeDouble:
		v, ok := c.ReadF64()
		if !ok {
			return fc, shortRead(fd)
		}
		fc.Float = v
	case db.DataTypeString:
		v, ok := c.ReadNulString(fd.ArrayLength)
		if !ok {
			return fc, shortRead(fd)
		}
		fc.Str = v
	case db.DataTypeFixedArray:
		elems, err := d.decodeBinaryArray(c, fd, fd.ArrayLength)
		if err != nil {
			return fc, err
		}
		fc.Elements = elems
	case db.DataTypeVarArray:
		n, ok := c.ReadU32()
		if !ok {
			return fc, shortRead(fd)
		}
		if fd.ArrayLength > 0 && int(n) > fd.ArrayLength {
			return fc, oem.NewStatusError(oem.StatusMalformedInput, "field %q: array length %d exceeds max %d", fd.Name, n, fd.ArrayLength)
		}
		elems, err := d.decodeBinaryArray(c, fd, int(n))
		if err != nil {
			return fc, err
		}
		fc.Elements = elems
	case db.DataTypeMessage:
		schema, err := d.resolveNested(fd)
		if err != nil {
			return fc, err
		}
		elems, err := d.decodeBinaryFields(c, schema)
		if err != nil {
			return fc, err
		}
		fc.Elements = elems
	default:
		return fc, oem.NewStatusError(oem.StatusMalformedInput, "field %q: unknown type %s", fd.Name, fd.Type)
	}
	return fc, nil
}

// decodeBinaryArray decodes n repeats of fd's element unit schema
// (fd.Fields). A single-field unit schema is a scalar array element;
// a multi-field unit schema is a struct element.
func (d *Decoder) decodeBinaryArray(c *bits.Cursor, fd *db.FieldDefinition, n int) ([]FieldContainer, error) {
	elems := make([]FieldContainer, 0, n)
	for i := 0; i < n; i++ {
		if len(fd.Fields) == 1 {
			fc, err := d.decodeBinaryField(c, &fd.Fields[0])
			if err != nil {
				return nil, err
			}
			elems = append(elems, fc)
		} else {
			children, err := d.decodeBinaryFields(c, fd.Fields)
			if err != nil {
				return nil, err
			}
			elems = append(elems, FieldContainer{Def: fd, Elements: children})
		}
	}
	return elems, nil
}

func (d *Decoder) resolveNested(fd *db.FieldDefinition) (db.MessageSchema, error) {
	if d.database == nil {
		return nil, oem.NewStatusError(oem.StatusMissingDefinition, "field %q: no database to resolve message id %d", fd.Name, fd.MessageID)
	}
	def, ok := d.database.MessageByID(fd.MessageID)
	if !ok {
		return nil, oem.NewStatusError(oem.StatusMissingDefinition, "field %q: message id %d not found", fd.Name, fd.MessageID)
	}
	_, schema := def.LatestVersion()
	return schema, nil
}

func (d *Decoder) checkEnumMembership(fd *db.FieldDefinition, value int64) error {
	if fd.EnumName == "" || d.database == nil {
		return nil
	}
	enumDef, ok := d.database.Enum(fd.EnumName)
	if !ok {
		return oem.NewStatusError(oem.StatusMissingDefinition, "field %q: enum %q not found", fd.Name, fd.EnumName)
	}
	if _, ok := enumDef.ByValue(int32(value)); !ok {
		return oem.NewStatusError(oem.StatusMalformedInput, "field %q: value %d not a member of enum %q", fd.Name, value, fd.EnumName)
	}
	return nil
}

func shortRead(fd *db.FieldDefinition) error {
	return oem.NewStatusError(oem.StatusMalformedInput, "field %q: body exhausted", fd.Name)
}

// asciiCursor walks the comma-delimited token stream produced by
// splitASCIITokens, one token per scalar field or per count prefix.
type asciiCursor struct {
	tokens []string
	pos    int
}

func (a *asciiCursor) next() (string, bool) {
	if a.pos >= len(a.tokens) {
		return "", false
	}
	t := a.tokens[a.pos]
	a.pos++
	return t, true
}

// splitASCIITokens splits an ASCII message body on top-level commas,
// treating double-quoted spans as opaque (spec §4.3: "field-separator
// is ',' except within quoted strings").
func splitASCIITokens(s string) []string {
	var tokens []string
	var cur strings.Builder
	inQuotes := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			inQuotes = !inQuotes
			cur.WriteByte(c)
		case c == ',' && !inQuotes:
			tokens = append(tokens, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	tokens = append(tokens, cur.String())
	return tokens
}

func (d *Decoder) decodeASCIIFields(tokens *asciiCursor, schema db.MessageSchema) ([]FieldContainer, error) {
	out := make([]FieldContainer, 0, len(schema))
	for i := range schema {
		fd := &schema[i]
		fc, err := d.decodeASCIIField(tokens, fd)
		if err != nil {
			return nil, err
		}
		out = append(out, fc)
	}
	return out, nil
}

func (d *Decoder) decodeASCIIField(tokens *asciiCursor, fd *db.FieldDefinition) (FieldContainer, error) {
	fc := FieldContainer{Def: fd}
	switch fd.Type {
	case db.DataTypeMessage:
		schema, err := d.resolveNested(fd)
		if err != nil {
			return fc, err
		}
		children, err := d.decodeASCIIFields(tokens, schema)
		if err != nil {
			return fc, err
		}
		fc.Elements = children
		return fc, nil
	case db.DataTypeFixedArray:
		elems, err := d.decodeASCIIArray(tokens, fd, fd.ArrayLength)
		if err != nil {
			return fc, err
		}
		fc.Elements = elems
		return fc, nil
	case db.DataTypeVarArray:
		tok, ok := tokens.next()
		if !ok {
			return fc, shortRead(fd)
		}
		n, err := strconv.Atoi(strings.TrimSpace(tok))
		if err != nil {
			return fc, oem.NewStatusError(oem.StatusMalformedInput, "field %q: bad array count %q", fd.Name, tok)
		}
		if fd.ArrayLength > 0 && n > fd.ArrayLength {
			return fc, oem.NewStatusError(oem.StatusMalformedInput, "field %q: array length %d exceeds max %d", fd.Name, n, fd.ArrayLength)
		}
		elems, err := d.decodeASCIIArray(tokens, fd, n)
		if err != nil {
			return fc, err
		}
		fc.Elements = elems
		return fc, nil
	}

	tok, ok := tokens.next()
	if !ok {
		return fc, shortRead(fd)
	}
	tok = strings.TrimSpace(tok)
	return d.parseASCIIScalar(fd, tok)
}

func (d *Decoder) decodeASCIIArray(tokens *asciiCursor, fd *db.FieldDefinition, n int) ([]FieldContainer, error) {
	elems := make([]FieldContainer, 0, n)
	for i := 0; i < n; i++ {
		if len(fd.Fields) == 1 {
			fc, err := d.decodeASCIIField(tokens, &fd.Fields[0])
			if err != nil {
				return nil, err
			}
			elems = append(elems, fc)
		} else {
			children, err := d.decodeASCIIFields(tokens, fd.Fields)
			if err != nil {
				return nil, err
			}
			elems = append(elems, FieldContainer{Def: fd, Elements: children})
		}
	}
	return elems, nil
}

func (d *Decoder) parseASCIIScalar(fd *db.FieldDefinition, tok string) (FieldContainer, error) {
	fc := FieldContainer{Def: fd}
	switch fd.Type {
	case db.DataTypeBool:
		fc.Bool = tok == "TRUE" || tok == "1"
		return fc, nil
	case db.DataTypeString:
		fc.Str = unquoteASCIIString(tok)
		return fc, nil
	case db.DataTypeEnum:
		if d.database != nil && fd.EnumName != "" {
			if enumDef, ok := d.database.Enum(fd.EnumName); ok {
				if v, ok := enumDef.ByName(tok); ok {
					fc.Int = int64(v)
					return fc, nil
				}
			}
		}
		v, err := strconv.ParseInt(tok, 10, 32)
		if err != nil {
			return fc, oem.NewStatusError(oem.StatusMalformedInput, "field %q: unrecognized enum token %q", fd.Name, tok)
		}
		fc.Int = v
		return fc, nil
	case db.DataTypeFloat, db.DataTypeDouble:
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return fc, oem.NewStatusError(oem.StatusMalformedInput, "field %q: bad float %q", fd.Name, tok)
		}
		fc.Float = v
		return fc, nil
	case db.DataTypeI8, db.DataTypeI16, db.DataTypeI32, db.DataTypeI64, db.DataTypeChar:
		v, err := strconv.ParseInt(tok, 10, 64)
		if err != nil {
			return fc, oem.NewStatusError(oem.StatusMalformedInput, "field %q: bad integer %q", fd.Name, tok)
		}
		fc.Int = v
		return fc, nil
	default: // unsigned widths
		v, err := strconv.ParseUint(tok, 10, 64)
		if err != nil {
			return fc, oem.NewStatusError(oem.StatusMalformedInput, "field %q: bad integer %q", fd.Name, tok)
		}
		fc.Uint = v
		return fc, nil
	}
}

// unquoteASCIIString strips the surrounding double quotes a schema
// string field carries in ASCII (spec §4.3) and unescapes \" as the
// source quoting convention uses.
func unquoteASCIIString(tok string) string {
	tok = strings.TrimSpace(tok)
	if len(tok) >= 2 && tok[0] == '"' && tok[len(tok)-1] == '"' {
		tok = tok[1 : len(tok)-1]
	}
	return strings.ReplaceAll(tok, `\"`, `"`)
}
