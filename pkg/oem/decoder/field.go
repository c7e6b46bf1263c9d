// Package decoder implements the schema-driven Message Decoder (spec
// §4.3): it turns a message body plus its resolved MessageSchema into
// an ordered field tree.
package decoder

import "github.com/bramburn/oem-edie/pkg/oem/db"

// FieldContainer is the runtime field value spec §3 describes as "a
// tagged union over all supported scalar types plus nested container
// and sequence-of-container". Per Design Notes §9 this is a closed
// tagged sum (one struct with a type tag) rather than an interface{}
// hierarchy: Def.Type says which of the members is meaningful.
type FieldContainer struct {
	Def *db.FieldDefinition

	Int   int64
	Uint  uint64
	Float float64
	Bool  bool
	Str   string

	// Elements holds array elements (DataTypeFixedArray/VarArray) or
	// the child field tree of a nested message (DataTypeMessage).
	Elements []FieldContainer
}

// EnumName resolves the symbolic name of an enum-typed field's value
// against enumDef, or reports the bare integer if no match or no
// enumDef is supplied.
func (f FieldContainer) EnumName(enumDef *db.EnumDefinition) (string, bool) {
	if enumDef == nil {
		return "", false
	}
	return enumDef.ByValue(int32(f.Int))
}
