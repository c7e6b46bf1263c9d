package db

import "fmt"

// Database is the read-only, load-once message/enum schema store.
// Once constructed it is immutable and may be shared across multiple
// decoder instances (spec §3, §5) — every method here is a plain read
// over maps built at load time, so no locking is needed.
type Database struct {
	messagesByID   map[uint32]*MessageDefinition
	messagesByName map[string]*MessageDefinition
	enumsByName    map[string]*EnumDefinition

	// Stale lists message names whose latestMessageCrc in the schema
	// document did not match the CRC32 this loader computed over the
	// canonicalized field list — see SPEC_FULL.md's "CRC-checked
	// schema reload". A stale definition still loads and decodes; it
	// is surfaced for introspection, not treated as StatusMalformedInput.
	Stale []string
}

// MessageByID resolves a message definition by its numeric id. This is
// the lookup path the db.FieldDefinition.MessageID arena reference
// uses to recurse into a nested message without holding a direct
// pointer.
func (d *Database) MessageByID(id uint32) (*MessageDefinition, bool) {
	m, ok := d.messagesByID[id]
	return m, ok
}

// MessageByName resolves a message definition by its canonical name.
func (d *Database) MessageByName(name string) (*MessageDefinition, bool) {
	m, ok := d.messagesByName[name]
	return m, ok
}

// Enum resolves an enum definition by name.
func (d *Database) Enum(name string) (*EnumDefinition, bool) {
	e, ok := d.enumsByName[name]
	return e, ok
}

// Messages returns every loaded message definition, in no particular
// order. The decode path does not use it.
func (d *Database) Messages() []*MessageDefinition {
	out := make([]*MessageDefinition, 0, len(d.messagesByID))
	for _, m := range d.messagesByID {
		out = append(out, m)
	}
	return out
}

func (d *Database) addMessage(m *MessageDefinition) error {
	if m.Name == "" {
		return fmt.Errorf("message id %d: empty name", m.ID)
	}
	if _, dup := d.messagesByID[m.ID]; dup {
		return fmt.Errorf("duplicate message id %d (%s)", m.ID, m.Name)
	}
	if _, dup := d.messagesByName[m.Name]; dup {
		return fmt.Errorf("duplicate message name %q", m.Name)
	}
	d.messagesByID[m.ID] = m
	d.messagesByName[m.Name] = m
	return nil
}

func (d *Database) addEnum(e *EnumDefinition) error {
	if e.Name == "" {
		return fmt.Errorf("enum with empty name")
	}
	if _, dup := d.enumsByName[e.Name]; dup {
		return fmt.Errorf("duplicate enum name %q", e.Name)
	}
	d.enumsByName[e.Name] = e
	return nil
}
