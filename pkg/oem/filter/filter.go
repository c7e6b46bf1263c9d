// Package filter implements the Filter predicate set (spec §4.7): a
// conjunction of optional, independently-configurable predicates over
// a frame's MetaDataStruct. Every enabled predicate must pass
// (logical AND); a multi-value predicate (time status set, id/format/
// source set, name/format/source set) passes if the metadata matches
// any one of its members (logical OR).
package filter

import "github.com/bramburn/oem-edie/pkg/oem"

// Time is a GNSS week/milliseconds-of-week pair, comparable with the
// usual lexicographic (week, then ms) ordering.
type Time struct {
	Week         int
	Milliseconds int
}

func (t Time) less(o Time) bool {
	if t.Week != o.Week {
		return t.Week < o.Week
	}
	return t.Milliseconds < o.Milliseconds
}

// Window is an inclusive [Lower, Upper] time bound, optionally
// inverted (spec §4.7: "inclusive time window [lower, upper]
// (optionally inverted)").
type Window struct {
	Lower, Upper Time
	Invert       bool
}

func (w Window) contains(t Time) bool {
	in := !t.less(w.Lower) && !w.Upper.less(t)
	if w.Invert {
		return !in
	}
	return in
}

// IDKey is one accepted (id, format, source) tuple (spec §4.7).
type IDKey struct {
	ID     uint16
	Format oem.HeaderFormat
	Source oem.MeasurementSource
}

// NameKey is one accepted (name, format, source) tuple (spec §4.7).
type NameKey struct {
	Name   string
	Format oem.HeaderFormat
	Source oem.MeasurementSource
}

// NMEAPolicy controls whether NMEA-format messages pass (spec §4.7:
// "include/exclude NMEA messages").
type NMEAPolicy uint8

const (
	// NMEAAllow lets NMEA messages through alongside everything else;
	// the zero value, so a Config left unset imposes no NMEA policy.
	NMEAAllow NMEAPolicy = iota
	NMEAExclude
	NMEAOnly
)

// Config carries every predicate a Filter can enforce. A nil/zero
// field disables that predicate entirely.
type Config struct {
	TimeWindow *Window

	// DecimationMillis, when > 0, passes only metadata whose
	// Milliseconds is an exact multiple of it (spec §4.7: "emit only
	// when milliseconds % period == 0").
	DecimationMillis int

	TimeStatuses map[oem.TimeStatus]struct{}
	IDs          map[IDKey]struct{}
	Names        map[NameKey]struct{}

	NMEA NMEAPolicy
}

// Filter evaluates a Config's predicates against decoded metadata.
type Filter struct {
	cfg Config
}

// New constructs a Filter from cfg. cfg is copied by reference to the
// caller's maps; callers should not mutate them after construction.
func New(cfg Config) *Filter {
	return &Filter{cfg: cfg}
}

// DoFiltering reports whether meta passes every enabled predicate
// (spec §4.7). An empty Config (no predicates enabled) passes
// everything.
func (f *Filter) DoFiltering(meta oem.MetaDataStruct) bool {
	if f.cfg.TimeWindow != nil {
		t := Time{Week: meta.Week, Milliseconds: meta.Milliseconds}
		if !f.cfg.TimeWindow.contains(t) {
			return false
		}
	}
	if f.cfg.DecimationMillis > 0 && meta.Milliseconds%f.cfg.DecimationMillis != 0 {
		return false
	}
	if len(f.cfg.TimeStatuses) > 0 {
		if _, ok := f.cfg.TimeStatuses[meta.TimeStatus]; !ok {
			return false
		}
	}
	if len(f.cfg.IDs) > 0 {
		key := IDKey{ID: meta.MessageID, Format: meta.Format, Source: meta.MeasurementSource}
		if _, ok := f.cfg.IDs[key]; !ok {
			return false
		}
	}
	if len(f.cfg.Names) > 0 {
		key := NameKey{Name: meta.MessageName, Format: meta.Format, Source: meta.MeasurementSource}
		if _, ok := f.cfg.Names[key]; !ok {
			return false
		}
	}
	switch f.cfg.NMEA {
	case NMEAExclude:
		if meta.Format == oem.HeaderFormatNMEA {
			return false
		}
	case NMEAOnly:
		if meta.Format != oem.HeaderFormatNMEA {
			return false
		}
	}
	return true
}
