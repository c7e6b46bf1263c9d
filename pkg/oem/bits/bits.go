// Package bits provides the little-endian byte cursor, LSB-first bit
// cursor and checksum primitives shared by the header decoder, message
// decoder, encoder and RangeCmp decompressor.
//
// The bit-level helpers are grounded in the teacher's
// pkg/gnssgo/rtcm GetBitU/GetBits call sites (gnssgo.GetBitU(buf, pos,
// n), gnssgo.GetBits(buf, pos, n)) used throughout ephemeris.go and
// msm.go to pull MSB-first fields out of an RTCM bitstream. NovAtel's
// OEM RangeCmp records pack fields LSB-first within a little-endian
// byte stream instead, so the bit order here is mirrored accordingly;
// the function names and (data, pos, len) signatures are kept.
package bits

import "math"

// Cursor reads successive little-endian scalar fields out of a byte
// slice, analogous to a binary.Reader but tracking its own byte
// offset so callers (the Message Decoder) can report how much of the
// body a field tree consumed.
type Cursor struct {
	Data []byte
	Pos  int // next unread byte offset
}

// NewCursor wraps data for sequential little-endian reads starting at
// offset 0.
func NewCursor(data []byte) *Cursor {
	return &Cursor{Data: data}
}

// Remaining reports how many bytes are left unread.
func (c *Cursor) Remaining() int {
	return len(c.Data) - c.Pos
}

// Require reports whether at least n bytes remain.
func (c *Cursor) Require(n int) bool {
	return c.Remaining() >= n
}

func (c *Cursor) ReadU8() (uint8, bool) {
	if !c.Require(1) {
		return 0, false
	}
	v := c.Data[c.Pos]
	c.Pos++
	return v, true
}

func (c *Cursor) ReadU16() (uint16, bool) {
	if !c.Require(2) {
		return 0, false
	}
	v := uint16(c.Data[c.Pos]) | uint16(c.Data[c.Pos+1])<<8
	c.Pos += 2
	return v, true
}

func (c *Cursor) ReadU32() (uint32, bool) {
	if !c.Require(4) {
		return 0, false
	}
	v := uint32(c.Data[c.Pos]) | uint32(c.Data[c.Pos+1])<<8 |
		uint32(c.Data[c.Pos+2])<<16 | uint32(c.Data[c.Pos+3])<<24
	c.Pos += 4
	return v, true
}

func (c *Cursor) ReadU64() (uint64, bool) {
	if !c.Require(8) {
		return 0, false
	}
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(c.Data[c.Pos+i]) << (8 * uint(i))
	}
	c.Pos += 8
	return v, true
}

func (c *Cursor) ReadI8() (int8, bool) {
	v, ok := c.ReadU8()
	return int8(v), ok
}

func (c *Cursor) ReadI16() (int16, bool) {
	v, ok := c.ReadU16()
	return int16(v), ok
}

func (c *Cursor) ReadI32() (int32, bool) {
	v, ok := c.ReadU32()
	return int32(v), ok
}

func (c *Cursor) ReadI64() (int64, bool) {
	v, ok := c.ReadU64()
	return int64(v), ok
}

func (c *Cursor) ReadF32() (float32, bool) {
	v, ok := c.ReadU32()
	return math.Float32frombits(v), ok
}

func (c *Cursor) ReadF64() (float64, bool) {
	v, ok := c.ReadU64()
	return math.Float64frombits(v), ok
}

// ReadBytes returns the next n raw bytes.
func (c *Cursor) ReadBytes(n int) ([]byte, bool) {
	if !c.Require(n) {
		return nil, false
	}
	v := c.Data[c.Pos : c.Pos+n]
	c.Pos += n
	return v, true
}

// ReadNulString reads up to max bytes, stopping at the first NUL, and
// advances the cursor past the full max-byte field.
func (c *Cursor) ReadNulString(max int) (string, bool) {
	if !c.Require(max) {
		return "", false
	}
	field := c.Data[c.Pos : c.Pos+max]
	c.Pos += max
	n := 0
	for n < len(field) && field[n] != 0 {
		n++
	}
	return string(field[:n]), true
}

// Align advances Pos to the next multiple of width, matching the
// natural-boundary padding the Message Decoder applies between fields
// (spec §4.3: "Binary decoding aligns each field on its natural
// boundary with padding as implied by the schema").
func (c *Cursor) Align(width int) {
	if width <= 1 {
		return
	}
	if rem := c.Pos % width; rem != 0 {
		c.Pos += width - rem
	}
}

// GetBitU extracts an unsigned len-bit field starting at absolute bit
// position pos (0 = least-significant bit of data[0]).
func GetBitU(data []byte, pos, length int) uint64 {
	var v uint64
	for i := 0; i < length; i++ {
		bit := pos + i
		byteIdx := bit / 8
		bitIdx := uint(bit % 8)
		if byteIdx >= len(data) {
			break
		}
		if data[byteIdx]&(1<<bitIdx) != 0 {
			v |= 1 << uint(i)
		}
	}
	return v
}

// GetBits extracts a signed len-bit field (two's complement,
// sign-extended) starting at absolute bit position pos.
func GetBits(data []byte, pos, length int) int64 {
	v := GetBitU(data, pos, length)
	if length >= 64 {
		return int64(v)
	}
	signBit := uint64(1) << uint(length-1)
	if v&signBit != 0 {
		v -= signBit << 1
	}
	return int64(v)
}

// SetBitU packs an unsigned len-bit field into data at absolute bit
// position pos, the inverse of GetBitU, used by RangeCmp record
// synthesis in tests.
func SetBitU(data []byte, pos, length int, value uint64) {
	for i := 0; i < length; i++ {
		bit := pos + i
		byteIdx := bit / 8
		bitIdx := uint(bit % 8)
		if byteIdx >= len(data) {
			break
		}
		if value&(1<<uint(i)) != 0 {
			data[byteIdx] |= 1 << bitIdx
		} else {
			data[byteIdx] &^= 1 << bitIdx
		}
	}
}

// SetBits packs a signed len-bit field, truncating to its two's
// complement representation.
func SetBits(data []byte, pos, length int, value int64) {
	mask := uint64(1)<<uint(length) - 1
	SetBitU(data, pos, length, uint64(value)&mask)
}
