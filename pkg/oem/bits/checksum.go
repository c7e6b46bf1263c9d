package bits

import (
	"fmt"
	"hash/crc32"
)

// crc32Table is the reflected IEEE polynomial 0xEDB88320 spec.md §6
// names explicitly; it is the same polynomial Go's hash/crc32 already
// special-cases as crc32.IEEE, so no third-party CRC implementation
// is needed here (see DESIGN.md).
var crc32Table = crc32.MakeTable(crc32.IEEE)

// CRC32 computes the 32-bit CRC used to terminate binary OEM frames
// and to checksum the message database's per-definition schema text.
func CRC32(data []byte) uint32 {
	return crc32.Checksum(data, crc32Table)
}

// CRC32Hex formats a CRC32 as the 8 uppercase hex digits ASCII/Abbreviated
// ASCII frames place after the trailing '*'.
func CRC32Hex(data []byte) string {
	return fmt.Sprintf("%08X", CRC32(data))
}

// NMEAChecksum computes the XOR of all bytes in data, the checksum
// NMEA sentences carry between '$' and '*'. Adapted from the teacher's
// pkg/gnssgo/nmea checksum routine; kept here as a standalone XOR loop
// so the Framer can validate wire integrity before handing a
// known-good sentence off to pkg/gnssgo/nmea for sentence-type
// decoding, rather than running that heavier parse just to checksum.
func NMEAChecksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum ^= b
	}
	return sum
}

// NMEAChecksumHex formats an NMEA checksum as two uppercase hex digits.
func NMEAChecksumHex(data []byte) string {
	return fmt.Sprintf("%02X", NMEAChecksum(data))
}
