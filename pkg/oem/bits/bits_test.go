package bits_test

import (
	"testing"

	"github.com/bramburn/oem-edie/pkg/oem/bits"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorLittleEndian(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	c := bits.NewCursor(data)

	v16, ok := c.ReadU16()
	require.True(t, ok)
	assert.Equal(t, uint16(0x0201), v16)

	v32, ok := c.ReadU32()
	require.True(t, ok)
	assert.Equal(t, uint32(0x06050403), v32)

	_, ok = c.ReadU32()
	assert.False(t, ok, "only 2 bytes remain")
}

func TestCursorSigned(t *testing.T) {
	data := []byte{0xFF, 0xFF}
	c := bits.NewCursor(data)
	v, ok := c.ReadI16()
	require.True(t, ok)
	assert.Equal(t, int16(-1), v)
}

func TestGetBitURoundTrip(t *testing.T) {
	data := make([]byte, 8)
	bits.SetBitU(data, 5, 10, 0x2AB)
	assert.Equal(t, uint64(0x2AB), bits.GetBitU(data, 5, 10))
}

func TestGetBitsSignExtend(t *testing.T) {
	data := make([]byte, 4)
	bits.SetBits(data, 0, 5, -3)
	assert.Equal(t, int64(-3), bits.GetBits(data, 0, 5))
}

func TestCRC32MatchesIEEE(t *testing.T) {
	// Known CRC-32/IEEE of the ASCII string "123456789" is 0xCBF43926.
	assert.Equal(t, uint32(0xCBF43926), bits.CRC32([]byte("123456789")))
}

func TestNMEAChecksum(t *testing.T) {
	// $GPGGA,...*47 is a well known sample sentence (teacher's
	// stream_minimal.go uses the same literal as a placeholder GGA).
	payload := "GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,"
	assert.Equal(t, "47", bits.NMEAChecksumHex([]byte(payload)))
}
