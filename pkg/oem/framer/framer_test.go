package framer_test

import (
	"encoding/binary"
	"testing"

	"github.com/bramburn/oem-edie/pkg/oem"
	"github.com/bramburn/oem-edie/pkg/oem/bits"
	"github.com/bramburn/oem-edie/pkg/oem/framer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildBinaryFrame assembles a minimal but well-formed binary OEM4
// frame: 3-byte sync, headerLen at byte 3, body length at bytes 8-9,
// a CRC32 trailer. Header bytes beyond what the framer inspects are
// zero-filled; the message decoder layer interprets them, not the
// framer.
func buildBinaryFrame(headerLen int, body []byte) []byte {
	header := make([]byte, headerLen)
	header[0], header[1], header[2] = 0xAA, 0x44, 0x12
	header[3] = byte(headerLen)
	binary.LittleEndian.PutUint16(header[8:10], uint16(len(body)))

	frame := append(append([]byte{}, header...), body...)
	crc := bits.CRC32(frame)
	crcBytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(crcBytes, crc)
	return append(frame, crcBytes...)
}

func TestFramerDecodesCompleteBinaryFrame(t *testing.T) {
	frame := buildBinaryFrame(28, make([]byte, 16))
	f := framer.New(framer.Config{}, nil)

	n, status := f.Write(frame)
	require.Equal(t, oem.StatusSuccess, status)
	require.Equal(t, len(frame), n)

	out := make([]byte, 1024)
	nc, st, meta := f.GetFrame(out)
	require.Equal(t, oem.StatusSuccess, st)
	assert.Equal(t, len(frame), nc)
	assert.Equal(t, oem.HeaderFormatBinary, meta.Format)
	assert.Equal(t, uint32(len(frame)), meta.Length)
	assert.Equal(t, uint32(28), meta.HeaderLength)
}

func TestFramerByteWiseIsIdempotentWithWholeWrite(t *testing.T) {
	frame := buildBinaryFrame(28, make([]byte, 16))

	whole := framer.New(framer.Config{}, nil)
	whole.Write(frame)
	outWhole := make([]byte, 1024)
	nWhole, stWhole, metaWhole := whole.GetFrame(outWhole)

	piecewise := framer.New(framer.Config{}, nil)
	out := make([]byte, 1024)
	var n int
	var st oem.Status
	var meta oem.MetaDataStruct
	for _, b := range frame {
		piecewise.Write([]byte{b})
		n, st, meta = piecewise.GetFrame(out)
		if st == oem.StatusSuccess {
			break
		}
	}

	assert.Equal(t, stWhole, st)
	assert.Equal(t, nWhole, n)
	assert.Equal(t, metaWhole, meta)
	assert.Equal(t, outWhole[:nWhole], out[:n])
}

func TestFramerReportsUnknownPrefix(t *testing.T) {
	frame := buildBinaryFrame(28, make([]byte, 16))
	junk := []byte("JUNK")
	f := framer.New(framer.Config{ReportUnknownBytes: true}, nil)
	f.Write(append(append([]byte{}, junk...), frame...))

	out := make([]byte, 1024)
	n, st, meta := f.GetFrame(out)
	require.Equal(t, oem.StatusUnknown, st)
	assert.Equal(t, junk, out[:n])
	assert.Equal(t, uint32(len(junk)), meta.Length)

	n, st, _ = f.GetFrame(out)
	require.Equal(t, oem.StatusSuccess, st)
	assert.Equal(t, len(frame), n)
}

func TestFramerDetectsCRCMismatch(t *testing.T) {
	frame := buildBinaryFrame(28, make([]byte, 16))
	frame[len(frame)-1] ^= 0xFF // invert every bit of the last CRC byte
	f := framer.New(framer.Config{}, nil)
	f.Write(frame)

	out := make([]byte, 1024)
	_, st, meta := f.GetFrame(out)
	assert.Equal(t, oem.StatusCRCMismatch, st)
	assert.Equal(t, oem.HeaderFormatUnknown, meta.Format)
}

func TestFramerIncompleteUntilFullFrame(t *testing.T) {
	frame := buildBinaryFrame(28, make([]byte, 16))
	f := framer.New(framer.Config{}, nil)
	out := make([]byte, 1024)

	for i := 0; i < len(frame)-1; i++ {
		f.Write(frame[i : i+1])
		_, st, _ := f.GetFrame(out)
		require.Equal(t, oem.StatusIncomplete, st, "byte %d", i)
	}
	f.Write(frame[len(frame)-1:])
	_, st, _ := f.GetFrame(out)
	assert.Equal(t, oem.StatusSuccess, st)
}

func TestFramerDecodesASCIIFrame(t *testing.T) {
	payload := "VERSIONA,COM1,0,71.5,FINESTEERING,2258,417000.000,00000020,b1f6,16809;1,GPSCARD,\"FFNR1140109419\""
	body := "#" + payload
	crc := bits.CRC32Hex([]byte(payload))
	wire := []byte(body + "*" + crc + "\r\n")

	f := framer.New(framer.Config{}, nil)
	f.Write(wire)
	out := make([]byte, 1024)
	n, st, meta := f.GetFrame(out)
	require.Equal(t, oem.StatusSuccess, st)
	assert.Equal(t, len(wire), n)
	assert.Equal(t, oem.HeaderFormatASCII, meta.Format)
}

func TestFramerDecodesNMEAFrame(t *testing.T) {
	payload := "GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,"
	wire := []byte("$" + payload + "*" + bits.NMEAChecksumHex([]byte(payload)) + "\r\n")

	f := framer.New(framer.Config{}, nil)
	f.Write(wire)
	out := make([]byte, 1024)
	n, st, meta := f.GetFrame(out)
	require.Equal(t, oem.StatusSuccess, st)
	assert.Equal(t, len(wire), n)
	assert.Equal(t, oem.HeaderFormatNMEA, meta.Format)
	assert.Equal(t, "GPGGA", meta.MessageName)
}

func TestFramerDecodesJSONFrame(t *testing.T) {
	wire := []byte(`{"header":{"message":"BESTPOS"},"body":{"lat":1.0}}`)
	f := framer.New(framer.Config{FrameJSON: true}, nil)
	f.Write(wire)
	out := make([]byte, 1024)
	n, st, meta := f.GetFrame(out)
	require.Equal(t, oem.StatusSuccess, st)
	assert.Equal(t, len(wire), n)
	assert.Equal(t, oem.HeaderFormatJSON, meta.Format)
}

func TestFramerFlushDrainsAndResets(t *testing.T) {
	f := framer.New(framer.Config{}, nil)
	f.Write([]byte("partial"))
	out := make([]byte, 16)
	n := f.Flush(out)
	assert.Equal(t, "partial", string(out[:n]))
	assert.Equal(t, framer.StateSearch, f.State())

	out2 := make([]byte, 16)
	n2 := f.Flush(out2)
	assert.Equal(t, 0, n2)
}
