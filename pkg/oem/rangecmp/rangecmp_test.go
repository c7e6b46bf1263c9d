package rangecmp_test

import (
	"testing"

	"github.com/bramburn/oem-edie/pkg/oem"
	"github.com/bramburn/oem-edie/pkg/oem/bits"
	"github.com/bramburn/oem-edie/pkg/oem/rangecmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildV1Record(prn uint8, trackingStatus uint32, prRaw int64, dopplerRaw int64, lockRaw uint64) []byte {
	rec := make([]byte, 18)
	pos := 0
	bits.SetBitU(rec, pos, 5, uint64(prn))
	pos += 5
	bits.SetBitU(rec, pos, 32, uint64(trackingStatus))
	pos += 32
	bits.SetBits(rec, pos, 36, prRaw)
	pos += 36
	bits.SetBits(rec, pos, 28, dopplerRaw)
	pos += 28
	bits.SetBitU(rec, pos, 4, 3) // pseudorange std-dev index
	pos += 4
	bits.SetBitU(rec, pos, 4, 2) // doppler std-dev index
	pos += 4
	bits.SetBitU(rec, pos, 4, 1) // adr std-dev index
	pos += 4
	bits.SetBitU(rec, pos, 21, lockRaw)
	pos += 21
	bits.SetBitU(rec, pos, 5, 30) // cn0 raw
	pos += 5
	bits.SetBits(rec, pos, 3, 1) // glonass frequency
	return rec
}

func buildV1Body(records ...[]byte) []byte {
	body := make([]byte, 4)
	bits.SetBitU(body, 0, 32, uint64(len(records)))
	for _, r := range records {
		body = append(body, r...)
	}
	return body
}

func TestDecompressV1SingleObservation(t *testing.T) {
	trackingStatus := uint32(rangecmp.SystemGPS) << 16
	rec := buildV1Record(12, trackingStatus, 4000000, -500, 1500)
	body := buildV1Body(rec)

	dec := rangecmp.New(nil)
	msg, err := dec.Decompress("RANGECMP", body)
	require.NoError(t, err)
	require.Len(t, msg.Observations, 1)

	obs := msg.Observations[0]
	assert.EqualValues(t, 12, obs.PRN)
	assert.Equal(t, rangecmp.SystemGPS, obs.System)
	assert.InDelta(t, 4000000*0.0005, obs.Pseudorange, 1e-9)
	assert.True(t, obs.IsReference)
}

func TestDecompressV1TruncatedBodyIsMalformed(t *testing.T) {
	dec := rangecmp.New(nil)
	_, err := dec.Decompress("RANGECMP", []byte{1, 0, 0, 0})
	assert.Error(t, err)
	assert.Equal(t, oem.StatusMalformedInput, oem.StatusOf(err))
}

func TestDecompressUnsupportedVariant(t *testing.T) {
	dec := rangecmp.New(nil)
	_, err := dec.Decompress("RANGECMP99", []byte{0})
	assert.Error(t, err)
	assert.Equal(t, oem.StatusUnsupported, oem.StatusOf(err))
}

func buildV4V5DeltaOnlyBody(prn uint8) []byte {
	// system bitmap: GPS only (bit 0); satellite bitmap: one PRN; signal
	// bitmap: one signal; flag byte with bit0=0 (delta, not reference).
	body := []byte{0x01} // system bitmap
	satBitmap := make([]byte, 8)
	bits.SetBitU(satBitmap, 0, 64, uint64(1)<<uint(prn))
	body = append(body, satBitmap...)
	sigBitmap := make([]byte, 4)
	bits.SetBitU(sigBitmap, 0, 32, 1)
	body = append(body, sigBitmap...)
	body = append(body, 0x00) // flag: delta
	deltaBlock := make([]byte, 7)
	body = append(body, deltaBlock...)
	return body
}

func TestDecompressV4V5DeltaWithoutReferenceIsMissingReference(t *testing.T) {
	dec := rangecmp.New(nil)
	body := buildV4V5DeltaOnlyBody(5)
	_, err := dec.Decompress("RANGECMP4", body)
	assert.Error(t, err)
	assert.Equal(t, oem.StatusMissingReference, oem.StatusOf(err))
}

func buildV4V5RefBody(prn uint8, lockRaw uint64) []byte {
	body := []byte{0x01} // system bitmap: GPS only
	satBitmap := make([]byte, 8)
	bits.SetBitU(satBitmap, 0, 64, uint64(1)<<uint(prn))
	body = append(body, satBitmap...)
	sigBitmap := make([]byte, 4)
	bits.SetBitU(sigBitmap, 0, 32, 1)
	body = append(body, sigBitmap...)
	body = append(body, 0x01) // flag: reference
	refBlock := make([]byte, 13)
	bits.SetBitU(refBlock, 36+28+4+4, 21, lockRaw)
	body = append(body, refBlock...)
	return body
}

func TestDecompressV4V5DeltaRejectsLockTimeDiscontinuity(t *testing.T) {
	dec := rangecmp.New(nil)
	_, err := dec.Decompress("RANGECMP4", buildV4V5RefBody(7, 2000)) // lock time 2.0s
	require.NoError(t, err)

	// lockRaw 0 => lock time 0s, a 2.0s drop far past the 0.5s threshold.
	_, err = dec.Decompress("RANGECMP4", buildV4V5DeltaOnlyBody(7))
	require.Error(t, err)
	assert.Equal(t, oem.StatusMissingReference, oem.StatusOf(err))
}

func buildV2RefAndDeltaBody(prn uint8, refLockRaw uint64, deltaLockRaw uint64) []byte {
	trackingStatus := uint32(rangecmp.SystemGPS) << 16

	refBlock := make([]byte, 17)
	bits.SetBitU(refBlock, 0, 32, uint64(trackingStatus))
	bits.SetBitU(refBlock, 32+36+28+4+4, 21, refLockRaw)

	deltaBlock := make([]byte, 7)
	bits.SetBitU(deltaBlock, 0, 5, 0) // signal type 0
	bits.SetBitU(deltaBlock, 5+16+14+4+4, 13, deltaLockRaw)

	body := []byte{1, prn, 2} // one satellite, two signals (ref + delta)
	body = append(body, refBlock...)
	body = append(body, deltaBlock...)
	return body
}

func TestDecompressV2DeltaRejectsLockTimeDiscontinuity(t *testing.T) {
	dec := rangecmp.New(nil)
	body := buildV2RefAndDeltaBody(9, 2000, 0) // ref lock time 2.0s, delta lock time 0s
	_, err := dec.Decompress("RANGECMP2", body)
	require.Error(t, err)
	assert.Equal(t, oem.StatusMissingReference, oem.StatusOf(err))
}

func TestResetClearsReferenceTable(t *testing.T) {
	trackingStatus := uint32(rangecmp.SystemGPS) << 16
	rec := buildV1Record(12, trackingStatus, 4000000, -500, 1500)
	body := buildV1Body(rec)

	dec := rangecmp.New(nil)
	_, err := dec.Decompress("RANGECMP", body)
	require.NoError(t, err)

	dec.Reset()

	// After reset, a v4/v5 delta record for the same channel has no
	// reference to fall back to.
	deltaBody := buildV4V5DeltaOnlyBody(12)
	_, err = dec.Decompress("RANGECMP4", deltaBody)
	assert.Equal(t, oem.StatusMissingReference, oem.StatusOf(err))
}
