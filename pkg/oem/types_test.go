package oem_test

import (
	"errors"
	"testing"

	"github.com/bramburn/oem-edie/pkg/oem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusOfUnwrapsSentinels(t *testing.T) {
	err := oem.NewStatusError(oem.StatusCRCMismatch, "body CRC 0x%X != computed 0x%X", 1, 2)
	assert.Equal(t, oem.StatusCRCMismatch, oem.StatusOf(err))
	assert.True(t, errors.Is(err, oem.ErrCRCMismatch))
	assert.False(t, errors.Is(err, oem.ErrUnsupported))
}

func TestStatusOfNilIsSuccess(t *testing.T) {
	assert.Equal(t, oem.StatusSuccess, oem.StatusOf(nil))
}

func TestStatusOfWrappedError(t *testing.T) {
	base := oem.NewStatusError(oem.StatusMissingDefinition, "message id 42 not in database")
	wrapped := errors.Join(errors.New("decode failed"), base)
	// errors.Join does not implement a single-error Unwrap, so only a
	// plain fmt.Errorf("...: %w") chain is expected to resolve; confirm
	// the fallback for unrecognized chains instead.
	assert.Equal(t, oem.StatusMalformedInput, oem.StatusOf(wrapped))
}

func TestStatusStringUnknownValue(t *testing.T) {
	assert.Equal(t, "UNKNOWN_STATUS", oem.Status(200).String())
}

func TestFrameSpansBinary(t *testing.T) {
	frame := make([]byte, 40)
	meta := oem.MetaDataStruct{HeaderLength: 28, Format: oem.HeaderFormatBinary}
	spans := oem.FrameSpans(frame, meta)
	require.True(t, spans.Valid())
	assert.EqualValues(t, 28, spans.HeaderOffset+spans.HeaderLength)
	assert.EqualValues(t, 8, spans.BodyLength)
	assert.Len(t, spans.Header(), 28)
	assert.Len(t, spans.Body(), 8)
}

func TestFrameSpansASCII(t *testing.T) {
	frame := make([]byte, 50)
	meta := oem.MetaDataStruct{HeaderLength: 20, Format: oem.HeaderFormatASCII}
	spans := oem.FrameSpans(frame, meta)
	require.True(t, spans.Valid())
	assert.EqualValues(t, 19, spans.BodyLength) // 50 - 20 - 11
}

func TestFrameSpansNMEA(t *testing.T) {
	frame := make([]byte, 30)
	meta := oem.MetaDataStruct{HeaderLength: 7, Format: oem.HeaderFormatNMEA}
	spans := oem.FrameSpans(frame, meta)
	require.True(t, spans.Valid())
	assert.EqualValues(t, 18, spans.BodyLength) // 30 - 7 - 5
}

func TestFrameSpansJSONHasNoTrailer(t *testing.T) {
	frame := make([]byte, 16)
	meta := oem.MetaDataStruct{HeaderLength: 4, Format: oem.HeaderFormatJSON}
	spans := oem.FrameSpans(frame, meta)
	require.True(t, spans.Valid())
	assert.EqualValues(t, 12, spans.BodyLength)
}
