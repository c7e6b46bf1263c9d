package encoder_test

import (
	"strings"
	"testing"

	"github.com/bramburn/oem-edie/pkg/oem"
	"github.com/bramburn/oem-edie/pkg/oem/bits"
	"github.com/bramburn/oem-edie/pkg/oem/db"
	"github.com/bramburn/oem-edie/pkg/oem/decoder"
	"github.com/bramburn/oem-edie/pkg/oem/encoder"
	"github.com/bramburn/oem-edie/pkg/oem/header"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDoc = `{
  "enums": [{"name": "Sol_Status", "values": [{"name": "SOL_COMPUTED", "value": 0}, {"name": "INSUFFICIENT_OBS", "value": 1}]}],
  "messages": [
    {"name": "BESTPOS", "messageId": 42, "fields": {"1": [
      {"name": "sol_status", "type": "ENUM", "enumId": "Sol_Status"},
      {"name": "lat", "type": "DOUBLE"},
      {"name": "count", "type": "VARIABLE_LENGTH_ARRAY", "arrayLength": 4, "fields": [{"name": "v", "type": "UINT32"}]}
    ]}}
  ]
}`

func loadDB(t *testing.T) *db.Database {
	t.Helper()
	database, err := db.Load(strings.NewReader(sampleDoc))
	require.NoError(t, err)
	return database
}

func sampleHeader() header.Record {
	return header.Record{
		MessageID:      42,
		Port:           0,
		Sequence:       0,
		IdleTime:       10,
		TimeStatus:     oem.TimeStatusFineSteering,
		Week:           2200,
		Milliseconds:   123456,
		ReceiverStatus: 0,
		Reserved:       0,
		SWVersion:      1,
	}
}

func TestEncodeDecodeBinaryRoundTrip(t *testing.T) {
	database := loadDB(t)
	def, ok := database.MessageByName("BESTPOS")
	require.True(t, ok)
	_, schema := def.LatestVersion()

	fields := []decoder.FieldContainer{
		{Def: &schema[0], Int: 0},
		{Def: &schema[1], Float: 51.0447},
		{Def: &schema[2], Elements: []decoder.FieldContainer{
			{Def: &schema[2].Fields[0], Uint: 111},
			{Def: &schema[2].Fields[0], Uint: 222},
		}},
	}

	enc := encoder.New(database, nil)
	frame, err := enc.Encode(sampleHeader(), "BESTPOS", fields, schema, oem.HeaderFormatBinary)
	require.NoError(t, err)
	require.True(t, len(frame) > header.BinaryHeaderMinLen)
	assert.Equal(t, byte(0xAA), frame[0])
	assert.Equal(t, byte(0x44), frame[1])
	assert.Equal(t, byte(0x12), frame[2])
	assert.Equal(t, byte(header.BinaryHeaderMinLen), frame[3])

	body := frame[header.BinaryHeaderMinLen : len(frame)-4]
	dec := decoder.New(database, nil)
	decoded, err := dec.Decode(body, oem.HeaderFormatBinary, schema)
	require.NoError(t, err)
	require.Len(t, decoded, 3)
	assert.EqualValues(t, 0, decoded[0].Int)
	assert.InDelta(t, 51.0447, decoded[1].Float, 1e-9)
	require.Len(t, decoded[2].Elements, 2)
	assert.EqualValues(t, 111, decoded[2].Elements[0].Uint)
	assert.EqualValues(t, 222, decoded[2].Elements[1].Uint)
}

func TestEncodeASCIIProducesValidChecksum(t *testing.T) {
	database := loadDB(t)
	def, _ := database.MessageByName("BESTPOS")
	_, schema := def.LatestVersion()

	fields := []decoder.FieldContainer{
		{Def: &schema[0], Int: 0},
		{Def: &schema[1], Float: 51.0447},
		{Def: &schema[2], Elements: []decoder.FieldContainer{
			{Def: &schema[2].Fields[0], Uint: 111},
			{Def: &schema[2].Fields[0], Uint: 222},
		}},
	}

	enc := encoder.New(database, nil)
	out, err := enc.Encode(sampleHeader(), "BESTPOS", fields, schema, oem.HeaderFormatASCII)
	require.NoError(t, err)
	s := string(out)
	assert.True(t, strings.HasPrefix(s, "#BESTPOSA,"))
	assert.Contains(t, s, "SOL_COMPUTED")
	assert.True(t, strings.HasSuffix(s, "\r\n"))

	star := strings.LastIndexByte(s, '*')
	require.True(t, star > 0)
	crcField := s[star+1 : len(s)-2]
	require.Len(t, crcField, 8)
	assert.Equal(t, bits.CRC32Hex([]byte(s[1:star])), crcField)

	semi := strings.IndexByte(s, ';')
	require.True(t, semi > 0)
	body := s[semi+1 : star]
	dec := decoder.New(database, nil)
	decoded, err := dec.Decode([]byte(body), oem.HeaderFormatASCII, schema)
	require.NoError(t, err)
	require.Len(t, decoded, 3)
	assert.EqualValues(t, 0, decoded[0].Int)
	assert.InDelta(t, 51.0447, decoded[1].Float, 1e-9)
}

func TestEncodeJSONProducesHeaderAndBody(t *testing.T) {
	database := loadDB(t)
	def, _ := database.MessageByName("BESTPOS")
	_, schema := def.LatestVersion()

	fields := []decoder.FieldContainer{
		{Def: &schema[0], Int: 0},
		{Def: &schema[1], Float: 51.0447},
		{Def: &schema[2], Elements: nil},
	}

	enc := encoder.New(database, nil)
	out, err := enc.Encode(sampleHeader(), "BESTPOS", fields, schema, oem.HeaderFormatJSON)
	require.NoError(t, err)
	s := string(out)
	assert.Contains(t, s, `"header"`)
	assert.Contains(t, s, `"body"`)
	assert.Contains(t, s, "SOL_COMPUTED")
}
