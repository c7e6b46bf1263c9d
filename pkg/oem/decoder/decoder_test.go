package decoder_test

import (
	"encoding/binary"
	"math"
	"strings"
	"testing"

	"github.com/bramburn/oem-edie/pkg/oem"
	"github.com/bramburn/oem-edie/pkg/oem/db"
	"github.com/bramburn/oem-edie/pkg/oem/decoder"
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

func TestDecodeBinaryBestPos(t *testing.T) {
	database := loadDB(t)
	def, ok := database.MessageByName("BESTPOS")
	require.True(t, ok)
	_, schema := def.LatestVersion()

	body := make([]byte, 0, 32)
	enumBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(enumBuf, 0)
	body = append(body, enumBuf...)
	body = append(body, 0, 0, 0, 0) // pad so the double starts on its 8-byte boundary

	latBuf := make([]byte, 8)
	binary.LittleEndian.PutUint64(latBuf, math.Float64bits(51.0447))
	body = append(body, latBuf...)

	countBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(countBuf, 2)
	body = append(body, countBuf...)
	v1 := make([]byte, 4)
	binary.LittleEndian.PutUint32(v1, 111)
	v2 := make([]byte, 4)
	binary.LittleEndian.PutUint32(v2, 222)
	body = append(body, v1...)
	body = append(body, v2...)

	dec := decoder.New(database, nil)
	fields, err := dec.Decode(body, oem.HeaderFormatBinary, schema)
	require.NoError(t, err)
	require.Len(t, fields, 3)
	assert.EqualValues(t, 0, fields[0].Int)
	assert.InDelta(t, 51.0447, fields[1].Float, 1e-9)
	require.Len(t, fields[2].Elements, 2)
	assert.EqualValues(t, 111, fields[2].Elements[0].Uint)
	assert.EqualValues(t, 222, fields[2].Elements[1].Uint)
}

func TestDecodeBinaryRejectsBadEnumValue(t *testing.T) {
	database := loadDB(t)
	def, _ := database.MessageByName("BESTPOS")
	_, schema := def.LatestVersion()

	body := make([]byte, 16)
	binary.LittleEndian.PutUint32(body[0:4], 99) // not a member of Sol_Status

	dec := decoder.New(database, nil)
	_, err := dec.Decode(body, oem.HeaderFormatBinary, schema)
	assert.Error(t, err)
	assert.Equal(t, oem.StatusMalformedInput, oem.StatusOf(err))
}

func TestDecodeASCIIBestPos(t *testing.T) {
	database := loadDB(t)
	def, _ := database.MessageByName("BESTPOS")
	_, schema := def.LatestVersion()

	body := "SOL_COMPUTED,51.0447,2,111,222"
	dec := decoder.New(database, nil)
	fields, err := dec.Decode([]byte(body), oem.HeaderFormatASCII, schema)
	require.NoError(t, err)
	require.Len(t, fields, 3)
	assert.EqualValues(t, 0, fields[0].Int)
	assert.InDelta(t, 51.0447, fields[1].Float, 1e-9)
	require.Len(t, fields[2].Elements, 2)
	assert.EqualValues(t, 111, fields[2].Elements[0].Uint)
}

func TestDecodeASCIIVarArrayExceedsMax(t *testing.T) {
	database := loadDB(t)
	def, _ := database.MessageByName("BESTPOS")
	_, schema := def.LatestVersion()

	body := "SOL_COMPUTED,51.0447,99,1"
	dec := decoder.New(database, nil)
	_, err := dec.Decode([]byte(body), oem.HeaderFormatASCII, schema)
	assert.Error(t, err)
}
