package db_test

import (
	"strings"
	"testing"

	"github.com/bramburn/oem-edie/pkg/oem/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDocument = `{
  "enums": [
    {
      "name": "Time_Status",
      "values": [
        {"name": "UNKNOWN", "value": 20},
        {"name": "FINESTEERING", "value": 180}
      ]
    }
  ],
  "messages": [
    {
      "name": "BESTPOS",
      "messageId": 42,
      "latestMessageCrc": 0,
      "fields": {
        "1": [
          {"name": "sol_status", "type": "ENUM", "enumId": "Time_Status"},
          {"name": "lat", "type": "DOUBLE", "conversionString": "%.8lf"},
          {"name": "lon", "type": "DOUBLE", "conversionString": "%.8lf"}
        ]
      }
    },
    {
      "name": "RAWEPHEM",
      "messageId": 7,
      "latestMessageCrc": 0,
      "fields": {
        "1": [
          {"name": "prn", "type": "UINT32"},
          {
            "name": "subframes",
            "type": "FIXED_LENGTH_ARRAY",
            "arrayLength": 3,
            "fields": [
              {"name": "word", "type": "UINT32", "arrayLength": 10}
            ]
          }
        ]
      }
    }
  ]
}`

func TestLoadParsesMessagesAndEnums(t *testing.T) {
	database, err := db.Load(strings.NewReader(sampleDocument))
	require.NoError(t, err)

	bestpos, ok := database.MessageByID(42)
	require.True(t, ok)
	assert.Equal(t, "BESTPOS", bestpos.Name)

	byName, ok := database.MessageByName("BESTPOS")
	require.True(t, ok)
	assert.Same(t, bestpos, byName)

	version, schema := bestpos.LatestVersion()
	assert.Equal(t, 1, version)
	require.Len(t, schema, 3)
	assert.Equal(t, "sol_status", schema[0].Name)
	assert.Equal(t, db.DataTypeEnum, schema[0].Type)
	assert.Equal(t, "Time_Status", schema[0].EnumName)
	assert.Equal(t, byte('f'), schema[1].Conversion.Spec)
	assert.Equal(t, 8, schema[1].Conversion.Precision)

	statusEnum, ok := database.Enum("Time_Status")
	require.True(t, ok)
	name, ok := statusEnum.ByValue(180)
	require.True(t, ok)
	assert.Equal(t, "FINESTEERING", name)
	value, ok := statusEnum.ByName("UNKNOWN")
	require.True(t, ok)
	assert.Equal(t, int32(20), value)

	rawephem, ok := database.MessageByName("RAWEPHEM")
	require.True(t, ok)
	_, schema = rawephem.LatestVersion()
	require.Len(t, schema, 2)
	assert.Equal(t, db.DataTypeFixedArray, schema[1].Type)
	assert.Equal(t, 3, schema[1].ArrayLength)
	require.Len(t, schema[1].Fields, 1)
	assert.Equal(t, "word", schema[1].Fields[0].Name)
}

func TestLoadRejectsDuplicateMessageID(t *testing.T) {
	doc := `{"messages": [
		{"name": "A", "messageId": 1, "fields": {"1": []}},
		{"name": "B", "messageId": 1, "fields": {"1": []}}
	]}`
	_, err := db.Load(strings.NewReader(doc))
	assert.Error(t, err)
}

func TestLoadRejectsUnknownFieldType(t *testing.T) {
	doc := `{"messages": [
		{"name": "A", "messageId": 1, "fields": {"1": [{"name": "x", "type": "NOT_A_TYPE"}]}}
	]}`
	_, err := db.Load(strings.NewReader(doc))
	assert.Error(t, err)
}

func TestLoadFlagsStaleCrc(t *testing.T) {
	doc := `{"messages": [
		{"name": "A", "messageId": 1, "latestMessageCrc": 12345, "fields": {"1": [{"name": "x", "type": "UINT32"}]}}
	]}`
	database, err := db.Load(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Contains(t, database.Stale, "A")
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	_, err := db.Load(strings.NewReader("{not json"))
	assert.Error(t, err)
}
