package filter_test

import (
	"testing"

	"github.com/bramburn/oem-edie/pkg/oem"
	"github.com/bramburn/oem-edie/pkg/oem/filter"
	"github.com/stretchr/testify/assert"
)

// TestDoFilteringTimeAndStatus exercises spec §8 scenario S5: a time
// window plus an accepted time-status set, applied to messages
// spanning three weeks and three time statuses.
func TestDoFilteringTimeAndStatus(t *testing.T) {
	f := filter.New(filter.Config{
		TimeWindow: &filter.Window{
			Lower: filter.Time{Week: 2200, Milliseconds: 0},
			Upper: filter.Time{Week: 2200, Milliseconds: 86400 * 1000},
		},
		TimeStatuses: map[oem.TimeStatus]struct{}{
			oem.TimeStatusFine:         {},
			oem.TimeStatusFineSteering: {},
		},
	})

	cases := []struct {
		name string
		meta oem.MetaDataStruct
		want bool
	}{
		{"in window, fine", oem.MetaDataStruct{Week: 2200, Milliseconds: 1000, TimeStatus: oem.TimeStatusFine}, true},
		{"in window, finesteering", oem.MetaDataStruct{Week: 2200, Milliseconds: 86400000, TimeStatus: oem.TimeStatusFineSteering}, true},
		{"in window, coarse rejected by status", oem.MetaDataStruct{Week: 2200, Milliseconds: 1000, TimeStatus: oem.TimeStatusCoarse}, false},
		{"wrong week rejected", oem.MetaDataStruct{Week: 2201, Milliseconds: 1000, TimeStatus: oem.TimeStatusFine}, false},
		{"before window rejected", oem.MetaDataStruct{Week: 2199, Milliseconds: 999999, TimeStatus: oem.TimeStatusFine}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, f.DoFiltering(tc.meta))
		})
	}
}

func TestDoFilteringDecimation(t *testing.T) {
	f := filter.New(filter.Config{DecimationMillis: 1000})
	assert.True(t, f.DoFiltering(oem.MetaDataStruct{Milliseconds: 2000}))
	assert.False(t, f.DoFiltering(oem.MetaDataStruct{Milliseconds: 2500}))
}

func TestDoFilteringIDFormatSource(t *testing.T) {
	f := filter.New(filter.Config{
		IDs: map[filter.IDKey]struct{}{
			{ID: 42, Format: oem.HeaderFormatBinary, Source: oem.MeasurementSourcePrimary}: {},
		},
	})
	assert.True(t, f.DoFiltering(oem.MetaDataStruct{MessageID: 42, Format: oem.HeaderFormatBinary, MeasurementSource: oem.MeasurementSourcePrimary}))
	assert.False(t, f.DoFiltering(oem.MetaDataStruct{MessageID: 42, Format: oem.HeaderFormatASCII, MeasurementSource: oem.MeasurementSourcePrimary}))
	assert.False(t, f.DoFiltering(oem.MetaDataStruct{MessageID: 7, Format: oem.HeaderFormatBinary, MeasurementSource: oem.MeasurementSourcePrimary}))
}

func TestDoFilteringNameFormatSource(t *testing.T) {
	f := filter.New(filter.Config{
		Names: map[filter.NameKey]struct{}{
			{Name: "BESTPOS", Format: oem.HeaderFormatASCII, Source: oem.MeasurementSourcePrimary}: {},
		},
	})
	assert.True(t, f.DoFiltering(oem.MetaDataStruct{MessageName: "BESTPOS", Format: oem.HeaderFormatASCII, MeasurementSource: oem.MeasurementSourcePrimary}))
	assert.False(t, f.DoFiltering(oem.MetaDataStruct{MessageName: "VERSION", Format: oem.HeaderFormatASCII, MeasurementSource: oem.MeasurementSourcePrimary}))
}

func TestDoFilteringNMEAPolicy(t *testing.T) {
	nmeaMeta := oem.MetaDataStruct{Format: oem.HeaderFormatNMEA}
	binMeta := oem.MetaDataStruct{Format: oem.HeaderFormatBinary}

	exclude := filter.New(filter.Config{NMEA: filter.NMEAExclude})
	assert.False(t, exclude.DoFiltering(nmeaMeta))
	assert.True(t, exclude.DoFiltering(binMeta))

	only := filter.New(filter.Config{NMEA: filter.NMEAOnly})
	assert.True(t, only.DoFiltering(nmeaMeta))
	assert.False(t, only.DoFiltering(binMeta))

	allow := filter.New(filter.Config{})
	assert.True(t, allow.DoFiltering(nmeaMeta))
	assert.True(t, allow.DoFiltering(binMeta))
}

func TestDoFilteringInvertedWindow(t *testing.T) {
	f := filter.New(filter.Config{
		TimeWindow: &filter.Window{
			Lower:  filter.Time{Week: 2200, Milliseconds: 0},
			Upper:  filter.Time{Week: 2200, Milliseconds: 1000},
			Invert: true,
		},
	})
	assert.False(t, f.DoFiltering(oem.MetaDataStruct{Week: 2200, Milliseconds: 500}))
	assert.True(t, f.DoFiltering(oem.MetaDataStruct{Week: 2200, Milliseconds: 2000}))
}

func TestDoFilteringNoPredicatesPassesEverything(t *testing.T) {
	f := filter.New(filter.Config{})
	assert.True(t, f.DoFiltering(oem.MetaDataStruct{}))
}
