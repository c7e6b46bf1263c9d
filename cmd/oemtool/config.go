package main

import (
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig is the optional YAML config oemtool loads before applying
// flag overrides (spec SPEC_FULL.md "[AMBIENT] Configuration"):
// framer ring capacity, payload_only, frame_json, report_unknown_bytes
// and filter predicates, following the flag-plus-struct pattern of the
// teacher's app/convbin/converter/options.go.
type fileConfig struct {
	RingCapacity       int    `yaml:"ring_capacity"`
	PayloadOnly        bool   `yaml:"payload_only"`
	FrameJSON          bool   `yaml:"frame_json"`
	ReportUnknownBytes bool   `yaml:"report_unknown_bytes"`
	EnableRangeCmp     bool   `yaml:"enable_rangecmp"`
	EncodeFormat       string `yaml:"encode_format"`

	Filter filterConfig `yaml:"filter"`
}

type filterConfig struct {
	// LowerTime/UpperTime are calendar timestamps ("2006/01/02
	// 15:04:05", the teacher's gtime.Str2Time layout), converted to
	// GPS week/milliseconds-of-week via pkg/gnssgo/gtime so the config
	// file can name a window the way convbin's -ts/-te flags do,
	// instead of requiring the caller to compute a raw week number.
	// LowerWeek/LowerMillis/UpperWeek/UpperMillis take precedence when
	// also set, for callers that already have the raw values.
	LowerTime   string `yaml:"lower_time"`
	UpperTime   string `yaml:"upper_time"`
	LowerWeek   int    `yaml:"lower_week"`
	LowerMillis int    `yaml:"lower_millis"`
	UpperWeek   int    `yaml:"upper_week"`
	UpperMillis int    `yaml:"upper_millis"`

	InvertWindow     bool     `yaml:"invert_window"`
	DecimationMillis int      `yaml:"decimation_millis"`
	TimeStatuses     []string `yaml:"time_statuses"`
	ExcludeNMEA      bool     `yaml:"exclude_nmea"`
	OnlyNMEA         bool     `yaml:"only_nmea"`
}

func loadFileConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
