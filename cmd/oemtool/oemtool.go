/*------------------------------------------------------------------------------
* oemtool.go : decode/re-encode an OEM telemetry byte stream
*
* The worked example for pkg/oem, in the spirit of the teacher's
* app/convbin/convbin.go: a thin flag-driven CLI over the library
* (spec §1 excludes command-line examples from the core, but the
* teacher always ships one demonstrating its own core, so this repo
* does too). Pipes a file or serial byte source through
* parser.FileParser and writes each decoded message back out in the
* requested wire format.
*-----------------------------------------------------------------------------*/
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/bramburn/oem-edie/pkg/gnssgo/gtime"
	"github.com/bramburn/oem-edie/pkg/gnssgo/util"
	"github.com/bramburn/oem-edie/pkg/oem"
	"github.com/bramburn/oem-edie/pkg/oem/db"
	"github.com/bramburn/oem-edie/pkg/oem/filter"
	"github.com/bramburn/oem-edie/pkg/oem/framer"
	"github.com/bramburn/oem-edie/pkg/oem/oemlog"
	"github.com/bramburn/oem-edie/pkg/oem/parser"
	"github.com/bramburn/oem-edie/pkg/oem/stream"
)

// serialOpenRetries/serialOpenBackoffMs bound how long -serial waits for
// a USB-serial device to finish enumerating after being plugged in
// before giving up, the way a field technician re-running convbin by
// hand would just retry. Uses the teacher's util.TickGet/Sleepms rather
// than time.Sleep directly, matching pkg/gnssgo's own retry idiom.
const (
	serialOpenRetries   = 5
	serialOpenBackoffMs = 200
)

func openSerialWithRetry(path string, log oemlog.Tracer) (*stream.SerialSource, error) {
	start := util.TickGet()
	var lastErr error
	for attempt := 1; attempt <= serialOpenRetries; attempt++ {
		s, err := stream.OpenSerialSource(path, log)
		if err == nil {
			return s, nil
		}
		lastErr = err
		log.Tracet(2, "openSerialWithRetry: attempt %d/%d failed after %dms: %v", attempt, serialOpenRetries, util.TickGet()-start, err)
		if attempt < serialOpenRetries {
			util.Sleepms(serialOpenBackoffMs)
		}
	}
	return nil, lastErr
}

const PRGNAME = "OEMTOOL"

var help = []string{
	"",
	" Synopsys",
	"",
	" oemtool -db schema.json [option ...] file",
	"",
	" Description",
	"",
	" Decode an OEM binary/ASCII/abbreviated-ASCII/NMEA telemetry stream and",
	" re-encode each message to the requested format, one line/frame at a time.",
	"",
	" Options [default]",
	"",
	"     file            input log file (or serial path with -serial)",
	"     -db path        message database JSON document (required)",
	"     -config path     optional YAML config (ring capacity, filter, ...)",
	"     -serial          treat file as a go.bug.st/serial port path",
	"     -out path        output file [stdout]",
	"     -format name     output format: binary|ascii|abbascii|json [ascii]",
	"     -payload-only    strip headers+CRC from re-encoded frames",
	"     -frame-json      recognize '{...}' payloads as framable JSON",
	"     -report-unknown  report skipped resync bytes as UNKNOWN frames",
	"     -rangecmp        expand RANGECMP/RANGECMP2/RANGECMP4/RANGECMP5 to RANGE",
	"     -trace level     logrus level: error|warn|info|debug|trace [warn]",
}

func printHelp() {
	for _, l := range help {
		fmt.Fprintln(os.Stderr, l)
	}
}

func formatFromName(name string) (oem.HeaderFormat, bool) {
	switch strings.ToLower(name) {
	case "binary", "bin":
		return oem.HeaderFormatBinary, true
	case "ascii":
		return oem.HeaderFormatASCII, true
	case "abbascii", "abb_ascii":
		return oem.HeaderFormatAbbASCII, true
	case "json":
		return oem.HeaderFormatJSON, true
	default:
		return oem.HeaderFormatUnknown, false
	}
}

func timeStatusFromName(name string) (oem.TimeStatus, bool) {
	switch strings.ToUpper(name) {
	case "APPROXIMATE":
		return oem.TimeStatusApproximate, true
	case "COARSE":
		return oem.TimeStatusCoarse, true
	case "FINE":
		return oem.TimeStatusFine, true
	case "FINESTEERING":
		return oem.TimeStatusFineSteering, true
	case "UNKNOWN":
		return oem.TimeStatusUnknown, true
	default:
		return oem.TimeStatusUnknown, false
	}
}

// resolveWindowTime prefers an explicit (week, ms) pair and falls back
// to parsing a calendar timestamp via the teacher's gtime package
// (gtime.Str2Time's "YYYY/MM/DD HH:MM:SS" layout), the same conversion
// convbin applies to its -ts/-te flags.
func resolveWindowTime(calendar string, week, ms int) filter.Time {
	if calendar != "" && week == 0 && ms == 0 {
		week, ms = gtime.Time2GpsWeekMs(gtime.Str2Time(calendar))
	}
	return filter.Time{Week: week, Milliseconds: ms}
}

func buildFilter(cfg filterConfig) *filter.Filter {
	fc := filter.Config{DecimationMillis: cfg.DecimationMillis}
	haveWindow := cfg.LowerTime != "" || cfg.UpperTime != "" ||
		cfg.UpperWeek != 0 || cfg.UpperMillis != 0 || cfg.LowerWeek != 0 || cfg.LowerMillis != 0
	if haveWindow {
		fc.TimeWindow = &filter.Window{
			Lower:  resolveWindowTime(cfg.LowerTime, cfg.LowerWeek, cfg.LowerMillis),
			Upper:  resolveWindowTime(cfg.UpperTime, cfg.UpperWeek, cfg.UpperMillis),
			Invert: cfg.InvertWindow,
		}
	}
	if len(cfg.TimeStatuses) > 0 {
		fc.TimeStatuses = make(map[oem.TimeStatus]struct{}, len(cfg.TimeStatuses))
		for _, name := range cfg.TimeStatuses {
			if ts, ok := timeStatusFromName(name); ok {
				fc.TimeStatuses[ts] = struct{}{}
			}
		}
	}
	switch {
	case cfg.ExcludeNMEA:
		fc.NMEA = filter.NMEAExclude
	case cfg.OnlyNMEA:
		fc.NMEA = filter.NMEAOnly
	}
	return filter.New(fc)
}

func run() int {
	dbPath := flag.String("db", "", searchHelp("-db"))
	configPath := flag.String("config", "", searchHelp("-config"))
	serialMode := flag.Bool("serial", false, searchHelp("-serial"))
	outPath := flag.String("out", "", searchHelp("-out"))
	formatName := flag.String("format", "ascii", searchHelp("-format"))
	payloadOnly := flag.Bool("payload-only", false, searchHelp("-payload-only"))
	frameJSON := flag.Bool("frame-json", false, searchHelp("-frame-json"))
	reportUnknown := flag.Bool("report-unknown", false, searchHelp("-report-unknown"))
	rangeCmp := flag.Bool("rangecmp", false, searchHelp("-rangecmp"))
	traceLevel := flag.String("trace", "warn", searchHelp("-trace"))
	flag.Usage = printHelp
	flag.Parse()

	if *dbPath == "" || flag.NArg() < 1 {
		printHelp()
		return 1
	}
	inputPath := flag.Arg(0)

	level, err := logrus.ParseLevel(*traceLevel)
	if err != nil {
		level = logrus.WarnLevel
	}
	baseLog := logrus.New()
	baseLog.SetLevel(level)
	log := oemlog.New(baseLog, logrus.Fields{"component": "oemtool"})

	fileCfg, err := loadFileConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: config: %v\n", PRGNAME, err)
		return 1
	}
	if *payloadOnly {
		fileCfg.PayloadOnly = true
	}
	if *frameJSON {
		fileCfg.FrameJSON = true
	}
	if *reportUnknown {
		fileCfg.ReportUnknownBytes = true
	}
	if *rangeCmp {
		fileCfg.EnableRangeCmp = true
	}
	formatSetOnCmdline := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "format" {
			formatSetOnCmdline = true
		}
	})
	if formatSetOnCmdline || fileCfg.EncodeFormat == "" {
		fileCfg.EncodeFormat = *formatName
	}

	schemaFile, err := os.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: opening database: %v\n", PRGNAME, err)
		return 1
	}
	defer schemaFile.Close()
	database, err := db.Load(schemaFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: loading database: %v\n", PRGNAME, err)
		return 1
	}

	var source stream.ByteSource
	if *serialMode {
		s, err := openSerialWithRetry(inputPath, log)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: opening serial port: %v\n", PRGNAME, err)
			return 1
		}
		defer s.Close()
		source = s
	} else {
		s, err := stream.OpenFileSource(inputPath, log)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: opening file: %v\n", PRGNAME, err)
			return 1
		}
		defer s.Close()
		source = s
	}

	var sink stream.ByteSink = os.Stdout
	if *outPath != "" {
		s, err := stream.CreateFileSink(*outPath, log)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: creating output: %v\n", PRGNAME, err)
			return 1
		}
		defer s.Close()
		sink = s
	}

	encodeFormat, ok := formatFromName(fileCfg.EncodeFormat)
	if !ok {
		fmt.Fprintf(os.Stderr, "%s: unrecognized -format %q\n", PRGNAME, fileCfg.EncodeFormat)
		return 1
	}

	fp := parser.NewFileParser(parser.Config{
		Database: database,
		Framer: framer.Config{
			Capacity:           fileCfg.RingCapacity,
			FrameJSON:          fileCfg.FrameJSON,
			PayloadOnly:        fileCfg.PayloadOnly,
			ReportUnknownBytes: fileCfg.ReportUnknownBytes,
		},
		Filter:         buildFilter(fileCfg.Filter),
		EnableRangeCmp: fileCfg.EnableRangeCmp,
		EncodeFormat:   encodeFormat,
	}, source, log)

	for {
		result, err := fp.Read()
		if err != nil {
			if oem.StatusOf(err) == oem.StatusStreamEmpty {
				return 0
			}
			log.Tracet(2, "oemtool: mid-stream error: %v", err)
			return 2
		}
		if len(result.Encoded) > 0 {
			if _, err := sink.Write(result.Encoded); err != nil {
				fmt.Fprintf(os.Stderr, "%s: write: %v\n", PRGNAME, err)
				return 2
			}
		}
	}
}

func searchHelp(key string) string {
	for _, v := range help {
		if strings.Contains(v, key) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func main() {
	os.Exit(run())
}
