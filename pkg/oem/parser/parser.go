// Package parser implements the Parser / FileParser orchestrators
// (spec §4.8): thin pipelines wiring Framer -> Header Decoder ->
// Message Decoder -> optional RangeCmp expansion -> optional Filter ->
// Encoder. Parser owns everything but a byte source; FileParser adds
// one, pulling bytes from it as the internal loop needs more input.
package parser

import (
	"io"

	"github.com/google/uuid"

	"github.com/bramburn/oem-edie/pkg/oem"
	"github.com/bramburn/oem-edie/pkg/oem/db"
	"github.com/bramburn/oem-edie/pkg/oem/decoder"
	"github.com/bramburn/oem-edie/pkg/oem/encoder"
	"github.com/bramburn/oem-edie/pkg/oem/filter"
	"github.com/bramburn/oem-edie/pkg/oem/framer"
	"github.com/bramburn/oem-edie/pkg/oem/header"
	"github.com/bramburn/oem-edie/pkg/oem/oemlog"
	"github.com/bramburn/oem-edie/pkg/oem/rangecmp"
	"github.com/bramburn/oem-edie/pkg/oem/stream"
)

// scratchHeadroom is added to the framer's ring capacity when sizing
// the scratch buffer GetFrame writes into, so a full-ring frame never
// reports BUFFER_FULL purely from an off-by-a-few sizing mistake.
const scratchHeadroom = 64

// rangeCmpNames are the message names the RangeCmp Decompressor
// understands (spec §4.5).
var rangeCmpNames = map[string]bool{
	"RANGECMP":  true,
	"RANGECMP2": true,
	"RANGECMP4": true,
	"RANGECMP5": true,
}

// Config configures a Parser. Database is required; Filter,
// EncodeFormat (the zero value, HeaderFormatUnknown, disables
// re-encoding) and EnableRangeCmp are optional.
type Config struct {
	Database       *db.Database
	Framer         framer.Config
	Filter         *filter.Filter
	EnableRangeCmp bool
	EncodeFormat   oem.HeaderFormat
}

// Result is one decoded-and-optionally-re-encoded message.
type Result struct {
	Meta    oem.MetaDataStruct
	Header  header.Record
	Fields  []decoder.FieldContainer
	Range   *rangecmp.RangeMessage
	Encoded []byte
}

// Parser owns a Framer plus the Header/Message Decoder, optional
// RangeCmp Decompressor, optional Filter and Encoder, over one shared,
// read-only Database (spec §4.8, §5). It is single-owner like every
// other stateful component in this module.
type Parser struct {
	id uuid.UUID

	cfg      Config
	database *db.Database

	fr       *framer.Framer
	dec      *decoder.Decoder
	enc      *encoder.Encoder
	rangecmp *rangecmp.Decompressor

	scratch []byte
	log     oemlog.Tracer
}

// New constructs a Parser. log may be nil.
func New(cfg Config, log oemlog.Tracer) *Parser {
	if log == nil {
		log = oemlog.Discard
	}
	id := uuid.New()
	fieldLog := log
	capacity := cfg.Framer.Capacity
	if capacity <= 0 {
		capacity = framer.DefaultCapacity
	}
	cfg.Framer.Capacity = capacity

	p := &Parser{
		id:       id,
		cfg:      cfg,
		database: cfg.Database,
		fr:       framer.New(cfg.Framer, fieldLog),
		dec:      decoder.New(cfg.Database, fieldLog),
		enc:      encoder.New(cfg.Database, fieldLog),
		scratch:  make([]byte, capacity+scratchHeadroom),
		log:      fieldLog,
	}
	if cfg.EnableRangeCmp {
		p.rangecmp = rangecmp.New(fieldLog)
	}
	return p
}

// ID returns the parser_id minted for this instance, used to correlate
// log lines from multiple Parser/FileParser instances sharing one
// immutable Database (spec §5).
func (p *Parser) ID() uuid.UUID { return p.id }

// Write feeds bytes into the internal Framer's ring, for callers that
// pump their own byte source rather than using FileParser.
func (p *Parser) Write(b []byte) (int, oem.Status) {
	return p.fr.Write(b)
}

// Read extracts, decodes and (per Config) expands/filters/re-encodes
// the next frame already buffered via Write. It loops internally past
// resynchronization noise, CRC mismatches and messages the Filter
// rejects, matching spec §4.8's "loops internally until a frame passes
// the filter". It returns an error wrapping oem.StatusIncomplete (or
// IncompleteMoreData) when the caller must Write more bytes before
// another frame can be extracted — this is not itself a hard failure.
func (p *Parser) Read() (*Result, error) {
	for {
		n, status, meta := p.fr.GetFrame(p.scratch)
		switch status {
		case oem.StatusIncomplete, oem.StatusIncompleteMoreData:
			return nil, oem.NewStatusError(status, "parser: need more input")
		case oem.StatusBufferFull:
			return nil, oem.NewStatusError(status, "parser: frame exceeds scratch buffer")
		case oem.StatusUnknown:
			p.log.Tracet(2, "Parser.Read: skipped %d unknown bytes", n)
			continue
		case oem.StatusCRCMismatch:
			p.log.Tracet(2, "Parser.Read: CRC mismatch over %d bytes, resynchronizing", n)
			continue
		case oem.StatusSuccess:
			frame := make([]byte, n)
			copy(frame, p.scratch[:n])
			result, err := p.decodeFrame(frame, meta)
			if err != nil {
				p.log.Tracet(2, "Parser.Read: decode error: %v", err)
				continue
			}
			if p.cfg.Filter != nil && !p.cfg.Filter.DoFiltering(result.Meta) {
				continue
			}
			return result, nil
		default:
			continue
		}
	}
}

func (p *Parser) decodeFrame(frame []byte, meta oem.MetaDataStruct) (*Result, error) {
	if meta.Format == oem.HeaderFormatNMEA {
		// NMEA sentences are a pass-through family: the framer already
		// validated the checksum and resolved MessageName via
		// pkg/gnssgo/nmea, and there is no schema-database entry to
		// decode a body against, so the Header/Message Decoder never
		// runs for them.
		return &Result{Meta: meta, Encoded: append([]byte(nil), frame...)}, nil
	}

	spans := oem.FrameSpans(frame, meta)
	rec, name, err := header.Decode(spans.Header(), meta.Format, p.database)
	if err != nil {
		return nil, err
	}
	meta.MessageID = rec.MessageID
	meta.MessageName = name
	meta.Week = rec.Week
	meta.Milliseconds = rec.Milliseconds
	meta.TimeStatus = rec.TimeStatus
	meta.MeasurementSource = rec.MeasurementSource
	meta.Response = rec.Response

	def, ok := p.database.MessageByID(uint32(rec.MessageID))
	if !ok {
		return nil, oem.NewStatusError(oem.StatusMissingDefinition, "parser: message id %d not in database", rec.MessageID)
	}
	_, schema := def.LatestVersion()

	fields, err := p.dec.Decode(spans.Body(), meta.Format, schema)
	if err != nil {
		return nil, err
	}

	result := &Result{Meta: meta, Header: rec, Fields: fields}

	if p.rangecmp != nil && rangeCmpNames[name] {
		rm, err := p.rangecmp.Decompress(name, spans.Body())
		if err != nil {
			return nil, err
		}
		result.Range = &rm
	}

	if p.cfg.EncodeFormat != oem.HeaderFormatUnknown {
		encoded, err := p.enc.Encode(rec, name, fields, schema, p.cfg.EncodeFormat)
		if err != nil {
			return nil, err
		}
		result.Encoded = encoded
	}
	return result, nil
}

// FileParser additionally owns a byte source, pulling from it whenever
// the embedded Parser reports it needs more input (spec §4.8).
type FileParser struct {
	*Parser
	source stream.ByteSource
	chunk  []byte
	eof    bool
}

// NewFileParser constructs a FileParser reading from source.
func NewFileParser(cfg Config, source stream.ByteSource, log oemlog.Tracer) *FileParser {
	return &FileParser{
		Parser: New(cfg, log),
		source: source,
		chunk:  make([]byte, 4096),
	}
}

// Read pulls bytes from the source as needed and returns the next
// frame that decodes and passes the filter, or an error wrapping
// oem.StatusStreamEmpty once the source is exhausted and no further
// frame can be produced (spec §4.8: "source EOF terminates").
func (fp *FileParser) Read() (*Result, error) {
	for {
		result, err := fp.Parser.Read()
		if err == nil {
			return result, nil
		}
		status := oem.StatusOf(err)
		if status != oem.StatusIncomplete && status != oem.StatusIncompleteMoreData {
			return nil, err
		}
		if fp.eof {
			return nil, oem.NewStatusError(oem.StatusStreamEmpty, "file parser: source exhausted")
		}
		n, rerr := fp.source.Read(fp.chunk)
		if n > 0 {
			fp.Parser.Write(fp.chunk[:n])
		}
		if rerr != nil {
			if rerr != io.EOF {
				return nil, rerr
			}
			fp.eof = true
			if n == 0 {
				return nil, oem.NewStatusError(oem.StatusStreamEmpty, "file parser: source exhausted")
			}
		}
	}
}
