// Package rxconfig implements the RxConfig Handler (spec §4.6): some
// messages (the canonical example is RXCONFIG) wrap another, complete
// message as their payload — a "configuration echo" of whatever log
// or command the receiver is reporting on. The handler re-frames and
// re-decodes that embedded payload as an independent message.
package rxconfig

import (
	"github.com/bramburn/oem-edie/pkg/oem"
	"github.com/bramburn/oem-edie/pkg/oem/db"
	"github.com/bramburn/oem-edie/pkg/oem/decoder"
	"github.com/bramburn/oem-edie/pkg/oem/framer"
	"github.com/bramburn/oem-edie/pkg/oem/header"
	"github.com/bramburn/oem-edie/pkg/oem/oemlog"
)

// Result is the embedded message's own metadata, header record and
// field tree, returned alongside the outer message the caller already
// holds (spec §4.6: "returns both the outer metadata and the inner
// field tree").
type Result struct {
	InnerMeta   oem.MetaDataStruct
	InnerHeader header.Record
	InnerFields []decoder.FieldContainer
}

// Handler unwraps the embedded frame within a configuration-echo
// message's body. It runs a private Framer over just that body, so it
// shares no state with whatever Framer produced the outer frame.
type Handler struct {
	database *db.Database
	decoder  *decoder.Decoder
	log      oemlog.Tracer
}

// New constructs a Handler over database. log may be nil.
func New(database *db.Database, log oemlog.Tracer) *Handler {
	if log == nil {
		log = oemlog.Discard
	}
	return &Handler{database: database, decoder: decoder.New(database, log), log: log}
}

// Decode extracts and decodes the inner frame embedded in outerBody —
// the body span of an already-framed outer message (e.g. a binary
// RXCONFIGB's body, per spec §8 S4). An inner CRC mismatch is returned
// as an error wrapping oem.ErrCRCMismatch while the caller's own outer
// SUCCESS status (obtained from its own Framer.GetFrame call) is
// untouched, since this call never inspects it.
func (h *Handler) Decode(outerBody []byte) (Result, error) {
	inner := framer.New(framer.Config{Capacity: len(outerBody) + 64}, h.log)
	if _, status := inner.Write(outerBody); status != oem.StatusSuccess {
		return Result{}, oem.NewStatusError(status, "rxconfig: inner payload exceeds framer capacity")
	}

	scratch := make([]byte, len(outerBody)+64)
	n, status, meta := inner.GetFrame(scratch)
	switch status {
	case oem.StatusSuccess:
		// proceed to header/body decode below
	case oem.StatusCRCMismatch:
		h.log.Tracet(2, "rxconfig: inner frame CRC mismatch")
		return Result{InnerMeta: meta}, oem.NewStatusError(oem.StatusCRCMismatch, "rxconfig: inner frame failed CRC")
	default:
		return Result{}, oem.NewStatusError(oem.StatusMalformedInput, "rxconfig: no complete inner frame in payload (framer status %s)", status)
	}

	frame := scratch[:n]
	spans := oem.FrameSpans(frame, meta)
	rec, name, err := header.Decode(spans.Header(), meta.Format, h.database)
	if err != nil {
		return Result{InnerMeta: meta}, err
	}
	meta.MessageID = rec.MessageID
	meta.MessageName = name
	meta.Week = rec.Week
	meta.Milliseconds = rec.Milliseconds
	meta.TimeStatus = rec.TimeStatus
	meta.MeasurementSource = rec.MeasurementSource
	meta.Response = rec.Response

	def, ok := h.database.MessageByID(uint32(rec.MessageID))
	if !ok {
		return Result{InnerMeta: meta, InnerHeader: rec}, oem.NewStatusError(oem.StatusMissingDefinition, "rxconfig: inner message id %d not in database", rec.MessageID)
	}
	_, schema := def.LatestVersion()
	fields, err := h.decoder.Decode(spans.Body(), meta.Format, schema)
	if err != nil {
		return Result{InnerMeta: meta, InnerHeader: rec}, err
	}
	return Result{InnerMeta: meta, InnerHeader: rec, InnerFields: fields}, nil
}
