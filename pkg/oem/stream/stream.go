// Package stream provides the byte-source/byte-sink adapters Parser and
// FileParser sit on top of (spec §6: "file-stream I/O wrappers, treated
// as a read/write byte-source interface" — an external collaborator,
// not part of the decode core itself).
//
// Adapted from the teacher's pkg/gnssgo/stream package, trimmed to the
// three transports this spec actually needs (file, serial, memory);
// the teacher's TCP/NTRIP/UDP server and caster transports are out of
// scope (spec §1 non-goals: "no network transport").
package stream

import "io"

// ByteSource is the read side of the byte-source contract (spec §6:
// "read(buf) -> (n_read, eof)"). It is deliberately just io.Reader:
// Go's io.EOF already carries the "eof" signal the contract names, so
// no bespoke result type is needed.
type ByteSource interface {
	io.Reader
}

// ByteSink is the write side, used by Encoder output in round-trip
// re-encode tooling (cmd/oemtool).
type ByteSink interface {
	io.Writer
}

// ReadCloser and WriteCloser pair a ByteSource/ByteSink with a Close,
// for the file and serial adapters that own an OS resource. Callers
// that don't need to close (e.g. an in-memory buffer) can ignore it.
type ReadCloser interface {
	ByteSource
	io.Closer
}

type WriteCloser interface {
	ByteSink
	io.Closer
}
