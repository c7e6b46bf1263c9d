package stream

import (
	"os"

	"github.com/bramburn/oem-edie/pkg/oem/oemlog"
)

// FileSource reads frame bytes from a plain file, the transport
// FileParser uses by default (spec §4.8). Adapted from the teacher's
// OpenStreamFile, stripped of the time-tag/replay-speed/swap-interval
// options that only apply to the teacher's RTKLIB-style log playback.
type FileSource struct {
	f   *os.File
	log oemlog.Tracer
}

// OpenFileSource opens path for reading. log may be nil, in which case
// the source logs nothing (oemlog.Discard).
func OpenFileSource(path string, log oemlog.Tracer) (*FileSource, error) {
	if log == nil {
		log = oemlog.Discard
	}
	f, err := os.Open(path)
	if err != nil {
		log.Tracet(1, "OpenFileSource: %s: %v", path, err)
		return nil, err
	}
	log.Tracet(3, "OpenFileSource: opened %s", path)
	return &FileSource{f: f, log: log}, nil
}

func (s *FileSource) Read(buf []byte) (int, error) {
	n, err := s.f.Read(buf)
	s.log.Tracet(5, "FileSource.Read: n=%d err=%v", n, err)
	return n, err
}

func (s *FileSource) Close() error {
	s.log.Tracet(3, "FileSource.Close")
	return s.f.Close()
}

// FileSink writes re-encoded frames to a plain file, the counterpart
// used by cmd/oemtool's conversion output.
type FileSink struct {
	f   *os.File
	log oemlog.Tracer
}

func CreateFileSink(path string, log oemlog.Tracer) (*FileSink, error) {
	if log == nil {
		log = oemlog.Discard
	}
	f, err := os.Create(path)
	if err != nil {
		log.Tracet(1, "CreateFileSink: %s: %v", path, err)
		return nil, err
	}
	return &FileSink{f: f, log: log}, nil
}

func (s *FileSink) Write(buf []byte) (int, error) {
	n, err := s.f.Write(buf)
	s.log.Tracet(5, "FileSink.Write: n=%d err=%v", n, err)
	return n, err
}

func (s *FileSink) Close() error {
	s.log.Tracet(3, "FileSink.Close")
	return s.f.Close()
}
