package stream

import "bytes"

// MemorySource serves bytes already held in memory, used by tests and
// by tooling that has already read a whole capture into a []byte.
type MemorySource struct {
	r *bytes.Reader
}

func NewMemorySource(data []byte) *MemorySource {
	return &MemorySource{r: bytes.NewReader(data)}
}

func (s *MemorySource) Read(buf []byte) (int, error) {
	return s.r.Read(buf)
}

// MemorySink accumulates written bytes for inspection, used by tests
// that assert on encoder output without a temp file.
type MemorySink struct {
	buf bytes.Buffer
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Write(p []byte) (int, error) {
	return s.buf.Write(p)
}

func (s *MemorySink) Bytes() []byte {
	return s.buf.Bytes()
}
