package stream

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bramburn/oem-edie/pkg/oem/oemlog"
	"go.bug.st/serial"
)

const (
	defaultBaudRate = 9600
	defaultDataBits = 8
	defaultStopBits = 1
	defaultTimeout  = 100 * time.Millisecond
)

// SerialSource is a live byte-source over a serial port, the transport
// a real OEM receiver is read from outside of file-replay testing.
// Adapted from the teacher's OpenSerial/SerialComm, dropping the
// '#port' TCP-forwarding suffix (no network transport, spec §1) and
// the mutex (the core's single-producer/single-consumer model, spec
// §5, never shares a source across goroutines).
type SerialSource struct {
	port serial.Port
	log  oemlog.Tracer
}

// OpenSerialSource opens a serial port. path follows the teacher's
// port[:brate[:bsize[:parity[:stopb]]]] shorthand (e.g. "/dev/ttyUSB0:115200:8:N:1").
func OpenSerialSource(path string, log oemlog.Tracer) (*SerialSource, error) {
	if log == nil {
		log = oemlog.Discard
	}
	portName, mode := parseSerialPath(path)
	log.Tracet(3, "OpenSerialSource: port=%s baud=%d", portName, mode.BaudRate)

	p, err := serial.Open(portName, mode)
	if err != nil {
		log.Tracet(1, "OpenSerialSource: %s: %v", portName, err)
		return nil, fmt.Errorf("oem/stream: open serial %s: %w", portName, err)
	}
	if err := p.SetReadTimeout(defaultTimeout); err != nil {
		log.Tracet(2, "OpenSerialSource: SetReadTimeout: %v", err)
	}
	return &SerialSource{port: p, log: log}, nil
}

func parseSerialPath(path string) (string, *serial.Mode) {
	brate, bsize, stopb := defaultBaudRate, defaultDataBits, defaultStopBits
	parity := 'N'

	portName := path
	if idx := strings.Index(path, ":"); idx > 0 {
		portName = path[:idx]
		parts := strings.Split(path[idx+1:], ":")
		if len(parts) > 0 && parts[0] != "" {
			if v, err := strconv.Atoi(parts[0]); err == nil {
				brate = v
			}
		}
		if len(parts) > 1 && parts[1] != "" {
			if v, err := strconv.Atoi(parts[1]); err == nil {
				bsize = v
			}
		}
		if len(parts) > 2 && parts[2] != "" {
			parity = rune(parts[2][0])
		}
		if len(parts) > 3 && parts[3] != "" {
			if v, err := strconv.Atoi(parts[3]); err == nil {
				stopb = v
			}
		}
	}

	mode := &serial.Mode{
		BaudRate: brate,
		DataBits: bsize,
		StopBits: serial.OneStopBit,
		Parity:   serial.NoParity,
	}
	if stopb == 2 {
		mode.StopBits = serial.TwoStopBits
	}
	switch parity {
	case 'E', 'e':
		mode.Parity = serial.EvenParity
	case 'O', 'o':
		mode.Parity = serial.OddParity
	}
	return portName, mode
}

func (s *SerialSource) Read(buf []byte) (int, error) {
	n, err := s.port.Read(buf)
	s.log.Tracet(5, "SerialSource.Read: n=%d err=%v", n, err)
	return n, err
}

func (s *SerialSource) Close() error {
	s.log.Tracet(3, "SerialSource.Close")
	return s.port.Close()
}
