//go:build unix

package transport

import (
	"errors"
	"fmt"
	"testing"

	"go.bug.st/serial"
	"golang.org/x/sys/unix"
)

// readErrPort is a serial.Port whose reads always fail with err.
type readErrPort struct {
	serial.Port
	err error
}

func (p *readErrPort) Read([]byte) (int, error) { return 0, p.err }

func TestSerialRead_UnpluggedIsClosed(t *testing.T) {
	tests := []struct {
		err    error
		closed bool
	}{
		{unix.EIO, true},
		{unix.ENXIO, true},
		{fmt.Errorf("read /dev/ttyUSB0: %w", unix.ENODEV), true},
		{unix.EAGAIN, false},
		{errors.New("framing error"), false},
	}
	for _, tt := range tests {
		s := &Serial{portPath: "/dev/ttyUSB0", baudRate: 9600, port: &readErrPort{err: tt.err}}
		_, err := s.Read(make([]byte, 8))
		if got := errors.Is(err, ErrClosed); got != tt.closed {
			t.Errorf("Read() with %v: error = %v, closed = %v, want %v", tt.err, err, got, tt.closed)
		}
	}
}
