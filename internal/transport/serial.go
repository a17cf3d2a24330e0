package transport

import (
	"errors"
	"fmt"
	"sync"

	"go.bug.st/serial"

	"github.com/shaunagostinho/cansat-ground/internal/fault"
)

// Serial is a Transport over a UART / USB serial radio.
type Serial struct {
	portPath string
	baudRate int
	port     serial.Port

	closeOnce sync.Once
	closeErr  error
}

// OpenSerial opens the port at 8N1 with the read timeout set to the poll
// interval, so Read returns at least every cfg.ReadTimeout.
func OpenSerial(cfg Config) (*Serial, error) {
	if cfg.PortPath == "" {
		return nil, fmt.Errorf("%w: no port selected", fault.ErrTransportOpenFailed)
	}
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 9600
	}
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(cfg.PortPath, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", fault.ErrTransportOpenFailed, cfg.PortPath, err)
	}
	if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("%w: %s: set timeout: %v", fault.ErrTransportOpenFailed, cfg.PortPath, err)
	}
	return &Serial{
		portPath: cfg.PortPath,
		baudRate: cfg.BaudRate,
		port:     port,
	}, nil
}

func (s *Serial) Name() string {
	return fmt.Sprintf("%s@%d", s.portPath, s.baudRate)
}

func (s *Serial) Read(p []byte) (int, error) {
	n, err := s.port.Read(p)
	if err != nil && isPortClosed(err) {
		return n, ErrClosed
	}
	return n, err
}

func (s *Serial) Write(p []byte) (int, error) {
	n, err := s.port.Write(p)
	if err != nil && isPortClosed(err) {
		return n, ErrClosed
	}
	return n, err
}

func (s *Serial) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.port.Close()
	})
	return s.closeErr
}

// isPortClosed reports errors after which the port will never read again:
// an explicit close, or the device being unplugged.
func isPortClosed(err error) bool {
	var pe *serial.PortError
	if errors.As(err, &pe) && pe.Code() == serial.PortClosed {
		return true
	}
	return deviceGone(err)
}
