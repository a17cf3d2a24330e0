package transport

import (
	"errors"
	"fmt"
	"time"
)

// ErrClosed is returned by Read and Write once the transport has been
// closed. The ingest loop treats it as permanent and exits.
var ErrClosed = errors.New("transport closed")

// Transport is a byte-oriented link to the payload.
//
// Read must never block indefinitely: it returns whatever arrived within
// the configured poll interval, or 0, nil when nothing did.
type Transport interface {
	// Name returns a human-readable description of the link.
	Name() string
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	// Close releases the underlying handle. It is safe to call more than once.
	Close() error
}

// Config selects and parameterises a transport.
type Config struct {
	Type        string        `yaml:"type" json:"type"`          // "serial" or "demo"
	PortPath    string        `yaml:"port_path" json:"portPath"` // e.g. /dev/ttyUSB0
	BaudRate    int           `yaml:"baud_rate" json:"baudRate"`
	ReadTimeout time.Duration `yaml:"-" json:"-"` // poll interval
}

// Opener opens a transport for the given config.
type Opener func(cfg Config) (Transport, error)

// Open is the default Opener.
func Open(cfg Config) (Transport, error) {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 100 * time.Millisecond
	}
	switch cfg.Type {
	case "", "serial":
		s, err := OpenSerial(cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "demo":
		return NewDemo(cfg), nil
	default:
		return nil, fmt.Errorf("unknown transport type %q", cfg.Type)
	}
}
