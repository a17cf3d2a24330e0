package session

import (
	"fmt"
	"time"

	"github.com/shaunagostinho/cansat-ground/internal/recorder"
	"github.com/shaunagostinho/cansat-ground/internal/telemetry"
)

// ConnectionState is the state of the payload link.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connected
)

func (c ConnectionState) String() string {
	if c == Connected {
		return "connected"
	}
	return "disconnected"
}

// MarshalText renders the state as its name in JSON.
func (c ConnectionState) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText parses a state name.
func (c *ConnectionState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "connected":
		*c = Connected
	case "disconnected":
		*c = Disconnected
	default:
		return fmt.Errorf("unknown connection state %q", text)
	}
	return nil
}

// EventKind identifies what an Event carries.
type EventKind int

const (
	// EventRecord carries a decoded record (Record, Seq, ReceivedAt).
	EventRecord EventKind = iota
	// EventDecodeError carries a rejected frame (Err, Frame).
	EventDecodeError
	// EventTransportError carries a read or link failure (Err).
	EventTransportError
	// EventConnection carries a connection state change (Connection, Port).
	EventConnection
	// EventRecording carries a recorder state change (Recording, Err on failure).
	EventRecording
	// EventSinkError carries a failure of a sink other than the recorder (Sink, Err).
	EventSinkError
)

func (k EventKind) String() string {
	switch k {
	case EventRecord:
		return "record"
	case EventDecodeError:
		return "decode_error"
	case EventTransportError:
		return "transport_error"
	case EventConnection:
		return "connection"
	case EventRecording:
		return "recording"
	case EventSinkError:
		return "sink_error"
	}
	return "unknown"
}

// Event is a notification from the ingest pipeline to the presentation
// context. Only the fields relevant to Kind are set.
type Event struct {
	Kind EventKind
	At   time.Time

	Seq        uint64
	Record     telemetry.Record
	ReceivedAt time.Time

	Frame string
	Sink  string
	Err   error

	Connection ConnectionState
	Port       string
	Recording  recorder.Status
}
