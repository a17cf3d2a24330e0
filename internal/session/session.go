// Package session owns the ground station's runtime state: the payload
// link, the ingest task that decodes frames, the fan-out to sinks and the
// flight recorder.
package session

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shaunagostinho/cansat-ground/internal/fault"
	"github.com/shaunagostinho/cansat-ground/internal/recorder"
	"github.com/shaunagostinho/cansat-ground/internal/transport"
	"github.com/shaunagostinho/cansat-ground/internal/uplink"
	"github.com/shaunagostinho/cansat-ground/pkg/logger"
)

// Config tunes the ingest pipeline.
type Config struct {
	// Open creates the transport on Connect. Defaults to transport.Open.
	Open transport.Opener
	// RetryBackoff is the pause after a transient read error.
	RetryBackoff time.Duration
	// JoinTimeout bounds how long Disconnect waits for the ingest task
	// before releasing the transport regardless.
	JoinTimeout time.Duration
	// WriteTimeout bounds an uplink write.
	WriteTimeout time.Duration
	// PollInterval is the transport read timeout.
	PollInterval time.Duration
	// MaxFrame bounds an unterminated frame in bytes.
	MaxFrame int
}

func (c *Config) applyDefaults() {
	if c.Open == nil {
		c.Open = transport.Open
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 100 * time.Millisecond
	}
	if c.JoinTimeout <= 0 {
		c.JoinTimeout = 2 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 100 * time.Millisecond
	}
}

// Status is a snapshot of the session for the console.
type Status struct {
	Connection ConnectionState `json:"connection"`
	Port       string          `json:"port,omitempty"`
	Recording  recorder.Status `json:"recording"`
	Decoded    uint64          `json:"decoded"`
	Rejected   uint64          `json:"rejected"`
	ReadErrors uint64          `json:"readErrors"`
}

// Session is the single owner of connection and recording state. The
// presentation context requests transitions through its methods and
// observes the pipeline through Events.
type Session struct {
	cfg      Config
	log      *logger.Logger
	recorder *recorder.Recorder

	dispatcher *Dispatcher
	events     *queue[Event]
	eventCh    chan Event
	pumpDone   chan struct{}
	closing    chan struct{}

	mu    sync.Mutex
	state ConnectionState
	link  *link

	// recMu serialises recording transitions.
	recMu sync.Mutex

	decoded    atomic.Uint64
	rejected   atomic.Uint64
	readErrors atomic.Uint64

	closeOnce sync.Once
}

// New creates a disconnected session. rec is the flight recorder fed by
// the recorder sink; it starts Idle.
func New(cfg Config, rec *recorder.Recorder, log *logger.Logger) *Session {
	cfg.applyDefaults()
	s := &Session{
		cfg:      cfg,
		log:      log.Named("session"),
		recorder: rec,
		events:   newQueue[Event](),
		eventCh:  make(chan Event),
		pumpDone: make(chan struct{}),
		closing:  make(chan struct{}),
	}
	s.dispatcher = NewDispatcher(s.sinkFailed,
		&displaySink{events: s.events},
		&recorderSink{rec: rec},
	)
	go s.pump()
	return s
}

// Events delivers pipeline notifications in the order they were raised.
// The pipeline never blocks on a slow reader; undelivered events are
// queued. The channel is closed by Close, which discards whatever the
// reader has not taken by then.
func (s *Session) Events() <-chan Event {
	return s.eventCh
}

func (s *Session) pump() {
	defer close(s.pumpDone)
	defer close(s.eventCh)
	for {
		ev, ok := s.events.pop()
		if !ok {
			return
		}
		select {
		case s.eventCh <- ev:
		case <-s.closing:
			return
		}
	}
}

func (s *Session) emit(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	s.events.push(ev)
}

// State returns the connection state.
func (s *Session) State() ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status returns connection, recording and counter state.
func (s *Session) Status() Status {
	s.mu.Lock()
	st := Status{Connection: s.state}
	if s.link != nil {
		st.Port = s.link.name
	}
	s.mu.Unlock()
	st.Recording = s.recorder.Status()
	st.Decoded = s.decoded.Load()
	st.Rejected = s.rejected.Load()
	st.ReadErrors = s.readErrors.Load()
	return st
}

// Connect opens a transport and starts the ingest task. It requires the
// session to be Disconnected.
func (s *Session) Connect(tc transport.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Disconnected {
		return fmt.Errorf("%w: already connected to %s", fault.ErrInvalidStateTransition, s.link.name)
	}
	if tc.ReadTimeout <= 0 {
		tc.ReadTimeout = s.cfg.PollInterval
	}

	t, err := s.cfg.Open(tc)
	if err != nil {
		s.log.Warn("connect failed", logger.String("port", tc.PortPath), logger.Error(err))
		return fmt.Errorf("%w: %v", fault.ErrTransportOpenFailed, err)
	}

	l := newLink(t)
	s.link = l
	s.state = Connected
	go s.ingest(l)
	go l.writeLoop()

	s.log.Info("connected", logger.String("port", l.name))
	s.emit(Event{Kind: EventConnection, Connection: Connected, Port: l.name})
	return nil
}

// Disconnect stops the ingest task at its next poll boundary and releases
// the transport. It waits at most JoinTimeout for the task; past that the
// transport is closed regardless. Recording is not affected. An error
// from closing the transport is returned, but the session is Disconnected
// either way.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	if s.state != Connected {
		s.mu.Unlock()
		return fmt.Errorf("%w: not connected", fault.ErrInvalidStateTransition)
	}
	l := s.link
	s.link = nil
	s.state = Disconnected
	s.mu.Unlock()

	l.stop()
	select {
	case <-l.done:
	case <-time.After(s.cfg.JoinTimeout):
		s.log.Warn("ingest task did not stop in time, releasing transport",
			logger.String("port", l.name),
			logger.Duration("timeout", s.cfg.JoinTimeout),
		)
	}
	closeErr := l.release()

	s.log.Info("disconnected", logger.String("port", l.name))
	s.emit(Event{Kind: EventConnection, Connection: Disconnected, Port: l.name})
	if closeErr != nil {
		return fmt.Errorf("close %s: %w", l.name, closeErr)
	}
	return nil
}

// linkLost handles a transport that went away without Disconnect.
func (s *Session) linkLost(l *link, cause error) {
	s.mu.Lock()
	if s.link != l {
		s.mu.Unlock()
		return
	}
	s.link = nil
	s.state = Disconnected
	s.mu.Unlock()

	l.stop()
	l.release()
	s.log.Error("link lost", logger.String("port", l.name), logger.Error(cause))
	s.emit(Event{Kind: EventTransportError, Err: cause})
	s.emit(Event{Kind: EventConnection, Connection: Disconnected, Port: l.name})
}

// Send writes an uplink command followed by the line terminator. It fails
// with fault.ErrNotConnected when no link is open. There is no
// acknowledgement or retry.
func (s *Session) Send(cmd string) error {
	s.mu.Lock()
	l := s.link
	s.mu.Unlock()
	if l == nil {
		return fault.ErrNotConnected
	}

	if err := l.write(uplink.Encode(cmd), s.cfg.WriteTimeout); err != nil {
		s.log.Warn("uplink failed", logger.String("cmd", cmd), logger.Error(err))
		return err
	}
	s.log.Info("uplink", logger.String("cmd", cmd))
	return nil
}

// StartRecording opens a new flight log in dir. Only records dispatched
// after it returns are logged there.
func (s *Session) StartRecording(dir string) (string, error) {
	s.recMu.Lock()
	defer s.recMu.Unlock()

	if s.recorder.State() == recorder.Recording {
		return "", fmt.Errorf("%w: already recording", fault.ErrInvalidStateTransition)
	}
	// Rows of an earlier session still queued go to that session, not this one.
	<-s.dispatcher.SetLogSession(0, recorderSinkName)

	path, err := s.recorder.Start(dir)
	if err != nil {
		return "", err
	}
	s.dispatcher.Enable(recorderSinkName)
	s.dispatcher.SetLogSession(s.recorder.Generation(), "")
	s.emit(Event{Kind: EventRecording, Recording: s.recorder.Status()})
	return path, nil
}

// StopRecording closes the active flight log after every record
// dispatched while it was open has been written.
func (s *Session) StopRecording() error {
	s.recMu.Lock()
	defer s.recMu.Unlock()

	if s.recorder.State() == recorder.Recording {
		<-s.dispatcher.SetLogSession(0, recorderSinkName)
	}
	err := s.recorder.Stop()
	if err == nil {
		s.emit(Event{Kind: EventRecording, Recording: s.recorder.Status()})
	}
	return err
}

func (s *Session) sinkFailed(sink string, err error) {
	s.log.Error("sink deactivated", logger.String("sink", sink), logger.Error(err))
	if sink == recorderSinkName {
		s.emit(Event{Kind: EventRecording, Recording: s.recorder.Status(), Err: err})
		return
	}
	s.emit(Event{Kind: EventSinkError, Sink: sink, Err: err})
}

// Close disconnects, stops recording, drains the sinks and closes the
// event channel.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.State() == Connected {
			if err := s.Disconnect(); err != nil {
				s.log.Warn("disconnect failed", logger.Error(err))
			}
		}
		s.dispatcher.Close()
		if err := s.recorder.Close(); err != nil {
			s.log.Warn("recorder close failed", logger.Error(err))
		}
		s.events.close()
		close(s.closing)
		<-s.pumpDone
	})
}
