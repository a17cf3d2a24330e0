package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shaunagostinho/cansat-ground/internal/fault"
	"github.com/shaunagostinho/cansat-ground/internal/telemetry"
	"github.com/shaunagostinho/cansat-ground/internal/transport"
	"github.com/shaunagostinho/cansat-ground/pkg/logger"
)

// link is one open transport together with the goroutines that own it:
// the ingest task reads, the write loop serialises uplink writes. Nothing
// outside these goroutines touches the transport until release.
type link struct {
	t      transport.Transport
	name   string
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{} // closed when the ingest task exits
	writes chan writeRequest

	releaseOnce sync.Once
	releaseErr  error
}

type writeRequest struct {
	data   []byte
	result chan error
}

func newLink(t transport.Transport) *link {
	ctx, cancel := context.WithCancel(context.Background())
	return &link{
		t:      t,
		name:   t.Name(),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		writes: make(chan writeRequest),
	}
}

// stop asks both goroutines to exit at their next poll boundary.
func (l *link) stop() { l.cancel() }

// release closes the transport exactly once.
func (l *link) release() error {
	l.releaseOnce.Do(func() {
		l.releaseErr = l.t.Close()
	})
	return l.releaseErr
}

func (l *link) writeLoop() {
	for {
		select {
		case <-l.ctx.Done():
			return
		case req := <-l.writes:
			_, err := l.t.Write(req.data)
			req.result <- err
		}
	}
}

// write hands data to the write loop and waits for the result.
func (l *link) write(data []byte, timeout time.Duration) error {
	req := writeRequest{data: data, result: make(chan error, 1)}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case l.writes <- req:
	case <-l.ctx.Done():
		return fault.ErrNotConnected
	case <-timer.C:
		return fmt.Errorf("%w: timed out after %v", fault.ErrTransportWriteFailed, timeout)
	}

	select {
	case err := <-req.result:
		if err != nil {
			return fmt.Errorf("%w: %v", fault.ErrTransportWriteFailed, err)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("%w: timed out after %v", fault.ErrTransportWriteFailed, timeout)
	}
}

// ingest is the background task: poll the transport, frame, decode,
// dispatch. Transient read errors are reported and retried after
// RetryBackoff; only cancellation or a closed transport ends the loop.
func (s *Session) ingest(l *link) {
	defer close(l.done)
	log := s.log.Named("ingest").With(logger.String("port", l.name))
	fr := telemetry.NewFrameReader(l.t, s.cfg.MaxFrame)

	for l.ctx.Err() == nil {
		frames, err := fr.Poll()
		for _, f := range frames {
			s.handleFrame(log, f)
		}
		if err == nil {
			continue
		}

		switch {
		case errors.Is(err, fault.ErrDecodeRejected):
			s.rejected.Add(1)
			log.Debug("frame rejected", logger.Error(err))
			s.emit(Event{Kind: EventDecodeError, Err: err})

		case errors.Is(err, transport.ErrClosed):
			if l.ctx.Err() == nil {
				s.linkLost(l, err)
			}
			return

		default:
			s.readErrors.Add(1)
			err = fmt.Errorf("%w: %v", fault.ErrTransportReadError, err)
			log.Warn("read failed, retrying", logger.Error(err), logger.Duration("backoff", s.cfg.RetryBackoff))
			s.emit(Event{Kind: EventTransportError, Err: err})

			select {
			case <-l.ctx.Done():
			case <-time.After(s.cfg.RetryBackoff):
			}
		}
	}
}

func (s *Session) handleFrame(log *logger.Logger, frame string) {
	text := strings.TrimSpace(frame)
	if text == "" {
		return
	}
	rec, err := telemetry.Decode(text)
	if err != nil {
		s.rejected.Add(1)
		log.Debug("frame rejected", logger.Error(err))
		s.emit(Event{Kind: EventDecodeError, Err: err, Frame: text})
		return
	}
	s.dispatcher.Dispatch(rec, text, time.Now())
	s.decoded.Add(1)
}
