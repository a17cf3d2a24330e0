package server

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/shaunagostinho/cansat-ground/internal/series"
	"github.com/shaunagostinho/cansat-ground/internal/session"
	"github.com/shaunagostinho/cansat-ground/pkg/logger"
)

// ErrConsoleStopped is returned by requests made after the console loop
// has exited.
var ErrConsoleStopped = errors.New("console stopped")

// Console is the presentation context. Its Run loop is the only code that
// touches the time-series buffer: each record is appended there before it
// is broadcast to the display.
type Console struct {
	sess *session.Session
	hub  *hub
	log  *logger.Logger

	buf    *series.Buffer
	snap   atomic.Pointer[series.Snapshot]
	resets chan chan struct{}
	done   chan struct{}
}

// NewConsole creates a console over sess with a history of capacity
// samples per channel.
func NewConsole(sess *session.Session, capacity int, h *hub, log *logger.Logger) *Console {
	c := &Console{
		sess:   sess,
		hub:    h,
		log:    log,
		buf:    series.New(capacity),
		resets: make(chan chan struct{}),
		done:   make(chan struct{}),
	}
	c.snap.Store(c.buf.Snapshot())
	return c
}

// Run consumes session events until ctx is cancelled or the session
// closes its event channel.
func (c *Console) Run(ctx context.Context) {
	defer close(c.done)
	events := c.sess.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ack := <-c.resets:
			c.buf.Reset()
			c.snap.Store(c.buf.Snapshot())
			c.hub.broadcast(Frame{Type: "series_reset"})
			close(ack)
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.handle(ev)
		}
	}
}

func (c *Console) handle(ev session.Event) {
	switch ev.Kind {
	case session.EventRecord:
		c.buf.PushRecord(ev.Record)
		c.snap.Store(c.buf.Snapshot())

		rec := ev.Record
		at := ev.ReceivedAt
		c.hub.broadcast(Frame{Type: "telemetry", Seq: ev.Seq, Record: &rec, ReceivedAt: &at})

	case session.EventDecodeError:
		c.hub.broadcast(Frame{Type: "decode_error", Raw: ev.Frame, Message: errText(ev.Err)})

	case session.EventTransportError:
		c.log.Debug("transport error", logger.Error(ev.Err))
		c.hub.broadcast(Frame{Type: "transport_error", Message: errText(ev.Err)})

	case session.EventSinkError:
		c.hub.broadcast(Frame{Type: "sink_error", Message: ev.Sink + ": " + errText(ev.Err)})

	case session.EventConnection, session.EventRecording:
		st := c.sess.Status()
		c.hub.broadcast(Frame{Type: "status", Status: &st, Message: errText(ev.Err)})
	}
}

// Snapshot returns the latest published history. It is safe to call from
// any goroutine.
func (c *Console) Snapshot() *series.Snapshot {
	return c.snap.Load()
}

// Reset clears the history on the console goroutine and waits for it.
func (c *Console) Reset(ctx context.Context) error {
	ack := make(chan struct{})
	select {
	case c.resets <- ack:
	case <-c.done:
		return ErrConsoleStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until Run has returned or timeout elapses.
func (c *Console) Wait(timeout time.Duration) bool {
	select {
	case <-c.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
