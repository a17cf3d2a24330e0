package session

import "github.com/shaunagostinho/cansat-ground/internal/recorder"

const (
	displaySinkName  = "display"
	recorderSinkName = "recorder"
)

// displaySink hands records to the presentation context through the
// session's event queue. The presentation context updates the time-series
// buffer and then renders.
type displaySink struct {
	events *queue[Event]
}

func (s *displaySink) Name() string { return displaySinkName }

func (s *displaySink) Consume(d Delivery) error {
	s.events.push(Event{
		Kind:       EventRecord,
		At:         d.ReceivedAt,
		Seq:        d.Seq,
		Record:     d.Record,
		ReceivedAt: d.ReceivedAt,
	})
	return nil
}

// recorderSink appends records to the flight log of the session they were
// received in.
type recorderSink struct {
	rec *recorder.Recorder
}

func (s *recorderSink) Name() string { return recorderSinkName }

// Consume logs records received while a log session was active. Any
// failure, including a row arriving for a session that is no longer
// active, is returned and deactivates the sink.
func (s *recorderSink) Consume(d Delivery) error {
	if d.LogSession == 0 {
		return nil
	}
	return s.rec.Append(d.LogSession, recorder.Entry{
		Record:     d.Record,
		Frame:      d.Frame,
		ReceivedAt: d.ReceivedAt,
	})
}
