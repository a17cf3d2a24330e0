package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/shaunagostinho/cansat-ground/internal/telemetry"
)

// Delivery is one decoded record handed to a sink.
type Delivery struct {
	Seq        uint64 // dispatch order, starting at 1
	Record     telemetry.Record
	Frame      string // trimmed wire text
	ReceivedAt time.Time
	// LogSession is the recorder generation active when the record was
	// dispatched, 0 when nothing was recording.
	LogSession uint64

	fence chan struct{}
}

// Sink consumes decoded records. Consume is called from the sink's own
// goroutine, one delivery at a time, in dispatch order.
type Sink interface {
	Name() string
	Consume(d Delivery) error
}

// Dispatcher fans each record out to every active sink. Each sink has a
// dedicated worker with its own FIFO, so a slow or failing sink never
// delays the others or the caller of Dispatch.
//
// A sink whose Consume returns an error is deactivated and the error is
// passed to the error callback. Enable re-arms it.
type Dispatcher struct {
	mu         sync.Mutex
	seq        uint64
	logSession uint64
	workers []*worker
	onError func(sink string, err error)
	wg      sync.WaitGroup
}

type worker struct {
	sink   Sink
	queue  *queue[Delivery]
	active atomic.Bool
}

// NewDispatcher starts one worker per sink. onError may be nil.
func NewDispatcher(onError func(sink string, err error), sinks ...Sink) *Dispatcher {
	if onError == nil {
		onError = func(string, error) {}
	}
	d := &Dispatcher{onError: onError}
	for _, s := range sinks {
		w := &worker{sink: s, queue: newQueue[Delivery]()}
		w.active.Store(true)
		d.workers = append(d.workers, w)
		d.wg.Add(1)
		go d.run(w)
	}
	return d
}

// Dispatch enqueues rec for every active sink and returns its sequence
// number. It never blocks on a sink.
func (d *Dispatcher) Dispatch(rec telemetry.Record, frame string, receivedAt time.Time) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	del := Delivery{Seq: d.seq, Record: rec, Frame: frame, ReceivedAt: receivedAt, LogSession: d.logSession}
	for _, w := range d.workers {
		if w.active.Load() {
			w.queue.push(del)
		}
	}
	return d.seq
}

// SetLogSession changes the log session stamped on later deliveries. When
// drain names a sink, the returned channel is closed once that sink's
// worker has finished every delivery dispatched before the change;
// otherwise it is already closed.
func (d *Dispatcher) SetLogSession(id uint64, drain string) <-chan struct{} {
	fence := make(chan struct{})
	d.mu.Lock()
	defer d.mu.Unlock()
	d.logSession = id

	for _, w := range d.workers {
		if drain != "" && w.sink.Name() == drain {
			if w.queue.push(Delivery{fence: fence}) {
				return fence
			}
			break
		}
	}
	close(fence)
	return fence
}

// Enable re-activates a sink deactivated after an error. It reports
// whether a sink of that name exists.
func (d *Dispatcher) Enable(name string) bool {
	for _, w := range d.workers {
		if w.sink.Name() == name {
			w.active.Store(true)
			return true
		}
	}
	return false
}

// Active reports whether the named sink currently receives records.
func (d *Dispatcher) Active(name string) bool {
	for _, w := range d.workers {
		if w.sink.Name() == name {
			return w.active.Load()
		}
	}
	return false
}

// Pending returns the number of deliveries queued for the named sink.
func (d *Dispatcher) Pending(name string) int {
	for _, w := range d.workers {
		if w.sink.Name() == name {
			return w.queue.len()
		}
	}
	return 0
}

// Close stops accepting records, lets every worker drain its queue and
// waits for them to exit.
func (d *Dispatcher) Close() {
	for _, w := range d.workers {
		w.queue.close()
	}
	d.wg.Wait()
}

func (d *Dispatcher) run(w *worker) {
	defer d.wg.Done()
	for {
		del, ok := w.queue.pop()
		if !ok {
			return
		}
		if del.fence != nil {
			close(del.fence)
			continue
		}
		if !w.active.Load() {
			continue
		}
		if err := w.sink.Consume(del); err != nil {
			w.active.Store(false)
			d.onError(w.sink.Name(), err)
		}
	}
}
