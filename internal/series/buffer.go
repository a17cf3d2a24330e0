// Package series keeps the rolling per-channel history plotted by the console.
package series

import (
	"fmt"

	"github.com/shaunagostinho/cansat-ground/internal/telemetry"
)

// DefaultCapacity is the number of samples kept per channel.
const DefaultCapacity = 100

// Channel identifies one plotted quantity.
type Channel int

const (
	Altitude Channel = iota
	Voltage
	Pressure
	Temperature
	GyroRoll
	GyroPitch
	GyroYaw
	AccelRoll

	NumChannels
)

var channelNames = [NumChannels]string{
	"altitude", "voltage", "pressure", "temperature",
	"gyro_roll", "gyro_pitch", "gyro_yaw", "accel_roll",
}

func (c Channel) String() string {
	if c < 0 || c >= NumChannels {
		return fmt.Sprintf("channel(%d)", int(c))
	}
	return channelNames[c]
}

// Sample is one lockstep set of channel values.
type Sample [NumChannels]float64

// SampleOf extracts the plotted channels from a record.
func SampleOf(rec telemetry.Record) Sample {
	return Sample{
		Altitude:    rec.Altitude,
		Voltage:     rec.Voltage,
		Pressure:    rec.Pressure,
		Temperature: rec.Temperature,
		GyroRoll:    rec.Gyro.Roll,
		GyroPitch:   rec.Gyro.Pitch,
		GyroYaw:     rec.Gyro.Yaw,
		AccelRoll:   rec.Accel.Roll,
	}
}

// Buffer is a fixed-capacity FIFO ring per channel sharing one sample
// index. All channels advance together: one Push adds exactly one value
// to each channel and increments the index once.
//
// Buffer is not safe for concurrent use; it is owned by the presentation
// goroutine. Readers elsewhere use Snapshot copies.
type Buffer struct {
	capacity int
	index    []uint64
	values   [NumChannels][]float64
	head     int // position of the oldest sample
	size     int
	counter  uint64
}

// New allocates a buffer. capacity <= 0 selects DefaultCapacity.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	b := &Buffer{
		capacity: capacity,
		index:    make([]uint64, capacity),
	}
	for c := range b.values {
		b.values[c] = make([]float64, capacity)
	}
	return b
}

// Capacity returns the fixed per-channel capacity.
func (b *Buffer) Capacity() int { return b.capacity }

// Len returns the number of samples held.
func (b *Buffer) Len() int { return b.size }

// Push appends one sample, evicting the oldest when full, and returns the
// sample's index. Indices start at 1 and survive eviction.
func (b *Buffer) Push(s Sample) uint64 {
	b.counter++
	pos := (b.head + b.size) % b.capacity
	if b.size == b.capacity {
		pos = b.head
		b.head = (b.head + 1) % b.capacity
	} else {
		b.size++
	}
	b.index[pos] = b.counter
	for c := range b.values {
		b.values[c][pos] = s[c]
	}
	return b.counter
}

// PushRecord appends the plotted channels of rec.
func (b *Buffer) PushRecord(rec telemetry.Record) uint64 {
	return b.Push(SampleOf(rec))
}

// Reset empties every channel and restarts the sample index.
func (b *Buffer) Reset() {
	b.head, b.size, b.counter = 0, 0, 0
}

// Snapshot is an immutable copy of the buffer, oldest sample first.
type Snapshot struct {
	Capacity int                  `json:"capacity"`
	Index    []uint64             `json:"index"`
	Channels map[string][]float64 `json:"channels"`
}

// Values returns the history of one channel.
func (s *Snapshot) Values(c Channel) []float64 {
	return s.Channels[c.String()]
}

// Snapshot copies the current contents. The copy shares no memory with
// the buffer, so later pushes do not alter it.
func (b *Buffer) Snapshot() *Snapshot {
	snap := &Snapshot{
		Capacity: b.capacity,
		Index:    make([]uint64, b.size),
		Channels: make(map[string][]float64, NumChannels),
	}
	for i := 0; i < b.size; i++ {
		snap.Index[i] = b.index[(b.head+i)%b.capacity]
	}
	for c := Channel(0); c < NumChannels; c++ {
		vals := make([]float64, b.size)
		for i := 0; i < b.size; i++ {
			vals[i] = b.values[c][(b.head+i)%b.capacity]
		}
		snap.Channels[c.String()] = vals
	}
	return snap
}
