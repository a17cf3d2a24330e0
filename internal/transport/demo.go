package transport

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Demo simulates a CanSat on the other end of the radio link. It emits one
// telemetry frame per interval and reacts to uplink commands, which makes
// the console usable without hardware.
type Demo struct {
	mu       sync.Mutex
	interval time.Duration
	poll     time.Duration
	closed   bool

	pending  []byte
	nextAt   time.Time
	start    time.Time
	packets  int
	teamID   string
	mode     string // "F" flight, "S" simulation
	simArmed bool
	telemOn  bool
	simAlt   float64
	altZero  float64
	clockOff time.Duration // applied by ST
}

// NewDemo creates a simulated payload emitting 5 frames per second.
func NewDemo(cfg Config) *Demo {
	poll := cfg.ReadTimeout
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	now := time.Now()
	return &Demo{
		interval: 200 * time.Millisecond,
		poll:     poll,
		nextAt:   now,
		start:    now,
		teamID:   "1001",
		mode:     "F",
		telemOn:  true,
	}
}

func (d *Demo) Name() string { return "demo payload" }

func (d *Demo) Read(p []byte) (int, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return 0, ErrClosed
	}
	if len(d.pending) == 0 {
		now := time.Now()
		if now.Before(d.nextAt) {
			wait := d.nextAt.Sub(now)
			if wait > d.poll {
				wait = d.poll
			}
			d.mu.Unlock()
			time.Sleep(wait)
			return 0, nil
		}
		d.nextAt = now.Add(d.interval)
		if !d.telemOn {
			d.mu.Unlock()
			return 0, nil
		}
		d.pending = append(d.pending, d.frame(now)...)
	}
	n := copy(p, d.pending)
	d.pending = d.pending[n:]
	d.mu.Unlock()
	return n, nil
}

// Write accepts newline-terminated uplink commands.
func (d *Demo) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, ErrClosed
	}
	for _, line := range strings.Split(string(p), "\n") {
		d.handleCommand(strings.TrimSpace(line))
	}
	return len(p), nil
}

func (d *Demo) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

// handleCommand applies CMD,<team>,<verb>,... to the simulated payload.
func (d *Demo) handleCommand(cmd string) {
	parts := strings.Split(cmd, ",")
	if len(parts) < 3 || parts[0] != "CMD" {
		return
	}
	args := parts[3:]
	arg := func(i int) string {
		if i < len(args) {
			return args[i]
		}
		return ""
	}
	switch parts[2] {
	case "CX":
		d.telemOn = arg(0) == "ON"
	case "SIM":
		switch arg(0) {
		case "ENABLE":
			d.simArmed = true
		case "ACTIVATE":
			if d.simArmed {
				d.mode = "S"
			}
		case "DISABLE":
			d.simArmed = false
			d.mode = "F"
		}
	case "SIMP":
		if d.mode == "S" && arg(0) == "ALT" {
			if v, err := strconv.ParseFloat(arg(1), 64); err == nil {
				d.simAlt = v
			}
		}
	case "CAL":
		d.altZero = d.altitude(time.Now())
	case "ST":
		if t, err := time.Parse("15:04:05", arg(0)); err == nil {
			now := time.Now().UTC()
			want := time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
			d.clockOff = want.Sub(now)
		}
	}
}

// altitude follows a 120 s launch/ascent/descent cycle peaking at 700 m.
func (d *Demo) altitude(now time.Time) float64 {
	if d.mode == "S" {
		return d.simAlt
	}
	t := math.Mod(now.Sub(d.start).Seconds(), 120)
	switch {
	case t < 10:
		return 0
	case t < 40:
		return 700 * math.Sin((t-10)/30*math.Pi/2)
	case t < 110:
		return 700 * (1 - (t-40)/70)
	default:
		return 0
	}
}

func (d *Demo) state(now time.Time, alt float64) string {
	t := math.Mod(now.Sub(d.start).Seconds(), 120)
	switch {
	case t < 10:
		return "LAUNCH_PAD"
	case t < 40:
		return "ASCEND"
	case t < 110 && alt > 1:
		return "DESCEND"
	default:
		return "LANDED"
	}
}

func (d *Demo) frame(now time.Time) []byte {
	d.packets++
	// Occasional radio noise exercises the reader's resilience.
	if d.packets%97 == 0 {
		return []byte{0xff, 0xfe, '#', '#', 0xc3, '\n'}
	}

	alt := d.altitude(now) - d.altZero
	mission := now.UTC().Add(d.clockOff)
	gps := now.UTC()
	pressure := 101.325 * math.Pow(1-2.25577e-5*alt, 5.25588)
	jitter := func(scale float64) float64 { return (rand.Float64()*2 - 1) * scale }

	fields := []string{
		d.teamID,
		fmt.Sprintf("%02d", mission.Hour()),
		fmt.Sprintf("%02d", mission.Minute()),
		fmt.Sprintf("%02d", mission.Second()),
		strconv.Itoa(d.packets),
		d.mode,
		d.state(now, alt),
		fmt.Sprintf("%.1f", alt),
		fmt.Sprintf("%.1f", 21.0-alt*0.0065+jitter(0.2)),
		fmt.Sprintf("%.2f", pressure),
		fmt.Sprintf("%.2f", 7.4+jitter(0.05)),
		fmt.Sprintf("%.2f", jitter(5)),
		fmt.Sprintf("%.2f", jitter(5)),
		fmt.Sprintf("%.2f", jitter(20)),
		fmt.Sprintf("%.3f", jitter(0.5)),
		fmt.Sprintf("%.3f", jitter(0.5)),
		fmt.Sprintf("%.3f", 9.81+jitter(0.5)),
		fmt.Sprintf("%.3f", 0.2+jitter(0.01)),
		fmt.Sprintf("%.3f", -0.1+jitter(0.01)),
		fmt.Sprintf("%.3f", 0.45+jitter(0.01)),
		fmt.Sprintf("%.1f", math.Abs(jitter(30))),
		fmt.Sprintf("%02d", gps.Hour()),
		fmt.Sprintf("%02d", gps.Minute()),
		fmt.Sprintf("%02d", gps.Second()),
		fmt.Sprintf("%.1f", alt+jitter(2)),
		fmt.Sprintf("%.4f", 40.1+alt*1e-6),
		fmt.Sprintf("%.4f", -75.2+alt*1e-6),
		"8",
	}
	return []byte(strings.Join(fields, ",") + "\r\n")
}
