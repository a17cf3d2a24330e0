// Package recorder archives decoded telemetry to CSV flight logs.
package recorder

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/shaunagostinho/cansat-ground/internal/fault"
	"github.com/shaunagostinho/cansat-ground/internal/telemetry"
	"github.com/shaunagostinho/cansat-ground/pkg/logger"
)

// Header is the fixed first row of every flight log.
var Header = []string{
	"Timestamp", "Team_ID", "Mission_Time", "Packet_Count", "Mode", "State",
	"Altitude_m", "Temperature_C", "Pressure_kPa", "Voltage_V",
	"Gyro_Roll", "Gyro_Pitch", "Gyro_Yaw", "Accel_Roll", "Accel_Pitch", "Accel_Yaw",
	"Mag_Roll", "Mag_Pitch", "Mag_Yaw", "Rotation_Rate", "GPS_Time",
	"GPS_Altitude", "GPS_Latitude", "GPS_Longitude", "GPS_Sats",
}

const (
	filePrefix      = "CanSat_Flight_"
	timestampLayout = "2006-01-02 15:04:05.000"
	maxNameAttempts = 100
)

// State is the recorder lifecycle state.
type State int

const (
	Idle State = iota
	Recording
)

func (s State) String() string {
	if s == Recording {
		return "recording"
	}
	return "idle"
}

// Status is a point-in-time view of the recorder for the console.
type Status struct {
	State   string    `json:"state"`
	Path    string    `json:"path,omitempty"`
	Rows    int       `json:"rows"`
	Bytes   uint64    `json:"bytes"`
	Size    string    `json:"size"`
	Started time.Time `json:"started,omitempty"`
}

// Recorder writes one CSV row per record while Recording. Every row is
// flushed and synced before Append returns.
type Recorder struct {
	mu  sync.Mutex
	log *logger.Logger
	now func() time.Time

	file    *os.File
	counter *countingWriter
	writer  *csv.Writer
	path    string
	rows    int
	started time.Time
	gen     uint64 // id of the current or most recent log session
}

// Entry is one record offered to the flight log.
type Entry struct {
	Record telemetry.Record
	// Frame is the trimmed wire text the record was decoded from. Columns
	// are logged as received when it is set.
	Frame      string
	ReceivedAt time.Time
}

// New creates an idle recorder.
func New(log *logger.Logger) *Recorder {
	return &Recorder{
		log: log.Named("recorder"),
		now: time.Now,
	}
}

// State returns the current lifecycle state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateLocked()
}

func (r *Recorder) stateLocked() State {
	if r.file != nil {
		return Recording
	}
	return Idle
}

// Generation identifies the active log session. Each Start begins a new
// one; 0 means Idle.
func (r *Recorder) Generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return 0
	}
	return r.gen
}

// Status reports the active file and counters.
func (r *Recorder) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := Status{State: r.stateLocked().String(), Size: humanize.Bytes(0)}
	if r.file != nil {
		st.Path = r.path
		st.Rows = r.rows
		st.Bytes = r.counter.n
		st.Size = humanize.Bytes(r.counter.n)
		st.Started = r.started
	}
	return st
}

// Start creates a new flight log in dir and writes the header. It returns
// the path of the new file. Starting while Recording is rejected with
// fault.ErrInvalidStateTransition; an unusable dir yields
// fault.ErrStorageUnavailable.
func (r *Recorder) Start(dir string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file != nil {
		return "", fmt.Errorf("%w: already recording to %s", fault.ErrInvalidStateTransition, r.path)
	}
	if dir == "" {
		return "", fmt.Errorf("%w: no storage location selected", fault.ErrStorageUnavailable)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("%w: mkdir %s: %v", fault.ErrStorageUnavailable, dir, err)
	}

	now := r.now()
	f, path, err := createUnique(dir, now)
	if err != nil {
		return "", fmt.Errorf("%w: %v", fault.ErrStorageUnavailable, err)
	}

	counter := &countingWriter{w: f}
	w := csv.NewWriter(counter)
	if err := writeRow(w, f, Header); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("%w: write header to %s: %v", fault.ErrStorageUnavailable, path, err)
	}

	r.file = f
	r.counter = counter
	r.writer = w
	r.path = path
	r.rows = 0
	r.started = now
	r.gen++

	r.log.Info("recording started", logger.String("path", path))
	return path, nil
}

// Stop closes the active flight log. Stopping while Idle is rejected with
// fault.ErrInvalidStateTransition.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return fmt.Errorf("%w: not recording", fault.ErrInvalidStateTransition)
	}
	path, rows := r.path, r.rows
	err := r.closeFile()
	r.log.Info("recording stopped",
		logger.String("path", path),
		logger.String("rows", humanize.Comma(int64(rows))),
	)
	if err != nil {
		return fmt.Errorf("%w: close %s: %v", fault.ErrStorageWriteFailed, path, err)
	}
	return nil
}

// Append writes e as one row of log session gen. A row for any session
// other than the active one is refused with fault.ErrInvalidStateTransition.
// On a write failure the recorder closes the file and returns to Idle; the
// returned error wraps fault.ErrStorageWriteFailed.
func (r *Recorder) Append(gen uint64, e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return fmt.Errorf("%w: not recording (row of log session %d)", fault.ErrInvalidStateTransition, gen)
	}
	if gen != r.gen {
		return fmt.Errorf("%w: row of log session %d offered to session %d", fault.ErrInvalidStateTransition, gen, r.gen)
	}
	if err := writeRow(r.writer, r.file, buildRow(e)); err != nil {
		path := r.path
		r.closeFile()
		r.log.Error("recording deactivated", logger.String("path", path), logger.Error(err))
		return fmt.Errorf("%w: %s: %v", fault.ErrStorageWriteFailed, path, err)
	}
	r.rows++
	return nil
}

// Close stops recording if active. Used on shutdown.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	return r.closeFile()
}

func (r *Recorder) closeFile() error {
	var errs []error
	if r.writer != nil {
		r.writer.Flush()
		errs = append(errs, r.writer.Error())
		r.writer = nil
	}
	if r.file != nil {
		errs = append(errs, r.file.Close())
		r.file = nil
	}
	r.counter = nil
	return errors.Join(errs...)
}

// writeRow writes, flushes and fsyncs a single row.
func writeRow(w *csv.Writer, f *os.File, row []string) error {
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Sync()
}

// createUnique creates CanSat_Flight_<stamp>.csv in dir, adding a _N suffix
// when a file of that name already exists.
func createUnique(dir string, now time.Time) (*os.File, string, error) {
	base := filePrefix + now.Format("20060102_150405")
	for i := 1; i <= maxNameAttempts; i++ {
		name := base + ".csv"
		if i > 1 {
			name = fmt.Sprintf("%s_%d.csv", base, i)
		}
		path := filepath.Join(dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", fmt.Errorf("create %s: %w", path, err)
		}
	}
	return nil, "", fmt.Errorf("no free file name for %s in %s", base, dir)
}

func buildRow(e Entry) []string {
	ts := e.ReceivedAt.Format(timestampLayout)
	if f := telemetry.Fields(e.Frame); len(f) >= telemetry.FieldCount {
		row := []string{ts, f[0], f[1] + ":" + f[2] + ":" + f[3]}
		row = append(row, f[4:21]...) // packet count through rotation rate
		row = append(row, f[21]+":"+f[22]+":"+f[23])
		return append(row, f[24:28]...)
	}

	rec := e.Record
	return []string{
		ts,
		rec.TeamID,
		rec.MissionTime.String(),
		strconv.Itoa(rec.PacketCount),
		rec.Mode,
		rec.State,
		formatFloat(rec.Altitude),
		formatFloat(rec.Temperature),
		formatFloat(rec.Pressure),
		formatFloat(rec.Voltage),
		formatFloat(rec.Gyro.Roll),
		formatFloat(rec.Gyro.Pitch),
		formatFloat(rec.Gyro.Yaw),
		formatFloat(rec.Accel.Roll),
		formatFloat(rec.Accel.Pitch),
		formatFloat(rec.Accel.Yaw),
		formatFloat(rec.Mag.Roll),
		formatFloat(rec.Mag.Pitch),
		formatFloat(rec.Mag.Yaw),
		rec.RotationRate,
		rec.GPSTime.String(),
		rec.GPSAltitude,
		rec.Latitude,
		rec.Longitude,
		rec.GPSSats,
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

type countingWriter struct {
	w io.Writer
	n uint64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += uint64(n)
	return n, err
}
