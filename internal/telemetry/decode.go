package telemetry

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shaunagostinho/cansat-ground/internal/fault"
)

// Field indices in the downlink frame.
const (
	fieldTeamID = iota
	fieldHour
	fieldMinute
	fieldSecond
	fieldPacket
	fieldMode
	fieldState
	fieldAltitude
	fieldTemperature
	fieldPressure
	fieldVoltage
	fieldGyroRoll
	fieldGyroPitch
	fieldGyroYaw
	fieldAccelRoll
	fieldAccelPitch
	fieldAccelYaw
	fieldMagRoll
	fieldMagPitch
	fieldMagYaw
	fieldRotationRate
	fieldGPSHour
	fieldGPSMinute
	fieldGPSSecond
	fieldGPSAltitude
	fieldLatitude
	fieldLongitude
	fieldGPSSats
)

var fieldNames = [FieldCount]string{
	"team_id", "hh", "mm", "ss", "pkt_no", "mode", "state",
	"altitude", "temperature", "pressure", "voltage",
	"gyro_r", "gyro_p", "gyro_y", "accel_r", "accel_p", "accel_y",
	"mag_r", "mag_p", "mag_y", "rotation_rate",
	"gps_hh", "gps_mm", "gps_ss", "gps_altitude", "latitude", "longitude", "gps_sats",
}

// RejectError describes why a frame did not decode. It wraps
// fault.ErrDecodeRejected.
type RejectError struct {
	Reason string
	Field  int // offending field index, -1 when the frame as a whole is bad
	Value  string
}

func (e *RejectError) Error() string {
	if e.Field < 0 {
		return fmt.Sprintf("%v: %s", fault.ErrDecodeRejected, e.Reason)
	}
	return fmt.Sprintf("%v: field %d (%s) %q: %s",
		fault.ErrDecodeRejected, e.Field, fieldNames[e.Field], e.Value, e.Reason)
}

func (e *RejectError) Unwrap() error { return fault.ErrDecodeRejected }

// Decode parses one frame. Fields are whitespace-trimmed. Frames with
// fewer than FieldCount fields, or any numeric field that does not parse,
// are rejected with a *RejectError and no Record. Fields beyond FieldCount
// are ignored.
func Decode(frame string) (Record, error) {
	parts := Fields(frame)
	if len(parts) < FieldCount {
		return Record{}, &RejectError{
			Reason: fmt.Sprintf("short frame: %d of %d fields", len(parts), FieldCount),
			Field:  -1,
		}
	}
	d := decoder{parts: parts}
	rec := Record{
		TeamID:      parts[fieldTeamID],
		MissionTime: d.timeOfDay(fieldHour),
		PacketCount: d.integer(fieldPacket),
		Mode:        parts[fieldMode],
		State:       parts[fieldState],

		Altitude:    d.float(fieldAltitude),
		Temperature: d.float(fieldTemperature),
		Pressure:    d.float(fieldPressure),
		Voltage:     d.float(fieldVoltage),

		Gyro:  d.axes(fieldGyroRoll),
		Accel: d.axes(fieldAccelRoll),
		Mag:   d.axes(fieldMagRoll),

		RotationRate: parts[fieldRotationRate],
		GPSTime:      d.timeOfDay(fieldGPSHour),
		GPSAltitude:  parts[fieldGPSAltitude],
		Latitude:     parts[fieldLatitude],
		Longitude:    parts[fieldLongitude],
		GPSSats:      parts[fieldGPSSats],
	}
	if d.err != nil {
		return Record{}, d.err
	}
	return rec, nil
}

// Fields splits a frame on commas and trims each field. An empty frame
// has no fields.
func Fields(frame string) []string {
	if frame == "" {
		return nil
	}
	parts := strings.Split(frame, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// decoder keeps the first parse failure so Decode can build the record in
// one expression and still reject atomically.
type decoder struct {
	parts []string
	err   *RejectError
}

func (d *decoder) float(i int) float64 {
	if d.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(d.parts[i], 64)
	if err != nil {
		d.err = &RejectError{Reason: "not a number", Field: i, Value: d.parts[i]}
		return 0
	}
	return v
}

func (d *decoder) integer(i int) int {
	if d.err != nil {
		return 0
	}
	v, err := strconv.Atoi(d.parts[i])
	if err != nil {
		d.err = &RejectError{Reason: "not an integer", Field: i, Value: d.parts[i]}
		return 0
	}
	return v
}

func (d *decoder) axes(i int) Axes {
	return Axes{Roll: d.float(i), Pitch: d.float(i + 1), Yaw: d.float(i + 2)}
}

func (d *decoder) timeOfDay(i int) TimeOfDay {
	return TimeOfDay{Hour: d.integer(i), Minute: d.integer(i + 1), Second: d.integer(i + 2)}
}
