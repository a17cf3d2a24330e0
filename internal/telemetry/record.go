// Package telemetry turns the payload's line-oriented ASCII downlink into
// typed records.
package telemetry

import "fmt"

// FieldCount is the number of comma-separated fields in a telemetry frame.
const FieldCount = 28

// TimeOfDay is an uninterpreted hh:mm:ss triple as sent by the payload.
// No calendar validation is applied; 99 is a legal minute.
type TimeOfDay struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
	Second int `json:"second"`
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// Axes holds one roll/pitch/yaw triple from the IMU.
type Axes struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Record is one fully decoded telemetry sample. A Record only exists if
// every field decoded; there is no partially valid record.
type Record struct {
	TeamID      string    `json:"teamId"`
	MissionTime TimeOfDay `json:"missionTime"`
	PacketCount int       `json:"packetCount"`
	Mode        string    `json:"mode"`  // F flight, S simulation
	State       string    `json:"state"` // mission phase label

	Altitude    float64 `json:"altitude"`    // m
	Temperature float64 `json:"temperature"` // °C
	Pressure    float64 `json:"pressure"`    // kPa
	Voltage     float64 `json:"voltage"`     // V

	Gyro  Axes `json:"gyro"`
	Accel Axes `json:"accel"`
	Mag   Axes `json:"mag"`

	// Passed through as sent.
	RotationRate string    `json:"rotationRate"`
	GPSTime      TimeOfDay `json:"gpsTime"`
	GPSAltitude  string    `json:"gpsAltitude"`
	Latitude     string    `json:"latitude"`
	Longitude    string    `json:"longitude"`
	GPSSats      string    `json:"gpsSats"`
}
