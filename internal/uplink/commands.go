// Package uplink builds operator commands for the payload.
//
// Commands are plain text lines. Delivery is fire-and-forget: the payload
// sends no acknowledgement and nothing here retries.
package uplink

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTeamID is the team identifier embedded in every command.
const DefaultTeamID = "1001"

// Terminator ends every uplink line.
const Terminator = "\n"

// ErrEmptyCommand is returned for blank free-form commands.
var ErrEmptyCommand = errors.New("empty command")

// SimMode is the argument to the SIM command.
type SimMode string

const (
	SimEnable   SimMode = "ENABLE"
	SimActivate SimMode = "ACTIVATE"
	SimDisable  SimMode = "DISABLE"
)

// SimParam is the quantity overridden by SIMP.
type SimParam string

const (
	SimAltitude    SimParam = "ALT"
	SimPressure    SimParam = "PRES"
	SimTemperature SimParam = "TEMP"
)

// Catalog builds the fixed command set for one team.
type Catalog struct {
	TeamID string
}

// NewCatalog returns a catalog for teamID, or DefaultTeamID when empty.
func NewCatalog(teamID string) Catalog {
	if teamID == "" {
		teamID = DefaultTeamID
	}
	return Catalog{TeamID: teamID}
}

func (c Catalog) cmd(args ...string) string {
	return "CMD," + c.TeamID + "," + strings.Join(args, ",")
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

// Telemetry switches the payload's downlink on or off (CX).
func (c Catalog) Telemetry(on bool) string { return c.cmd("CX", onOff(on)) }

// Mechanism switches the release mechanism on or off (MX).
func (c Catalog) Mechanism(on bool) string { return c.cmd("MX", onOff(on)) }

// Simulation changes simulation mode (SIM).
func (c Catalog) Simulation(mode SimMode) (string, error) {
	switch mode {
	case SimEnable, SimActivate, SimDisable:
		return c.cmd("SIM", string(mode)), nil
	}
	return "", fmt.Errorf("unknown simulation mode %q", mode)
}

// Calibrate zeroes the altitude reference (CAL).
func (c Catalog) Calibrate() string { return c.cmd("CAL") }

// SetTime sets the payload's mission clock to t's wall-clock time (ST).
func (c Catalog) SetTime(t time.Time) string {
	return c.cmd("ST", fmt.Sprintf("%02d:%02d:%02d", t.Hour(), t.Minute(), t.Second()))
}

// SimulatedValue overrides one sensor while simulation is active (SIMP).
func (c Catalog) SimulatedValue(p SimParam, value float64) (string, error) {
	switch p {
	case SimAltitude, SimPressure, SimTemperature:
		return c.cmd("SIMP", string(p), strconv.FormatFloat(value, 'f', -1, 64)), nil
	}
	return "", fmt.Errorf("unknown simulation parameter %q", p)
}

// Raw validates free-form operator text.
func Raw(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyCommand
	}
	if strings.ContainsAny(text, "\r\n") {
		return "", fmt.Errorf("command contains a line break: %q", text)
	}
	return text, nil
}

// Encode appends the line terminator.
func Encode(cmd string) []byte {
	return []byte(cmd + Terminator)
}

// Request is the JSON form of an operator command.
//
// Name selects a catalog entry (cx, mx, sim, cal, st, simp) with Arg as
// its argument; Name "raw" sends Arg verbatim.
type Request struct {
	Name  string  `json:"name"`
	Arg   string  `json:"arg,omitempty"`
	Value float64 `json:"value,omitempty"`
}

// Build resolves a request to a command line. now is used by "st".
func (c Catalog) Build(req Request, now time.Time) (string, error) {
	arg := strings.ToUpper(strings.TrimSpace(req.Arg))
	switch strings.ToLower(req.Name) {
	case "cx", "mx":
		if arg != "ON" && arg != "OFF" {
			return "", fmt.Errorf("%s expects ON or OFF, got %q", req.Name, req.Arg)
		}
		if strings.EqualFold(req.Name, "cx") {
			return c.Telemetry(arg == "ON"), nil
		}
		return c.Mechanism(arg == "ON"), nil
	case "sim":
		return c.Simulation(SimMode(arg))
	case "cal":
		return c.Calibrate(), nil
	case "st":
		return c.SetTime(now), nil
	case "simp":
		return c.SimulatedValue(SimParam(arg), req.Value)
	case "raw":
		return Raw(req.Arg)
	}
	return "", fmt.Errorf("unknown command %q", req.Name)
}
