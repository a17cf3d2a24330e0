package uplink

import (
	"errors"
	"testing"
	"time"
)

func TestCatalog_FixedCommands(t *testing.T) {
	c := NewCatalog("")
	at := time.Date(2025, 6, 14, 9, 5, 7, 0, time.Local)

	sim, _ := c.Simulation(SimActivate)
	simp, _ := c.SimulatedValue(SimPressure, 101.3)

	tests := []struct {
		got, want string
	}{
		{c.Telemetry(true), "CMD,1001,CX,ON"},
		{c.Telemetry(false), "CMD,1001,CX,OFF"},
		{c.Mechanism(true), "CMD,1001,MX,ON"},
		{sim, "CMD,1001,SIM,ACTIVATE"},
		{c.Calibrate(), "CMD,1001,CAL"},
		{c.SetTime(at), "CMD,1001,ST,09:05:07"},
		{simp, "CMD,1001,SIMP,PRES,101.3"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestCatalog_Build(t *testing.T) {
	c := NewCatalog("2042")
	now := time.Date(2025, 1, 1, 23, 59, 1, 0, time.Local)

	tests := []struct {
		req     Request
		want    string
		wantErr bool
	}{
		{Request{Name: "cx", Arg: "on"}, "CMD,2042,CX,ON", false},
		{Request{Name: "MX", Arg: "OFF"}, "CMD,2042,MX,OFF", false},
		{Request{Name: "sim", Arg: "disable"}, "CMD,2042,SIM,DISABLE", false},
		{Request{Name: "st"}, "CMD,2042,ST,23:59:01", false},
		{Request{Name: "simp", Arg: "alt", Value: 512}, "CMD,2042,SIMP,ALT,512", false},
		{Request{Name: "raw", Arg: "  CMD,2042,SIMP,TEMP,20  "}, "CMD,2042,SIMP,TEMP,20", false},
		{Request{Name: "cx", Arg: "maybe"}, "", true},
		{Request{Name: "sim", Arg: "LAUNCH"}, "", true},
		{Request{Name: "simp", Arg: "HUM"}, "", true},
		{Request{Name: "raw", Arg: "   "}, "", true},
		{Request{Name: "raw", Arg: "a\nb"}, "", true},
		{Request{Name: "launch"}, "", true},
	}
	for _, tt := range tests {
		got, err := c.Build(tt.req, now)
		if (err != nil) != tt.wantErr {
			t.Errorf("Build(%+v) error = %v, wantErr %v", tt.req, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("Build(%+v) = %q, want %q", tt.req, got, tt.want)
		}
	}
}

func TestRaw_Empty(t *testing.T) {
	if _, err := Raw(""); !errors.Is(err, ErrEmptyCommand) {
		t.Errorf("Raw(\"\") error = %v", err)
	}
}

func TestEncode(t *testing.T) {
	if got := string(Encode("CMD,1001,CAL")); got != "CMD,1001,CAL\n" {
		t.Errorf("Encode() = %q", got)
	}
}
