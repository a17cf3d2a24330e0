package transport

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shaunagostinho/cansat-ground/internal/fault"
	"github.com/shaunagostinho/cansat-ground/internal/telemetry"
)

func TestOpen_UnknownType(t *testing.T) {
	if _, err := Open(Config{Type: "carrier-pigeon"}); err == nil {
		t.Fatal("expected error for unknown transport type")
	}
}

func TestOpenSerial_NoPort(t *testing.T) {
	tr, err := Open(Config{Type: "serial"})
	if !errors.Is(err, fault.ErrTransportOpenFailed) {
		t.Fatalf("err = %v, want ErrTransportOpenFailed", err)
	}
	if tr != nil {
		t.Errorf("transport = %v, want nil", tr)
	}
}

// readLine polls d until one complete line has arrived.
func readLine(t *testing.T, d *Demo) string {
	t.Helper()
	var buf bytes.Buffer
	p := make([]byte, 64)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		n, err := d.Read(p)
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		buf.Write(p[:n])
		if i := bytes.IndexByte(buf.Bytes(), '\n'); i >= 0 {
			return string(buf.Bytes()[:i])
		}
	}
	t.Fatal("no frame within 2s")
	return ""
}

func TestDemo_FramesDecode(t *testing.T) {
	d := NewDemo(Config{ReadTimeout: 10 * time.Millisecond})
	defer d.Close()

	for i := 1; i <= 3; i++ {
		line := readLine(t, d)
		if !strings.HasSuffix(line, "\r") {
			t.Errorf("frame %d not CRLF terminated: %q", i, line)
		}
		rec, err := telemetry.Decode(strings.TrimSpace(line))
		if err != nil {
			t.Fatalf("frame %d: Decode() error = %v (%q)", i, err, line)
		}
		if rec.PacketCount != i || rec.TeamID != "1001" || rec.Mode != "F" {
			t.Errorf("frame %d = %+v", i, rec)
		}
	}
}

func TestDemo_Commands(t *testing.T) {
	d := NewDemo(Config{ReadTimeout: 10 * time.Millisecond})
	defer d.Close()

	cmds := "CMD,1001,SIM,ENABLE\nCMD,1001,SIM,ACTIVATE\nCMD,1001,SIMP,ALT,321.5\n"
	if n, err := d.Write([]byte(cmds)); err != nil || n != len(cmds) {
		t.Fatalf("Write() = %d, %v", n, err)
	}
	rec, err := telemetry.Decode(strings.TrimSpace(readLine(t, d)))
	if err != nil {
		t.Fatal(err)
	}
	if rec.Mode != "S" || rec.Altitude != 321.5 {
		t.Errorf("after SIM ACTIVATE + SIMP: mode=%s alt=%v", rec.Mode, rec.Altitude)
	}

	d.Write([]byte("CMD,1001,CX,OFF\n"))
	p := make([]byte, 512)
	for i := 0; i < 30; i++ {
		if n, _ := d.Read(p); n > 0 {
			t.Fatalf("telemetry still flowing after CX OFF: %q", p[:n])
		}
	}
}

func TestDemo_Closed(t *testing.T) {
	d := NewDemo(Config{})
	d.Close()
	if _, err := d.Read(make([]byte, 8)); !errors.Is(err, ErrClosed) {
		t.Errorf("Read() after Close = %v, want ErrClosed", err)
	}
	if _, err := d.Write([]byte("x\n")); !errors.Is(err, ErrClosed) {
		t.Errorf("Write() after Close = %v, want ErrClosed", err)
	}
}
