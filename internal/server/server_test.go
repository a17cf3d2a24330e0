package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shaunagostinho/cansat-ground/internal/recorder"
	"github.com/shaunagostinho/cansat-ground/internal/series"
	"github.com/shaunagostinho/cansat-ground/internal/session"
	"github.com/shaunagostinho/cansat-ground/internal/transport"
	"github.com/shaunagostinho/cansat-ground/pkg/logger"
)

const frameLine = "7,12,30,05,42,F,ASCENT,123.4,21.0,98.7,7.6,1.1,2.2,3.3,0.1,0.2,0.3,0.01,0.02,0.03,0.5,12,30,06,120.0,40.1,-75.2,8\n"

// radio is an in-memory payload link.
type radio struct {
	in     chan []byte
	closed chan struct{}
	once   sync.Once

	mu  sync.Mutex
	out bytes.Buffer
}

func newRadio() *radio {
	return &radio{in: make(chan []byte, 16), closed: make(chan struct{})}
}

func (r *radio) Name() string { return "radio0" }

func (r *radio) Read(p []byte) (int, error) {
	select {
	case <-r.closed:
		return 0, transport.ErrClosed
	case b := <-r.in:
		return copy(p, b), nil
	case <-time.After(5 * time.Millisecond):
		return 0, nil
	}
}

func (r *radio) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.out.Write(p)
}

func (r *radio) Close() error {
	r.once.Do(func() { close(r.closed) })
	return nil
}

func (r *radio) sent() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.out.String()
}

type fixture struct {
	srv   *Server
	ts    *httptest.Server
	radio *radio
	sess  *session.Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := DefaultConfig()
	cfg.path = filepath.Join(t.TempDir(), "config.yaml")
	cfg.Pipeline.HistoryCapacity = 4

	f := &fixture{radio: newRadio()}
	sc := cfg.SessionConfig()
	sc.Open = func(transport.Config) (transport.Transport, error) { return f.radio, nil }
	f.sess = session.New(sc, recorder.New(logger.Nop()), logger.Nop())

	f.srv = New(cfg, f.sess, nil, logger.Nop())
	f.srv.listPorts = func() ([]transport.PortInfo, error) {
		return []transport.PortInfo{{Name: "/dev/ttyUSB0", USB: true, VID: "0403"}}, nil
	}
	f.srv.drives = func() []string { return []string{"/media/ops/FLIGHT"} }
	f.srv.now = func() time.Time { return time.Date(2024, 6, 1, 9, 5, 7, 0, time.Local) }

	ctx, cancel := context.WithCancel(context.Background())
	go f.srv.console.Run(ctx)
	f.ts = httptest.NewServer(f.srv.Routes())

	t.Cleanup(func() {
		f.ts.Close()
		cancel()
		f.sess.Close()
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(method, f.ts.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var out map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func (f *fixture) series(t *testing.T) series.Snapshot {
	t.Helper()
	resp, err := http.Get(f.ts.URL + "/api/series")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var snap series.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode series: %v", err)
	}
	return snap
}

func (f *fixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil returns the first websocket frame of the given type.
func readUntil(t *testing.T, conn *websocket.Conn, typ string) Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var fr Frame
		if err := conn.ReadJSON(&fr); err != nil {
			t.Fatalf("waiting for %q frame: %v", typ, err)
		}
		if fr.Type == typ {
			return fr
		}
	}
}

func TestTelemetryReachesBufferBeforeDisplay(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	readUntil(t, conn, "status")

	if code, body := f.do(t, http.MethodPost, "/api/connect", ""); code != http.StatusOK {
		t.Fatalf("connect = %d %v", code, body)
	}
	f.radio.in <- []byte(frameLine)

	fr := readUntil(t, conn, "telemetry")
	if fr.Record == nil || fr.Record.PacketCount != 42 || fr.Record.Altitude != 123.4 {
		t.Fatalf("telemetry frame = %+v", fr.Record)
	}

	snap := f.series(t)
	alt := snap.Channels[series.Altitude.String()]
	if len(alt) != 1 || alt[0] != 123.4 {
		t.Errorf("altitude history = %v, want [123.4] by the time the frame is displayed", alt)
	}
}

func TestSeriesBoundedAndReset(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	readUntil(t, conn, "status")

	f.do(t, http.MethodPost, "/api/connect", "")
	for i := 0; i < 6; i++ {
		f.radio.in <- []byte(frameLine)
		readUntil(t, conn, "telemetry")
	}

	snap := f.series(t)
	if snap.Capacity != 4 || len(snap.Index) != 4 {
		t.Fatalf("snapshot capacity=%d len=%d, want 4/4", snap.Capacity, len(snap.Index))
	}
	if snap.Index[0] != 3 || snap.Index[3] != 6 {
		t.Errorf("index = %v, want 3..6", snap.Index)
	}

	if code, _ := f.do(t, http.MethodPost, "/api/series/reset", ""); code != http.StatusOK {
		t.Fatalf("reset = %d", code)
	}
	if snap := f.series(t); len(snap.Index) != 0 {
		t.Errorf("after reset len = %d, want 0", len(snap.Index))
	}
}

func TestCommandRequiresConnection(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, http.MethodPost, "/api/command", `{"name":"cx","arg":"on"}`)
	if code != http.StatusConflict {
		t.Fatalf("command while disconnected = %d %v, want 409", code, body)
	}

	f.do(t, http.MethodPost, "/api/connect", "")
	code, body = f.do(t, http.MethodPost, "/api/command", `{"name":"st"}`)
	if code != http.StatusOK {
		t.Fatalf("command = %d %v", code, body)
	}
	if body["sent"] != "CMD,1001,ST,09:05:07" {
		t.Errorf("sent = %v", body["sent"])
	}

	deadline := time.Now().Add(time.Second)
	for f.radio.sent() != "CMD,1001,ST,09:05:07\n" {
		if time.Now().After(deadline) {
			t.Fatalf("radio got %q", f.radio.sent())
		}
		time.Sleep(5 * time.Millisecond)
	}

	if code, _ := f.do(t, http.MethodPost, "/api/command", `{"name":"raw","arg":"   "}`); code != http.StatusBadRequest {
		t.Errorf("empty raw command = %d, want 400", code)
	}
	if code, _ := f.do(t, http.MethodPost, "/api/command", `{"name":"launch"}`); code != http.StatusBadRequest {
		t.Errorf("unknown command = %d, want 400", code)
	}
}

func TestConnectionTransitions(t *testing.T) {
	f := newFixture(t)

	if code, _ := f.do(t, http.MethodPost, "/api/disconnect", ""); code != http.StatusConflict {
		t.Errorf("disconnect while disconnected = %d, want 409", code)
	}
	code, body := f.do(t, http.MethodPost, "/api/connect", `{"portPath":"/dev/ttyUSB1","baudRate":115200}`)
	if code != http.StatusOK || body["connection"] != "connected" || body["port"] != "radio0" {
		t.Fatalf("connect = %d %v", code, body)
	}
	if code, _ := f.do(t, http.MethodPost, "/api/connect", ""); code != http.StatusConflict {
		t.Errorf("second connect = %d, want 409", code)
	}
	code, body = f.do(t, http.MethodPost, "/api/disconnect", "")
	if code != http.StatusOK || body["connection"] != "disconnected" {
		t.Errorf("disconnect = %d %v", code, body)
	}
}

func TestRecordingEndpoints(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()

	if code, _ := f.do(t, http.MethodPost, "/api/recording/start", ""); code != http.StatusBadRequest {
		t.Errorf("start without a directory = %d, want 400", code)
	}

	code, body := f.do(t, http.MethodPost, "/api/recording/start", `{"dir":"`+dir+`"}`)
	if code != http.StatusOK {
		t.Fatalf("start = %d %v", code, body)
	}
	rec, _ := body["recording"].(map[string]interface{})
	if rec["state"] != "recording" || !strings.HasPrefix(rec["path"].(string), dir) {
		t.Errorf("recording = %v", rec)
	}

	if code, _ := f.do(t, http.MethodPost, "/api/recording/start", `{"dir":"`+dir+`"}`); code != http.StatusConflict {
		t.Errorf("second start = %d, want 409", code)
	}
	if code, _ := f.do(t, http.MethodPost, "/api/recording/stop", ""); code != http.StatusOK {
		t.Errorf("stop = %d", code)
	}
	if code, _ := f.do(t, http.MethodPost, "/api/recording/stop", ""); code != http.StatusConflict {
		t.Errorf("second stop = %d, want 409", code)
	}
}

func TestPortsAndDrives(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.ts.URL + "/api/ports")
	if err != nil {
		t.Fatal(err)
	}
	var ports []transport.PortInfo
	json.NewDecoder(resp.Body).Decode(&ports)
	resp.Body.Close()
	if len(ports) != 1 || ports[0].Name != "/dev/ttyUSB0" || !ports[0].USB {
		t.Errorf("ports = %+v", ports)
	}

	resp, err = http.Get(f.ts.URL + "/api/drives")
	if err != nil {
		t.Fatal(err)
	}
	var drives []string
	json.NewDecoder(resp.Body).Decode(&drives)
	resp.Body.Close()
	if len(drives) != 1 || drives[0] != "/media/ops/FLIGHT" {
		t.Errorf("drives = %v", drives)
	}
}

func TestConfigEndpoints(t *testing.T) {
	f := newFixture(t)

	code, _ := f.do(t, http.MethodPost, "/api/config", `{"uplink":{"teamId":"2077"}}`)
	if code != http.StatusOK {
		t.Fatalf("update config = %d", code)
	}
	code, body := f.do(t, http.MethodGet, "/api/config", "")
	if code != http.StatusOK {
		t.Fatalf("get config = %d", code)
	}
	up, _ := body["uplink"].(map[string]interface{})
	if up["teamId"] != "2077" {
		t.Errorf("uplink = %v", up)
	}

	f.do(t, http.MethodPost, "/api/connect", "")
	_, body = f.do(t, http.MethodPost, "/api/command", `{"name":"cal"}`)
	if body["sent"] != "CMD,2077,CAL" {
		t.Errorf("sent = %v, want team id from updated config", body["sent"])
	}
}

func TestStatusFor(t *testing.T) {
	if got := statusFor(context.Canceled); got != http.StatusInternalServerError {
		t.Errorf("statusFor(other) = %d", got)
	}
}
