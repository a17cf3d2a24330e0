package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, notes := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if len(notes) == 0 {
		t.Error("expected a note about the missing file")
	}
	def := DefaultConfig()
	if cfg.Serial != def.Serial || cfg.Pipeline != def.Pipeline || cfg.Uplink != def.Uplink {
		t.Errorf("LoadConfig() = %+v, want defaults", cfg)
	}
}

func TestLoadConfig_FileEnvFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlText := `
serial:
  type: serial
  port_path: /dev/ttyACM0
  baud_rate: 115200
pipeline:
  history_capacity: 250
uplink:
  team_id: "2042"
`
	if err := os.WriteFile(path, []byte(yamlText), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("# radio\nRECORD_DIR=\"/media/usb\"\nTEAM_ID=3003\n"), 0644); err != nil {
		t.Fatal(err)
	}

	// Registered so the values loaded from .env are restored afterwards.
	t.Setenv("RECORD_DIR", "")
	t.Setenv("TEAM_ID", "")
	t.Setenv("SERIAL_BAUD", "57600")

	cfg, _ := LoadConfig(path)

	if cfg.Serial.PortPath != "/dev/ttyACM0" {
		t.Errorf("PortPath = %q, want /dev/ttyACM0", cfg.Serial.PortPath)
	}
	if cfg.Serial.BaudRate != 57600 {
		t.Errorf("BaudRate = %d, want env override 57600", cfg.Serial.BaudRate)
	}
	if cfg.Pipeline.HistoryCapacity != 250 {
		t.Errorf("HistoryCapacity = %d, want 250", cfg.Pipeline.HistoryCapacity)
	}
	if cfg.Pipeline.JoinTimeoutMs != 2000 {
		t.Errorf("JoinTimeoutMs = %d, want default 2000", cfg.Pipeline.JoinTimeoutMs)
	}
	if cfg.Recording.Dir != "/media/usb" {
		t.Errorf("Recording.Dir = %q, want /media/usb from .env", cfg.Recording.Dir)
	}
	if cfg.TeamID() != "3003" {
		t.Errorf("TeamID() = %q, want 3003 from .env", cfg.TeamID())
	}
}

func TestUpdateFromJSON_DeepMerge(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.UpdateFromJSON([]byte(`{"serial":{"portPath":"COM4"},"recording":{"autoStart":true}}`)); err != nil {
		t.Fatalf("UpdateFromJSON() error = %v", err)
	}
	if cfg.Serial.PortPath != "COM4" {
		t.Errorf("PortPath = %q, want COM4", cfg.Serial.PortPath)
	}
	if cfg.Serial.BaudRate != 9600 {
		t.Errorf("BaudRate = %d, want untouched 9600", cfg.Serial.BaudRate)
	}
	if !cfg.Recording.AutoStart {
		t.Error("AutoStart not applied")
	}

	if err := cfg.UpdateFromJSON([]byte(`{not json`)); err == nil {
		t.Error("expected error for malformed patch")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.path = path
	cfg.Uplink.TeamID = "4711"
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, _ := LoadConfig(path)
	if loaded.TeamID() != "4711" {
		t.Errorf("TeamID() = %q, want 4711", loaded.TeamID())
	}
}

func TestDerivedConfigs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Serial.Type = "demo"

	tc := cfg.TransportConfig()
	if tc.Type != "demo" || tc.ReadTimeout != 100*time.Millisecond {
		t.Errorf("TransportConfig() = %+v", tc)
	}

	sc := cfg.SessionConfig()
	if sc.JoinTimeout != 2*time.Second || sc.RetryBackoff != 100*time.Millisecond || sc.MaxFrame != 4096 {
		t.Errorf("SessionConfig() = %+v", sc)
	}
}
