package main

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/shaunagostinho/cansat-ground/internal/recorder"
	"github.com/shaunagostinho/cansat-ground/internal/session"
	"github.com/shaunagostinho/cansat-ground/pkg/logger"
)

func TestAutoStartRecording_BeforeConnect(t *testing.T) {
	sess := session.New(session.Config{}, recorder.New(logger.Nop()), logger.Nop())
	defer sess.Close()
	dir := filepath.Join(t.TempDir(), "flight")

	path := autoStartRecording(logger.Nop(), sess, dir)
	if !strings.HasPrefix(path, dir) {
		t.Fatalf("path = %q, want a file in %s", path, dir)
	}
	st := sess.Status()
	if st.Connection != session.Disconnected || st.Recording.State != "recording" {
		t.Errorf("Status() = %+v, want recording while disconnected", st)
	}
}

func TestAutoStartRecording_NoDirectory(t *testing.T) {
	sess := session.New(session.Config{}, recorder.New(logger.Nop()), logger.Nop())
	defer sess.Close()

	if path := autoStartRecording(logger.Nop(), sess, ""); path != "" {
		t.Errorf("path = %q, want empty when no directory is configured", path)
	}
	if st := sess.Status(); st.Recording.State != "idle" {
		t.Errorf("recording state = %s, want idle", st.Recording.State)
	}
}
