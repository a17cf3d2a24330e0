package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/shaunagostinho/cansat-ground/internal/fault"
	"github.com/shaunagostinho/cansat-ground/internal/storage"
	"github.com/shaunagostinho/cansat-ground/internal/uplink"
	"github.com/shaunagostinho/cansat-ground/pkg/logger"
)

var storageDrives = storage.RemovableDrives

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, fault.ErrNotConnected),
		errors.Is(err, fault.ErrInvalidStateTransition):
		return http.StatusConflict
	case errors.Is(err, fault.ErrTransportOpenFailed),
		errors.Is(err, fault.ErrTransportWriteFailed):
		return http.StatusBadGateway
	case errors.Is(err, fault.ErrStorageUnavailable),
		errors.Is(err, uplink.ErrEmptyCommand):
		return http.StatusBadRequest
	case errors.Is(err, fault.ErrStorageWriteFailed):
		return http.StatusInsufficientStorage
	}
	return http.StatusInternalServerError
}

// decodeBody reads an optional JSON body into v. An empty body is not an
// error.
func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sess.Status())
}

func (s *Server) handlePorts(w http.ResponseWriter, r *http.Request) {
	ports, err := s.listPorts()
	if err != nil {
		s.log.Warn("port enumeration failed", logger.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ports)
}

func (s *Server) handleDrives(w http.ResponseWriter, r *http.Request) {
	drives := s.drives()
	if drives == nil {
		drives = []string{}
	}
	writeJSON(w, http.StatusOK, drives)
}

type connectRequest struct {
	Type     string `json:"type"`
	PortPath string `json:"portPath"`
	BaudRate int    `json:"baudRate"`
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	tc := s.cfg.TransportConfig()
	if req.Type != "" {
		tc.Type = req.Type
	}
	if req.PortPath != "" {
		tc.PortPath = req.PortPath
	}
	if req.BaudRate > 0 {
		tc.BaudRate = req.BaudRate
	}

	if err := s.sess.Connect(tc); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.sess.Status())
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.sess.Disconnect(); err != nil {
		if errors.Is(err, fault.ErrInvalidStateTransition) {
			writeError(w, err)
			return
		}
		// Disconnected regardless; the port just did not close cleanly.
		s.log.Warn("disconnect", logger.Error(err))
	}
	writeJSON(w, http.StatusOK, s.sess.Status())
}

type recordingRequest struct {
	Dir string `json:"dir"`
}

func (s *Server) handleRecordingStart(w http.ResponseWriter, r *http.Request) {
	var req recordingRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	dir := req.Dir
	if dir == "" {
		dir = s.cfg.RecordingDir()
	}

	if _, err := s.sess.StartRecording(dir); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.sess.Status())
}

func (s *Server) handleRecordingStop(w http.ResponseWriter, r *http.Request) {
	if err := s.sess.StopRecording(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.sess.Status())
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req uplink.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	cmd, err := s.catalog().Build(req, s.now())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := s.sess.Send(cmd); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"sent": cmd})
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.console.Snapshot())
}

func (s *Server) handleSeriesReset(w http.ResponseWriter, r *http.Request) {
	if err := s.console.Reset(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	data, err := s.cfg.ToJSON()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if err := s.cfg.UpdateFromJSON(body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.cfg.Save(); err != nil {
		s.log.Warn("config save failed", logger.Error(err))
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	st := s.sess.Status()
	s.hub.serve(w, r, Frame{Type: "status", Status: &st})
}
