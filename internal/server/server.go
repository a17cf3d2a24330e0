// Package server is the operator console: the presentation context that
// consumes session events, keeps the plot history and serves the HTTP API
// and websocket display.
package server

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/shaunagostinho/cansat-ground/internal/session"
	"github.com/shaunagostinho/cansat-ground/internal/transport"
	"github.com/shaunagostinho/cansat-ground/internal/uplink"
	"github.com/shaunagostinho/cansat-ground/pkg/logger"
)

// Server wires the session to the HTTP API and websocket clients.
type Server struct {
	cfg     *Config
	sess    *session.Session
	console *Console
	hub     *hub
	webFS   fs.FS
	log     *logger.Logger

	// Swappable for tests.
	listPorts func() ([]transport.PortInfo, error)
	drives    func() []string
	now       func() time.Time
}

// New creates a Server. webFS may be nil to serve the API only.
func New(cfg *Config, sess *session.Session, webFS fs.FS, log *logger.Logger) *Server {
	h := newHub(log.Named("ws"))
	return &Server{
		cfg:       cfg,
		sess:      sess,
		console:   NewConsole(sess, cfg.Pipeline.HistoryCapacity, h, log.Named("console")),
		hub:       h,
		webFS:     webFS,
		log:       log.Named("http"),
		listPorts: transport.ListPorts,
		drives:    storageDrives,
		now:       time.Now,
	}
}

// Console returns the presentation context.
func (s *Server) Console() *Console { return s.console }

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/ports", s.handlePorts)
		r.Get("/drives", s.handleDrives)

		r.Post("/connect", s.handleConnect)
		r.Post("/disconnect", s.handleDisconnect)

		r.Post("/recording/start", s.handleRecordingStart)
		r.Post("/recording/stop", s.handleRecordingStop)

		r.Post("/command", s.handleCommand)

		r.Get("/series", s.handleSeries)
		r.Post("/series/reset", s.handleSeriesReset)

		r.Get("/config", s.handleGetConfig)
		r.Post("/config", s.handleUpdateConfig)
	})

	r.Get("/ws", s.handleWS)

	if s.webFS != nil {
		r.Handle("/*", http.FileServer(http.FS(s.webFS)))
	}
	return r
}

// Run starts the console loop and the HTTP server, and blocks until ctx
// is cancelled.
func (s *Server) Run(ctx context.Context) error {
	go s.console.Run(ctx)

	srv := &http.Server{
		Addr:              s.cfg.Server.ListenAddr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.hub.closeAll()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			s.log.Warn("shutdown failed", logger.Error(err))
		}
	}()

	s.log.Info("listening", logger.String("addr", s.cfg.Server.ListenAddr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) catalog() uplink.Catalog {
	return uplink.NewCatalog(s.cfg.TeamID())
}
