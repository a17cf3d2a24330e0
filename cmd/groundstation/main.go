package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/shaunagostinho/cansat-ground/internal/recorder"
	"github.com/shaunagostinho/cansat-ground/internal/server"
	"github.com/shaunagostinho/cansat-ground/internal/session"
	"github.com/shaunagostinho/cansat-ground/internal/transport"
	"github.com/shaunagostinho/cansat-ground/pkg/logger"
	"github.com/shaunagostinho/cansat-ground/web"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flags := pflag.NewFlagSet("groundstation", pflag.ContinueOnError)
	configPath := flags.String("config", server.DefaultConfigPath, "path to config file")
	demo := flags.Bool("demo", false, "connect to a simulated payload instead of a radio")
	listenAddr := flags.String("listen", "", "override listen address (e.g. :8080)")
	portPath := flags.String("port", "", "override serial port (e.g. /dev/ttyUSB0, COM3)")
	baud := flags.Int("baud", 0, "override serial baud rate")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	cfg, notes := server.LoadConfig(*configPath)
	if *demo {
		cfg.Serial.Type = "demo"
		cfg.Serial.AutoConnect = true
	}
	if *listenAddr != "" {
		cfg.Server.ListenAddr = *listenAddr
	}
	if *portPath != "" {
		cfg.Serial.PortPath = *portPath
	}
	if *baud > 0 {
		cfg.Serial.BaudRate = *baud
	}

	log, err := logger.New(cfg.LoggerConfig())
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer log.Sync()

	mainLog := log.Named("main")
	for _, n := range notes {
		mainLog.Info("config: " + n)
	}
	mainLog.Info("ground station starting",
		logger.String("serial", cfg.Serial.Type),
		logger.String("port", cfg.Serial.PortPath),
		logger.Int("baud", cfg.Serial.BaudRate),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sess := session.New(cfg.SessionConfig(), recorder.New(log), log)
	defer sess.Close()

	if cfg.Recording.AutoStart {
		autoStartRecording(mainLog, sess, cfg.RecordingDir())
	}

	// Console starts regardless of the link; the operator can connect later.
	if cfg.Serial.AutoConnect {
		go connectWithRetry(ctx, mainLog, sess, cfg.TransportConfig(), 10)
	}

	srv := server.New(cfg, sess, web.FS, log)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	mainLog.Info("shutting down")
	return nil
}

// autoStartRecording opens a flight log before any link exists, so the
// first frame after connecting is already logged. It returns the log path,
// or "" when recording could not start.
func autoStartRecording(log *logger.Logger, sess *session.Session, dir string) string {
	path, err := sess.StartRecording(dir)
	if err != nil {
		log.Warn("auto-start recording failed", logger.String("dir", dir), logger.Error(err))
		return ""
	}
	log.Info("recording", logger.String("path", path))
	return path
}

// connectWithRetry attempts to connect with exponential backoff.
// Starts at 1s, doubles each attempt up to 60s, logs each failure up to
// maxAttempts and then continues quietly at the max interval.
func connectWithRetry(ctx context.Context, log *logger.Logger, sess *session.Session, tc transport.Config, maxAttempts int) {
	delay := 1 * time.Second
	maxDelay := 60 * time.Second
	attempt := 0

	for {
		if ctx.Err() != nil {
			return
		}
		if sess.State() == session.Connected {
			return
		}

		err := sess.Connect(tc)
		if err == nil {
			log.Info("connected", logger.String("port", tc.PortPath), logger.Int("attempt", attempt+1))
			return
		}

		attempt++
		if attempt <= maxAttempts {
			log.Warn("connect failed",
				logger.Int("attempt", attempt),
				logger.Error(err),
				logger.Duration("retry_in", delay),
			)
		} else {
			log.Debug("connect failed", logger.Int("attempt", attempt), logger.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}
