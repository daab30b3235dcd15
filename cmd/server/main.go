package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/drericflores/hstp/pkg/lib"
)

func main() {
	cfg, err := GetConfigFromEnvironment()
	if err != nil {
		logrus.Fatal(err)
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logrus.Fatalf("invalid log level: %v", err)
	}
	lib.Logger.SetOutput(os.Stderr)
	lib.Logger.SetLevel(level)
	lib.Logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := newDaemon(ctx, cfg)
	if err != nil {
		logger.Fatalf("failed to initialize daemon: %v", err)
	}

	srv, err := NewGRPCServer(cfg, NewStressRunnerServer(d.orch, d.bus))
	if err != nil {
		d.close()
		logger.Fatalf("failed to initialize server: %v", err)
	}

	if err := d.start(); err != nil {
		d.close()
		logger.Fatalf("failed to start sampler: %v", err)
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Infof("server (TLS) listening at %v", srv.Addr())
		serveErr <- srv.Serve()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		logger.WithError(err).Error("failed to serve")
	}

	if err := d.shutdown(); err != nil {
		logger.WithError(err).Warn("shutdown forced")
	}
	srv.Stop()
}
