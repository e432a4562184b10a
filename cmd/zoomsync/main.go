// Package main runs the zoomsync daemon: a local automation service that
// keeps a placeholder Zoom meeting in sync with the user's real calls. The
// browser extension drives it over the local HTTP control API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meetsync/zoomsync/pkg/automator"
	"github.com/meetsync/zoomsync/pkg/browser"
	"github.com/meetsync/zoomsync/pkg/config"
	"github.com/meetsync/zoomsync/pkg/logging"
	"github.com/meetsync/zoomsync/pkg/server"
	"github.com/meetsync/zoomsync/pkg/zoom"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("zoomsync v%s\n", version)
		return
	}

	if err := run(*configPath); err != nil {
		log.Fatalf("zoomsync: %v", err)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logging.SetDirectory(cfg.Logging.Dir)
	// NewLogger falls back to stderr by itself when file logging fails
	logger, _ := logging.NewLogger("daemon")
	defer logger.Close()

	logger.Infof("zoomsync v%s starting (run=%s, addr=%s)", version, logger.RunID(), cfg.Server.Addr)

	browserLog, _ := logging.NewLogger("browser")
	defer browserLog.Close()
	flowLog, _ := logging.NewLogger("zoom")
	defer flowLog.Close()
	autoLog, _ := logging.NewLogger("automator")
	defer autoLog.Close()
	serverLog, _ := logging.NewLogger("server")
	defer serverLog.Close()

	manager := browser.NewManager(browser.Options{
		ProfileDir:        cfg.Browser.ProfileDir,
		ViewportWidth:     cfg.Browser.ViewportWidth,
		ViewportHeight:    cfg.Browser.ViewportHeight,
		ExtraArgs:         cfg.Browser.ExtraArgs,
		CloseTimeout:      cfg.Browser.CloseTimeout,
		ForceCloseTimeout: cfg.Browser.ForceCloseTimeout,
	}, browserLog)
	defer manager.Stop()

	snapshotter := browser.NewSnapshotter(cfg.Diagnostics.Dir, cfg.Diagnostics.Enabled, browserLog)

	flow, err := zoom.NewFlow(cfg, snapshotter, flowLog)
	if err != nil {
		return fmt.Errorf("failed to build zoom flow: %w", err)
	}

	auto := automator.New(manager, flow, automator.Options{
		JoinTimeout:  cfg.Zoom.JoinTimeout,
		LoginTimeout: cfg.Zoom.LoginTimeout,
	}, autoLog)

	srv := server.New(auto, serverLog)
	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Handler(),
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Infof("control API listening on %s", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Infof("received %s, shutting down", sig)
		if err := auto.Dispose(); err != nil {
			logger.Warnf("dispose on shutdown failed: %v", err)
		}
	case <-srv.ShutdownRequested():
		logger.Infof("shutdown requested over the control API")
	case err := <-serverErr:
		if dispErr := auto.Dispose(); dispErr != nil {
			logger.Warnf("dispose on shutdown failed: %v", dispErr)
		}
		return fmt.Errorf("control API server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("HTTP shutdown did not finish cleanly: %v", err)
	}

	logger.Infof("zoomsync stopped")
	return nil
}
