package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cuckoodile/attendance-cam/internal/config"
	"github.com/cuckoodile/attendance-cam/internal/logger"
	"github.com/cuckoodile/attendance-cam/internal/server"
)

func main() {
	var configPath, addr, dbPath, mediaDir, publicURL string
	var debug bool

	flag.StringVar(&configPath, "config", config.GetConfigPath(), "config file path (JSON)")
	flag.StringVar(&addr, "addr", "", "listen address (overrides config)")
	flag.StringVar(&dbPath, "db", "", "SQLite database path")
	flag.StringVar(&mediaDir, "media", "", "directory for uploaded images")
	flag.StringVar(&publicURL, "public-url", "", "base URL used in image links")
	flag.BoolVar(&debug, "debug", false, "enable debug logging")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if dbPath != "" {
		cfg.Server.DBPath = dbPath
	}
	if mediaDir != "" {
		cfg.Server.MediaDir = mediaDir
	}
	if publicURL != "" {
		cfg.Server.PublicURL = publicURL
	}
	if debug {
		cfg.Log.Debug = true
	}

	lg, err := logger.New(cfg.Log.Dir, cfg.Log.Debug)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer lg.Close()

	if !cfg.Log.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	store, err := server.OpenStore(cfg.Server.DBPath)
	if err != nil {
		lg.Error("%v", err)
		os.Exit(1)
	}
	defer store.Close()

	srv, err := server.New(store, cfg.Server.MediaDir, cfg.Server.PublicURL, lg)
	if err != nil {
		lg.Error("%v", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		lg.Info("attendance service listening on %s", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("listen: %v", err)
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	lg.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		lg.Error("shutdown: %v", err)
	}
}
