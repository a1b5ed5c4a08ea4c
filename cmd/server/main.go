package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/cohort-match/internal/api"
	"github.com/ignite/cohort-match/internal/app"
	"github.com/ignite/cohort-match/internal/config"
	"github.com/ignite/cohort-match/internal/pkg/logger"
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v\n"+
			"  Hint: Run 'lsof -i :%d' to find the blocking process", port, addr, err, port)
	}
	ln.Close()
	return nil
}

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		logger.Error("[server] failed to load config", "path", configPath, "error", err.Error())
		os.Exit(1)
	}
	logger.Configure(cfg.Logging.Level, cfg.Logging.Redact())

	host := cfg.Server.GetHost()
	port := cfg.Server.Port
	if err := checkPortAvailable(host, port); err != nil {
		logger.Error("[server] pre-flight check failed", "error", err.Error())
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := app.New(ctx, cfg, app.Options{Memory: os.Getenv("COHORT_MATCH_MEMORY") == "true"})
	if err != nil {
		logger.Error("[server] failed to initialize", "error", err.Error())
		os.Exit(1)
	}
	defer application.Close()

	handlers := api.NewHandlers(
		application.Matcher,
		application.Ingester,
		application.Analyzer,
		application.Overrides,
		application.Lock,
		api.Options{
			RestoreOverrides: cfg.Matching.RestoreOverrides,
			SituationPrefix:  cfg.Ingest.SituationPrefix,
			MaxUploadBytes:   int64(cfg.Ingest.MaxFileMB) << 20,
		},
	)
	health := api.NewHealthChecker(application.DB, application.Redis, application.Backend)
	server := api.NewServer(cfg.Server, handlers, health)

	// Setup graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		addr := fmt.Sprintf("%s:%d", host, port)
		logger.Info("[server] listening", "addr", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			logger.Error("[server] server error", "error", err.Error())
			os.Exit(1)
		}
	}()

	<-done
	logger.Info("[server] shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownSeconds)*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("[server] shutdown error", "error", err.Error())
	}
	logger.Info("[server] stopped")
}
