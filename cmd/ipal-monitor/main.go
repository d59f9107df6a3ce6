package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ipal-monitor/common/logger"
	"ipal-monitor/internal/config"
	"ipal-monitor/internal/service"
	"ipal-monitor/internal/status"
	"ipal-monitor/internal/watcher"

	"go.uber.org/zap"
)

const (
	exportWait      = 30 * time.Second
	shutdownTimeout = 5 * time.Second
)

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// 2. Logger
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "ipal-monitor")
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

	// 3. Service
	monitor, err := service.NewMonitorService(cfg, log)
	if err != nil {
		log.Fatal("Failed to create monitor service", zap.Error(err))
	}
	defer monitor.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := monitor.Start(ctx); err != nil {
		log.Error("Failed to start monitor service", zap.Error(err))
		return
	}

	if cfg.ExportPath != "" {
		if err := export(monitor, cfg.ExportPath); err != nil {
			log.Error("Alert export failed", zap.Error(err))
			return
		}
		log.Info("Alerts exported", zap.String("path", cfg.ExportPath))
		return
	}

	// 4. Status server
	if cfg.StatusAddr != "" {
		srv := &http.Server{
			Addr:              cfg.StatusAddr,
			Handler:           status.NewRouter(monitor, log),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info("Status server listening", zap.String("addr", cfg.StatusAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Status server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warn("Status server shutdown failed", zap.Error(err))
			}
		}()
	}

	// 5. Wait for a signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info("Received signal, shutting down",
		zap.String("signal", sig.String()),
	)
	cancel()

	log.Info("IPAL monitor stopped")
}

// export waits for the first alert snapshot and writes it as a workbook.
func export(monitor *service.MonitorService, path string) error {
	deadline := time.After(exportWait)
	for {
		st := monitor.Alerts().State()
		switch st.Conn {
		case watcher.Live:
			data, err := monitor.ExportAlerts()
			if err != nil {
				return err
			}
			return os.WriteFile(path, data, 0o644)
		case watcher.Error, watcher.Closed:
			return fmt.Errorf("alert subscription not live: %w", st.LastError)
		case watcher.Idle:
			return fmt.Errorf("no facility selected")
		}

		select {
		case <-deadline:
			return fmt.Errorf("no alert snapshot within %s", exportWait)
		case <-time.After(100 * time.Millisecond):
		}
	}
}
