package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/heimdex/heimdex-clipper/internal/api"
	"github.com/heimdex/heimdex-clipper/internal/batch"
	"github.com/heimdex/heimdex-clipper/internal/config"
	"github.com/heimdex/heimdex-clipper/internal/db"
	"github.com/heimdex/heimdex-clipper/internal/editor"
	"github.com/heimdex/heimdex-clipper/internal/history"
	"github.com/heimdex/heimdex-clipper/internal/logging"
	"github.com/heimdex/heimdex-clipper/internal/playback"
	"github.com/heimdex/heimdex-clipper/internal/preview"
	"github.com/heimdex/heimdex-clipper/internal/remote"
	"github.com/heimdex/heimdex-clipper/internal/render"
	"github.com/heimdex/heimdex-clipper/internal/session"
	"github.com/heimdex/heimdex-clipper/internal/ui"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	for _, dir := range []string{cfg.DataDir(), cfg.PreviewDir(), cfg.OutputDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting heimdex clipper", "version", config.Version, "data_dir", logging.SanitizePath(cfg.DataDir()))

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	kv := db.NewKV(database.Conn())

	authToken, err := ensureAuthToken(kv)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Printf("║                  HEIMDEX CLIPPER v%-24s║\n", config.Version)
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// batch cutting stays nil without ffmpeg so it fails validation up front;
	// previews render through a cutter that always reports the problem
	var batchCutter render.Cutter
	previewCutter := render.Cutter(render.CutterFunc(func(context.Context, render.CutRequest) (render.CutResult, error) {
		return render.CutResult{}, errors.New("ffmpeg is not available")
	}))
	var probe *render.CachedProbe

	ffmpeg, err := render.NewFFmpegCutter(render.Config{
		FFmpegPath: cfg.FFmpegPath(),
		OutputDir:  cfg.OutputDir(),
		Logger:     logger,
	})
	if err != nil {
		logger.Warn("ffmpeg unavailable, cutting disabled", "error", err)
	} else {
		batchCutter = ffmpeg
		previewCutter = ffmpeg
		probe = render.NewCachedProbe(ffmpeg, logger)

		initCtx, initCancel := context.WithTimeout(ctx, 10*time.Second)
		if caps, err := probe.Refresh(initCtx); err != nil {
			logger.Warn("initial ffmpeg probe failed", "error", err)
		} else {
			logger.Info("ffmpeg detected", "version", caps.Version, "path", logging.SanitizePath(caps.Path))
		}
		initCancel()
	}

	sessions := session.NewReconciler(session.NewSQLiteStore(database.Conn()), logger)
	autosave := session.NewAutosaver(sessions, cfg.AutosaveDelay(), logger)
	hist := history.NewRecorder(history.NewKVStore(kv), cfg.HistoryCap(), logger)

	var processor batch.Processor
	if cfg.RemoteEnabled() {
		client, err := remote.NewClient(remote.Config{
			BaseURL:   cfg.RemoteURL(),
			Token:     cfg.RemoteToken(),
			OutputDir: cfg.OutputDir(),
			Logger:    logger,
		})
		if err != nil {
			return fmt.Errorf("failed to configure remote processing: %w", err)
		}
		processor = client
		logger.Info("remote processing enabled", "base_url", cfg.RemoteURL(), "concurrency", cfg.RemoteConcurrency())
	}

	orchestrator := batch.New(batch.Config{
		Cutter:    batchCutter,
		Autosave:  autosave,
		Processor: processor,
		History:   hist,
		Width:     cfg.RemoteConcurrency(),
		Waits: batch.Waits{
			InterItem: cfg.ItemDelay(),
			Settle:    cfg.SettleDelay(),
			Display:   cfg.DisplayDelay(),
		},
		Logger: logger,
	})

	previews := preview.NewManager(previewCutter, cfg.PreviewDir(), logger)
	workspace := editor.New(sessions, autosave, previews, orchestrator, logger)

	apiServer := api.NewServer(api.ServerConfig{
		Port:         cfg.Port(),
		Tokens:       kv,
		Workspace:    workspace,
		Batch:        orchestrator,
		Sessions:     sessions,
		History:      hist,
		Preview:      previews,
		Playback:     playback.NewServer(logger, cfg.PreviewDir(), cfg.OutputDir()),
		Probe:        probe,
		Logger:       logger,
		StartTime:    startTime,
		Version:      config.Version,
		BatchContext: ctx,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})
	var quitOnce sync.Once
	quit := func() { quitOnce.Do(func() { close(quitCh) }) }

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			quit()
		case <-quitCh:
		}
	}()

	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Progress: orchestrator,
			Logger:   logger,
			OnOpenDir: func() {
				openFolder(logger, cfg.OutputDir())
			},
			OnQuit: quit,
		})
		go tray.Run()
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	// a running batch records its last outputs before the database closes
	cancel()
	if err := orchestrator.Wait(shutdownCtx); err != nil {
		logger.Error("background batch did not stop in time", "error", err)
	}
	workspace.Close(shutdownCtx)
	previews.Close()

	logger.Info("shutdown complete")
	return nil
}

func ensureAuthToken(kv *db.KV) (string, error) {
	ctx := context.Background()

	existing, err := kv.Get(ctx, api.AuthTokenKey)
	if err == nil && existing != "" {
		return existing, nil
	}

	token := uuid.NewString()
	if err := kv.Set(ctx, api.AuthTokenKey, token); err != nil {
		return "", err
	}

	return token, nil
}

func openFolder(logger *slog.Logger, dir string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", dir)
	case "windows":
		cmd = exec.Command("explorer", dir)
	default:
		cmd = exec.Command("xdg-open", dir)
	}
	if err := cmd.Start(); err != nil {
		logger.Warn("failed to open folder", "dir", logging.SanitizePath(dir), "error", err)
		return
	}
	go cmd.Wait()
}
