package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/imagedrop/backend/internal/api"
	"github.com/imagedrop/backend/internal/config"
	"github.com/imagedrop/backend/internal/journal"
	"github.com/imagedrop/backend/internal/logging"
	"github.com/imagedrop/backend/internal/preset"
	"github.com/imagedrop/backend/internal/session"
	"github.com/imagedrop/backend/internal/sink"
	"github.com/imagedrop/backend/internal/storage"
	"github.com/imagedrop/backend/internal/upload"
	"github.com/imagedrop/backend/internal/web"
	"github.com/imagedrop/backend/internal/widget"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Get the executable's directory for config resolution
	exePath, err := os.Executable()
	if err != nil {
		fmt.Printf("Failed to get executable path: %v\n", err)
		os.Exit(1)
	}
	exeDir := filepath.Dir(exePath)

	configPath := filepath.Join(exeDir, config.FileName)
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Printf("Failed to create directories: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(os.Stderr, cfg.Advanced.LogFormat, cfg.Advanced.LogLevel)
	ctx := context.Background()

	fileStore, err := storage.NewLocalStore(cfg.GetUploadDir())
	if err != nil {
		log.Error(ctx, "failed to initialize storage", "error", err)
		os.Exit(1)
	}

	uploadJournal, err := journal.Open(cfg.Storage.JournalPath)
	if err != nil {
		log.Error(ctx, "failed to open upload journal", "path", cfg.Storage.JournalPath, "error", err)
		os.Exit(1)
	}
	defer uploadJournal.Close()

	presets, err := preset.Load(cfg.Storage.PresetsPath)
	if err != nil {
		log.Error(ctx, "failed to load presets", "path", cfg.Storage.PresetsPath, "error", err)
		os.Exit(1)
	}

	dest, err := newSink(ctx, cfg, fileStore)
	if err != nil {
		log.Error(ctx, "failed to initialize upload sink", "sink", cfg.Sink.Type, "error", err)
		os.Exit(1)
	}

	widgets := session.NewManager(session.Options{
		MaxSessions: cfg.Widget.MaxInstances,
		Upload: func(widgetID string) widget.UploadFunc {
			return sink.UploadFunc(dest, uploadJournal, widgetID, log)
		},
		Logger: log,
	})
	defer widgets.Close()

	jobs := upload.NewManager(cfg.UploadTimeout(), log)

	// Background cleanup of idle widgets and finished jobs
	cleanupCtx, stopCleanup := context.WithCancel(ctx)
	defer stopCleanup()
	go func() {
		ticker := time.NewTicker(cfg.CleanupInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := widgets.CleanupOldSessions(cfg.SessionTimeout()); n > 0 {
					log.Info(cleanupCtx, "idle widgets destroyed", "count", n)
				}
				jobs.CleanupOldJobs(time.Duration(cfg.Processing.JobRetentionMinutes) * time.Minute)
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	defaults := widget.DefaultConfig()
	defaults.MaxFiles = cfg.Widget.MaxFiles
	defaults.MaxFileSize = cfg.MaxFileSize()
	defaults.AcceptedTypes = cfg.AcceptedTypes()
	defaults.Multiple = cfg.Widget.Multiple
	defaults.Theme = cfg.Widget.Theme

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			if !cfg.Advanced.EnableRequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return strings.HasSuffix(path, "/preview") ||
				strings.HasPrefix(path, "/api/uploads/") ||
				path == "/api/health"
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
		Skipper: func(c echo.Context) bool {
			return strings.HasSuffix(c.Request().URL.Path, "/ws") || isWebSocket(c)
		},
		ErrorMessage: "Request timeout",
	}))

	if cfg.Processing.EnableCompression {
		e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
			Level: cfg.Processing.CompressionLevel,
			Skipper: func(c echo.Context) bool {
				return isWebSocket(c) || strings.HasSuffix(c.Request().URL.Path, "/preview")
			},
		}))
	}

	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	if cfg.Server.EnableCORS {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.AllowedOrigins(),
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}

	api.SetupMiddleware(e, log, cfg.Advanced.LogLevel == "debug")
	api.RegisterRoutes(e, api.NewHandlers(&api.Dependencies{
		Widgets:               widgets,
		Jobs:                  jobs,
		Presets:               presets,
		Store:                 fileStore,
		Journal:               uploadJournal,
		WidgetDefaults:        defaults,
		SinkName:              dest.Name(),
		Version:               Version,
		WebSocketMaxMessageKB: cfg.Advanced.WebSocketMaxMessageSize,
		Logger:                log,
	}))

	embeddedMode := web.HasEmbeddedFiles()
	if embeddedMode {
		if err := web.RegisterStaticRoutes(e); err != nil {
			log.Warn(ctx, "failed to register static routes", "error", err)
			embeddedMode = false
		}
	}

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           Image Drop Server                               ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("║  Sink:       %-45s║\n", dest.Name())
	fmt.Printf("║  Max File:   %-45s║\n", humanize.IBytes(uint64(defaults.MaxFileSize)))
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Data Dir:  %-46s║\n", cfg.GetDataDir())
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")

	if embeddedMode {
		fmt.Printf("Open http://localhost:%d in your browser\n\n", cfg.Server.Port)
	}

	go func() {
		if err := e.StartServer(s); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "server stopped", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info(ctx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Warn(ctx, "graceful shutdown failed", "error", err)
	}
	if err := jobs.Shutdown(shutdownCtx); err != nil {
		log.Warn(ctx, "upload jobs still running at exit", "error", err)
	}
}

// newSink builds the upload destination selected in the configuration.
func newSink(ctx context.Context, cfg *config.AppConfig, store storage.Store) (sink.Sink, error) {
	switch cfg.Sink.Type {
	case config.SinkS3:
		s3, err := sink.NewS3(ctx, sink.S3Config{
			Endpoint:      cfg.Sink.S3Endpoint,
			Region:        cfg.Sink.S3Region,
			Bucket:        cfg.Sink.S3Bucket,
			AccessKey:     cfg.Sink.S3AccessKey,
			SecretKey:     cfg.Sink.S3SecretKey,
			Prefix:        cfg.Sink.S3Prefix,
			UsePathStyle:  cfg.Sink.S3UsePathStyle,
			PresignExpiry: time.Duration(cfg.Sink.PresignExpiryMinutes) * time.Minute,
		})
		if err != nil {
			return nil, err
		}
		return s3, nil
	default:
		return sink.NewLocal(store), nil
	}
}

func isWebSocket(c echo.Context) bool {
	return strings.EqualFold(c.Request().Header.Get(echo.HeaderUpgrade), "websocket")
}
