// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"github.com/imagedrop/backend/internal/journal"
	"github.com/imagedrop/backend/internal/logging"
	"github.com/imagedrop/backend/internal/preset"
	"github.com/imagedrop/backend/internal/storage"
	"github.com/imagedrop/backend/internal/widget"
	"github.com/labstack/echo/v4"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Widgets        WidgetRegistry
	Jobs           UploadJobs
	Presets        PresetSource
	Store          storage.Store
	Journal        journal.Journal
	WidgetDefaults widget.Config
	SinkName       string
	Version        string
	// WebSocketMaxMessageKB caps client websocket messages.
	WebSocketMaxMessageKB int
	Logger                logging.Logger
}

// Handlers holds all handler instances
type Handlers struct {
	Health  HealthHandler
	Widget  WidgetHandler
	Files   FileHandler
	Stored  StoredFileHandler
	Journal JournalHandler
	Presets PresetHandler
	Events  EventsHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	log := deps.Logger
	if log == nil {
		log = logging.Default()
	}
	presets := deps.Presets
	if presets == nil {
		presets = preset.NewRegistry(nil)
	}
	return &Handlers{
		Health:  NewHealthHandler(deps.Version, deps.SinkName, deps.Widgets),
		Widget:  NewWidgetHandler(deps.Widgets, deps.Jobs, presets, deps.WidgetDefaults),
		Files:   NewFileHandler(deps.Widgets),
		Stored:  NewStoredFileHandler(deps.Store),
		Journal: NewJournalHandler(deps.Journal),
		Presets: NewPresetHandler(presets),
		Events:  NewWebSocketHandler(deps.Widgets, deps.WebSocketMaxMessageKB, log),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	apiGroup := e.Group("/api")

	// Health check
	apiGroup.GET("/health", handlers.Health.HandleHealth)

	// Presets
	apiGroup.GET("/presets", handlers.Presets.HandleListPresets)

	// Widget instances
	widgetGroup := apiGroup.Group("/widgets")
	widgetGroup.POST("", handlers.Widget.HandleCreateWidget)
	widgetGroup.GET("/:id", handlers.Widget.HandleGetWidget)
	widgetGroup.GET("/:id/snapshot/msgpack", handlers.Widget.HandleGetSnapshotMsgpack)
	widgetGroup.DELETE("/:id", handlers.Widget.HandleDestroyWidget)
	widgetGroup.POST("/:id/clear", handlers.Widget.HandleClear)
	widgetGroup.POST("/:id/upload", handlers.Widget.HandleStartUpload)
	widgetGroup.GET("/:id/ws", handlers.Events.HandleEvents)

	// Tracked files
	widgetGroup.POST("/:id/files", handlers.Files.HandleAddFiles)
	widgetGroup.GET("/:id/files", handlers.Files.HandleListFiles)
	widgetGroup.DELETE("/:id/files/:fileId", handlers.Files.HandleRemoveFile)
	widgetGroup.GET("/:id/files/:fileId/preview", handlers.Files.HandlePreviewFile)

	// Upload jobs
	apiGroup.GET("/uploads/:jobId", handlers.Widget.HandleUploadJobStatus)

	// Stored files and journal
	apiGroup.GET("/files/recent", handlers.Stored.HandleRecentFiles)
	apiGroup.GET("/files/:id", handlers.Stored.HandleGetFile)
	apiGroup.GET("/files/:id/content", handlers.Stored.HandleGetFileContent)
	apiGroup.DELETE("/files/:id", handlers.Stored.HandleDeleteFile)
	apiGroup.GET("/journal", handlers.Journal.HandleRecentJournal)
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, log logging.Logger, showErrorDetails bool) {
	e.HTTPErrorHandler = NewErrorHandler(log, showErrorDetails)
}
