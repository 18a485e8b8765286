// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"github.com/imagedrop/backend/internal/models"
	"github.com/imagedrop/backend/internal/session"
	"github.com/imagedrop/backend/internal/upload"
	"github.com/imagedrop/backend/internal/widget"
	"github.com/labstack/echo/v4"
)

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// WidgetHandler handles widget instance lifecycle operations
type WidgetHandler interface {
	HandleCreateWidget(c echo.Context) error
	HandleGetWidget(c echo.Context) error
	HandleGetSnapshotMsgpack(c echo.Context) error
	HandleDestroyWidget(c echo.Context) error
	HandleClear(c echo.Context) error
	HandleStartUpload(c echo.Context) error
	HandleUploadJobStatus(c echo.Context) error
}

// FileHandler handles the tracked files of a widget
type FileHandler interface {
	HandleAddFiles(c echo.Context) error
	HandleListFiles(c echo.Context) error
	HandleRemoveFile(c echo.Context) error
	HandlePreviewFile(c echo.Context) error
}

// StoredFileHandler handles files persisted by the local sink
type StoredFileHandler interface {
	HandleRecentFiles(c echo.Context) error
	HandleGetFile(c echo.Context) error
	HandleGetFileContent(c echo.Context) error
	HandleDeleteFile(c echo.Context) error
}

// JournalHandler handles upload journal queries
type JournalHandler interface {
	HandleRecentJournal(c echo.Context) error
}

// PresetHandler handles widget preset listing
type PresetHandler interface {
	HandleListPresets(c echo.Context) error
}

// EventsHandler streams widget events over a websocket
type EventsHandler interface {
	HandleEvents(c echo.Context) error
}

// WidgetRegistry defines the interface for widget instance management
// This allows mocking in tests
type WidgetRegistry interface {
	Create(preset string, cfg widget.Config) (*session.Instance, error)
	Get(id string) (*session.Instance, bool)
	Describe(id string) (models.WidgetSession, bool)
	Touch(id string) bool
	Destroy(id string) bool
	Len() int
}

// UploadJobs defines the interface for background upload jobs
type UploadJobs interface {
	StartJob(widgetID string, u upload.Uploader) (*upload.Job, error)
	GetJob(id string) (*upload.Job, bool)
	Refresh(id string, u upload.Uploader)
}

// PresetSource defines the interface for preset lookup
type PresetSource interface {
	List() []models.WidgetPreset
	Apply(name string, base widget.Config) (widget.Config, error)
}

var (
	_ WidgetRegistry = (*session.Manager)(nil)
	_ UploadJobs     = (*upload.Manager)(nil)
)
