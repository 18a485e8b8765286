// handlers_widget.go - Widget instance lifecycle handlers
package api

import (
	"errors"
	"net/http"

	"github.com/imagedrop/backend/internal/models"
	"github.com/imagedrop/backend/internal/preset"
	"github.com/imagedrop/backend/internal/session"
	"github.com/imagedrop/backend/internal/upload"
	"github.com/imagedrop/backend/internal/widget"
	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// WidgetHandlerImpl implements the WidgetHandler interface
type WidgetHandlerImpl struct {
	widgets  WidgetRegistry
	jobs     UploadJobs
	presets  PresetSource
	defaults widget.Config
}

// NewWidgetHandler creates a new widget handler. defaults is the base
// configuration presets and request options are applied to.
func NewWidgetHandler(widgets WidgetRegistry, jobs UploadJobs, presets PresetSource, defaults widget.Config) WidgetHandler {
	if presets == nil {
		presets = preset.NewRegistry(nil)
	}
	return &WidgetHandlerImpl{
		widgets:  widgets,
		jobs:     jobs,
		presets:  presets,
		defaults: defaults,
	}
}

// widgetResponse describes a widget together with its current state.
type widgetResponse struct {
	models.WidgetSession
	Snapshot models.Snapshot `json:"snapshot"`
}

// HandleCreateWidget creates a widget instance from a preset and options
func (h *WidgetHandlerImpl) HandleCreateWidget(c echo.Context) error {
	var req createWidgetRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	if err := req.validate(); err != nil {
		return err
	}

	cfg, err := h.presets.Apply(req.Preset, h.defaults)
	if err != nil {
		if errors.Is(err, preset.ErrUnknownPreset) {
			return NewNotFoundError("preset", req.Preset)
		}
		return NewBadRequestError("invalid preset", err)
	}
	cfg, err = preset.Overlay(req.options(), cfg)
	if err != nil {
		return NewBadRequestError("invalid widget options", err)
	}

	inst, err := h.widgets.Create(req.Preset, cfg)
	if err != nil {
		return fromWidgetError("", err)
	}

	return c.JSON(http.StatusCreated, h.describe(inst))
}

// HandleGetWidget returns a widget and its snapshot
func (h *WidgetHandlerImpl) HandleGetWidget(c echo.Context) error {
	inst, err := lookupWidget(h.widgets, c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.describe(inst))
}

// HandleGetSnapshotMsgpack returns the widget snapshot encoded as msgpack
func (h *WidgetHandlerImpl) HandleGetSnapshotMsgpack(c echo.Context) error {
	inst, err := lookupWidget(h.widgets, c)
	if err != nil {
		return err
	}

	data, err := msgpack.Marshal(inst.Controller.Snapshot())
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}

	return c.Blob(http.StatusOK, "application/msgpack", data)
}

// HandleDestroyWidget tears a widget down
func (h *WidgetHandlerImpl) HandleDestroyWidget(c echo.Context) error {
	id := c.Param("id")
	if !h.widgets.Destroy(id) {
		return NewNotFoundError("widget", id)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleClear discards every tracked file of a widget
func (h *WidgetHandlerImpl) HandleClear(c echo.Context) error {
	inst, err := lookupWidget(h.widgets, c)
	if err != nil {
		return err
	}
	inst.Controller.Clear()
	return c.JSON(http.StatusOK, inst.Controller.Snapshot())
}

// HandleStartUpload starts a background upload of the pending files
func (h *WidgetHandlerImpl) HandleStartUpload(c echo.Context) error {
	inst, err := lookupWidget(h.widgets, c)
	if err != nil {
		return err
	}

	job, err := h.jobs.StartJob(inst.ID, inst.Controller)
	if err != nil {
		if errors.Is(err, upload.ErrAlreadyRunning) {
			return NewConflictError("an upload is already running for this widget")
		}
		return NewInternalError("failed to start upload", err)
	}

	return c.JSON(http.StatusAccepted, job)
}

// HandleUploadJobStatus returns the status of an upload job
func (h *WidgetHandlerImpl) HandleUploadJobStatus(c echo.Context) error {
	id := c.Param("jobId")
	job, ok := h.jobs.GetJob(id)
	if !ok {
		return NewNotFoundError("upload job", id)
	}

	if job.Status == upload.StatusRunning {
		if inst, ok := h.widgets.Get(job.WidgetID); ok {
			h.jobs.Refresh(id, inst.Controller)
			job, _ = h.jobs.GetJob(id)
		}
	}

	return c.JSON(http.StatusOK, job)
}

func (h *WidgetHandlerImpl) describe(inst *session.Instance) widgetResponse {
	info, _ := h.widgets.Describe(inst.ID)
	return widgetResponse{
		WidgetSession: info,
		Snapshot:      inst.Controller.Snapshot(),
	}
}

// lookupWidget resolves the :id path parameter.
func lookupWidget(widgets WidgetRegistry, c echo.Context) (*session.Instance, error) {
	id := c.Param("id")
	inst, ok := widgets.Get(id)
	if !ok {
		return nil, NewNotFoundError("widget", id)
	}
	return inst, nil
}

// Request types with validation

type createWidgetRequest struct {
	Preset        string        `json:"preset"`
	MaxFiles      int           `json:"maxFiles"`
	MaxFileSize   string        `json:"maxFileSize"`
	AcceptedTypes []string      `json:"acceptedTypes"`
	Multiple      *bool         `json:"multiple"`
	Labels        models.Labels `json:"labels"`
	Theme         string        `json:"theme"`
}

func (r *createWidgetRequest) validate() error {
	if r.MaxFiles < 0 {
		return NewValidationError("maxFiles")
	}
	for _, t := range r.AcceptedTypes {
		if t == "" {
			return NewValidationError("acceptedTypes")
		}
	}
	return nil
}

func (r *createWidgetRequest) options() models.WidgetPreset {
	return models.WidgetPreset{
		MaxFiles:      r.MaxFiles,
		MaxFileSize:   r.MaxFileSize,
		AcceptedTypes: r.AcceptedTypes,
		Multiple:      r.Multiple,
		Labels:        r.Labels,
		Theme:         r.Theme,
	}
}
