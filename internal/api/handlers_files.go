// handlers_files.go - Tracked file handlers of a widget
package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gabriel-vasile/mimetype"
	"github.com/imagedrop/backend/internal/events"
	"github.com/imagedrop/backend/internal/models"
	"github.com/imagedrop/backend/internal/widget"
	"github.com/labstack/echo/v4"
)

// FormField is the multipart field carrying the files of a batch.
const FormField = "files"

// FileHandlerImpl implements the FileHandler interface
type FileHandlerImpl struct {
	widgets WidgetRegistry
}

// NewFileHandler creates a new file handler
func NewFileHandler(widgets WidgetRegistry) FileHandler {
	return &FileHandlerImpl{widgets: widgets}
}

// intakeResponse reports the outcome of one batch.
type intakeResponse struct {
	Accepted int             `json:"accepted"`
	Rejected []rejection     `json:"rejected"`
	Snapshot models.Snapshot `json:"snapshot"`
}

type rejection struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HandleAddFiles adds a multipart batch of files to a widget
func (h *FileHandlerImpl) HandleAddFiles(c echo.Context) error {
	inst, err := lookupWidget(h.widgets, c)
	if err != nil {
		return err
	}

	form, err := c.MultipartForm()
	if err != nil {
		return NewBadRequestError("invalid multipart form", err)
	}
	headers := form.File[FormField]
	if len(headers) == 0 {
		return NewValidationError(FormField)
	}

	batch := make([]widget.File, 0, len(headers))
	for _, fh := range headers {
		f, err := readPart(fh)
		if err != nil {
			return NewBadRequestError("failed to read uploaded file", err)
		}
		batch = append(batch, f)
	}

	accepted, addErr := inst.Controller.AddFiles(batch)
	if errors.Is(addErr, widget.ErrDestroyed) {
		return fromWidgetError(inst.ID, addErr)
	}

	return c.JSON(http.StatusOK, intakeResponse{
		Accepted: len(accepted),
		Rejected: rejections(addErr),
		Snapshot: inst.Controller.Snapshot(),
	})
}

// HandleListFiles lists the tracked files of a widget
func (h *FileHandlerImpl) HandleListFiles(c echo.Context) error {
	inst, err := lookupWidget(h.widgets, c)
	if err != nil {
		return err
	}

	uploadedOnly := false
	if v := c.QueryParam("uploaded"); v != "" {
		uploadedOnly, err = strconv.ParseBool(v)
		if err != nil {
			return NewValidationError("uploaded")
		}
	}

	entries := inst.Controller.Entries()
	if uploadedOnly {
		filtered := entries[:0]
		for _, e := range entries {
			if e.Status == models.EntryStatusUploaded {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	return c.JSON(http.StatusOK, entries)
}

// HandleRemoveFile removes one tracked file
func (h *FileHandlerImpl) HandleRemoveFile(c echo.Context) error {
	inst, err := lookupWidget(h.widgets, c)
	if err != nil {
		return err
	}

	fileID := c.Param("fileId")
	if !inst.Controller.RemoveFile(fileID) {
		return NewNotFoundError("file", fileID)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandlePreviewFile streams the raw bytes of a tracked file
func (h *FileHandlerImpl) HandlePreviewFile(c echo.Context) error {
	inst, err := lookupWidget(h.widgets, c)
	if err != nil {
		return err
	}

	fileID := c.Param("fileId")
	f, ok := inst.Controller.File(fileID)
	if !ok {
		return NewNotFoundError("file", fileID)
	}

	rc, err := f.Open()
	if err != nil {
		return NewInternalError("failed to open file", err)
	}
	defer rc.Close()

	c.Response().Header().Set("Cache-Control", "no-store")
	c.Response().Header().Set(echo.HeaderContentLength, strconv.FormatInt(f.Size(), 10))
	return c.Stream(http.StatusOK, f.Type(), rc)
}

// readPart loads one multipart file into memory. The declared type comes
// from the part header and is sniffed from the content when missing.
func readPart(fh *multipart.FileHeader) (widget.File, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", fh.Filename, err)
	}

	contentType := fh.Header.Get(echo.HeaderContentType)
	if contentType == "" || contentType == echo.MIMEOctetStream {
		contentType = mimetype.Detect(data).String()
	}

	return widget.NewMemoryFile(fh.Filename, contentType, data), nil
}

// rejections flattens the joined intake error into client messages.
func rejections(err error) []rejection {
	out := []rejection{}
	if err == nil {
		return out
	}

	errs := []error{err}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	}
	for _, e := range errs {
		out = append(out, rejection{Code: events.ErrorCode(e), Message: e.Error()})
	}
	return out
}
