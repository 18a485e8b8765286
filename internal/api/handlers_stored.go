// handlers_stored.go - Handlers for files persisted by the local sink
package api

import (
	"errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/imagedrop/backend/internal/storage"
	"github.com/labstack/echo/v4"
)

const (
	defaultListLimit = 20
	maxListLimit     = 500
)

// StoredFileHandlerImpl implements the StoredFileHandler interface
type StoredFileHandlerImpl struct {
	store storage.Store
}

// NewStoredFileHandler creates a new stored file handler
func NewStoredFileHandler(store storage.Store) StoredFileHandler {
	return &StoredFileHandlerImpl{store: store}
}

// HandleRecentFiles returns the most recently stored files
func (h *StoredFileHandlerImpl) HandleRecentFiles(c echo.Context) error {
	limit, err := parseLimit(c)
	if err != nil {
		return err
	}

	files, err := h.store.List(limit)
	if err != nil {
		return NewInternalError("failed to list files", err)
	}

	return c.JSON(http.StatusOK, files)
}

// HandleGetFile returns metadata for a specific stored file
func (h *StoredFileHandlerImpl) HandleGetFile(c echo.Context) error {
	id := c.Param("id")
	info, err := h.store.Get(id)
	if err != nil {
		return storeError(err, id)
	}
	return c.JSON(http.StatusOK, info)
}

// HandleGetFileContent streams the bytes of a stored file
func (h *StoredFileHandlerImpl) HandleGetFileContent(c echo.Context) error {
	id := c.Param("id")
	info, err := h.store.Get(id)
	if err != nil {
		return storeError(err, id)
	}
	rc, err := h.store.Open(id)
	if err != nil {
		return storeError(err, id)
	}
	defer rc.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition,
		mime.FormatMediaType("inline", map[string]string{"filename": info.Name}))
	return c.Stream(http.StatusOK, info.ContentType, rc)
}

// HandleDeleteFile removes a stored file
func (h *StoredFileHandlerImpl) HandleDeleteFile(c echo.Context) error {
	id := c.Param("id")
	if err := h.store.Delete(id); err != nil {
		return storeError(err, id)
	}
	return c.NoContent(http.StatusNoContent)
}

func storeError(err error, id string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return NewNotFoundError("file", id)
	}
	return NewInternalError("stored file unavailable", err)
}

// parseLimit reads the optional ?limit query parameter.
func parseLimit(c echo.Context) (int, error) {
	v := c.QueryParam("limit")
	if v == "" {
		return defaultListLimit, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, NewValidationError("limit")
	}
	if n > maxListLimit {
		n = maxListLimit
	}
	return n, nil
}
