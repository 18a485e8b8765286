// handlers_journal.go - Upload journal and preset handlers
package api

import (
	"net/http"

	"github.com/imagedrop/backend/internal/journal"
	"github.com/labstack/echo/v4"
)

// JournalHandlerImpl implements the JournalHandler interface
type JournalHandlerImpl struct {
	journal journal.Journal
}

// NewJournalHandler creates a new journal handler. A nil journal makes every
// request fail with 503.
func NewJournalHandler(j journal.Journal) JournalHandler {
	return &JournalHandlerImpl{journal: j}
}

// HandleRecentJournal returns the latest upload attempts
func (h *JournalHandlerImpl) HandleRecentJournal(c echo.Context) error {
	if h.journal == nil {
		return NewServiceUnavailableError("upload journal is disabled")
	}

	limit, err := parseLimit(c)
	if err != nil {
		return err
	}

	records, err := h.journal.Recent(c.Request().Context(), limit)
	if err != nil {
		return NewInternalError("failed to read journal", err)
	}

	return c.JSON(http.StatusOK, records)
}

// PresetHandlerImpl implements the PresetHandler interface
type PresetHandlerImpl struct {
	presets PresetSource
}

// NewPresetHandler creates a new preset handler
func NewPresetHandler(presets PresetSource) PresetHandler {
	return &PresetHandlerImpl{presets: presets}
}

// HandleListPresets returns every configured widget preset
func (h *PresetHandlerImpl) HandleListPresets(c echo.Context) error {
	return c.JSON(http.StatusOK, h.presets.List())
}
