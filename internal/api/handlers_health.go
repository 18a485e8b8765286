// handlers_health.go - Health check handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version string
	sink    string
	widgets WidgetRegistry
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version, sink string, widgets WidgetRegistry) HealthHandler {
	return &HealthHandlerImpl{
		version: version,
		sink:    sink,
		widgets: widgets,
	}
}

// HandleHealth returns server health status
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	resp := map[string]interface{}{
		"status":  "ok",
		"version": h.version,
		"sink":    h.sink,
	}
	if h.widgets != nil {
		resp["widgets"] = h.widgets.Len()
	}
	return c.JSON(http.StatusOK, resp)
}
