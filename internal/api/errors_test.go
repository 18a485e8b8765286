package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/imagedrop/backend/internal/logging"
	"github.com/imagedrop/backend/internal/session"
	"github.com/imagedrop/backend/internal/widget"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		showDetails bool
		wantStatus  int
		wantCode    string
		wantDetails string
	}{
		{"api error", NewNotFoundError("widget", "w1"), false, http.StatusNotFound, "NOT_FOUND", ""},
		{"echo error", echo.NewHTTPError(http.StatusMethodNotAllowed, "nope"), false, http.StatusMethodNotAllowed, "HTTP_ERROR", ""},
		{"plain error hidden", errors.New("boom"), false, http.StatusInternalServerError, "UNKNOWN_ERROR", ""},
		{"plain error shown", errors.New("boom"), true, http.StatusInternalServerError, "UNKNOWN_ERROR", "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

			NewErrorHandler(logging.Discard(), tt.showDetails)(tt.err, c)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body APIError
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, tt.wantDetails, body.Details)
		})
	}
}

func TestFromWidgetError(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, fromWidgetError("w", widget.ErrDestroyed).Status)
	assert.Equal(t, http.StatusServiceUnavailable, fromWidgetError("w", session.ErrTooManySessions).Status)
	assert.Equal(t, http.StatusInternalServerError, fromWidgetError("w", errors.New("x")).Status)
}
