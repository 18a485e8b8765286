package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/imagedrop/backend/internal/models"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoredFileHandler_RecentAndGet(t *testing.T) {
	env := newTestEnv(t, nil)
	env.store.AddFile("f1", "one.png", "image/png", pngData)
	env.store.AddFile("f2", "two.jpg", "image/jpeg", jpegData)

	rec := env.do(http.MethodGet, "/api/files/recent", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var files []models.FileInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &files))
	assert.Len(t, files, 2)

	rec = env.do(http.MethodGet, "/api/files/recent?limit=1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &files))
	assert.Len(t, files, 1)

	rec = env.do(http.MethodGet, "/api/files/f2", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var info models.FileInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "two.jpg", info.Name)
	assert.Equal(t, int64(len(jpegData)), info.Size)

	rec = env.do(http.MethodGet, "/api/files/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeAPIError(t, rec).Code)
}

func TestStoredFileHandler_ContentAndDelete(t *testing.T) {
	env := newTestEnv(t, nil)
	env.store.AddFile("f1", "one.png", "image/png", pngData)

	rec := env.do(http.MethodGet, "/api/files/f1/content", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), `filename=one.png`)
	assert.Equal(t, pngData, rec.Body.Bytes())

	rec = env.do(http.MethodDelete, "/api/files/f1", nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, env.store.GetFileCount())

	rec = env.do(http.MethodDelete, "/api/files/f1", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeAPIError(t, rec).Code)

	rec = env.do(http.MethodGet, "/api/files/f1/content", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStoredFileHandler_UploadedFileCanBeDownloaded(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.createWidget(t, nil)
	env.addFiles(t, id, testPart{name: "a.png", data: pngData})

	rec := env.do(http.MethodPost, "/api/widgets/"+id+"/upload", nil, "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	env.jobs.Wait()

	rec = env.do(http.MethodGet, "/api/files/recent", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var files []models.FileInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &files))
	require.Len(t, files, 1)

	rec = env.do(http.MethodGet, "/api/files/"+files[0].ID+"/content", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pngData, rec.Body.Bytes())
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		query   string
		want    int
		wantErr bool
	}{
		{"", defaultListLimit, false},
		{"?limit=5", 5, false},
		{"?limit=100000", maxListLimit, false},
		{"?limit=0", 0, true},
		{"?limit=-3", 0, true},
		{"?limit=abc", 0, true},
	}

	e := echo.New()
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/journal"+tt.query, nil)
			c := e.NewContext(req, httptest.NewRecorder())

			got, err := parseLimit(c)
			if tt.wantErr {
				require.Error(t, err)
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, http.StatusBadRequest, apiErr.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJournalHandler_RecentAfterUpload(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.createWidget(t, nil)
	env.addFiles(t, id, testPart{name: "a.png", data: pngData}, testPart{name: "b.jpg", data: jpegData})

	rec := env.do(http.MethodPost, "/api/widgets/"+id+"/upload", nil, "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	env.jobs.Wait()

	rec = env.do(http.MethodGet, "/api/journal?limit=10", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var records []models.JournalRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 2)
	assert.Equal(t, "b.jpg", records[0].FileName, "newest first")
	assert.Equal(t, models.JournalStatusUploaded, records[0].Status)
	assert.Equal(t, id, records[0].WidgetID)
	assert.Equal(t, "local", records[0].Sink)

	rec = env.do(http.MethodGet, "/api/files/recent", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var files []models.FileInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &files))
	assert.Len(t, files, 2)
}

func TestJournalHandler_Disabled(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/journal", nil), rec)

	err := NewJournalHandler(nil).HandleRecentJournal(c)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
}
