package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/imagedrop/backend/internal/logging"
	"github.com/imagedrop/backend/internal/preset"
	"github.com/imagedrop/backend/internal/session"
	"github.com/imagedrop/backend/internal/sink"
	"github.com/imagedrop/backend/internal/testutil"
	"github.com/imagedrop/backend/internal/upload"
	"github.com/imagedrop/backend/internal/widget"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

var (
	pngData  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	jpegData = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00")
)

const testPresets = `
presets:
  avatar:
    max_files: 1
    max_file_size: 1KiB
    multiple: false
    labels:
      drag: Drop your avatar
`

type testEnv struct {
	e       *echo.Echo
	widgets *session.Manager
	jobs    *upload.Manager
	store   *testutil.MockStorage
	journal *testutil.MemoryJournal
}

// newTestEnv wires the API over real managers. A nil factory uploads into
// the mock store through the local sink.
func newTestEnv(t *testing.T, factory session.UploadFactory) *testEnv {
	t.Helper()
	return newTestEnvWithOptions(t, session.Options{Upload: factory}, factory == nil)
}

// newTestEnvWithOptions builds the env around opts. With localSink set,
// opts.Upload is replaced by the local sink writing to the mock store.
func newTestEnvWithOptions(t *testing.T, opts session.Options, localSink bool) *testEnv {
	t.Helper()
	log := logging.Discard()

	env := &testEnv{
		e:       echo.New(),
		store:   testutil.NewMockStorage(),
		journal: testutil.NewMemoryJournal(),
		jobs:    upload.NewManager(0, log),
	}
	if localSink {
		local := sink.NewLocal(env.store)
		opts.Upload = func(id string) widget.UploadFunc {
			return sink.UploadFunc(local, env.journal, id, log)
		}
	}
	opts.Logger = log
	env.widgets = session.NewManager(opts)
	t.Cleanup(env.widgets.Close)

	presets, err := preset.LoadFromReader(strings.NewReader(testPresets))
	require.NoError(t, err)

	handlers := NewHandlers(&Dependencies{
		Widgets:        env.widgets,
		Jobs:           env.jobs,
		Presets:        presets,
		Store:          env.store,
		Journal:        env.journal,
		WidgetDefaults: widget.DefaultConfig(),
		SinkName:       "local",
		Version:        "test",
		Logger:         log,
	})
	SetupMiddleware(env.e, log, true)
	RegisterRoutes(env.e, handlers)
	return env
}

func (env *testEnv) do(method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) doJSON(method, path string, v interface{}) *httptest.ResponseRecorder {
	var body io.Reader
	if v != nil {
		data, _ := json.Marshal(v)
		body = bytes.NewReader(data)
	}
	return env.do(method, path, body, echo.MIMEApplicationJSON)
}

// createWidget creates a widget and returns its id.
func (env *testEnv) createWidget(t *testing.T, req map[string]interface{}) string {
	t.Helper()
	rec := env.doJSON(http.MethodPost, "/api/widgets", req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp widgetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ID)
	return resp.ID
}

type testPart struct {
	name        string
	contentType string // empty lets the writer declare application/octet-stream
	data        []byte
}

func multipartBody(t *testing.T, parts ...testPart) (*bytes.Buffer, string) {
	t.Helper()
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	for _, p := range parts {
		var w io.Writer
		var err error
		if p.contentType == "" {
			w, err = writer.CreateFormFile(FormField, p.name)
		} else {
			h := make(textproto.MIMEHeader)
			h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, FormField, p.name))
			h.Set("Content-Type", p.contentType)
			w, err = writer.CreatePart(h)
		}
		require.NoError(t, err)
		_, err = w.Write(p.data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func (env *testEnv) addFiles(t *testing.T, id string, parts ...testPart) intakeResponse {
	t.Helper()
	body, ct := multipartBody(t, parts...)
	rec := env.do(http.MethodPost, "/api/widgets/"+id+"/files", body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp intakeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func decodeAPIError(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var apiErr APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	return apiErr
}
