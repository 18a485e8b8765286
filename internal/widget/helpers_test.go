package widget

import (
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/imagedrop/backend/internal/logging"
	"github.com/imagedrop/backend/internal/models"
	"github.com/stretchr/testify/require"
)

const mb = 1 << 20

// stubFile declares a type and size without carrying any data.
type stubFile struct {
	name string
	typ  string
	size int64
}

func (f *stubFile) Name() string { return f.name }
func (f *stubFile) Type() string { return f.typ }
func (f *stubFile) Size() int64  { return f.size }
func (f *stubFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

func jpeg(name string, size int64) File { return &stubFile{name: name, typ: "image/jpeg", size: size} }

type recordingView struct {
	mu       sync.Mutex
	renders  []models.Snapshot
	released int
}

func (v *recordingView) Render(s models.Snapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.renders = append(v.renders, s)
}

func (v *recordingView) Release() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.released++
}

func (v *recordingView) last() models.Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.renders[len(v.renders)-1]
}

// hookRecorder captures every hook invocation.
type hookRecorder struct {
	mu        sync.Mutex
	added     [][]File
	removed   []File
	progress  []float64
	completed [][]File
	errs      []error
}

func (r *hookRecorder) hooks() Hooks {
	return Hooks{
		OnFilesAdded: func(files []File) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.added = append(r.added, files)
		},
		OnFileRemoved: func(f File) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.removed = append(r.removed, f)
		},
		OnUploadProgress: func(_ File, p float64) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.progress = append(r.progress, p)
		},
		OnUploadComplete: func(files []File) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.completed = append(r.completed, files)
		},
		OnError: func(err error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errs = append(r.errs, err)
		},
	}
}

func (r *hookRecorder) errorsMatching(target error) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, err := range r.errs {
		if errors.Is(err, target) {
			n++
		}
	}
	return n
}

func newTestController(t *testing.T, cfg Config) (*Controller, *recordingView, *hookRecorder) {
	t.Helper()
	rec := &hookRecorder{}
	upload := cfg.Hooks.OnUpload
	cfg.Hooks = rec.hooks()
	cfg.Hooks.OnUpload = upload
	cfg.Logger = logging.Discard()

	view := &recordingView{}
	c, err := New(view, cfg)
	require.NoError(t, err)
	return c, view, rec
}
