package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/imagedrop/backend/internal/logging"
	"github.com/imagedrop/backend/internal/widget"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(max int, upload UploadFactory) *Manager {
	return NewManager(Options{MaxSessions: max, Upload: upload, Logger: logging.Discard()})
}

func TestSessionManager(t *testing.T) {
	var uploadedBy string
	m := newTestManager(0, func(id string) widget.UploadFunc {
		return func(ctx context.Context, f widget.File, progress widget.ProgressFunc) error {
			uploadedBy = id
			return nil
		}
	})

	inst, err := m.Create("avatar", widget.Config{MaxFiles: 3})
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len())

	got, ok := m.Get(inst.ID)
	require.True(t, ok)
	assert.Same(t, inst, got)

	info, ok := m.Describe(inst.ID)
	require.True(t, ok)
	assert.Equal(t, "avatar", info.Preset)
	assert.Equal(t, 3, info.Settings.MaxFiles)

	_, err = inst.Controller.AddFiles([]widget.File{widget.NewMemoryFile("a.png", "image/png", []byte("a"))})
	require.NoError(t, err)
	require.NoError(t, inst.Controller.Upload(context.Background()))
	assert.Equal(t, inst.ID, uploadedBy)

	snap, ok := inst.Hub.Last()
	require.True(t, ok)
	require.Len(t, snap.Entries, 1)

	assert.True(t, m.Destroy(inst.ID))
	assert.False(t, m.Destroy(inst.ID))
	assert.True(t, inst.Controller.Destroyed())
	assert.True(t, inst.Hub.Closed())
	_, ok = m.Get(inst.ID)
	assert.False(t, ok)
}

func TestSessionManager_List(t *testing.T) {
	m := newTestManager(0, nil)
	base := time.Now()
	step := 0
	m.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Second)
	}

	a, err := m.Create("a", widget.Config{})
	require.NoError(t, err)
	b, err := m.Create("b", widget.Config{})
	require.NoError(t, err)

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID)
	assert.Equal(t, a.ID, list[1].ID)
}

func TestSessionManager_EvictsLeastRecentlyUsed(t *testing.T) {
	m := newTestManager(2, nil)
	now := time.Now()
	m.now = func() time.Time { return now }

	first, err := m.Create("", widget.Config{})
	require.NoError(t, err)
	now = now.Add(time.Second)
	second, err := m.Create("", widget.Config{})
	require.NoError(t, err)

	now = now.Add(time.Second)
	require.True(t, m.Touch(first.ID))

	now = now.Add(time.Second)
	third, err := m.Create("", widget.Config{})
	require.NoError(t, err)

	assert.Equal(t, 2, m.Len())
	_, ok := m.Get(second.ID)
	assert.False(t, ok)
	assert.True(t, second.Controller.Destroyed())
	_, ok = m.Get(first.ID)
	assert.True(t, ok)
	_, ok = m.Get(third.ID)
	assert.True(t, ok)
}

func TestSessionManager_FullWhileUploading(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	m := newTestManager(1, func(string) widget.UploadFunc {
		return func(ctx context.Context, f widget.File, progress widget.ProgressFunc) error {
			close(started)
			<-release
			return nil
		}
	})

	inst, err := m.Create("", widget.Config{})
	require.NoError(t, err)
	_, err = inst.Controller.AddFiles([]widget.File{widget.NewMemoryFile("a.png", "image/png", []byte("a"))})
	require.NoError(t, err)

	done := make(chan error)
	go func() { done <- inst.Controller.Upload(context.Background()) }()
	<-started

	_, err = m.Create("", widget.Config{})
	assert.ErrorIs(t, err, ErrTooManySessions)

	close(release)
	require.NoError(t, <-done)

	_, err = m.Create("", widget.Config{})
	assert.NoError(t, err)
}

func TestSessionManager_ConcurrentCreateRespectsLimit(t *testing.T) {
	const max = 3
	m := newTestManager(max, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Create("", widget.Config{}); err != nil {
				assert.ErrorIs(t, err, ErrTooManySessions)
			}
			assert.LessOrEqual(t, m.Len(), max)
		}()
	}
	wg.Wait()

	assert.Equal(t, max, m.Len())
	m.mu.RLock()
	assert.Zero(t, m.reserved)
	m.mu.RUnlock()
}

func TestCleanupOldSessions(t *testing.T) {
	m := newTestManager(0, nil)
	now := time.Now()
	m.now = func() time.Time { return now }

	idle, err := m.Create("", widget.Config{})
	require.NoError(t, err)
	watched, err := m.Create("", widget.Config{})
	require.NoError(t, err)
	_, cancel := watched.Hub.Subscribe()
	defer cancel()

	now = now.Add(2 * time.Minute)
	fresh, err := m.Create("", widget.Config{})
	require.NoError(t, err)

	removed := m.CleanupOldSessions(time.Minute)
	assert.Equal(t, 1, removed)
	assert.True(t, idle.Controller.Destroyed())
	assert.False(t, watched.Controller.Destroyed())
	assert.False(t, fresh.Controller.Destroyed())

	now = now.Add(SessionKeepAliveWindow)
	removed = m.CleanupOldSessions(time.Minute)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 0, m.Len())
}

func TestManager_Close(t *testing.T) {
	m := newTestManager(0, nil)
	inst, err := m.Create("", widget.Config{})
	require.NoError(t, err)

	m.Close()
	assert.Equal(t, 0, m.Len())
	assert.True(t, inst.Controller.Destroyed())
}
