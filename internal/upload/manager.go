// Package upload runs widget upload loops in the background and tracks their
// progress as pollable jobs.
package upload

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/imagedrop/backend/internal/logging"
	"github.com/imagedrop/backend/internal/models"
)

// Status represents the upload job status.
type Status string

const (
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusError    Status = "error"
)

var (
	// ErrAlreadyRunning is returned by StartJob when the widget already has a
	// running job.
	ErrAlreadyRunning = errors.New("upload already running")
	// ErrIncomplete fails a job whose loop returned without uploading every
	// file, e.g. because the widget has no upload hook.
	ErrIncomplete = errors.New("upload incomplete")
	// ErrWidgetDestroyed fails a job whose widget was torn down mid-run.
	ErrWidgetDestroyed = errors.New("widget destroyed during upload")
)

// Job represents an async upload run of one widget.
type Job struct {
	ID          string     `json:"id"`
	WidgetID    string     `json:"widgetId"`
	Status      Status     `json:"status"`
	Total       int        `json:"total"`
	Uploaded    int        `json:"uploaded"`
	Progress    float64    `json:"progress"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Uploader is the part of a widget controller a job drives.
type Uploader interface {
	Upload(ctx context.Context) error
	Entries() []models.EntryView
	Destroyed() bool
}

// Manager handles async upload jobs.
type Manager struct {
	jobs    map[string]*Job
	running map[string]string // widget id -> job id
	mu      sync.RWMutex
	timeout time.Duration
	log     logging.Logger
	wg      sync.WaitGroup
}

// NewManager creates a new upload job manager. timeout bounds each job; zero
// means no limit.
func NewManager(timeout time.Duration, log logging.Logger) *Manager {
	if log == nil {
		log = logging.Default()
	}
	return &Manager{
		jobs:    make(map[string]*Job),
		running: make(map[string]string),
		timeout: timeout,
		log:     log.With("component", "upload"),
	}
}

// StartJob runs u.Upload in the background. Only one job per widget runs at
// a time.
func (m *Manager) StartJob(widgetID string, u Uploader) (*Job, error) {
	m.mu.Lock()
	if _, busy := m.running[widgetID]; busy {
		m.mu.Unlock()
		return nil, ErrAlreadyRunning
	}

	job := &Job{
		ID:        uuid.New().String(),
		WidgetID:  widgetID,
		Status:    StatusRunning,
		CreatedAt: time.Now(),
	}
	job.Total, job.Uploaded, job.Progress = summarize(u.Entries())
	m.jobs[job.ID] = job
	m.running[widgetID] = job.ID
	snapshot := *job
	m.mu.Unlock()

	m.wg.Add(1)
	go m.processJob(job, u)

	return &snapshot, nil
}

// GetJob returns a copy of a job by ID.
func (m *Manager) GetJob(id string) (*Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, false
	}
	cp := *job
	return &cp, true
}

// Refresh recomputes the progress of a running job from the widget entries.
func (m *Manager) Refresh(id string, u Uploader) {
	total, uploaded, progress := summarize(u.Entries())

	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok || job.Status != StatusRunning {
		return
	}
	job.Total, job.Uploaded, job.Progress = total, uploaded, progress
}

// Wait blocks until every started job has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Shutdown waits for running jobs like Wait but gives up when ctx is done,
// returning its error.
func (m *Manager) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) processJob(job *Job, u Uploader) {
	defer m.wg.Done()

	ctx := context.Background()
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	m.log.Info(ctx, "upload job started", "job", job.ID, "widget", job.WidgetID)
	err := u.Upload(ctx)
	total, uploaded, progress := summarize(u.Entries())
	if err == nil {
		switch {
		case u.Destroyed():
			err = ErrWidgetDestroyed
		case uploaded < total:
			err = fmt.Errorf("%w: %d of %d files uploaded", ErrIncomplete, uploaded, total)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	job.Total, job.Uploaded, job.Progress = total, uploaded, progress
	job.CompletedAt = &now
	delete(m.running, job.WidgetID)

	if err != nil {
		job.Status = StatusError
		job.Error = err.Error()
		m.log.Warn(ctx, "upload job failed", "job", job.ID, "widget", job.WidgetID, "error", err)
		return
	}
	job.Status = StatusComplete
	if total == 0 {
		job.Progress = 100
	}
	m.log.Info(ctx, "upload job complete", "job", job.ID, "widget", job.WidgetID, "uploaded", uploaded)
}

// CleanupOldJobs removes finished jobs older than the specified duration.
func (m *Manager) CleanupOldJobs(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	for id, job := range m.jobs {
		if job.Status == StatusComplete || job.Status == StatusError {
			if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
				delete(m.jobs, id)
			}
		}
	}
}

// summarize returns the entry count, the uploaded count and the mean
// progress over all entries.
func summarize(entries []models.EntryView) (total, uploaded int, progress float64) {
	total = len(entries)
	if total == 0 {
		return 0, 0, 0
	}
	var sum float64
	for _, e := range entries {
		if e.Status == models.EntryStatusUploaded {
			uploaded++
			sum += 100
			continue
		}
		sum += e.Progress
	}
	return total, uploaded, sum / float64(total)
}
