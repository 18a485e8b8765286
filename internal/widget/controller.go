// Package widget implements the image intake controller: it validates and
// tracks selected files, drives a sequential upload loop through a
// caller-supplied upload hook and reports lifecycle events through optional
// hooks. Rendering is delegated to a View.
package widget

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/imagedrop/backend/internal/models"
)

// Controller owns the tracked file list of one widget instance.
//
// All methods are safe for concurrent use. Hooks and View calls are made
// without the internal lock held, so they may call back into the controller.
type Controller struct {
	mu        sync.Mutex
	cfg       Config
	view      View
	entries   []*entry
	state     models.UploadState
	destroyed bool
	version   uint64
}

// New creates a controller mounted on view. cfg is copied; zero-valued limits
// fall back to the package defaults.
func New(view View, cfg Config) (*Controller, error) {
	if view == nil {
		return nil, ErrNoMount
	}
	c := &Controller{
		cfg:   cfg.normalized(),
		view:  view,
		state: models.UploadStateIdle,
	}
	c.view.Render(c.Snapshot())
	return c, nil
}

// Config returns a copy of the controller's configuration.
func (c *Controller) Config() Config {
	cfg := c.cfg
	cfg.AcceptedTypes = append([]string(nil), c.cfg.AcceptedTypes...)
	return cfg
}

// AddFiles validates a batch and appends the accepted files in arrival order.
//
// Every rejected file is reported through OnError; a batch that would exceed
// MaxFiles is truncated from its tail and reported once. OnFilesAdded fires
// with the accepted files when there is at least one. The returned error joins
// all rejections of the batch.
func (c *Controller) AddFiles(batch []File) ([]File, error) {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return nil, ErrDestroyed
	}

	var errs []error
	valid := make([]File, 0, len(batch))
	for _, f := range batch {
		if f == nil {
			continue
		}
		if err := c.cfg.validate(f); err != nil {
			errs = append(errs, err)
			continue
		}
		valid = append(valid, f)
	}

	free := max(c.cfg.MaxFiles-len(c.entries), 0)
	if len(valid) > free {
		errs = append(errs, &CapacityError{Max: c.cfg.MaxFiles, Dropped: len(valid) - free})
		valid = valid[:free]
	}

	for _, f := range valid {
		c.entries = append(c.entries, newEntry(f))
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	for _, err := range errs {
		c.reportError(err)
	}
	if len(valid) == 0 {
		return nil, errors.Join(errs...)
	}

	if h := c.cfg.Hooks.OnFilesAdded; h != nil {
		h(slices.Clone(valid))
	}
	c.render(snap)
	return valid, errors.Join(errs...)
}

// RemoveFile drops the entry with the given id and fires OnFileRemoved.
// It reports whether an entry was removed.
func (c *Controller) RemoveFile(id string) bool {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return false
	}
	idx := c.indexLocked(id)
	if idx < 0 {
		c.mu.Unlock()
		return false
	}
	removed := c.entries[idx]
	c.entries = slices.Delete(c.entries, idx, idx+1)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if h := c.cfg.Hooks.OnFileRemoved; h != nil {
		h(removed.file)
	}
	c.render(snap)
	return true
}

// Files returns every tracked file in tracked order.
func (c *Controller) Files() []File {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filesLocked(false)
}

// UploadedFiles returns the tracked files already uploaded, in tracked order.
func (c *Controller) UploadedFiles() []File {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filesLocked(true)
}

// File returns the raw handle of an entry.
func (c *Controller) File(id string) (File, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx := c.indexLocked(id); idx >= 0 {
		return c.entries[idx].file, true
	}
	return nil, false
}

// Entry returns a view of a single entry.
func (c *Controller) Entry(id string) (models.EntryView, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx := c.indexLocked(id); idx >= 0 {
		return c.entries[idx].view(), true
	}
	return models.EntryView{}, false
}

// Entries returns views of all entries in tracked order.
func (c *Controller) Entries() []models.EntryView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewsLocked()
}

// Len returns the number of tracked entries.
func (c *Controller) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// State returns the state of the upload loop.
func (c *Controller) State() models.UploadState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Destroyed reports whether Destroy has been called.
func (c *Controller) Destroyed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroyed
}

// Snapshot returns the full observable state.
func (c *Controller) Snapshot() models.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Clear discards every entry without firing removal hooks. It works in any
// upload state.
func (c *Controller) Clear() {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	c.entries = nil
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.render(snap)
}

// Destroy releases the view and drops all entries. The controller must not be
// used afterwards; further calls are no-ops or return ErrDestroyed.
func (c *Controller) Destroy() {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	c.destroyed = true
	c.entries = nil
	c.mu.Unlock()

	c.view.Release()
}

func (c *Controller) indexLocked(id string) int {
	return slices.IndexFunc(c.entries, func(e *entry) bool { return e.id == id })
}

func (c *Controller) filesLocked(uploadedOnly bool) []File {
	files := make([]File, 0, len(c.entries))
	for _, e := range c.entries {
		if uploadedOnly && e.status != models.EntryStatusUploaded {
			continue
		}
		files = append(files, e.file)
	}
	return files
}

func (c *Controller) viewsLocked() []models.EntryView {
	views := make([]models.EntryView, 0, len(c.entries))
	for _, e := range c.entries {
		views = append(views, e.view())
	}
	return views
}

func (c *Controller) snapshotLocked() models.Snapshot {
	c.version++
	return models.Snapshot{
		Version:  c.version,
		State:    c.state,
		Entries:  c.viewsLocked(),
		Settings: c.cfg.Settings(),
	}
}

// render pushes snap to the view unless the controller was destroyed in the
// meantime.
func (c *Controller) render(snap models.Snapshot) {
	if c.Destroyed() {
		return
	}
	c.view.Render(snap)
}

func (c *Controller) reportError(err error) {
	if h := c.cfg.Hooks.OnError; h != nil {
		h(err)
		return
	}
	c.cfg.Logger.Warn(context.Background(), "widget error", "error", err)
}
