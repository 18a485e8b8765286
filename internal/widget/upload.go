package widget

import (
	"context"
	"math"

	"github.com/imagedrop/backend/internal/models"
)

// Upload runs the upload loop: entries are handed to OnUpload one at a time
// in tracked order, skipping those already uploaded. The first failure halts
// the loop, is reported through OnError and returned as an *UploadError;
// entries uploaded before it stay uploaded and are skipped next time.
// OnUploadComplete fires with every tracked file when the loop finishes
// without failure.
//
// Upload is a no-op returning nil when no upload hook is configured or a loop
// is already running.
func (c *Controller) Upload(ctx context.Context) error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return ErrDestroyed
	}
	upload := c.cfg.Hooks.OnUpload
	if upload == nil || c.state == models.UploadStateUploading {
		c.mu.Unlock()
		return nil
	}
	c.state = models.UploadStateUploading
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.render(snap)

	err := c.runUploads(ctx, upload)

	c.mu.Lock()
	c.state = models.UploadStateIdle
	destroyed := c.destroyed
	files := c.filesLocked(false)
	snap = c.snapshotLocked()
	c.mu.Unlock()

	if destroyed {
		return err
	}
	c.render(snap)

	if err != nil {
		c.reportError(err)
		return err
	}
	if h := c.cfg.Hooks.OnUploadComplete; h != nil {
		h(files)
	}
	return nil
}

func (c *Controller) runUploads(ctx context.Context, upload UploadFunc) error {
	attempted := make(map[*entry]struct{})
	for {
		c.mu.Lock()
		e := c.nextLocked(attempted)
		if e == nil {
			c.mu.Unlock()
			return nil
		}
		attempted[e] = struct{}{}
		e.progress = 0
		e.err = ""
		c.mu.Unlock()

		err := ctx.Err()
		if err == nil {
			err = upload(ctx, e.file, c.progressFunc(e))
		}
		if err != nil {
			c.settle(e, models.EntryStatusError, err)
			return &UploadError{File: e.file, Err: err}
		}
		c.settle(e, models.EntryStatusUploaded, nil)
	}
}

// nextLocked returns the first tracked entry not yet uploaded and not yet
// attempted in the current loop.
func (c *Controller) nextLocked(attempted map[*entry]struct{}) *entry {
	if c.destroyed {
		return nil
	}
	for _, e := range c.entries {
		if e.status == models.EntryStatusUploaded {
			continue
		}
		if _, seen := attempted[e]; seen {
			continue
		}
		return e
	}
	return nil
}

func (c *Controller) progressFunc(e *entry) ProgressFunc {
	return func(percent float64) {
		if math.IsNaN(percent) {
			return
		}
		percent = min(max(percent, 0), 100)

		c.mu.Lock()
		e.progress = percent
		snap := c.snapshotLocked()
		c.mu.Unlock()

		if h := c.cfg.Hooks.OnUploadProgress; h != nil {
			h(e.file, percent)
		}
		c.render(snap)
	}
}

func (c *Controller) settle(e *entry, status models.EntryStatus, err error) {
	c.mu.Lock()
	e.status = status
	if err != nil {
		e.err = err.Error()
	} else {
		e.progress = 100
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.render(snap)
}
