// Package sink provides transports for the widget upload hook: a local disk
// store and S3. UploadFunc turns a Sink into a widget.UploadFunc that also
// journals every attempt.
package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/imagedrop/backend/internal/journal"
	"github.com/imagedrop/backend/internal/logging"
	"github.com/imagedrop/backend/internal/models"
	"github.com/imagedrop/backend/internal/widget"
)

// Sink stores one file and reports byte progress while doing so.
type Sink interface {
	Name() string
	Put(ctx context.Context, f widget.File, progress widget.ProgressFunc) (*models.FileInfo, error)
}

// UploadFunc adapts s into a widget upload hook. Every attempt is recorded in
// j when it is non-nil.
func UploadFunc(s Sink, j journal.Journal, widgetID string, log logging.Logger) widget.UploadFunc {
	log = log.With("component", "sink", "sink", s.Name(), "widget", widgetID)

	return func(ctx context.Context, f widget.File, progress widget.ProgressFunc) error {
		start := time.Now()
		info, err := s.Put(ctx, f, progress)

		rec := models.JournalRecord{
			WidgetID:    widgetID,
			FileName:    f.Name(),
			ContentType: f.Type(),
			Size:        f.Size(),
			Sink:        s.Name(),
			Status:      models.JournalStatusUploaded,
			DurationMs:  time.Since(start).Milliseconds(),
			CreatedAt:   start,
		}
		if err != nil {
			rec.Status = models.JournalStatusFailed
			rec.Error = err.Error()
		} else {
			rec.StorageKey = info.StorageKey
		}

		if j != nil {
			if jerr := j.Record(context.WithoutCancel(ctx), rec); jerr != nil {
				log.Warn(ctx, "journal write failed", "file", f.Name(), "error", jerr)
			}
		}

		if err != nil {
			log.Warn(ctx, "upload failed", "file", f.Name(), "error", err)
			return fmt.Errorf("%s sink: %w", s.Name(), err)
		}
		log.Info(ctx, "file uploaded", "file", f.Name(), "key", info.StorageKey, "bytes", info.Size, "ms", rec.DurationMs)
		return nil
	}
}
