// Package journal records every upload attempt made by widget upload hooks.
package journal

import (
	"context"

	"github.com/imagedrop/backend/internal/models"
)

// Journal stores upload attempts.
type Journal interface {
	Record(ctx context.Context, rec models.JournalRecord) error
	Recent(ctx context.Context, limit int) ([]models.JournalRecord, error)
	Close() error
}
