package widget

import (
	"github.com/google/uuid"
	"github.com/imagedrop/backend/internal/models"
)

// entry is the controller's wrapper around one raw file handle.
type entry struct {
	id       string
	file     File
	status   models.EntryStatus
	progress float64
	err      string
}

func newEntry(f File) *entry {
	return &entry{
		id:     uuid.New().String(),
		file:   f,
		status: models.EntryStatusPending,
	}
}

func (e *entry) view() models.EntryView {
	return models.EntryView{
		ID:       e.id,
		Name:     e.file.Name(),
		Type:     e.file.Type(),
		Size:     e.file.Size(),
		Status:   e.status,
		Progress: e.progress,
		Error:    e.err,
	}
}
