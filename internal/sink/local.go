package sink

import (
	"context"
	"fmt"

	"github.com/imagedrop/backend/internal/models"
	"github.com/imagedrop/backend/internal/storage"
	"github.com/imagedrop/backend/internal/widget"
)

// Local writes uploads into a storage.Store.
type Local struct {
	store storage.Store
}

// NewLocal returns a sink backed by store.
func NewLocal(store storage.Store) *Local {
	return &Local{store: store}
}

func (l *Local) Name() string { return "local" }

// Put copies f into the store, reporting progress against f's declared size.
func (l *Local) Put(ctx context.Context, f widget.File, progress widget.ProgressFunc) (*models.FileInfo, error) {
	src, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name(), err)
	}
	defer src.Close()

	r := NewProgressReader(ctxReader{ctx: ctx, r: src}, f.Size(), progress)
	info, err := l.store.Save(f.Name(), f.Type(), r)
	if err != nil {
		return nil, err
	}
	return info, nil
}
