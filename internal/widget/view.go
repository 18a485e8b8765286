package widget

import "github.com/imagedrop/backend/internal/models"

// View is the mount point a controller renders into. Render is called after
// every state change with a fresh snapshot; Release is called once on Destroy.
type View interface {
	Render(snapshot models.Snapshot)
	Release()
}

// ViewFuncs adapts plain functions to View. Nil fields are no-ops.
type ViewFuncs struct {
	RenderFunc  func(models.Snapshot)
	ReleaseFunc func()
}

func (v ViewFuncs) Render(s models.Snapshot) {
	if v.RenderFunc != nil {
		v.RenderFunc(s)
	}
}

func (v ViewFuncs) Release() {
	if v.ReleaseFunc != nil {
		v.ReleaseFunc()
	}
}
