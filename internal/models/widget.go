package models

// EntryStatus is the upload status of a tracked file.
type EntryStatus string

const (
	EntryStatusPending  EntryStatus = "pending"
	EntryStatusUploaded EntryStatus = "uploaded"
	EntryStatusError    EntryStatus = "error"
)

// UploadState is the state of a widget's upload loop.
type UploadState string

const (
	UploadStateIdle      UploadState = "idle"
	UploadStateUploading UploadState = "uploading"
)

// EntryView is a read-only copy of a tracked entry, used by views.
type EntryView struct {
	ID       string      `json:"id" msgpack:"id"`
	Name     string      `json:"name" msgpack:"name"`
	Type     string      `json:"type" msgpack:"type"`
	Size     int64       `json:"size" msgpack:"size"`
	Status   EntryStatus `json:"status" msgpack:"status"`
	Progress float64     `json:"progress" msgpack:"progress"` // 0-100
	Error    string      `json:"error,omitempty" msgpack:"error,omitempty"`
}

// Labels holds the presentation strings of a widget.
type Labels struct {
	Drag   string `json:"drag" yaml:"drag" msgpack:"drag"`
	Browse string `json:"browse" yaml:"browse" msgpack:"browse"`
	Upload string `json:"upload" yaml:"upload" msgpack:"upload"`
	Remove string `json:"remove" yaml:"remove" msgpack:"remove"`
}

// WidgetSettings is the presentation-facing part of a widget configuration.
type WidgetSettings struct {
	MaxFiles      int      `json:"maxFiles" msgpack:"maxFiles"`
	MaxFileSize   int64    `json:"maxFileSize" msgpack:"maxFileSize"`
	AcceptedTypes []string `json:"acceptedTypes" msgpack:"acceptedTypes"`
	Multiple      bool     `json:"multiple" msgpack:"multiple"`
	Labels        Labels   `json:"labels" msgpack:"labels"`
	Theme         string   `json:"theme" msgpack:"theme"`
}

// Snapshot is the full observable state of a widget at one point in time.
type Snapshot struct {
	// Version increases with every snapshot a controller takes; views drop
	// snapshots older than the one they hold.
	Version  uint64         `json:"version" msgpack:"version"`
	State    UploadState    `json:"state" msgpack:"state"`
	Entries  []EntryView    `json:"entries" msgpack:"entries"`
	Settings WidgetSettings `json:"settings" msgpack:"settings"`
}
