// Package models contains shared data shapes for the imagedrop backend.
package models

import "time"

// FileInfo represents metadata about a file persisted by an upload sink.
type FileInfo struct {
	ID          string    `json:"id" msgpack:"id"`
	Name        string    `json:"name" msgpack:"name"`
	ContentType string    `json:"contentType" msgpack:"contentType"`
	Size        int64     `json:"size" msgpack:"size"`
	StorageKey  string    `json:"storageKey,omitempty" msgpack:"storageKey,omitempty"`
	Sink        string    `json:"sink" msgpack:"sink"` // "local", "s3"
	UploadedAt  time.Time `json:"uploadedAt" msgpack:"uploadedAt"`
}
