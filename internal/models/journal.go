package models

import "time"

// JournalStatus is the outcome of one upload attempt.
type JournalStatus string

const (
	JournalStatusUploaded JournalStatus = "uploaded"
	JournalStatusFailed   JournalStatus = "failed"
)

// JournalRecord is one upload attempt as stored in the upload journal.
type JournalRecord struct {
	ID          string        `json:"id"`
	WidgetID    string        `json:"widgetId"`
	FileName    string        `json:"fileName"`
	ContentType string        `json:"contentType"`
	Size        int64         `json:"size"`
	Sink        string        `json:"sink"`
	StorageKey  string        `json:"storageKey,omitempty"`
	Status      JournalStatus `json:"status"`
	Error       string        `json:"error,omitempty"`
	DurationMs  int64         `json:"durationMs"`
	CreatedAt   time.Time     `json:"createdAt"`
}
