package models

import "time"

// WidgetSession describes a live widget instance hosted by the server.
type WidgetSession struct {
	ID           string         `json:"id"`
	Preset       string         `json:"preset,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	LastAccessed time.Time      `json:"lastAccessed"`
	Settings     WidgetSettings `json:"settings"`
}
