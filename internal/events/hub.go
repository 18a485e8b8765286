// Package events fans widget state changes out to websocket subscribers.
// A Hub is the mount point of one widget controller.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/imagedrop/backend/internal/logging"
	"github.com/imagedrop/backend/internal/models"
	"github.com/imagedrop/backend/internal/widget"
)

// Message types pushed to subscribers.
const (
	TypeConnected  = "connected"
	TypeState      = "state"
	TypeFilesAdded = "files:added"
	TypeFileRemove = "file:removed"
	TypeProgress   = "progress"
	TypeComplete   = "complete"
	TypeError      = "error"
	TypePing       = "ping"
	TypePong       = "pong"
)

// subscriberBuffer is the per-subscriber queue length. Messages for a full
// queue are dropped; the next state message resynchronises the client.
const subscriberBuffer = 64

// Message is the envelope sent over the websocket.
type Message struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// FileRef identifies a file in event payloads.
type FileRef struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

// ProgressPayload is the payload of a progress message.
type ProgressPayload struct {
	File     FileRef `json:"file"`
	Progress float64 `json:"progress"`
}

// ErrorPayload is the payload of an error message.
type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Hub implements widget.View for one widget and broadcasts every render and
// hook event to its subscribers.
type Hub struct {
	widgetID string
	log      logging.Logger

	mu     sync.Mutex
	subs   map[chan Message]struct{}
	last   *models.Snapshot
	closed bool
}

// NewHub creates a hub for the widget with the given id.
func NewHub(widgetID string, log logging.Logger) *Hub {
	return &Hub{
		widgetID: widgetID,
		log:      log.With("component", "events", "widget", widgetID),
		subs:     make(map[chan Message]struct{}),
	}
}

// Render stores the snapshot and broadcasts it as a state message. A
// snapshot older than the stored one arrived late and is dropped.
func (h *Hub) Render(s models.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.last != nil && s.Version < h.last.Version {
		return
	}
	h.last = &s
	h.publishLocked(TypeState, s)
}

// Release closes every subscriber. Later publishes are dropped.
func (h *Hub) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		close(ch)
	}
	h.subs = nil
}

// Closed reports whether Release has been called.
func (h *Hub) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// Last returns the most recently rendered snapshot.
func (h *Hub) Last() (models.Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.last == nil {
		return models.Snapshot{}, false
	}
	return *h.last, true
}

// Subscribe registers a new subscriber. The channel starts with a connected
// message and, when available, the current state. It is closed by Release or
// by calling the returned cancel function.
func (h *Hub) Subscribe() (<-chan Message, func()) {
	ch := make(chan Message, subscriberBuffer)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(ch)
		return ch, func() {}
	}

	ch <- h.message(TypeConnected, nil)
	if h.last != nil {
		ch <- h.message(TypeState, *h.last)
	}
	h.subs[ch] = struct{}{}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[ch]; ok {
				delete(h.subs, ch)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// Subscribers returns the number of live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Publish sends a message of the given type to every subscriber.
func (h *Hub) Publish(typ string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.publishLocked(typ, payload)
}

func (h *Hub) publishLocked(typ string, payload any) {
	if h.closed {
		return
	}

	msg := h.message(typ, payload)
	for ch := range h.subs {
		select {
		case ch <- msg:
		default:
			h.log.Debug(context.Background(), "subscriber queue full, message dropped", "type", typ)
		}
	}
}

// Hooks returns widget hooks that publish lifecycle events on h. upload is
// installed as the upload hook unchanged.
func (h *Hub) Hooks(upload widget.UploadFunc) widget.Hooks {
	return widget.Hooks{
		OnFilesAdded: func(files []widget.File) {
			h.Publish(TypeFilesAdded, refs(files))
		},
		OnFileRemoved: func(f widget.File) {
			h.Publish(TypeFileRemove, ref(f))
		},
		OnUpload: upload,
		OnUploadProgress: func(f widget.File, pct float64) {
			h.Publish(TypeProgress, ProgressPayload{File: ref(f), Progress: pct})
		},
		OnUploadComplete: func(files []widget.File) {
			h.Publish(TypeComplete, refs(files))
		},
		OnError: func(err error) {
			h.log.Warn(context.Background(), "widget error", "error", err)
			h.Publish(TypeError, ErrorPayload{Message: err.Error(), Code: ErrorCode(err)})
		},
	}
}

// message builds an envelope for this hub's widget.
func (h *Hub) message(typ string, payload any) Message {
	msg := Message{Type: typ, ID: h.widgetID, Timestamp: time.Now().UnixMilli()}
	if payload != nil {
		msg.Payload = mustJSON(payload)
	}
	return msg
}

// ErrorCode maps widget errors to stable client-facing codes.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, widget.ErrTypeNotAccepted):
		return "TYPE_NOT_ACCEPTED"
	case errors.Is(err, widget.ErrFileTooLarge):
		return "FILE_TOO_LARGE"
	case errors.Is(err, widget.ErrTooManyFiles):
		return "TOO_MANY_FILES"
	case errors.Is(err, widget.ErrUploadFailed):
		return "UPLOAD_FAILED"
	case errors.Is(err, widget.ErrDestroyed):
		return "WIDGET_DESTROYED"
	default:
		return "WIDGET_ERROR"
	}
}

func ref(f widget.File) FileRef {
	return FileRef{Name: f.Name(), Type: f.Type(), Size: f.Size()}
}

func refs(files []widget.File) []FileRef {
	out := make([]FileRef, 0, len(files))
	for _, f := range files {
		out = append(out, ref(f))
	}
	return out
}

func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
