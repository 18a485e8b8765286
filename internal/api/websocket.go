package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/imagedrop/backend/internal/events"
	"github.com/imagedrop/backend/internal/logging"
	"github.com/labstack/echo/v4"
)

const writeWait = 10 * time.Second

// WebSocketHandler streams widget events to browser clients.
type WebSocketHandler struct {
	widgets        WidgetRegistry
	upgrader       websocket.Upgrader
	maxMessageSize int64
	log            logging.Logger
}

// NewWebSocketHandler creates a new event stream handler. maxMessageKB caps
// client messages; zero selects 64KB.
func NewWebSocketHandler(widgets WidgetRegistry, maxMessageKB int, log logging.Logger) *WebSocketHandler {
	if maxMessageKB <= 0 {
		maxMessageKB = 64
	}
	return &WebSocketHandler{
		widgets: widgets,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow connections from dev server
				return true
			},
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
		},
		maxMessageSize: int64(maxMessageKB) * 1024,
		log:            log.With("component", "websocket"),
	}
}

// HandleEvents upgrades the connection and forwards every event of the
// widget until the client disconnects or the widget is destroyed.
func (wsh *WebSocketHandler) HandleEvents(c echo.Context) error {
	inst, err := lookupWidget(wsh.widgets, c)
	if err != nil {
		return err
	}

	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()
	ws.SetReadLimit(wsh.maxMessageSize)

	ctx := c.Request().Context()
	log := wsh.log.With("widget", inst.ID)
	log.Debug(ctx, "client connected")

	msgs, cancel := inst.Hub.Subscribe()
	defer cancel()

	replies := make(chan events.Message, 8)
	done := make(chan struct{})
	go wsh.readLoop(ctx, ws, inst.ID, replies, done, log)

	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				ws.SetWriteDeadline(time.Now().Add(writeWait))
				ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "widget destroyed"))
				log.Debug(ctx, "widget destroyed, closing stream")
				return nil
			}
			if err := wsh.send(ws, msg); err != nil {
				log.Debug(ctx, "write failed", "error", err)
				return nil
			}
		case msg := <-replies:
			if err := wsh.send(ws, msg); err != nil {
				log.Debug(ctx, "write failed", "error", err)
				return nil
			}
		case <-done:
			log.Debug(ctx, "client disconnected")
			return nil
		}
	}
}

// readLoop handles client messages. It owns no writes; replies are queued
// for the write loop.
func (wsh *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, widgetID string, replies chan<- events.Message, done chan<- struct{}, log logging.Logger) {
	defer close(done)
	for {
		var msg events.Message
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn(ctx, "connection error", "error", err)
			}
			return
		}

		wsh.widgets.Touch(widgetID)

		reply := events.Message{ID: widgetID, Timestamp: time.Now().UnixMilli()}
		switch msg.Type {
		case events.TypePing:
			reply.Type = events.TypePong
		default:
			reply.Type = events.TypeError
			reply.Payload = mustJSON(events.ErrorPayload{
				Message: "Unknown message type: " + msg.Type,
				Code:    "INVALID_TYPE",
			})
		}

		select {
		case replies <- reply:
		default:
		}
	}
}

func (wsh *WebSocketHandler) send(ws *websocket.Conn, msg events.Message) error {
	ws.SetWriteDeadline(time.Now().Add(writeWait))
	return ws.WriteJSON(msg)
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
