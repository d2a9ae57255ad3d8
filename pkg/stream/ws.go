package stream

import (
	"github.com/gorilla/websocket"
	"github.com/rybuilt/humelink/internal/observability"
)

// Frame is one JSON message on the WebSocket transport.
type Frame struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// WSWriter emits text/done/error frames over a WebSocket connection.
// Like SSEWriter, it goes quiet after the first write failure.
type WSWriter struct {
	conn   *websocket.Conn
	failed bool
}

// NewWSWriter wraps an upgraded connection.
func NewWSWriter(conn *websocket.Conn) *WSWriter {
	return &WSWriter{conn: conn}
}

// WriteText emits one text frame.
func (w *WSWriter) WriteText(content string) {
	w.send(Frame{Type: "text", Content: content})
	observability.RecordStreamChunk("ws")
}

// WriteError emits an error frame.
func (w *WSWriter) WriteError(message string) {
	w.send(Frame{Type: "error", Error: message})
	observability.RecordStreamError("ws")
}

// WriteDone emits the terminating done frame.
func (w *WSWriter) WriteDone() {
	w.send(Frame{Type: "done"})
}

func (w *WSWriter) send(frame Frame) {
	if w.failed {
		return
	}
	if err := w.conn.WriteJSON(frame); err != nil {
		w.failed = true
	}
}
