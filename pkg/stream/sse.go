// Package stream re-encodes model output into the wire formats clients
// consume: OpenAI-style SSE chunks over HTTP and JSON frames over
// WebSocket.
package stream

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rybuilt/humelink/internal/observability"
)

// Chunk is one OpenAI chat.completion.chunk payload.
type Chunk struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
}

// Choice carries the delta for the single choice this proxy emits.
type Choice struct {
	Index        int     `json:"index"`
	Delta        Delta   `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

// Delta holds the incremental fields of a chunk.
type Delta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// SSEWriter emits a chat-completion chunk sequence over an HTTP
// response. All chunks of one response share a generated id and
// timestamp. After the first write failure every later call is a
// no-op; the client is gone and there is nobody left to tell.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	id      string
	created int64
	model   string
	failed  bool
}

// NewSSEWriter prepares the response for event streaming and returns a
// writer bound to it.
func NewSSEWriter(w http.ResponseWriter, modelName string) *SSEWriter {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, _ := w.(http.Flusher)

	return &SSEWriter{
		w:       w,
		flusher: flusher,
		id:      "chatcmpl-" + uuid.NewString(),
		created: time.Now().Unix(),
		model:   modelName,
	}
}

// WriteRole emits the opening chunk that names the assistant role with
// empty content.
func (s *SSEWriter) WriteRole() {
	s.writeChunk(Delta{Role: "assistant", Content: ""}, nil)
}

// WriteContent emits one content chunk.
func (s *SSEWriter) WriteContent(text string) {
	s.writeChunk(Delta{Content: text}, nil)
	observability.RecordStreamChunk("sse")
}

// WriteStop emits the terminating chunk with finish_reason "stop".
func (s *SSEWriter) WriteStop() {
	reason := "stop"
	s.writeChunk(Delta{}, &reason)
}

// WriteError emits an in-band error event for failures that happen
// after headers have gone out.
func (s *SSEWriter) WriteError(message string) {
	if s.failed {
		return
	}
	payload, err := json.Marshal(map[string]interface{}{
		"error": map[string]string{"message": message},
	})
	if err != nil {
		s.failed = true
		return
	}
	s.send(payload)
	observability.RecordStreamError("sse")
}

// WriteDone emits the literal [DONE] sentinel. Every stream ends with
// it, error or not.
func (s *SSEWriter) WriteDone() {
	if s.failed {
		return
	}
	if _, err := fmt.Fprint(s.w, "data: [DONE]\n\n"); err != nil {
		s.failed = true
		return
	}
	s.flush()
}

func (s *SSEWriter) writeChunk(delta Delta, finishReason *string) {
	if s.failed {
		return
	}
	payload, err := json.Marshal(Chunk{
		ID:      s.id,
		Object:  "chat.completion.chunk",
		Created: s.created,
		Model:   s.model,
		Choices: []Choice{{Index: 0, Delta: delta, FinishReason: finishReason}},
	})
	if err != nil {
		s.failed = true
		return
	}
	s.send(payload)
}

func (s *SSEWriter) send(payload []byte) {
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		s.failed = true
		return
	}
	s.flush()
}

func (s *SSEWriter) flush() {
	if s.flusher != nil {
		s.flusher.Flush()
	}
}
