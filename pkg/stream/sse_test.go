package stream

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectEvents(t *testing.T, body string) []string {
	t.Helper()

	var events []string
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "data: ") {
			events = append(events, strings.TrimPrefix(line, "data: "))
		}
	}
	return events
}

func decodeChunk(t *testing.T, event string) Chunk {
	t.Helper()

	var chunk Chunk
	require.NoError(t, json.Unmarshal([]byte(event), &chunk))
	return chunk
}

func TestSSEWriter(t *testing.T) {
	t.Run("should set event stream headers", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewSSEWriter(rec, "claude-haiku-4-5")

		assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
		assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
		assert.Equal(t, "keep-alive", rec.Header().Get("Connection"))
	})

	t.Run("should emit role, content, stop and done in order", func(t *testing.T) {
		rec := httptest.NewRecorder()
		w := NewSSEWriter(rec, "claude-haiku-4-5")

		w.WriteRole()
		w.WriteContent("Hello")
		w.WriteContent(" there")
		w.WriteStop()
		w.WriteDone()

		events := collectEvents(t, rec.Body.String())
		require.Len(t, events, 5)

		role := decodeChunk(t, events[0])
		assert.Equal(t, "chat.completion.chunk", role.Object)
		assert.Equal(t, "claude-haiku-4-5", role.Model)
		assert.True(t, strings.HasPrefix(role.ID, "chatcmpl-"))
		require.Len(t, role.Choices, 1)
		assert.Equal(t, "assistant", role.Choices[0].Delta.Role)
		assert.Empty(t, role.Choices[0].Delta.Content)
		assert.Nil(t, role.Choices[0].FinishReason)

		first := decodeChunk(t, events[1])
		assert.Equal(t, "Hello", first.Choices[0].Delta.Content)
		second := decodeChunk(t, events[2])
		assert.Equal(t, " there", second.Choices[0].Delta.Content)

		stop := decodeChunk(t, events[3])
		require.NotNil(t, stop.Choices[0].FinishReason)
		assert.Equal(t, "stop", *stop.Choices[0].FinishReason)

		assert.Equal(t, "[DONE]", events[4])
	})

	t.Run("should share one id and timestamp across chunks", func(t *testing.T) {
		rec := httptest.NewRecorder()
		w := NewSSEWriter(rec, "claude-haiku-4-5")

		w.WriteRole()
		w.WriteContent("a")
		w.WriteStop()

		events := collectEvents(t, rec.Body.String())
		require.Len(t, events, 3)

		first := decodeChunk(t, events[0])
		for _, event := range events[1:] {
			chunk := decodeChunk(t, event)
			assert.Equal(t, first.ID, chunk.ID)
			assert.Equal(t, first.Created, chunk.Created)
		}
	})

	t.Run("should emit in-band error followed by done", func(t *testing.T) {
		rec := httptest.NewRecorder()
		w := NewSSEWriter(rec, "claude-haiku-4-5")

		w.WriteRole()
		w.WriteError("backend exploded")
		w.WriteDone()

		events := collectEvents(t, rec.Body.String())
		require.Len(t, events, 3)

		var payload map[string]map[string]string
		require.NoError(t, json.Unmarshal([]byte(events[1]), &payload))
		assert.Equal(t, "backend exploded", payload["error"]["message"])
		assert.Equal(t, "[DONE]", events[2])
	})
}
