package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rybuilt/humelink/pkg/model"
	"github.com/rybuilt/humelink/pkg/orchestrator"
	"github.com/rybuilt/humelink/pkg/session"
	"github.com/rybuilt/humelink/pkg/stream"
	"github.com/rybuilt/humelink/pkg/tools"
	"github.com/rybuilt/humelink/pkg/weather"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticPrompt string

func (p staticPrompt) Prompt() string { return string(p) }

type scriptedBackend struct {
	responses []*model.Response
	err       error
	calls     int
}

func (b *scriptedBackend) Complete(context.Context, model.Request) (*model.Response, error) {
	if b.err != nil {
		return nil, b.err
	}
	idx := b.calls
	if idx >= len(b.responses) {
		idx = len(b.responses) - 1
	}
	b.calls++
	return b.responses[idx], nil
}

func (b *scriptedBackend) Stream(ctx context.Context, req model.Request) (model.Stream, error) {
	resp, err := b.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	return &scriptedStream{resp: resp}, nil
}

func (b *scriptedBackend) Name() string { return "scripted" }

type scriptedStream struct {
	resp *model.Response
	pos  int
}

func (s *scriptedStream) Next() bool {
	if s.pos < len(s.resp.TextBlocks) {
		s.pos++
		return true
	}
	return false
}

func (s *scriptedStream) Text() string { return s.resp.TextBlocks[s.pos-1] }

func (s *scriptedStream) Final() (*model.Response, error) { return s.resp, nil }

func newTestServer(t *testing.T, backend model.Backend) (*httptest.Server, *session.Store) {
	t.Helper()

	store := session.NewStore()
	weatherSvc := weather.NewService(weather.WithEndpoint("http://127.0.0.1:1"))
	executor, err := tools.NewExecutor(store, weatherSvc)
	require.NoError(t, err)

	orch, err := orchestrator.New(orchestrator.Config{
		Backend:      backend,
		Executor:     executor,
		Persona:      staticPrompt("You are a helpful assistant."),
		DefaultModel: "claude-haiku-4-5",
		Logger:       zerolog.Nop(),
	})
	require.NoError(t, err)

	server, err := NewServer(ServerOptions{DefaultModel: "claude-haiku-4-5"}, orch, store, zerolog.Nop())
	require.NoError(t, err)

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	return ts, store
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", strings.NewReader(string(data)))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t, &scriptedBackend{})

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "humelink", body["service"])
}

func TestChatCompletions(t *testing.T) {
	t.Run("should reject empty messages without opening a stream", func(t *testing.T) {
		ts, _ := newTestServer(t, &scriptedBackend{})

		resp := postJSON(t, ts.URL+"/chat/completions", map[string]interface{}{
			"messages": []interface{}{},
		})

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")

		body := decodeBody(t, resp)
		errObj := body["error"].(map[string]interface{})
		assert.Equal(t, "invalid_request_error", errObj["type"])
		assert.Contains(t, errObj["message"], "non-empty")
	})

	t.Run("should reject a message without a role", func(t *testing.T) {
		ts, _ := newTestServer(t, &scriptedBackend{})

		resp := postJSON(t, ts.URL+"/chat/completions", map[string]interface{}{
			"messages": []map[string]string{{"content": "hi"}},
		})

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("should stream the response as OpenAI chunks", func(t *testing.T) {
		backend := &scriptedBackend{responses: []*model.Response{{
			StopReason: model.StopEndTurn,
			TextBlocks: []string{"Hello", " there"},
		}}}
		ts, _ := newTestServer(t, backend)

		resp := postJSON(t, ts.URL+"/chat/completions", map[string]interface{}{
			"messages":   []map[string]string{{"role": "user", "content": "Hi"}},
			"session_id": "s1",
		})

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		body := string(raw)

		var events []string
		for _, line := range strings.Split(body, "\n") {
			if strings.HasPrefix(line, "data: ") {
				events = append(events, strings.TrimPrefix(line, "data: "))
			}
		}
		require.Len(t, events, 5)

		var role stream.Chunk
		require.NoError(t, json.Unmarshal([]byte(events[0]), &role))
		assert.Equal(t, "assistant", role.Choices[0].Delta.Role)

		var first stream.Chunk
		require.NoError(t, json.Unmarshal([]byte(events[1]), &first))
		assert.Equal(t, "Hello", first.Choices[0].Delta.Content)

		assert.Equal(t, "[DONE]", events[4])
	})

	t.Run("should return a server error envelope when the backend fails", func(t *testing.T) {
		ts, _ := newTestServer(t, &scriptedBackend{err: fmt.Errorf("upstream is down")})

		resp := postJSON(t, ts.URL+"/chat/completions", map[string]interface{}{
			"messages": []map[string]string{{"role": "user", "content": "Hi"}},
		})

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		body := decodeBody(t, resp)
		errObj := body["error"].(map[string]interface{})
		assert.Equal(t, "server_error", errObj["type"])
	})

	t.Run("should touch the session store", func(t *testing.T) {
		backend := &scriptedBackend{responses: []*model.Response{{
			StopReason: model.StopEndTurn,
			TextBlocks: []string{"Ok"},
		}}}
		ts, store := newTestServer(t, backend)

		postJSON(t, ts.URL+"/chat/completions", map[string]interface{}{
			"messages":   []map[string]string{{"role": "user", "content": "Hi"}},
			"session_id": "s1",
		})

		_, exists := store.Peek("s1")
		assert.True(t, exists)
	})
}

func TestMemoryEndpoints(t *testing.T) {
	t.Run("should return empty memories for an unknown session", func(t *testing.T) {
		ts, store := newTestServer(t, &scriptedBackend{})

		resp, err := http.Get(ts.URL + "/memory/unknown")
		require.NoError(t, err)
		defer resp.Body.Close()

		body := decodeBody(t, resp)
		assert.Equal(t, map[string]interface{}{}, body["memories"])
		assert.Equal(t, 0, store.Len())
	})

	t.Run("should merge posted memories", func(t *testing.T) {
		ts, store := newTestServer(t, &scriptedBackend{})
		store.SaveMemory("s1", "color", "blue")

		resp := postJSON(t, ts.URL+"/memory/s1", map[string]interface{}{
			"memories": map[string]string{"drink": "coffee"},
		})

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body := decodeBody(t, resp)
		assert.Equal(t, true, body["success"])
		memories := body["memories"].(map[string]interface{})
		assert.Equal(t, "blue", memories["color"])
		assert.Equal(t, "coffee", memories["drink"])
	})

	t.Run("should reject a merge without a memories object", func(t *testing.T) {
		ts, _ := newTestServer(t, &scriptedBackend{})

		resp := postJSON(t, ts.URL+"/memory/s1", map[string]interface{}{})

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("should delete a single key", func(t *testing.T) {
		ts, store := newTestServer(t, &scriptedBackend{})
		store.SaveMemory("s1", "color", "blue")
		store.SaveMemory("s1", "drink", "coffee")

		req, err := http.NewRequest(http.MethodDelete, ts.URL+"/memory/s1/color", nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		body := decodeBody(t, resp)
		assert.Equal(t, true, body["success"])
		memories := body["memories"].(map[string]interface{})
		assert.NotContains(t, memories, "color")
		assert.Equal(t, "coffee", memories["drink"])
	})

	t.Run("should clear all memory without a key", func(t *testing.T) {
		ts, store := newTestServer(t, &scriptedBackend{})
		store.SaveMemory("s1", "color", "blue")

		req, err := http.NewRequest(http.MethodDelete, ts.URL+"/memory/s1", nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		body := decodeBody(t, resp)
		memories := body["memories"].(map[string]interface{})
		assert.Empty(t, memories)
	})

	t.Run("should report a missing session on delete", func(t *testing.T) {
		ts, _ := newTestServer(t, &scriptedBackend{})

		req, err := http.NewRequest(http.MethodDelete, ts.URL+"/memory/ghost", nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		body := decodeBody(t, resp)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "No session found", body["message"])
	})
}

func TestCORS(t *testing.T) {
	ts, _ := newTestServer(t, &scriptedBackend{})

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/chat/completions", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestWebSocket(t *testing.T) {
	t.Run("should stream text frames then done", func(t *testing.T) {
		backend := &scriptedBackend{responses: []*model.Response{{
			StopReason: model.StopEndTurn,
			TextBlocks: []string{"Hello", " there"},
		}}}
		ts, _ := newTestServer(t, backend)

		url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/llm"
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		defer conn.Close()

		require.NoError(t, conn.WriteJSON(map[string]interface{}{
			"messages":   []map[string]string{{"role": "user", "content": "Hi"}},
			"session_id": "s1",
		}))

		var frames []stream.Frame
		for {
			var frame stream.Frame
			require.NoError(t, conn.ReadJSON(&frame))
			frames = append(frames, frame)
			if frame.Type == "done" {
				break
			}
		}

		require.Len(t, frames, 3)
		assert.Equal(t, stream.Frame{Type: "text", Content: "Hello"}, frames[0])
		assert.Equal(t, stream.Frame{Type: "text", Content: " there"}, frames[1])
		assert.Equal(t, "done", frames[2].Type)
	})

	t.Run("should send an error frame for an invalid request", func(t *testing.T) {
		ts, _ := newTestServer(t, &scriptedBackend{})

		url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/llm"
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		defer conn.Close()

		require.NoError(t, conn.WriteJSON(map[string]interface{}{
			"messages": []interface{}{},
		}))

		var frame stream.Frame
		require.NoError(t, conn.ReadJSON(&frame))
		assert.Equal(t, "error", frame.Type)
		assert.Contains(t, frame.Error, "non-empty")
	})
}
