package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rybuilt/humelink/internal/observability"
	"github.com/rybuilt/humelink/pkg/orchestrator"
	"github.com/rybuilt/humelink/pkg/stream"
)

// chatRequest is the OpenAI-format request body voice clients send.
type chatRequest struct {
	Messages  []orchestrator.Turn `json:"messages"`
	Model     string              `json:"model"`
	SessionID string              `json:"session_id"`
}

// validate checks the conversation shape before any streaming starts.
func (c *chatRequest) validate() error {
	if len(c.Messages) == 0 {
		return fmt.Errorf("messages must be a non-empty array")
	}
	for i, msg := range c.Messages {
		if msg.Role == "" {
			return fmt.Errorf("messages[%d] is missing a role", i)
		}
		if msg.Content == "" {
			return fmt.Errorf("messages[%d] is missing content", i)
		}
	}
	return nil
}

// resolve fills in defaults and returns the run parameters.
func (c *chatRequest) resolve(defaultModel string) orchestrator.RunParams {
	sessionID := c.SessionID
	if sessionID == "" {
		id, err := gonanoid.New()
		if err != nil {
			// Extremely unlikely; fall back to a timestamp id.
			id = fmt.Sprintf("%d", time.Now().UnixNano())
		}
		sessionID = "session_" + id
	}

	model := c.Model
	if model == "" {
		model = defaultModel
	}

	return orchestrator.RunParams{
		SessionID: sessionID,
		Model:     model,
		Turns:     c.Messages,
	}
}

// handleChatCompletions runs the tool-calling loop and re-encodes the
// final response as an OpenAI chunk stream. Validation and backend
// failures before the first chunk produce a JSON error envelope; the
// stream itself always terminates with [DONE] once opened.
func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	finish, ok := s.beginRequest(w)
	if !ok {
		return
	}
	defer finish()

	startTime := time.Now()

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorEnvelope(w, http.StatusBadRequest, "invalid_request_error", "request body must be valid JSON")
		observability.RecordRequest("/chat/completions", http.StatusBadRequest, time.Since(startTime))
		return
	}
	if err := req.validate(); err != nil {
		s.writeErrorEnvelope(w, http.StatusBadRequest, "invalid_request_error", err.Error())
		observability.RecordRequest("/chat/completions", http.StatusBadRequest, time.Since(startTime))
		return
	}

	params := req.resolve(s.options.DefaultModel)
	s.store.GetOrCreate(params.SessionID)

	s.logger.Info().
		Str("session_id", params.SessionID).
		Str("model", params.Model).
		Int("message_count", len(req.Messages)).
		Msg("Chat completion request")

	result, err := s.orchestrator.Run(r.Context(), params)
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", params.SessionID).Msg("Chat completion failed")
		s.writeErrorEnvelope(w, http.StatusInternalServerError, "server_error", err.Error())
		observability.RecordRequest("/chat/completions", http.StatusInternalServerError, time.Since(startTime))
		return
	}

	// From here the response is an event stream. An exhausted round cap
	// still yields a well-formed empty stream rather than a hang.
	sse := stream.NewSSEWriter(w, params.Model)
	sse.WriteRole()
	if result.Response != nil {
		for _, block := range result.Response.TextBlocks {
			sse.WriteContent(block)
		}
	}
	sse.WriteStop()
	sse.WriteDone()

	s.logger.Info().
		Str("session_id", params.SessionID).
		Str("state", result.State.String()).
		Int("rounds", result.Rounds).
		Dur("duration", time.Since(startTime)).
		Msg("Chat completion finished")
	observability.RecordRequest("/chat/completions", http.StatusOK, time.Since(startTime))
}
