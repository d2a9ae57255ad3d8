package httpapi

import (
	"net/http"

	"github.com/rybuilt/humelink/pkg/stream"
)

// handleWebSocket serves one request per connection: the client sends a
// chat request frame, receives text frames as the model streams, then a
// done frame. Failures after the upgrade arrive as an error frame
// followed by done.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	finish, ok := s.beginRequest(w)
	if !ok {
		return
	}
	defer finish()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	writer := stream.NewWSWriter(conn)

	var req chatRequest
	if err := conn.ReadJSON(&req); err != nil {
		writer.WriteError("request frame must be valid JSON")
		writer.WriteDone()
		return
	}
	if err := req.validate(); err != nil {
		writer.WriteError(err.Error())
		writer.WriteDone()
		return
	}

	params := req.resolve(s.options.DefaultModel)
	s.store.GetOrCreate(params.SessionID)

	s.logger.Info().
		Str("session_id", params.SessionID).
		Str("model", params.Model).
		Msg("WebSocket chat request")

	result, err := s.orchestrator.RunStream(r.Context(), params, func(text string) {
		writer.WriteText(text)
	})
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", params.SessionID).Msg("WebSocket chat failed")
		writer.WriteError(err.Error())
		writer.WriteDone()
		return
	}

	s.logger.Info().
		Str("session_id", params.SessionID).
		Str("state", result.State.String()).
		Int("rounds", result.Rounds).
		Msg("WebSocket chat finished")

	writer.WriteDone()
}
