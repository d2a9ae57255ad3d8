package httpapi

import (
	"encoding/json"
	"net/http"
)

// Memory sync endpoints used by frontends to mirror session memory.

func (s *Server) handleGetMemory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionID")

	memories, exists := s.store.Peek(sessionID)
	if !exists {
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"memories": map[string]string{},
		})
		return
	}

	// Reading memory counts as activity for eviction purposes.
	s.store.GetOrCreate(sessionID)
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"memories": memories})
}

func (s *Server) handleMergeMemory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionID")

	var body struct {
		Memories map[string]string `json:"memories"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeErrorEnvelope(w, http.StatusBadRequest, "invalid_request_error", "request body must be valid JSON")
		return
	}

	merged, err := s.store.MergeMemory(sessionID, body.Memories)
	if err != nil {
		s.writeErrorEnvelope(w, http.StatusBadRequest, "invalid_request_error", "memories object is required")
		return
	}

	s.logger.Debug().
		Str("session_id", sessionID).
		Int("keys", len(body.Memories)).
		Msg("Memory merged")

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"memories": merged,
	})
}

func (s *Server) handleDeleteMemory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionID")
	key := r.PathValue("key")

	if _, exists := s.store.Peek(sessionID); !exists {
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "No session found",
		})
		return
	}

	s.store.DeleteMemory(sessionID, key)
	memories, _ := s.store.Peek(sessionID)

	s.logger.Debug().
		Str("session_id", sessionID).
		Str("key", key).
		Msg("Memory deleted")

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"memories": memories,
	})
}
