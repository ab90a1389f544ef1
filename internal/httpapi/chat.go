package httpapi

import (
	"net/http"

	"github.com/TheHartAttack/viberates-backend/internal/store"
)

func (s *Server) handleLoadChat(w http.ResponseWriter, r *http.Request) {
	var req offsetRequest
	if !decode(w, r, &req) {
		return
	}

	load, err := s.chat.Load(r.Context(), req.value())
	if err != nil {
		writeError(w, err)
		return
	}

	messages := load.Messages
	if messages == nil {
		messages = []store.ChatMessage{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"messages":     messages,
		"moreMessages": load.More,
	})
}
