package httpapi

import (
	"net/http"

	"github.com/TheHartAttack/viberates-backend/internal/coerce"
	"github.com/TheHartAttack/viberates-backend/internal/revision"
)

type commentRequest struct {
	Body coerce.String `json:"comment"`
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request, actor revision.Actor) {
	reviewID, ok := pathID(w, r, "review")
	if !ok {
		return
	}

	var req commentRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := s.comments.Add(r.Context(), reviewID, string(req.Body), actor)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": res.Message,
		"comment": res.Comment,
	})
}

func (s *Server) handleEditComment(w http.ResponseWriter, r *http.Request, actor revision.Actor) {
	commentID, ok := pathID(w, r, "comment")
	if !ok {
		return
	}

	var req commentRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := s.comments.Edit(r.Context(), commentID, string(req.Body), actor)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"changed": res.Changed,
		"message": res.Message,
		"comment": res.Comment,
	})
}

func (s *Server) handleLikeReview(w http.ResponseWriter, r *http.Request, actor revision.Actor) {
	reviewID, ok := pathID(w, r, "review")
	if !ok {
		return
	}

	res, err := s.likes.ToggleReview(r.Context(), actor.ID, reviewID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"liked":   res.Liked,
		"likes":   res.Count,
	})
}

func (s *Server) handleLikeComment(w http.ResponseWriter, r *http.Request, actor revision.Actor) {
	commentID, ok := pathID(w, r, "comment")
	if !ok {
		return
	}

	res, err := s.likes.ToggleComment(r.Context(), actor.ID, commentID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"liked":   res.Liked,
		"likes":   res.Count,
	})
}
