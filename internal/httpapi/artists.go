package httpapi

import (
	"net/http"

	"github.com/TheHartAttack/viberates-backend/internal/coerce"
	"github.com/TheHartAttack/viberates-backend/internal/revision"
	"github.com/TheHartAttack/viberates-backend/internal/store"
)

type artistRequest struct {
	Name  coerce.String `json:"name"`
	Image coerce.String `json:"image"`
}

func (r artistRequest) fields() store.ArtistFields {
	return store.ArtistFields{
		Name:  string(r.Name),
		Image: string(r.Image),
	}
}

type revertRequest struct {
	Edit coerce.Number `json:"edit"`
}

func (s *Server) handleAddArtist(w http.ResponseWriter, r *http.Request, actor revision.Actor) {
	var req artistRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := s.artists.Add(r.Context(), req.fields(), actor)
	if err != nil {
		writeError(w, err)
		return
	}

	if !res.Created {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"message": res.Message,
			"artist":  res.Existing,
		})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": res.Message,
		"artist":  res.Entity,
	})
}

func (s *Server) handleArtistPage(w http.ResponseWriter, r *http.Request) {
	page, err := s.artists.Get(r.Context(), r.PathValue("artist"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "artist": page})
}

func (s *Server) handleEditArtist(w http.ResponseWriter, r *http.Request, actor revision.Actor) {
	var req artistRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := s.artists.Edit(r.Context(), r.PathValue("artist"), req.fields(), actor)
	if err != nil {
		writeError(w, err)
		return
	}

	if res.Existing != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"message": res.Message,
			"artist":  res.Existing,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"changed": res.Changed,
		"message": res.Message,
		"artist":  res.Entity,
	})
}

func (s *Server) handleArtistHistory(w http.ResponseWriter, r *http.Request) {
	var req offsetRequest
	if !decode(w, r, &req) {
		return
	}

	history, err := s.artists.History(r.Context(), r.PathValue("artist"), req.value())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"edits":     history.Edits,
		"moreEdits": history.More,
	})
}

func (s *Server) handleRevertArtist(w http.ResponseWriter, r *http.Request, actor revision.Actor) {
	var req revertRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := s.artists.Revert(r.Context(), int64(req.Edit.Value), actor)
	if err != nil {
		writeError(w, err)
		return
	}

	if res.Existing != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"message": res.Message,
			"artist":  res.Existing,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": res.Message,
		"artist":  res.Entity,
		"edit":    res.Edit,
	})
}
