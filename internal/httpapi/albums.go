package httpapi

import (
	"net/http"

	"github.com/TheHartAttack/viberates-backend/internal/coerce"
	"github.com/TheHartAttack/viberates-backend/internal/revision"
	"github.com/TheHartAttack/viberates-backend/internal/store"
)

type albumRequest struct {
	Title       coerce.String     `json:"title"`
	Image       coerce.String     `json:"image"`
	Label       coerce.String     `json:"label"`
	Type        coerce.String     `json:"type"`
	ReleaseDate coerce.Date       `json:"releaseDate"`
	Tracklist   coerce.StringList `json:"tracklist"`
}

func (r albumRequest) fields() store.AlbumFields {
	return store.AlbumFields{
		Title:       string(r.Title),
		Image:       string(r.Image),
		Label:       string(r.Label),
		Type:        string(r.Type),
		ReleaseDate: r.ReleaseDate.Value,
		Tracklist:   r.Tracklist,
	}
}

func (s *Server) handleAddAlbum(w http.ResponseWriter, r *http.Request, actor revision.Actor) {
	var req albumRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := s.albums.Add(r.Context(), r.PathValue("artist"), req.fields(), actor)
	if err != nil {
		writeError(w, err)
		return
	}

	if !res.Created {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"message": res.Message,
			"album":   res.Existing,
		})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": res.Message,
		"album":   res.Entity,
	})
}

func (s *Server) handleAlbumPage(w http.ResponseWriter, r *http.Request) {
	page, err := s.albums.Get(r.Context(), r.PathValue("artist"), r.PathValue("album"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "album": page})
}

func (s *Server) handleEditAlbum(w http.ResponseWriter, r *http.Request, actor revision.Actor) {
	var req albumRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := s.albums.Edit(r.Context(), r.PathValue("artist"), r.PathValue("album"), req.fields(), actor)
	if err != nil {
		writeError(w, err)
		return
	}

	if res.Existing != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"message": res.Message,
			"album":   res.Existing,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"changed": res.Changed,
		"message": res.Message,
		"album":   res.Entity,
	})
}

func (s *Server) handleAlbumHistory(w http.ResponseWriter, r *http.Request) {
	var req offsetRequest
	if !decode(w, r, &req) {
		return
	}

	history, err := s.albums.History(r.Context(), r.PathValue("artist"), r.PathValue("album"), req.value())
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

func (s *Server) handleRevertAlbum(w http.ResponseWriter, r *http.Request, actor revision.Actor) {
	var req revertRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := s.albums.Revert(r.Context(), int64(req.Edit.Value), actor)
	if err != nil {
		writeError(w, err)
		return
	}

	if res.Existing != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"message": res.Message,
			"album":   res.Existing,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": res.Message,
		"album":   res.Entity,
		"edit":    res.Edit,
	})
}

func (s *Server) handleDeleteAlbum(w http.ResponseWriter, r *http.Request, actor revision.Actor) {
	var req struct {
		Album coerce.Number `json:"album"`
	}
	if !decode(w, r, &req) {
		return
	}

	if err := s.albums.Delete(r.Context(), int64(req.Album.Value), actor); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "The album has been deleted.",
	})
}

func (s *Server) handleNewReleases(w http.ResponseWriter, r *http.Request) {
	var req offsetRequest
	if !decode(w, r, &req) {
		return
	}

	listing, err := s.albums.NewReleases(r.Context(), req.value())
	if err != nil {
		writeError(w, err)
		return
	}

	albums := listing.Albums
	if albums == nil {
		albums = []store.AlbumSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"albums":     albums,
		"moreAlbums": listing.More,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Term coerce.String `json:"searchTerm"`
	}
	if !decode(w, r, &req) {
		return
	}

	results, err := s.albums.Search(r.Context(), string(req.Term))
	if err != nil {
		writeError(w, err)
		return
	}

	if results == nil {
		results = []store.AlbumSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "albums": results})
}
