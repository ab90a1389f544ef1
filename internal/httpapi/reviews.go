package httpapi

import (
	"net/http"
	"strconv"

	"github.com/TheHartAttack/viberates-backend/internal/app/reviews"
	"github.com/TheHartAttack/viberates-backend/internal/coerce"
	"github.com/TheHartAttack/viberates-backend/internal/revision"
)

type reviewRequest struct {
	Title   coerce.String     `json:"title"`
	Summary coerce.String     `json:"summary"`
	Body    coerce.String     `json:"review"`
	Rating  coerce.Number     `json:"rating"`
	Tags    coerce.StringList `json:"tags"`
}

func (r reviewRequest) input() reviews.Input {
	return reviews.Input{
		Title:   string(r.Title),
		Summary: string(r.Summary),
		Body:    string(r.Body),
		Rating:  r.Rating.Ptr(),
		Tags:    r.Tags,
	}
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, failure("Invalid "+name+" id."))
		return 0, false
	}
	return id, true
}

func (s *Server) handleAddReview(w http.ResponseWriter, r *http.Request, actor revision.Actor) {
	var req reviewRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := s.reviews.Add(r.Context(), r.PathValue("artist"), r.PathValue("album"), req.input(), actor)
	if err != nil {
		writeError(w, err)
		return
	}

	// A repeat submission hands back the author's existing review.
	if !res.Created {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "You have already reviewed this album.",
			"review":  res.Entity,
		})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": res.Message,
		"review":  res.Entity,
	})
}

func (s *Server) handleReviewPage(w http.ResponseWriter, r *http.Request) {
	reviewID, ok := pathID(w, r, "review")
	if !ok {
		return
	}

	detail, err := s.reviews.Get(r.Context(), reviewID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "review": detail})
}

func (s *Server) handleEditReview(w http.ResponseWriter, r *http.Request, actor revision.Actor) {
	reviewID, ok := pathID(w, r, "review")
	if !ok {
		return
	}

	var req reviewRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := s.reviews.Edit(r.Context(), reviewID, req.input(), actor)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"changed": res.Changed,
		"message": res.Message,
		"review":  res.Entity,
	})
}

func (s *Server) handleReviewHistory(w http.ResponseWriter, r *http.Request) {
	reviewID, ok := pathID(w, r, "review")
	if !ok {
		return
	}

	var req offsetRequest
	if !decode(w, r, &req) {
		return
	}

	history, err := s.reviews.History(r.Context(), reviewID, req.value())
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

func (s *Server) handleRevertReview(w http.ResponseWriter, r *http.Request, actor revision.Actor) {
	var req revertRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := s.reviews.Revert(r.Context(), int64(req.Edit.Value), actor)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": res.Message,
		"review":  res.Entity,
		"edit":    res.Edit,
	})
}

func (s *Server) handleRecentReviews(w http.ResponseWriter, r *http.Request) {
	var req offsetRequest
	if !decode(w, r, &req) {
		return
	}

	listing, err := s.reviews.Recent(r.Context(), req.value())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"reviews":     listing.Reviews,
		"moreReviews": listing.More,
	})
}
