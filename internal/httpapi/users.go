package httpapi

import (
	"net/http"
	"strconv"

	"github.com/TheHartAttack/viberates-backend/internal/coerce"
	"github.com/TheHartAttack/viberates-backend/internal/revision"
	"github.com/TheHartAttack/viberates-backend/internal/store"
)

type registerRequest struct {
	Username coerce.String `json:"username"`
	Email    coerce.String `json:"email"`
	Password coerce.String `json:"password"`
}

type loginRequest struct {
	Username coerce.String `json:"username"`
	Password coerce.String `json:"password"`
}

type offsetRequest struct {
	Offset coerce.Number `json:"offset"`
}

func (r offsetRequest) value() int {
	if !r.Offset.Set || r.Offset.Value < 0 {
		return 0
	}
	return int(r.Offset.Value)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}

	session, err := s.users.Register(r.Context(), string(req.Username), string(req.Email), string(req.Password))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"token":   session.Token,
		"user":    session.User,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}

	session, err := s.users.Login(r.Context(), string(req.Username), string(req.Password))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"token":   session.Token,
		"user":    session.User,
	})
}

// handleCheckToken validates a stored token on app load. An invalid
// token is not an error condition for the client; it just logs out.
func (s *Server) handleCheckToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token coerce.String `json:"token"`
	}
	if !decode(w, r, &req) {
		return
	}

	actor, err := s.users.CheckToken(r.Context(), string(req.Token))
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"success": false})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": actor})
}

func (s *Server) handleUserPage(w http.ResponseWriter, r *http.Request) {
	page, err := s.users.Get(r.Context(), r.PathValue("user"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"user":        page.User,
		"reviews":     page.Reviews,
		"moreReviews": page.More,
	})
}

func (s *Server) handleUserReviews(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.PathValue("user"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, failure("Invalid user id."))
		return
	}

	var req offsetRequest
	if !decode(w, r, &req) {
		return
	}

	reviews, more, err := s.users.LoadReviews(r.Context(), userID, req.value())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"reviews":     emptyIfNil(reviews),
		"moreReviews": more,
	})
}

func (s *Server) handleToggleMod(w http.ResponseWriter, r *http.Request, actor revision.Actor) {
	change, err := s.users.ToggleMod(r.Context(), actor, r.PathValue("user"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": change.Message,
		"user":    change.User,
	})
}

func (s *Server) handleToggleSuspend(w http.ResponseWriter, r *http.Request, actor revision.Actor) {
	change, err := s.users.ToggleSuspend(r.Context(), actor, r.PathValue("user"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": change.Message,
		"user":    change.User,
	})
}

// emptyIfNil keeps list responses as [] rather than null.
func emptyIfNil(items []store.ReviewListItem) []store.ReviewListItem {
	if items == nil {
		return []store.ReviewListItem{}
	}
	return items
}
