package httpapi

import (
	"net/http"

	"github.com/TheHartAttack/viberates-backend/internal/revision"
)

// authedHandler is a handler that runs with a verified actor.
type authedHandler func(http.ResponseWriter, *http.Request, revision.Actor)

// requireUser verifies the bearer token and passes the actor through.
func (s *Server) requireUser(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := parseBearerToken(r.Header.Get("Authorization"))
		actor, err := s.users.CheckToken(r.Context(), token)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, failure("You must be logged in to perform that action."))
			return
		}
		next(w, r, actor)
	}
}

// notSuspended rejects suspended accounts before any write handler runs.
func (s *Server) notSuspended(next authedHandler) authedHandler {
	return func(w http.ResponseWriter, r *http.Request, actor revision.Actor) {
		if actor.Suspended {
			writeJSON(w, http.StatusForbidden, failure("This account is suspended from adding/editing data."))
			return
		}
		next(w, r, actor)
	}
}

func (s *Server) requireAdmin(next authedHandler) authedHandler {
	return func(w http.ResponseWriter, r *http.Request, actor revision.Actor) {
		if !actor.HasRole("admin") {
			writeJSON(w, http.StatusForbidden, failure("You must be an admin to perform that action."))
			return
		}
		next(w, r, actor)
	}
}

func (s *Server) requireModOrAdmin(next authedHandler) authedHandler {
	return func(w http.ResponseWriter, r *http.Request, actor revision.Actor) {
		if !actor.HasRole("mod") && !actor.HasRole("admin") {
			writeJSON(w, http.StatusForbidden, failure("You must be an admin or mod to perform that action."))
			return
		}
		next(w, r, actor)
	}
}
