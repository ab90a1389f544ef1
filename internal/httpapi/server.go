// Package httpapi wires HTTP handlers to the application services.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/TheHartAttack/viberates-backend/internal/app/albums"
	"github.com/TheHartAttack/viberates-backend/internal/app/chat"
	"github.com/TheHartAttack/viberates-backend/internal/app/comments"
	"github.com/TheHartAttack/viberates-backend/internal/app/likes"
	"github.com/TheHartAttack/viberates-backend/internal/app/reviews"
	"github.com/TheHartAttack/viberates-backend/internal/app/users"
	"github.com/TheHartAttack/viberates-backend/internal/revision"
	"github.com/TheHartAttack/viberates-backend/internal/store"
)

// UserService captures the account and identity operations needed by the
// HTTP handlers.
type UserService interface {
	Register(ctx context.Context, username, email, password string) (users.Session, error)
	Login(ctx context.Context, username, password string) (users.Session, error)
	CheckToken(ctx context.Context, token string) (revision.Actor, error)
	Get(ctx context.Context, userSlug string) (users.Page, error)
	LoadReviews(ctx context.Context, userID int64, offset int) ([]store.ReviewListItem, bool, error)
	ToggleMod(ctx context.Context, actor revision.Actor, userSlug string) (users.RoleChange, error)
	ToggleSuspend(ctx context.Context, actor revision.Actor, userSlug string) (users.RoleChange, error)
}

// ArtistService describes the versioned artist workflows.
type ArtistService interface {
	Add(ctx context.Context, fields store.ArtistFields, actor revision.Actor) (revision.RegisterResult[store.ArtistFields], error)
	Edit(ctx context.Context, artistSlug string, fields store.ArtistFields, actor revision.Actor) (revision.EditResult[store.ArtistFields], error)
	Get(ctx context.Context, artistSlug string) (store.ArtistPage, error)
	History(ctx context.Context, artistSlug string, offset int) (revision.History[store.ArtistFields], error)
	Revert(ctx context.Context, editID int64, actor revision.Actor) (revision.RevertResult[store.ArtistFields], error)
}

// AlbumService describes the versioned album workflows.
type AlbumService interface {
	Add(ctx context.Context, artistSlug string, fields store.AlbumFields, actor revision.Actor) (revision.RegisterResult[store.AlbumFields], error)
	Edit(ctx context.Context, artistSlug, albumSlug string, fields store.AlbumFields, actor revision.Actor) (revision.EditResult[store.AlbumFields], error)
	Get(ctx context.Context, artistSlug, albumSlug string) (store.AlbumPage, error)
	History(ctx context.Context, artistSlug, albumSlug string, offset int) (revision.History[store.AlbumFields], error)
	Revert(ctx context.Context, editID int64, actor revision.Actor) (revision.RevertResult[store.AlbumFields], error)
	Delete(ctx context.Context, albumID int64, actor revision.Actor) error
	NewReleases(ctx context.Context, offset int) (albums.Listing, error)
	Search(ctx context.Context, term string) ([]store.AlbumSummary, error)
}

// ReviewService describes the versioned review workflows.
type ReviewService interface {
	Add(ctx context.Context, artistSlug, albumSlug string, input reviews.Input, actor revision.Actor) (revision.RegisterResult[store.ReviewFields], error)
	Edit(ctx context.Context, reviewID int64, input reviews.Input, actor revision.Actor) (revision.EditResult[store.ReviewFields], error)
	Get(ctx context.Context, reviewID int64) (reviews.Detail, error)
	History(ctx context.Context, reviewID int64, offset int) (revision.History[store.ReviewFields], error)
	Revert(ctx context.Context, editID int64, actor revision.Actor) (revision.RevertResult[store.ReviewFields], error)
	Recent(ctx context.Context, offset int) (reviews.Listing, error)
}

// CommentService coordinates review comments.
type CommentService interface {
	Add(ctx context.Context, reviewID int64, body string, actor revision.Actor) (comments.Result, error)
	Edit(ctx context.Context, commentID int64, body string, actor revision.Actor) (comments.Result, error)
}

// LikeService coordinates like toggles.
type LikeService interface {
	ToggleReview(ctx context.Context, userID, reviewID int64) (likes.Result, error)
	ToggleComment(ctx context.Context, userID, commentID int64) (likes.Result, error)
}

// ChatService coordinates chat history.
type ChatService interface {
	Load(ctx context.Context, offset int) (chat.Load, error)
}

// Server wires HTTP handlers to the underlying services.
type Server struct {
	users    UserService
	artists  ArtistService
	albums   AlbumService
	reviews  ReviewService
	comments CommentService
	likes    LikeService
	chat     ChatService
	chatHub  http.Handler
}

// New configures a Server with the given service implementations. The
// chat hub handles the websocket endpoint and may be nil in tests.
func New(
	users UserService,
	artists ArtistService,
	albums AlbumService,
	reviews ReviewService,
	comments CommentService,
	likes LikeService,
	chat ChatService,
	chatHub http.Handler,
) *Server {
	return &Server{
		users:    users,
		artists:  artists,
		albums:   albums,
		reviews:  reviews,
		comments: comments,
		likes:    likes,
		chat:     chat,
		chatHub:  chatHub,
	}
}

// Routes exposes the HTTP handlers.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Accounts and identity
	mux.HandleFunc("POST /register", s.handleRegister)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("POST /checkToken", s.handleCheckToken)
	mux.HandleFunc("GET /user/{user}", s.handleUserPage)
	mux.HandleFunc("POST /user/{user}/load-reviews", s.handleUserReviews)
	mux.HandleFunc("POST /mod/{user}", s.requireUser(s.requireAdmin(s.handleToggleMod)))
	mux.HandleFunc("POST /suspend/{user}", s.requireUser(s.requireModOrAdmin(s.handleToggleSuspend)))

	// Artists
	mux.HandleFunc("POST /add-artist", s.requireUser(s.notSuspended(s.handleAddArtist)))
	mux.HandleFunc("GET /artist/{artist}", s.handleArtistPage)
	mux.HandleFunc("POST /edit/artist/{artist}", s.requireUser(s.notSuspended(s.handleEditArtist)))
	mux.HandleFunc("POST /edit-history/artist/{artist}", s.handleArtistHistory)
	mux.HandleFunc("POST /revert/artist", s.requireUser(s.notSuspended(s.handleRevertArtist)))

	// Albums
	mux.HandleFunc("POST /add-album/{artist}", s.requireUser(s.notSuspended(s.handleAddAlbum)))
	mux.HandleFunc("GET /artist/{artist}/album/{album}", s.handleAlbumPage)
	mux.HandleFunc("POST /edit/artist/{artist}/album/{album}", s.requireUser(s.notSuspended(s.handleEditAlbum)))
	mux.HandleFunc("POST /edit-history/artist/{artist}/album/{album}", s.handleAlbumHistory)
	mux.HandleFunc("POST /revert/album", s.requireUser(s.notSuspended(s.handleRevertAlbum)))
	mux.HandleFunc("POST /deleteAlbum", s.requireUser(s.requireModOrAdmin(s.handleDeleteAlbum)))

	// Reviews
	mux.HandleFunc("POST /add-review/{artist}/{album}", s.requireUser(s.notSuspended(s.handleAddReview)))
	mux.HandleFunc("GET /artist/{artist}/album/{album}/review/{review}", s.handleReviewPage)
	mux.HandleFunc("POST /edit/artist/{artist}/album/{album}/review/{review}", s.requireUser(s.notSuspended(s.handleEditReview)))
	mux.HandleFunc("POST /edit-history/artist/{artist}/album/{album}/review/{review}", s.handleReviewHistory)
	mux.HandleFunc("POST /revert/review", s.requireUser(s.notSuspended(s.handleRevertReview)))

	// Comments and likes
	mux.HandleFunc("POST /add-comment/{review}", s.requireUser(s.notSuspended(s.handleAddComment)))
	mux.HandleFunc("POST /edit-comment/{comment}", s.requireUser(s.notSuspended(s.handleEditComment)))
	mux.HandleFunc("POST /like/review/{review}", s.requireUser(s.handleLikeReview))
	mux.HandleFunc("POST /like/comment/{comment}", s.requireUser(s.handleLikeComment))

	// Listings and search
	mux.HandleFunc("POST /new-releases", s.handleNewReleases)
	mux.HandleFunc("POST /recent-reviews", s.handleRecentReviews)
	mux.HandleFunc("POST /search", s.handleSearch)

	// Chat
	mux.HandleFunc("POST /load-chat", s.handleLoadChat)
	if s.chatHub != nil {
		mux.Handle("GET /chat", s.chatHub)
	}

	return mux
}

func parseBearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func failure(message string) map[string]any {
	return map[string]any{"success": false, "message": message}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, failure("Invalid JSON payload."))
		return false
	}
	return true
}

// writeError maps service errors to HTTP responses. Anything unmapped
// is a 500 with a generic message.
func writeError(w http.ResponseWriter, err error) {
	var vErr *revision.ValidationError
	var cErr *revision.CooldownError

	switch {
	case errors.As(err, &vErr):
		body := failure(vErr.Error())
		body["errors"] = vErr.Messages
		writeJSON(w, http.StatusBadRequest, body)
	case errors.As(err, &cErr):
		writeJSON(w, http.StatusTooManyRequests, failure(cErr.Error()))
	case errors.Is(err, revision.ErrNoChanges):
		writeJSON(w, http.StatusBadRequest, failure(err.Error()))
	case errors.Is(err, revision.ErrNotFound),
		errors.Is(err, store.ErrAlbumNotFound):
		writeJSON(w, http.StatusNotFound, failure("Not found."))
	case errors.Is(err, store.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, failure("Invalid username or password."))
	case errors.Is(err, store.ErrUserExists):
		writeJSON(w, http.StatusConflict, failure("That username is already taken."))
	case errors.Is(err, reviews.ErrNotAuthor),
		errors.Is(err, comments.ErrNotAuthor),
		errors.Is(err, users.ErrTargetProtected):
		writeJSON(w, http.StatusForbidden, failure(err.Error()))
	default:
		writeJSON(w, http.StatusInternalServerError, failure("Something went wrong, please try again later."))
	}
}
