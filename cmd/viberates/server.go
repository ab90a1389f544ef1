package main

import (
	"context"
	"net/http"
	"strings"

	"github.com/TheHartAttack/viberates-backend/internal/app/albums"
	"github.com/TheHartAttack/viberates-backend/internal/app/artists"
	appchat "github.com/TheHartAttack/viberates-backend/internal/app/chat"
	"github.com/TheHartAttack/viberates-backend/internal/app/comments"
	"github.com/TheHartAttack/viberates-backend/internal/app/likes"
	"github.com/TheHartAttack/viberates-backend/internal/app/reviews"
	"github.com/TheHartAttack/viberates-backend/internal/app/users"
	"github.com/TheHartAttack/viberates-backend/internal/auth"
	"github.com/TheHartAttack/viberates-backend/internal/chat"
	"github.com/TheHartAttack/viberates-backend/internal/httpapi"
	"github.com/TheHartAttack/viberates-backend/internal/logging"
	"github.com/TheHartAttack/viberates-backend/internal/store"
)

func newHTTPHandler(ctx context.Context, cfg Config, dataStore *store.Store, log *logging.Logger) http.Handler {
	tokens := auth.New(cfg.JWTSecret)

	userSvc := users.New(dataStore, tokens)
	artistSvc := artists.New(dataStore)
	albumSvc := albums.New(dataStore)
	reviewSvc := reviews.New(dataStore)
	commentSvc := comments.New(dataStore)
	likeSvc := likes.New(dataStore)
	chatSvc := appchat.New(dataStore)

	hub := chat.NewHub(chatSvc, tokens, log)
	go hub.Run(ctx)

	handler := httpapi.New(userSvc, artistSvc, albumSvc, reviewSvc, commentSvc, likeSvc, chatSvc, hub).Routes()
	handler = log.RequestLogging(handler)
	handler = log.Recovery(handler)

	return withCORS(cfg.AllowedOrigins, handler)
}

func withCORS(allowedOrigins []string, next http.Handler) http.Handler {
	originAllowed := func(origin string) bool {
		if len(allowedOrigins) == 0 || origin == "" {
			return false
		}
		for _, o := range allowedOrigins {
			if strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "3600")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
