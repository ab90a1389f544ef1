package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/TheHartAttack/viberates-backend/internal/logging"
	"github.com/TheHartAttack/viberates-backend/internal/store"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		logging.New(logging.Config{}).Fatal(err, "load config")
	}

	log := logging.New(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: os.Stdout,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err, "connect to database")
	}
	defer db.Close()

	dataStore := store.New(db)
	handler := newHTTPHandler(ctx, cfg, dataStore, log)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Info("API listening on " + cfg.Addr)
	if err := server.ListenAndServe(); err != nil {
		log.Fatal(err, "server error")
	}
}
