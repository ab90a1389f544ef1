package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// retryPolicy bounds the startup wait for the database. Postgres in a
// fresh container can take a few seconds to accept connections.
type retryPolicy struct {
	pingTimeout time.Duration
	maxWait     time.Duration
	backoff     time.Duration
	maxBackoff  time.Duration
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{
		pingTimeout: 5 * time.Second,
		maxWait:     30 * time.Second,
		backoff:     500 * time.Millisecond,
		maxBackoff:  5 * time.Second,
	}
}

// openDatabase connects and pings until the instance responds or the
// retry budget runs out.
func openDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	return openDatabaseWithRetry(ctx, dsn, defaultRetryPolicy())
}

func openDatabaseWithRetry(ctx context.Context, dsn string, policy retryPolicy) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	deadline := time.Now().Add(policy.maxWait)
	wait := policy.backoff
	var lastErr error

	for {
		pingCtx, cancel := context.WithTimeout(ctx, policy.pingTimeout)
		lastErr = db.PingContext(pingCtx)
		cancel()

		if lastErr == nil {
			return db, nil
		}
		if ctx.Err() != nil || time.Now().After(deadline) {
			break
		}

		time.Sleep(wait)
		if wait *= 2; wait > policy.maxBackoff {
			wait = policy.maxBackoff
		}
	}

	_ = db.Close()
	return nil, fmt.Errorf("ping database: %w", lastErr)
}
