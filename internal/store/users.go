package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/TheHartAttack/viberates-backend/internal/revision"
	"github.com/TheHartAttack/viberates-backend/internal/slug"
)

var alphanumeric = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

// User is an account record. The password hash never leaves the store.
type User struct {
	ID        int64    `json:"id"`
	Username  string   `json:"username"`
	Slug      string   `json:"slug"`
	Email     string   `json:"-"`
	Roles     []string `json:"roles"`
	Suspended bool     `json:"suspended"`
}

// Actor converts the user into the form the revision workflow consumes.
func (u User) Actor() revision.Actor {
	return revision.Actor{
		ID:        u.ID,
		Username:  u.Username,
		Slug:      u.Slug,
		Roles:     u.Roles,
		Suspended: u.Suspended,
	}
}

// HasRole reports whether the user holds the named role.
func (u User) HasRole(role string) bool {
	return slices.Contains(u.Roles, role)
}

// CreateUser registers a new account. Rule violations come back as a
// *revision.ValidationError; username and email uniqueness are enforced
// both by lookup and by the underlying unique indexes.
func (s *Store) CreateUser(ctx context.Context, username, email, password string) (User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	msgs := validateNewUser(username, email, password)

	userSlug := slug.Make(username)
	if len(msgs) == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx, `
			SELECT EXISTS (SELECT 1 FROM users WHERE slug = $1)
		`, userSlug).Scan(&exists); err != nil {
			return User{}, fmt.Errorf("check username: %w", err)
		}
		if exists {
			msgs = append(msgs, "That username is already taken.")
		}

		if err := s.db.QueryRowContext(ctx, `
			SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)
		`, email).Scan(&exists); err != nil {
			return User{}, fmt.Errorf("check email: %w", err)
		}
		if exists {
			msgs = append(msgs, "That email is already being used.")
		}
	}
	if len(msgs) > 0 {
		return User{}, &revision.ValidationError{Messages: msgs}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	user := User{Username: username, Slug: userSlug, Email: email, Roles: []string{"user"}}
	rolesJSON, err := json.Marshal(user.Roles)
	if err != nil {
		return User{}, fmt.Errorf("prepare roles payload: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO users (username, slug, email, password_hash, roles)
		VALUES ($1, $2, $3, $4, $5::jsonb)
		RETURNING id
	`, username, userSlug, email, hash, string(rolesJSON)).Scan(&user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrUserExists
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}

	return user, nil
}

func validateNewUser(username, email, password string) []string {
	var msgs []string
	if username == "" {
		msgs = append(msgs, "You must provide a username.")
	}
	if username != "" && !alphanumeric.MatchString(username) {
		msgs = append(msgs, "Username can only contain letters and numbers.")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		msgs = append(msgs, "You must provide a valid email address.")
	}
	if password == "" {
		msgs = append(msgs, "You must provide a password.")
	}
	if len(password) > 0 && len(password) < 8 {
		msgs = append(msgs, "Password must be at least 8 characters.")
	}
	if len(password) > 32 {
		msgs = append(msgs, "Password cannot exceed 32 characters.")
	}
	if len(username) > 0 && len(username) < 2 {
		msgs = append(msgs, "Username must be at least 2 characters.")
	}
	if len(username) > 32 {
		msgs = append(msgs, "Username cannot exceed 32 characters.")
	}
	return msgs
}

// Authenticate validates credentials, matching the account by username
// slug. A missing account still burns a bcrypt comparison so response
// timing does not reveal which usernames exist.
func (s *Store) Authenticate(ctx context.Context, username, password string) (User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, slug, email, roles, suspended, password_hash
		FROM users
		WHERE slug = $1
	`, slug.Make(username))

	var (
		user  User
		roles []byte
		hash  []byte
	)
	err := row.Scan(&user.ID, &user.Username, &user.Slug, &user.Email, &roles, &user.Suspended, &hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			_ = bcrypt.CompareHashAndPassword(dummyPasswordHash, []byte(password))
			return User{}, ErrInvalidCredentials
		}
		return User{}, fmt.Errorf("lookup user: %w", err)
	}
	if err := json.Unmarshal(roles, &user.Roles); err != nil {
		return User{}, fmt.Errorf("decode roles: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}

	return user, nil
}

// UserBySlug resolves an account by its username slug.
func (s *Store) UserBySlug(ctx context.Context, userSlug string) (User, error) {
	return s.userBy(ctx, "slug = $1", userSlug)
}

// UserByID resolves an account by id.
func (s *Store) UserByID(ctx context.Context, id int64) (User, error) {
	return s.userBy(ctx, "id = $1", id)
}

func (s *Store) userBy(ctx context.Context, where string, arg any) (User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, slug, email, roles, suspended
		FROM users
		WHERE `+where, arg)

	var (
		user  User
		roles []byte
	)
	err := row.Scan(&user.ID, &user.Username, &user.Slug, &user.Email, &roles, &user.Suspended)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, revision.ErrNotFound
		}
		return User{}, fmt.Errorf("select user: %w", err)
	}
	if err := json.Unmarshal(roles, &user.Roles); err != nil {
		return User{}, fmt.Errorf("decode roles: %w", err)
	}

	return user, nil
}

// SetMod grants or removes the mod role.
func (s *Store) SetMod(ctx context.Context, userID int64, mod bool) (User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return User{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if tx != nil {
			_ = tx.Rollback()
		}
	}()

	var (
		user  User
		roles []byte
	)
	err = tx.QueryRowContext(ctx, `
		SELECT id, username, slug, email, roles, suspended
		FROM users
		WHERE id = $1
		FOR UPDATE
	`, userID).Scan(&user.ID, &user.Username, &user.Slug, &user.Email, &roles, &user.Suspended)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, revision.ErrNotFound
		}
		return User{}, fmt.Errorf("select user: %w", err)
	}
	if err := json.Unmarshal(roles, &user.Roles); err != nil {
		return User{}, fmt.Errorf("decode roles: %w", err)
	}

	if mod && !user.HasRole("mod") {
		user.Roles = append(user.Roles, "mod")
	}
	if !mod {
		user.Roles = slices.DeleteFunc(user.Roles, func(r string) bool { return r == "mod" })
	}

	rolesJSON, err := json.Marshal(user.Roles)
	if err != nil {
		return User{}, fmt.Errorf("prepare roles payload: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE users
		SET roles = $1::jsonb
		WHERE id = $2
	`, string(rolesJSON), userID); err != nil {
		return User{}, fmt.Errorf("update roles: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return User{}, fmt.Errorf("commit tx: %w", err)
	}
	tx = nil

	return user, nil
}

// SetSuspended flips the suspension flag.
func (s *Store) SetSuspended(ctx context.Context, userID int64, suspended bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET suspended = $1
		WHERE id = $2
	`, suspended, userID)
	if err != nil {
		return fmt.Errorf("update suspension: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return revision.ErrNotFound
	}
	return nil
}
