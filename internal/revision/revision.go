// Package revision implements moderated, versioned editing of catalogue
// entities. Every accepted register, edit, or revert appends a full
// snapshot of the entity's mutable fields to an immutable ledger, and a
// single generic manager drives the shared workflow for all entity types.
package revision

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound signals a missing entity, edit record, or natural key.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned by store implementations when a write
	// trips a natural-key unique constraint.
	ErrDuplicate = errors.New("duplicate entity")
	// ErrNoChanges rejects a revert whose snapshot matches current state.
	ErrNoChanges = errors.New("No changes between current and previous data.")
)

// Cooldown is the minimum interval between ledger-writing operations by
// the same non-privileged user against the same target.
const Cooldown = 60 * time.Second

// Actor identifies the authenticated user performing an operation.
type Actor struct {
	ID        int64    `json:"id"`
	Username  string   `json:"username"`
	Slug      string   `json:"slug"`
	Roles     []string `json:"roles"`
	Suspended bool     `json:"suspended"`
}

// HasRole reports whether the actor holds the named role.
func (a Actor) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// privileged actors skip the edit cooldown.
func (a Actor) privileged() bool {
	return a.HasRole("mod") || a.HasRole("admin")
}

// Scope narrows natural-key uniqueness for entity types that are not
// globally unique. Artists leave it zero; albums set Artist; reviews set
// Album and Author.
type Scope struct {
	Artist int64
	Album  int64
	Author int64
}

// Record is the current state of a versioned entity.
type Record[S any] struct {
	ID     int64  `json:"id"`
	Slug   string `json:"slug"`
	Scope  Scope  `json:"-"`
	Fields S      `json:"data"`
}

// UserRef is the acting-user summary attached to ledger entries.
type UserRef struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Slug     string `json:"slug"`
}

// Edit is one immutable entry in an entity's edit ledger. Data holds the
// complete mutable field set as of this edit, never a delta.
type Edit[S any] struct {
	ID      int64     `json:"id"`
	Target  int64     `json:"target"`
	Date    time.Time `json:"date"`
	Initial bool      `json:"initial"`
	User    UserRef   `json:"user"`
	Data    S         `json:"data"`
}

// Ops is the persistence contract the manager drives. Insert and Update
// must commit the entity write and the ledger append as one atomic unit,
// and must report natural-key collisions as ErrDuplicate so the manager
// can fold a lost race into an ordinary duplicate result.
type Ops[S any] interface {
	// Find resolves the non-deleted entity holding the natural key.
	Find(ctx context.Context, scope Scope, slug string) (Record[S], error)
	// Get resolves an entity by id.
	Get(ctx context.Context, id int64) (Record[S], error)
	// Insert creates the entity together with its initial ledger entry.
	Insert(ctx context.Context, scope Scope, slug string, fields S, actor Actor) (Record[S], Edit[S], error)
	// Update overwrites the entity's fields and appends a ledger entry.
	Update(ctx context.Context, target int64, slug string, fields S, actor Actor) (Record[S], Edit[S], error)
	// EditByID resolves a single ledger entry.
	EditByID(ctx context.Context, id int64) (Edit[S], error)
	// LastEditAt reports when the user last touched the target, if ever.
	LastEditAt(ctx context.Context, target, userID int64) (time.Time, bool, error)
	// History lists ledger entries for the target, newest first.
	History(ctx context.Context, target int64, offset, limit int) ([]Edit[S], error)
}

// Variant supplies the entity-specific capabilities the shared workflow
// is parameterized over.
type Variant[S any] struct {
	// Normalize trims and bounds fields before any other step.
	Normalize func(S) S
	// Validate returns the ordered list of field-rule violations.
	Validate func(S) []string
	// Slug derives the natural key from a field set.
	Slug func(S) string
	// Equal reports field-wise equality for no-op detection.
	Equal func(current, next S) bool
	// Conflict renders the duplicate message for an existing record.
	Conflict func(existing Record[S]) string
	// ReturnExisting makes Register hand back an existing record
	// unchanged instead of reporting a conflict (review semantics).
	ReturnExisting bool
}

// ValidationError carries every field-rule violation for a payload; the
// first message is the primary one for display.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	if len(e.Messages) == 0 {
		return "invalid payload"
	}
	return e.Messages[0]
}

// CooldownError rejects an operation attempted before the per-user edit
// cooldown has elapsed.
type CooldownError struct {
	Remaining int
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("Please wait %d seconds before editing data again.", e.Remaining)
}
