package revision

import (
	"context"
	"errors"
	"math"
	"time"
)

// Manager orchestrates register, edit, and revert for one entity type.
// Stores are injected at construction; the manager holds no other state.
type Manager[S any] struct {
	ops     Ops[S]
	variant Variant[S]
	now     func() time.Time
}

// NewManager builds a Manager from a persistence implementation and the
// entity variant's capability set.
func NewManager[S any](ops Ops[S], variant Variant[S]) *Manager[S] {
	return &Manager[S]{ops: ops, variant: variant, now: time.Now}
}

// RegisterResult reports the outcome of a Register call. Exactly one of
// three shapes comes back: a created entity with its initial ledger
// entry, an existing entity handed back unchanged (review semantics), or
// a duplicate conflict with the colliding record attached.
type RegisterResult[S any] struct {
	Entity   Record[S]
	Edit     Edit[S]
	Created  bool
	Existing *Record[S]
	Message  string
}

// EditResult reports the outcome of an Edit call.
type EditResult[S any] struct {
	Entity   Record[S]
	Changed  bool
	Existing *Record[S]
	Message  string
}

// RevertResult reports the outcome of a Revert call.
type RevertResult[S any] struct {
	Entity   Record[S]
	Edit     Edit[S]
	Message  string
	Existing *Record[S]
}

// History is one page of an entity's edit ledger.
type History[S any] struct {
	Edits []Edit[S]
	More  bool
}

// Register creates a new entity from the payload, writing the entity and
// its initial ledger entry atomically. A natural-key duplicate is not an
// error: depending on the variant it either returns the existing record
// unchanged or a conflict result carrying it.
func (m *Manager[S]) Register(ctx context.Context, fields S, actor Actor, scope Scope) (RegisterResult[S], error) {
	fields = m.variant.Normalize(fields)
	key := m.variant.Slug(fields)

	existing, err := m.ops.Find(ctx, scope, key)
	switch {
	case err == nil:
		return m.registerDuplicate(existing), nil
	case !errors.Is(err, ErrNotFound):
		return RegisterResult[S]{}, err
	}

	if msgs := m.variant.Validate(fields); len(msgs) > 0 {
		return RegisterResult[S]{}, &ValidationError{Messages: msgs}
	}

	rec, edit, err := m.ops.Insert(ctx, scope, key, fields, actor)
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			// Lost a race to a concurrent register; report the winner.
			if winner, ferr := m.ops.Find(ctx, scope, key); ferr == nil {
				return m.registerDuplicate(winner), nil
			}
		}
		return RegisterResult[S]{}, err
	}

	return RegisterResult[S]{Entity: rec, Edit: edit, Created: true}, nil
}

func (m *Manager[S]) registerDuplicate(existing Record[S]) RegisterResult[S] {
	if m.variant.ReturnExisting {
		return RegisterResult[S]{Entity: existing}
	}
	return RegisterResult[S]{Existing: &existing, Message: m.variant.Conflict(existing)}
}

// Edit overwrites the target's fields with the payload and appends a
// ledger entry, unless the payload matches current state (changed:false,
// nothing written) or its natural key collides with a different entity.
func (m *Manager[S]) Edit(ctx context.Context, fields S, actor Actor, target Record[S]) (EditResult[S], error) {
	fields = m.variant.Normalize(fields)

	if m.variant.Equal(target.Fields, fields) {
		return EditResult[S]{Entity: target, Changed: false}, nil
	}

	key := m.variant.Slug(fields)
	if existing, err := m.ops.Find(ctx, target.Scope, key); err == nil {
		if existing.ID != target.ID {
			return EditResult[S]{Existing: &existing, Message: m.variant.Conflict(existing)}, nil
		}
	} else if !errors.Is(err, ErrNotFound) {
		return EditResult[S]{}, err
	}

	if msgs := m.variant.Validate(fields); len(msgs) > 0 {
		return EditResult[S]{}, &ValidationError{Messages: msgs}
	}

	rec, _, err := m.ops.Update(ctx, target.ID, key, fields, actor)
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			if winner, ferr := m.ops.Find(ctx, target.Scope, key); ferr == nil && winner.ID != target.ID {
				return EditResult[S]{Existing: &winner, Message: m.variant.Conflict(winner)}, nil
			}
		}
		return EditResult[S]{}, err
	}

	return EditResult[S]{Entity: rec, Changed: true}, nil
}

// Revert restores the target entity to the snapshot held by a ledger
// entry, re-deriving the natural key from the snapshot and appending a
// new ledger entry attributed to the reverting user. Non-privileged
// users are held to the edit cooldown, and a snapshot identical to
// current state is rejected with ErrNoChanges.
func (m *Manager[S]) Revert(ctx context.Context, editID int64, actor Actor) (RevertResult[S], error) {
	edit, err := m.ops.EditByID(ctx, editID)
	if err != nil {
		return RevertResult[S]{}, err
	}

	target, err := m.ops.Get(ctx, edit.Target)
	if err != nil {
		return RevertResult[S]{}, err
	}

	key := m.variant.Slug(edit.Data)
	if existing, err := m.ops.Find(ctx, target.Scope, key); err == nil {
		if existing.ID != target.ID {
			return RevertResult[S]{Existing: &existing, Message: m.variant.Conflict(existing)}, nil
		}
	} else if !errors.Is(err, ErrNotFound) {
		return RevertResult[S]{}, err
	}

	if !actor.privileged() {
		last, ok, err := m.ops.LastEditAt(ctx, target.ID, actor.ID)
		if err != nil {
			return RevertResult[S]{}, err
		}
		if ok {
			elapsed := int(math.Round(m.now().Sub(last).Seconds()))
			if elapsed < int(Cooldown/time.Second) {
				return RevertResult[S]{}, &CooldownError{Remaining: int(Cooldown/time.Second) - elapsed}
			}
		}
	}

	if m.variant.Equal(target.Fields, edit.Data) {
		return RevertResult[S]{}, ErrNoChanges
	}

	rec, newEdit, err := m.ops.Update(ctx, target.ID, key, edit.Data, actor)
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			if winner, ferr := m.ops.Find(ctx, target.Scope, key); ferr == nil && winner.ID != target.ID {
				return RevertResult[S]{Existing: &winner, Message: m.variant.Conflict(winner)}, nil
			}
		}
		return RevertResult[S]{}, err
	}

	return RevertResult[S]{
		Entity:  rec,
		Edit:    newEdit,
		Message: "Successfully reverted to previous data.",
	}, nil
}

// History returns one page of the target's ledger, newest first, using
// the fetch-one-extra convention to report whether more entries remain.
func (m *Manager[S]) History(ctx context.Context, target int64, offset, pageSize int) (History[S], error) {
	edits, err := m.ops.History(ctx, target, offset, pageSize+1)
	if err != nil {
		return History[S]{}, err
	}

	more := false
	if len(edits) > pageSize {
		more = true
		edits = edits[:pageSize]
	}

	return History[S]{Edits: edits, More: more}, nil
}
