package revision

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/TheHartAttack/viberates-backend/internal/slug"
)

type testFields struct {
	Name  string
	Image string
}

type fakeOps struct {
	records   map[int64]Record[testFields]
	edits     []Edit[testFields]
	nextID    int64
	insertErr error
	updateErr error
}

func newFakeOps() *fakeOps {
	return &fakeOps{records: make(map[int64]Record[testFields])}
}

func (f *fakeOps) Find(_ context.Context, scope Scope, key string) (Record[testFields], error) {
	for _, rec := range f.records {
		if rec.Scope == scope && rec.Slug == key {
			return rec, nil
		}
	}
	return Record[testFields]{}, ErrNotFound
}

func (f *fakeOps) Get(_ context.Context, id int64) (Record[testFields], error) {
	rec, ok := f.records[id]
	if !ok {
		return Record[testFields]{}, ErrNotFound
	}
	return rec, nil
}

func (f *fakeOps) Insert(_ context.Context, scope Scope, key string, fields testFields, actor Actor) (Record[testFields], Edit[testFields], error) {
	if f.insertErr != nil {
		return Record[testFields]{}, Edit[testFields]{}, f.insertErr
	}
	f.nextID++
	rec := Record[testFields]{ID: f.nextID, Slug: key, Scope: scope, Fields: fields}
	f.records[rec.ID] = rec
	edit := f.appendEdit(rec.ID, fields, actor, true)
	return rec, edit, nil
}

func (f *fakeOps) Update(_ context.Context, target int64, key string, fields testFields, actor Actor) (Record[testFields], Edit[testFields], error) {
	if f.updateErr != nil {
		return Record[testFields]{}, Edit[testFields]{}, f.updateErr
	}
	rec, ok := f.records[target]
	if !ok {
		return Record[testFields]{}, Edit[testFields]{}, ErrNotFound
	}
	rec.Slug = key
	rec.Fields = fields
	f.records[target] = rec
	edit := f.appendEdit(target, fields, actor, false)
	return rec, edit, nil
}

func (f *fakeOps) appendEdit(target int64, fields testFields, actor Actor, initial bool) Edit[testFields] {
	f.nextID++
	edit := Edit[testFields]{
		ID:      f.nextID,
		Target:  target,
		Date:    time.Now(),
		Initial: initial,
		User:    UserRef{ID: actor.ID, Username: actor.Username, Slug: actor.Slug},
		Data:    fields,
	}
	f.edits = append(f.edits, edit)
	return edit
}

func (f *fakeOps) EditByID(_ context.Context, id int64) (Edit[testFields], error) {
	for _, e := range f.edits {
		if e.ID == id {
			return e, nil
		}
	}
	return Edit[testFields]{}, ErrNotFound
}

func (f *fakeOps) LastEditAt(_ context.Context, target, userID int64) (time.Time, bool, error) {
	var (
		latest time.Time
		found  bool
	)
	for _, e := range f.edits {
		if e.Target == target && e.User.ID == userID && e.Date.After(latest) {
			latest = e.Date
			found = true
		}
	}
	return latest, found, nil
}

func (f *fakeOps) History(_ context.Context, target int64, offset, limit int) ([]Edit[testFields], error) {
	var matched []Edit[testFields]
	for i := len(f.edits) - 1; i >= 0; i-- {
		if f.edits[i].Target == target {
			matched = append(matched, f.edits[i])
		}
	}
	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func testVariant() Variant[testFields] {
	return Variant[testFields]{
		Normalize: func(f testFields) testFields {
			f.Name = strings.TrimSpace(f.Name)
			return f
		},
		Validate: func(f testFields) []string {
			var msgs []string
			if f.Name == "" {
				msgs = append(msgs, "You must provide an artist name.")
			}
			if len(f.Name) > 256 {
				msgs = append(msgs, "Artist name cannot exceed 256 characters.")
			}
			return msgs
		},
		Slug: func(f testFields) string {
			return slug.Make(f.Name)
		},
		Equal: func(a, b testFields) bool {
			return a == b
		},
		Conflict: func(existing Record[testFields]) string {
			return fmt.Sprintf("The database already contains an artist called %s.", existing.Fields.Name)
		},
	}
}

func newTestManager() (*Manager[testFields], *fakeOps) {
	ops := newFakeOps()
	return NewManager[testFields](ops, testVariant()), ops
}

var alice = Actor{ID: 7, Username: "alice", Slug: "alice", Roles: []string{"user"}}

func TestRegisterCreatesEntityAndInitialEdit(t *testing.T) {
	m, ops := newTestManager()

	res, err := m.Register(context.Background(), testFields{Name: "  The Who "}, alice, Scope{})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !res.Created {
		t.Fatal("expected Created")
	}
	if res.Entity.Slug != "the-who" {
		t.Fatalf("unexpected slug %q", res.Entity.Slug)
	}
	if res.Entity.Fields.Name != "The Who" {
		t.Fatalf("expected trimmed name, got %q", res.Entity.Fields.Name)
	}

	if len(ops.edits) != 1 {
		t.Fatalf("expected exactly one ledger entry, got %d", len(ops.edits))
	}
	edit := ops.edits[0]
	if !edit.Initial {
		t.Fatal("expected initial ledger entry")
	}
	if edit.Target != res.Entity.ID {
		t.Fatalf("ledger target %d, want %d", edit.Target, res.Entity.ID)
	}
	if edit.Data != res.Entity.Fields {
		t.Fatalf("ledger snapshot %#v does not match entity %#v", edit.Data, res.Entity.Fields)
	}
}

func TestRegisterDuplicateReturnsConflict(t *testing.T) {
	m, ops := newTestManager()

	if _, err := m.Register(context.Background(), testFields{Name: "The Who"}, alice, Scope{}); err != nil {
		t.Fatalf("first Register: %v", err)
	}

	res, err := m.Register(context.Background(), testFields{Name: "The Who"}, alice, Scope{})
	if err != nil {
		t.Fatalf("second Register: %v", err)
	}
	if res.Created {
		t.Fatal("expected duplicate, not a creation")
	}
	if res.Existing == nil || res.Existing.Fields.Name != "The Who" {
		t.Fatalf("expected existing entity attached, got %#v", res.Existing)
	}
	if !strings.Contains(res.Message, "The Who") {
		t.Fatalf("conflict message should reference the existing name: %q", res.Message)
	}
	if len(ops.edits) != 1 {
		t.Fatalf("duplicate register must not append to the ledger, got %d entries", len(ops.edits))
	}
}

func TestRegisterReturnExistingPolicy(t *testing.T) {
	ops := newFakeOps()
	variant := testVariant()
	variant.ReturnExisting = true
	m := NewManager[testFields](ops, variant)

	first, err := m.Register(context.Background(), testFields{Name: "The Who"}, alice, Scope{})
	if err != nil {
		t.Fatalf("first Register: %v", err)
	}

	res, err := m.Register(context.Background(), testFields{Name: "The Who"}, alice, Scope{})
	if err != nil {
		t.Fatalf("second Register: %v", err)
	}
	if res.Created || res.Existing != nil {
		t.Fatalf("expected existing record handed back unchanged: %#v", res)
	}
	if res.Entity.ID != first.Entity.ID {
		t.Fatalf("expected entity %d, got %d", first.Entity.ID, res.Entity.ID)
	}
}

func TestRegisterCollectsAllValidationMessages(t *testing.T) {
	m, _ := newTestManager()

	variant := testVariant()
	variant.Validate = func(f testFields) []string {
		return []string{"first message", "second message"}
	}
	m.variant = variant

	_, err := m.Register(context.Background(), testFields{Name: "x"}, alice, Scope{})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Messages) != 2 || verr.Messages[0] != "first message" {
		t.Fatalf("unexpected messages: %#v", verr.Messages)
	}
	if verr.Error() != "first message" {
		t.Fatalf("primary message should lead: %q", verr.Error())
	}
}

// racingOps hides an existing record from the first Find so the insert
// runs and loses to the unique index, like a concurrent register would.
type racingOps struct {
	*fakeOps
	finds int
}

func (r *racingOps) Find(ctx context.Context, scope Scope, key string) (Record[testFields], error) {
	r.finds++
	if r.finds == 1 {
		return Record[testFields]{}, ErrNotFound
	}
	return r.fakeOps.Find(ctx, scope, key)
}

func TestRegisterFoldsLostRaceIntoDuplicate(t *testing.T) {
	ops := &racingOps{fakeOps: newFakeOps()}
	winner := Record[testFields]{ID: 99, Slug: "the-who", Fields: testFields{Name: "The Who"}}
	ops.records[winner.ID] = winner
	ops.insertErr = ErrDuplicate

	m := NewManager[testFields](ops, testVariant())

	res, err := m.Register(context.Background(), testFields{Name: "The Who"}, alice, Scope{})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if res.Created {
		t.Fatal("lost race must not report a creation")
	}
	if res.Existing == nil || res.Existing.ID != winner.ID {
		t.Fatalf("expected winner attached, got %#v", res.Existing)
	}
}

func TestEditNoOpLeavesLedgerUntouched(t *testing.T) {
	m, ops := newTestManager()

	reg, err := m.Register(context.Background(), testFields{Name: "The Who", Image: "who.jpg"}, alice, Scope{})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	res, err := m.Edit(context.Background(), testFields{Name: "The Who", Image: "who.jpg"}, alice, reg.Entity)
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if res.Changed {
		t.Fatal("identical payload must report changed:false")
	}
	if len(ops.edits) != 1 {
		t.Fatalf("no-op edit must not append to the ledger, got %d entries", len(ops.edits))
	}
}

func TestEditWritesSnapshotAndUpdatesEntity(t *testing.T) {
	m, ops := newTestManager()

	reg, err := m.Register(context.Background(), testFields{Name: "The Who"}, alice, Scope{})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	res, err := m.Edit(context.Background(), testFields{Name: "The Who Band"}, alice, reg.Entity)
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if !res.Changed {
		t.Fatal("expected changed:true")
	}
	if res.Entity.Slug != "the-who-band" {
		t.Fatalf("slug not re-derived: %q", res.Entity.Slug)
	}
	if len(ops.edits) != 2 {
		t.Fatalf("expected 2 ledger entries, got %d", len(ops.edits))
	}
	if ops.edits[1].Initial {
		t.Fatal("subsequent edits must not be initial")
	}
}

func TestEditRejectsNaturalKeyCollision(t *testing.T) {
	m, ops := newTestManager()

	if _, err := m.Register(context.Background(), testFields{Name: "The Who"}, alice, Scope{}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	second, err := m.Register(context.Background(), testFields{Name: "The Kinks"}, alice, Scope{})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	res, err := m.Edit(context.Background(), testFields{Name: "The Who"}, alice, second.Entity)
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if res.Changed || res.Existing == nil {
		t.Fatalf("expected collision result, got %#v", res)
	}
	if len(ops.edits) != 2 {
		t.Fatalf("rejected edit must not mutate anything, got %d entries", len(ops.edits))
	}
}

func TestRevertUnknownEdit(t *testing.T) {
	m, _ := newTestManager()

	_, err := m.Revert(context.Background(), 12345, alice)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRevertNoChanges(t *testing.T) {
	m, ops := newTestManager()

	reg, err := m.Register(context.Background(), testFields{Name: "The Who"}, alice, Scope{})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	// Back-date the initial edit so the cooldown does not interfere.
	ops.edits[0].Date = ops.edits[0].Date.Add(-2 * time.Minute)

	_, err = m.Revert(context.Background(), reg.Edit.ID, alice)
	if !errors.Is(err, ErrNoChanges) {
		t.Fatalf("expected ErrNoChanges, got %v", err)
	}
}

func TestRevertCooldownReportsRemainingSeconds(t *testing.T) {
	m, ops := newTestManager()

	reg, err := m.Register(context.Background(), testFields{Name: "The Who"}, alice, Scope{})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := m.Edit(context.Background(), testFields{Name: "The Who Band"}, alice, reg.Entity); err != nil {
		t.Fatalf("Edit: %v", err)
	}

	// The second edit happened 20 seconds before "now"; the initial one
	// is long outside the window.
	base := time.Now()
	ops.edits[0].Date = base.Add(-2 * time.Minute)
	ops.edits[1].Date = base.Add(-20 * time.Second)
	m.now = func() time.Time { return base }

	_, err = m.Revert(context.Background(), reg.Edit.ID, alice)
	var cerr *CooldownError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected CooldownError, got %v", err)
	}
	if cerr.Remaining != 40 {
		t.Fatalf("expected 40 seconds remaining, got %d", cerr.Remaining)
	}
	if !strings.Contains(cerr.Error(), "40 seconds") {
		t.Fatalf("unexpected message: %q", cerr.Error())
	}
}

func TestRevertCooldownSkippedForPrivilegedRoles(t *testing.T) {
	for _, role := range []string{"mod", "admin"} {
		role := role
		t.Run(role, func(t *testing.T) {
			m, ops := newTestManager()

			reg, err := m.Register(context.Background(), testFields{Name: "The Who"}, alice, Scope{})
			if err != nil {
				t.Fatalf("Register: %v", err)
			}
			if _, err := m.Edit(context.Background(), testFields{Name: "The Who Band"}, alice, reg.Entity); err != nil {
				t.Fatalf("Edit: %v", err)
			}
			_ = ops

			privileged := Actor{ID: 7, Username: "alice", Slug: "alice", Roles: []string{"user", role}}
			res, err := m.Revert(context.Background(), reg.Edit.ID, privileged)
			if err != nil {
				t.Fatalf("Revert as %s: %v", role, err)
			}
			if res.Entity.Fields.Name != "The Who" {
				t.Fatalf("revert did not restore fields: %#v", res.Entity.Fields)
			}
		})
	}
}

func TestRevertRoundTripRestoresOriginalState(t *testing.T) {
	m, ops := newTestManager()

	reg, err := m.Register(context.Background(), testFields{Name: "The Who", Image: "who.jpg"}, alice, Scope{})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := m.Edit(context.Background(), testFields{Name: "The Who Band", Image: "band.jpg"}, alice, reg.Entity); err != nil {
		t.Fatalf("Edit: %v", err)
	}

	// Clear the cooldown window.
	for i := range ops.edits {
		ops.edits[i].Date = ops.edits[i].Date.Add(-2 * time.Minute)
	}

	res, err := m.Revert(context.Background(), reg.Edit.ID, alice)
	if err != nil {
		t.Fatalf("Revert: %v", err)
	}
	if res.Entity.Fields != (testFields{Name: "The Who", Image: "who.jpg"}) {
		t.Fatalf("revert did not restore the snapshot: %#v", res.Entity.Fields)
	}
	if res.Entity.Slug != "the-who" {
		t.Fatalf("slug must be re-derived from the snapshot, got %q", res.Entity.Slug)
	}
	if res.Message != "Successfully reverted to previous data." {
		t.Fatalf("unexpected message: %q", res.Message)
	}
	if res.Edit.User.Username != "alice" {
		t.Fatalf("new ledger entry must carry the reverting user, got %#v", res.Edit.User)
	}
	if len(ops.edits) != 3 {
		t.Fatalf("expected 3 ledger entries after round trip, got %d", len(ops.edits))
	}
}

func TestHistoryPagination(t *testing.T) {
	m, _ := newTestManager()

	reg, err := m.Register(context.Background(), testFields{Name: "The Who"}, alice, Scope{})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	target := reg.Entity
	for _, name := range []string{"The Who Band", "The Who Trio"} {
		res, err := m.Edit(context.Background(), testFields{Name: name}, alice, target)
		if err != nil {
			t.Fatalf("Edit: %v", err)
		}
		target = res.Entity
	}

	page, err := m.History(context.Background(), target.ID, 0, 2)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(page.Edits) != 2 || !page.More {
		t.Fatalf("expected 2 edits with more=true, got %d more=%v", len(page.Edits), page.More)
	}

	page, err = m.History(context.Background(), target.ID, 2, 2)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(page.Edits) != 1 || page.More {
		t.Fatalf("expected final page of 1 edit, got %d more=%v", len(page.Edits), page.More)
	}
}
