package activity

import (
	"context"
	"errors"
	"slices"
	"sync"
)

var (
	// ErrParentConflict is returned by Store.AppendNext when another writer
	// appended first and the new entry's parent is no longer the latest.
	ErrParentConflict = errors.New("activity: parent checksum already taken")

	// ErrNotFound is returned when an entry id does not exist.
	ErrNotFound = errors.New("activity: entry not found")
)

// BuildFunc builds the next entry given the current latest one (nil when the
// log is empty). It runs inside the store's append critical section.
type BuildFunc func(latest *Entry) (*Entry, error)

// Store is append-only persistence for entries.
type Store interface {
	// AppendNext reads the latest entry, builds the next one from it and
	// inserts it, atomically. The returned entry carries its assigned id.
	AppendNext(ctx context.Context, build BuildFunc) (*Entry, error)

	// Latest returns the entry with the highest id, or nil, nil when empty.
	Latest(ctx context.Context) (*Entry, error)

	// Entry returns one entry by id, or ErrNotFound.
	Entry(ctx context.Context, id int64) (*Entry, error)

	// EntryBefore returns the entry with the highest id below id, or nil, nil.
	EntryBefore(ctx context.Context, id int64) (*Entry, error)

	// Entries returns entries with fromID <= id <= toID in ascending id
	// order. A toID of 0 means no upper bound.
	Entries(ctx context.Context, fromID, toID int64) ([]Entry, error)
}

// MemoryStore keeps entries in memory. It is used for dry runs and tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries []Entry
	nextID  int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

func (m *MemoryStore) AppendNext(ctx context.Context, build BuildFunc) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var latest *Entry
	if n := len(m.entries); n > 0 {
		cp := cloneEntry(m.entries[n-1])
		latest = &cp
	}

	e, err := build(latest)
	if err != nil {
		return nil, err
	}
	for _, existing := range m.entries {
		if string(existing.ParentChecksum) == string(e.ParentChecksum) {
			return nil, ErrParentConflict
		}
	}

	stored := cloneEntry(*e)
	stored.ID = m.nextID
	m.nextID++
	m.entries = append(m.entries, stored)

	out := cloneEntry(stored)
	return &out, nil
}

func (m *MemoryStore) Latest(context.Context) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) == 0 {
		return nil, nil
	}
	e := cloneEntry(m.entries[len(m.entries)-1])
	return &e, nil
}

func (m *MemoryStore) Entry(_ context.Context, id int64) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.ID == id {
			cp := cloneEntry(e)
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) EntryBefore(_ context.Context, id int64) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].ID < id {
			cp := cloneEntry(m.entries[i])
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) Entries(_ context.Context, fromID, toID int64) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Entry{}
	for _, e := range m.entries {
		if e.ID >= fromID && (toID == 0 || e.ID <= toID) {
			out = append(out, cloneEntry(e))
		}
	}
	return out, nil
}

// Tamper overwrites a stored entry in place. It exists so tests can check
// that verification notices; the log itself never rewrites entries.
func (m *MemoryStore) Tamper(id int64, mutate func(*Entry)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.entries {
		if m.entries[i].ID == id {
			mutate(&m.entries[i])
			return true
		}
	}
	return false
}

func cloneEntry(e Entry) Entry {
	e.Checksum = slices.Clone(e.Checksum)
	e.ParentChecksum = slices.Clone(e.ParentChecksum)
	return e
}
