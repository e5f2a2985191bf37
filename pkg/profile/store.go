package profile

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/hearsaylabs/hearsay/pkg/fault"
	"github.com/hearsaylabs/hearsay/pkg/kv"
)

// profilePrefix is the kv namespace for profile records:
// profile/{userId} → msgpack-encoded Profile.
var profilePrefix = kv.Key{"profile"}

// Store persists Profile records. Reads run concurrently; writes for the
// same user are serialized by the caller holding the per-user lock (see
// LockUser), which preserves the at-most-one-live-profile invariant.
type Store struct {
	kv kv.Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates a Store on top of the given kv store.
func NewStore(store kv.Store) *Store {
	return &Store{kv: store, locks: make(map[string]*sync.Mutex)}
}

// LockUser acquires the write lock for a user and returns the unlock
// function. Writes for different users proceed independently.
func (s *Store) LockUser(userID string) func() {
	s.mu.Lock()
	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Get returns the profile for a user, or a not-found fault.
func (s *Store) Get(ctx context.Context, userID string) (*Profile, error) {
	data, err := s.kv.Get(ctx, profilePrefix.Child(userID))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, fault.NotFound("profile.Get", "no profile for user %q", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("profile: get %s: %w", userID, err)
	}
	var p Profile
	if err := msgpack.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("profile: decode %s: %w", userID, err)
	}
	return &p, nil
}

// Put stores a profile record, overwriting any previous one.
func (s *Store) Put(ctx context.Context, p *Profile) error {
	data, err := msgpack.Marshal(p)
	if err != nil {
		return fmt.Errorf("profile: encode %s: %w", p.UserID, err)
	}
	if err := s.kv.Set(ctx, profilePrefix.Child(p.UserID), data); err != nil {
		return fmt.Errorf("profile: put %s: %w", p.UserID, err)
	}
	return nil
}

// Delete removes a profile record. Deleting a missing record is a no-op.
func (s *Store) Delete(ctx context.Context, userID string) error {
	if err := s.kv.Delete(ctx, profilePrefix.Child(userID)); err != nil {
		return fmt.Errorf("profile: delete %s: %w", userID, err)
	}
	return nil
}

// List returns all profile records ordered by user id.
func (s *Store) List(ctx context.Context) ([]*Profile, error) {
	var out []*Profile
	for entry, err := range s.kv.List(ctx, profilePrefix) {
		if err != nil {
			return nil, fmt.Errorf("profile: list: %w", err)
		}
		var p Profile
		if err := msgpack.Unmarshal(entry.Value, &p); err != nil {
			return nil, fmt.Errorf("profile: decode %s: %w", entry.Key, err)
		}
		out = append(out, &p)
	}
	return out, nil
}

// ListEnrolled returns profiles in the enrolled state, ordered by user id.
func (s *Store) ListEnrolled(ctx context.Context) ([]*Profile, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, p := range all {
		if p.Status == StatusEnrolled {
			out = append(out, p)
		}
	}
	return out, nil
}
