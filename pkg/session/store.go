package session

import (
	"context"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/hearsaylabs/hearsay/pkg/fault"
	"github.com/hearsaylabs/hearsay/pkg/kv"
)

var sessionPrefix = kv.Key{"session"}

// segKey zero-pads the sequence number so the store's lexicographic key
// order is the numeric segment order.
func segKey(sessionID string, seq uint64) kv.Key {
	return sessionPrefix.Child(sessionID, "seg", fmt.Sprintf("%020d", seq))
}

// Store persists transcript segments in a kv.Store, ordered by sequence
// number within each session.
type Store struct {
	kv kv.Store
}

// NewStore creates a segment store.
func NewStore(kvs kv.Store) *Store {
	return &Store{kv: kvs}
}

// Append writes a segment. The caller owns sequence numbering.
func (s *Store) Append(ctx context.Context, seg *Segment) error {
	const op = "session.Append"
	data, err := msgpack.Marshal(seg)
	if err != nil {
		return fmt.Errorf("%s: encode segment: %w", op, err)
	}
	return s.kv.Set(ctx, segKey(seg.SessionID, seg.Seq), data)
}

// List returns all segments for a session in sequence order. A session with
// no segments yields an empty slice, not an error.
func (s *Store) List(ctx context.Context, sessionID string) ([]Segment, error) {
	const op = "session.List"
	if sessionID == "" {
		return nil, fault.Validation(op, "sessionId is required")
	}
	var segments []Segment
	for entry, err := range s.kv.List(ctx, sessionPrefix.Child(sessionID, "seg")) {
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		var seg Segment
		if err := msgpack.Unmarshal(entry.Value, &seg); err != nil {
			return nil, fmt.Errorf("%s: decode %s: %w", op, entry.Key, err)
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

// Purge deletes all stored segments for a session.
func (s *Store) Purge(ctx context.Context, sessionID string) error {
	const op = "session.Purge"
	if sessionID == "" {
		return fault.Validation(op, "sessionId is required")
	}
	return s.kv.DeletePrefix(ctx, sessionPrefix.Child(sessionID))
}
