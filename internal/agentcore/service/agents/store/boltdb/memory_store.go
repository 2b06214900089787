package boltdb

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/boltdb/bolt"
	"github.com/kiosk404/agentcore/internal/agentcore/service/agents/domain/entity"
	"github.com/kiosk404/agentcore/internal/agentcore/service/agents/store"
	"github.com/kiosk404/agentcore/pkg/utils/json"
)

// MemoryStore implements the MemoryRepository interface using BoltDB.
type MemoryStore struct {
	boltDB *bolt.DB
}

// NewMemoryStore creates a new MemoryStore instance.
func NewMemoryStore(boltDB *DB) *MemoryStore {
	return &MemoryStore{boltDB: boltDB.Bolt()}
}

func seqKey(n uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, n)
	return k
}

func (s *MemoryStore) Append(_ context.Context, turns ...*entity.ConversationTurn) error {
	if err := store.CheckTurns(turns); err != nil {
		return err
	}
	if len(turns) == 0 {
		return nil
	}
	return s.boltDB.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket(bucketTurns)
		actors := tx.Bucket(bucketActors)
		for _, t := range turns {
			b, err := root.CreateBucketIfNotExists([]byte(t.SessionID))
			if err != nil {
				return fmt.Errorf("failed to create session bucket %q: %w", t.SessionID, err)
			}
			seq, err := b.NextSequence()
			if err != nil {
				return err
			}
			data, err := json.Marshal(t)
			if err != nil {
				return fmt.Errorf("failed to marshal turn: %w", err)
			}
			if err := b.Put(seqKey(seq), data); err != nil {
				return err
			}
			if t.ActorID == "" {
				continue
			}
			ab, err := actors.CreateBucketIfNotExists([]byte(t.ActorID))
			if err != nil {
				return fmt.Errorf("failed to create actor bucket %q: %w", t.ActorID, err)
			}
			if err := ab.Put([]byte(t.SessionID), []byte{1}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *MemoryStore) List(_ context.Context, sessionID string) ([]*entity.ConversationTurn, error) {
	turns := make([]*entity.ConversationTurn, 0)
	err := s.boltDB.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTurns).Bucket([]byte(sessionID))
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var t entity.ConversationTurn
			if err := json.Unmarshal(v, &t); err != nil {
				return fmt.Errorf("failed to unmarshal turn: %w", err)
			}
			turns = append(turns, &t)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list turns of session %q: %w", sessionID, err)
	}
	store.SortTurns(turns)
	return turns, nil
}

func (s *MemoryStore) ListSessions(_ context.Context, actorID string) ([]*entity.SessionSummary, error) {
	out := make([]*entity.SessionSummary, 0)
	err := s.boltDB.View(func(tx *bolt.Tx) error {
		ab := tx.Bucket(bucketActors).Bucket([]byte(actorID))
		if ab == nil {
			return nil
		}
		root := tx.Bucket(bucketTurns)
		return ab.ForEach(func(k, _ []byte) error {
			b := root.Bucket(k)
			if b == nil {
				return nil
			}
			sum := &entity.SessionSummary{SessionID: string(k), ActorID: actorID}
			err := b.ForEach(func(_, v []byte) error {
				var t entity.ConversationTurn
				if err := json.Unmarshal(v, &t); err != nil {
					return fmt.Errorf("failed to unmarshal turn: %w", err)
				}
				sum.Turns++
				if t.CreatedAt.After(sum.UpdatedAt) {
					sum.UpdatedAt = t.CreatedAt
				}
				return nil
			})
			if err != nil {
				return err
			}
			if sum.Turns > 0 {
				out = append(out, sum)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions of actor %q: %w", actorID, err)
	}
	store.SortSessions(out)
	return out, nil
}

func (s *MemoryStore) Prune(_ context.Context, before time.Time) (int, error) {
	removed := 0
	err := s.boltDB.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket(bucketTurns)
		var names [][]byte
		err := root.ForEach(func(name, v []byte) error {
			if v == nil {
				names = append(names, append([]byte(nil), name...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		var emptied [][]byte
		for _, name := range names {
			n, empty, err := pruneSession(root.Bucket(name), before)
			if err != nil {
				return err
			}
			removed += n
			if empty {
				emptied = append(emptied, name)
			}
		}
		if len(emptied) == 0 {
			return nil
		}
		for _, name := range emptied {
			if err := root.DeleteBucket(name); err != nil {
				return err
			}
		}
		return pruneActorIndex(tx, emptied)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to prune turns: %w", err)
	}
	return removed, nil
}

// pruneSession deletes stale turns of one session bucket and reports whether
// nothing is left.
func pruneSession(b *bolt.Bucket, before time.Time) (int, bool, error) {
	var stale [][]byte
	total := 0
	err := b.ForEach(func(k, v []byte) error {
		total++
		var t entity.ConversationTurn
		if err := json.Unmarshal(v, &t); err != nil {
			return fmt.Errorf("failed to unmarshal turn: %w", err)
		}
		if t.CreatedAt.Before(before) {
			stale = append(stale, append([]byte(nil), k...))
		}
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	for _, k := range stale {
		if err := b.Delete(k); err != nil {
			return 0, false, err
		}
	}
	return len(stale), len(stale) == total, nil
}

func pruneActorIndex(tx *bolt.Tx, sessions [][]byte) error {
	actors := tx.Bucket(bucketActors)
	var names [][]byte
	err := actors.ForEach(func(name, v []byte) error {
		if v == nil {
			names = append(names, append([]byte(nil), name...))
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, name := range names {
		ab := actors.Bucket(name)
		for _, s := range sessions {
			if err := ab.Delete(s); err != nil {
				return err
			}
		}
		if k, _ := ab.Cursor().First(); k == nil {
			if err := actors.DeleteBucket(name); err != nil {
				return err
			}
		}
	}
	return nil
}
