// Package clientkv implements the always-on client snapshot store
// (spec.md §4.7): a small embedded key-value layer holding each
// account's session/device/channel-membership/nick state independent
// of any live connection, so a bouncer-style ClientManager
// (internal/bouncer) can reattach a client after every session
// detaches without losing state.
//
// Grounded on github.com/tidwall/buntdb, named directly in
// SPEC_FULL.md's domain stack table as the real dependency oragono
// (a production IRCd retrieved alongside this pack) uses for the same
// always-on-client snapshot role.
package clientkv

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/buntdb"
)

// Snapshot is one account's always-on state.
type Snapshot struct {
	Account     string   `json:"account"`
	Nick        string   `json:"nick"`
	Channels    []string `json:"channels"`
	Devices     []string `json:"devices"`
	LastWriteNs int64    `json:"last_write_ns"`
}

// Store wraps a buntdb database of account snapshots.
type Store struct {
	db *buntdb.DB
}

// Open opens (creating if necessary) the buntdb file at path. Use
// ":memory:" for an ephemeral, non-persisted store.
func Open(path string) (*Store, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("clientkv: open: %w", err)
	}
	return &Store{db: db}, nil
}

// Close flushes and closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func key(account string) string {
	return "client:" + strings.ToLower(account)
}

// Save writes (or overwrites) an account's snapshot.
func (s *Store) Save(snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key(snap.Account), string(data), nil)
		return err
	})
}

// Load reads an account's snapshot, returning ok=false if none exists.
func (s *Store) Load(account string) (snap Snapshot, ok bool, err error) {
	err = s.db.View(func(tx *buntdb.Tx) error {
		val, getErr := tx.Get(key(account))
		if getErr == buntdb.ErrNotFound {
			return nil
		}
		if getErr != nil {
			return getErr
		}
		ok = true
		return json.Unmarshal([]byte(val), &snap)
	})
	return snap, ok, err
}

// Delete removes an account's snapshot, used when always-on is
// disabled and the client fully detaches ("Destroyed" per spec.md's
// ClientManager Detach result).
func (s *Store) Delete(account string) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(key(account))
		if err == buntdb.ErrNotFound {
			return nil
		}
		return err
	})
}

// All returns every stored snapshot, used to rehydrate ClientManager
// on startup.
func (s *Store) All() ([]Snapshot, error) {
	var out []Snapshot
	err := s.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys("client:*", func(k, v string) bool {
			var snap Snapshot
			if jsonErr := json.Unmarshal([]byte(v), &snap); jsonErr == nil {
				out = append(out, snap)
			}
			return true
		})
	})
	return out, err
}
