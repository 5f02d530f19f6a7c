// Package eventcache caches fetched admin event pages in a local
// Badger store so that repeated runs within an operator session do not
// re-pull the full audit log. Entries are keyed by the exact query
// (window plus event-type set) and expire on their own; the cache is
// transient, deletable state, not a persistence layer for engine
// results.
package eventcache

import (
	"bytes"
	"encoding/gob"
	"errors"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/jamesainslie/rewind/pkg/rewind/types"
)

// DefaultTTL is how long a cached event list stays valid. The audit
// window of an incident is fixed, but late-arriving log entries make a
// short lifetime safer than an unbounded one.
const DefaultTTL = time.Hour

// ErrNotFound is returned when no cached entry matches the query.
var ErrNotFound = errors.New("event cache entry not found")

// Store wraps Badger for event list caching.
type Store struct {
	db  *badger.DB
	ttl time.Duration
}

// Open opens or creates an event cache at the given path. ttl <= 0 uses
// DefaultTTL.
func Open(path string, ttl time.Duration) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Disable badger logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{db: db, ttl: ttl}, nil
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

// Key builds the cache key for a query: window bounds plus the
// event-type set, all of which change the result set.
func Key(start, end time.Time, eventTypes []types.EventType) []byte {
	names := make([]string, len(eventTypes))
	for i, et := range eventTypes {
		names[i] = string(et)
	}
	return []byte(start.UTC().Format(time.RFC3339) + "\x00" +
		end.UTC().Format(time.RFC3339) + "\x00" +
		strings.Join(names, ","))
}

// Get retrieves the cached event list for a query.
func (s *Store) Get(start, end time.Time, eventTypes []types.EventType) ([]types.Event, error) {
	var events []types.Event

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(Key(start, end, eventTypes))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return gob.NewDecoder(bytes.NewReader(val)).Decode(&events)
		})
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// Put stores the event list for a query, with the store's TTL.
func (s *Store) Put(start, end time.Time, eventTypes []types.EventType, events []types.Event) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(events); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(Key(start, end, eventTypes), buf.Bytes()).WithTTL(s.ttl)
		return txn.SetEntry(entry)
	})
}

// Purge drops every cached entry.
func (s *Store) Purge() error {
	return s.db.DropAll()
}
