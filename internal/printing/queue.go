package printing

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const keyPrefix = "job/"

func jobKey(id string) []byte {
	return []byte(keyPrefix + id)
}

// Queue stores print queue entries in BadgerDB. It is safe for concurrent
// use.
type Queue struct {
	db *badger.DB
}

// OpenQueue opens the queue stored in dir, creating it if needed. An empty
// dir keeps the queue in memory.
func OpenQueue(dir string) (*Queue, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("printing: open queue at %q: %w", dir, err)
	}
	return &Queue{db: db}, nil
}

// Close closes the underlying database.
func (q *Queue) Close() error {
	return q.db.Close()
}

// Put stores e, replacing any entry with the same ID.
func (q *Queue) Put(e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("printing: encode %s: %w", e.ID, err)
	}
	return q.db.Update(func(txn *badger.Txn) error {
		return txn.Set(jobKey(e.ID), data)
	})
}

// Get returns the entry with the given ID.
func (q *Queue) Get(id string) (Entry, error) {
	var e Entry
	err := q.db.View(func(txn *badger.Txn) error {
		var err error
		e, err = getEntry(txn, id)
		return err
	})
	return e, err
}

// Update applies fn to the stored entry and writes the result back in one
// transaction.
func (q *Queue) Update(id string, fn func(*Entry) error) (Entry, error) {
	var e Entry
	err := q.db.Update(func(txn *badger.Txn) error {
		var err error
		e, err = getEntry(txn, id)
		if err != nil {
			return err
		}
		if err := fn(&e); err != nil {
			return err
		}
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("printing: encode %s: %w", id, err)
		}
		return txn.Set(jobKey(id), data)
	})
	return e, err
}

// List returns every entry ordered by submission time.
func (q *Queue) List() ([]Entry, error) {
	entries := []Entry{}
	err := q.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var e Entry
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return fmt.Errorf("printing: decode %s: %w", item.Key(), err)
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(entries, func(a, b Entry) int {
		return a.SubmittedAt.Compare(b.SubmittedAt)
	})
	return entries, nil
}

// Prune deletes finished entries that ended before cutoff and returns how
// many were removed.
func (q *Queue) Prune(cutoff time.Time) (int, error) {
	entries, err := q.List()
	if err != nil {
		return 0, err
	}
	removed := 0
	err = q.db.Update(func(txn *badger.Txn) error {
		for _, e := range entries {
			if !e.Status.Finished() || !e.FinishedAt.Before(cutoff) {
				continue
			}
			if err := txn.Delete(jobKey(e.ID)); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("printing: prune: %w", err)
	}
	return removed, nil
}

// failInterrupted marks entries left pending or printing by a previous run
// as failed. Their passwords were never stored, so they cannot be resumed.
func (q *Queue) failInterrupted(now time.Time) (int, error) {
	entries, err := q.List()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if e.Status.Finished() {
			continue
		}
		if _, err := q.Update(e.ID, func(e *Entry) error {
			e.Status = StatusFailed
			e.Error = "interrupted by server restart"
			e.FinishedAt = now
			return nil
		}); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func getEntry(txn *badger.Txn, id string) (Entry, error) {
	item, err := txn.Get(jobKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("printing: get %s: %w", id, err)
	}
	var e Entry
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &e)
	})
	if err != nil {
		return Entry{}, fmt.Errorf("printing: decode %s: %w", id, err)
	}
	return e, nil
}
