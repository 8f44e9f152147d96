// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package record

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Sentinel errors for record lookups.
var (
	// ErrNotFound indicates no record exists for the application ID.
	ErrNotFound = errors.New("application not found")

	// ErrCorrupt indicates the stored payload could not be parsed.
	ErrCorrupt = errors.New("stored application payload is corrupt")
)

// DecisionApproved is the favorable decision label counted by the
// fairness metrics.
const DecisionApproved = "approved"

// groupKey is the feature key holding the protected group attribute.
const groupKey = "group"

// applicationPrefix namespaces application records in the key space.
const applicationPrefix = "app:"

// storedApplication is the on-disk JSON shape of one application.
//
// Decision is nil until the external decisioning process writes it;
// this core never sets it on ingest.
type storedApplication struct {
	Features map[string]any `json:"features"`
	Decision *string        `json:"decision"`
}

// Store is the application record store backed by BadgerDB.
//
// Thread Safety: Store is safe for concurrent use. Conflicting writes to
// the same application ID are serialized by Badger transactions.
type Store struct {
	db     *badger.DB
	gcStop chan struct{}
}

// Open opens the record store with the given configuration.
//
// The caller must call Close() when done. If cfg.GCInterval is positive,
// a background goroutine runs value log garbage collection until Close.
func Open(cfg Config) (*Store, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db, gcStop: make(chan struct{})}
	if cfg.GCInterval > 0 {
		go s.runGC(cfg.GCInterval)
	}
	return s, nil
}

// Close stops background GC and closes the underlying database.
func (s *Store) Close() error {
	close(s.gcStop)
	return s.db.Close()
}

func (s *Store) runGC(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.gcStop:
			return
		case <-ticker.C:
			// Badger returns ErrNoRewrite when there is nothing to
			// collect; that is not a failure.
			_ = s.db.RunValueLogGC(0.5)
		}
	}
}

// InsertIfAbsent stores a new application record unless one already
// exists for the ID.
//
// The lookup and write happen in one transaction, so a duplicate-ID race
// between concurrent inserts resolves to exactly one durable record.
// A duplicate is reported as inserted=false, never as an error: the
// first write wins and the stored record is left untouched.
func (s *Store) InsertIfAbsent(ctx context.Context, applicationID string, features map[string]any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if applicationID == "" {
		return false, errors.New("application id must not be empty")
	}

	key := []byte(applicationPrefix + applicationID)

	for {
		inserted := false
		err := s.db.Update(func(txn *badger.Txn) error {
			_, err := txn.Get(key)
			if err == nil {
				return nil // already present, no-op
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}

			payload, err := json.Marshal(storedApplication{Features: features})
			if err != nil {
				return fmt.Errorf("encode application %s: %w", applicationID, err)
			}
			if err := txn.Set(key, payload); err != nil {
				return err
			}
			inserted = true
			return nil
		})
		if errors.Is(err, badger.ErrConflict) {
			// Lost a race on this key; re-run and observe the winner.
			continue
		}
		if err != nil {
			return false, fmt.Errorf("insert application %s: %w", applicationID, err)
		}
		return inserted, nil
	}
}

// GetFeatures returns the stored feature map for an application.
//
// Returns ErrNotFound if no record exists and ErrCorrupt if the stored
// payload cannot be parsed as JSON.
func (s *Store) GetFeatures(ctx context.Context, applicationID string) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rec storedApplication
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(applicationPrefix + applicationID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &rec); err != nil {
				return fmt.Errorf("%w: %v", ErrCorrupt, err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return rec.Features, nil
}

// SetDecision records the decision label for an existing application.
//
// This is the write path for the external decisioning process; the
// ingest path never sets a decision. Returns ErrNotFound if the
// application does not exist.
func (s *Store) SetDecision(ctx context.Context, applicationID, decision string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := []byte(applicationPrefix + applicationID)
	for {
		err := s.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(key)
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			if err != nil {
				return err
			}

			var rec storedApplication
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("%w: %v", ErrCorrupt, err)
			}

			rec.Decision = &decision
			payload, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			return txn.Set(key, payload)
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		return err
	}
}

// CountByGroup returns the number of applications whose "group" feature
// equals the given value.
//
// Records with unparsable payloads or a non-string group attribute are
// skipped: a missing or malformed group never compares equal.
func (s *Store) CountByGroup(ctx context.Context, group string) (int, error) {
	return s.countGroup(ctx, group, false)
}

// CountApprovedByGroup returns the number of approved applications whose
// "group" feature equals the given value.
func (s *Store) CountApprovedByGroup(ctx context.Context, group string) (int, error) {
	return s.countGroup(ctx, group, true)
}

func (s *Store) countGroup(ctx context.Context, group string, approvedOnly bool) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(applicationPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(opts.Prefix); it.Next() {
			var rec storedApplication
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				continue
			}

			g, ok := rec.Features[groupKey].(string)
			if !ok || g != group {
				continue
			}
			if approvedOnly && (rec.Decision == nil || *rec.Decision != DecisionApproved) {
				continue
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan applications by group %q: %w", group, err)
	}
	return count, nil
}
