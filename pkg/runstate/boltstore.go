// Package runstate persists the outcome of the last distribution run per
// target, so an operator can re-run only the repositories that failed.
package runstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const runsBucket = "runs"

// Record is what gets stored per {org, platform} target.
type Record struct {
	FailedRepos []string  `json:"failedRepos"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Store keeps run records in a local bbolt file.
type Store struct {
	db *bbolt.DB
}

// DefaultPath returns ~/.platformctl/state.db, creating the directory.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	dir := filepath.Join(home, ".platformctl")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create state directory: %w", err)
	}
	return filepath.Join(dir, "state.db"), nil
}

// Open opens (or creates) the store at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(runsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// targetKey identifies one distribution target.
func targetKey(org, platformURL string) []byte {
	return []byte(org + "|" + platformURL)
}

// RecordFailures saves the failed repository list for a target. An empty
// list clears the record (the run fully succeeded).
func (s *Store) RecordFailures(org, platformURL string, failed []string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(runsBucket))
		if len(failed) == 0 {
			return bucket.Delete(targetKey(org, platformURL))
		}
		data, err := json.Marshal(Record{FailedRepos: failed, UpdatedAt: time.Now().UTC()})
		if err != nil {
			return err
		}
		return bucket.Put(targetKey(org, platformURL), data)
	})
}

// FailedRepos returns the repositories the previous run left failed, or nil
// when the last run succeeded (or no run is recorded).
func (s *Store) FailedRepos(org, platformURL string) ([]string, error) {
	var rec Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(runsBucket)).Get(targetKey(org, platformURL))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}
	return rec.FailedRepos, nil
}
