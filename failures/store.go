package failures

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	pebble "github.com/cockroachdb/pebble"

	"postrelay/models"
)

// Stage names the part of the pipeline a delivery died in.
const (
	StageWebhook = "webhook"
	StagePrepare = "prepare"
	StagePublish = "publish"
)

// FailureRecord is a dead-lettered webhook delivery
type FailureRecord struct {
	ID        string                 `json:"id"` // queue item id
	Timestamp time.Time              `json:"timestamp"`
	Profile   string                 `json:"profile"`
	PostID    int64                  `json:"post_id,omitempty"`
	Stage     string                 `json:"stage"`
	Error     string                 `json:"error"`
	Attempts  int                    `json:"attempts"`
	Outcome   *models.PublishOutcome `json:"outcome,omitempty"`
	Payload   json.RawMessage        `json:"payload,omitempty"` // original webhook body
}

var db *pebble.DB

// Init initializes the failure store
func Init(dbPath string) error {
	var err error
	db, err = pebble.Open(dbPath, &pebble.Options{})
	if err != nil {
		return fmt.Errorf("failed to open failure store: %w", err)
	}
	return nil
}

// Close closes the failure store
func Close() error {
	if db != nil {
		err := db.Close()
		db = nil
		return err
	}
	return nil
}

// StoreFailure dead-letters a delivery under its queue item id
func StoreFailure(record FailureRecord) error {
	if db == nil {
		return fmt.Errorf("failure store not initialized")
	}
	if record.ID == "" {
		return fmt.Errorf("failure record needs an id")
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal failure record: %w", err)
	}
	return db.Set([]byte(record.ID), data, pebble.Sync)
}

// GetFailure retrieves a failure record by id. A missing record is (nil, nil).
func GetFailure(id string) (*FailureRecord, error) {
	if db == nil {
		return nil, fmt.Errorf("failure store not initialized")
	}

	data, closer, err := db.Get([]byte(id))
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get failure: %w", err)
	}
	defer closer.Close()

	var record FailureRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal failure record: %w", err)
	}
	return &record, nil
}

// DeleteFailure removes a failure record
func DeleteFailure(id string) error {
	if db == nil {
		return fmt.Errorf("failure store not initialized")
	}
	return db.Delete([]byte(id), pebble.Sync)
}

// ListFailures returns all failure records, newest first
func ListFailures() ([]FailureRecord, error) {
	if db == nil {
		return nil, fmt.Errorf("failure store not initialized")
	}

	var records []FailureRecord
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		var record FailureRecord
		if err := json.Unmarshal(iter.Value(), &record); err != nil {
			continue // Skip invalid records
		}
		records = append(records, record)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iteration error: %w", err)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Timestamp.After(records[j].Timestamp) })
	return records, nil
}

// CleanupOldRecords removes failure records older than maxAge
func CleanupOldRecords(maxAge time.Duration) (int, error) {
	if db == nil {
		return 0, fmt.Errorf("failure store not initialized")
	}

	cutoff := time.Now().Add(-maxAge)
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return 0, err
	}

	var keysToDelete [][]byte
	for iter.First(); iter.Valid(); iter.Next() {
		var record FailureRecord
		if err := json.Unmarshal(iter.Value(), &record); err != nil {
			continue
		}
		if record.Timestamp.Before(cutoff) {
			key := make([]byte, len(iter.Key()))
			copy(key, iter.Key())
			keysToDelete = append(keysToDelete, key)
		}
	}
	iter.Close()

	for _, key := range keysToDelete {
		if err := db.Delete(key, pebble.Sync); err != nil {
			return 0, fmt.Errorf("failed to delete old failure record: %w", err)
		}
	}
	return len(keysToDelete), nil
}
