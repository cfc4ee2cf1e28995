package success

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	pebble "github.com/cockroachdb/pebble"

	"postrelay/models"
)

// SuccessRecord is the ledger entry of a delivery that published to at
// least one platform
type SuccessRecord struct {
	ID        string                `json:"id"` // queue item id
	Timestamp time.Time             `json:"timestamp"`
	Profile   string                `json:"profile"`
	PostID    int64                 `json:"post_id"`
	MediaURL  string                `json:"media_url"`
	Outcome   models.PublishOutcome `json:"outcome"`
}

// Published lists the platforms that accepted the post
func (r SuccessRecord) Published() []string {
	var names []string
	for name, res := range r.Outcome.PerPlatform {
		if res.Success {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

var db *pebble.DB

// Init initializes the success store
func Init(dbPath string) error {
	var err error
	db, err = pebble.Open(dbPath, &pebble.Options{})
	if err != nil {
		return fmt.Errorf("failed to open success store: %w", err)
	}
	return nil
}

// Close closes the success store
func Close() error {
	if db != nil {
		err := db.Close()
		db = nil
		return err
	}
	return nil
}

// StoreSuccess records a delivery under its queue item id
func StoreSuccess(record SuccessRecord) error {
	if db == nil {
		return fmt.Errorf("success store not initialized")
	}
	if record.ID == "" {
		return fmt.Errorf("success record needs an id")
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal success record: %w", err)
	}
	return db.Set([]byte(record.ID), data, pebble.Sync)
}

// GetSuccess retrieves a success record by id. A missing record is (nil, nil).
func GetSuccess(id string) (*SuccessRecord, error) {
	if db == nil {
		return nil, fmt.Errorf("success store not initialized")
	}

	data, closer, err := db.Get([]byte(id))
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get success record: %w", err)
	}
	defer closer.Close()

	var record SuccessRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal success record: %w", err)
	}
	return &record, nil
}

// DeleteSuccess removes a success record
func DeleteSuccess(id string) error {
	if db == nil {
		return fmt.Errorf("success store not initialized")
	}
	return db.Delete([]byte(id), pebble.Sync)
}

// ListSuccessRecords returns all success records, newest first
func ListSuccessRecords() ([]SuccessRecord, error) {
	if db == nil {
		return nil, fmt.Errorf("success store not initialized")
	}

	var records []SuccessRecord
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		var record SuccessRecord
		if err := json.Unmarshal(iter.Value(), &record); err != nil {
			continue // Skip invalid records
		}
		records = append(records, record)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Timestamp.After(records[j].Timestamp) })
	return records, nil
}

// CleanupOldRecords removes success records older than maxAge
func CleanupOldRecords(maxAge time.Duration) (int, error) {
	if db == nil {
		return 0, fmt.Errorf("success store not initialized")
	}

	cutoff := time.Now().Add(-maxAge)
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return 0, err
	}

	var keysToDelete [][]byte
	for iter.First(); iter.Valid(); iter.Next() {
		var record SuccessRecord
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
			return 0, fmt.Errorf("failed to delete old success record: %w", err)
		}
	}
	return len(keysToDelete), nil
}
