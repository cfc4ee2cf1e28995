// Package credentials persists publishing profiles and the access info of
// media hosting backends in Pebble.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/cockroachdb/pebble"

	"postrelay/logger"
	"postrelay/models"
)

const (
	hostPrefix    = "host/"
	profilePrefix = "profile/"
)

// ErrNotFound is returned when no entry exists under a key.
var ErrNotFound = errors.New("credentials not found")

var db *pebble.DB

// OpenDB opens the Pebble DB for credentials at the specified path
func OpenDB(dbPath string) error {
	var err error
	db, err = pebble.Open(dbPath, &pebble.Options{})
	if err != nil {
		logger.Errorf("Failed to open Pebble DB: %v", err)
		return err
	}
	return nil
}

// CloseDB closes the DB
func CloseDB() error {
	if db != nil {
		err := db.Close()
		db = nil
		return err
	}
	return nil
}

func get(key string, out any) error {
	if db == nil {
		return fmt.Errorf("credentials store not initialized")
	}
	value, closer, err := db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	defer closer.Close()
	return json.Unmarshal(value, out)
}

func set(key string, v any) error {
	if db == nil {
		return fmt.Errorf("credentials store not initialized")
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return db.Set([]byte(key), encoded, pebble.Sync)
}

func del(key string) error {
	if db == nil {
		return fmt.Errorf("credentials store not initialized")
	}
	return db.Delete([]byte(key), pebble.Sync)
}

// GetCredentials returns the access info map of a hosting backend, e.g.
// bucket, region and keys for s3.
func GetCredentials(key string) (map[string]string, error) {
	creds := make(map[string]string)
	if err := get(hostPrefix+key, &creds); err != nil {
		return nil, err
	}
	return creds, nil
}

// StoreCredentials stores the credentials map under the given key
func StoreCredentials(key string, creds map[string]string) error {
	return set(hostPrefix+key, creds)
}

// DeleteCredentials deletes the credentials for the given key
func DeleteCredentials(key string) error {
	return del(hostPrefix + key)
}

// StoreProfile validates and stores a profile, replacing any previous one
// with the same name.
func StoreProfile(p models.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return set(profilePrefix+p.Name, p)
}

func GetProfile(name string) (models.Profile, error) {
	var p models.Profile
	err := get(profilePrefix+name, &p)
	return p, err
}

func DeleteProfile(name string) error {
	return del(profilePrefix + name)
}

// ListProfiles returns the stored profile names in order.
func ListProfiles() ([]string, error) {
	if db == nil {
		return nil, fmt.Errorf("credentials store not initialized")
	}
	iter, err := db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(profilePrefix),
		UpperBound: []byte("profile0"),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var names []string
	for iter.First(); iter.Valid(); iter.Next() {
		names = append(names, string(iter.Key()[len(profilePrefix):]))
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}
