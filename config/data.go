package config

import (
	"os"
	"path/filepath"
)

// DATA_DIR is the directory where postrelay stores its data (queue, ledgers, etc.)
// Defaults to "./data" relative to the executable
var DATA_DIR = getDataDir()

// getDataDir determines the data directory path from environment or default.
// Priority: POSTRELAY_DATA_DIR environment variable > "./data" default
func getDataDir() string {
	if dir := os.Getenv("POSTRELAY_DATA_DIR"); dir != "" {
		return dir
	}
	return "./data"
}

// GetDataDir returns the current data directory path.
// The environment is checked on every call so a --data-dir flag applied
// after package initialization is honored.
func GetDataDir() string {
	return getDataDir()
}

// GetQueueDBPath returns the full path to the durable webhook queue.
// Path: {DATA_DIR}/queue.db
func GetQueueDBPath() string {
	return filepath.Join(GetDataDir(), "queue.db")
}

// GetCredentialsDBPath returns the full path to the credentials database.
// It stores registered profiles and storage-backend access info.
// Path: {DATA_DIR}/credentials.db
func GetCredentialsDBPath() string {
	return filepath.Join(GetDataDir(), "credentials.db")
}

// GetFailuresDBPath returns the full path to the failures database.
// The failures database is the dead-letter store for webhooks that could not be published.
// Path: {DATA_DIR}/failures.db
func GetFailuresDBPath() string {
	return filepath.Join(GetDataDir(), "failures.db")
}

// GetSuccessDBPath returns the full path to the success database.
// Path: {DATA_DIR}/success.db
func GetSuccessDBPath() string {
	return filepath.Join(GetDataDir(), "success.db")
}

// GetDirectServeBaseDir returns the base directory for direct file serving.
// Media hosted with the directServe backend is written here and served
// under /media/ by the HTTP server.
// Configurable via POSTRELAY_SERVE_DIR; defaults to "./serve".
func GetDirectServeBaseDir() string {
	if dir := os.Getenv("POSTRELAY_SERVE_DIR"); dir != "" {
		return dir
	}
	return "./serve"
}
