package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"postrelay/credentials"
	"postrelay/logger"
	"postrelay/models"
	"postrelay/utils"
)

// RegisterProfileHandler creates or replaces a publishing profile
func (a *App) RegisterProfileHandler(w http.ResponseWriter, r *http.Request) {
	var p models.Profile
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if p.Name == a.Settings.DefaultProfile.Name {
		http.Error(w, "The default profile is configured through the environment", http.StatusConflict)
		return
	}
	if err := p.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := credentials.StoreProfile(p); err != nil {
		logger.Errorf("Failed to store profile %s: %v", p.Name, err)
		http.Error(w, "Failed to store profile", http.StatusInternalServerError)
		return
	}

	logger.Infof("Registered profile %s", p.Name)
	writeJSON(w, http.StatusCreated, map[string]string{
		"name":    p.Name,
		"webhook": "/webhook/" + p.Name,
	})
}

// ListProfilesHandler lists registered profile names
func (a *App) ListProfilesHandler(w http.ResponseWriter, r *http.Request) {
	names, err := credentials.ListProfiles()
	if err != nil {
		logger.Errorf("Failed to list profiles: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"default":  a.Settings.DefaultProfile.Name,
		"profiles": names,
	})
}

// DeleteProfileHandler removes a stored profile. Webhooks already queued for
// it fail at lookup and are dead-lettered.
func (a *App) DeleteProfileHandler(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == a.Settings.DefaultProfile.Name {
		http.Error(w, "The default profile is configured through the environment", http.StatusConflict)
		return
	}
	if _, err := credentials.GetProfile(name); err != nil {
		if errors.Is(err, credentials.ErrNotFound) {
			http.Error(w, "Profile not found", http.StatusNotFound)
			return
		}
		logger.Errorf("Failed to load profile %s: %v", name, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if err := credentials.DeleteProfile(name); err != nil {
		logger.Errorf("Failed to delete profile %s: %v", name, err)
		http.Error(w, "Failed to delete profile", http.StatusInternalServerError)
		return
	}
	logger.Infof("Deleted profile %s", name)
	w.WriteHeader(http.StatusNoContent)
}

// RegisterCredentialsHandler stores storage-backend access info under a
// generated key, to be referenced as a profile's host_storage_key
func (a *App) RegisterCredentialsHandler(w http.ResponseWriter, r *http.Request) {
	creds := make(map[string]string)
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(creds) == 0 {
		http.Error(w, "Empty credentials", http.StatusBadRequest)
		return
	}

	key, err := utils.GenerateRandomHex(16)
	if err != nil {
		http.Error(w, "Failed to generate key", http.StatusInternalServerError)
		return
	}
	if err := credentials.StoreCredentials(key, creds); err != nil {
		logger.Errorf("Failed to store credentials: %v", err)
		http.Error(w, "Failed to store credentials", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"access_key": key})
}

// DeleteCredentialsHandler drops the access info stored under a key
func DeleteCredentialsHandler(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if _, err := credentials.GetCredentials(key); err != nil {
		if errors.Is(err, credentials.ErrNotFound) {
			http.Error(w, "Credentials not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if err := credentials.DeleteCredentials(key); err != nil {
		logger.Errorf("Failed to delete credentials: %v", err)
		http.Error(w, "Failed to delete credentials", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
