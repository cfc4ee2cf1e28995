package routes

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"postrelay/credentials"
	"postrelay/job"
	"postrelay/logger"
	"postrelay/models"
	"postrelay/taskqueue"
)

const maxWebhookBody = 1 << 20

// WebhookResponse acknowledges a queued delivery
type WebhookResponse struct {
	ID      string `json:"id"`
	Profile string `json:"profile"`
	Status  string `json:"status"`
}

// WebhookHandler queues a delivery for the default profile
func (a *App) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	name := a.Settings.DefaultProfile.Name
	if !tokenAllows(r, name) {
		logger.Warnf("Token for profile %s used for the default profile", claimsFrom(r.Context()).Profile)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	a.enqueue(w, r, name)
}

// ProfileWebhookHandler queues a delivery for a registered profile
func (a *App) ProfileWebhookHandler(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "profile")
	if !tokenAllows(r, name) {
		logger.Warnf("Token for profile %s used for %s", claimsFrom(r.Context()).Profile, name)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	if _, err := a.Profiles(name); err != nil {
		if errors.Is(err, credentials.ErrNotFound) {
			http.Error(w, "Unknown profile", http.StatusNotFound)
			return
		}
		logger.Errorf("Failed to load profile %s: %v", name, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	a.enqueue(w, r, name)
}

func (a *App) enqueue(w http.ResponseWriter, r *http.Request, profile string) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody+1))
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}
	if len(body) > maxWebhookBody {
		http.Error(w, "Payload too large", http.StatusRequestEntityTooLarge)
		return
	}
	var object map[string]json.RawMessage
	if err := json.Unmarshal(body, &object); err != nil {
		logger.Warnf("Invalid webhook body from %s: %v", r.RemoteAddr, err)
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	data, err := json.Marshal(models.QueuedWebhook{
		Profile:    profile,
		RequestID:  middleware.GetReqID(r.Context()),
		ReceivedAt: time.Now(),
		Payload:    body,
	})
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	item, err := a.Queue.Enqueue(data)
	switch {
	case errors.Is(err, taskqueue.ErrQueueFull):
		logger.Warnf("Queue full, rejecting webhook for profile %s", profile)
		w.Header().Set("Retry-After", "60")
		http.Error(w, "Queue is full", http.StatusServiceUnavailable)
		return
	case err != nil:
		logger.Errorf("Failed to enqueue webhook: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	job.MarkQueued(item.ID, profile)
	logger.Infof("Queued webhook %s for profile %s", item.ID, profile)
	writeJSON(w, http.StatusAccepted, WebhookResponse{ID: item.ID, Profile: profile, Status: "queued"})
}
