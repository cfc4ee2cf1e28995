package routes

import (
	"errors"
	"fmt"
	"net/http"

	"postrelay/job"
	"postrelay/logger"
)

// CancelJobHandler drops a delivery that is still queued
func (a *App) CancelJobHandler(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		logger.Warn("Missing id parameter in cancel request")
		http.Error(w, "Missing id parameter", http.StatusBadRequest)
		return
	}

	logger.Infof("Attempting to cancel job: %s", id)
	if err := job.CancelJob(a.Queue, id); err != nil {
		logger.Warnf("Failed to cancel job %s: %v", id, err)
		switch {
		case errors.Is(err, job.ErrJobNotFound):
			http.Error(w, fmt.Sprintf("Job not found: %v", err), http.StatusNotFound)
		case errors.Is(err, job.ErrNotCancellable):
			http.Error(w, fmt.Sprintf("Cannot cancel job: %v", err), http.StatusConflict)
		default:
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	logger.Infof("Job cancelled successfully: %s", id)
	w.WriteHeader(http.StatusNoContent)
}
