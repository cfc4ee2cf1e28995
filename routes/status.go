package routes

import (
	"net/http"
	"time"

	"postrelay/failures"
	"postrelay/job"
	"postrelay/logger"
	"postrelay/success"
)

// JobStatusHandler returns the status of a delivery by id. Deliveries that
// predate this process are answered from the queue and the ledgers.
func (a *App) JobStatusHandler(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		logger.Warn("Missing id parameter in status request")
		http.Error(w, "Missing id parameter", http.StatusBadRequest)
		return
	}

	if status, ok := job.GetJobStatus(id); ok {
		writeJSON(w, http.StatusOK, status)
		return
	}

	status := job.JobStatus{ID: id, UpdatedAt: time.Now()}
	switch {
	case a.Queue.Pending(id):
		status.State = job.JobStateQueued
	default:
		if rec, err := success.GetSuccess(id); err == nil && rec != nil {
			status.State, status.Profile, status.PostID = job.JobStateCompleted, rec.Profile, rec.PostID
			status.UpdatedAt = rec.Timestamp
			break
		}
		if rec, err := failures.GetFailure(id); err == nil && rec != nil {
			status.State, status.Profile, status.PostID = job.JobStateFailed, rec.Profile, rec.PostID
			status.Attempts, status.Detail, status.UpdatedAt = rec.Attempts, rec.Error, rec.Timestamp
			break
		}
		logger.Debugf("Job not found: %s", id)
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
