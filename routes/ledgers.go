package routes

import (
	"net/http"

	"postrelay/failures"
	"postrelay/logger"
	"postrelay/success"
)

// FailureQueryHandler returns one dead-lettered delivery
func FailureQueryHandler(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "id parameter required", http.StatusBadRequest)
		return
	}

	record, err := failures.GetFailure(id)
	if err != nil {
		logger.Errorf("Failed to query failure %s: %v", id, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if record == nil {
		http.Error(w, "No failure recorded for "+id, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// FailureListHandler lists all dead-lettered deliveries, newest first
func FailureListHandler(w http.ResponseWriter, r *http.Request) {
	list, err := failures.ListFailures()
	if err != nil {
		logger.Errorf("Failed to list failures: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"failures": list,
		"count":    len(list),
	})
}

// SuccessQueryHandler returns the ledger entry of one published delivery
func SuccessQueryHandler(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "id parameter required", http.StatusBadRequest)
		return
	}

	record, err := success.GetSuccess(id)
	if err != nil {
		logger.Errorf("Failed to query success %s: %v", id, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if record == nil {
		http.Error(w, "No success recorded for "+id, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"record":    record,
		"published": record.Published(),
	})
}

// SuccessListHandler lists the success ledger, newest first
func SuccessListHandler(w http.ResponseWriter, r *http.Request) {
	list, err := success.ListSuccessRecords()
	if err != nil {
		logger.Errorf("Failed to list success records: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"records": list,
		"count":   len(list),
	})
}
