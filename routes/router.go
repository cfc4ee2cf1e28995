package routes

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"postrelay/config"
	"postrelay/job"
	"postrelay/logger"
	"postrelay/taskqueue"
)

// App carries what the handlers share.
type App struct {
	Settings config.Settings
	Queue    *taskqueue.Queue
	Profiles job.ProfileLookup
	ServeDir string // directServe root exposed under /media/
}

// NewRouter wires every HTTP endpoint.
func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, requestLogger)

	r.Get("/", app.HealthHandler)
	r.Get("/health", app.HealthHandler)
	r.Get("/version", VersionHandler)

	r.Group(func(r chi.Router) {
		r.Use(app.requireToken)
		r.Post("/webhook-receiver", app.WebhookHandler)
		r.Post("/webhook/{profile}", app.ProfileWebhookHandler)

		r.Group(func(r chi.Router) {
			r.Use(requireUnscoped)
			r.Post("/profiles", app.RegisterProfileHandler)
			r.Get("/profiles", app.ListProfilesHandler)
			r.Delete("/profiles/{name}", app.DeleteProfileHandler)
			r.Post("/credentials", app.RegisterCredentialsHandler)
			r.Delete("/credentials/{key}", DeleteCredentialsHandler)
		})
	})

	r.Get("/status", app.JobStatusHandler)
	r.Delete("/cancel", app.CancelJobHandler)
	r.Get("/failures", FailureQueryHandler)
	r.Get("/failures/list", FailureListHandler)
	r.Get("/success", SuccessQueryHandler)
	r.Get("/success/list", SuccessListHandler)

	if app.ServeDir != "" {
		r.Handle("/media/*", http.StripPrefix("/media/", http.FileServer(http.Dir(app.ServeDir))))
	}
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		log := logger.Zerolog()
		log.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorf("Failed to encode response: %v", err)
	}
}
