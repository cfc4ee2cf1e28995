package routes

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"postrelay/config"
	"postrelay/credentials"
	"postrelay/failures"
	"postrelay/job"
	"postrelay/logger"
	"postrelay/models"
	"postrelay/success"
	"postrelay/taskqueue"
	"postrelay/utils"
)

func init() {
	logger.SetOutput(io.Discard)
}

const testSecret = "webhook-secret-at-least-32-bytes-long!!"

func setupApp(t *testing.T, capacity int, secret string) (*App, http.Handler) {
	t.Helper()
	dir := t.TempDir()
	if err := credentials.OpenDB(filepath.Join(dir, "credentials.db")); err != nil {
		t.Fatalf("Failed to open credentials: %v", err)
	}
	if err := failures.Init(filepath.Join(dir, "failures.db")); err != nil {
		t.Fatalf("Failed to open failures: %v", err)
	}
	if err := success.Init(filepath.Join(dir, "success.db")); err != nil {
		t.Fatalf("Failed to open success: %v", err)
	}
	q, err := taskqueue.Open(filepath.Join(dir, "queue.db"), capacity)
	if err != nil {
		t.Fatalf("Failed to open queue: %v", err)
	}
	t.Cleanup(func() {
		q.Close()
		credentials.CloseDB()
		failures.Close()
		success.Close()
	})

	settings := config.Settings{
		WebhookSecret:  secret,
		DefaultProfile: models.Profile{Name: "default"},
	}
	app := &App{
		Settings: settings,
		Queue:    q,
		Profiles: job.StoredProfiles(settings),
		ServeDir: filepath.Join(dir, "serve"),
	}
	return app, NewRouter(app)
}

func do(t *testing.T, h http.Handler, method, target, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to decode %q: %v", rec.Body.String(), err)
	}
}

func TestWebhookQueuesAndCancels(t *testing.T) {
	app, h := setupApp(t, 8, "")

	rec := do(t, h, http.MethodPost, "/webhook-receiver", `{"post_id":7}`, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp WebhookResponse
	decode(t, rec, &resp)
	if resp.ID == "" || resp.Profile != "default" || resp.Status != "queued" {
		t.Errorf("Unexpected response: %+v", resp)
	}
	if app.Queue.Len() != 1 {
		t.Errorf("Expected 1 queued item, got %d", app.Queue.Len())
	}

	rec = do(t, h, http.MethodGet, "/status?id="+resp.ID, "", nil)
	var status job.JobStatus
	decode(t, rec, &status)
	if rec.Code != http.StatusOK || status.State != job.JobStateQueued {
		t.Errorf("Expected queued status, got %d %+v", rec.Code, status)
	}
	if !strings.Contains(rec.Body.String(), `"state":"queued"`) {
		t.Errorf("Expected state as text, got %s", rec.Body.String())
	}

	if rec := do(t, h, http.MethodDelete, "/cancel?id="+resp.ID, "", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", rec.Code)
	}
	if app.Queue.Len() != 0 {
		t.Errorf("Expected cancelled item to leave the queue")
	}
	if rec := do(t, h, http.MethodDelete, "/cancel?id="+resp.ID, "", nil); rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 on second cancel, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, "/cancel?id=missing", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown id, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, "/cancel", "", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without id, got %d", rec.Code)
	}
}

func TestWebhookRejectsBadJSON(t *testing.T) {
	app, h := setupApp(t, 8, "")

	for _, body := range []string{"", "not json", "[1,2]"} {
		if rec := do(t, h, http.MethodPost, "/webhook-receiver", body, nil); rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400 for %q, got %d", body, rec.Code)
		}
	}
	if app.Queue.Len() != 0 {
		t.Errorf("Invalid bodies must not be queued")
	}
}

func TestWebhookQueueFull(t *testing.T) {
	_, h := setupApp(t, 1, "")

	if rec := do(t, h, http.MethodPost, "/webhook-receiver", `{"post_id":1}`, nil); rec.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", rec.Code)
	}
	rec := do(t, h, http.MethodPost, "/webhook-receiver", `{"post_id":2}`, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Expected Retry-After header")
	}
}

func sampleProfile(name string) string {
	b, _ := json.Marshal(models.Profile{
		Name:        name,
		Targets:     []string{"instagram"},
		Mode:        models.MediaImage,
		HostBackend: "wordpress",
	})
	return string(b)
}

func TestProfileWebhook(t *testing.T) {
	_, h := setupApp(t, 8, "")

	if rec := do(t, h, http.MethodPost, "/webhook/site", `{"post_id":7}`, nil); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 before registration, got %d", rec.Code)
	}

	rec := do(t, h, http.MethodPost, "/profiles", sampleProfile("site"), nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, h, http.MethodPost, "/profiles", `{"name":"broken"}`, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid profile, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/profiles", sampleProfile("default"), nil); rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 when overriding the default profile, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/webhook/site", `{"post_id":7}`, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", rec.Code)
	}
	var resp WebhookResponse
	decode(t, rec, &resp)
	if resp.Profile != "site" {
		t.Errorf("Expected profile site, got %s", resp.Profile)
	}

	rec = do(t, h, http.MethodGet, "/profiles", "", nil)
	var list struct {
		Default  string   `json:"default"`
		Profiles []string `json:"profiles"`
	}
	decode(t, rec, &list)
	if list.Default != "default" || len(list.Profiles) != 1 || list.Profiles[0] != "site" {
		t.Errorf("Unexpected profile list: %+v", list)
	}

	if rec := do(t, h, http.MethodDelete, "/profiles/default", "", nil); rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 deleting the default profile, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, "/profiles/site", "", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, "/profiles/site", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for deleted profile, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/webhook/site", `{"post_id":7}`, nil); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after deletion, got %d", rec.Code)
	}
}

func bearer(t *testing.T, claims models.WebhookClaims) http.Header {
	t.Helper()
	token, err := utils.CreateWebhookJWT(&claims, []byte(testSecret))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return http.Header{"Authorization": {"Bearer " + token}}
}

func TestWebhookRequiresToken(t *testing.T) {
	_, h := setupApp(t, 8, testSecret)
	now := time.Now().Unix()

	if rec := do(t, h, http.MethodPost, "/webhook-receiver", `{"post_id":7}`, nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", rec.Code)
	}
	bad := http.Header{"Authorization": {"Token abc"}}
	if rec := do(t, h, http.MethodPost, "/webhook-receiver", `{"post_id":7}`, bad); rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for malformed header, got %d", rec.Code)
	}

	good := bearer(t, models.WebhookClaims{Subject: "wp", IssuedAt: now, ExpiresAt: now + 600})
	if rec := do(t, h, http.MethodPost, "/webhook-receiver", `{"post_id":7}`, good); rec.Code != http.StatusAccepted {
		t.Errorf("Expected 202 with token, got %d", rec.Code)
	}

	if rec := do(t, h, http.MethodPost, "/profiles", sampleProfile("site"), good); rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", rec.Code)
	}
	scoped := bearer(t, models.WebhookClaims{IssuedAt: now, Profile: "other"})
	if rec := do(t, h, http.MethodPost, "/webhook/site", `{"post_id":7}`, scoped); rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for a token scoped to another profile, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/webhook-receiver", `{"post_id":7}`, scoped); rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for a scoped token on the default profile, got %d", rec.Code)
	}
	own := bearer(t, models.WebhookClaims{IssuedAt: now, Profile: "site"})
	if rec := do(t, h, http.MethodPost, "/webhook/site", `{"post_id":7}`, own); rec.Code != http.StatusAccepted {
		t.Errorf("Expected 202 for a token scoped to the profile, got %d", rec.Code)
	}
	for _, tc := range []struct{ method, target, body string }{
		{http.MethodPost, "/profiles", sampleProfile("other")},
		{http.MethodGet, "/profiles", ""},
		{http.MethodDelete, "/profiles/site", ""},
		{http.MethodPost, "/credentials", `{"bucket":"media"}`},
		{http.MethodDelete, "/credentials/abc", ""},
	} {
		for _, token := range []http.Header{scoped, own} {
			if rec := do(t, h, tc.method, tc.target, tc.body, token); rec.Code != http.StatusForbidden {
				t.Errorf("%s %s: expected 403 for a scoped token, got %d", tc.method, tc.target, rec.Code)
			}
		}
	}
	if _, err := credentials.GetProfile("site"); err != nil {
		t.Errorf("Profile should survive scoped delete attempts: %v", err)
	}

	// read-only endpoints stay open
	if rec := do(t, h, http.MethodGet, "/health", "", nil); rec.Code != http.StatusOK {
		t.Errorf("Expected 200 for health, got %d", rec.Code)
	}
}

func TestLedgerEndpoints(t *testing.T) {
	_, h := setupApp(t, 8, "")

	outcome := models.NewPublishOutcome()
	outcome.Record("instagram", models.PlatformResult{Success: true, PublishedID: "p1"})
	if err := success.StoreSuccess(success.SuccessRecord{ID: "ok-1", Profile: "default", PostID: 7, Outcome: outcome}); err != nil {
		t.Fatal(err)
	}
	if err := failures.StoreFailure(failures.FailureRecord{ID: "bad-1", Profile: "default", PostID: 8, Stage: failures.StagePrepare, Error: "boom", Attempts: 4}); err != nil {
		t.Fatal(err)
	}

	if rec := do(t, h, http.MethodGet, "/failures?id=bad-1", "", nil); rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/failures?id=nope", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/failures", "", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}

	rec := do(t, h, http.MethodGet, "/success?id=ok-1", "", nil)
	var got struct {
		Published []string `json:"published"`
	}
	decode(t, rec, &got)
	if len(got.Published) != 1 || got.Published[0] != "instagram" {
		t.Errorf("Unexpected success response: %s", rec.Body.String())
	}

	var list struct {
		Count int `json:"count"`
	}
	decode(t, do(t, h, http.MethodGet, "/failures/list", "", nil), &list)
	if list.Count != 1 {
		t.Errorf("Expected 1 failure, got %d", list.Count)
	}
	decode(t, do(t, h, http.MethodGet, "/success/list", "", nil), &list)
	if list.Count != 1 {
		t.Errorf("Expected 1 success, got %d", list.Count)
	}

	// status falls back to the ledgers for ids this process never saw
	var status job.JobStatus
	decode(t, do(t, h, http.MethodGet, "/status?id=ok-1", "", nil), &status)
	if status.State != job.JobStateCompleted || status.PostID != 7 {
		t.Errorf("Expected completed from ledger, got %+v", status)
	}
	decode(t, do(t, h, http.MethodGet, "/status?id=bad-1", "", nil), &status)
	if status.State != job.JobStateFailed || status.Attempts != 4 {
		t.Errorf("Expected failed from ledger, got %+v", status)
	}
	if rec := do(t, h, http.MethodGet, "/status?id=unknown", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}

func TestRegisterCredentials(t *testing.T) {
	_, h := setupApp(t, 8, "")

	rec := do(t, h, http.MethodPost, "/credentials", `{"bucket":"media","region":"us-east-1"}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", rec.Code)
	}
	var resp map[string]string
	decode(t, rec, &resp)
	stored, err := credentials.GetCredentials(resp["access_key"])
	if err != nil || stored["bucket"] != "media" {
		t.Errorf("Expected stored credentials, got %v, %v", stored, err)
	}
	if rec := do(t, h, http.MethodPost, "/credentials", `{}`, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty credentials, got %d", rec.Code)
	}

	if rec := do(t, h, http.MethodDelete, "/credentials/"+resp["access_key"], "", nil); rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", rec.Code)
	}
	if _, err := credentials.GetCredentials(resp["access_key"]); !errors.Is(err, credentials.ErrNotFound) {
		t.Errorf("Expected credentials to be gone, got %v", err)
	}
	if rec := do(t, h, http.MethodDelete, "/credentials/missing", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}

func TestHealthAndMedia(t *testing.T) {
	app, h := setupApp(t, 8, "")

	rec := do(t, h, http.MethodGet, "/health", "", nil)
	var health HealthResponse
	decode(t, rec, &health)
	if health.Status != "healthy" || health.QueueDepth != 0 {
		t.Errorf("Unexpected health: %+v", health)
	}
	if rec := do(t, h, http.MethodGet, "/version", "", nil); rec.Code != http.StatusOK {
		t.Errorf("Expected 200 for version, got %d", rec.Code)
	}

	dir := filepath.Join(app.ServeDir, "default")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "post_social_7.jpg"), []byte("jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}
	rec = do(t, h, http.MethodGet, "/media/default/post_social_7.jpg", "", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "jpeg" {
		t.Errorf("Expected hosted file, got %d %q", rec.Code, rec.Body.String())
	}
}
