package hosting

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"postrelay/models"
	"postrelay/wordpress"
)

func TestNames(t *testing.T) {
	if ImageName(42) != "post_social_42.jpg" {
		t.Errorf("ImageName = %s", ImageName(42))
	}
	if ReelName(42) != "reel_42.mp4" {
		t.Errorf("ReelName = %s", ReelName(42))
	}
}

func TestDirectServe(t *testing.T) {
	dir := t.TempDir()
	info := map[string]string{"baseDir": dir, "folder": "social", "publicBaseURL": "https://relay.example.com/media/"}

	u, err := HostMedia(context.Background(), info, BackendDirectServe, "post_social_1.jpg", "image/jpeg", strings.NewReader("jpeg"))
	if err != nil {
		t.Fatalf("HostMedia: %v", err)
	}
	if u != "https://relay.example.com/media/social/post_social_1.jpg" {
		t.Errorf("unexpected url %s", u)
	}
	data, err := os.ReadFile(filepath.Join(dir, "social", "post_social_1.jpg"))
	if err != nil || string(data) != "jpeg" {
		t.Fatalf("file content %q, %v", data, err)
	}

	// same name, same url; content replaced
	u2, err := HostMedia(context.Background(), info, BackendDirectServe, "post_social_1.jpg", "image/jpeg", strings.NewReader("jpeg2"))
	if err != nil || u2 != u {
		t.Fatalf("second upload = %s, %v", u2, err)
	}

	if _, err := HostMedia(context.Background(), info, BackendDirectServe, "../escape.jpg", "image/jpeg", strings.NewReader("x")); err == nil {
		t.Error("expected error for path traversal")
	}
}

func TestDirectServeFolderStaysInBase(t *testing.T) {
	root := t.TempDir()
	base := filepath.Join(root, "serve")
	for _, folder := range []string{"../outside", "/abs", "a/../../b"} {
		info := map[string]string{"baseDir": base, "folder": folder, "publicBaseURL": "https://h/media"}
		if _, err := UploadToDirectServe(context.Background(), info, "x.jpg", strings.NewReader("x")); err == nil {
			t.Errorf("expected error for folder %q", folder)
		}
	}
	if _, err := os.Stat(filepath.Join(root, "outside")); !os.IsNotExist(err) {
		t.Errorf("nothing should be written outside the serve dir, stat err = %v", err)
	}
}

func TestUnknownBackend(t *testing.T) {
	if _, err := HostMedia(context.Background(), nil, "ftp", "a.jpg", "", strings.NewReader("")); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestS3PublicURL(t *testing.T) {
	cases := []struct {
		info map[string]string
		want string
	}{
		{map[string]string{"bucket": "media", "region": "sa-east-1"}, "https://media.s3.sa-east-1.amazonaws.com/social/a.jpg"},
		{map[string]string{"bucket": "media", "publicBaseURL": "https://cdn.example.com"}, "https://cdn.example.com/social/a.jpg"},
		{map[string]string{"bucket": "media", "endpoint": "https://minio.example.com"}, "https://minio.example.com/media/social/a.jpg"},
	}
	for _, tc := range cases {
		if got := s3PublicURL(tc.info, "social/a.jpg"); got != tc.want {
			t.Errorf("s3PublicURL(%v) = %s, want %s", tc.info, got, tc.want)
		}
	}
}

func TestDecodeCredentials(t *testing.T) {
	raw := `{"type":"service_account"}`
	for _, in := range []string{raw, base64.StdEncoding.EncodeToString([]byte(raw)), base64.RawStdEncoding.EncodeToString([]byte(raw))} {
		got, err := decodeCredentials(in)
		if err != nil || string(got) != raw {
			t.Errorf("decodeCredentials(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := decodeCredentials(""); err == nil {
		t.Error("expected error for empty credentials")
	}
}

func TestSFTPRequiresPublicBase(t *testing.T) {
	_, err := UploadToSFTPWithCreds(context.Background(), map[string]string{"host": "h", "user": "u", "remoteDir": "/srv"}, "a.jpg", strings.NewReader(""))
	if err == nil || !strings.Contains(err.Error(), "publicBaseURL") {
		t.Errorf("expected missing publicBaseURL error, got %v", err)
	}
}

func TestResolverRehostToWordPress(t *testing.T) {
	src := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.Write([]byte("rendered-video"))
	}))
	defer src.Close()

	wp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if string(body) != "rendered-video" || r.Header.Get("Content-Type") != "video/mp4" {
			t.Errorf("unexpected upload %q (%s)", body, r.Header.Get("Content-Type"))
		}
		if !strings.Contains(r.Header.Get("Content-Disposition"), "reel_3.mp4") {
			t.Errorf("unexpected disposition %q", r.Header.Get("Content-Disposition"))
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"source_url":"https://site.example/wp-content/uploads/reel_3.mp4"}`))
	}))
	defer wp.Close()

	client, err := wordpress.New(models.WordPressCredentials{BaseURL: wp.URL, User: "u", Password: "p"}, wp.Client())
	if err != nil {
		t.Fatalf("wordpress.New: %v", err)
	}
	r := &Resolver{Backend: BackendWordPress, WordPress: client, HTTP: src.Client()}

	u, err := r.Rehost(context.Background(), src.URL+"/render.mp4", ReelName(3), "")
	if err != nil {
		t.Fatalf("Rehost: %v", err)
	}
	if u != "https://site.example/wp-content/uploads/reel_3.mp4" {
		t.Errorf("unexpected url %s", u)
	}
}

func TestFetchNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	if _, _, err := Fetch(context.Background(), srv.Client(), srv.URL); err == nil {
		t.Error("expected error for 403")
	}
}
