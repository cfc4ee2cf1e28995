package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfigDataDirEnv(t *testing.T) {
	customDir := filepath.Join(t.TempDir(), "relay-data")
	t.Setenv("POSTRELAY_DATA_DIR", customDir)

	if got, want := GetQueueDBPath(), filepath.Join(customDir, "queue.db"); got != want {
		t.Errorf("Expected queue path %s, got %s", want, got)
	}
	if got, want := GetCredentialsDBPath(), filepath.Join(customDir, "credentials.db"); got != want {
		t.Errorf("Expected credentials path %s, got %s", want, got)
	}
	if got, want := GetFailuresDBPath(), filepath.Join(customDir, "failures.db"); got != want {
		t.Errorf("Expected failures path %s, got %s", want, got)
	}
	if got, want := GetSuccessDBPath(), filepath.Join(customDir, "success.db"); got != want {
		t.Errorf("Expected success path %s, got %s", want, got)
	}
}

func TestConfigDBPathsDefault(t *testing.T) {
	t.Setenv("POSTRELAY_DATA_DIR", "")

	for _, p := range []string{GetQueueDBPath(), GetCredentialsDBPath(), GetFailuresDBPath(), GetSuccessDBPath()} {
		if filepath.Dir(p) != "data" {
			t.Errorf("Expected %s to be in data, got %s", p, filepath.Dir(p))
		}
	}
}

func TestServeDir(t *testing.T) {
	t.Setenv("POSTRELAY_SERVE_DIR", "")
	if got := GetDirectServeBaseDir(); got != "./serve" {
		t.Errorf("Expected default serve dir ./serve, got %s", got)
	}
	t.Setenv("POSTRELAY_SERVE_DIR", "/srv/media")
	if got := GetDirectServeBaseDir(); got != "/srv/media" {
		t.Errorf("Expected /srv/media, got %s", got)
	}
}

func TestLoadFromEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	content := "WP_URL=https://news.example.com/\n" +
		"WP_USER=editor\n" +
		"WP_PASSWORD=secret\n" +
		"META_API_TOKEN=token\n" +
		"INSTAGRAM_ID=1784\n" +
		"CAPTION_HASHTAGS=#noticias, #litoral\n" +
		"INSTAGRAM_POLL_ATTEMPTS=3\n" +
		"INSTAGRAM_POLL_INTERVAL=1\n"
	if err := os.WriteFile(envFile, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"WP_URL", "WP_USER", "WP_PASSWORD", "META_API_TOKEN", "INSTAGRAM_ID", "CAPTION_HASHTAGS", "INSTAGRAM_POLL_ATTEMPTS", "INSTAGRAM_POLL_INTERVAL"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	s := Load(envFile)

	p := s.DefaultProfile
	if p.WordPress.BaseURL != "https://news.example.com" {
		t.Errorf("WordPress base URL = %q, want trailing slash trimmed", p.WordPress.BaseURL)
	}
	if !p.WordPress.Configured() {
		t.Error("Expected WordPress credentials to be configured")
	}
	if p.Platforms.InstagramUserID != "1784" || p.Platforms.MetaAccessToken != "token" {
		t.Errorf("unexpected platform credentials: %+v", p.Platforms)
	}
	if p.Platforms.GraphAPIVersion != "v19.0" {
		t.Errorf("Graph API version = %q, want v19.0", p.Platforms.GraphAPIVersion)
	}
	if len(p.Hashtags) != 2 || p.Hashtags[0] != "#noticias" || p.Hashtags[1] != "#litoral" {
		t.Errorf("hashtags = %v", p.Hashtags)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("default profile should validate: %v", err)
	}

	ig := s.Policy("instagram")
	if ig.MaxAttempts != 3 || ig.Interval != time.Second {
		t.Errorf("instagram policy = %+v, want 3 attempts every 1s", ig)
	}
	if ig.Deadline != 3*time.Second+time.Minute {
		t.Errorf("instagram deadline = %v", ig.Deadline)
	}
	if s.Policy("creatomate").Interval != 10*time.Second {
		t.Errorf("creatomate interval = %v, want 10s", s.Policy("creatomate").Interval)
	}
}
