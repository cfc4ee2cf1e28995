package wordpress

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"postrelay/models"
)

func TestResolvePostID(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		want    int64
		wantErr bool
	}{
		{"post object", `{"post":{"ID":12,"post_type":"post"}}`, 12, false},
		{"revision uses parent", `{"post":{"ID":99,"post_type":"revision","post_parent":12}}`, 12, false},
		{"revision without parent", `{"post":{"ID":99,"post_type":"revision","post_parent":0}}`, 99, false},
		{"top level post_id", `{"post_id":"34"}`, 34, false},
		{"string ids", `{"post":{"ID":"56"}}`, 56, false},
		{"null id falls back", `{"post":{"ID":null},"post_id":7}`, 7, false},
		{"nothing", `{"post":{}}`, 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var p models.WebhookPayload
			if err := json.Unmarshal([]byte(tc.body), &p); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			got, err := ResolvePostID(p)
			if tc.wantErr {
				if !errors.Is(err, ErrNoPostID) {
					t.Fatalf("expected ErrNoPostID, got %d, %v", got, err)
				}
				return
			}
			if err != nil || got != tc.want {
				t.Fatalf("ResolvePostID = %d, %v; want %d", got, err, tc.want)
			}
		})
	}
}

func TestPlainText(t *testing.T) {
	cases := map[string]string{
		`Caf&eacute; &amp; <strong>Bar</strong>`:                 "Café & Bar",
		"<p>First line.</p>\n<p>Second&nbsp;line [&hellip;]</p>": "First line. Second line […]",
		`<p>Text<script>alert(1)</script> after</p>`:             "Text after",
		`Plain`:                                                  "Plain",
		``:                                                       "",
		`a<br/>b`:                                                "a b",
	}
	for in, want := range cases {
		if got := PlainText(in); got != want {
			t.Errorf("PlainText(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSkipReason(t *testing.T) {
	if r := SkipReason(&Post{Status: "draft", FeaturedMedia: 3}); r != SkipNotPublished {
		t.Errorf("draft: %q", r)
	}
	if r := SkipReason(&Post{Status: "publish"}); r != SkipNoFeaturedImage {
		t.Errorf("no image: %q", r)
	}
	if r := SkipReason(&Post{Status: "publish", FeaturedMedia: 3}); r != "" {
		t.Errorf("publishable post skipped: %q", r)
	}
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(models.WordPressCredentials{BaseURL: srv.URL + "/", User: "bot", Password: "app pass"}, srv.Client())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestGetPostAndMedia(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "bot" || pass != "app pass" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/wp-json/wp/v2/posts/12":
			w.Write([]byte(`{"id":12,"status":"publish","title":{"rendered":"Hello &amp; bye"},"excerpt":{"rendered":"<p>Short</p>"},"featured_media":5}`))
		case "/wp-json/wp/v2/media/5":
			w.Write([]byte(`{"id":5,"source_url":"https://site.example/wp-content/uploads/a.png"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"code":"rest_post_invalid_id"}`))
		}
	})

	post, err := c.GetPost(context.Background(), 12)
	if err != nil {
		t.Fatalf("GetPost: %v", err)
	}
	if PlainText(post.Title.Rendered) != "Hello & bye" || post.FeaturedMedia != 5 {
		t.Errorf("unexpected post %+v", post)
	}

	url, err := c.GetMediaURL(context.Background(), post.FeaturedMedia)
	if err != nil || url != "https://site.example/wp-content/uploads/a.png" {
		t.Fatalf("GetMediaURL = %q, %v", url, err)
	}

	if _, err := c.GetPost(context.Background(), 404); !errors.Is(err, ErrPostNotFound) {
		t.Errorf("expected ErrPostNotFound, got %v", err)
	}
}

func TestUploadMedia(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/wp-json/wp/v2/media" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Content-Type") != "video/mp4" {
			t.Errorf("content type %q", r.Header.Get("Content-Type"))
		}
		if !strings.Contains(r.Header.Get("Content-Disposition"), `filename=reel_12.mp4`) {
			t.Errorf("content disposition %q", r.Header.Get("Content-Disposition"))
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "video-bytes" {
			t.Errorf("body %q", body)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":77,"source_url":"https://site.example/wp-content/uploads/reel_12.mp4"}`))
	})

	url, err := c.UploadMedia(context.Background(), "reel_12.mp4", "video/mp4", strings.NewReader("video-bytes"))
	if err != nil || url != "https://site.example/wp-content/uploads/reel_12.mp4" {
		t.Fatalf("UploadMedia = %q, %v", url, err)
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	if _, err := New(models.WordPressCredentials{BaseURL: "https://x"}, nil); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}
