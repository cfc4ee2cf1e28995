// Package wordpress talks to the WordPress REST API of the site that sent
// the webhook.
package wordpress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"postrelay/models"
)

var (
	ErrPostNotFound  = errors.New("post not found")
	ErrNoPostID      = errors.New("webhook carries no usable post id")
	ErrNotConfigured = errors.New("wordpress url, user and password are required")
)

// Skip reasons reported by SkipReason.
const (
	SkipNotPublished    = "not_published"
	SkipNoFeaturedImage = "no_featured_image"
)

// Rendered is a WordPress field with server-rendered HTML.
type Rendered struct {
	Rendered string `json:"rendered"`
}

// Post is the subset of wp/v2/posts we read.
type Post struct {
	ID            int64    `json:"id"`
	Status        string   `json:"status"`
	Type          string   `json:"type"`
	Link          string   `json:"link"`
	Title         Rendered `json:"title"`
	Excerpt       Rendered `json:"excerpt"`
	FeaturedMedia int64    `json:"featured_media"`
}

// SkipReason returns why a post must not be published, or "" when it can be.
func SkipReason(p *Post) string {
	if p.Status != "publish" {
		return SkipNotPublished
	}
	if p.FeaturedMedia == 0 {
		return SkipNoFeaturedImage
	}
	return ""
}

// ResolvePostID picks the post a webhook refers to. Revisions point at
// their parent; payloads without a post object fall back to post_id.
func ResolvePostID(p models.WebhookPayload) (int64, error) {
	if p.Post.PostType == "revision" && p.Post.PostParent != 0 {
		return int64(p.Post.PostParent), nil
	}
	if p.Post.ID != 0 {
		return int64(p.Post.ID), nil
	}
	if p.PostID != 0 {
		return int64(p.PostID), nil
	}
	return 0, ErrNoPostID
}

// Client uses application-password Basic auth.
type Client struct {
	BaseURL  string
	User     string
	Password string
	HTTP     *http.Client
}

func New(creds models.WordPressCredentials, client *http.Client) (*Client, error) {
	if !creds.Configured() {
		return nil, ErrNotConfigured
	}
	if client == nil {
		client = &http.Client{Timeout: 90 * time.Second}
	}
	return &Client{
		BaseURL:  strings.TrimRight(creds.BaseURL, "/"),
		User:     creds.User,
		Password: creds.Password,
		HTTP:     client,
	}, nil
}

func (c *Client) endpoint(parts ...string) string {
	return c.BaseURL + "/wp-json/wp/v2/" + strings.Join(parts, "/")
}

func (c *Client) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.User, c.Password)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func readError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return fmt.Errorf("wordpress: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

// GetPost fetches a post. Any non-200 answer is ErrPostNotFound.
func (c *Client) GetPost(ctx context.Context, id int64) (*Post, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.endpoint("posts", strconv.FormatInt(id, 10)), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wordpress: get post %d: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: id %d (status %d)", ErrPostNotFound, id, resp.StatusCode)
	}
	var post Post
	if err := json.NewDecoder(resp.Body).Decode(&post); err != nil {
		return nil, fmt.Errorf("wordpress: decode post %d: %w", id, err)
	}
	return &post, nil
}

// GetMediaURL returns the source_url of a media library item.
func (c *Client) GetMediaURL(ctx context.Context, mediaID int64) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.endpoint("media", strconv.FormatInt(mediaID, 10)), nil)
	if err != nil {
		return "", err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("wordpress: get media %d: %w", mediaID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", readError(resp)
	}
	var media struct {
		SourceURL string `json:"source_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&media); err != nil {
		return "", fmt.Errorf("wordpress: decode media %d: %w", mediaID, err)
	}
	if media.SourceURL == "" {
		return "", fmt.Errorf("wordpress: media %d has no source_url", mediaID)
	}
	return media.SourceURL, nil
}

// UploadMedia stores a file in the media library and returns its public URL.
func (c *Client) UploadMedia(ctx context.Context, filename, contentType string, body io.Reader) (string, error) {
	req, err := c.newRequest(ctx, http.MethodPost, c.endpoint("media"), body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("wordpress: upload %s: %w", filename, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", readError(resp)
	}
	var media struct {
		SourceURL string `json:"source_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&media); err != nil {
		return "", fmt.Errorf("wordpress: decode upload response: %w", err)
	}
	if media.SourceURL == "" {
		return "", fmt.Errorf("wordpress: upload of %s returned no source_url", filename)
	}
	return media.SourceURL, nil
}
