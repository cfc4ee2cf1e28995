package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// WebhookClaims are the claims of the optional bearer token WordPress sends
// with its webhook.
type WebhookClaims struct {
	ID        string `json:"jti,omitempty"`
	Issuer    string `json:"iss"` // optional
	Subject   string `json:"sub"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
	Profile   string `json:"profile,omitempty"` // optional: restrict the token to one profile
}

// WebhookPayload is the subset of the WordPress publish webhook body we read.
type WebhookPayload struct {
	Post   WebhookPost `json:"post"`
	PostID PostRef     `json:"post_id,omitempty"`
}

// WebhookPost is the "post" object of a WP Webhooks style payload.
type WebhookPost struct {
	ID         PostRef `json:"ID,omitempty"`
	PostType   string  `json:"post_type,omitempty"`
	PostParent PostRef `json:"post_parent,omitempty"`
}

// QueuedWebhook is what the webhook handler persists in the work queue.
type QueuedWebhook struct {
	Profile    string          `json:"profile"`
	RequestID  string          `json:"request_id,omitempty"`
	ReceivedAt time.Time       `json:"received_at"`
	Payload    json.RawMessage `json:"payload"`
}

// PostRef is a WordPress object id that may arrive as a JSON number, a
// numeric string, or null. Zero means absent.
type PostRef int64

func (r *PostRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = 0
		return nil
	}
	raw := strings.Trim(string(data), `"`)
	if raw == "" {
		*r = 0
		return nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid post id %s: %w", data, err)
	}
	*r = PostRef(n)
	return nil
}
