package job

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"postrelay/logger"
	"postrelay/models"
)

const userAgent = "postrelay/1.0"

var notifyClient = &http.Client{Timeout: 30 * time.Second}

// forward relays the original webhook body to the profile's downstream
// automation once the post went through the publish stage.
func (p *Processor) forward(ctx context.Context, profile models.Profile, body json.RawMessage) {
	if profile.ForwardURL == "" {
		return
	}
	if err := postJSON(ctx, p.HTTP, profile.ForwardURL, body); err != nil {
		logger.Warnf("Failed to forward webhook for profile %s: %v", profile.Name, err)
		return
	}
	logger.Infof("Forwarded webhook to %s", profile.ForwardURL)
}

type callbackPayload struct {
	ID        string                 `json:"id"`
	Status    string                 `json:"status"`
	Profile   string                 `json:"profile,omitempty"`
	PostID    int64                  `json:"post_id,omitempty"`
	MediaURL  string                 `json:"media_url,omitempty"`
	Reason    string                 `json:"reason,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Attempts  int                    `json:"attempts"`
	Outcome   *models.PublishOutcome `json:"outcome,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

// sendCallback reports a terminal delivery state to the profile's callback URL
func sendCallback(ctx context.Context, id string, state JobState, attempts int, res Result) error {
	if res.CallbackURL == "" {
		return nil // No callback configured
	}

	payload := callbackPayload{
		ID:        id,
		Status:    state.String(),
		Profile:   res.Profile,
		PostID:    res.PostID,
		MediaURL:  res.MediaURL,
		Reason:    res.Skipped,
		Attempts:  attempts,
		Outcome:   res.Outcome,
		Timestamp: time.Now().Unix(),
	}
	if res.Err != nil {
		payload.Error = res.Err.Error()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal callback payload: %w", err)
	}
	if err := postJSON(ctx, notifyClient, res.CallbackURL, body); err != nil {
		return fmt.Errorf("callback: %w", err)
	}

	logger.Infof("Successfully sent callback to %s", res.CallbackURL)
	return nil
}

func postJSON(ctx context.Context, client *http.Client, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("non-2xx status: %d", resp.StatusCode)
	}
	return nil
}
