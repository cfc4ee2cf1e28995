package platforms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"postrelay/publish"
)

// DefaultClient is used when a backend is built without an explicit client.
var DefaultClient = &http.Client{Timeout: 90 * time.Second}

const maxErrorBody = 4096

// httpStatusError is returned for any non-2xx response. Body is the remote
// payload verbatim; Message is the extracted error text when one exists.
type httpStatusError struct {
	StatusCode int
	Body       string
	Message    string
}

func (e *httpStatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("status %d", e.StatusCode)
}

type call struct {
	method  string
	url     string
	headers map[string]string
	form    url.Values // sent as application/x-www-form-urlencoded
	json    any        // sent as application/json
}

// do performs one request and decodes a 2xx JSON answer into out. The
// message func extracts the remote error text from non-2xx bodies.
func do(ctx context.Context, client *http.Client, c call, out any, message func([]byte) string) error {
	if client == nil {
		client = DefaultClient
	}

	var body io.Reader
	contentType := ""
	switch {
	case c.form != nil:
		body = strings.NewReader(c.form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case c.json != nil:
		raw, err := json.Marshal(c.json)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, c.method, c.url, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		statusErr := &httpStatusError{StatusCode: resp.StatusCode, Body: string(raw)}
		if message != nil {
			statusErr.Message = message(raw)
		}
		return statusErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// graphMessage extracts {"error":{"message": ...}} from a Graph API body.
func graphMessage(body []byte) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    int    `json:"code"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &payload) != nil || payload.Error.Message == "" {
		return ""
	}
	if payload.Error.Code != 0 {
		return fmt.Sprintf("%s (code %d)", payload.Error.Message, payload.Error.Code)
	}
	return payload.Error.Message
}

// plainMessage extracts {"message": ...} as returned by the render services.
func plainMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Hint    string `json:"hint"`
	}
	if json.Unmarshal(body, &payload) != nil {
		return ""
	}
	if payload.Hint != "" {
		return payload.Message + ": " + payload.Hint
	}
	return payload.Message
}

// asSubmission turns a non-2xx answer into a SubmissionError. Transport
// errors pass through and are classified as network failures.
func asSubmission(target string, err error) error {
	var se *httpStatusError
	if !errors.As(err, &se) {
		return err
	}
	return &publish.SubmissionError{Target: target, StatusCode: se.StatusCode, Body: se.Body, Err: messageErr(se)}
}

func asPublish(target, jobID string, err error) error {
	var se *httpStatusError
	if !errors.As(err, &se) {
		return &publish.PublishError{Target: target, JobID: jobID, Err: err}
	}
	return &publish.PublishError{Target: target, JobID: jobID, StatusCode: se.StatusCode, Body: se.Body, Err: messageErr(se)}
}

func messageErr(se *httpStatusError) error {
	if se.Message == "" {
		return nil
	}
	return errors.New(se.Message)
}

func joinURL(base string, parts ...string) string {
	escaped := make([]string, 0, len(parts)+1)
	escaped = append(escaped, strings.TrimRight(base, "/"))
	for _, p := range parts {
		escaped = append(escaped, url.PathEscape(p))
	}
	return strings.Join(escaped, "/")
}
