package platforms

import (
	"context"
	"net/http"
	"net/url"

	"postrelay/models"
	"postrelay/publish"
)

const defaultGraphVersion = "v19.0"

// Instagram publishes through the container flow of the Instagram Graph
// API: create a media container, wait for status_code, then media_publish.
type Instagram struct {
	BaseURL string
	Version string
	Token   string
	UserID  string
	Client  *http.Client
}

func NewInstagram(creds models.PlatformCredentials, baseURL string, client *http.Client) *Instagram {
	return &Instagram{
		BaseURL: baseURL,
		Version: creds.GraphAPIVersion,
		Token:   creds.MetaAccessToken,
		UserID:  creds.InstagramUserID,
		Client:  client,
	}
}

func (ig *Instagram) Name() string          { return "instagram" }
func (ig *Instagram) Kind() models.Platform { return models.PlatformInstagram }

// Tokens: PUBLISHED counts as failure so an already-used container is
// never published twice.
func (ig *Instagram) Tokens() publish.TokenSet {
	return publish.TokenSet{
		Success: []string{"FINISHED"},
		Failure: []string{"ERROR", "EXPIRED", "PUBLISHED"},
	}
}

func (ig *Instagram) CheckConfig() error {
	var missing []string
	if ig.Token == "" {
		missing = append(missing, "META_API_TOKEN")
	}
	if ig.UserID == "" {
		missing = append(missing, "INSTAGRAM_ID")
	}
	if len(missing) > 0 {
		return &publish.ConfigurationError{Target: ig.Name(), Missing: missing}
	}
	return nil
}

func (ig *Instagram) version() string {
	if ig.Version == "" {
		return defaultGraphVersion
	}
	return ig.Version
}

func (ig *Instagram) Submit(ctx context.Context, req publish.SubmitRequest) (string, error) {
	form := url.Values{}
	if req.MediaType == models.MediaVideo {
		form.Set("media_type", "REELS")
		form.Set("video_url", req.SourceURI)
	} else {
		form.Set("image_url", req.SourceURI)
	}
	if req.Caption != "" {
		form.Set("caption", req.Caption)
	}
	form.Set("access_token", ig.Token)

	var created struct {
		ID string `json:"id"`
	}
	err := do(ctx, ig.Client, call{
		method: http.MethodPost,
		url:    joinURL(ig.BaseURL, ig.version(), ig.UserID, "media"),
		form:   form,
	}, &created, graphMessage)
	if err != nil {
		return "", asSubmission(ig.Name(), err)
	}
	return created.ID, nil
}

func (ig *Instagram) Status(ctx context.Context, job models.MediaJob) (publish.StatusReport, error) {
	q := url.Values{}
	q.Set("fields", "status_code,status")
	q.Set("access_token", ig.Token)

	var container struct {
		StatusCode string `json:"status_code"`
		Status     string `json:"status"`
	}
	err := do(ctx, ig.Client, call{
		method: http.MethodGet,
		url:    joinURL(ig.BaseURL, ig.version(), job.JobID) + "?" + q.Encode(),
	}, &container, graphMessage)
	if err != nil {
		return publish.StatusReport{}, err
	}
	return publish.StatusReport{Token: container.StatusCode, Reason: container.Status}, nil
}

func (ig *Instagram) Finalize(ctx context.Context, job models.MediaJob) (string, error) {
	form := url.Values{}
	form.Set("creation_id", job.JobID)
	form.Set("access_token", ig.Token)

	var published struct {
		ID string `json:"id"`
	}
	err := do(ctx, ig.Client, call{
		method: http.MethodPost,
		url:    joinURL(ig.BaseURL, ig.version(), ig.UserID, "media_publish"),
		form:   form,
	}, &published, graphMessage)
	if err != nil {
		return "", asPublish(ig.Name(), job.JobID, err)
	}
	return published.ID, nil
}
