package platforms

import (
	"context"
	"net/http"
	"net/url"

	"postrelay/models"
	"postrelay/publish"
)

// Facebook posts photos or videos to a Page. Photo uploads by URL are
// synchronous: the id returned by /photos is a live photo, so Status reports
// ready without asking the Graph API again. Videos expose
// status.video_status. Both are visible once created, so Finalize only
// returns the object id.
type Facebook struct {
	BaseURL string
	Version string
	Token   string
	PageID  string
	Client  *http.Client
}

func NewFacebook(creds models.PlatformCredentials, baseURL string, client *http.Client) *Facebook {
	return &Facebook{
		BaseURL: baseURL,
		Version: creds.GraphAPIVersion,
		Token:   creds.MetaAccessToken,
		PageID:  creds.FacebookPageID,
		Client:  client,
	}
}

const photoReady = "ready"

func (fb *Facebook) Name() string          { return "facebook" }
func (fb *Facebook) Kind() models.Platform { return models.PlatformFacebook }

func (fb *Facebook) Tokens() publish.TokenSet {
	return publish.TokenSet{
		Success: []string{photoReady},
		Failure: []string{"error", "expired"},
	}
}

func (fb *Facebook) CheckConfig() error {
	var missing []string
	if fb.Token == "" {
		missing = append(missing, "META_API_TOKEN")
	}
	if fb.PageID == "" {
		missing = append(missing, "FACEBOOK_PAGE_ID")
	}
	if len(missing) > 0 {
		return &publish.ConfigurationError{Target: fb.Name(), Missing: missing}
	}
	return nil
}

func (fb *Facebook) version() string {
	if fb.Version == "" {
		return defaultGraphVersion
	}
	return fb.Version
}

func (fb *Facebook) Submit(ctx context.Context, req publish.SubmitRequest) (string, error) {
	form := url.Values{}
	edge := "photos"
	if req.MediaType == models.MediaVideo {
		edge = "videos"
		form.Set("file_url", req.SourceURI)
		form.Set("description", req.Caption)
	} else {
		form.Set("url", req.SourceURI)
		form.Set("message", req.Caption)
	}
	form.Set("access_token", fb.Token)

	var created struct {
		ID     string `json:"id"`
		PostID string `json:"post_id"`
	}
	err := do(ctx, fb.Client, call{
		method: http.MethodPost,
		url:    joinURL(fb.BaseURL, fb.version(), fb.PageID, edge),
		form:   form,
	}, &created, graphMessage)
	if err != nil {
		return "", asSubmission(fb.Name(), err)
	}
	return created.ID, nil
}

func (fb *Facebook) Status(ctx context.Context, job models.MediaJob) (publish.StatusReport, error) {
	if job.MediaType != models.MediaVideo {
		return publish.StatusReport{Token: photoReady}, nil
	}

	q := url.Values{}
	q.Set("fields", "id,status")
	q.Set("access_token", fb.Token)

	var object struct {
		ID     string `json:"id"`
		Status struct {
			VideoStatus     string `json:"video_status"`
			ProcessingPhase struct {
				Status string `json:"status"`
				Errors []struct {
					Message string `json:"message"`
				} `json:"errors"`
			} `json:"processing_phase"`
		} `json:"status"`
	}
	err := do(ctx, fb.Client, call{
		method: http.MethodGet,
		url:    joinURL(fb.BaseURL, fb.version(), job.JobID) + "?" + q.Encode(),
	}, &object, graphMessage)
	if err != nil {
		return publish.StatusReport{}, err
	}

	report := publish.StatusReport{Token: object.Status.VideoStatus}
	if errs := object.Status.ProcessingPhase.Errors; len(errs) > 0 {
		report.Reason = errs[0].Message
	}
	return report, nil
}

func (fb *Facebook) Finalize(ctx context.Context, job models.MediaJob) (string, error) {
	return job.JobID, nil
}
