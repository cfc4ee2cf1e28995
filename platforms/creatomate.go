package platforms

import (
	"context"
	"net/http"

	"postrelay/models"
	"postrelay/publish"
)

// Creatomate renders a template with modifications into a video.
type Creatomate struct {
	BaseURL    string
	APIKey     string
	TemplateID string
	Client     *http.Client
}

func NewCreatomate(creds models.PlatformCredentials, baseURL string, client *http.Client) *Creatomate {
	return &Creatomate{
		BaseURL:    baseURL,
		APIKey:     creds.CreatomateAPIKey,
		TemplateID: creds.CreatomateTemplate,
		Client:     client,
	}
}

type creatomateRender struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	URL          string `json:"url"`
	ErrorMessage string `json:"error_message"`
}

func (c *Creatomate) Name() string          { return "creatomate" }
func (c *Creatomate) Kind() models.Platform { return models.PlatformRenderService }

func (c *Creatomate) Tokens() publish.TokenSet {
	return publish.TokenSet{Success: []string{"succeeded"}, Failure: []string{"failed"}}
}

func (c *Creatomate) CheckConfig() error {
	var missing []string
	if c.APIKey == "" {
		missing = append(missing, "CREATOMATE_API_KEY")
	}
	if c.TemplateID == "" {
		missing = append(missing, "CREATOMATE_TEMPLATE_ID")
	}
	if len(missing) > 0 {
		return &publish.ConfigurationError{Target: c.Name(), Missing: missing}
	}
	return nil
}

func (c *Creatomate) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + c.APIKey}
}

func (c *Creatomate) Submit(ctx context.Context, req publish.SubmitRequest) (string, error) {
	body := map[string]any{
		"template_id":   c.TemplateID,
		"modifications": req.Modifications,
	}

	var renders []creatomateRender
	err := do(ctx, c.Client, call{
		method:  http.MethodPost,
		url:     joinURL(c.BaseURL, "renders"),
		headers: c.headers(),
		json:    body,
	}, &renders, plainMessage)
	if err != nil {
		return "", asSubmission(c.Name(), err)
	}
	if len(renders) == 0 {
		return "", &publish.SubmissionError{Target: c.Name(), Err: publish.ErrMissingID}
	}
	return renders[0].ID, nil
}

func (c *Creatomate) Status(ctx context.Context, job models.MediaJob) (publish.StatusReport, error) {
	var render creatomateRender
	err := do(ctx, c.Client, call{
		method:  http.MethodGet,
		url:     joinURL(c.BaseURL, "renders", job.JobID),
		headers: c.headers(),
	}, &render, plainMessage)
	if err != nil {
		return publish.StatusReport{}, err
	}
	return publish.StatusReport{Token: render.Status, ResultURI: render.URL, Reason: render.ErrorMessage}, nil
}

// Finalize returns the render URL; a finished render needs no publish call.
func (c *Creatomate) Finalize(ctx context.Context, job models.MediaJob) (string, error) {
	return job.ResultURI, nil
}
