package platforms

import (
	"context"
	"net/http"
	"sort"

	"postrelay/models"
	"postrelay/publish"
)

// Shotstack renders a saved template, replacing merge fields.
type Shotstack struct {
	BaseURL    string
	Env        string // "stage" or "v1"
	APIKey     string
	TemplateID string
	Client     *http.Client
}

func NewShotstack(creds models.PlatformCredentials, baseURL string, client *http.Client) *Shotstack {
	return &Shotstack{
		BaseURL:    baseURL,
		Env:        creds.ShotstackEnv,
		APIKey:     creds.ShotstackAPIKey,
		TemplateID: creds.ShotstackTemplate,
		Client:     client,
	}
}

type mergeField struct {
	Find    string `json:"find"`
	Replace any    `json:"replace"`
}

func (s *Shotstack) Name() string          { return "shotstack" }
func (s *Shotstack) Kind() models.Platform { return models.PlatformRenderService }

func (s *Shotstack) Tokens() publish.TokenSet {
	return publish.TokenSet{Success: []string{"done"}, Failure: []string{"failed"}}
}

func (s *Shotstack) CheckConfig() error {
	var missing []string
	if s.APIKey == "" {
		missing = append(missing, "SHOTSTACK_API_KEY")
	}
	if s.TemplateID == "" {
		missing = append(missing, "SHOTSTACK_TEMPLATE_ID")
	}
	if len(missing) > 0 {
		return &publish.ConfigurationError{Target: s.Name(), Missing: missing}
	}
	return nil
}

func (s *Shotstack) env() string {
	if s.Env == "" {
		return "v1"
	}
	return s.Env
}

func (s *Shotstack) headers() map[string]string {
	return map[string]string{"x-api-key": s.APIKey}
}

// merge turns modifications into merge fields in key order.
func merge(mods map[string]any) []mergeField {
	keys := make([]string, 0, len(mods))
	for k := range mods {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]mergeField, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, mergeField{Find: k, Replace: mods[k]})
	}
	return fields
}

func (s *Shotstack) Submit(ctx context.Context, req publish.SubmitRequest) (string, error) {
	body := map[string]any{
		"id":    s.TemplateID,
		"merge": merge(req.Modifications),
	}

	var queued struct {
		Success  bool   `json:"success"`
		Message  string `json:"message"`
		Response struct {
			ID string `json:"id"`
		} `json:"response"`
	}
	err := do(ctx, s.Client, call{
		method:  http.MethodPost,
		url:     joinURL(s.BaseURL, s.env(), "templates", "render"),
		headers: s.headers(),
		json:    body,
	}, &queued, plainMessage)
	if err != nil {
		return "", asSubmission(s.Name(), err)
	}
	return queued.Response.ID, nil
}

func (s *Shotstack) Status(ctx context.Context, job models.MediaJob) (publish.StatusReport, error) {
	var render struct {
		Response struct {
			Status string `json:"status"`
			URL    string `json:"url"`
			Error  string `json:"error"`
		} `json:"response"`
	}
	err := do(ctx, s.Client, call{
		method:  http.MethodGet,
		url:     joinURL(s.BaseURL, s.env(), "render", job.JobID),
		headers: s.headers(),
	}, &render, plainMessage)
	if err != nil {
		return publish.StatusReport{}, err
	}
	r := render.Response
	return publish.StatusReport{Token: r.Status, ResultURI: r.URL, Reason: r.Error}, nil
}

func (s *Shotstack) Finalize(ctx context.Context, job models.MediaJob) (string, error) {
	return job.ResultURI, nil
}
