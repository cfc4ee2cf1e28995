package publish

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"postrelay/logger"
	"postrelay/models"
)

// ErrInvalidSource is wrapped by SubmissionError when the source URI is not
// a public https URL. Remote platforms cannot fetch anything else.
var ErrInvalidSource = errors.New("source uri must be an absolute https url")

// Submitter registers media with a backend. It never retries.
type Submitter struct{}

// Submit checks configuration, validates the source and issues exactly one
// creation request. The returned job is in the submitted state.
func (s *Submitter) Submit(ctx context.Context, b Backend, req SubmitRequest) (*models.MediaJob, error) {
	if err := b.CheckConfig(); err != nil {
		return nil, err
	}
	if err := validateSource(req.SourceURI); err != nil {
		return nil, &SubmissionError{Target: b.Name(), Err: err}
	}

	jobID, err := b.Submit(ctx, req)
	if err != nil {
		var subErr *SubmissionError
		if errors.As(err, &subErr) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: submit: %w", b.Name(), err)
	}
	if jobID == "" {
		return nil, &SubmissionError{Target: b.Name(), Err: ErrMissingID}
	}

	logger.Debugf("%s: submitted job %s for %s", b.Name(), jobID, req.SourceURI)
	return models.NewMediaJob(jobID, req.SourceURI, b.Name(), b.Kind(), req.MediaType), nil
}

func validateSource(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}
	if u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("%w: got %q", ErrInvalidSource, raw)
	}
	return nil
}
