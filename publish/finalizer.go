package publish

import (
	"context"
	"errors"

	"postrelay/models"
)

// Finalizer makes a finished job publicly visible. Calls are never retried:
// a repeated publish can produce a duplicate post.
type Finalizer struct{}

// Finalize issues the backend's publish call once and records the published id.
func (f *Finalizer) Finalize(ctx context.Context, b Backend, job *models.MediaJob) (string, error) {
	if job.PublishedID != "" {
		return "", &PublishError{Target: b.Name(), JobID: job.JobID, Err: ErrAlreadyPublished}
	}
	if job.Status != models.StatusFinished {
		return "", &PublishError{Target: b.Name(), JobID: job.JobID, Err: ErrNotFinished}
	}

	id, err := b.Finalize(ctx, *job)
	if err != nil {
		var pubErr *PublishError
		if errors.As(err, &pubErr) {
			return "", err
		}
		return "", &PublishError{Target: b.Name(), JobID: job.JobID, Err: err}
	}
	if id == "" {
		return "", &PublishError{Target: b.Name(), JobID: job.JobID, Err: ErrMissingID}
	}

	job.PublishedID = id
	return id, nil
}
