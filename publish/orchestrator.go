package publish

import (
	"context"
	"fmt"

	"postrelay/logger"
	"postrelay/models"
)

// Target pairs a backend with the polling budget to use against it.
type Target struct {
	Backend Backend
	Policy  PollPolicy
}

// ContentItem is the prepared media plus caption to distribute.
type ContentItem struct {
	ID            string // correlation id for logs, usually the post id
	SourceURI     string
	MediaType     models.MediaType
	Caption       string
	Modifications map[string]any
}

func (c ContentItem) request() SubmitRequest {
	return SubmitRequest{
		SourceURI:     c.SourceURI,
		MediaType:     c.MediaType,
		Caption:       c.Caption,
		Modifications: c.Modifications,
	}
}

// Orchestrator runs the submit, poll, finalize sequence per target.
type Orchestrator struct {
	Submitter *Submitter
	Poller    *Poller
	Finalizer *Finalizer
}

func NewOrchestrator() *Orchestrator {
	return &Orchestrator{
		Submitter: &Submitter{},
		Poller:    NewPoller(),
		Finalizer: &Finalizer{},
	}
}

// Run drives one job through the full protocol. The returned job is nil
// only when submission failed.
func (o *Orchestrator) Run(ctx context.Context, t Target, req SubmitRequest) (*models.MediaJob, error) {
	job, err := o.Submitter.Submit(ctx, t.Backend, req)
	if err != nil {
		return nil, err
	}
	if err := o.Poller.Await(ctx, t.Backend, job, t.Policy); err != nil {
		return job, err
	}
	if _, err := o.Finalizer.Finalize(ctx, t.Backend, job); err != nil {
		return job, err
	}
	return job, nil
}

// Render runs the protocol against a render service and returns the
// artifact URL of the finished render.
func (o *Orchestrator) Render(ctx context.Context, t Target, req SubmitRequest) (string, error) {
	job, err := o.Run(ctx, t, req)
	if err != nil {
		return "", err
	}
	if job.ResultURI == "" {
		return "", fmt.Errorf("%s: render %s finished without a result url", t.Backend.Name(), job.JobID)
	}
	return job.ResultURI, nil
}

// Publish distributes item to every target, one after another. A failure
// on one target never prevents the attempt on the next. OverallSuccess is
// set when at least one target published.
func (o *Orchestrator) Publish(ctx context.Context, item ContentItem, targets []Target) models.PublishOutcome {
	outcome := models.NewPublishOutcome()
	req := item.request()

	for _, t := range targets {
		name := t.Backend.Name()
		log := logger.With(map[string]any{"item": item.ID, "target": name})

		job, err := o.Run(ctx, t, req)
		result := models.PlatformResult{Success: err == nil}
		if job != nil {
			result.JobID = job.JobID
			result.Attempts = job.Attempts
			result.ResultURI = job.ResultURI
			result.PublishedID = job.PublishedID
		}
		if err != nil {
			result.ErrorKind = KindOf(err)
			result.Reason = err.Error()
			log.Error().Str("kind", result.ErrorKind).Err(err).Msg("publish failed")
		} else {
			log.Info().Str("published_id", result.PublishedID).Msg("published")
		}
		outcome.Record(name, result)
	}

	return outcome
}
