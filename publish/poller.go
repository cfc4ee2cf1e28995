package publish

import (
	"context"
	"fmt"
	"time"

	"postrelay/logger"
	"postrelay/models"
)

// PollPolicy bounds the status loop. MaxAttempts is the hard ceiling on
// status calls; Deadline (optional) bounds the wall-clock wait.
type PollPolicy struct {
	Interval    time.Duration
	MaxAttempts int
	Deadline    time.Duration
}

// Poller drives a submitted job to a terminal state with fixed-interval polls.
type Poller struct {
	// Sleep waits between polls; replaced in tests.
	Sleep func(ctx context.Context, d time.Duration) error
	// Now is the clock used for the deadline.
	Now func() time.Time
}

func NewPoller() *Poller {
	return &Poller{Sleep: sleepContext, Now: time.Now}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Await polls until the job is finished, failed, or out of budget. On
// return the job is always terminal. A nil error means finished.
func (p *Poller) Await(ctx context.Context, b Backend, job *models.MediaJob, policy PollPolicy) error {
	if job.Status.Terminal() {
		return fmt.Errorf("%s: await job %s: %w", b.Name(), job.JobID, models.ErrJobImmutable)
	}

	sleep, now := p.Sleep, p.Now
	if sleep == nil {
		sleep = sleepContext
	}
	if now == nil {
		now = time.Now
	}

	maxAttempts := policy.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	var deadline time.Time
	if policy.Deadline > 0 {
		deadline = now().Add(policy.Deadline)
	}
	tokens := b.Tokens()

	for {
		if err := job.RecordPoll(); err != nil {
			return err
		}

		report, err := b.Status(ctx, *job)
		if err != nil {
			if ctx.Err() != nil {
				return p.timeOut(b, job, true, ctx.Err())
			}
			_ = job.Fail(err.Error())
			return fmt.Errorf("%s: status of job %s: %w", b.Name(), job.JobID, err)
		}

		switch tokens.Classify(report.Token) {
		case PhaseSucceeded:
			logger.Debugf("%s: job %s finished after %d polls", b.Name(), job.JobID, job.Attempts)
			return job.Finish(report.ResultURI)
		case PhaseFailed:
			reason := report.Reason
			if reason == "" {
				reason = report.Token
			}
			_ = job.Fail(reason)
			return &RemoteProcessingError{Target: b.Name(), JobID: job.JobID, Status: report.Token, Reason: report.Reason}
		}

		logger.Debugf("%s: job %s status %q (poll %d/%d)", b.Name(), job.JobID, report.Token, job.Attempts, maxAttempts)

		if job.Attempts >= maxAttempts {
			return p.timeOut(b, job, false, nil)
		}
		if !deadline.IsZero() && now().Add(policy.Interval).After(deadline) {
			return p.timeOut(b, job, true, nil)
		}
		if err := sleep(ctx, policy.Interval); err != nil {
			return p.timeOut(b, job, true, err)
		}
	}
}

func (p *Poller) timeOut(b Backend, job *models.MediaJob, deadline bool, cause error) error {
	timeoutErr := &PollTimeoutError{
		Target:   b.Name(),
		JobID:    job.JobID,
		Attempts: job.Attempts,
		Deadline: deadline,
		Err:      cause,
	}
	_ = job.TimeOut(timeoutErr.Error())
	return timeoutErr
}
