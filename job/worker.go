package job

import (
	"context"
	"errors"
	"time"

	"postrelay/failures"
	"postrelay/logger"
	"postrelay/success"
	"postrelay/taskqueue"
)

// Pipeline processes the payload of one queue item.
type Pipeline interface {
	Process(ctx context.Context, payload []byte) Result
}

// Worker is the single consumer of the webhook queue.
type Worker struct {
	Queue    *taskqueue.Queue
	Pipeline Pipeline
	// MaxRetries bounds re-runs of failed pre-publish stages.
	MaxRetries int
	// RetryBackoff is multiplied by the attempt count before a retry runs.
	RetryBackoff time.Duration
}

// Run drains the queue until ctx ends or the queue is closed. An item that
// is interrupted by shutdown before publishing stays in flight and is
// recovered on the next start.
func (w *Worker) Run(ctx context.Context) {
	logger.Info("Worker started")
	for {
		item, err := w.Queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, taskqueue.ErrQueueClosed) {
				logger.Info("Worker stopped")
				return
			}
			logger.Errorf("Failed to dequeue: %v", err)
			if wait(ctx, time.Second) != nil {
				return
			}
			continue
		}

		if item.Attempts > 0 && w.RetryBackoff > 0 {
			logger.Debugf("Retrying %s after attempt %d", item.ID, item.Attempts)
			if wait(ctx, w.RetryBackoff*time.Duration(item.Attempts)) != nil {
				logger.Info("Worker stopped")
				return
			}
		}
		w.Handle(ctx, item)
	}
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Handle processes one dequeued item and settles it in the queue and the
// ledgers.
func (w *Worker) Handle(ctx context.Context, item taskqueue.Item) {
	attempt := item.Attempts + 1
	setState(item.ID, JobStateProcessing, func(s *JobStatus) { s.Attempts = attempt })
	logger.Infof("Processing delivery %s (attempt %d)", item.ID, attempt)

	res := w.Pipeline.Process(ctx, item.Payload)
	if ctx.Err() != nil && res.Stage != failures.StagePublish {
		logger.Warnf("Shutdown interrupted delivery %s, it will run again on the next start", item.ID)
		return
	}

	update := func(detail string) func(*JobStatus) {
		return func(s *JobStatus) {
			s.Profile, s.PostID, s.Attempts, s.Detail = res.Profile, res.PostID, attempt, detail
		}
	}

	switch {
	case res.Skipped != "":
		w.ack(item.ID)
		setState(item.ID, JobStateSkipped, update(res.Skipped))
		w.notify(item.ID, JobStateSkipped, attempt, res)
		logger.Infof("Delivery %s skipped: %s", item.ID, res.Skipped)

	case res.Err == nil:
		w.ack(item.ID)
		record := success.SuccessRecord{
			ID:       item.ID,
			Profile:  res.Profile,
			PostID:   res.PostID,
			MediaURL: res.MediaURL,
		}
		if res.Outcome != nil {
			record.Outcome = *res.Outcome
		}
		if err := success.StoreSuccess(record); err != nil {
			logger.Errorf("Failed to store success record for %s: %v", item.ID, err)
		}
		setState(item.ID, JobStateCompleted, update(res.MediaURL))
		w.notify(item.ID, JobStateCompleted, attempt, res)
		logger.Infof("Delivery %s completed", item.ID)

	case res.Retryable:
		dead, nacked, err := w.Queue.Nack(item.ID, res.Err, w.MaxRetries+1)
		if err != nil {
			logger.Errorf("Failed to requeue %s: %v", item.ID, err)
			return
		}
		if !dead {
			setState(item.ID, JobStateQueued, update(res.Err.Error()))
			logger.Warnf("Delivery %s failed at %s, requeued: %v", item.ID, res.Stage, res.Err)
			return
		}
		w.deadLetter(item, nacked.Attempts, res)

	default:
		w.ack(item.ID)
		w.deadLetter(item, attempt, res)
	}
}

func (w *Worker) ack(id string) {
	if err := w.Queue.Ack(id); err != nil {
		logger.Errorf("Failed to ack %s: %v", id, err)
	}
}

func (w *Worker) deadLetter(item taskqueue.Item, attempts int, res Result) {
	payload := res.Webhook
	if len(payload) == 0 {
		payload = item.Payload
	}
	record := failures.FailureRecord{
		ID:       item.ID,
		Profile:  res.Profile,
		PostID:   res.PostID,
		Stage:    res.Stage,
		Error:    res.Err.Error(),
		Attempts: attempts,
		Outcome:  res.Outcome,
		Payload:  payload,
	}
	if err := failures.StoreFailure(record); err != nil {
		logger.Errorf("Failed to store failure for %s: %v", item.ID, err)
	}

	setState(item.ID, JobStateFailed, func(s *JobStatus) {
		s.Profile, s.PostID, s.Attempts, s.Detail = res.Profile, res.PostID, attempts, res.Err.Error()
	})
	w.notify(item.ID, JobStateFailed, attempts, res)
	logger.Errorf("Delivery %s failed at %s after %d attempt(s): %v", item.ID, res.Stage, attempts, res.Err)
}

func (w *Worker) notify(id string, state JobState, attempts int, res Result) {
	// detached from the worker context so shutdown does not drop the report
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := sendCallback(ctx, id, state, attempts, res); err != nil {
		logger.Errorf("Failed to send callback for %s: %v", id, err)
	}
}
