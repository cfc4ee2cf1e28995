package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"postrelay/failures"
	"postrelay/logger"
	"postrelay/models"
	"postrelay/success"
	"postrelay/taskqueue"
)

func init() {
	logger.SetOutput(io.Discard)
}

type fakePipeline struct {
	mu      sync.Mutex
	results []Result
	calls   int
}

func (f *fakePipeline) Process(ctx context.Context, payload []byte) Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.results[min(f.calls, len(f.results)-1)]
	f.calls++
	return r
}

func (f *fakePipeline) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func setupStores(t *testing.T) *taskqueue.Queue {
	t.Helper()
	dir := t.TempDir()
	if err := failures.Init(filepath.Join(dir, "failures.db")); err != nil {
		t.Fatalf("Failed to init failure store: %v", err)
	}
	if err := success.Init(filepath.Join(dir, "success.db")); err != nil {
		t.Fatalf("Failed to init success store: %v", err)
	}
	q, err := taskqueue.Open(filepath.Join(dir, "queue.db"), 8)
	if err != nil {
		t.Fatalf("Failed to open queue: %v", err)
	}
	t.Cleanup(func() {
		q.Close()
		failures.Close()
		success.Close()
	})
	return q
}

func enqueue(t *testing.T, q *taskqueue.Queue) taskqueue.Item {
	t.Helper()
	body, _ := json.Marshal(models.QueuedWebhook{
		Profile:    "default",
		ReceivedAt: time.Now(),
		Payload:    json.RawMessage(`{"post_id":7}`),
	})
	item, err := q.Enqueue(body)
	if err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}
	MarkQueued(item.ID, "default")
	return item
}

func dequeue(t *testing.T, q *taskqueue.Queue) taskqueue.Item {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	item, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Failed to dequeue: %v", err)
	}
	return item
}

func publishedOutcome() *models.PublishOutcome {
	o := models.NewPublishOutcome()
	o.Record("instagram", models.PlatformResult{Success: true, PublishedID: "p1", Attempts: 2})
	return &o
}

func TestWorkerCompletes(t *testing.T) {
	q := setupStores(t)
	item := enqueue(t, q)

	w := &Worker{Queue: q, Pipeline: &fakePipeline{results: []Result{{
		Stage:    failures.StagePublish,
		Profile:  "default",
		PostID:   7,
		MediaURL: "https://cdn.example.com/post_social_7.jpg",
		Outcome:  publishedOutcome(),
	}}}, MaxRetries: 3}
	w.Handle(context.Background(), dequeue(t, q))

	if q.Len() != 0 {
		t.Errorf("Expected empty queue, got %d", q.Len())
	}
	record, err := success.GetSuccess(item.ID)
	if err != nil || record == nil {
		t.Fatalf("Expected success record, got %v, %v", record, err)
	}
	if record.PostID != 7 || len(record.Published()) != 1 {
		t.Errorf("Unexpected success record: %+v", record)
	}
	status, ok := GetJobStatus(item.ID)
	if !ok || status.State != JobStateCompleted || status.Attempts != 1 {
		t.Errorf("Unexpected status: %+v", status)
	}
}

func TestWorkerRetriesThenDeadLetters(t *testing.T) {
	q := setupStores(t)
	item := enqueue(t, q)

	pipeline := &fakePipeline{results: []Result{{
		Stage:     failures.StagePrepare,
		Profile:   "default",
		PostID:    7,
		Err:       errors.New("wordpress: status 502"),
		Retryable: true,
	}}}
	w := &Worker{Queue: q, Pipeline: pipeline, MaxRetries: 2}

	for i := 0; i < 2; i++ {
		w.Handle(context.Background(), dequeue(t, q))
		if !q.Pending(item.ID) {
			t.Fatalf("Expected item requeued after attempt %d", i+1)
		}
		if status, _ := GetJobStatus(item.ID); status.State != JobStateQueued {
			t.Errorf("Expected queued state, got %s", status.State)
		}
	}
	w.Handle(context.Background(), dequeue(t, q))

	if pipeline.count() != 3 {
		t.Errorf("Expected 3 runs, got %d", pipeline.count())
	}
	if q.Len() != 0 {
		t.Errorf("Expected empty queue, got %d", q.Len())
	}
	record, err := failures.GetFailure(item.ID)
	if err != nil || record == nil {
		t.Fatalf("Expected failure record, got %v, %v", record, err)
	}
	if record.Attempts != 3 || record.Stage != failures.StagePrepare {
		t.Errorf("Unexpected failure record: %+v", record)
	}
	if len(record.Payload) == 0 {
		t.Errorf("Expected payload in failure record")
	}
	if status, _ := GetJobStatus(item.ID); status.State != JobStateFailed {
		t.Errorf("Expected failed state, got %s", status.State)
	}
}

func TestWorkerPublishFailureIsNotRetried(t *testing.T) {
	q := setupStores(t)
	item := enqueue(t, q)

	outcome := models.NewPublishOutcome()
	outcome.Record("instagram", models.PlatformResult{ErrorKind: "submission", Reason: "HTTP 400"})
	pipeline := &fakePipeline{results: []Result{{
		Stage:   failures.StagePublish,
		PostID:  7,
		Outcome: &outcome,
		Err:     errors.New("no platform accepted post 7"),
	}}}
	w := &Worker{Queue: q, Pipeline: pipeline, MaxRetries: 3}
	w.Handle(context.Background(), dequeue(t, q))

	if pipeline.count() != 1 || q.Len() != 0 {
		t.Fatalf("Expected a single run and empty queue, got %d runs, %d queued", pipeline.count(), q.Len())
	}
	record, _ := failures.GetFailure(item.ID)
	if record == nil || record.Stage != failures.StagePublish || record.Outcome == nil {
		t.Fatalf("Unexpected failure record: %+v", record)
	}
}

func TestWorkerSkipAcks(t *testing.T) {
	q := setupStores(t)
	item := enqueue(t, q)

	w := &Worker{Queue: q, Pipeline: &fakePipeline{results: []Result{{Stage: failures.StagePrepare, Skipped: "not_published"}}}}
	w.Handle(context.Background(), dequeue(t, q))

	if q.Len() != 0 {
		t.Errorf("Expected empty queue, got %d", q.Len())
	}
	if r, _ := failures.GetFailure(item.ID); r != nil {
		t.Errorf("Skipped post must not be dead-lettered")
	}
	status, _ := GetJobStatus(item.ID)
	if status.State != JobStateSkipped || status.Detail != "not_published" {
		t.Errorf("Unexpected status: %+v", status)
	}
}

func TestWorkerLeavesInterruptedItemInFlight(t *testing.T) {
	q := setupStores(t)
	item := enqueue(t, q)

	ctx, cancel := context.WithCancel(context.Background())
	got := dequeue(t, q)
	cancel()
	w := &Worker{Queue: q, Pipeline: &fakePipeline{results: []Result{{
		Stage:     failures.StagePrepare,
		Err:       context.Canceled,
		Retryable: true,
	}}}}
	w.Handle(ctx, got)

	if q.Len() != 1 || q.Pending(item.ID) {
		t.Errorf("Expected item still in flight")
	}
	if r, _ := failures.GetFailure(item.ID); r != nil {
		t.Errorf("Interrupted delivery must not be dead-lettered")
	}
}

func TestWorkerCallback(t *testing.T) {
	q := setupStores(t)
	item := enqueue(t, q)

	received := make(chan callbackPayload, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p callbackPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("Failed to decode callback: %v", err)
		}
		if r.Header.Get("User-Agent") != userAgent {
			t.Errorf("Unexpected user agent %q", r.Header.Get("User-Agent"))
		}
		received <- p
	}))
	defer srv.Close()

	w := &Worker{Queue: q, Pipeline: &fakePipeline{results: []Result{{
		Stage:       failures.StagePublish,
		PostID:      7,
		Outcome:     publishedOutcome(),
		CallbackURL: srv.URL,
	}}}}
	w.Handle(context.Background(), dequeue(t, q))

	select {
	case p := <-received:
		if p.ID != item.ID || p.Status != "completed" || p.PostID != 7 || p.Outcome == nil {
			t.Errorf("Unexpected callback payload: %+v", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Callback was not sent")
	}
}

func TestWorkerRun(t *testing.T) {
	q := setupStores(t)
	w := &Worker{Queue: q, Pipeline: &fakePipeline{results: []Result{{Stage: failures.StagePublish, Outcome: publishedOutcome()}}}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	item := enqueue(t, q)
	deadline := time.Now().Add(2 * time.Second)
	for {
		if s, _ := GetJobStatus(item.ID); s.State == JobStateCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Worker did not complete the delivery")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Worker did not stop on cancellation")
	}
}

func TestCancelJob(t *testing.T) {
	q := setupStores(t)

	queued := enqueue(t, q)
	if err := CancelJob(q, queued.ID); err != nil {
		t.Fatalf("Expected cancel to succeed: %v", err)
	}
	if q.Pending(queued.ID) {
		t.Error("Cancelled item still pending")
	}
	if s, _ := GetJobStatus(queued.ID); s.State != JobStateCancelled {
		t.Errorf("Expected cancelled, got %s", s.State)
	}
	if err := CancelJob(q, queued.ID); !errors.Is(err, ErrNotCancellable) {
		t.Errorf("Expected ErrNotCancellable on second cancel, got %v", err)
	}

	if err := CancelJob(q, "missing"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("Expected ErrJobNotFound, got %v", err)
	}

	running := enqueue(t, q)
	dequeue(t, q)
	if err := CancelJob(q, running.ID); !errors.Is(err, ErrNotCancellable) {
		t.Errorf("Expected in-flight item to be not cancellable, got %v", err)
	}
	setState(running.ID, JobStateProcessing, nil)
	if err := CancelJob(q, running.ID); !errors.Is(err, ErrNotCancellable) {
		t.Errorf("Expected processing item to be not cancellable, got %v", err)
	}
}

func TestPruneStates(t *testing.T) {
	setState("old-done", JobStateCompleted, func(s *JobStatus) { s.UpdatedAt = time.Now().Add(-48 * time.Hour) })
	setState("old-queued", JobStateQueued, func(s *JobStatus) { s.UpdatedAt = time.Now().Add(-48 * time.Hour) })

	PruneStates(24 * time.Hour)

	if _, ok := GetJobStatus("old-done"); ok {
		t.Error("Expected terminal state to be pruned")
	}
	if _, ok := GetJobStatus("old-queued"); !ok {
		t.Error("Queued state must survive pruning")
	}
}

func TestJobStatesConcurrency(t *testing.T) {
	done := make(chan bool, 10)

	for i := 0; i < 10; i++ {
		go func(id int) {
			key := fmt.Sprintf("concurrent-%d", id)
			MarkQueued(key, "default")
			if _, ok := GetJobStatus(key); !ok {
				t.Errorf("No state found in goroutine %d", id)
			}
			setState(key, JobStateCompleted, nil)
			done <- true
		}(i)
	}

	for i := 0; i < 10; i++ {
		<-done
	}
	for i := 0; i < 10; i++ {
		if s, _ := GetJobStatus(fmt.Sprintf("concurrent-%d", i)); s.State != JobStateCompleted {
			t.Errorf("Expected completed state for %d, got %s", i, s.State)
		}
	}
}
