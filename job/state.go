package job

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"postrelay/taskqueue"
)

// JobState represents the current state of a webhook delivery
type JobState int

const (
	JobStateQueued JobState = iota
	JobStateProcessing
	JobStateCompleted
	JobStateFailed
	JobStateSkipped
	JobStateCancelled
)

func (s JobState) String() string {
	switch s {
	case JobStateQueued:
		return "queued"
	case JobStateProcessing:
		return "processing"
	case JobStateCompleted:
		return "completed"
	case JobStateFailed:
		return "failed"
	case JobStateSkipped:
		return "skipped"
	case JobStateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func (s JobState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *JobState) UnmarshalText(text []byte) error {
	for st := JobStateQueued; st <= JobStateCancelled; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown job state %q", text)
}

// Terminal reports whether the delivery will not run again.
func (s JobState) Terminal() bool {
	return s != JobStateQueued && s != JobStateProcessing
}

var (
	ErrJobNotFound    = errors.New("job not found")
	ErrNotCancellable = errors.New("job cannot be cancelled")
)

// JobStatus is the in-memory view served by /status.
type JobStatus struct {
	ID        string    `json:"id"`
	State     JobState  `json:"state"`
	Profile   string    `json:"profile,omitempty"`
	PostID    int64     `json:"post_id,omitempty"`
	Attempts  int       `json:"attempts"`
	Detail    string    `json:"detail,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

var (
	jobStates = make(map[string]JobStatus) // queue item id -> status
	mu        sync.RWMutex
)

// MarkQueued registers a freshly enqueued delivery
func MarkQueued(id, profile string) {
	setState(id, JobStateQueued, func(s *JobStatus) { s.Profile = profile })
}

func setState(id string, state JobState, update func(*JobStatus)) {
	mu.Lock()
	defer mu.Unlock()
	s := jobStates[id]
	s.ID = id
	s.State = state
	s.UpdatedAt = time.Now()
	if update != nil {
		update(&s)
	}
	jobStates[id] = s
}

// GetJobStatus returns the current status of a delivery
func GetJobStatus(id string) (JobStatus, bool) {
	mu.RLock()
	defer mu.RUnlock()
	s, exists := jobStates[id]
	return s, exists
}

// CancelJob removes a delivery that is still waiting in the queue.
// Deliveries that started processing cannot be cancelled.
func CancelJob(q *taskqueue.Queue, id string) error {
	mu.Lock()
	defer mu.Unlock()

	s, exists := jobStates[id]
	if !exists {
		// recovered from disk after a restart, never seen by this process
		if !q.Pending(id) {
			return fmt.Errorf("%w: %s", ErrJobNotFound, id)
		}
		s = JobStatus{ID: id, State: JobStateQueued}
	}

	switch s.State {
	case JobStateProcessing:
		return fmt.Errorf("%w: job %s is currently processing", ErrNotCancellable, id)
	case JobStateQueued:
		if err := q.Remove(id); err != nil {
			if errors.Is(err, taskqueue.ErrInFlight) || errors.Is(err, taskqueue.ErrNotFound) {
				return fmt.Errorf("%w: job %s was already picked up", ErrNotCancellable, id)
			}
			return err
		}
		s.State = JobStateCancelled
		s.UpdatedAt = time.Now()
		jobStates[id] = s
		return nil
	default:
		return fmt.Errorf("%w: job %s is already %s", ErrNotCancellable, id, s.State)
	}
}

// PruneStates forgets terminal states older than maxAge. The ledgers keep
// the durable record.
func PruneStates(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	mu.Lock()
	defer mu.Unlock()
	n := 0
	for id, s := range jobStates {
		if s.State.Terminal() && s.UpdatedAt.Before(cutoff) {
			delete(jobStates, id)
			n++
		}
	}
	return n
}
