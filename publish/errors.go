package publish

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds recorded in models.PlatformResult.ErrorKind.
const (
	KindConfiguration    = "configuration"
	KindSubmission       = "submission"
	KindPollTimeout      = "poll_timeout"
	KindRemoteProcessing = "remote_processing"
	KindPublish          = "publish"
	KindNetwork          = "network"
)

// ConfigurationError reports credentials or identifiers missing for a
// backend. It is raised before any network call.
type ConfigurationError struct {
	Target  string
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: missing configuration: %s", e.Target, strings.Join(e.Missing, ", "))
}

// SubmissionError reports a rejected or malformed job creation.
type SubmissionError struct {
	Target     string
	StatusCode int    // 0 when no HTTP response was received
	Body       string // remote response body, verbatim
	Err        error
}

func (e *SubmissionError) Error() string {
	msg := fmt.Sprintf("%s: submission failed", e.Target)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// PollTimeoutError reports that no terminal status was seen in time.
type PollTimeoutError struct {
	Target   string
	JobID    string
	Attempts int
	Deadline bool // true when the wall-clock deadline, not the attempt ceiling, fired
	Err      error
}

func (e *PollTimeoutError) Error() string {
	limit := "attempt ceiling"
	if e.Deadline {
		limit = "deadline"
	}
	msg := fmt.Sprintf("%s: job %s not finished after %d polls (%s reached)", e.Target, e.JobID, e.Attempts, limit)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PollTimeoutError) Unwrap() error { return e.Err }

// RemoteProcessingError reports a terminal failure status from the remote.
type RemoteProcessingError struct {
	Target string
	JobID  string
	Status string
	Reason string
}

func (e *RemoteProcessingError) Error() string {
	msg := fmt.Sprintf("%s: job %s failed remotely with status %s", e.Target, e.JobID, e.Status)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// PublishError reports a rejected finalize call.
type PublishError struct {
	Target     string
	JobID      string
	StatusCode int
	Body       string
	Err        error
}

func (e *PublishError) Error() string {
	msg := fmt.Sprintf("%s: publish of job %s failed", e.Target, e.JobID)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (e *PublishError) Unwrap() error { return e.Err }

// ErrAlreadyPublished is wrapped by PublishError when a job instance was
// already finalized; the call is refused without reaching the remote.
var ErrAlreadyPublished = errors.New("job already published")

// ErrNotFinished is wrapped by PublishError when finalize is called before
// the job reached the finished state.
var ErrNotFinished = errors.New("job is not finished")

// ErrMissingID is wrapped when a remote response lacks the expected id field.
var ErrMissingID = errors.New("response is missing the id field")

// KindOf maps an error onto one of the Kind* constants.
func KindOf(err error) string {
	var (
		cfgErr     *ConfigurationError
		subErr     *SubmissionError
		timeoutErr *PollTimeoutError
		remoteErr  *RemoteProcessingError
		pubErr     *PublishError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &cfgErr):
		return KindConfiguration
	case errors.As(err, &subErr):
		return KindSubmission
	case errors.As(err, &timeoutErr):
		return KindPollTimeout
	case errors.As(err, &remoteErr):
		return KindRemoteProcessing
	case errors.As(err, &pubErr):
		return KindPublish
	default:
		return KindNetwork
	}
}
