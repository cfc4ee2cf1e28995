package publish

import (
	"context"

	"postrelay/models"
)

// SubmitRequest is the platform-agnostic creation payload.
type SubmitRequest struct {
	SourceURI     string
	MediaType     models.MediaType
	Caption       string
	Modifications map[string]any // render templates only
}

// StatusReport is one answer of a remote status endpoint.
type StatusReport struct {
	Token     string // raw status literal, e.g. FINISHED or succeeded
	ResultURI string // artifact URL when the remote reports one
	Reason    string // remote failure detail, verbatim
}

// Phase is the classification of a status token.
type Phase int

const (
	PhaseRunning Phase = iota
	PhaseSucceeded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	default:
		return "running"
	}
}

// TokenSet holds a platform's terminal status literals. Anything else,
// including an empty token, is non-terminal.
type TokenSet struct {
	Success []string
	Failure []string
}

// Classify matches the token exactly against the terminal sets.
func (ts TokenSet) Classify(token string) Phase {
	for _, s := range ts.Success {
		if token == s {
			return PhaseSucceeded
		}
	}
	for _, f := range ts.Failure {
		if token == f {
			return PhaseFailed
		}
	}
	return PhaseRunning
}

// Backend is one remote platform speaking the submit/poll/finalize protocol.
type Backend interface {
	Name() string
	Kind() models.Platform
	Tokens() TokenSet

	// CheckConfig must not touch the network.
	CheckConfig() error

	// Submit creates the remote job and returns its identifier. A non-2xx
	// response is reported as *SubmissionError.
	Submit(ctx context.Context, req SubmitRequest) (string, error)

	// Status reads the current remote status of the job. The job is a
	// snapshot; implementations must not keep it.
	Status(ctx context.Context, job models.MediaJob) (StatusReport, error)

	// Finalize makes the finished job visible and returns the published
	// object id (social platforms) or the artifact URL (render services).
	Finalize(ctx context.Context, job models.MediaJob) (string, error)
}
