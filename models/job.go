package models

import (
	"errors"
	"fmt"
	"time"
)

// Platform is the kind of remote system a MediaJob is registered with.
type Platform string

const (
	PlatformInstagram     Platform = "instagram"
	PlatformFacebook      Platform = "facebook"
	PlatformRenderService Platform = "render_service"
)

// MediaType distinguishes still images from videos/reels.
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

// JobStatus is the lifecycle state of a MediaJob.
type JobStatus string

const (
	StatusSubmitted  JobStatus = "submitted"
	StatusInProgress JobStatus = "in_progress"
	StatusFinished   JobStatus = "finished"
	StatusError      JobStatus = "error"
	StatusTimedOut   JobStatus = "timed_out"
)

// Terminal reports whether the status can never change again.
func (s JobStatus) Terminal() bool {
	return s == StatusFinished || s == StatusError || s == StatusTimedOut
}

// ErrJobImmutable is returned when a transition is attempted on a job that
// already reached a terminal state.
var ErrJobImmutable = errors.New("media job already in a terminal state")

// MediaJob is one in-flight asynchronous processing/publishing request.
// It is owned by the orchestrator invocation that created it.
type MediaJob struct {
	JobID          string    `json:"job_id"`
	SourceURI      string    `json:"source_uri"`
	TargetPlatform Platform  `json:"target_platform"`
	Target         string    `json:"target"` // backend name, e.g. "creatomate"
	MediaType      MediaType `json:"media_type"`
	Status         JobStatus `json:"status"`
	Attempts       int       `json:"attempts"`
	ResultURI      string    `json:"result_uri,omitempty"`
	FailureReason  string    `json:"failure_reason,omitempty"`
	PublishedID    string    `json:"published_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewMediaJob creates a job in the submitted state.
func NewMediaJob(jobID, sourceURI, target string, platform Platform, mediaType MediaType) *MediaJob {
	return &MediaJob{
		JobID:          jobID,
		SourceURI:      sourceURI,
		TargetPlatform: platform,
		Target:         target,
		MediaType:      mediaType,
		Status:         StatusSubmitted,
		CreatedAt:      time.Now(),
	}
}

// RecordPoll counts one status poll and moves a submitted job to in_progress.
func (j *MediaJob) RecordPoll() error {
	if j.Status.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrJobImmutable, j.JobID, j.Status)
	}
	j.Attempts++
	j.Status = StatusInProgress
	return nil
}

// Finish moves the job to finished with the artifact location.
func (j *MediaJob) Finish(resultURI string) error {
	if err := j.terminate(StatusFinished); err != nil {
		return err
	}
	j.ResultURI = resultURI
	return nil
}

// Fail moves the job to error, keeping the remote reason verbatim.
func (j *MediaJob) Fail(reason string) error {
	if err := j.terminate(StatusError); err != nil {
		return err
	}
	j.FailureReason = reason
	return nil
}

// TimeOut moves the job to timed_out.
func (j *MediaJob) TimeOut(reason string) error {
	if err := j.terminate(StatusTimedOut); err != nil {
		return err
	}
	j.FailureReason = reason
	return nil
}

func (j *MediaJob) terminate(to JobStatus) error {
	if j.Status.Terminal() {
		return fmt.Errorf("%w: %s is %s, cannot become %s", ErrJobImmutable, j.JobID, j.Status, to)
	}
	j.Status = to
	return nil
}
