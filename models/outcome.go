package models

import (
	"errors"
	"fmt"
	"sort"
)

// PlatformResult is the per-target entry of a PublishOutcome.
type PlatformResult struct {
	Success     bool   `json:"success"`
	ErrorKind   string `json:"error_kind,omitempty"`
	Reason      string `json:"reason,omitempty"`
	JobID       string `json:"job_id,omitempty"`
	PublishedID string `json:"published_id,omitempty"`
	ResultURI   string `json:"result_uri,omitempty"`
	Attempts    int    `json:"attempts"`
}

// PublishOutcome aggregates the attempts to publish one content item.
// OverallSuccess follows the at-least-one-success policy.
type PublishOutcome struct {
	PerPlatform    map[string]PlatformResult `json:"per_platform_results"`
	OverallSuccess bool                      `json:"overall_success"`
}

func NewPublishOutcome() PublishOutcome {
	return PublishOutcome{PerPlatform: make(map[string]PlatformResult)}
}

// Record stores the result for one platform and refreshes OverallSuccess.
func (o *PublishOutcome) Record(platform string, result PlatformResult) {
	if o.PerPlatform == nil {
		o.PerPlatform = make(map[string]PlatformResult)
	}
	o.PerPlatform[platform] = result
	if result.Success {
		o.OverallSuccess = true
	}
}

// Failures returns "platform: reason" for every failed platform, sorted by name.
func (o PublishOutcome) Failures() []string {
	names := make([]string, 0, len(o.PerPlatform))
	for name, r := range o.PerPlatform {
		if !r.Success {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	out := make([]string, 0, len(names))
	for _, name := range names {
		r := o.PerPlatform[name]
		out = append(out, fmt.Sprintf("%s: [%s] %s", name, r.ErrorKind, r.Reason))
	}
	return out
}

// Err joins all failure reasons, or returns nil when no platform failed.
func (o PublishOutcome) Err() error {
	failures := o.Failures()
	if len(failures) == 0 {
		return nil
	}
	errs := make([]error, 0, len(failures))
	for _, f := range failures {
		errs = append(errs, errors.New(f))
	}
	return errors.Join(errs...)
}
