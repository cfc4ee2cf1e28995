// Package platforms implements publish.Backend for the social platforms
// and render services a profile can use.
package platforms

import (
	"fmt"
	"net/http"

	"postrelay/config"
	"postrelay/models"
	"postrelay/publish"
)

var (
	_ publish.Backend = (*Instagram)(nil)
	_ publish.Backend = (*Facebook)(nil)
	_ publish.Backend = (*Creatomate)(nil)
	_ publish.Backend = (*Shotstack)(nil)
)

// Backend builds the named backend for a profile.
func Backend(name string, s config.Settings, creds models.PlatformCredentials, client *http.Client) (publish.Backend, error) {
	switch name {
	case "instagram":
		return NewInstagram(creds, s.GraphBaseURL, client), nil
	case "facebook":
		return NewFacebook(creds, s.GraphBaseURL, client), nil
	case "creatomate":
		return NewCreatomate(creds, s.CreatomateBaseURL, client), nil
	case "shotstack":
		return NewShotstack(creds, s.ShotstackBaseURL, client), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", name)
	}
}

// Target pairs the named backend with its configured poll policy.
func Target(name string, s config.Settings, creds models.PlatformCredentials, client *http.Client) (publish.Target, error) {
	b, err := Backend(name, s, creds, client)
	if err != nil {
		return publish.Target{}, err
	}
	return publish.Target{Backend: b, Policy: publish.PollPolicy(s.Policy(name))}, nil
}

// Targets returns the social targets of a profile in declaration order.
func Targets(s config.Settings, p models.Profile, client *http.Client) ([]publish.Target, error) {
	targets := make([]publish.Target, 0, len(p.Targets))
	for _, name := range p.Targets {
		t, err := Target(name, s, p.Platforms, client)
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", p.Name, err)
		}
		targets = append(targets, t)
	}
	return targets, nil
}
