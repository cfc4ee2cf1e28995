package models

import (
	"fmt"
	"regexp"
)

// PlatformCredentials carries every secret/identifier the platform backends
// need. It is built by the config package and passed to constructors.
type PlatformCredentials struct {
	MetaAccessToken    string `json:"meta_access_token,omitempty"`
	InstagramUserID    string `json:"instagram_user_id,omitempty"`
	FacebookPageID     string `json:"facebook_page_id,omitempty"`
	GraphAPIVersion    string `json:"graph_api_version,omitempty"`
	CreatomateAPIKey   string `json:"creatomate_api_key,omitempty"`
	CreatomateTemplate string `json:"creatomate_template_id,omitempty"`
	ShotstackAPIKey    string `json:"shotstack_api_key,omitempty"`
	ShotstackTemplate  string `json:"shotstack_template_id,omitempty"`
	ShotstackEnv       string `json:"shotstack_env,omitempty"` // "stage" or "v1"
}

// WordPressCredentials points at the originating WordPress site.
type WordPressCredentials struct {
	BaseURL  string `json:"base_url"`
	User     string `json:"user"`
	Password string `json:"password"`
}

// Configured reports whether all three WordPress settings are present.
func (w WordPressCredentials) Configured() bool {
	return w.BaseURL != "" && w.User != "" && w.Password != ""
}

// Profile describes one publishing site: where posts come from, how media is
// prepared and hosted, and which platforms receive it.
type Profile struct {
	Name      string               `json:"name"`
	WordPress WordPressCredentials `json:"wordpress"`
	Platforms PlatformCredentials  `json:"platforms"`
	Targets   []string             `json:"targets"` // instagram, facebook

	Mode             MediaType `json:"mode"`                     // image or video
	RenderService    string    `json:"render_service,omitempty"` // creatomate or shotstack
	RenderTitleField string    `json:"render_title_field,omitempty"`
	RenderImageField string    `json:"render_image_field,omitempty"`

	HostBackend    string `json:"host_backend"`               // wordpress, s3, gcs, sftp, directServe
	HostStorageKey string `json:"host_storage_key,omitempty"` // credentials store key for s3/gcs/sftp
	Rehost         bool   `json:"rehost"`                     // rehost rendered videos instead of linking the render URL

	ForwardURL  string `json:"forward_url,omitempty"`
	CallbackURL string `json:"callback_url,omitempty"`

	CaptionFooter string   `json:"caption_footer,omitempty"`
	Hashtags      []string `json:"hashtags,omitempty"`
}

// Profile names end up in URLs and directory names.
var profileName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

var knownTargets = map[string]bool{"instagram": true, "facebook": true}

var knownHosts = map[string]bool{"wordpress": true, "s3": true, "gcs": true, "sftp": true, "directServe": true}

// Validate checks the profile shape. Missing platform credentials are not an
// error here: they surface per platform as configuration errors at publish time.
func (p Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("profile name is required")
	}
	if !profileName.MatchString(p.Name) {
		return fmt.Errorf("invalid profile name %q: use letters, digits, - and _", p.Name)
	}
	if len(p.Targets) == 0 {
		return fmt.Errorf("profile %s: at least one target is required", p.Name)
	}
	seen := make(map[string]bool, len(p.Targets))
	for _, t := range p.Targets {
		if !knownTargets[t] {
			return fmt.Errorf("profile %s: unknown target %q", p.Name, t)
		}
		if seen[t] {
			return fmt.Errorf("profile %s: target %q listed twice", p.Name, t)
		}
		seen[t] = true
	}
	switch p.Mode {
	case MediaImage:
	case MediaVideo:
		if p.RenderService != "creatomate" && p.RenderService != "shotstack" {
			return fmt.Errorf("profile %s: video mode needs render_service creatomate or shotstack, got %q", p.Name, p.RenderService)
		}
	default:
		return fmt.Errorf("profile %s: unknown mode %q", p.Name, p.Mode)
	}
	if !knownHosts[p.HostBackend] {
		return fmt.Errorf("profile %s: unknown host backend %q", p.Name, p.HostBackend)
	}
	if p.HostBackend != "wordpress" && p.HostBackend != "directServe" && p.HostStorageKey == "" {
		return fmt.Errorf("profile %s: host backend %s needs host_storage_key", p.Name, p.HostBackend)
	}
	return nil
}
