package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"postrelay/caption"
	"postrelay/config"
	"postrelay/credentials"
	"postrelay/encoder"
	"postrelay/failures"
	"postrelay/hosting"
	"postrelay/logger"
	"postrelay/models"
	"postrelay/platforms"
	"postrelay/publish"
	"postrelay/wordpress"
)

// SkipPostNotFound is reported when WordPress no longer knows the post.
const SkipPostNotFound = "post_not_found"

// Result is what one pass of the pipeline produced for a delivery.
type Result struct {
	Stage     string
	Profile   string
	PostID    int64
	Skipped   string // non-empty when the post is deliberately not published
	MediaURL  string
	Outcome   *models.PublishOutcome
	Err       error
	Retryable bool

	Webhook     json.RawMessage // original webhook body
	CallbackURL string
}

// ProfileLookup resolves a profile name to its configuration.
type ProfileLookup func(name string) (models.Profile, error)

// StoredProfiles serves the environment's default profile and falls back to
// profiles registered in the credentials store.
func StoredProfiles(s config.Settings) ProfileLookup {
	return func(name string) (models.Profile, error) {
		if name == "" || name == s.DefaultProfile.Name {
			return s.DefaultProfile, nil
		}
		return credentials.GetProfile(name)
	}
}

// Processor turns one webhook delivery into a published post.
type Processor struct {
	Settings     config.Settings
	Profiles     ProfileLookup
	Orchestrator *publish.Orchestrator
	HTTP         *http.Client
	WorkDir      string // scratch space for image conversion
	ServeDir     string // directServe root
}

func NewProcessor(s config.Settings) *Processor {
	return &Processor{
		Settings:     s,
		Profiles:     StoredProfiles(s),
		Orchestrator: publish.NewOrchestrator(),
		HTTP:         platforms.DefaultClient,
		WorkDir:      os.TempDir(),
		ServeDir:     config.GetDirectServeBaseDir(),
	}
}

// Process decodes a queued webhook and publishes the post it refers to.
func (p *Processor) Process(ctx context.Context, payload []byte) Result {
	res := Result{Stage: failures.StageWebhook}

	var qw models.QueuedWebhook
	if err := json.Unmarshal(payload, &qw); err != nil {
		res.Err = fmt.Errorf("decode queued webhook: %w", err)
		return res
	}
	res.Profile = qw.Profile
	res.Webhook = qw.Payload

	profile, err := p.Profiles(qw.Profile)
	if err != nil {
		res.Err = fmt.Errorf("load profile %q: %w", qw.Profile, err)
		return res
	}
	res.CallbackURL = profile.CallbackURL

	var hook models.WebhookPayload
	if err := json.Unmarshal(qw.Payload, &hook); err != nil {
		res.Err = fmt.Errorf("decode webhook body: %w", err)
		return res
	}
	postID, err := wordpress.ResolvePostID(hook)
	if err != nil {
		res.Err = err
		return res
	}

	out := p.PublishPost(ctx, profile, postID)
	out.Webhook = qw.Payload
	if out.Stage == failures.StagePublish {
		p.forward(ctx, profile, qw.Payload)
	}
	return out
}

// PublishPost runs the WordPress, media and platform stages for one post.
func (p *Processor) PublishPost(ctx context.Context, profile models.Profile, postID int64) Result {
	res := Result{
		Stage:       failures.StagePrepare,
		Profile:     profile.Name,
		PostID:      postID,
		CallbackURL: profile.CallbackURL,
	}
	log := logger.With(map[string]any{"profile": profile.Name, "post_id": postID})

	wp, err := wordpress.New(profile.WordPress, p.HTTP)
	if err != nil {
		res.Err = err
		return res
	}

	post, err := wp.GetPost(ctx, postID)
	if errors.Is(err, wordpress.ErrPostNotFound) {
		res.Skipped = SkipPostNotFound
		return res
	}
	if err != nil {
		res.Err, res.Retryable = err, true
		return res
	}
	if reason := wordpress.SkipReason(post); reason != "" {
		log.Info().Str("reason", reason).Msg("post skipped")
		res.Skipped = reason
		return res
	}

	title := wordpress.PlainText(post.Title.Rendered)
	excerpt := wordpress.PlainText(post.Excerpt.Rendered)

	imageURL, err := wp.GetMediaURL(ctx, post.FeaturedMedia)
	if err != nil {
		res.Err, res.Retryable = err, true
		return res
	}

	resolver, err := p.resolver(profile, wp)
	if err != nil {
		res.Err = err
		return res
	}

	var mediaURL string
	if profile.Mode == models.MediaVideo {
		mediaURL, err = p.renderReel(ctx, profile, resolver, postID, title, imageURL)
	} else {
		mediaURL, err = p.prepareImage(ctx, resolver, postID, imageURL)
	}
	if err != nil {
		res.Err = err
		res.Retryable = publish.KindOf(err) != publish.KindConfiguration
		return res
	}
	res.MediaURL = mediaURL

	targets, err := platforms.Targets(p.Settings, profile, p.HTTP)
	if err != nil {
		res.Err = err
		return res
	}

	res.Stage = failures.StagePublish
	outcome := p.Orchestrator.Publish(ctx, publish.ContentItem{
		ID:        strconv.FormatInt(postID, 10),
		SourceURI: mediaURL,
		MediaType: profile.Mode,
		Caption:   caption.Compose(title, excerpt, profile.CaptionFooter, profile.Hashtags),
	}, targets)
	res.Outcome = &outcome

	if !outcome.OverallSuccess {
		cause := outcome.Err()
		if cause == nil {
			cause = errors.New("profile has no targets")
		}
		res.Err = fmt.Errorf("no platform accepted post %d: %w", postID, cause)
		return res
	}
	log.Info().Str("media_url", mediaURL).Msg("post published")
	return res
}

func (p *Processor) resolver(profile models.Profile, wp *wordpress.Client) (*hosting.Resolver, error) {
	r := &hosting.Resolver{Backend: profile.HostBackend, WordPress: wp, HTTP: p.HTTP}
	switch profile.HostBackend {
	case "", hosting.BackendWordPress:
		r.Backend = hosting.BackendWordPress
	case hosting.BackendDirectServe:
		if p.Settings.PublicBaseURL == "" {
			return nil, fmt.Errorf("directServe hosting needs PUBLIC_BASE_URL")
		}
		r.AccessInfo = map[string]string{
			"baseDir":       p.ServeDir,
			"folder":        profile.Name,
			"publicBaseURL": p.Settings.PublicBaseURL + "/media",
		}
	default:
		info, err := credentials.GetCredentials(profile.HostStorageKey)
		if err != nil {
			return nil, fmt.Errorf("host backend %s: %w", profile.HostBackend, err)
		}
		r.AccessInfo = info
	}
	return r, nil
}

// prepareImage downloads the featured image, normalizes it to JPEG and
// hosts it as post_social_{id}.jpg.
func (p *Processor) prepareImage(ctx context.Context, resolver *hosting.Resolver, postID int64, imageURL string) (string, error) {
	dir, err := os.MkdirTemp(p.WorkDir, "postrelay-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(dir)

	src := filepath.Join(dir, "source")
	if err := download(ctx, p.HTTP, imageURL, src); err != nil {
		return "", err
	}

	name := hosting.ImageName(postID)
	out := filepath.Join(dir, name)
	if err := encoder.NormalizeJPEG(ctx, src, out, encoder.SocialImage); err != nil {
		return "", fmt.Errorf("normalize image: %w", err)
	}

	f, err := os.Open(out)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return resolver.Resolve(ctx, name, "image/jpeg", f)
}

func download(ctx context.Context, client *http.Client, src, dst string) error {
	body, _, err := hosting.Fetch(ctx, client, src)
	if err != nil {
		return err
	}
	defer body.Close()

	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return fmt.Errorf("download %s: %w", src, err)
	}
	return f.Close()
}

// renderReel renders the post through the profile's render service and
// optionally rehosts the MP4 as reel_{id}.mp4.
func (p *Processor) renderReel(ctx context.Context, profile models.Profile, resolver *hosting.Resolver, postID int64, title, imageURL string) (string, error) {
	target, err := platforms.Target(profile.RenderService, p.Settings, profile.Platforms, p.HTTP)
	if err != nil {
		return "", &publish.ConfigurationError{Target: profile.RenderService, Missing: []string{"RENDER_SERVICE"}}
	}

	renderURL, err := p.Orchestrator.Render(ctx, target, publish.SubmitRequest{
		SourceURI: imageURL,
		MediaType: models.MediaVideo,
		Modifications: map[string]any{
			profile.RenderTitleField: title,
			profile.RenderImageField: imageURL,
		},
	})
	if err != nil {
		return "", err
	}
	if !profile.Rehost {
		return renderURL, nil
	}
	return resolver.Rehost(ctx, renderURL, hosting.ReelName(postID), "video/mp4")
}
