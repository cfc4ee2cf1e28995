package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"postrelay/models"
)

// PollPolicy mirrors publish.PollPolicy so config does not depend on the
// protocol package.
type PollPolicy struct {
	Interval    time.Duration
	MaxAttempts int
	Deadline    time.Duration
}

// Settings is the process-wide configuration. It is read once at startup
// and passed down explicitly.
type Settings struct {
	Port          string
	PublicBaseURL string

	WebhookSecret string
	WebhookIssuer string

	QueueCapacity int
	MaxRetries    int
	RetryBackoff  time.Duration

	LogLevel string
	LogFile  string

	GraphBaseURL      string
	CreatomateBaseURL string
	ShotstackBaseURL  string

	PollPolicies   map[string]PollPolicy
	DefaultProfile models.Profile
}

var defaultPolicies = map[string]PollPolicy{
	"instagram":  {Interval: 5 * time.Second, MaxAttempts: 20},
	"facebook":   {Interval: 5 * time.Second, MaxAttempts: 12},
	"creatomate": {Interval: 10 * time.Second, MaxAttempts: 18},
	"shotstack":  {Interval: 15 * time.Second, MaxAttempts: 20},
}

// Load reads .env files (missing files are fine) and the environment.
func Load(envFiles ...string) Settings {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		_ = godotenv.Load(f)
	}

	s := Settings{
		Port:              getenv("PORT", "10000"),
		PublicBaseURL:     strings.TrimRight(getenv("PUBLIC_BASE_URL", ""), "/"),
		WebhookSecret:     getenv("WEBHOOK_JWT_SECRET", ""),
		WebhookIssuer:     getenv("WEBHOOK_JWT_ISSUER", ""),
		QueueCapacity:     getenvInt("QUEUE_CAPACITY", 256),
		MaxRetries:        getenvInt("MAX_RETRIES", 3),
		RetryBackoff:      getenvDuration("RETRY_BACKOFF", 30*time.Second),
		LogLevel:          getenv("LOG_LEVEL", "info"),
		LogFile:           getenv("LOG_FILE", ""),
		GraphBaseURL:      getenv("GRAPH_BASE_URL", "https://graph.facebook.com"),
		CreatomateBaseURL: getenv("CREATOMATE_BASE_URL", "https://api.creatomate.com/v1"),
		ShotstackBaseURL:  getenv("SHOTSTACK_BASE_URL", "https://api.shotstack.io"),
		PollPolicies:      make(map[string]PollPolicy, len(defaultPolicies)),
	}

	for name, def := range defaultPolicies {
		s.PollPolicies[name] = loadPolicy(name, def)
	}
	s.DefaultProfile = loadDefaultProfile()
	return s
}

// Policy returns the poll policy for a backend name, falling back to the
// Instagram defaults for unknown names.
func (s Settings) Policy(backend string) PollPolicy {
	if p, ok := s.PollPolicies[backend]; ok {
		return p
	}
	return loadPolicy(backend, defaultPolicies["instagram"])
}

// loadPolicy applies <BACKEND>_POLL_INTERVAL / _POLL_ATTEMPTS / _POLL_DEADLINE.
// The deadline defaults to the attempt budget plus one minute of slack.
func loadPolicy(name string, def PollPolicy) PollPolicy {
	prefix := strings.ToUpper(name) + "_POLL_"
	p := PollPolicy{
		Interval:    getenvDuration(prefix+"INTERVAL", def.Interval),
		MaxAttempts: getenvInt(prefix+"ATTEMPTS", def.MaxAttempts),
	}
	p.Deadline = getenvDuration(prefix+"DEADLINE", p.Interval*time.Duration(p.MaxAttempts)+time.Minute)
	return p
}

func loadDefaultProfile() models.Profile {
	mode := models.MediaType(getenv("PUBLISH_MODE", string(models.MediaImage)))
	renderService := getenv("RENDER_SERVICE", "")
	if mode == models.MediaVideo && renderService == "" {
		renderService = "creatomate"
	}

	return models.Profile{
		Name: getenv("PROFILE_NAME", "default"),
		WordPress: models.WordPressCredentials{
			BaseURL:  strings.TrimRight(getenv("WP_URL", ""), "/"),
			User:     getenv("WP_USER", ""),
			Password: getenv("WP_PASSWORD", ""),
		},
		Platforms: models.PlatformCredentials{
			MetaAccessToken:    getenv("META_API_TOKEN", ""),
			InstagramUserID:    getenv("INSTAGRAM_ID", ""),
			FacebookPageID:     getenv("FACEBOOK_PAGE_ID", ""),
			GraphAPIVersion:    getenv("GRAPH_API_VERSION", "v19.0"),
			CreatomateAPIKey:   getenv("CREATOMATE_API_KEY", ""),
			CreatomateTemplate: getenv("CREATOMATE_TEMPLATE_ID", ""),
			ShotstackAPIKey:    getenv("SHOTSTACK_API_KEY", ""),
			ShotstackTemplate:  getenv("SHOTSTACK_TEMPLATE_ID", ""),
			ShotstackEnv:       getenv("SHOTSTACK_ENV", "v1"),
		},
		Targets:          splitList(getenv("TARGETS", "instagram,facebook")),
		Mode:             mode,
		RenderService:    renderService,
		RenderTitleField: getenv("RENDER_TITLE_FIELD", "titulo-noticia"),
		RenderImageField: getenv("RENDER_IMAGE_FIELD", "imagem-fundo"),
		HostBackend:      getenv("HOST_BACKEND", "wordpress"),
		HostStorageKey:   getenv("HOST_STORAGE_KEY", ""),
		Rehost:           getenvBool("REHOST_RENDERS", true),
		ForwardURL:       getenv("FORWARD_URL", ""),
		CallbackURL:      getenv("CALLBACK_URL", ""),
		CaptionFooter:    getenv("CAPTION_FOOTER", "Leia a matéria completa em nosso site. Link na bio!"),
		Hashtags:         splitList(getenv("CAPTION_HASHTAGS", "")),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func getenvBool(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// getenvDuration accepts Go durations ("5s") or bare seconds ("5").
func getenvDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return def
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' }) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
