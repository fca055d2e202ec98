package config

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

var (
	// ErrMissingInput indicates a required action input was not provided.
	ErrMissingInput = errors.New("missing required input")
	// ErrUnknownAction indicates the action input names no supported action.
	ErrUnknownAction = errors.New("unknown action")
)

// Config holds everything read from the environment for one invocation.
type Config struct {
	// Action inputs. The runner exports them as INPUT_<NAME> with the input's
	// hyphens intact; runnerLookuper maps these underscore keys onto that form.
	AsanaPAT     string   `env:"INPUT_ASANA_PAT"`
	Action       string   `env:"INPUT_ACTION"`
	GitHubToken  string   `env:"INPUT_GITHUB_TOKEN"`
	LinkRequired Flag     `env:"INPUT_LINK_REQUIRED"`
	CommentID    string   `env:"INPUT_COMMENT_ID"`
	Text         string   `env:"INPUT_TEXT"`
	IsPinned     Flag     `env:"INPUT_IS_PINNED"`
	Targets      Targets  `env:"INPUT_TARGETS"`
	IsComplete   Tristate `env:"INPUT_IS_COMPLETE"`

	// GitHub App credentials, used when no github-token is given
	GitHubAppID      string `env:"GITHUB_APP_ID"`
	GitHubPrivateKey string `env:"GITHUB_PRIVATE_KEY"`

	// Runner context
	Repository string `env:"GITHUB_REPOSITORY"`
	EventPath  string `env:"GITHUB_EVENT_PATH"`
	SHA        string `env:"GITHUB_SHA"`
	APIURL     string `env:"GITHUB_API_URL"`
	OutputPath string `env:"GITHUB_OUTPUT"`

	AsanaBaseURL string `env:"ASANA_BASE_URL"`
	Debug        Flag   `env:"RUNNER_DEBUG"`
}

// Target names a section within a project by display name.
type Target struct {
	Project string `yaml:"project" json:"project"`
	Section string `yaml:"section" json:"section"`
}

// Targets is the decoded targets input. Both JSON (`[{"project": "P", "section": "S"}]`)
// and YAML block lists are accepted.
type Targets []Target

// EnvDecode implements envconfig.Decoder.
func (t *Targets) EnvDecode(val string) error {
	if strings.TrimSpace(val) == "" {
		*t = nil
		return nil
	}
	var out []Target
	if err := yaml.Unmarshal([]byte(val), &out); err != nil {
		return fmt.Errorf("invalid targets %q: %w", val, err)
	}
	*t = out
	return nil
}

// Flag is a boolean input. Empty means false.
type Flag bool

// EnvDecode implements envconfig.Decoder.
func (f *Flag) EnvDecode(val string) error {
	val = strings.TrimSpace(val)
	if val == "" {
		*f = false
		return nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return fmt.Errorf("invalid boolean %q: %w", val, err)
	}
	*f = Flag(b)
	return nil
}

// Tristate is a boolean input that remembers whether it was provided.
type Tristate struct {
	Set   bool
	Value bool
}

// EnvDecode implements envconfig.Decoder.
func (t *Tristate) EnvDecode(val string) error {
	val = strings.TrimSpace(val)
	if val == "" {
		*t = Tristate{}
		return nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return fmt.Errorf("invalid boolean %q: %w", val, err)
	}
	*t = Tristate{Set: true, Value: b}
	return nil
}

// Load reads configuration from the process environment.
func Load(ctx context.Context) (*Config, error) {
	return LoadFrom(ctx, envconfig.OsLookuper())
}

// LoadFrom reads configuration through the given lookuper.
func LoadFrom(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: runnerLookuper{next: l},
	}); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	cfg.Action = strings.TrimSpace(cfg.Action)
	cfg.GitHubPrivateKey = normalizePrivateKey(cfg.GitHubPrivateKey)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// runnerLookuper resolves INPUT_* keys under the runner's naming first
// (INPUT_ASANA-PAT for input asana-pat), then under the key as written.
type runnerLookuper struct {
	next envconfig.Lookuper
}

func (r runnerLookuper) Lookup(key string) (string, bool) {
	if name, ok := strings.CutPrefix(key, "INPUT_"); ok && strings.Contains(name, "_") {
		if v, ok := r.next.Lookup("INPUT_" + strings.ReplaceAll(name, "_", "-")); ok {
			return v, true
		}
	}
	return r.next.Lookup(key)
}

// validate checks inputs every action needs. Action-specific inputs are
// validated when the action is built.
func (c *Config) validate() error {
	if strings.TrimSpace(c.AsanaPAT) == "" {
		return fmt.Errorf("%w: asana-pat", ErrMissingInput)
	}
	if c.Action == "" {
		return fmt.Errorf("%w: action", ErrMissingInput)
	}
	return nil
}

// HasGitHubApp reports whether GitHub App credentials are configured.
func (c *Config) HasGitHubApp() bool {
	return c.GitHubAppID != "" && c.GitHubPrivateKey != ""
}

func normalizePrivateKey(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}

	if strings.HasPrefix(trimmed, "\"") && strings.HasSuffix(trimmed, "\"") {
		trimmed = strings.TrimPrefix(trimmed, "\"")
		trimmed = strings.TrimSuffix(trimmed, "\"")
	}
	if strings.HasPrefix(trimmed, "'") && strings.HasSuffix(trimmed, "'") {
		trimmed = strings.TrimPrefix(trimmed, "'")
		trimmed = strings.TrimSuffix(trimmed, "'")
	}

	trimmed = strings.ReplaceAll(trimmed, "\r\n", "\n")
	trimmed = strings.ReplaceAll(trimmed, "\r", "\n")
	if strings.Contains(trimmed, "\\n") {
		trimmed = strings.ReplaceAll(trimmed, "\\r", "")
		trimmed = strings.ReplaceAll(trimmed, "\\n", "\n")
	}

	return trimmed
}
