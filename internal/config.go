package internal

import (
	"fmt"
	"log/slog"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/folio/internal/api"
	"github.com/starford/folio/internal/autosave"
	"github.com/starford/folio/internal/docs"
	"github.com/starford/folio/internal/gesture"
	"github.com/starford/folio/internal/notesclient"
)

var (
	mdFileRe  = regexp.MustCompile(`(?i)^[^/\\].*\.md$`)
	httpURLRe = regexp.MustCompile(`^https?://[^\s/]+(/\S*)?$`)
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig  `yaml:"app"`
	SQLite  SQLiteConfig       `yaml:"sqlite"`
	Auth    AuthConfig         `yaml:"auth"`
	Docs    DocsConfig         `yaml:"docs"`
	Uploads UploadsConfig      `yaml:"uploads"`
	Tree    gesture.Thresholds `yaml:"tree"`
	Editor  EditorConfig       `yaml:"editor"`
	Client  ClientConfig       `yaml:"client"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{&c.App, &c.SQLite, &c.Auth, &c.Docs, &c.Uploads, &c.Editor, &c.Client} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	if err := c.Tree.Validate(); err != nil {
		return fmt.Errorf("tree: %w", err)
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port         int           `yaml:"port"`
	CORSOrigins  []string      `yaml:"cors_origins"`
	TreeThrottle time.Duration `yaml:"tree_throttle"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.CORSOrigins, validation.Each(validation.Required, validation.Match(httpURLRe))),
		validation.Field(&c.TreeThrottle, validation.Min(time.Duration(0))),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// DocsConfig locates the documentation mirror. An empty Root disables it; an empty Files list mirrors every
// top-level Markdown file under Root.
type DocsConfig struct {
	Root     string        `yaml:"root"`
	Files    []string      `yaml:"files"`
	Debounce time.Duration `yaml:"debounce"`
}

// Validate validates the docs configuration.
func (c *DocsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Files, validation.Each(validation.Required, validation.Match(mdFileRe))),
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
	)
}

// UploadsConfig holds the upload directory and size cap.
type UploadsConfig struct {
	Dir      string `yaml:"dir"`
	MaxBytes int64  `yaml:"max_bytes"`
}

// Validate validates the uploads configuration.
func (c *UploadsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
		validation.Field(&c.MaxBytes, validation.Required, validation.Min(int64(1))),
	)
}

// EditorConfig tunes the editing experience.
type EditorConfig struct {
	AutosaveDelay time.Duration `yaml:"autosave_delay"`
}

// Validate validates the editor configuration.
func (c *EditorConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.AutosaveDelay, validation.Required, validation.Min(10*time.Millisecond)),
	)
}

// ClientConfig is used by the commands that talk to a running server.
type ClientConfig struct {
	BaseURL            string        `yaml:"base_url"`
	Token              string        `yaml:"token"`
	Timeout            time.Duration `yaml:"timeout"`
	StatusPollInterval time.Duration `yaml:"status_poll_interval"`
}

// Validate validates the client configuration.
func (c *ClientConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required, validation.Match(httpURLRe)),
		validation.Field(&c.Timeout, validation.Required, validation.Min(time.Duration(0))),
		validation.Field(&c.StatusPollInterval, validation.Min(time.Second)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port:         8080,
				CORSOrigins:  []string{"http://localhost:3000"},
				TreeThrottle: 2 * time.Second,
			},
		},
		SQLite: SQLiteConfig{
			Path: "./folio.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Docs: DocsConfig{
			Root:     ".",
			Files:    append([]string(nil), docs.DefaultFiles...),
			Debounce: docs.DefaultDebounce,
		},
		Uploads: UploadsConfig{
			Dir:      "./uploads",
			MaxBytes: api.DefaultMaxUploadBytes,
		},
		Tree: gesture.DefaultThresholds(),
		Editor: EditorConfig{
			AutosaveDelay: autosave.DefaultDelay,
		},
		Client: ClientConfig{
			BaseURL:            "http://localhost:8080",
			Timeout:            notesclient.DefaultTimeout,
			StatusPollInterval: notesclient.DefaultPollInterval,
		},
	}
}
