package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/vigil/internal/fetch"
	"github.com/starford/vigil/internal/geocode"
	"github.com/starford/vigil/internal/logging"
	"github.com/starford/vigil/internal/models"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Store   StoreConfig       `yaml:"store"`
	Fetch   FetchConfig       `yaml:"fetch"`
	Geocode GeocodeConfig     `yaml:"geocode"`
	Index   IndexConfig       `yaml:"index"`
	Auth    AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{&c.App, &c.Store, &c.Fetch, &c.Geocode, &c.Auth} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level `yaml:"log_level"`
	LogFormat string     `yaml:"log_format"`
	LogDir    string     `yaml:"log_dir"`
	HTTP      HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.LogFormat, validation.In(logging.FormatAuto, logging.FormatText, logging.FormatJSON)),
	); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StoreConfig locates the master file and names its interpreted columns.
type StoreConfig struct {
	Path        string         `yaml:"path"`
	SummaryPath string         `yaml:"summary_path"`
	Columns     models.Columns `yaml:"columns"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	cols := &c.Columns
	if err := validation.ValidateStruct(cols,
		validation.Field(&cols.ID, validation.Required),
		validation.Field(&cols.Date, validation.Required),
		validation.Field(&cols.Latitude, validation.Required),
		validation.Field(&cols.Longitude, validation.Required),
	); err != nil {
		return fmt.Errorf("store.columns: %w", err)
	}
	return nil
}

// FetchConfig configures the browser export.
type FetchConfig struct {
	BaseURL     string        `yaml:"base_url"`
	ReportPath  string        `yaml:"report_path"`
	OutDir      string        `yaml:"out_dir"`
	Prefix      string        `yaml:"prefix"`
	Timeout     time.Duration `yaml:"timeout"`
	WaitTimeout time.Duration `yaml:"wait_timeout"`
	Overwrite   bool          `yaml:"overwrite"`
	Headless    bool          `yaml:"headless"`
	ExecPath    string        `yaml:"exec_path"`
	UserAgent   string        `yaml:"user_agent"`
}

// Options converts the section to export options.
func (c *FetchConfig) Options() fetch.Options {
	return fetch.Options{
		BaseURL:     c.BaseURL,
		ReportPath:  c.ReportPath,
		OutDir:      c.OutDir,
		Prefix:      c.Prefix,
		Timeout:     c.Timeout,
		WaitTimeout: c.WaitTimeout,
		Overwrite:   c.Overwrite,
		Headless:    c.Headless,
		ExecPath:    c.ExecPath,
		UserAgent:   c.UserAgent,
	}
}

// Validate validates the fetch configuration.
func (c *FetchConfig) Validate() error {
	if err := c.Options().Validate(); err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	return nil
}

// GeocodeConfig configures coordinate enrichment.
type GeocodeConfig struct {
	Enabled   bool          `yaml:"enabled"`
	BaseURL   string        `yaml:"base_url"`
	UserAgent string        `yaml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout"`
	Pause     time.Duration `yaml:"pause"`
	Retries   int           `yaml:"retries"`
}

// Validate validates the geocode configuration.
func (c *GeocodeConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Timeout, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.Pause, validation.Min(time.Duration(0))),
		validation.Field(&c.Retries, validation.Min(0), validation.Max(10)),
	); err != nil {
		return fmt.Errorf("geocode: %w", err)
	}
	return nil
}

// ArcGISOptions converts the section to client options.
func (c *GeocodeConfig) ArcGISOptions() geocode.ArcGISOptions {
	return geocode.ArcGISOptions{
		BaseURL:   c.BaseURL,
		UserAgent: c.UserAgent,
		Timeout:   c.Timeout,
		Attempts:  c.Retries + 1,
		Backoff:   time.Second,
	}
}

// IndexConfig holds the SQLite mirror location. An empty path disables the
// mirror and the run history.
type IndexConfig struct {
	Path string `yaml:"path"`
}

// Enabled reports whether the mirror is configured.
func (c *IndexConfig) Enabled() bool { return c.Path != "" }

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

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	fo := fetch.DefaultOptions()
	return &Config{
		App: ApplicationConfig{
			LogLevel:  slog.LevelInfo,
			LogFormat: logging.FormatAuto,
			LogDir:    "./logs",
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Store: StoreConfig{
			Path:    "./data/gva_master.csv",
			Columns: models.DefaultColumns(),
		},
		Fetch: FetchConfig{
			BaseURL:     fo.BaseURL,
			ReportPath:  fo.ReportPath,
			OutDir:      fo.OutDir,
			Prefix:      fo.Prefix,
			Timeout:     fo.Timeout,
			WaitTimeout: fo.WaitTimeout,
			Headless:    fo.Headless,
			UserAgent:   fo.UserAgent,
		},
		Geocode: GeocodeConfig{
			Enabled:   true,
			BaseURL:   geocode.DefaultArcGISURL,
			UserAgent: "vigil/1.0",
			Timeout:   10 * time.Second,
			Pause:     time.Second,
			Retries:   3,
		},
		Index: IndexConfig{
			Path: "./vigil.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
