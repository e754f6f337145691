package fetch

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Default upstream location and export settings.
const (
	DefaultBaseURL    = "https://www.gunviolencearchive.org"
	DefaultReportPath = "/reports/mass-shooting"
	DefaultUserAgent  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Options configures the browser export.
type Options struct {
	BaseURL     string
	ReportPath  string
	OutDir      string
	Prefix      string
	Timeout     time.Duration // export completion
	WaitTimeout time.Duration // each page step; the download poll waits twice this
	Overwrite   bool
	Headless    bool
	ExecPath    string
	UserAgent   string
}

// DefaultOptions mirrors the defaults of the export command.
func DefaultOptions() Options {
	return Options{
		BaseURL:     DefaultBaseURL,
		ReportPath:  DefaultReportPath,
		OutDir:      "temp",
		Prefix:      "gvatemp",
		Timeout:     300 * time.Second,
		WaitTimeout: 30 * time.Second,
		Headless:    true,
		UserAgent:   DefaultUserAgent,
	}
}

// Validate validates the export options.
func (o Options) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.BaseURL, validation.Required),
		validation.Field(&o.OutDir, validation.Required),
		validation.Field(&o.Prefix, validation.Required),
		validation.Field(&o.Timeout, validation.Required, validation.Min(time.Second)),
		validation.Field(&o.WaitTimeout, validation.Required, validation.Min(time.Second)),
	)
}

// ReportURL returns the report page for year.
func (o Options) ReportURL(year int) string {
	return fmt.Sprintf("%s%s?year=%d", o.BaseURL, o.ReportPath, year)
}

// TargetName is the file name an export for year is saved under.
func TargetName(prefix string, year int, at time.Time) string {
	return fmt.Sprintf("%s_%d_%s.csv", prefix, year, at.UTC().Format("2006-01-02T15-04-05Z"))
}
