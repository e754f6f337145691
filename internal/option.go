package internal

import (
	"log/slog"
	"time"

	"github.com/starford/vigil/internal/fetch"
	"github.com/starford/vigil/internal/geocode"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config   *Config
	logger   *slog.Logger
	fetcher  fetch.Fetcher
	geocoder geocode.Geocoder
	now      func() time.Time
	version  string
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogger replaces the logger built from the configuration.
func WithLogger(l *slog.Logger) Option {
	return func(a *application) {
		a.logger = l
	}
}

// WithFetcher replaces the browser export, e.g. with a fetch.FileFetcher.
func WithFetcher(f fetch.Fetcher) Option {
	return func(a *application) {
		a.fetcher = f
	}
}

// WithGeocoder replaces the configured geocoder.
func WithGeocoder(g geocode.Geocoder) Option {
	return func(a *application) {
		a.geocoder = g
	}
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(a *application) {
		a.now = now
	}
}

// WithVersion sets the version reported by the servers.
func WithVersion(v string) Option {
	return func(a *application) {
		a.version = v
	}
}
