package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultArcGISURL is the public ArcGIS World geocoding service.
const DefaultArcGISURL = "https://geocode.arcgis.com/arcgis/rest/services/World/GeocodeServer"

// ArcGISOptions configures an ArcGIS client.
type ArcGISOptions struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	Attempts  int
	Backoff   time.Duration
}

// ArcGIS is a client for the findAddressCandidates operation.
type ArcGIS struct {
	baseURL   string
	userAgent string
	client    *http.Client
	attempts  int
	backoff   time.Duration
	sleep     func(context.Context, time.Duration) error
}

type candidatesResp struct {
	Candidates []struct {
		Address  string  `json:"address"`
		Score    float64 `json:"score"`
		Location struct {
			X float64 `json:"x"`
			Y float64 `json:"y"`
		} `json:"location"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewArcGIS validates opts and builds a client.
func NewArcGIS(opts ArcGISOptions) (*ArcGIS, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = DefaultArcGISURL
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("geocode: invalid base url %q", opts.BaseURL)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 1
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 2 * time.Second
	}
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 60 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &ArcGIS{
		baseURL:   base,
		userAgent: opts.UserAgent,
		client:    &http.Client{Timeout: opts.Timeout, Transport: tr},
		attempts:  opts.Attempts,
		backoff:   opts.Backoff,
		sleep:     Sleep,
	}, nil
}

// Geocode returns the best candidate for address. Rate limiting (429) and
// server errors are retried; an empty candidate list yields ErrNoMatch.
func (a *ArcGIS) Geocode(ctx context.Context, address string) (Point, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return Point{}, errors.New("geocode: empty address")
	}

	var pt Point
	err := retry(ctx, a.attempts, a.backoff, 30*time.Second, a.sleep, func() error {
		p, err := a.find(ctx, address)
		if err != nil {
			return err
		}
		pt = p
		return nil
	})
	return pt, err
}

func (a *ArcGIS) find(ctx context.Context, address string) (Point, error) {
	q := url.Values{}
	q.Set("SingleLine", address)
	q.Set("f", "json")
	q.Set("maxLocations", "1")
	q.Set("outFields", "Match_addr")

	u := fmt.Sprintf("%s/findAddressCandidates?%s", a.baseURL, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Point{}, permanentError{err}
	}
	if a.userAgent != "" {
		req.Header.Set("User-Agent", a.userAgent)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Point{}, permanentError{ctx.Err()}
		}
		return Point{}, fmt.Errorf("geocode: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return Point{}, fmt.Errorf("geocode: rate limited (%d)", resp.StatusCode)
	case resp.StatusCode >= 500:
		return Point{}, fmt.Errorf("geocode: http %d", resp.StatusCode)
	case resp.StatusCode/100 != 2:
		return Point{}, permanentError{fmt.Errorf("geocode: http %d", resp.StatusCode)}
	}

	var data candidatesResp
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return Point{}, permanentError{fmt.Errorf("geocode: decode: %w", err)}
	}
	if data.Error != nil {
		return Point{}, permanentError{fmt.Errorf("geocode: service error %d: %s", data.Error.Code, data.Error.Message)}
	}
	if len(data.Candidates) == 0 {
		return Point{}, permanentError{ErrNoMatch}
	}
	c := data.Candidates[0]
	return Point{Lat: c.Location.Y, Lon: c.Location.X}, nil
}
