// Package geocode resolves free-text locations to coordinates.
package geocode

import (
	"context"
	"errors"
	"strconv"
	"time"
)

// ErrNoMatch means the service returned no candidate for an address.
var ErrNoMatch = errors.New("geocode: no match")

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64
	Lon float64
}

// LatString formats the latitude the way it is stored.
func (p Point) LatString() string { return strconv.FormatFloat(p.Lat, 'f', -1, 64) }

// LonString formats the longitude the way it is stored.
func (p Point) LonString() string { return strconv.FormatFloat(p.Lon, 'f', -1, 64) }

// Geocoder resolves one address.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (Point, error)
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// retry runs fn up to attempts times with doubling delays capped at max.
// Errors wrapped in permanentError stop the loop immediately.
func retry(ctx context.Context, attempts int, initial, max time.Duration, sleep func(context.Context, time.Duration) error, fn func() error) error {
	if attempts <= 1 {
		return fn()
	}
	d := initial
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			if serr := sleep(ctx, d); serr != nil {
				return serr
			}
			if d < max {
				d *= 2
				if d > max {
					d = max
				}
			}
		}
		err = fn()
		if err == nil {
			return nil
		}
		var perm permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
	}
	return err
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
