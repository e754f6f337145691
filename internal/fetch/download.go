package fetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// listDir returns the regular file names in dir.
func listDir(dir string) (map[string]struct{}, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			out[e.Name()] = struct{}{}
		}
	}
	return out, nil
}

// WaitForDownload polls dir every interval until a finished .csv file that
// is not in baseline appears, and returns its path. Partial Chrome downloads
// (.crdownload) are ignored. It gives up with ErrDownloadNotFound after
// timeout.
func WaitForDownload(ctx context.Context, dir string, baseline map[string]struct{}, timeout, interval time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		current, err := listDir(dir)
		if err != nil {
			return "", fmt.Errorf("fetch: list downloads: %w", err)
		}
		for name := range current {
			if _, old := baseline[name]; old {
				continue
			}
			if strings.HasSuffix(name, ".csv") {
				return filepath.Join(dir, name), nil
			}
		}

		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return "", fmt.Errorf("%w: nothing after %s", ErrDownloadNotFound, timeout)
			}
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}
