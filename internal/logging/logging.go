// Package logging builds the process logger: a console handler plus an
// append-only JSON run log under the configured log directory.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
)

// FileName is the run log written inside Options.Dir.
const FileName = "vigil.log"

// Console formats.
const (
	FormatAuto = "auto"
	FormatText = "text"
	FormatJSON = "json"
)

// Options describes logger construction parameters.
type Options struct {
	Level  slog.Level
	Format string // auto, text or json
	Dir    string // run log directory; empty disables the file log

	// Console defaults to os.Stderr.
	Console io.Writer
}

// New constructs the logger. The returned close function releases the run
// log file and is safe to call when no file was opened.
func New(opts Options) (*slog.Logger, func() error, error) {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	hopts := &slog.HandlerOptions{Level: opts.Level}

	var ch slog.Handler
	switch format := resolveFormat(opts.Format, console); format {
	case FormatText:
		ch = slog.NewTextHandler(console, hopts)
	case FormatJSON:
		ch = slog.NewJSONHandler(console, hopts)
	default:
		return nil, nil, fmt.Errorf("logging: unsupported format %q", opts.Format)
	}

	closer := func() error { return nil }
	if opts.Dir == "" {
		return slog.New(ch), closer, nil
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("logging: ensure log directory: %w", err)
	}
	path := filepath.Join(opts.Dir, FileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("logging: open %s: %w", path, err)
	}
	fh := slog.NewJSONHandler(f, hopts)
	return slog.New(newFanoutHandler(ch, fh)), f.Close, nil
}

func resolveFormat(format string, w io.Writer) string {
	format = strings.ToLower(strings.TrimSpace(format))
	if format != "" && format != FormatAuto {
		return format
	}
	if isTerminal(w) {
		return FormatText
	}
	return FormatJSON
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
