package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/vigil/internal"
	pkgconfig "github.com/starford/vigil/pkg/config"
)

var version = "dev"

// loadOptions reads the config named by --config. A missing file leaves the
// defaults in place.
func loadOptions(cmd *cli.Command) (*internal.Config, []internal.Option, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	found, err := pkgconfig.LoadOrDefault(configPath, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if !found {
		slog.Debug("config file not found, using defaults", slog.String("path", configPath))
	}

	return cfg, []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}, nil
}

func main() {
	cmd := &cli.Command{
		Name:    "vigil",
		Usage:   "Keeps a local mass-shooting incident dataset current and serves it read-only",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			updateCommand(),
			exportCommand(),
			summaryCommand(),
			recentCommand(),
			serveCommand(),
			mcpCommand(),
		},
	}

	ctx, stop := signalContext(context.Background())
	err := cmd.Run(ctx, os.Args)
	stop()
	if err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// signalContext cancels on SIGINT or SIGTERM so deferred cleanup of browser
// sessions and fetch artifacts runs before exit.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func yearFlag() *cli.IntFlag {
	return &cli.IntFlag{
		Name:        "year",
		Aliases:     []string{"y"},
		Usage:       "Report year to fetch",
		DefaultText: "current year",
	}
}

// resolveYear returns the --year flag or the current UTC year.
func resolveYear(cmd *cli.Command) int {
	if y := int(cmd.Int("year")); y > 0 {
		return y
	}
	return time.Now().UTC().Year()
}
