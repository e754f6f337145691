package main

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/starford/vigil/internal"
	"github.com/starford/vigil/internal/fetch"
)

func updateCommand() *cli.Command {
	return &cli.Command{
		Name:  "update",
		Usage: "Fetch the year's snapshot, enrich new incidents and merge them into the master file",
		Flags: []cli.Flag{
			yearFlag(),
			&cli.StringFlag{
				Name:  "snapshot",
				Usage: "Use an already exported CSV instead of driving the browser",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			_, opts, err := loadOptions(cmd)
			if err != nil {
				return err
			}
			if path := cmd.String("snapshot"); path != "" {
				opts = append(opts, internal.WithFetcher(fetch.FileFetcher{Path: path}))
			}

			rep, err := internal.Update(ctx, resolveYear(cmd), opts...)
			if err != nil {
				return fmt.Errorf("update: %w", err)
			}
			fmt.Printf("added %s new incidents, %s total (run %s)\n",
				humanize.Comma(int64(rep.Added)), humanize.Comma(int64(rep.Total)), rep.RunID)
			return nil
		},
	}
}

func exportCommand() *cli.Command {
	defaults := fetch.DefaultOptions()
	return &cli.Command{
		Name:  "export",
		Usage: "Export the year's report to CSV without merging",
		Flags: []cli.Flag{
			yearFlag(),
			&cli.StringFlag{Name: "out-dir", Usage: "Directory for the exported file", Value: defaults.OutDir},
			&cli.StringFlag{Name: "prefix", Usage: "Exported file name prefix", Value: defaults.Prefix},
			&cli.DurationFlag{Name: "timeout", Usage: "Overall export timeout", Value: defaults.Timeout},
			&cli.DurationFlag{Name: "wait-timeout", Usage: "Timeout for each page step", Value: defaults.WaitTimeout},
			&cli.BoolFlag{Name: "overwrite", Usage: "Replace an existing file with the same name"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, opts, err := loadOptions(cmd)
			if err != nil {
				return err
			}
			if cmd.IsSet("out-dir") {
				cfg.Fetch.OutDir = cmd.String("out-dir")
			}
			if cmd.IsSet("prefix") {
				cfg.Fetch.Prefix = cmd.String("prefix")
			}
			if cmd.IsSet("timeout") {
				cfg.Fetch.Timeout = cmd.Duration("timeout")
			}
			if cmd.IsSet("wait-timeout") {
				cfg.Fetch.WaitTimeout = cmd.Duration("wait-timeout")
			}
			if cmd.IsSet("overwrite") {
				cfg.Fetch.Overwrite = cmd.Bool("overwrite")
			}
			if err := cfg.Fetch.Validate(); err != nil {
				return err
			}

			path, err := internal.Export(ctx, resolveYear(cmd), opts...)
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			fmt.Println(path)
			return nil
		},
	}
}

func summaryCommand() *cli.Command {
	return &cli.Command{
		Name:  "summary",
		Usage: "Regenerate the summary document from the master file",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			_, opts, err := loadOptions(cmd)
			if err != nil {
				return err
			}
			path, err := internal.WriteSummary(ctx, opts...)
			if err != nil {
				return fmt.Errorf("summary: %w", err)
			}
			fmt.Println(path)
			return nil
		},
	}
}

func recentCommand() *cli.Command {
	return &cli.Command{
		Name:  "recent",
		Usage: "Print the most recent incidents",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Number of incidents", Value: 10},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			_, opts, err := loadOptions(cmd)
			if err != nil {
				return err
			}
			items, err := internal.Recent(ctx, int(cmd.Int("limit")), opts...)
			if err != nil {
				return fmt.Errorf("recent: %w", err)
			}
			if len(items) == 0 {
				fmt.Println("No incidents.")
				return nil
			}
			fmt.Println(renderIncidents(items))
			return nil
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the HTTP API, event stream and metrics",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			_, opts, err := loadOptions(cmd)
			if err != nil {
				return err
			}
			if err := internal.Serve(ctx, opts...); err != nil {
				return fmt.Errorf("app run error: %w", err)
			}
			return nil
		},
	}
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the MCP tools over stdio",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			_, opts, err := loadOptions(cmd)
			if err != nil {
				return err
			}
			return internal.ServeMCP(ctx, opts...)
		},
	}
}
