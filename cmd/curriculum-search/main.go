package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/dshills/curriculum-search/internal/storage"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	// stdout is reserved for MCP and command output
	log.SetOutput(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "curriculum-search",
		Usage:   "Hybrid search over curriculum learning goals and elaborations",
		Version: fmt.Sprintf("%s (built %s, sqlite %s/%s)", version, buildTime, storage.BuildMode, storage.DriverName),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML config file",
				EnvVars: []string{"CURRICULUM_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error); overrides the config",
			},
			&cli.StringFlag{
				Name:  "db",
				Usage: "Path to the SQLite database; overrides the config",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the MCP server on stdio",
				Action: serveCommand,
			},
			{
				Name:   "ingest",
				Usage:  "Load doelzinnen.json and uitwerkingen.json and embed them",
				Action: ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "data-dir",
						Aliases: []string{"d"},
						Usage:   "Directory holding the export files; overrides the config",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Search learning goals",
				ArgsUsage: "QUERY",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of results (1-100); defaults to the config",
					},
					&cli.Float64Flag{
						Name:  "threshold",
						Usage: "Minimum final similarity; defaults to the config",
					},
					&cli.Float64Flag{
						Name:  "weight",
						Usage: "Goal share of the combined score (0-1); defaults to the config",
					},
					&cli.Float64Flag{
						Name:  "lexical-weight",
						Usage: "Weight of the BM25 boost; defaults to the config",
					},
					&cli.BoolFlag{
						Name:  "rerank",
						Usage: "Let the LLM grade the top results",
					},
					&cli.StringFlag{
						Name:  "kind",
						Usage: "What to search: hybrid, goals or elaborations",
						Value: "hybrid",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print the full response as JSON",
					},
				},
			},
			{
				Name:      "goal",
				Usage:     "Show one goal with its elaborations",
				ArgsUsage: "ID",
				Action:    goalCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "external-id",
						Usage: "Look the goal up by curriculum id instead",
					},
				},
			},
			{
				Name:   "stats",
				Usage:  "Show corpus and embedding statistics",
				Action: statsCommand,
			},
		},
	}
}
