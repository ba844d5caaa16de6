// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	// flags read their EnvVars during parsing, so .env must be loaded first
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("ignoring .env: %v", err)
	}

	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "mindex",
		Usage: "Document memory indexing with a per-user knowledge graph",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
				EnvVars: []string{"MINDEX_LOG_LEVEL"},
			},
		}, configFlags()...),
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Ingest text files and wait for their jobs to finish",
				ArgsUsage: "FILE...",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "Owning user id", Required: true},
					&cli.StringFlag{Name: "agent", Aliases: []string{"a"}, Usage: "Agent id", Required: true},
					&cli.StringFlag{Name: "source", Usage: "Source label (defaults to the file name)"},
				},
			},
			{
				Name:      "status",
				Usage:     "Show the status of an ingestion job",
				ArgsUsage: "JOBID",
				Action:    statusCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "Requesting user id", Required: true},
				},
			},
			{
				Name:      "search",
				Usage:     "Search a user's memories",
				ArgsUsage: "QUERY",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "User id", Required: true},
					&cli.StringFlag{Name: "agent", Aliases: []string{"a"}, Usage: "Agent id", Required: true},
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Maximum results", Value: 10},
					&cli.BoolFlag{Name: "graph", Usage: "Include the knowledge graph of the results"},
				},
			},
			{
				Name:   "graph",
				Usage:  "Read a user's knowledge graph, or record a memory in it",
				Action: graphCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "User id", Required: true},
					&cli.StringFlag{Name: "agent", Aliases: []string{"a"}, Usage: "Agent id (required with --query)"},
					&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Narrow the graph to memories matching this query"},
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Memories retrieved for --query"},
					&cli.StringFlag{Name: "memory", Usage: "Memory id to record"},
					&cli.StringFlag{Name: "content", Usage: "Memory text to record (with --memory)"},
				},
			},
			{
				Name:   "reembed",
				Usage:  "Recompute the vectors of all stored memories",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "namespace", Usage: "Only reembed this agent/user namespace"},
					&cli.IntFlag{Name: "batch-size", Usage: "Number of records to process in each batch", Value: 100},
					&cli.IntFlag{Name: "report-interval", Usage: "Report progress every N records", Value: 100},
					&cli.IntFlag{Name: "max-retries", Usage: "Maximum attempts per batch", Value: 3},
					&cli.DurationFlag{Name: "retry-delay", Usage: "Base delay for exponential backoff", Value: 1 * time.Second},
				},
			},
		},
	}
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
