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
	"github.com/poiesic/membank/ai"
	"github.com/poiesic/membank/search"
	"github.com/urfave/cli/v2"
)

func main() {
	// A missing .env file is not an error
	_ = godotenv.Load()

	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "membank",
		Usage: "Ingest uploaded files into per-session vector memory banks",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
				EnvVars: []string{"MEMBANK_LOG_LEVEL"},
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Ingest files into a fresh session table and delete them",
				ArgsUsage: "FILE...",
				Action:    ingestCommand,
				Flags: append(bankFlags(),
					sessionFlag(),
					&cli.StringFlag{
						Name:    "delete-policy",
						Usage:   "Which source files to delete (always, on-success, never)",
						Value:   "always",
						EnvVars: []string{"MEMBANK_DELETE_POLICY"},
					},
					&cli.StringFlag{
						Name:    "s3-bucket",
						Usage:   "Archive each file to this S3 bucket before deleting it",
						EnvVars: []string{"MEMBANK_S3_BUCKET"},
					},
					&cli.StringFlag{
						Name:    "s3-prefix",
						Usage:   "Key prefix for archived files",
						EnvVars: []string{"MEMBANK_S3_PREFIX"},
					},
					&cli.StringFlag{
						Name:    "s3-region",
						Usage:   "AWS region of the archive bucket",
						EnvVars: []string{"AWS_REGION"},
					},
					&cli.StringFlag{
						Name:    "s3-endpoint",
						Usage:   "Custom S3 endpoint (MinIO, LocalStack)",
						EnvVars: []string{"MEMBANK_S3_ENDPOINT"},
					},
					&cli.BoolFlag{
						Name:    "s3-path-style",
						Usage:   "Use path-style S3 addressing",
						EnvVars: []string{"MEMBANK_S3_PATH_STYLE"},
					},
					&cli.StringFlag{
						Name:    "aws-access-key-id",
						Usage:   "Static AWS access key (default credential chain when empty)",
						EnvVars: []string{"AWS_ACCESS_KEY_ID"},
					},
					&cli.StringFlag{
						Name:    "aws-secret-access-key",
						Usage:   "Static AWS secret key",
						EnvVars: []string{"AWS_SECRET_ACCESS_KEY"},
					},
				),
			},
			{
				Name:      "search",
				Usage:     "Search a session table",
				ArgsUsage: "QUERY...",
				Action:    searchCommand,
				Flags: append(bankFlags(),
					sessionFlag(),
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of results",
						Value: 5,
					},
					&cli.Float64Flag{
						Name:  "min-similarity",
						Usage: "Minimum cosine similarity",
						Value: float64(search.DefaultMinSimilarity),
					},
				),
			},
			{
				Name:   "reembed",
				Usage:  "Reembed all records of a session with the configured model",
				Action: reembedCommand,
				Flags: append(bankFlags(),
					sessionFlag(),
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of records to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N records",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of batches embedded concurrently",
						Value: 1,
					},
				),
			},
			{
				Name:      "prompt",
				Usage:     "Render a PR agent prompt, or list prompts when no name is given",
				ArgsUsage: "[NAME]",
				Action:    promptCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "document",
						Aliases: []string{"d"},
						Usage:   "File whose contents replace the document placeholder (- for stdin)",
					},
					&cli.StringSliceFlag{
						Name:  "outlet",
						Usage: "Media outlet for the client brief prompt (repeatable)",
					},
				},
			},
		},
	}
}

// bankFlags returns the flags shared by every command that opens a bank.
func bankFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "bank",
			Aliases:  []string{"b"},
			Usage:    "Memory bank name",
			Required: true,
			EnvVars:  []string{"MEMBANK_BANK"},
		},
		&cli.StringFlag{
			Name:    "base-dir",
			Usage:   "Directory holding memory banks",
			Value:   "banks",
			EnvVars: []string{"MEMBANK_BASE_DIR"},
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "PostgreSQL URL; session tables are stored in pgvector instead of BadgerDB",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.StringFlag{
			Name:    "provider",
			Usage:   "Embedding provider (openai, gemini)",
			Value:   ai.ProviderOpenAI,
			EnvVars: []string{"MEMBANK_PROVIDER"},
		},
		&cli.StringFlag{
			Name:    "embedding-host",
			Usage:   "Embedding service host URL (openai provider)",
			Value:   "http://localhost:11434/v1",
			EnvVars: []string{"MEMBANK_EMBEDDING_HOST"},
		},
		&cli.StringFlag{
			Name:    "embedding-model",
			Usage:   "Embedding model name",
			Value:   "embeddinggemma",
			EnvVars: []string{"MEMBANK_EMBEDDING_MODEL"},
		},
		&cli.StringFlag{
			Name:    "api-key",
			Usage:   "Embedding service API key",
			EnvVars: []string{"MEMBANK_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY"},
		},
		&cli.IntFlag{
			Name:    "dimensions",
			Usage:   "Embedding vector length (0 probes the model)",
			EnvVars: []string{"MEMBANK_DIMENSIONS"},
		},
		&cli.Float64Flag{
			Name:  "breakpoint-percentile",
			Usage: "Semantic chunker breakpoint percentile",
			Value: 95,
		},
		&cli.IntFlag{
			Name:  "buffer-size",
			Usage: "Neighbouring sentences combined by the semantic chunker",
			Value: 1,
		},
		&cli.IntFlag{
			Name:  "max-chunk-size",
			Usage: "Maximum chunk length in characters (0 disables)",
		},
		&cli.IntFlag{
			Name:  "chunk-overlap",
			Usage: "Character overlap when splitting oversized chunks",
		},
	}
}

func sessionFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "session",
		Aliases:  []string{"s"},
		Usage:    "Session table name",
		Required: true,
		EnvVars:  []string{"MEMBANK_SESSION"},
	}
}

// aiConfig builds the embedding configuration from the bank flags.
func aiConfig(c *cli.Context) *ai.Config {
	return ai.NewConfig(
		ai.WithProvider(c.String("provider")),
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithAPIKey(c.String("api-key")),
		ai.WithDimensions(c.Int("dimensions")),
		ai.WithBreakpointPercentile(c.Float64("breakpoint-percentile")),
		ai.WithBufferSize(c.Int("buffer-size")),
		ai.WithMaxChunkSize(c.Int("max-chunk-size"), c.Int("chunk-overlap")),
	)
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
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

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
