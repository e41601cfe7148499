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

	"github.com/poiesic/docqa/access"
	"github.com/poiesic/docqa/ai"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "docqa",
		Usage: "Ask questions about the documents you are allowed to read",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "warn",
			},
			&cli.StringFlag{
				Name:    "embedding-host",
				Usage:   "Embedding service host URL",
				Value:   "http://localhost:11434/v1",
				EnvVars: []string{"DOCQA_EMBEDDING_HOST"},
			},
			&cli.StringFlag{
				Name:    "embedding-model",
				Usage:   "Embedding model name",
				Value:   "all-minilm",
				EnvVars: []string{"DOCQA_EMBEDDING_MODEL"},
			},
			&cli.StringFlag{
				Name:    "embedding-token",
				Usage:   "API token for hosted embedding services",
				EnvVars: []string{"DOCQA_EMBEDDING_TOKEN"},
			},
			&cli.StringFlag{
				Name:    "policy",
				Aliases: []string{"p"},
				Usage:   "Path to a YAML access policy (built-in users when missing)",
				EnvVars: []string{"DOCQA_POLICY"},
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ask",
				Usage:     "Ask questions interactively, or once when a question is given",
				ArgsUsage: "[question]",
				Action:    askCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "user",
						Aliases:  []string{"u"},
						Usage:    "Email of the user asking",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "docs",
						Aliases: []string{"d"},
						Usage:   "Directory of documents to load",
						Value:   "./documents",
					},
					&cli.StringSliceFlag{
						Name:  "ext",
						Usage: "File extensions to load from the documents directory",
						Value: cli.NewStringSlice(".pdf"),
					},
					&cli.BoolFlag{
						Name:  "no-context",
						Usage: "Do not use previous answers when searching",
					},
					&cli.BoolFlag{
						Name:  "watch",
						Usage: "Load documents added to the directory while asking",
					},
					&cli.BoolFlag{
						Name:  "trace",
						Usage: "Print retrieval steps to stderr",
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum embedding attempts per document",
						Value: 3,
					},
				},
			},
			{
				Name:   "users",
				Usage:  "List users and the documents each may read",
				Action: usersCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "export",
						Usage: "Also write the effective policy as YAML to this path",
					},
				},
			},
			{
				Name:      "extract",
				Usage:     "Print the chunks extracted from documents",
				ArgsUsage: "<file>...",
				Action:    extractCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "min-length",
						Usage: "Characters a paragraph must exceed to be kept",
						Value: 50,
					},
				},
			},
		},
	}
}

func aiConfigFromFlags(c *cli.Context) *ai.Config {
	opts := []ai.ConfigOption{
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
	}
	if token := c.String("embedding-token"); token != "" {
		opts = append(opts, ai.WithToken(token))
	}
	return ai.NewConfig(opts...)
}

func policyFromFlags(c *cli.Context) (*access.Policy, error) {
	path := c.String("policy")
	if path == "" {
		return access.DefaultPolicy(), nil
	}
	policy, err := access.LoadPolicy(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}
	return policy, nil
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
