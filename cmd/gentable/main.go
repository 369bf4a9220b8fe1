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
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/gentable"
	"github.com/poiesic/gentable/config"
	"github.com/poiesic/gentable/core"
	"github.com/poiesic/gentable/ingestion"
)

const configKey = "config"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "gentable",
		Usage: "Generative tables: maintenance and ingestion tools",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error); overrides the config file",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML config file; environment variables apply when omitted",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:   "maintain",
				Usage:  "Run periodic reindex and optimization until interrupted",
				Action: maintainCommand,
			},
			{
				Name:   "reindex",
				Usage:  "Run one reindex pass over every table",
				Action: reindexCommand,
			},
			{
				Name:   "optimize",
				Usage:  "Run one optimization pass over every table",
				Action: optimizeCommand,
			},
			{
				Name:   "upload",
				Usage:  "Ingest a document into a knowledge table",
				Action: uploadCommand,
				Flags: append(tableFlags(),
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "Path of the document to ingest",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "chunk-size",
						Usage: "Maximum chunk length",
						Value: ingestion.DefaultChunkSize,
					},
					&cli.IntFlag{
						Name:  "chunk-overlap",
						Usage: "Characters shared by consecutive chunks",
						Value: ingestion.DefaultChunkOverlap,
					},
				),
			},
			{
				Name:   "search",
				Usage:  "Hybrid search over a table",
				Action: searchCommand,
				Flags: append(tableFlags(),
					&cli.StringFlag{
						Name:  "kind",
						Usage: "Table kind (action, knowledge, chat)",
						Value: string(core.KindKnowledge),
					},
					&cli.StringFlag{
						Name:     "query",
						Aliases:  []string{"q"},
						Usage:    "Search text",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of hits",
						Value: 5,
					},
					&cli.StringFlag{
						Name:  "reranker",
						Usage: "Reranking model; hits keep retrieval order when empty",
					},
				),
			},
		},
	}
}

func tableFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "org", Usage: "Organization id", Required: true},
		&cli.StringFlag{Name: "project", Usage: "Project id", Required: true},
		&cli.StringFlag{Name: "table", Aliases: []string{"t"}, Usage: "Table id", Required: true},
	}
}

// setup loads configuration and installs the default logger.
func setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{
		Level: level,
	})))
	if c.App.Metadata == nil {
		c.App.Metadata = map[string]any{}
	}
	c.App.Metadata[configKey] = cfg
	return nil
}

func openService(c *cli.Context) (*gentable.Service, error) {
	cfg, ok := c.App.Metadata[configKey].(*config.Config)
	if !ok {
		return nil, fmt.Errorf("configuration not loaded")
	}
	svc, err := gentable.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open service: %w", err)
	}
	return svc, nil
}

func maintainCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	svc.RunMaintenance(ctx)
	return nil
}

func reindexCommand(c *cli.Context) error {
	return runPass(c, "reindex", (*gentable.Service).TriggerReindex)
}

func optimizeCommand(c *cli.Context) error {
	return runPass(c, "optimization", (*gentable.Service).TriggerOptimize)
}

func runPass(c *cli.Context, job string, run func(*gentable.Service, context.Context) (core.RunSummary, error)) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	summary, err := run(svc, c.Context)
	if err != nil {
		return fmt.Errorf("%s failed: %w", job, err)
	}
	if summary.LockSkipped {
		fmt.Fprintf(c.App.Writer, "%s skipped: another run holds the lock\n", job)
		return nil
	}
	fmt.Fprintf(c.App.Writer, "%s: %d ok, %d skipped, %d failed\n", job, summary.OK, summary.Skipped, summary.Failed)
	return nil
}

func uploadCommand(c *cli.Context) error {
	path := c.String("file")
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	res, err := svc.UploadFile(c.Context, ingestion.UploadRequest{
		Table:        identity(c, core.KindKnowledge),
		FileName:     filepath.Base(path),
		Content:      content,
		ChunkSize:    c.Int("chunk-size"),
		ChunkOverlap: c.Int("chunk-overlap"),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "File: %s\n", res.File.ID)
	fmt.Fprintf(c.App.Writer, "Title: %s\n", res.Title)
	fmt.Fprintf(c.App.Writer, "Rows: %d\n", len(res.Rows))
	return nil
}

func searchCommand(c *cli.Context) error {
	kind, err := core.ParseTableKind(c.String("kind"))
	if err != nil {
		return fmt.Errorf("invalid kind %q: %w", c.String("kind"), err)
	}
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	hits, err := svc.HybridSearch(c.Context, identity(c, kind), core.SearchQuery{
		Query:          c.String("query"),
		Limit:          c.Int("limit"),
		RerankingModel: c.String("reranker"),
	}, nil)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "Found %d hits\n", len(hits))
	for i, hit := range hits {
		if text, ok := hit.Row[core.ColumnText].Value.(string); ok {
			fmt.Fprintf(c.App.Writer, "%d: '%s' [%0.3f]\n", i, text, hit.Score)
			continue
		}
		row, err := json.Marshal(hit.Row)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "%d: %s [%0.3f]\n", i, row, hit.Score)
	}
	return nil
}

func identity(c *cli.Context, kind core.TableKind) core.TableIdentity {
	return core.TableIdentity{
		OrgID:     c.String("org"),
		ProjectID: c.String("project"),
		Kind:      kind,
		TableID:   c.String("table"),
	}
}
