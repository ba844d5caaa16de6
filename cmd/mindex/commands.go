package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/poiesic/mindex"
	"github.com/poiesic/mindex/ai/breaker"
	"github.com/poiesic/mindex/chunk"
	"github.com/poiesic/mindex/core"
	"github.com/poiesic/mindex/ingestion"
	"github.com/poiesic/mindex/reembed"
	"github.com/poiesic/mindex/service"
	"github.com/poiesic/mindex/storage"
	"github.com/poiesic/mindex/storage/postgres"
	"github.com/poiesic/mindex/storage/redis"
)

// openDatabase builds a Database from cfg. Optional Postgres and Redis
// stores replace the BadgerDB memory and job repositories.
func openDatabase(ctx context.Context, cfg *Config, extra ...mindex.DatabaseOption) (*mindex.Database, error) {
	chunker, err := chunk.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	opts := []mindex.DatabaseOption{
		mindex.WithAIConfig(cfg.AIConfig()),
		mindex.WithCircuitBreaker(breaker.DefaultConfig()),
		mindex.WithIngestionOptions(
			ingestion.WithChunker(chunker),
			ingestion.WithPoolSize(cfg.PoolSize),
			ingestion.WithStepTimeout(cfg.StepTimeout),
		),
	}

	var opened []io.Closer
	closeOpened := func() {
		for _, c := range opened {
			c.Close()
		}
	}
	if cfg.PostgresURL != "" {
		memories, err := openMemoryStore(ctx, cfg.PostgresURL, cfg.Dimensions)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		opened = append(opened, memories)
		opts = append(opts, mindex.WithMemoryRepository(memories))
	}
	if cfg.RedisAddr != "" {
		jobs, err := openJobStore(ctx, cfg.RedisAddr, cfg.JobTTL)
		if err != nil {
			closeOpened()
			return nil, fmt.Errorf("open redis: %w", err)
		}
		opened = append(opened, jobs)
		opts = append(opts, mindex.WithJobRepository(jobs))
	}

	// NewDatabase owns the stores from here on, including on failure
	return mindex.NewDatabase(cfg.DB, append(opts, extra...)...)
}

var (
	openMemoryStore = func(ctx context.Context, url string, dimensions int) (storage.MemoryRepository, error) {
		return postgres.Open(ctx, url, dimensions)
	}
	openJobStore = func(ctx context.Context, addr string, ttl time.Duration) (storage.JobRepository, error) {
		return redis.NewJobRepository(ctx, addr, ttl)
	}
)

// withDatabase runs fn against a Database opened from the command's configuration.
func withDatabase(c *cli.Context, fn func(ctx context.Context, cfg *Config, db *mindex.Database) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	db, err := openDatabase(c.Context, cfg, databaseOptions...)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(c.Context, cfg, db)
}

// databaseOptions is appended to every Database the CLI opens. Tests use it
// to swap in an in-memory store and a mock embedder.
var databaseOptions []mindex.DatabaseOption

var stdout io.Writer = os.Stdout

func writeJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// userError renders a classified error without internal detail.
func userError(op string, err error) error {
	return cli.Exit(fmt.Sprintf("%s: %s (%s)", op, core.PublicMessage(err), core.KindOf(err)), 1)
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("ingest: at least one FILE is required", 2)
	}
	return withDatabase(c, func(ctx context.Context, cfg *Config, db *mindex.Database) error {
		return ingestFiles(ctx, c, cfg, db)
	})
}

func ingestFiles(ctx context.Context, c *cli.Context, cfg *Config, db *mindex.Database) error {
	svc := db.Service()
	files := c.Args().Slice()
	jobIDs := make([]string, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.PoolSize)
	for i, path := range files {
		g.Go(func() error {
			text, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			source := c.String("source")
			if source == "" {
				source = filepath.Base(path)
			}
			resp, err := svc.Submit(gctx, service.SubmitRequest{
				Text:    string(text),
				Source:  source,
				UserID:  c.String("user"),
				AgentID: c.String("agent"),
			})
			if err != nil {
				return userError("submit "+path, err)
			}
			jobIDs[i] = resp.JobID
			return nil
		})
	}
	submitErr := g.Wait()

	// already submitted jobs still run to completion
	db.Manager().Wait()

	var (
		statuses []*service.JobStatusResponse
		failed   []string
	)
	for i, id := range jobIDs {
		if id == "" {
			continue
		}
		status, err := svc.JobStatus(ctx, service.JobStatusRequest{JobID: id, RequestingUserID: c.String("user")})
		if err != nil {
			return userError("status "+id, err)
		}
		statuses = append(statuses, status)
		if status.Status == core.JobStatusFailed {
			failed = append(failed, files[i])
		}
	}

	if err := writeJSON(statuses); err != nil {
		return err
	}
	if submitErr != nil {
		return submitErr
	}
	if len(failed) > 0 {
		return cli.Exit("ingest failed for "+strings.Join(failed, ", "), 1)
	}
	return nil
}

func statusCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("status: exactly one JOBID is required", 2)
	}
	return withDatabase(c, func(ctx context.Context, _ *Config, db *mindex.Database) error {
		status, err := db.Service().JobStatus(ctx, service.JobStatusRequest{
			JobID:            c.Args().First(),
			RequestingUserID: c.String("user"),
		})
		if err != nil {
			return userError("status", err)
		}
		return writeJSON(status)
	})
}

func searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	return withDatabase(c, func(ctx context.Context, _ *Config, db *mindex.Database) error {
		user, agent, limit := c.String("user"), c.String("agent"), c.Int("limit")
		if c.Bool("graph") {
			res, err := db.Searcher().SearchWithGraph(ctx, query, user, agent, limit)
			if err != nil {
				return userError("search", err)
			}
			return writeJSON(res)
		}
		results, err := db.Searcher().Search(ctx, query, user, agent, limit)
		if err != nil {
			return userError("search", err)
		}
		return writeJSON(results)
	})
}

func graphCommand(c *cli.Context) error {
	if c.IsSet("memory") != c.IsSet("content") {
		return cli.Exit("graph: --memory and --content must be used together", 2)
	}
	return withDatabase(c, func(ctx context.Context, _ *Config, db *mindex.Database) error {
		resp, err := db.Service().KnowledgeGraph(ctx, service.KnowledgeGraphRequest{
			UserID:   c.String("user"),
			AgentID:  c.String("agent"),
			Query:    c.String("query"),
			Limit:    c.Int("limit"),
			MemoryID: c.String("memory"),
			Content:  c.String("content"),
		})
		if err != nil {
			return userError("graph", err)
		}
		return writeJSON(resp)
	})
}

func reembedCommand(c *cli.Context) error {
	config := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
		Namespace:      c.String("namespace"),
	}
	if config.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if config.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if config.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	return withDatabase(c, func(ctx context.Context, _ *Config, db *mindex.Database) error {
		r, err := reembed.NewReembedder(db.Memories(), db.Embedder(), config, c.App.ErrWriter)
		if err != nil {
			return err
		}
		if _, err := r.Run(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return cli.Exit("reembedding cancelled", 130)
			}
			return fmt.Errorf("reembedding failed: %w", err)
		}
		return nil
	})
}
