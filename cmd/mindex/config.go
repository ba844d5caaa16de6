package main

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/poiesic/mindex/ai"
	"github.com/poiesic/mindex/chunk"
	"github.com/poiesic/mindex/ingestion"
)

// Config is the CLI's view of a deployment. Values come from, in rising
// priority, built-in defaults, the --config YAML file, MINDEX_* environment
// variables (a .env file in the working directory is loaded first) and flags.
type Config struct {
	DB             string        `yaml:"db"`
	EmbeddingHost  string        `yaml:"embedding_host"`
	EmbeddingModel string        `yaml:"embedding_model"`
	APIKey         string        `yaml:"api_key"`
	EmbedBatchSize int           `yaml:"embedding_batch_size"`
	ChunkSize      int           `yaml:"chunk_size"`
	ChunkOverlap   int           `yaml:"chunk_overlap"`
	PoolSize       int           `yaml:"pool_size"`
	StepTimeout    time.Duration `yaml:"step_timeout"`
	PostgresURL    string        `yaml:"postgres_url"`
	Dimensions     int           `yaml:"dimensions"`
	RedisAddr      string        `yaml:"redis_addr"`
	JobTTL         time.Duration `yaml:"job_ttl"`
}

func defaultConfig() *Config {
	aiCfg := ai.DefaultConfig()
	return &Config{
		DB:             "./mindex.db",
		EmbeddingHost:  aiCfg.EmbeddingHost,
		EmbeddingModel: aiCfg.EmbeddingModel,
		APIKey:         aiCfg.APIKey,
		EmbedBatchSize: aiCfg.BatchSize,
		ChunkSize:      chunk.DefaultMaxChars,
		ChunkOverlap:   chunk.DefaultOverlap,
		PoolSize:       4,
		StepTimeout:    ingestion.DefaultStepTimeout,
		Dimensions:     768,
		JobTTL:         7 * 24 * time.Hour,
	}
}

// configFlags are accepted by every command.
func configFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML config file", EnvVars: []string{"MINDEX_CONFIG"}},
		&cli.StringFlag{Name: "db", Aliases: []string{"d"}, Usage: "Path to BadgerDB database directory", EnvVars: []string{"MINDEX_DB"}},
		&cli.StringFlag{Name: "embedding-host", Usage: "OpenAI-compatible embedding service URL", EnvVars: []string{"MINDEX_EMBEDDING_HOST"}},
		&cli.StringFlag{Name: "embedding-model", Usage: "Embedding model name", EnvVars: []string{"MINDEX_EMBEDDING_MODEL"}},
		&cli.StringFlag{Name: "api-key", Usage: "Embedding service API key", EnvVars: []string{"MINDEX_API_KEY"}},
		&cli.IntFlag{Name: "embedding-batch-size", Usage: "Maximum texts per embedding request", EnvVars: []string{"MINDEX_EMBEDDING_BATCH_SIZE"}},
		&cli.IntFlag{Name: "chunk-size", Usage: "Maximum characters per chunk", EnvVars: []string{"MINDEX_CHUNK_SIZE"}},
		&cli.IntFlag{Name: "chunk-overlap", Usage: "Characters shared by consecutive chunks", EnvVars: []string{"MINDEX_CHUNK_OVERLAP"}},
		&cli.IntFlag{Name: "pool-size", Usage: "Concurrent ingestion jobs", EnvVars: []string{"MINDEX_POOL_SIZE"}},
		&cli.DurationFlag{Name: "step-timeout", Usage: "Timeout for each embedding or indexing call", EnvVars: []string{"MINDEX_STEP_TIMEOUT"}},
		&cli.StringFlag{Name: "postgres-url", Usage: "Store memories in PostgreSQL/pgvector instead of BadgerDB", EnvVars: []string{"MINDEX_POSTGRES_URL"}},
		&cli.IntFlag{Name: "dimensions", Usage: "Embedding width for the pgvector column", EnvVars: []string{"MINDEX_DIMENSIONS"}},
		&cli.StringFlag{Name: "redis-addr", Usage: "Store jobs in Redis instead of BadgerDB", EnvVars: []string{"MINDEX_REDIS_ADDR"}},
		&cli.DurationFlag{Name: "job-ttl", Usage: "Expiry of job records in Redis", EnvVars: []string{"MINDEX_JOB_TTL"}},
	}
}

// loadConfig resolves the effective configuration for c.
func loadConfig(c *cli.Context) (*Config, error) {
	cfg := defaultConfig()

	if path := c.String("config"); path != "" {
		if err := readConfigFile(path, cfg); err != nil {
			return nil, err
		}
	}

	setString := func(name string, dst *string) {
		if c.IsSet(name) {
			*dst = c.String(name)
		}
	}
	setInt := func(name string, dst *int) {
		if c.IsSet(name) {
			*dst = c.Int(name)
		}
	}
	setDuration := func(name string, dst *time.Duration) {
		if c.IsSet(name) {
			*dst = c.Duration(name)
		}
	}

	setString("db", &cfg.DB)
	setString("embedding-host", &cfg.EmbeddingHost)
	setString("embedding-model", &cfg.EmbeddingModel)
	setString("api-key", &cfg.APIKey)
	setInt("embedding-batch-size", &cfg.EmbedBatchSize)
	setInt("chunk-size", &cfg.ChunkSize)
	setInt("chunk-overlap", &cfg.ChunkOverlap)
	setInt("pool-size", &cfg.PoolSize)
	setDuration("step-timeout", &cfg.StepTimeout)
	setString("postgres-url", &cfg.PostgresURL)
	setInt("dimensions", &cfg.Dimensions)
	setString("redis-addr", &cfg.RedisAddr)
	setDuration("job-ttl", &cfg.JobTTL)

	return cfg, cfg.Validate()
}

func readConfigFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Validate checks values the components would otherwise reject late.
func (c *Config) Validate() error {
	if c.DB == "" {
		return fmt.Errorf("db path is required")
	}
	if c.EmbedBatchSize <= 0 {
		return fmt.Errorf("embedding-batch-size must be greater than 0")
	}
	if c.PoolSize <= 0 {
		return fmt.Errorf("pool-size must be greater than 0")
	}
	if c.StepTimeout <= 0 {
		return fmt.Errorf("step-timeout must be greater than 0")
	}
	if _, err := chunk.New(c.ChunkSize, c.ChunkOverlap); err != nil {
		return err
	}
	if c.PostgresURL != "" && c.Dimensions <= 0 {
		return fmt.Errorf("dimensions must be greater than 0 when postgres-url is set")
	}
	return nil
}

// AIConfig converts the embedding settings.
func (c *Config) AIConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingHost(c.EmbeddingHost),
		ai.WithEmbeddingModel(c.EmbeddingModel),
		ai.WithAPIKey(c.APIKey),
		ai.WithBatchSize(c.EmbedBatchSize),
	)
}
