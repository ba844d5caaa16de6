package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/mindex"
	"github.com/poiesic/mindex/ai/mock"
	"github.com/poiesic/mindex/core"
	"github.com/poiesic/mindex/service"
	"github.com/poiesic/mindex/storage"
)

// runApp runs the CLI against a mock embedder and returns its stdout.
func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	stdout = &out
	databaseOptions = []mindex.DatabaseOption{mindex.WithAIProvider(mock.NewMockProvider())}
	t.Cleanup(func() {
		stdout = os.Stdout
		databaseOptions = nil
	})

	app := newApp()
	app.ExitErrHandler = func(*cli.Context, error) {}
	app.ErrWriter = &bytes.Buffer{}
	err := app.Run(append([]string{"mindex"}, args...))
	return out.String(), err
}

func TestSetupLogger(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	tests := []struct {
		level   string
		wantErr bool
	}{
		{"debug", false},
		{"INFO", false},
		{"Warn", false},
		{"error", false},
		{"verbose", true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			app := &cli.App{
				Flags:  []cli.Flag{&cli.StringFlag{Name: "log-level", Value: "info"}},
				Before: setupLogger,
				Action: func(*cli.Context) error { return nil },
			}
			err := app.Run([]string{"test", "--log-level", tt.level})
			if tt.wantErr {
				assert.ErrorContains(t, err, "invalid log level")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func captureConfig(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	var got *Config
	app := &cli.App{
		Flags: configFlags(),
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			got = cfg
			return err
		},
	}
	err := app.Run(append([]string{"test"}, args...))
	return got, err
}

func TestLoadConfig_Layers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mindex.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
db: /var/lib/mindex
embedding_model: nomic-embed-text
chunk_size: 800
chunk_overlap: 100
pool_size: 2
step_timeout: 10s
`), 0644))

	t.Run("defaults", func(t *testing.T) {
		cfg, err := captureConfig(t)
		require.NoError(t, err)
		assert.Equal(t, defaultConfig(), cfg)
	})

	t.Run("file", func(t *testing.T) {
		cfg, err := captureConfig(t, "--config", path)
		require.NoError(t, err)
		assert.Equal(t, "/var/lib/mindex", cfg.DB)
		assert.Equal(t, "nomic-embed-text", cfg.EmbeddingModel)
		assert.Equal(t, 800, cfg.ChunkSize)
		assert.Equal(t, 10*time.Second, cfg.StepTimeout)
		assert.Equal(t, defaultConfig().EmbeddingHost, cfg.EmbeddingHost)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		t.Setenv("MINDEX_POOL_SIZE", "6")
		cfg, err := captureConfig(t, "--config", path)
		require.NoError(t, err)
		assert.Equal(t, 6, cfg.PoolSize)
		assert.Equal(t, 800, cfg.ChunkSize)
	})

	t.Run("flags override environment", func(t *testing.T) {
		t.Setenv("MINDEX_POOL_SIZE", "6")
		cfg, err := captureConfig(t, "--config", path, "--pool-size", "3", "--chunk-size", "400")
		require.NoError(t, err)
		assert.Equal(t, 3, cfg.PoolSize)
		assert.Equal(t, 400, cfg.ChunkSize)
	})
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"overlap not below size", []string{"--chunk-size", "100", "--chunk-overlap", "100"}},
		{"zero pool", []string{"--pool-size", "0"}},
		{"zero timeout", []string{"--step-timeout", "0s"}},
		{"postgres without dimensions", []string{"--postgres-url", "postgres://localhost/mindex", "--dimensions", "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := captureConfig(t, tt.args...)
			assert.Error(t, err)
		})
	}

	t.Run("unknown yaml key", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("chunk_sise: 10\n"), 0644))
		_, err := captureConfig(t, "--config", path)
		assert.ErrorContains(t, err, "parse config")
	})
}

func TestIngestStatusGraph(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "db")
	doc := filepath.Join(dir, "raft.md")
	require.NoError(t, os.WriteFile(doc, []byte("Raft elects a leader. The leader replicates the log to followers."), 0644))

	out, err := runApp(t, "--db", db, "ingest", "--user", "alice", "--agent", "agent-1", doc)
	require.NoError(t, err)

	var statuses []service.JobStatusResponse
	require.NoError(t, json.Unmarshal([]byte(out), &statuses))
	require.Len(t, statuses, 1)
	assert.Equal(t, core.JobStatusCompleted, statuses[0].Status)
	assert.Equal(t, "raft.md", statuses[0].Filename)

	out, err = runApp(t, "--db", db, "status", "--user", "alice", statuses[0].ID)
	require.NoError(t, err)
	var status service.JobStatusResponse
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, core.JobStatusCompleted, status.Status)

	_, err = runApp(t, "--db", db, "status", "--user", "bob", statuses[0].ID)
	assert.ErrorContains(t, err, "forbidden")

	out, err = runApp(t, "--db", db, "graph", "--user", "alice")
	require.NoError(t, err)
	var graph service.KnowledgeGraphResponse
	require.NoError(t, json.Unmarshal([]byte(out), &graph))
	assert.True(t, graph.Success)
	assert.NotEmpty(t, graph.Graph.Nodes)
}

func TestIngest_RequiresFiles(t *testing.T) {
	_, err := runApp(t, "--db", t.TempDir(), "ingest", "--user", "alice", "--agent", "agent-1")
	assert.ErrorContains(t, err, "at least one FILE")
}

func TestGraph_MemoryNeedsContent(t *testing.T) {
	_, err := runApp(t, "--db", t.TempDir(), "graph", "--user", "alice", "--memory", "m1")
	assert.ErrorContains(t, err, "--memory and --content")
}

type trackedMemories struct {
	storage.MemoryRepository
	closed int
}

func (m *trackedMemories) Close() error {
	m.closed++
	return nil
}

type trackedJobs struct {
	storage.JobRepository
	closed int
}

func (j *trackedJobs) Close() error {
	j.closed++
	return nil
}

func TestOpenDatabase_ClosesStoresOnFailure(t *testing.T) {
	var memories *trackedMemories
	var jobs *trackedJobs
	var jobErr error
	origMemories, origJobs := openMemoryStore, openJobStore
	openMemoryStore = func(context.Context, string, int) (storage.MemoryRepository, error) {
		memories = &trackedMemories{}
		return memories, nil
	}
	openJobStore = func(context.Context, string, time.Duration) (storage.JobRepository, error) {
		if jobErr != nil {
			return nil, jobErr
		}
		jobs = &trackedJobs{}
		return jobs, nil
	}
	t.Cleanup(func() { openMemoryStore, openJobStore = origMemories, origJobs })

	// A regular file where the BadgerDB directory should be
	notADir := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(notADir, []byte("x"), 0644))

	tests := []struct {
		name       string
		jobErr     error
		dbPath     string
		wantMemory int
		wantJobs   int
	}{
		{name: "job store fails", jobErr: errors.New("redis down"), dbPath: t.TempDir(), wantMemory: 1},
		{name: "database fails", dbPath: notADir, wantMemory: 1, wantJobs: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			memories, jobs, jobErr = nil, nil, tt.jobErr

			cfg := defaultConfig()
			cfg.DB = tt.dbPath
			cfg.PostgresURL = "postgres://example"
			cfg.RedisAddr = "localhost:0"

			db, err := openDatabase(context.Background(), cfg, mindex.WithAIProvider(mock.NewMockProvider()))
			require.Error(t, err)
			assert.Nil(t, db)
			require.NotNil(t, memories)
			assert.Equal(t, tt.wantMemory, memories.closed)
			if tt.wantJobs > 0 {
				require.NotNil(t, jobs)
				assert.Equal(t, tt.wantJobs, jobs.closed)
			}
		})
	}
}
