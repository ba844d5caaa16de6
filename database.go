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


// Package mindex wires the storage, embedding, ingestion, graph and retrieval
// components into a ready-to-use Database.
package mindex

import (
	"log/slog"

	"github.com/poiesic/mindex/ai"
	"github.com/poiesic/mindex/ai/breaker"
	"github.com/poiesic/mindex/ai/openai"
	"github.com/poiesic/mindex/graph"
	"github.com/poiesic/mindex/ingestion"
	"github.com/poiesic/mindex/search"
	"github.com/poiesic/mindex/service"
	"github.com/poiesic/mindex/storage"
	"github.com/poiesic/mindex/storage/badger"
)

type Database struct {
	backend  *badger.Backend
	jobs     storage.JobRepository
	memories storage.MemoryRepository
	graphs   storage.GraphRepository
	provider ai.AIProvider
	embedder ai.Embedder

	graph    *graph.Store
	manager  *ingestion.Manager
	searcher *search.Searcher
	service  *service.Service
	logger   *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	aiConfig      *ai.Config
	provider      ai.AIProvider
	jobs          storage.JobRepository
	memories      storage.MemoryRepository
	inMemory      bool
	breaker       *breaker.Config
	ingestionOpts []ingestion.Option
	logger        *slog.Logger
}

// WithAIConfig configures the OpenAI-compatible embedding provider.
func WithAIConfig(config *ai.Config) DatabaseOption {
	return func(o *databaseOptions) { o.aiConfig = config }
}

// WithAIProvider supplies a ready provider; WithAIConfig is then ignored.
func WithAIProvider(provider ai.AIProvider) DatabaseOption {
	return func(o *databaseOptions) { o.provider = provider }
}

// WithJobRepository stores jobs somewhere other than the local BadgerDB,
// e.g. redis for a job table shared between instances.
func WithJobRepository(repo storage.JobRepository) DatabaseOption {
	return func(o *databaseOptions) { o.jobs = repo }
}

// WithMemoryRepository indexes memories somewhere other than the local
// BadgerDB, e.g. postgres with pgvector.
func WithMemoryRepository(repo storage.MemoryRepository) DatabaseOption {
	return func(o *databaseOptions) { o.memories = repo }
}

// WithInMemory keeps BadgerDB data in memory only. The file path is ignored.
func WithInMemory() DatabaseOption {
	return func(o *databaseOptions) { o.inMemory = true }
}

// WithCircuitBreaker guards the embedder with a circuit breaker.
func WithCircuitBreaker(cfg breaker.Config) DatabaseOption {
	return func(o *databaseOptions) { o.breaker = &cfg }
}

// WithIngestionOptions passes options through to the ingestion manager.
func WithIngestionOptions(opts ...ingestion.Option) DatabaseOption {
	return func(o *databaseOptions) { o.ingestionOpts = append(o.ingestionOpts, opts...) }
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) { o.logger = logger }
}

// NewDatabase opens the BadgerDB at filePath and builds every component on it.
// Repositories supplied through options are owned by the Database from then
// on and closed by Close.
func NewDatabase(filePath string, opts ...DatabaseOption) (db *Database, err error) {
	options := &databaseOptions{
		aiConfig: ai.DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		if options.jobs != nil {
			options.jobs.Close()
		}
		if options.memories != nil {
			options.memories.Close()
		}
		return nil, err
	}

	db = &Database{
		backend:  backend,
		jobs:     options.jobs,
		memories: options.memories,
		graphs:   badger.NewGraphRepository(backend),
		provider: options.provider,
		logger:   options.logger,
	}
	defer func() {
		if err != nil {
			db.Close()
			db = nil
		}
	}()

	if db.jobs == nil {
		db.jobs = badger.NewJobRepository(backend)
	}
	if db.memories == nil {
		db.memories = badger.NewMemoryRepository(backend)
	}
	if db.provider == nil {
		if db.provider, err = openai.NewProvider(options.aiConfig); err != nil {
			return db, err
		}
	}

	db.embedder = db.provider.Embedder()
	if options.breaker != nil {
		db.embedder = breaker.Wrap(db.embedder, *options.breaker)
	}

	if db.graph, err = graph.NewStore(db.graphs, graph.WithLogger(db.logger)); err != nil {
		return db, err
	}

	ingestionOpts := append([]ingestion.Option{
		ingestion.WithLogger(db.logger),
		ingestion.WithGraphUpdater(db.graph),
	}, options.ingestionOpts...)
	if db.manager, err = ingestion.NewManager(db.jobs, db.memories, db.embedder, ingestionOpts...); err != nil {
		return db, err
	}

	if db.searcher, err = search.NewSearcher(db.memories, db.embedder,
		search.WithLogger(db.logger), search.WithGraph(db.graph)); err != nil {
		return db, err
	}

	if db.service, err = service.New(db.manager, db.graph, db.searcher, service.WithLogger(db.logger)); err != nil {
		return db, err
	}
	return db, nil
}

// Close waits for in-flight jobs, then closes the provider, the
// repositories and the backend. The first error is returned.
func (db *Database) Close() error {
	if db.manager != nil {
		db.manager.Wait()
		db.manager.Release()
	}

	var errs []error
	if db.provider != nil {
		if err := db.provider.Close(); err != nil {
			db.logger.Error("error closing AI provider", "err", err)
		}
	}
	repos := []struct {
		name string
		repo interface{ Close() error }
	}{
		{"job", db.jobs},
		{"memory", db.memories},
		{"graph", db.graphs},
	}
	for _, r := range repos {
		if r.repo == nil {
			continue
		}
		if err := r.repo.Close(); err != nil {
			db.logger.Error("error closing repository", "repository", r.name, "err", err)
			errs = append(errs, err)
		}
	}
	if err := db.backend.Close(); err != nil {
		db.logger.Error("error closing backend storage", "err", err)
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// Service returns the caller-facing operations.
func (db *Database) Service() *service.Service { return db.service }

// Manager returns the ingestion job manager.
func (db *Database) Manager() *ingestion.Manager { return db.manager }

// Searcher returns the semantic retrieval component.
func (db *Database) Searcher() *search.Searcher { return db.searcher }

// Graph returns the knowledge graph store.
func (db *Database) Graph() *graph.Store { return db.graph }

// Memories returns the memory repository.
func (db *Database) Memories() storage.MemoryRepository { return db.memories }

// Embedder returns the embedder in use, including any circuit breaker.
func (db *Database) Embedder() ai.Embedder { return db.embedder }
