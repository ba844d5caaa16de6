package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/poiesic/mindex/ai"
	"github.com/poiesic/mindex/chunk"
	"github.com/poiesic/mindex/core"
	"github.com/poiesic/mindex/storage"
)

// DefaultStepTimeout bounds each embedder and vector store call.
const DefaultStepTimeout = 30 * time.Second

// GraphUpdater receives the full text of every completed job.
type GraphUpdater interface {
	UpdateFromMemory(ctx context.Context, userID, memoryID, content string) (*core.Snapshot, error)
}

// Manager runs ingestion jobs on a worker pool.
type Manager struct {
	jobs     storage.JobRepository
	vectors  storage.VectorStore
	embedder ai.Embedder
	chunker  *chunk.Chunker
	graph    GraphUpdater

	pool        *ants.Pool
	poolSize    int
	stepTimeout time.Duration
	registerer  prometheus.Registerer
	metrics     *Metrics
	logger      *slog.Logger
	now         func() time.Time

	wg sync.WaitGroup
}

// Option configures a Manager.
type Option func(*Manager) error

// WithPoolSize sets how many jobs run concurrently.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(m *Manager) error {
		if size < 1 {
			size = 1
		}
		m.poolSize = size
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) error {
		if logger == nil {
			logger = slog.Default()
		}
		m.logger = logger
		return nil
	}
}

// WithStepTimeout bounds each embedder and vector store call.
func WithStepTimeout(d time.Duration) Option {
	return func(m *Manager) error {
		if d <= 0 {
			return fmt.Errorf("step timeout must be positive, got %s", d)
		}
		m.stepTimeout = d
		return nil
	}
}

// WithChunker replaces the default chunker.
func WithChunker(c *chunk.Chunker) Option {
	return func(m *Manager) error {
		if c == nil {
			return errors.New("chunker cannot be nil")
		}
		m.chunker = c
		return nil
	}
}

// WithRegisterer registers the manager's metrics on reg instead of a private registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(m *Manager) error {
		if reg == nil {
			return errors.New("registerer cannot be nil")
		}
		m.registerer = reg
		return nil
	}
}

// WithGraphUpdater sets the knowledge graph updated after each completed job.
func WithGraphUpdater(g GraphUpdater) Option {
	return func(m *Manager) error {
		m.graph = g
		return nil
	}
}

// NewManager creates a new ingestion manager.
func NewManager(jobs storage.JobRepository, vectors storage.VectorStore, embedder ai.Embedder, opts ...Option) (*Manager, error) {
	if jobs == nil {
		return nil, ErrJobRepositoryRequired
	}
	if vectors == nil {
		return nil, ErrVectorStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	defaultChunker, err := chunk.New(chunk.DefaultMaxChars, chunk.DefaultOverlap)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		jobs:        jobs,
		vectors:     vectors,
		embedder:    embedder,
		chunker:     defaultChunker,
		poolSize:    poolSize,
		stepTimeout: DefaultStepTimeout,
		registerer:  prometheus.NewRegistry(),
		logger:      slog.Default(),
		now:         func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	m.logger = m.logger.With("component", "ingestion")

	if m.metrics, err = newMetrics(m.registerer); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	if m.pool, err = ants.NewPool(m.poolSize); err != nil {
		return nil, err
	}
	return m, nil
}

// Metrics returns the manager's collectors.
func (m *Manager) Metrics() *Metrics {
	return m.metrics
}

// Submit records a PENDING job for text and schedules it. It returns as soon
// as the job is stored; processing continues even if ctx is canceled.
func (m *Manager) Submit(ctx context.Context, text, source, userID, agentID string) (string, error) {
	if userID == "" {
		return "", core.NewValidationError("userId is required")
	}
	normalized := chunk.Normalize(text)
	if normalized == "" {
		return "", core.NewValidationError("text is required")
	}

	now := m.now()
	job := &core.ProcessingJob{
		ID:        uuid.NewString(),
		UserID:    userID,
		AgentID:   agentID,
		Filename:  source,
		Status:    core.JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.jobs.CreateJob(ctx, job); err != nil {
		m.logger.Error("failed to create job", "err", err)
		return "", core.NewInternalError(err)
	}
	m.metrics.JobsSubmitted.Inc()
	m.logger.Info("job submitted", "job", job.ID, "user", userID, "source", source, "chars", len(normalized))

	runCtx := context.WithoutCancel(ctx)
	m.wg.Add(1)
	// ants blocks Submit while every worker is busy; queue from a goroutine
	// so the caller gets its job id immediately.
	go func() {
		err := m.pool.Submit(func() {
			defer m.wg.Done()
			m.run(runCtx, job, normalized)
		})
		if err != nil {
			defer m.wg.Done()
			m.fail(runCtx, job, core.NewInternalError(fmt.Errorf("schedule job: %w", err)))
		}
	}()

	return job.ID, nil
}

// GetStatus returns the current state of a job.
func (m *Manager) GetStatus(ctx context.Context, jobID string) (*core.ProcessingJob, error) {
	job, err := m.jobs.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, core.NewNotFoundError("job", jobID)
		}
		return nil, core.NewInternalError(err)
	}
	return job, nil
}

// Wait blocks until every submitted job has reached a terminal status.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Release stops the worker pool. Jobs submitted afterwards fail.
func (m *Manager) Release() {
	if m.pool != nil {
		m.pool.Release()
	}
}
