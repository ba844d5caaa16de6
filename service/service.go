// Package service exposes the caller-facing operations: submitting documents,
// reading job status and working with the knowledge graph. Every error it
// returns is a *core.Error whose Kind tells the caller whether resubmitting
// can help; use core.PublicMessage to render it.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/poiesic/mindex/core"
	"github.com/poiesic/mindex/search"
)

const (
	// DefaultGraphLimit is the number of memories retrieved for a graph query without a limit.
	DefaultGraphLimit = 10

	// MaxGraphLimit caps the memories retrieved for a graph query.
	MaxGraphLimit = 100
)

var (
	// ErrIngestorRequired is returned when no Ingestor is supplied.
	ErrIngestorRequired = errors.New("ingestor required")

	// ErrGraphRequired is returned when no Graph is supplied.
	ErrGraphRequired = errors.New("graph required")

	// ErrRetrieverRequired is returned when no Retriever is supplied.
	ErrRetrieverRequired = errors.New("retriever required")
)

// Ingestor accepts documents and reports job status.
type Ingestor interface {
	Submit(ctx context.Context, text, source, userID, agentID string) (string, error)
	GetStatus(ctx context.Context, jobID string) (*core.ProcessingJob, error)
}

// Graph is the knowledge graph store.
type Graph interface {
	UpdateFromMemory(ctx context.Context, userID, memoryID, content string) (*core.Snapshot, error)
	Snapshot(ctx context.Context, userID string, memoryIDs []string) (*core.Snapshot, error)
}

// Retriever runs semantic retrieval with graph context.
type Retriever interface {
	SearchWithGraph(ctx context.Context, query, userID, agentID string, limit int) (*search.GraphResult, error)
}

// SubmitRequest asks for a document to be ingested.
type SubmitRequest struct {
	Text    string `json:"text" validate:"required"`
	Source  string `json:"source"`
	UserID  string `json:"userId" validate:"required"`
	AgentID string `json:"agentId" validate:"required"`
}

// SubmitResponse identifies the created job.
type SubmitResponse struct {
	JobID string `json:"jobId"`
}

// JobStatusRequest asks for a job's state on behalf of a user.
type JobStatusRequest struct {
	JobID            string `json:"jobId" validate:"required"`
	RequestingUserID string `json:"requestingUserId"`
}

// JobStatusResponse is the caller's view of a ProcessingJob.
type JobStatusResponse struct {
	ID              string         `json:"id"`
	Status          core.JobStatus `json:"status"`
	Filename        string         `json:"filename"`
	TotalChunks     int            `json:"totalChunks"`
	ProcessedChunks int            `json:"processedChunks"`
	Progress        float64        `json:"progress"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
	Error           string         `json:"error,omitempty"`
}

// KnowledgeGraphRequest either records a memory in the graph (MemoryID and
// Content both set) or reads the graph, optionally narrowed by Query.
type KnowledgeGraphRequest struct {
	UserID   string `json:"userId" validate:"required"`
	AgentID  string `json:"agentId" validate:"required_with=Query"`
	Query    string `json:"query"`
	Limit    int    `json:"limit" validate:"gte=0"`
	MemoryID string `json:"memoryId"`
	Content  string `json:"content"`
}

// KnowledgeGraphResponse carries the graph and, on the query path, the
// memories that selected it.
type KnowledgeGraphResponse struct {
	Success  bool                 `json:"success"`
	Query    string               `json:"query,omitempty"`
	Graph    *core.Snapshot       `json:"graph"`
	Memories []*core.SearchResult `json:"memories,omitempty"`
}

// Service implements the caller-facing operations.
type Service struct {
	ingestor  Ingestor
	graph     Graph
	retriever Retriever
	validate  *validator.Validate
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service) error

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// New creates a Service.
func New(ingestor Ingestor, graph Graph, retriever Retriever, opts ...Option) (*Service, error) {
	if ingestor == nil {
		return nil, ErrIngestorRequired
	}
	if graph == nil {
		return nil, ErrGraphRequired
	}
	if retriever == nil {
		return nil, ErrRetrieverRequired
	}

	s := &Service{
		ingestor:  ingestor,
		graph:     graph,
		retriever: retriever,
		validate:  newValidator(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "service")
	return s, nil
}

// Submit starts ingesting a document and returns its job id.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*SubmitResponse, error) {
	req.Text = strings.TrimSpace(req.Text)
	if err := s.validateStruct(req); err != nil {
		return nil, err
	}

	jobID, err := s.ingestor.Submit(ctx, req.Text, req.Source, req.UserID, req.AgentID)
	if err != nil {
		return nil, s.classify("submit", err)
	}
	return &SubmitResponse{JobID: jobID}, nil
}

// JobStatus returns a job owned by the requesting user.
func (s *Service) JobStatus(ctx context.Context, req JobStatusRequest) (*JobStatusResponse, error) {
	if req.RequestingUserID == "" {
		return nil, core.NewAuthError("missing credentials")
	}
	if err := s.validateStruct(req); err != nil {
		return nil, err
	}

	job, err := s.ingestor.GetStatus(ctx, req.JobID)
	if err != nil {
		return nil, s.classify("job status", err)
	}
	if job.UserID != req.RequestingUserID {
		s.logger.Warn("job status denied", "job", req.JobID, "requester", req.RequestingUserID)
		return nil, core.NewForbiddenError("job belongs to another user")
	}

	return &JobStatusResponse{
		ID:              job.ID,
		Status:          job.Status,
		Filename:        job.Filename,
		TotalChunks:     job.TotalChunks,
		ProcessedChunks: job.ProcessedChunks,
		Progress:        job.Progress(),
		CreatedAt:       job.CreatedAt,
		UpdatedAt:       job.UpdatedAt,
		Error:           job.Error,
	}, nil
}

// KnowledgeGraph updates the graph from a memory, or reads it.
func (s *Service) KnowledgeGraph(ctx context.Context, req KnowledgeGraphRequest) (*KnowledgeGraphResponse, error) {
	req.Query = strings.TrimSpace(req.Query)
	if err := s.validateStruct(req); err != nil {
		return nil, err
	}

	if req.MemoryID != "" && req.Content != "" {
		snapshot, err := s.graph.UpdateFromMemory(ctx, req.UserID, req.MemoryID, req.Content)
		if err != nil {
			return nil, s.classify("graph update", err)
		}
		return &KnowledgeGraphResponse{Success: true, Graph: snapshot}, nil
	}

	if req.Query == "" {
		snapshot, err := s.graph.Snapshot(ctx, req.UserID, nil)
		if err != nil {
			return nil, s.classify("graph snapshot", err)
		}
		return &KnowledgeGraphResponse{Success: true, Graph: snapshot, Memories: []*core.SearchResult{}}, nil
	}

	limit := req.Limit
	if limit == 0 {
		limit = DefaultGraphLimit
	}
	limit = min(limit, MaxGraphLimit)

	res, err := s.retriever.SearchWithGraph(ctx, req.Query, req.UserID, req.AgentID, limit)
	if err != nil {
		return nil, s.classify("graph query", err)
	}
	return &KnowledgeGraphResponse{
		Success:  true,
		Query:    req.Query,
		Graph:    res.Graph,
		Memories: res.Results,
	}, nil
}

// classify ensures err carries a kind, logging anything internal.
func (s *Service) classify(op string, err error) error {
	var typed *core.Error
	if !errors.As(err, &typed) {
		err = core.NewInternalError(err)
	}
	if core.KindOf(err) == core.KindInternal {
		s.logger.Error("operation failed", "op", op, "err", err)
	}
	return err
}
