package core

//go:generate go run ../cmd/musgen

import (
	"encoding/binary"
	"strconv"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a content-derived identifier for graph entities.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// ConceptID returns the identity of the concept (userID, label).
func ConceptID(userID, label string) ID {
	return IDFromContent(strconv.Itoa(len(userID)) + ":" + userID + ":" + label)
}

// Namespace returns the vector store namespace for an agent acting on behalf of a user.
// Memories are never shared across users, so the user is part of the namespace.
func Namespace(agentID, userID string) string {
	return agentID + "/" + userID
}

// JobStatus is the lifecycle state of a ProcessingJob.
type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusChunking  JobStatus = "CHUNKING"
	JobStatusEmbedding JobStatus = "EMBEDDING"
	JobStatusIndexing  JobStatus = "INDEXING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusFailed    JobStatus = "FAILED"
)

// jobTransitions lists the forward moves allowed out of each non-terminal state.
// FAILED is reachable from any non-terminal state and is handled separately.
var jobTransitions = map[JobStatus][]JobStatus{
	JobStatusPending:   {JobStatusChunking},
	JobStatusChunking:  {JobStatusEmbedding, JobStatusCompleted},
	JobStatusEmbedding: {JobStatusIndexing},
	JobStatusIndexing:  {JobStatusEmbedding, JobStatusCompleted},
}

// IsTerminal reports whether no further transitions are possible.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransition reports whether a job may move from s to next.
func (s JobStatus) CanTransition(next JobStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if next == JobStatusFailed {
		return true
	}
	for _, allowed := range jobTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ProcessingJob tracks one ingestion run.
type ProcessingJob struct {
	ID              string
	UserID          string
	AgentID         string
	Filename        string
	Status          JobStatus
	TotalChunks     int
	ProcessedChunks int
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Error           string // Human readable failure reason, empty unless FAILED
}

// Progress returns processed/total as a percentage, or 0 when nothing has been chunked.
func (j *ProcessingJob) Progress() float64 {
	if j.TotalChunks == 0 {
		return 0
	}
	return float64(j.ProcessedChunks) / float64(j.TotalChunks) * 100
}

// MemoryRecord is one embedded chunk of an ingested document.
type MemoryRecord struct {
	ID         string
	DocumentID string // ID of the job that produced this record
	Namespace  string
	Content    string
	Source     string
	UserID     string
	AgentID    string
	ChunkIndex int
	Vector     []float32
	CreatedAt  time.Time
}

// Concept is a normalized keyword node in a user's knowledge graph.
type Concept struct {
	Id        ID
	Label     string
	UserID    string
	CreatedAt time.Time
}

// RelationshipEdge links two concepts that co-occurred in the same content.
// MemoryIDs holds every memory that contributed an occurrence.
type RelationshipEdge struct {
	SourceID        ID
	TargetID        ID
	UserID          string
	MemoryIDs       []string
	OccurrenceCount int
	Strength        float64
	UpdatedAt       time.Time
}

// PairKey returns the edge endpoints in canonical (low, high) order.
func (e *RelationshipEdge) PairKey() (ID, ID) {
	if e.SourceID <= e.TargetID {
		return e.SourceID, e.TargetID
	}
	return e.TargetID, e.SourceID
}

// HasProvenance reports whether any of the given memory IDs contributed to the edge.
func (e *RelationshipEdge) HasProvenance(memoryIDs map[string]struct{}) bool {
	for _, id := range e.MemoryIDs {
		if _, ok := memoryIDs[id]; ok {
			return true
		}
	}
	return false
}

// Snapshot is a point-in-time read of a user's concept graph.
type Snapshot struct {
	Nodes []*Concept
	Edges []*RelationshipEdge
}

// SearchResult is a memory returned by a vector query with its similarity score.
type SearchResult struct {
	Record *MemoryRecord
	Score  float32
}
