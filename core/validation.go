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


package core

import (
	"fmt"
	"strings"
)

// ValidateMemoryRecord validates a MemoryRecord before it is written.
//
// Validation rules:
//   - ID, Namespace and UserID must not be empty
//   - Content must not be blank
//
// Vector is not checked; stores decide what an empty vector means.
func ValidateMemoryRecord(record *MemoryRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidMemoryRecord)
	}
	if record.ID == "" {
		return fmt.Errorf("%w: id is empty", ErrInvalidMemoryRecord)
	}
	if record.Namespace == "" {
		return fmt.Errorf("%w: namespace is empty", ErrInvalidMemoryRecord)
	}
	if record.UserID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidMemoryRecord, ErrEmptyUserID)
	}
	if strings.TrimSpace(record.Content) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidMemoryRecord, ErrEmptyContent)
	}
	return nil
}

// ValidateJob validates a ProcessingJob record.
func ValidateJob(job *ProcessingJob) error {
	if job == nil {
		return fmt.Errorf("%w: job is nil", ErrInvalidJob)
	}
	if job.ID == "" {
		return fmt.Errorf("%w: id is empty", ErrInvalidJob)
	}
	if job.UserID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidJob, ErrEmptyUserID)
	}
	if job.ProcessedChunks < 0 || job.ProcessedChunks > job.TotalChunks {
		return fmt.Errorf("%w: %w: %d of %d", ErrInvalidJob, ErrProgressOutOfRange, job.ProcessedChunks, job.TotalChunks)
	}
	return nil
}

// ValidateTransition checks that a job may move to next.
func ValidateTransition(job *ProcessingJob, next JobStatus) error {
	if !job.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, next)
	}
	return nil
}

// ValidateConcept validates a Concept.
func ValidateConcept(concept *Concept) error {
	if concept == nil {
		return fmt.Errorf("%w: concept is nil", ErrInvalidConcept)
	}
	if concept.UserID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidConcept, ErrEmptyUserID)
	}
	if concept.Label == "" {
		return fmt.Errorf("%w: %w", ErrInvalidConcept, ErrEmptyLabel)
	}
	return nil
}

// ValidateEdge validates a RelationshipEdge.
func ValidateEdge(edge *RelationshipEdge) error {
	if edge == nil {
		return fmt.Errorf("%w: edge is nil", ErrInvalidEdge)
	}
	if edge.UserID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEdge, ErrEmptyUserID)
	}
	if edge.SourceID == edge.TargetID {
		return fmt.Errorf("%w: self loop on %d", ErrInvalidEdge, edge.SourceID)
	}
	if edge.Strength < 0 || edge.Strength > 1 {
		return fmt.Errorf("%w: strength %f out of range", ErrInvalidEdge, edge.Strength)
	}
	return nil
}
