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


package storage

import (
	"fmt"

	"github.com/poiesic/mindex/core"
)

func MarshalID(id core.ID) []byte {
	buf := make([]byte, core.IDMUS.Size(id))
	core.IDMUS.Marshal(id, buf)
	return buf
}

func UnmarshalID(data []byte) (core.ID, error) {
	id, _, err := core.IDMUS.Unmarshal(data)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return id, nil
}

func MarshalJob(job *core.ProcessingJob) []byte {
	buf := make([]byte, core.ProcessingJobMUS.Size(*job))
	core.ProcessingJobMUS.Marshal(*job, buf)
	return buf
}

func UnmarshalJob(data []byte) (*core.ProcessingJob, error) {
	job, _, err := core.ProcessingJobMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &job, nil
}

func MarshalMemoryRecord(record *core.MemoryRecord) []byte {
	buf := make([]byte, core.MemoryRecordMUS.Size(*record))
	core.MemoryRecordMUS.Marshal(*record, buf)
	return buf
}

func UnmarshalMemoryRecord(data []byte) (*core.MemoryRecord, error) {
	record, _, err := core.MemoryRecordMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &record, nil
}

func MarshalConcept(concept *core.Concept) []byte {
	buf := make([]byte, core.ConceptMUS.Size(*concept))
	core.ConceptMUS.Marshal(*concept, buf)
	return buf
}

func UnmarshalConcept(data []byte) (*core.Concept, error) {
	concept, _, err := core.ConceptMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &concept, nil
}

func MarshalEdge(edge *core.RelationshipEdge) []byte {
	buf := make([]byte, core.RelationshipEdgeMUS.Size(*edge))
	core.RelationshipEdgeMUS.Marshal(*edge, buf)
	return buf
}

func UnmarshalEdge(data []byte) (*core.RelationshipEdge, error) {
	edge, _, err := core.RelationshipEdgeMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &edge, nil
}
