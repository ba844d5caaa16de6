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


// Package storage provides the storage abstraction layer for mindex.
//
// This package defines repository interfaces that decouple storage implementation
// from business logic, so the ingestion manager, graph store and searcher can run
// against different backends interchangeably.
//
// # Architecture
//
//   - JobRepository: create/read/update-by-id persistence for ProcessingJobs
//   - VectorStore: namespaced upsert and nearest-neighbour query of MemoryRecords
//   - MemoryRepository: VectorStore plus point reads and full scans
//   - GraphRepository: per-user concept nodes and relationship edges
//
// # Implementations
//
//   - storage/badger: embedded BadgerDB, implements every interface
//   - storage/postgres: PostgreSQL with pgvector, implements MemoryRepository
//   - storage/redis: Redis, implements JobRepository
//
// # Usage
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	jobs := badger.NewJobRepository(backend)
//	memories := badger.NewMemoryRepository(backend)
//	graph := badger.NewGraphRepository(backend)
//
// Use in tests with in-memory storage:
//
//	repos, err := badger.NewMemoryRepositories()
//	if err != nil {
//	    t.Fatal(err)
//	}
//	defer repos.Close()
//
// # Error Handling
//
// Implementations return ErrNotFound for unknown ids and ErrDuplicateKey when
// creating a record that already exists. Callers test with errors.Is.
package storage
