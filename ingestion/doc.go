// Package ingestion turns submitted documents into embedded, indexed memories.
//
// The Manager tracks each submission as a ProcessingJob that moves through
// PENDING, CHUNKING, EMBEDDING and INDEXING to COMPLETED, or to FAILED at the
// first error. Jobs run on a worker pool; a single goroutine owns each job and
// persists every transition through the JobRepository, so status readers see
// monotonic progress. Chunks already indexed when a job fails stay indexed.
//
// Once a job completes, an optional GraphUpdater receives the full text.
// Graph failures are logged and counted but never fail the job.
package ingestion
