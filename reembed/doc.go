// Package reembed recomputes the vectors of stored memories, typically after
// switching embedding models.
//
// Records are streamed from a storage.MemoryRepository in batches, embedded
// with retry and exponential backoff, normalized to unit length and written
// back under their own namespace. Chunk text, ids and provenance are left
// untouched, so graph edges that reference a memory stay valid.
package reembed
