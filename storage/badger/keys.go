package badger

import (
	"encoding/binary"
	"strconv"

	"github.com/poiesic/mindex/core"
)

// Key prefixes for different data types
const (
	jobPrefix     = "job"
	memoryPrefix  = "mem"
	conceptPrefix = "con"
	edgePrefix    = "edg"
)

// scoped builds "prefix:<len>:<scope>:". The length makes the scope
// unambiguous, so one user's prefix can never match another user's keys.
func scoped(prefix, scope string) []byte {
	return []byte(prefix + ":" + strconv.Itoa(len(scope)) + ":" + scope + ":")
}

// makeJobKey generates a key for a job by ID.
func makeJobKey(id string) []byte {
	return []byte(jobPrefix + ":" + id)
}

// makeMemoryPrefix generates the key prefix for all records in a namespace.
func makeMemoryPrefix(namespace string) []byte {
	return scoped(memoryPrefix, namespace)
}

// makeMemoryKey generates a key for a memory record.
// Format: mem:<len>:namespace:id
func makeMemoryKey(namespace, id string) []byte {
	return append(makeMemoryPrefix(namespace), id...)
}

// makeConceptPrefix generates the key prefix for a user's concepts.
func makeConceptPrefix(userID string) []byte {
	return scoped(conceptPrefix, userID)
}

// makeConceptKey generates a key for a concept.
// Format: con:<len>:user:<8 byte id>
func makeConceptKey(userID string, id core.ID) []byte {
	prefix := makeConceptPrefix(userID)
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeEdgePrefix generates the key prefix for a user's edges.
func makeEdgePrefix(userID string) []byte {
	return scoped(edgePrefix, userID)
}

// makeEdgeKey generates a key for the unordered pair (a, b).
// Format: edg:<len>:user:<8 byte low id><8 byte high id>
func makeEdgeKey(userID string, a, b core.ID) []byte {
	if a > b {
		a, b = b, a
	}
	prefix := makeEdgePrefix(userID)
	buf := make([]byte, len(prefix)+16)
	offset := copy(buf, prefix)
	// BigEndian keeps lexicographic order equal to numeric order
	binary.BigEndian.PutUint64(buf[offset:], uint64(a))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(b))
	return buf
}
