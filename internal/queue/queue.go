// Package queue provides the audit subsystem's write-behind buffer: when a
// database write fails, the record is pushed here under the record's table
// name instead of being lost, and the audit writer drains and retries it on
// the next tick.
package queue

// maxBufferedPerKey bounds how many failed writes accumulate per key while
// the database is unreachable. Beyond this the oldest record is dropped
// rather than growing without bound during an extended outage.
const maxBufferedPerKey = 256

// Queue buffers byte-encoded records by key pending a retried write.
type Queue struct {
	data map[string][][]byte
}

// NewQueue builds an empty buffer.
func NewQueue() *Queue {
	return &Queue{
		data: make(map[string][][]byte),
	}
}

// Push appends value under key, evicting the oldest entry if the per-key
// bound is exceeded. Returns the resulting length.
func (q *Queue) Push(key string, value []byte) (int, error) {
	entries := append(q.data[key], value)
	if len(entries) > maxBufferedPerKey {
		entries = entries[len(entries)-maxBufferedPerKey:]
	}
	q.data[key] = entries
	return len(entries), nil
}

// Drain returns and removes every buffered value for key.
func (q *Queue) Drain(key string) [][]byte {
	values := q.data[key]
	delete(q.data, key)
	return values
}

// Delete discards any buffered values for key without returning them.
func (q *Queue) Delete(key string) error {
	delete(q.data, key)
	return nil
}
