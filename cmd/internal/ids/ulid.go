// Package ids provides the ID primitives used across the engine
// (request correlation IDs, client instance IDs).
package ids

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewULID returns a new ULID string (26 chars).
// ULIDs are lexicographically sortable, which keeps correlated log lines
// groupable by issue time.
func NewULID(now time.Time) (string, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// RequestID returns a fresh correlation ID, falling back to "unknown"
// if entropy is unavailable. Request IDs are best-effort metadata and
// must never fail an operation.
func RequestID() string {
	id, err := NewULID(time.Time{})
	if err != nil {
		return "unknown"
	}
	return id
}
