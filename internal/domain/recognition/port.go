package recognition

import (
	"context"
	"time"
)

// Repository port (interface untuk persistence)
type Repository interface {
	// Put writes a single immutable record. Returns ErrDuplicateKey (wrapped)
	// when (SubjectID, Timestamp) already exists.
	Put(ctx context.Context, rec *Record) error

	// Query returns at most limit records for a subject, most recent first.
	// An empty result is valid.
	Query(ctx context.Context, subjectID string, limit int) ([]*Record, error)
}

// Signer port: mints time-limited single-verb URLs against the object store.
// A returned URL grants exactly one verb on exactly one key until expiry.
type Signer interface {
	IssueRead(ctx context.Context, key string, ttl time.Duration) (string, error)
	IssueWrite(ctx context.Context, key string, ttl time.Duration, contentType string) (string, error)
}

// Classifier port: exactly one external call per invocation, no batching,
// caching, or retries. Retry policy belongs to the caller.
type Classifier interface {
	Classify(ctx context.Context, imageURL string) (Classification, error)
}
