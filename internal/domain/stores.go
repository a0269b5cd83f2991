package domain

import (
	"context"
	"iter"
)

// LedgerStore is the append-only record store behind episodic memory. Each
// entry is one JSON object; the store never interprets it.
type LedgerStore interface {
	Append(ctx context.Context, line []byte) error
	// ReadAll yields entries in append order. A read error ends the sequence.
	ReadAll(ctx context.Context) iter.Seq2[[]byte, error]
	Close() error
}

// FailureMemory counts failed actions and causes, independent of the ledger.
type FailureMemory interface {
	RecordFailure(ctx context.Context, f FailureRecord) error
	FailureCount(ctx context.Context, action string) (int, error)
	CauseCount(ctx context.Context, cause string) (int, error)
	TopFailures(ctx context.Context, n int) ([]ActionFailureCount, error)
	// RecentFailures returns up to n of the latest failures, oldest first.
	// n <= 0 returns all of them.
	RecentFailures(ctx context.Context, n int) ([]FailureRecord, error)
}

// FingerprintMatch is a fingerprint with a context similarity score.
type FingerprintMatch struct {
	Fingerprint string  `json:"fingerprint"`
	Score       float64 `json:"score"`
}

// ContextIndex finds fingerprints whose recorded contexts resemble a tag set.
type ContextIndex interface {
	Upsert(ctx context.Context, fingerprint string, tags []string) error
	Nearest(ctx context.Context, tags []string, limit int) ([]FingerprintMatch, error)
}

// EventSink receives structured progress events for rendering.
type EventSink interface {
	Emit(ctx context.Context, e Event)
}
