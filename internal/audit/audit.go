// Package audit records a write-only ledger of fork/spawn/destroy events.
// It is explicitly not a state store: the control plane never reads it
// back to reconstruct in-memory state after a restart, only to append.
package audit

import (
	"context"
	"time"
)

// Event is one fork/spawn/destroy record.
type Event struct {
	Kind      string // "spawn", "fork", "acquire", "release_recycle", "release_destroy"
	VMID      string
	PoolID    string
	Host      string
	Detail    string
	Timestamp time.Time
}

// Sink appends audit events. Implementations must not block the caller on
// a slow or unavailable backend for more than the context deadline.
type Sink interface {
	Record(ctx context.Context, ev Event) error
	Close() error
}

// NoopSink discards every event. It is the default when no DSN is
// configured.
type NoopSink struct{}

func (NoopSink) Record(ctx context.Context, ev Event) error { return nil }
func (NoopSink) Close() error                                { return nil }
