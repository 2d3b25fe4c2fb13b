package driven

import (
	"context"
	"time"
)

// DistributedLock hands out named mutual-exclusion leases across every API
// and worker process sharing one store. Ingestion locks "ingest:<source id>"
// for the duration of a run.
type DistributedLock interface {
	// Acquire takes the lease without blocking. acquired is false when another
	// holder has it. Backends that support expiry drop the lease after ttl.
	Acquire(ctx context.Context, name string, ttl time.Duration) (acquired bool, err error)

	// Release gives up a lease this process holds. Releasing a lease that is
	// gone or held elsewhere is not an error.
	Release(ctx context.Context, name string) error

	// Extend pushes back the expiry of a lease this process holds and fails
	// when it does not hold it. Backends without expiry only check ownership.
	Extend(ctx context.Context, name string, ttl time.Duration) error

	Ping(ctx context.Context) error
}
