package cache

import (
	"context"
	"time"
)

// ReportCache stores serialized report payloads keyed by report kind and
// window. Builders are pure, so a cached payload is byte-identical to a
// recomputed one for the same inputs.
type ReportCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error
}

type NoopReportCache struct{}

func (NoopReportCache) Get(_ context.Context, _ string) ([]byte, bool, error) {
	return nil, false, nil
}

func (NoopReportCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error {
	return nil
}
