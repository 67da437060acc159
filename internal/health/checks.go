package health

import (
	"context"
	"errors"
)

// Existence is the part of a storage adapter a probe needs
type Existence interface {
	Exists(ctx context.Context, key string) (bool, error)
}

// Pinger is a backend that can verify its connection
type Pinger interface {
	Ping(ctx context.Context) error
}

// StorageCheck probes an adapter with a lookup of a key that need not exist
func StorageCheck(adapter Existence) CheckFunc {
	return func(ctx context.Context) (Status, error) {
		if adapter == nil {
			return StatusDegraded, errors.New("no storage adapter configured")
		}
		if _, err := adapter.Exists(ctx, ".healthcheck"); err != nil {
			return StatusUnhealthy, err
		}
		return StatusHealthy, nil
	}
}

// PingCheck reports a failed ping as degraded; books still open for the current session
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) (Status, error) {
		if err := p.Ping(ctx); err != nil {
			return StatusDegraded, err
		}
		return StatusHealthy, nil
	}
}

// ErrCheck turns a component's last error into a degraded status
func ErrCheck(lastErr func() error) CheckFunc {
	return func(ctx context.Context) (Status, error) {
		if err := lastErr(); err != nil {
			return StatusDegraded, err
		}
		return StatusHealthy, nil
	}
}
