package loadbalance

import (
	"sync/atomic"

	"chrome-remote/registry"
)

// RoundRobinBalancer distributes connections evenly across all targets in order.
// Uses an atomic counter for lock-free, goroutine-safe operation.
type RoundRobinBalancer struct {
	counter atomic.Int64
}

func (b *RoundRobinBalancer) Pick(targets []registry.Target) (*registry.Target, error) {
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}
	index := (b.counter.Add(1) - 1) % int64(len(targets))
	return &targets[index], nil
}

func (b *RoundRobinBalancer) Name() string {
	return "RoundRobin"
}
