// Package loadbalance chooses which discovered target a client connects to.
//
// Four strategies are implemented:
//   - First:           The first target, matching what a browser lists as most recent
//   - RoundRobin:      Spread successive connections evenly
//   - WeightedRandom:  Favor hosts with more capacity
//   - ConsistentHash:  Keep a session key pinned to the same target
package loadbalance

import "chrome-remote/registry"

// Balancer is the interface for target selection strategies.
type Balancer interface {
	// Pick selects one target from the available list. Must be goroutine-safe.
	Pick(targets []registry.Target) (*registry.Target, error)

	// Name returns the strategy name (for logging/debugging).
	Name() string
}

// ByName returns the strategy for a configuration name. key seeds ConsistentHash.
func ByName(name, key string) (Balancer, error) {
	switch name {
	case "", "first":
		return First{}, nil
	case "round_robin":
		return &RoundRobinBalancer{}, nil
	case "weighted_random":
		return &WeightedRandomBalancer{}, nil
	case "consistent_hash":
		return NewConsistentHashBalancer(key), nil
	}
	return nil, errUnknown(name)
}
