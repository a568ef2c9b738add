package loadbalance

import (
	"math/rand/v2"

	"chrome-remote/registry"
)

// WeightedRandomBalancer picks targets with probability proportional to Weight.
// A target without a weight counts as 1.
type WeightedRandomBalancer struct{}

func weight(t registry.Target) int {
	if t.Weight <= 0 {
		return 1
	}
	return t.Weight
}

func (b *WeightedRandomBalancer) Pick(targets []registry.Target) (*registry.Target, error) {
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}

	totalWeight := 0
	for _, t := range targets {
		totalWeight += weight(t)
	}

	r := rand.IntN(totalWeight)
	for i := range targets {
		r -= weight(targets[i])
		if r < 0 {
			return &targets[i], nil
		}
	}
	return &targets[len(targets)-1], nil
}

func (b *WeightedRandomBalancer) Name() string {
	return "WeightedRandom"
}
