package loadbalance

import (
	"errors"
	"fmt"

	"chrome-remote/registry"
)

var ErrNoTargets = errors.New("no targets available")

func errUnknown(name string) error {
	return fmt.Errorf("unknown balancer %q", name)
}

// First always picks the first target.
type First struct{}

func (First) Pick(targets []registry.Target) (*registry.Target, error) {
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}
	return &targets[0], nil
}

func (First) Name() string {
	return "First"
}
