package loadbalance

import (
	"fmt"
	"hash/crc32"
	"sort"
	"strings"
	"sync"

	"chrome-remote/registry"
)

// ConsistentHashBalancer maps a session key to a target using a hash ring.
// The same key keeps landing on the same target while the target set is stable,
// and only keys owned by a vanished target move when it goes away.
//
// Each target owns 100 virtual nodes hashed from "{id}#{i}" so a handful of
// targets still spreads evenly around the ring.
type ConsistentHashBalancer struct {
	key      string
	replicas int

	mu        sync.Mutex
	signature string // target ids the ring was built from
	ring      []uint32
	nodes     map[uint32]registry.Target
}

// NewConsistentHashBalancer creates a balancer whose Pick routes key.
func NewConsistentHashBalancer(key string) *ConsistentHashBalancer {
	return &ConsistentHashBalancer{
		key:      key,
		replicas: 100,
		nodes:    make(map[uint32]registry.Target),
	}
}

// Add places a target onto the hash ring.
func (b *ConsistentHashBalancer) Add(target registry.Target) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.add(target)
}

func (b *ConsistentHashBalancer) add(target registry.Target) {
	for i := 0; i < b.replicas; i++ {
		hash := crc32.ChecksumIEEE([]byte(fmt.Sprintf("%s#%d", target.ID, i)))
		b.ring = append(b.ring, hash)
		b.nodes[hash] = target
	}
	sort.Slice(b.ring, func(i, j int) bool {
		return b.ring[i] < b.ring[j]
	})
}

// Lookup finds the target responsible for key on the current ring.
func (b *ConsistentHashBalancer) Lookup(key string) (*registry.Target, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lookup(key)
}

func (b *ConsistentHashBalancer) lookup(key string) (*registry.Target, error) {
	if len(b.ring) == 0 {
		return nil, ErrNoTargets
	}
	hash := crc32.ChecksumIEEE([]byte(key))

	// First node clockwise from the key's hash, wrapping to the start of the ring.
	idx := sort.Search(len(b.ring), func(i int) bool {
		return b.ring[i] >= hash
	})
	if idx == len(b.ring) {
		idx = 0
	}

	target := b.nodes[b.ring[idx]]
	return &target, nil
}

// Pick rebuilds the ring when the target set changed, then routes the balancer's key.
func (b *ConsistentHashBalancer) Pick(targets []registry.Target) (*registry.Target, error) {
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}

	ids := make([]string, len(targets))
	for i, t := range targets {
		ids[i] = t.ID
	}
	sort.Strings(ids)
	signature := strings.Join(ids, ",")

	b.mu.Lock()
	defer b.mu.Unlock()
	if signature != b.signature {
		b.ring = b.ring[:0]
		b.nodes = make(map[uint32]registry.Target, len(targets)*b.replicas)
		for _, t := range targets {
			b.add(t)
		}
		b.signature = signature
	}
	return b.lookup(b.key)
}

func (b *ConsistentHashBalancer) Name() string {
	return "ConsistentHash"
}
