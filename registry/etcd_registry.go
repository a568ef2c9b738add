package registry

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// keyPrefix roots every entry: /chrome-remote/{name}/{targetID} → JSON Target.
const keyPrefix = "/chrome-remote/"

// EtcdRegistry publishes targets in etcd with TTL leases, so a crashed
// browser host disappears from discovery once its lease expires.
type EtcdRegistry struct {
	client *clientv3.Client
	logger *slog.Logger
}

// NewEtcdRegistry creates a new registry connected to the given etcd endpoints.
func NewEtcdRegistry(endpoints []string, logger *slog.Logger) (*EtcdRegistry, error) {
	c, err := clientv3.New(clientv3.Config{
		Endpoints: endpoints,
	})
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &EtcdRegistry{client: c, logger: logger}, nil
}

func key(name, id string) string {
	return keyPrefix + name + "/" + id
}

// Register stores target under name with a TTL lease and keeps the lease alive
// until ctx is done or the target is deregistered.
//
// The lease id stays local so several hosts can share one EtcdRegistry.
func (r *EtcdRegistry) Register(ctx context.Context, name string, target Target, ttl int64) error {
	lease, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return err
	}

	val, err := json.Marshal(target)
	if err != nil {
		return err
	}

	_, err = r.client.Put(ctx, key(name, target.ID), string(val), clientv3.WithLease(lease.ID))
	if err != nil {
		return err
	}

	ch, err := r.client.KeepAlive(ctx, lease.ID)
	if err != nil {
		return err
	}

	// Drain KeepAlive responses so the channel never fills up.
	go func() {
		for range ch {
		}
		r.logger.Debug("etcd lease keepalive stopped", "name", name, "target", target.ID)
	}()
	return nil
}

// Deregister removes a target entry.
func (r *EtcdRegistry) Deregister(ctx context.Context, name string, id string) error {
	_, err := r.client.Delete(ctx, key(name, id))
	return err
}

// Watch emits the full target list for name after every change under its prefix.
// The channel closes when ctx is done.
func (r *EtcdRegistry) Watch(ctx context.Context, name string) <-chan []Target {
	ch := make(chan []Target, 1)
	prefix := keyPrefix + name + "/"

	go func() {
		defer close(ch)
		watchChan := r.client.Watch(ctx, prefix, clientv3.WithPrefix())
		for range watchChan {
			// Re-fetch the whole list; simpler than applying individual events.
			targets, err := r.Discover(ctx, name)
			if err != nil {
				r.logger.Warn("etcd rediscover failed", "name", name, "error", err)
				continue
			}
			select {
			case ch <- targets:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch
}

// Discover returns all targets currently registered under name.
func (r *EtcdRegistry) Discover(ctx context.Context, name string) ([]Target, error) {
	resp, err := r.client.Get(ctx, keyPrefix+name+"/", clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}

	targets := make([]Target, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var target Target
		if err := json.Unmarshal(kv.Value, &target); err != nil {
			r.logger.Warn("skipping malformed etcd target", "key", string(kv.Key), "error", err)
			continue
		}
		targets = append(targets, target)
	}

	return targets, nil
}

// Close releases the etcd client.
func (r *EtcdRegistry) Close() error {
	return r.client.Close()
}
