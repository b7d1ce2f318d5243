package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/stixgraph/stixgraph/store"
)

// Config configures the etcd-backed connector registry.
type Config struct {
	// Endpoints are the etcd cluster endpoints (e.g., ["localhost:2379"]).
	Endpoints []string

	// Namespace prefixes every registry key. Defaults to "stixgraph".
	Namespace string

	// TTL is the lease time-to-live in seconds. Defaults to 30.
	TTL int
}

// Registry implements Resolver on top of etcd. Each connector registration
// is stored under /<namespace>/connector/<id> bound to a lease that the
// registry renews every TTL/3 until the connector is deregistered.
//
// Thread-safety: all methods are safe for concurrent use.
type Registry struct {
	client    *clientv3.Client
	namespace string
	ttl       int

	// Lease tracking for keepalive
	mu         sync.RWMutex
	leases     map[string]clientv3.LeaseID
	cancelFns  map[string]context.CancelFunc
	wg         sync.WaitGroup
	closed     bool
	closedChan chan struct{}
}

// NewRegistry connects to etcd and verifies connectivity.
func NewRegistry(cfg Config) (*Registry, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("registry endpoints cannot be empty")
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "stixgraph"
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30
	}

	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}

	// Verify connectivity with a quick health check
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, err = cli.Get(ctx, "health-check")
	if err != nil && err != context.DeadlineExceeded {
		cli.Close()
		return nil, fmt.Errorf("etcd health check failed: %w", err)
	}

	return &Registry{
		client:     cli,
		namespace:  namespace,
		ttl:        ttl,
		leases:     make(map[string]clientv3.LeaseID),
		cancelFns:  make(map[string]context.CancelFunc),
		closedChan: make(chan struct{}),
	}, nil
}

// Register adds a connector to the registry under a fresh lease and starts
// a keepalive goroutine renewing it every TTL/3.
//
// Re-registering an existing connector id replaces the entry and restarts
// the keepalive.
func (r *Registry) Register(ctx context.Context, conn Connector) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("connector registry is closed")
	}
	if conn.ID == "" {
		return fmt.Errorf("connector id is required")
	}

	// Cancel existing keepalive if re-registering
	if cancelFn, exists := r.cancelFns[conn.ID]; exists {
		cancelFn()
		delete(r.cancelFns, conn.ID)
	}

	leaseResp, err := r.client.Grant(ctx, int64(r.ttl))
	if err != nil {
		return fmt.Errorf("failed to create lease: %w", err)
	}

	conn.RegisteredAt = time.Now().UTC()
	data, err := json.Marshal(conn)
	if err != nil {
		return fmt.Errorf("failed to marshal connector: %w", err)
	}

	key := r.buildKey(conn.ID)
	_, err = r.client.Put(ctx, key, string(data), clientv3.WithLease(leaseResp.ID))
	if err != nil {
		return fmt.Errorf("failed to register connector: %w", err)
	}

	r.leases[conn.ID] = leaseResp.ID

	keepaliveCtx, cancel := context.WithCancel(context.Background())
	r.cancelFns[conn.ID] = cancel

	r.wg.Add(1)
	go r.keepalive(keepaliveCtx, leaseResp.ID, conn.ID)

	return nil
}

// Deregister removes a connector. Revoking the lease deletes the entry.
// Deregistering an unknown connector is a no-op.
func (r *Registry) Deregister(ctx context.Context, connectorID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("connector registry is closed")
	}

	if cancelFn, exists := r.cancelFns[connectorID]; exists {
		cancelFn()
		delete(r.cancelFns, connectorID)
	}

	leaseID, exists := r.leases[connectorID]
	if !exists {
		return nil
	}

	if _, err := r.client.Revoke(ctx, leaseID); err != nil {
		return fmt.Errorf("failed to revoke lease: %w", err)
	}

	delete(r.leases, connectorID)
	return nil
}

// Connector returns one connector by id. Returns store.ErrNotFound if no
// live registration exists.
func (r *Registry) Connector(ctx context.Context, id string) (*Connector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("connector registry is closed")
	}

	resp, err := r.client.Get(ctx, r.buildKey(id))
	if err != nil {
		return nil, fmt.Errorf("failed to load connector: %w", err)
	}
	if len(resp.Kvs) == 0 {
		return nil, fmt.Errorf("%w: connector %s", store.ErrNotFound, id)
	}

	var conn Connector
	if err := json.Unmarshal(resp.Kvs[0].Value, &conn); err != nil {
		return nil, fmt.Errorf("failed to unmarshal connector: %w", err)
	}
	return &conn, nil
}

// All returns every live connector registration.
func (r *Registry) All(ctx context.Context) ([]*Connector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("connector registry is closed")
	}

	prefix := fmt.Sprintf("/%s/connector/", r.namespace)
	resp, err := r.client.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to list connectors: %w", err)
	}

	connectors := make([]*Connector, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var conn Connector
		if err := json.Unmarshal(kv.Value, &conn); err != nil {
			// Skip invalid entries
			continue
		}
		connectors = append(connectors, &conn)
	}
	return connectors, nil
}

// ConnectorsForExport returns the export-capable connectors registered for
// the given format.
func (r *Registry) ConnectorsForExport(ctx context.Context, format string, onlyActive bool) ([]*Connector, error) {
	all, err := r.All(ctx)
	if err != nil {
		return nil, err
	}
	return FilterForExport(all, format, onlyActive), nil
}

// FilterForExport selects the export connectors supporting a format. Shared
// by the etcd registry and the in-memory fakes used in tests.
func FilterForExport(connectors []*Connector, format string, onlyActive bool) []*Connector {
	out := make([]*Connector, 0, len(connectors))
	for _, c := range connectors {
		if !c.IsExporter() || !c.SupportsFormat(format) {
			continue
		}
		if onlyActive && !c.Active {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Close releases all resources and stops background goroutines.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true

	for _, cancel := range r.cancelFns {
		cancel()
	}
	r.cancelFns = make(map[string]context.CancelFunc)

	close(r.closedChan)
	r.mu.Unlock()

	r.wg.Wait()
	return r.client.Close()
}

// keepalive renews the lease every TTL/3 seconds until cancelled or the
// lease becomes invalid.
func (r *Registry) keepalive(ctx context.Context, leaseID clientv3.LeaseID, connectorID string) {
	defer r.wg.Done()

	interval := time.Duration(r.ttl) * time.Second / 3
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.closedChan:
			return
		case <-ticker.C:
			_, err := r.client.KeepAliveOnce(context.Background(), leaseID)
			if err != nil {
				// Lease is invalid, stop keepalive
				r.mu.Lock()
				delete(r.leases, connectorID)
				delete(r.cancelFns, connectorID)
				r.mu.Unlock()
				return
			}
		}
	}
}

// buildKey constructs the etcd key for a connector registration.
//
// Format: /namespace/connector/id
func (r *Registry) buildKey(id string) string {
	return fmt.Sprintf("/%s/connector/%s", r.namespace, id)
}
