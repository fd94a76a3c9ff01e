package sol

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

// RPCPool spreads reads across several endpoints
type RPCPool struct {
	endpoints []string
	clients   []*Client
	index     uint64
	mu        sync.RWMutex
}

// NewRPCPool creates a client for each endpoint. All clients share the Jito setting and the per-endpoint request limit.
func NewRPCPool(ctx context.Context, endpoints []string, jitoRpc string, reqLimitPerSecond int) (*RPCPool, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("no RPC endpoints configured")
	}

	pool := &RPCPool{
		endpoints: endpoints,
		clients:   make([]*Client, 0, len(endpoints)),
	}
	for _, endpoint := range endpoints {
		client, err := NewClient(ctx, endpoint, jitoRpc, reqLimitPerSecond)
		if err != nil {
			return nil, fmt.Errorf("failed to create client for %s: %w", endpoint, err)
		}
		pool.clients = append(pool.clients, client)
	}

	log.Infof("RPC pool ready with %d endpoint(s)", len(pool.clients))
	return pool, nil
}

// GetClient returns the next client in round-robin fashion
func (p *RPCPool) GetClient() *Client {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.clients) == 0 {
		return nil
	}
	if len(p.clients) == 1 {
		return p.clients[0]
	}

	idx := atomic.AddUint64(&p.index, 1) % uint64(len(p.clients))
	return p.clients[idx]
}

// Primary returns the first configured client. Transactions are always sent through it so that
// confirmation polls hit the node that received them.
func (p *RPCPool) Primary() *Client {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.clients) == 0 {
		return nil
	}
	return p.clients[0]
}

// GetAllClients returns all clients in the pool
func (p *RPCPool) GetAllClients() []*Client {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.clients
}

// Prune health-checks every endpoint and drops the ones that fail. It errors when none is left.
func (p *RPCPool) Prune(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	healthy := make([]*Client, 0, len(p.clients))
	for _, client := range p.clients {
		if err := client.CheckHealth(ctx); err != nil {
			log.Warnf("Dropping RPC endpoint: %v", err)
			continue
		}
		healthy = append(healthy, client)
	}
	if len(healthy) == 0 {
		return fmt.Errorf("none of %d RPC endpoints is healthy", len(p.clients))
	}
	p.clients = healthy
	return nil
}

// Size returns the number of clients in the pool
func (p *RPCPool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.clients)
}
