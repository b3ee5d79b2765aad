package remote

import (
	"context"
	"sort"
	"sync"

	"github.com/rileyhilliard/vmhop/pkg/sshutil"
)

// DialFunc opens a new SSH client.
type DialFunc func(ctx context.Context) (sshutil.SSHClient, error)

// ClientPool keeps SSH clients open between operations, keyed by
// login and address. A dead client is closed and replaced on the next Get.
type ClientPool struct {
	mu      sync.Mutex
	clients map[string]sshutil.SSHClient
}

// NewClientPool creates an empty pool.
func NewClientPool() *ClientPool {
	return &ClientPool{clients: make(map[string]sshutil.SSHClient)}
}

// Get returns the pooled client for key, dialing a new one when there is
// none or the pooled one fails its keepalive. The pool lock is not held
// while dialing; if two callers race, the later client wins and the
// earlier one is closed.
func (p *ClientPool) Get(ctx context.Context, key string, dial DialFunc) (sshutil.SSHClient, error) {
	p.mu.Lock()
	client, ok := p.clients[key]
	if ok && !isAlive(client) {
		client.Close() //nolint:errcheck // Cleanup, error not actionable
		delete(p.clients, key)
		ok = false
	}
	p.mu.Unlock()
	if ok {
		return client, nil
	}

	client, err := dial(ctx)
	if err != nil {
		return nil, err
	}
	p.put(key, client)
	return client, nil
}

func (p *ClientPool) put(key string, client sshutil.SSHClient) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.clients[key]; ok && existing != client {
		existing.Close() //nolint:errcheck // Cleanup, error not actionable
	}
	p.clients[key] = client
}

// Drop closes and forgets the client for key.
func (p *ClientPool) Drop(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if client, ok := p.clients[key]; ok {
		client.Close() //nolint:errcheck // Cleanup, error not actionable
		delete(p.clients, key)
	}
}

// DropMatching closes every client whose key satisfies match.
func (p *ClientPool) DropMatching(match func(key string) bool) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for key, client := range p.clients {
		if match(key) {
			client.Close() //nolint:errcheck // Cleanup, error not actionable
			delete(p.clients, key)
			n++
		}
	}
	return n
}

// CloseAll closes all pooled clients.
func (p *ClientPool) CloseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key, client := range p.clients {
		client.Close() //nolint:errcheck // Cleanup, error not actionable
		delete(p.clients, key)
	}
}

// Len returns the number of pooled clients.
func (p *ClientPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.clients)
}

// Keys returns the pooled keys, sorted.
func (p *ClientPool) Keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := make([]string, 0, len(p.clients))
	for key := range p.clients {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// isAlive sends an OpenSSH keepalive. A reply of false still proves the
// connection is up; only a transport error means it's gone.
func isAlive(client sshutil.SSHClient) bool {
	if client == nil {
		return false
	}
	_, _, err := client.SendRequest("keepalive@openssh.com", true, nil)
	return err == nil
}
