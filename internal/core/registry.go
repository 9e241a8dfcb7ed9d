package core

import (
	"sync"

	"github.com/samber/lo"
)

// Registry tracks live connections and the identity bound to each of them.
// An identity may be bound to several connections at once (tabs); a
// connection has at most one identity.
type Registry struct {
	mu         sync.RWMutex
	identities map[*Client]string
	handles    map[string]map[*Client]struct{}
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		identities: make(map[*Client]string),
		handles:    make(map[string]map[*Client]struct{}),
	}
}

// Connect registers a handle with no identity bound.
func (r *Registry) Connect(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.identities[c]; exists {
		return
	}
	r.identities[c] = ""
}

// Disconnect removes the handle and its identity mapping. Unknown handles are ignored.
func (r *Registry) Disconnect(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, exists := r.identities[c]
	if !exists {
		return
	}
	delete(r.identities, c)
	r.unlink(identity, c)
}

// Bind maps the handle to identity, overwriting any previous binding.
// Returns false if the handle is not connected.
func (r *Registry) Bind(c *Client, identity string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous, exists := r.identities[c]
	if !exists {
		return false
	}
	if previous == identity {
		return true
	}

	r.unlink(previous, c)
	r.identities[c] = identity
	if identity != "" {
		set, ok := r.handles[identity]
		if !ok {
			set = make(map[*Client]struct{})
			r.handles[identity] = set
		}
		set[c] = struct{}{}
	}
	return true
}

// IdentityOf returns the identity bound to the handle.
// ok is false for unknown handles and handles without an identity.
func (r *Registry) IdentityOf(c *Client) (identity string, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	identity = r.identities[c]
	return identity, identity != ""
}

// Connected reports whether the handle is live.
func (r *Registry) Connected(c *Client) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.identities[c]
	return exists
}

// Handles returns every live handle except the given one. A nil except returns all.
func (r *Registry) Handles(except *Client) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Filter(lo.Keys(r.identities), func(c *Client, _ int) bool {
		return c != except
	})
}

// HandlesOf returns the live handles bound to identity.
func (r *Registry) HandlesOf(identity string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Keys(r.handles[identity])
}

// Len returns the number of live handles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.identities)
}

// unlink must be called with mu held.
func (r *Registry) unlink(identity string, c *Client) {
	if identity == "" {
		return
	}
	set := r.handles[identity]
	delete(set, c)
	if len(set) == 0 {
		delete(r.handles, identity)
	}
}
