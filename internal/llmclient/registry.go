package llmclient

import (
	"sync"

	"github.com/bamlgo/baml/internal/ir"
)

// Registry memoizes per-name provider Clients, keyed by client name and
// cleared whenever the owning runtime reloads its IR. Lookups are
// non-blocking after first insertion (sync.Map).
type Registry struct {
	clients sync.Map // name -> *Client
}

func NewRegistry() *Registry { return &Registry{} }

// Get returns the memoized Client for decl, building one on first use.
func (r *Registry) Get(decl *ir.Client, policy *ir.RetryPolicy, env Env) (*Client, error) {
	if existing, ok := r.clients.Load(decl.Name); ok {
		return existing.(*Client), nil
	}
	c, err := NewClient(decl, policy, env)
	if err != nil {
		return nil, err
	}
	actual, _ := r.clients.LoadOrStore(decl.Name, c)
	return actual.(*Client), nil
}

// Clear drops every memoized client, used when the runtime reloads its IR.
func (r *Registry) Clear() {
	r.clients.Range(func(key, _ any) bool {
		r.clients.Delete(key)
		return true
	})
}
