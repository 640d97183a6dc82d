// Package session holds the state one translated connection accumulates:
// the negotiated version, registry mapping tables and typed slots that
// handlers read and write.
package session

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	ErrVersionSet       = errors.New("session: version already negotiated")
	ErrInvalidVersion   = errors.New("session: invalid protocol version")
	ErrRegistryResolved = errors.New("session: registry already resolved")
	ErrNotInjective     = errors.New("session: registry mapping is not injective")
)

// Context is safe for concurrent use by the inbound and outbound relays.
type Context struct {
	version atomic.Int32

	regMu      sync.RWMutex
	registries map[string]*Registry

	slotMu sync.RWMutex
	slots  map[string]any
}

func New() *Context {
	return &Context{
		registries: make(map[string]*Registry),
		slots:      make(map[string]any),
	}
}

// SetVersion records the negotiated protocol version. It succeeds once.
func (c *Context) SetVersion(v int32) error {
	if v <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidVersion, v)
	}
	if !c.version.CompareAndSwap(0, v) {
		return ErrVersionSet
	}
	return nil
}

// Version returns the negotiated version, and false before negotiation.
func (c *Context) Version() (int32, bool) {
	v := c.version.Load()
	return v, v != 0
}

// SetRegistry installs the mapping table of a namespace. Each namespace is
// written once.
func (c *Context) SetRegistry(namespace string, r *Registry) error {
	c.regMu.Lock()
	defer c.regMu.Unlock()
	if _, ok := c.registries[namespace]; ok {
		return fmt.Errorf("%w: %s", ErrRegistryResolved, namespace)
	}
	c.registries[namespace] = r
	return nil
}

func (c *Context) Registry(namespace string) (*Registry, bool) {
	c.regMu.RLock()
	defer c.regMu.RUnlock()
	r, ok := c.registries[namespace]
	return r, ok
}

// Namespaces lists resolved registry namespaces.
func (c *Context) Namespaces() []string {
	c.regMu.RLock()
	defer c.regMu.RUnlock()
	out := make([]string, 0, len(c.registries))
	for ns := range c.registries {
		out = append(out, ns)
	}
	return out
}

// Registry is a bijective id mapping between the historical and the
// current numbering of one namespace. It is immutable.
type Registry struct {
	toCurrent map[int32]int32
	toLegacy  map[int32]int32
}

// NewRegistry builds a registry from historical to current ids.
func NewRegistry(legacyToCurrent map[int32]int32) (*Registry, error) {
	r := &Registry{
		toCurrent: make(map[int32]int32, len(legacyToCurrent)),
		toLegacy:  make(map[int32]int32, len(legacyToCurrent)),
	}
	for legacy, current := range legacyToCurrent {
		if prev, ok := r.toLegacy[current]; ok {
			return nil, fmt.Errorf("%w: %d and %d both map to %d", ErrNotInjective, prev, legacy, current)
		}
		r.toCurrent[legacy] = current
		r.toLegacy[current] = legacy
	}
	return r, nil
}

// Identity builds a registry mapping ids 0..n-1 to themselves.
func Identity(n int) *Registry {
	m := make(map[int32]int32, n)
	for i := 0; i < n; i++ {
		m[int32(i)] = int32(i)
	}
	r, _ := NewRegistry(m)
	return r
}

func (r *Registry) ToCurrent(id int32) (int32, bool) {
	v, ok := r.toCurrent[id]
	return v, ok
}

func (r *Registry) ToLegacy(id int32) (int32, bool) {
	v, ok := r.toLegacy[id]
	return v, ok
}

func (r *Registry) Len() int {
	return len(r.toCurrent)
}
