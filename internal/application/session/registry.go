package session

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// StoreFactory binds a Store to one session id.
type StoreFactory func(sessionID string) Store

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	Size     int
	TTL      time.Duration
	Stores   StoreFactory
	Verifier Verifier
	Observer Observer
}

// Registry holds the live State of every browser session. All requests of
// one session share a State, so its single-writer rules hold across them.
// Evicted States are rebuilt from the persisted identity on next use; the
// dropped State is released so its watchers end.
type Registry struct {
	cfg   RegistryConfig
	mu    sync.Mutex
	cache *lru.LRU[string, *State]
}

// NewRegistry returns an empty Registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.Size <= 0 {
		cfg.Size = 10000
	}
	return &Registry{
		cfg:   cfg,
		cache: lru.NewLRU[string, *State](cfg.Size, func(_ string, st *State) { st.Release() }, cfg.TTL),
	}
}

// Get returns the State for sessionID, creating an uninitialized one if needed.
func (r *Registry) Get(sessionID string) *State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.cache.Get(sessionID); ok {
		return st
	}
	// An expired entry can linger until the cache sweeps it; drop it now so
	// its State is released rather than silently replaced.
	r.cache.Remove(sessionID)
	st := New(Config{
		Key:      sessionID,
		Store:    r.cfg.Stores(sessionID),
		Verifier: r.cfg.Verifier,
		Observer: r.cfg.Observer,
	})
	r.cache.Add(sessionID, st)
	return st
}

// Remove forgets the State for sessionID.
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Remove(sessionID)
}

// Len is the number of live States.
func (r *Registry) Len() int {
	return r.cache.Len()
}
