package session

import (
	"sync"
	"time"
)

// Manager hands out one Store per session key so that concurrent guests
// never share wallets, phone numbers, or pending checkouts. An empty key
// falls back to a single anonymous store, which keeps single-user setups
// and tests working without cookie plumbing.
type Manager struct {
	mu     sync.Mutex
	stores map[string]*Store
	clock  func() time.Time
}

func NewManager(clock func() time.Time) *Manager {
	if clock == nil {
		clock = time.Now
	}
	return &Manager{stores: make(map[string]*Store), clock: clock}
}

// For returns the store for the given session key, creating it on first use.
func (m *Manager) For(key string) *Store {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stores[key]
	if !ok {
		s = NewStore(m.clock)
		m.stores[key] = s
	}
	return s
}
