package authkit

import (
	"context"
	"sync"
	"time"
)

// SessionStore is the client-scoped key/value capability all cross-request
// state goes through: the session record, the anti-forgery state, the
// stored callback URL. Get returns (nil, nil) for missing or expired keys.
type SessionStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// SessionStores hands out per-client stores. Implementations decide how a
// client id maps to a namespace; MemoryStore keeps a map per client, the
// redis store prefixes keys.
type SessionStores interface {
	ForClient(clientID string) SessionStore
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is an in-process SessionStores implementation. It is the
// default and the one tests use; production deployments with more than one
// instance should use store/redisstore instead.
type MemoryStore struct {
	mu      sync.Mutex
	clients map[string]map[string]memoryEntry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		clients: make(map[string]map[string]memoryEntry),
	}
}

// ForClient implements SessionStores.
func (m *MemoryStore) ForClient(clientID string) SessionStore {
	return &memoryClientStore{store: m, clientID: clientID}
}

func (m *MemoryStore) get(clientID, key string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	bucket, ok := m.clients[clientID]
	if !ok {
		return nil
	}

	entry, ok := bucket[key]
	if !ok {
		return nil
	}

	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		delete(bucket, key)
		return nil
	}

	return entry.value
}

func (m *MemoryStore) set(clientID, key string, value []byte, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bucket, ok := m.clients[clientID]
	if !ok {
		bucket = make(map[string]memoryEntry)
		m.clients[clientID] = bucket
	}

	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	bucket[key] = entry
}

func (m *MemoryStore) delete(clientID, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if bucket, ok := m.clients[clientID]; ok {
		delete(bucket, key)
	}
}

func (m *MemoryStore) clear(clientID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.clients, clientID)
}

type memoryClientStore struct {
	store    *MemoryStore
	clientID string
}

func (s *memoryClientStore) Get(_ context.Context, key string) ([]byte, error) {
	return s.store.get(s.clientID, key), nil
}

func (s *memoryClientStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.store.set(s.clientID, key, value, ttl)
	return nil
}

func (s *memoryClientStore) Delete(_ context.Context, key string) error {
	s.store.delete(s.clientID, key)
	return nil
}

func (s *memoryClientStore) Clear(_ context.Context) error {
	s.store.clear(s.clientID)
	return nil
}
