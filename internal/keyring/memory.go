package keyring

import "sync"

// MemoryStore keeps secrets in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	secrets map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{secrets: make(map[string][]byte)}
}

func (m *MemoryStore) Get(service, user string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	secret, ok := m.secrets[entryKey(service, user)]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), secret...), nil
}

func (m *MemoryStore) Set(service, user string, secret []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets[entryKey(service, user)] = append([]byte(nil), secret...)
	return nil
}

func (m *MemoryStore) Delete(service, user string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := entryKey(service, user)
	if _, ok := m.secrets[k]; !ok {
		return ErrNotFound
	}
	delete(m.secrets, k)
	return nil
}
