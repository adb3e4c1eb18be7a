package credential

import "sync"

// Memory is an in-process Store, used in tests and as a fallback when
// no OS credential store is available.
type Memory struct {
	mu      sync.RWMutex
	secrets map[string]string
}

func NewMemory() *Memory {
	return &Memory{secrets: make(map[string]string)}
}

// Get implements Store.
func (m *Memory) Get(account string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	secret, ok := m.secrets[account]
	if !ok {
		return "", ErrNotFound
	}
	return secret, nil
}

// Set implements Store.
func (m *Memory) Set(account, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets[account] = secret
	return nil
}

// Delete implements Store.
func (m *Memory) Delete(account string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.secrets, account)
	return nil
}
