package session

import "sync"

// CredentialStore is the session-scoped slot holding the workflow bearer
// credential. A non-empty value switches runs to remote mode.
type CredentialStore interface {
	Get() string
	Set(credential string)
	Clear()
}

// MemoryCredentials keeps the credential in process memory only
type MemoryCredentials struct {
	mu    sync.RWMutex
	value string
}

// NewMemoryCredentials creates a slot seeded with initial (may be empty)
func NewMemoryCredentials(initial string) *MemoryCredentials {
	return &MemoryCredentials{value: initial}
}

func (m *MemoryCredentials) Get() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.value
}

func (m *MemoryCredentials) Set(credential string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = credential
}

func (m *MemoryCredentials) Clear() {
	m.Set("")
}
