package auth

import (
	"sync"
)

// MockStore implements CredentialStore in memory for tests
type MockStore struct {
	mu    sync.RWMutex
	cred  *Credential
	saves int

	// Error injection for testing
	LoadError   error
	SaveError   error
	DeleteError error
}

// NewMockStore creates an empty mock credential store
func NewMockStore() *MockStore {
	return &MockStore{}
}

// NewMockStoreWith creates a mock store already holding cred
func NewMockStoreWith(cred *Credential) *MockStore {
	m := &MockStore{}
	if cred != nil {
		c := *cred
		m.cred = &c
	}
	return m
}

func (m *MockStore) Name() string {
	return "mock"
}

func (m *MockStore) Load() (*Credential, error) {
	if m.LoadError != nil {
		return nil, m.LoadError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.cred == nil {
		return nil, ErrCredentialsNotFound
	}
	c := *m.cred
	return &c, nil
}

func (m *MockStore) Save(cred *Credential) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	if err := cred.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c := *cred
	m.cred = &c
	m.saves++
	return nil
}

func (m *MockStore) Delete() error {
	if m.DeleteError != nil {
		return m.DeleteError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cred == nil {
		return ErrCredentialsNotFound
	}
	m.cred = nil
	return nil
}

func (m *MockStore) Exists() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cred != nil
}

// SaveCount returns how many times Save succeeded
func (m *MockStore) SaveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

// Current returns a copy of the stored credential, or nil
func (m *MockStore) Current() *Credential {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cred == nil {
		return nil
	}
	c := *m.cred
	return &c
}
