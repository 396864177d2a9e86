package main

import (
	"context"
	"sync"

	"github.com/lifeflow/authcore"
)

// memoryIdentityStore keeps identities in a map. It backs the daemon when
// no DATABASE_URL is configured; everything is lost on restart.
type memoryIdentityStore struct {
	mu     sync.Mutex
	byID   map[int64]*authcore.Identity
	nextID int64
}

func newMemoryIdentityStore() *memoryIdentityStore {
	return &memoryIdentityStore{byID: make(map[int64]*authcore.Identity), nextID: 1}
}

func (m *memoryIdentityStore) FindByEmail(_ context.Context, email string) (*authcore.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, identity := range m.byID {
		if identity.Email == email {
			clone := *identity
			return &clone, nil
		}
	}
	return nil, authcore.ErrIdentityNotFound
}

func (m *memoryIdentityStore) FindByID(_ context.Context, id int64) (*authcore.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	identity, ok := m.byID[id]
	if !ok {
		return nil, authcore.ErrIdentityNotFound
	}
	clone := *identity
	return &clone, nil
}

func (m *memoryIdentityStore) Insert(_ context.Context, identity *authcore.Identity) (*authcore.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Email == identity.Email {
			return nil, authcore.ErrDuplicateIdentity
		}
	}
	clone := *identity
	clone.ID = m.nextID
	m.nextID++
	m.byID[clone.ID] = &clone
	created := clone
	return &created, nil
}

func (m *memoryIdentityStore) Update(_ context.Context, identity *authcore.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[identity.ID]; !ok {
		return authcore.ErrIdentityNotFound
	}
	clone := *identity
	m.byID[identity.ID] = &clone
	return nil
}

func (m *memoryIdentityStore) SetVerified(_ context.Context, id int64, verified bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	identity, ok := m.byID[id]
	if !ok {
		return authcore.ErrIdentityNotFound
	}
	identity.Verified = verified
	return nil
}
