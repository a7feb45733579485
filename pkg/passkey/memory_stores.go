// Copyright (c) 2026 TailorFit Labs
//
// This file is part of tailorfit.
//
// tailorfit is licensed under the GNU Affero General Public License v3.0.
// See the LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package passkey

import (
	"context"
	"encoding/hex"
	"sync"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
)

// MemoryUserStore is an in-memory UserStore for development and testing.
type MemoryUserStore struct {
	mu         sync.RWMutex
	byID       map[uuid.UUID]*User
	byUsername map[string]*User
}

// NewMemoryUserStore creates an empty in-memory user store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		byID:       make(map[uuid.UUID]*User),
		byUsername: make(map[string]*User),
	}
}

func (s *MemoryUserStore) FindByUsername(ctx context.Context, username string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byUsername[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	u := *user
	return &u, nil
}

func (s *MemoryUserStore) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	u := *user
	return &u, nil
}

func (s *MemoryUserStore) Create(ctx context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byUsername[user.Username]; ok {
		return ErrUserExists
	}
	u := *user
	s.byID[u.ID] = &u
	s.byUsername[u.Username] = &u
	return nil
}

// Count returns the number of stored users.
func (s *MemoryUserStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// MemoryCredentialStore is an in-memory CredentialStore for development and
// testing.
type MemoryCredentialStore struct {
	mu     sync.RWMutex
	byID   map[string]*Credential
	byUser map[uuid.UUID][]*Credential
}

// NewMemoryCredentialStore creates an empty in-memory credential store.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{
		byID:   make(map[string]*Credential),
		byUser: make(map[uuid.UUID][]*Credential),
	}
}

func (s *MemoryCredentialStore) Add(ctx context.Context, cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := hex.EncodeToString(cred.ID)
	if _, ok := s.byID[key]; ok {
		return ErrCredentialExists
	}
	c := *cred
	s.byID[key] = &c
	s.byUser[c.UserID] = append(s.byUser[c.UserID], &c)
	return nil
}

func (s *MemoryCredentialStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	creds := s.byUser[userID]
	out := make([]*Credential, len(creds))
	for i, c := range creds {
		cc := *c
		out[i] = &cc
	}
	return out, nil
}

func (s *MemoryCredentialStore) FindByCredentialID(ctx context.Context, credID []byte) (*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.byID[hex.EncodeToString(credID)]
	if !ok {
		return nil, ErrCredentialNotFound
	}
	c := *cred
	return &c, nil
}

func (s *MemoryCredentialStore) UpdateSignCount(ctx context.Context, credID []byte, signCount uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok := s.byID[hex.EncodeToString(credID)]
	if !ok {
		return ErrCredentialNotFound
	}
	cred.SignCount = signCount
	cred.LastUsedAt = time.Now().UTC()
	return nil
}

// Count returns the total number of stored credentials.
func (s *MemoryCredentialStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// MemoryChallengeStore is an in-memory ChallengeStore: one pending challenge
// slot per session, with TTL expiry.
type MemoryChallengeStore struct {
	mu      sync.Mutex
	pending map[string]*challengeEntry
	ttl     time.Duration
}

type challengeEntry struct {
	data      *webauthn.SessionData
	createdAt time.Time
}

// NewMemoryChallengeStore creates a challenge store with a 2 minute TTL.
func NewMemoryChallengeStore() *MemoryChallengeStore {
	return NewMemoryChallengeStoreWithTTL(2 * time.Minute)
}

// NewMemoryChallengeStoreWithTTL creates a challenge store with a custom TTL.
func NewMemoryChallengeStoreWithTTL(ttl time.Duration) *MemoryChallengeStore {
	return &MemoryChallengeStore{
		pending: make(map[string]*challengeEntry),
		ttl:     ttl,
	}
}

func (s *MemoryChallengeStore) Put(ctx context.Context, sessionID string, data *webauthn.SessionData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Overwrites any earlier pending challenge for this session.
	s.pending[sessionID] = &challengeEntry{data: data, createdAt: time.Now()}
	return nil
}

func (s *MemoryChallengeStore) Take(ctx context.Context, sessionID string) (*webauthn.SessionData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.pending[sessionID]
	if !ok {
		return nil, ErrNoPendingCeremony
	}
	delete(s.pending, sessionID)

	if time.Since(entry.createdAt) > s.ttl {
		return nil, ErrNoPendingCeremony
	}
	return entry.data, nil
}

// Cleanup removes expired entries and returns how many were removed.
func (s *MemoryChallengeStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for id, entry := range s.pending {
		if now.Sub(entry.createdAt) > s.ttl {
			delete(s.pending, id)
			removed++
		}
	}
	return removed
}

// Count returns the number of pending challenges.
func (s *MemoryChallengeStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
