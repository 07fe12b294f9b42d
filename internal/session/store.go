package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"pix-server/internal/utils"
)

// ErrNotFound is returned for tokens that are unknown, revoked or expired.
var ErrNotFound = errors.New("session not found")

// Store binds opaque tokens to identities. Implementations are shared by
// every connection and must be safe for concurrent use.
type Store interface {
	Issue(identity string) (string, error)
	Resolve(token string) (string, error)
	Revoke(token string) bool
	RevokeIdentity(identity string) int
	Len() int
}

// Tokens produces fresh tokens and rejects ones it could not have produced.
type Tokens interface {
	Generate(identity string) (string, error)
	Verify(token string) error
}

type binding struct {
	identity  string
	expiresAt time.Time
}

// MemoryStore keeps sessions in process memory behind a single mutex.
// A zero ttl means sessions live until revoked.
type MemoryStore struct {
	mu       sync.Mutex
	bindings map[string]binding
	tokens   Tokens
	ttl      time.Duration
	now      func() time.Time
}

func NewMemoryStore(tokens Tokens, ttl time.Duration) *MemoryStore {
	if tokens == nil {
		tokens = UUIDTokens{}
	}
	return &MemoryStore{
		bindings: make(map[string]binding),
		tokens:   tokens,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *MemoryStore) Issue(identity string) (string, error) {
	token, err := s.tokens.Generate(identity)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.bindings[token]; taken {
		return "", fmt.Errorf("generate token: collision for %s", identity)
	}
	b := binding{identity: identity}
	if s.ttl > 0 {
		b.expiresAt = s.now().Add(s.ttl)
	}
	s.bindings[token] = b
	return token, nil
}

func (s *MemoryStore) Resolve(token string) (string, error) {
	if token == "" {
		return "", ErrNotFound
	}
	if err := s.tokens.Verify(token); err != nil {
		return "", ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bindings[token]
	if !ok {
		return "", ErrNotFound
	}
	if s.expired(b, s.now()) {
		delete(s.bindings, token)
		return "", ErrNotFound
	}
	return b.identity, nil
}

func (s *MemoryStore) Revoke(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bindings[token]
	if !ok {
		return false
	}
	delete(s.bindings, token)
	return !s.expired(b, s.now())
}

func (s *MemoryStore) RevokeIdentity(identity string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	revoked := 0
	for token, b := range s.bindings {
		if b.identity == identity {
			delete(s.bindings, token)
			revoked++
		}
	}
	return revoked
}

// Len counts live bindings, including expired ones not yet swept.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bindings)
}

// Sweep drops expired bindings and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for token, b := range s.bindings {
		if s.expired(b, now) {
			delete(s.bindings, token)
			removed++
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is cancelled.
func (s *MemoryStore) RunSweeper(ctx context.Context, interval time.Duration) {
	if s.ttl <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				utils.LogDebug("SessionStore", "Swept %d expired sessions", n)
			}
		}
	}
}

func (s *MemoryStore) expired(b binding, now time.Time) bool {
	return !b.expiresAt.IsZero() && !now.Before(b.expiresAt)
}
