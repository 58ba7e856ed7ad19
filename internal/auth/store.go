package auth

import (
	"context"
	"fmt"
	"sync"

	"github.com/fivetwenty-io/apirequests/internal/constants"
)

// TokenStore caches gateway tokens by key. Get returns
// constants.ErrTokenNotFound for unknown keys.
type TokenStore interface {
	Get(ctx context.Context, key string) (*Token, error)
	Set(ctx context.Context, key string, token *Token) error
	Delete(ctx context.Context, key string) error
}

// MemoryTokenStore is a process-local TokenStore.
type MemoryTokenStore struct {
	mu     sync.RWMutex
	tokens map[string]*Token
}

// NewMemoryTokenStore creates an empty in-memory store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: make(map[string]*Token)}
}

// Get returns a copy of the stored token.
func (s *MemoryTokenStore) Get(_ context.Context, key string) (*Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token, ok := s.tokens[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", constants.ErrTokenNotFound, key)
	}

	tokenCopy := *token

	return &tokenCopy, nil
}

// Set stores a copy of token.
func (s *MemoryTokenStore) Set(_ context.Context, key string, token *Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokenCopy := *token
	s.tokens[key] = &tokenCopy

	return nil
}

// Delete removes the token for key.
func (s *MemoryTokenStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tokens, key)

	return nil
}
