// Package auth holds the single in-memory Spotify credential and the
// token-endpoint exchanges that produce it.
package auth

import (
	"sync"
	"time"
)

// Status reports whether a usable credential has been obtained.
type Status int

const (
	Unauthenticated Status = iota
	Authenticated
)

func (s Status) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "unauthenticated"
}

// Credential is the access/refresh token pair granted by Spotify.
type Credential struct {
	AccessToken  string
	RefreshToken string
	ObtainedAt   time.Time
}

// CredentialStore holds the process-wide credential.
// Only the Exchanger writes to it.
type CredentialStore struct {
	mu   sync.RWMutex
	cred *Credential
}

// NewCredentialStore creates an empty, unauthenticated store.
func NewCredentialStore() *CredentialStore {
	return &CredentialStore{}
}

// Get returns a copy of the current credential.
// The second return value is false when nothing has been stored yet.
func (s *CredentialStore) Get() (Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cred == nil {
		return Credential{}, false
	}
	return *s.cred, true
}

// Set replaces the stored credential as a whole.
func (s *CredentialStore) Set(c Credential) {
	s.mu.Lock()
	s.cred = &c
	s.mu.Unlock()
}

// IsAuthenticated reports whether a credential with an access token is held.
func (s *CredentialStore) IsAuthenticated() bool {
	return s.Status() == Authenticated
}

// Status returns the current authentication status.
func (s *CredentialStore) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cred == nil || s.cred.AccessToken == "" {
		return Unauthenticated
	}
	return Authenticated
}
