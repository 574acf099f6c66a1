// Package session answers "is the user logged in" for rankdesk.
//
// The token lives in a domain.StorageRepository under TokenKey, the same place the
// web console kept it in browser local storage. Providers are injected wherever
// authentication gates behavior so tests can substitute a fixed answer.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rankdesk/rankdesk/domain"
)

// TokenKey is the storage key of the authentication token.
const TokenKey = "authToken"

// Provider exposes the session state.
type Provider interface {
	IsAuthenticated() bool
	Token() string
}

// LocalProvider reads the token from persistent storage on every call.
type LocalProvider struct {
	storage domain.StorageRepository
	now     func() time.Time
}

// NewLocalProvider returns a provider backed by storage.
func NewLocalProvider(storage domain.StorageRepository) (*LocalProvider, error) {
	if storage == nil {
		return nil, errors.New("storage is required")
	}
	return &LocalProvider{storage: storage, now: time.Now}, nil
}

// Token returns the stored token or an empty string.
func (p *LocalProvider) Token() string {
	token, ok, err := p.storage.GetItem(TokenKey)
	if err != nil || !ok {
		return ""
	}
	return token
}

// IsAuthenticated reports whether a token is stored and, if it is a JWT with an
// expiry, that the expiry has not passed. Tokens that are not JWTs only need to exist.
func (p *LocalProvider) IsAuthenticated() bool {
	token := p.Token()
	if token == "" {
		return false
	}

	expiry, ok := TokenExpiry(token)
	if !ok {
		return true
	}
	return p.now().Before(expiry)
}

// Save stores token, replacing any previous one.
func (p *LocalProvider) Save(token string) error {
	if token == "" {
		return errors.New("token is empty")
	}
	if err := p.storage.SetItem(TokenKey, token); err != nil {
		return fmt.Errorf("saving token : %w", err)
	}
	return nil
}

// Clear removes the stored token.
func (p *LocalProvider) Clear() error {
	if err := p.storage.RemoveItem(TokenKey); err != nil {
		return fmt.Errorf("clearing token : %w", err)
	}
	return nil
}

// TokenExpiry returns the exp claim of a JWT without verifying its signature.
// The client never holds the signing key; the server stays the judge of validity.
func TokenExpiry(token string) (time.Time, bool) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Static is a Provider with a fixed answer.
type Static struct {
	Authenticated bool
	Value         string
}

func (s Static) IsAuthenticated() bool { return s.Authenticated }
func (s Static) Token() string         { return s.Value }
