package auth

import (
	"context"
	"errors"
	"time"
)

// Static errors for err113 compliance.
var (
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshNotSupported = errors.New("token refresh is not supported for static tokens")
)

// TokenManager supplies the bearer token sent with each request. An empty
// token means the request goes out unauthenticated.
type TokenManager interface {
	GetToken(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) error
	SetToken(token string, expiresAt time.Time)
}

// StaticTokenManager serves a token configured up front, such as an API
// token or a JWT obtained elsewhere. It never refreshes.
type StaticTokenManager struct {
	store *TokenStore
}

// NewStaticTokenManager creates a manager for token. An empty token gives
// anonymous requests.
func NewStaticTokenManager(token string) *StaticTokenManager {
	m := &StaticTokenManager{store: NewTokenStore()}

	if token != "" {
		m.store.Set(&Token{AccessToken: token, TokenType: "bearer"})
	}

	return m
}

// GetToken returns the configured token, or an empty string without one.
func (m *StaticTokenManager) GetToken(ctx context.Context) (string, error) {
	token := m.store.Get()
	if token == nil {
		return "", nil
	}

	if !token.Valid() {
		return "", ErrTokenExpired
	}

	return token.AccessToken, nil
}

// RefreshToken always fails; static tokens are replaced with SetToken.
func (m *StaticTokenManager) RefreshToken(ctx context.Context) error {
	return ErrRefreshNotSupported
}

// SetToken replaces the token. An empty token switches to anonymous requests.
func (m *StaticTokenManager) SetToken(token string, expiresAt time.Time) {
	if token == "" {
		m.store.Clear()

		return
	}

	m.store.Set(&Token{AccessToken: token, TokenType: "bearer", ExpiresAt: expiresAt})
}
