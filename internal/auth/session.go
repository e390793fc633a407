// internal/auth/session.go

// Package auth issues ephemeral session tokens that identify a browser
// connection across socket reconnects. This is transport identity only;
// players are still just names within a lobby and nothing is authenticated.
package auth

import (
	"crypto/ed25519"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Keys are generated fresh at startup; sessions do not survive a restart,
// matching the in-memory lobby store.
var (
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
)

// Init generates the ed25519 key pair used to sign session tokens.
func Init() error {
	var err error
	publicKey, privateKey, err = ed25519.GenerateKey(nil)
	if err != nil {
		return fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	return nil
}

// NewSessionID mints an opaque connection identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// CreateSessionToken signs a JWT with "sub" = sessionID. Tokens carry no
// expiry; the orphan sweep and idle reaper bound their useful life.
func CreateSessionToken(sessionID string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.MapClaims{
		"sub": sessionID,
	})
	return token.SignedString(privateKey)
}

// VerifySessionToken returns the session ID from a valid token.
func VerifySessionToken(tokenString string) (string, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return publicKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid jwt claims")
	}
	sessionID, ok := claims["sub"].(string)
	if !ok || sessionID == "" {
		return "", fmt.Errorf("missing sub in jwt")
	}
	return sessionID, nil
}
