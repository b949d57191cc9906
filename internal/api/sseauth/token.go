// Package sseauth provides stream token generation and validation.
//
// Browsers cannot attach Basic Auth headers to EventSource connections,
// so stream clients exchange their credentials for a short-lived token
// passed as a query parameter instead.
package sseauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// TokenPrefix identifies the token version/type.
	TokenPrefix = "ppt1"

	// DefaultTTL is the default token validity duration.
	DefaultTTL = 5 * time.Minute

	// ScopeStream is the scope claim for live stream tokens.
	ScopeStream = "stream"
)

// Errors returned by token validation.
var (
	ErrInvalidFormat    = errors.New("invalid token format")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrTokenExpired     = errors.New("token expired")
	ErrInvalidScope     = errors.New("invalid token scope")
)

// Claims represents the token payload.
type Claims struct {
	Exp   int64  `json:"exp"`
	Iat   int64  `json:"iat"`
	Scope string `json:"scope"`
}

// GenerateToken creates a new stream token.
// Format: ppt1.<payload_b64>.<sig_b64> with
// HMAC-SHA256(secret, "ppt1."+payload_b64) as the signature.
func GenerateToken(secret []byte, scope string, now time.Time) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("secret cannot be empty")
	}

	claims := Claims{
		Exp:   now.Add(DefaultTTL).Unix(),
		Iat:   now.Unix(),
		Scope: scope,
	}

	payloadJSON, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("marshal claims: %w", err)
	}

	payloadB64 := base64.RawURLEncoding.EncodeToString(payloadJSON)
	sigInput := TokenPrefix + "." + payloadB64

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(sigInput))
	sigB64 := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))

	return sigInput + "." + sigB64, nil
}

// ValidateToken verifies a token and returns its claims.
// Signature comparison is constant time.
func ValidateToken(token string, secret []byte, expectedScope string, now time.Time) (Claims, error) {
	if len(secret) == 0 {
		return Claims{}, errors.New("secret cannot be empty")
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return Claims{}, ErrInvalidFormat
	}
	prefix, payloadB64, sigB64 := parts[0], parts[1], parts[2]

	if prefix != TokenPrefix {
		return Claims{}, ErrInvalidFormat
	}

	sig, err := base64.RawURLEncoding.DecodeString(sigB64)
	if err != nil {
		return Claims{}, ErrInvalidFormat
	}

	sigInput := prefix + "." + payloadB64
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(sigInput))
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return Claims{}, ErrInvalidSignature
	}

	payloadJSON, err := base64.RawURLEncoding.DecodeString(payloadB64)
	if err != nil {
		return Claims{}, ErrInvalidFormat
	}
	var claims Claims
	if err := json.Unmarshal(payloadJSON, &claims); err != nil {
		return Claims{}, ErrInvalidFormat
	}

	if now.Unix() > claims.Exp {
		return Claims{}, ErrTokenExpired
	}
	if claims.Scope != expectedScope {
		return Claims{}, ErrInvalidScope
	}

	return claims, nil
}
