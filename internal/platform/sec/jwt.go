// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package sec provides cryptographic primitives and token management.
//
// # Architecture
//
// This package isolates security-sensitive code (Hashing, JWT Signing, one-time
// codes) from the domain logic. It acts as an Infrastructure service injected
// into the auth flows via small consumer-side interfaces.
package sec

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind distinguishes what a signed token may be used for.
type TokenKind string

const (
	// KindAccess authorizes individual API calls.
	KindAccess TokenKind = "access"

	// KindRefresh is only accepted by the refresh endpoint.
	KindRefresh TokenKind = "refresh"

	// KindReset carries an email address for the password reset flow.
	KindReset TokenKind = "reset"
)

var (
	// ErrTokenExpired is returned when the current time is at or past the exp claim.
	ErrTokenExpired = errors.New("sec: token expired")

	// ErrTokenMalformed covers bad signatures, bad structure, wrong issuer and wrong kind.
	ErrTokenMalformed = errors.New("sec: token malformed")
)

// AuthClaims represents the payload embedded inside every signed token.
//
// Only the subject and the absolute expiry are load-bearing. The kind claim
// stops a refresh token from being replayed as an access token.
type AuthClaims struct {
	jwt.RegisteredClaims

	Kind TokenKind `json:"typ"`
}

// UserID returns the opaque subject of the token.
func (c *AuthClaims) UserID() string {
	return c.Subject
}

// TokenService handles generation and verification of signed tokens.
//
// It supports RS256 with a key pair read from disk, or HS256 with a shared
// secret. Both modes are stateless.
type TokenService struct {
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
	issuer    string
	now       func() time.Time
}

// NewTokenService creates an RS256 TokenService.
// It reads RSA keys from the provided filesystem paths.
func NewTokenService(privateKeyPath, publicKeyPath, issuer string) (*TokenService, error) {
	privateKeyData, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("sec: failed to read private key from %s: %w", privateKeyPath, err)
	}

	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyData)
	if err != nil {
		return nil, fmt.Errorf("sec: failed to parse private key: %w", err)
	}

	publicKeyData, err := os.ReadFile(publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("sec: failed to read public key from %s: %w", publicKeyPath, err)
	}

	publicKey, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyData)
	if err != nil {
		return nil, fmt.Errorf("sec: failed to parse public key: %w", err)
	}

	return NewRSATokenService(privateKey, publicKey, issuer), nil
}

// NewRSATokenService creates an RS256 TokenService from parsed keys.
func NewRSATokenService(privateKey *rsa.PrivateKey, publicKey *rsa.PublicKey, issuer string) *TokenService {
	return &TokenService{
		method:    jwt.SigningMethodRS256,
		signKey:   privateKey,
		verifyKey: publicKey,
		issuer:    issuer,
		now:       time.Now,
	}
}

// NewHMACTokenService creates an HS256 TokenService keyed by secret.
func NewHMACTokenService(secret []byte, issuer string) (*TokenService, error) {
	if len(secret) == 0 {
		return nil, errors.New("sec: empty signing secret")
	}

	return &TokenService{
		method:    jwt.SigningMethodHS256,
		signKey:   secret,
		verifyKey: secret,
		issuer:    issuer,
		now:       time.Now,
	}, nil
}

// WithClock replaces the time source. Used by tests to simulate expiry.
func (service *TokenService) WithClock(now func() time.Time) *TokenService {
	service.now = now
	return service
}

// Issue signs a token for subject that expires ttl from now.
//
// The expiry is returned as an absolute time so callers can surface it.
func (service *TokenService) Issue(subject string, kind TokenKind, ttl time.Duration) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, errors.New("sec: empty token subject")
	}

	currentTime := service.now()
	expiresAt := currentTime.Add(ttl)

	claims := AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    service.issuer,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Kind: kind,
	}

	token := jwt.NewWithClaims(service.method, claims)
	signedToken, err := token.SignedString(service.signKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sec: failed to sign token: %w", err)
	}

	return signedToken, claims.ExpiresAt.Time, nil
}

// Verify checks signature, issuer, expiry and kind of a token string.
//
// It returns [ErrTokenExpired] or [ErrTokenMalformed]; no other error escapes.
func (service *TokenService) Verify(tokenString string, kind TokenKind) (*AuthClaims, error) {
	claims, err := service.VerifyToken(tokenString)
	if err != nil {
		return nil, err
	}

	if claims.Kind != kind {
		return nil, fmt.Errorf("%w: expected %s token", ErrTokenMalformed, kind)
	}

	return claims, nil
}

// VerifyToken checks a token of any kind.
func (service *TokenService) VerifyToken(tokenString string) (*AuthClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AuthClaims{}, func(token *jwt.Token) (interface{}, error) {
		return service.verifyKey, nil
	},
		jwt.WithValidMethods([]string{service.method.Alg()}),
		jwt.WithIssuer(service.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(service.now),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}

	claims, ok := token.Claims.(*AuthClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrTokenMalformed
	}

	return claims, nil
}
