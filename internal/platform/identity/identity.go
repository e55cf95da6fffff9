// Package identity resolves the calling user from bearer access tokens.
//
// The breathing core threads user identifiers explicitly; this package is the
// only place that knows how a transport-level credential becomes a user id.
// Token minting and session exchange belong to an external auth service.
package identity

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/stillpond/breathe/internal/platform/errors"
)

// LocalUserID is the implicit user for single-user offline deployments.
const LocalUserID = "local"

// verifierEnv holds raw env values before post-parse validation.
type verifierEnv struct {
	Issuer    string `env:"BREATHE_AUTH_ISSUER"`
	Audience  string `env:"BREATHE_AUTH_AUDIENCE"`
	PublicKey string `env:"BREATHE_AUTH_PUBLIC_KEY"`
}

// Verifier validates access tokens and extracts the user id subject.
// A zero Verifier is unconfigured and resolves every caller to LocalUserID.
type Verifier struct {
	Issuer   string
	Audience string
	Key      ed25519.PublicKey
	Now      func() time.Time
}

type accessClaims struct {
	jwt.RegisteredClaims
}

// LoadVerifierFromEnv reads bearer token verification configuration.
//
// All three variables are optional as a group: when none are set the service
// runs in local single-user mode. Setting only some of them is a
// misconfiguration and fails loudly.
func LoadVerifierFromEnv(now func() time.Time) (Verifier, error) {
	var raw verifierEnv
	if err := env.Parse(&raw); err != nil {
		return Verifier{}, fmt.Errorf("parse identity env: %w", err)
	}
	issuer := strings.TrimSpace(raw.Issuer)
	audience := strings.TrimSpace(raw.Audience)
	publicKey := strings.TrimSpace(raw.PublicKey)
	if now == nil {
		now = time.Now
	}
	if issuer == "" && audience == "" && publicKey == "" {
		return Verifier{Now: now}, nil
	}
	if issuer == "" {
		return Verifier{}, fmt.Errorf("BREATHE_AUTH_ISSUER is required when bearer auth is configured")
	}
	if audience == "" {
		return Verifier{}, fmt.Errorf("BREATHE_AUTH_AUDIENCE is required when bearer auth is configured")
	}
	if publicKey == "" {
		return Verifier{}, fmt.Errorf("BREATHE_AUTH_PUBLIC_KEY is required when bearer auth is configured")
	}
	keyBytes, err := decodeBase64(publicKey)
	if err != nil {
		return Verifier{}, fmt.Errorf("decode auth public key: %w", err)
	}
	if len(keyBytes) != ed25519.PublicKeySize {
		return Verifier{}, fmt.Errorf("auth public key must be %d bytes", ed25519.PublicKeySize)
	}
	return Verifier{
		Issuer:   issuer,
		Audience: audience,
		Key:      ed25519.PublicKey(keyBytes),
		Now:      now,
	}, nil
}

// Configured reports whether bearer verification is active.
func (v Verifier) Configured() bool {
	return len(v.Key) == ed25519.PublicKeySize
}

// ResolveUserID extracts the user id from a bearer token.
//
// An unconfigured verifier ignores the token and returns LocalUserID; a
// configured verifier requires a valid token for every request.
func (v Verifier) ResolveUserID(token string) (string, error) {
	if !v.Configured() {
		return LocalUserID, nil
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", apperrors.New(apperrors.CodeIdentityMissing, "bearer token is required")
	}
	now := v.Now
	if now == nil {
		now = time.Now
	}

	var parsed accessClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(token *jwt.Token) (any, error) {
		return v.Key, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return "", mapJWTError(err)
	}

	if parsed.Issuer == "" || parsed.Issuer != v.Issuer {
		return "", apperrors.WithMetadata(
			apperrors.CodeIdentityInvalid,
			"access token issuer mismatch",
			map[string]string{"Field": "issuer"},
		)
	}
	if !audienceContains(parsed.Audience, v.Audience) {
		return "", apperrors.WithMetadata(
			apperrors.CodeIdentityInvalid,
			"access token audience mismatch",
			map[string]string{"Field": "audience"},
		)
	}
	if parsed.ExpiresAt == nil {
		return "", apperrors.New(apperrors.CodeIdentityInvalid, "access token exp is required")
	}
	if !parsed.ExpiresAt.Time.UTC().After(now().UTC()) {
		return "", apperrors.New(apperrors.CodeIdentityInvalid, "access token is expired")
	}
	if parsed.NotBefore != nil && now().UTC().Before(parsed.NotBefore.Time.UTC()) {
		return "", apperrors.New(apperrors.CodeIdentityInvalid, "access token not active yet")
	}

	userID := strings.TrimSpace(parsed.Subject)
	if userID == "" {
		return "", apperrors.New(apperrors.CodeIdentityInvalid, "access token subject is required")
	}
	return userID, nil
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrEd25519Verification) {
		return apperrors.New(apperrors.CodeIdentityInvalid, "access token signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.New(apperrors.CodeIdentityInvalid, "access token alg is invalid")
	}
	return apperrors.New(apperrors.CodeIdentityInvalid, "access token is invalid")
}

// audienceContains reports whether the audience list contains the given value.
func audienceContains(aud jwt.ClaimStrings, value string) bool {
	for _, item := range aud {
		if item == value {
			return true
		}
	}
	return false
}

// decodeBase64 accepts both standard and URL-safe encodings, with or without padding.
func decodeBase64(value string) ([]byte, error) {
	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	}
	var lastErr error
	for _, enc := range encodings {
		decoded, err := enc.DecodeString(value)
		if err == nil {
			return decoded, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
