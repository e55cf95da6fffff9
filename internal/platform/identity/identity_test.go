package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	stderrors "errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/stillpond/breathe/internal/platform/errors"
)

const (
	testIssuer   = "https://auth.test"
	testAudience = "breathe"
)

func TestUnconfiguredVerifierResolvesLocalUser(t *testing.T) {
	var v Verifier
	userID, err := v.ResolveUserID("")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if userID != LocalUserID {
		t.Fatalf("user id = %q, want %q", userID, LocalUserID)
	}
}

func TestLoadVerifierFromEnvUnset(t *testing.T) {
	t.Setenv("BREATHE_AUTH_ISSUER", "")
	t.Setenv("BREATHE_AUTH_AUDIENCE", "")
	t.Setenv("BREATHE_AUTH_PUBLIC_KEY", "")

	v, err := LoadVerifierFromEnv(nil)
	if err != nil {
		t.Fatalf("load verifier: %v", err)
	}
	if v.Configured() {
		t.Fatal("expected unconfigured verifier")
	}
}

func TestLoadVerifierFromEnvPartial(t *testing.T) {
	t.Setenv("BREATHE_AUTH_ISSUER", testIssuer)
	t.Setenv("BREATHE_AUTH_AUDIENCE", "")
	t.Setenv("BREATHE_AUTH_PUBLIC_KEY", "")

	if _, err := LoadVerifierFromEnv(nil); err == nil {
		t.Fatal("expected error for partial auth config")
	}
}

func TestLoadVerifierFromEnvConfigured(t *testing.T) {
	pub, _ := generateKey(t)
	t.Setenv("BREATHE_AUTH_ISSUER", testIssuer)
	t.Setenv("BREATHE_AUTH_AUDIENCE", testAudience)
	t.Setenv("BREATHE_AUTH_PUBLIC_KEY", base64.StdEncoding.EncodeToString(pub))

	v, err := LoadVerifierFromEnv(nil)
	if err != nil {
		t.Fatalf("load verifier: %v", err)
	}
	if !v.Configured() {
		t.Fatal("expected configured verifier")
	}
}

func TestResolveUserIDValidToken(t *testing.T) {
	pub, priv := generateKey(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	v := Verifier{Issuer: testIssuer, Audience: testAudience, Key: pub, Now: func() time.Time { return now }}

	token := signToken(t, priv, jwt.RegisteredClaims{
		Issuer:    testIssuer,
		Audience:  jwt.ClaimStrings{testAudience},
		Subject:   "user-123",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	})

	userID, err := v.ResolveUserID(token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if userID != "user-123" {
		t.Fatalf("user id = %q, want user-123", userID)
	}
}

func TestResolveUserIDRejections(t *testing.T) {
	pub, priv := generateKey(t)
	_, otherPriv := generateKey(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	v := Verifier{Issuer: testIssuer, Audience: testAudience, Key: pub, Now: func() time.Time { return now }}

	tests := []struct {
		name  string
		token string
		code  apperrors.Code
	}{
		{
			name:  "empty token",
			token: "",
			code:  apperrors.CodeIdentityMissing,
		},
		{
			name: "wrong key",
			token: signToken(t, otherPriv, jwt.RegisteredClaims{
				Issuer:    testIssuer,
				Audience:  jwt.ClaimStrings{testAudience},
				Subject:   "user-123",
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			}),
			code: apperrors.CodeIdentityInvalid,
		},
		{
			name: "wrong issuer",
			token: signToken(t, priv, jwt.RegisteredClaims{
				Issuer:    "https://other.test",
				Audience:  jwt.ClaimStrings{testAudience},
				Subject:   "user-123",
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			}),
			code: apperrors.CodeIdentityInvalid,
		},
		{
			name: "expired",
			token: signToken(t, priv, jwt.RegisteredClaims{
				Issuer:    testIssuer,
				Audience:  jwt.ClaimStrings{testAudience},
				Subject:   "user-123",
				ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute)),
			}),
			code: apperrors.CodeIdentityInvalid,
		},
		{
			name: "missing subject",
			token: signToken(t, priv, jwt.RegisteredClaims{
				Issuer:    testIssuer,
				Audience:  jwt.ClaimStrings{testAudience},
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			}),
			code: apperrors.CodeIdentityInvalid,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.ResolveUserID(tc.token)
			if err == nil {
				t.Fatal("expected error")
			}
			if !stderrors.Is(err, apperrors.New(tc.code, "")) {
				t.Fatalf("error code = %v, want %v", apperrors.CodeOf(err), tc.code)
			}
		})
	}
}

func generateKey(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return pub, priv
}

func signToken(t *testing.T, key ed25519.PrivateKey, claims jwt.RegisteredClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}
